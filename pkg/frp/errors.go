package frp

import (
	"errors"
	"fmt"
)

// ErrReentrant is the cause of a panic raised when a node is asked to
// notify while it is still notifying. This means the graph contains a
// synchronous cycle; route the feedback through Defer or EmitLater.
var ErrReentrant = errors.New("frp: reentrant notification")

// ErrBudgetExceeded is the cause of a panic raised when a push exceeds the
// runtime's Budget.
var ErrBudgetExceeded = errors.New("frp: propagation budget exceeded")

// ErrNetworkDisposed is the cause of a panic raised when a combinator is
// called on a disposed Network.
var ErrNetworkDisposed = errors.New("frp: network disposed")

// ErrInvalidInput is the cause of a panic raised when a combinator is given
// a released handle, a zero handle, or a handle from another Runtime.
var ErrInvalidInput = errors.New("frp: invalid input handle")

// Diagnostic codes carried by NodeError. They match the codes registered
// in the CLI's error catalogue.
const (
	CodeReentrant      = "E101"
	CodeEmissionBudget = "E102"
	CodeDeferredBudget = "E103"
	CodeDisposed       = "E104"
	CodeInvalidInput   = "E105"
)

// NodeError is the panic value used for fatal propagation and wiring
// errors. It identifies the node involved.
type NodeError struct {
	Code   string
	Node   NodeID
	Label  string
	Detail string
	Err    error
}

// Error implements the error interface.
func (e *NodeError) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Code, e.Err)
	if e.Label != "" {
		msg += fmt.Sprintf(" (node %s %s)", e.Label, e.Node)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// Unwrap returns the sentinel cause for errors.Is.
func (e *NodeError) Unwrap() error {
	return e.Err
}

// AsNodeError extracts a *NodeError from a recovered panic value.
func AsNodeError(recovered any) (*NodeError, bool) {
	err, ok := recovered.(error)
	if !ok {
		return nil, false
	}
	var ne *NodeError
	if errors.As(err, &ne) {
		return ne, true
	}
	return nil, false
}
