package frp

import (
	"fmt"
	"sync/atomic"
)

// NodeID identifies a node within its Runtime's arena.
// The generation makes stale ids resolve to nothing once a slot is reused.
type NodeID struct {
	Index      uint32 `json:"index"`
	Generation uint32 `json:"generation"`
}

// IsZero reports whether id was never assigned.
func (id NodeID) IsZero() bool {
	return id.Generation == 0
}

// String returns the id as "index.generation".
func (id NodeID) String() string {
	return fmt.Sprintf("%d.%d", id.Index, id.Generation)
}

// globalSeq is the source of sequence numbers for labels and networks.
var globalSeq uint64

// nextSeq returns the next process-wide sequence number. Never reused.
func nextSeq() uint64 {
	return atomic.AddUint64(&globalSeq, 1)
}
