package errors

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"strings"
	"testing"

	"github.com/vango-dev/frp/pkg/frp"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		wantMsg string
		wantCat Category
	}{
		{
			name:    "runtime error",
			code:    "E101",
			wantMsg: "Reentrant notification",
			wantCat: CategoryRuntime,
		},
		{
			name:    "config error",
			code:    "E302",
			wantMsg: "Invalid configuration value",
			wantCat: CategoryConfig,
		},
		{
			name:    "protocol error",
			code:    "E402",
			wantMsg: "Unknown input target",
			wantCat: CategoryProtocol,
		},
		{
			name:    "unknown error code",
			code:    "E999",
			wantMsg: "Unknown error",
			wantCat: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code)
			if err.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", err.Message, tt.wantMsg)
			}
			if err.Category != tt.wantCat {
				t.Errorf("Category = %q, want %q", err.Category, tt.wantCat)
			}
			if err.Code != tt.code {
				t.Errorf("Code = %q, want %q", err.Code, tt.code)
			}
		})
	}
}

func TestEngineCodesRegistered(t *testing.T) {
	for _, code := range []string{
		frp.CodeReentrant,
		frp.CodeEmissionBudget,
		frp.CodeDeferredBudget,
		frp.CodeDisposed,
		frp.CodeInvalidInput,
	} {
		tmpl, ok := GetTemplate(code)
		if !ok {
			t.Errorf("code %s is not registered", code)
			continue
		}
		if tmpl.Category != CategoryRuntime {
			t.Errorf("%s category = %q, want runtime", code, tmpl.Category)
		}
	}
}

func TestError_Error(t *testing.T) {
	err := New("E101")
	if got, want := err.Error(), "E101: Reentrant notification"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	err2 := &Error{Message: "test error"}
	if err2.Error() != "test error" {
		t.Errorf("Error() = %q, want %q", err2.Error(), "test error")
	}
}

func TestFromNodeError(t *testing.T) {
	ne := &frp.NodeError{
		Code:   frp.CodeEmissionBudget,
		Node:   frp.NodeID{Index: 3, Generation: 1},
		Label:  "fanout",
		Detail: "step 4 delivered more than 10 notifications",
		Err:    frp.ErrBudgetExceeded,
	}

	err := FromNodeError(ne)
	if err.Code != "E102" {
		t.Errorf("Code = %q, want E102", err.Code)
	}
	if err.Detail != ne.Detail {
		t.Errorf("Detail = %q, want %q", err.Detail, ne.Detail)
	}
	if err.Node != "fanout (3.1)" {
		t.Errorf("Node = %q, want %q", err.Node, "fanout (3.1)")
	}
	if !stderrors.Is(err, frp.ErrBudgetExceeded) {
		t.Error("expected errors.Is to reach the budget sentinel")
	}

	if FromNodeError(nil) != nil {
		t.Error("FromNodeError(nil) should be nil")
	}
}

func TestFromError(t *testing.T) {
	if FromError(nil, "E301") != nil {
		t.Error("FromError(nil) should be nil")
	}

	base := stderrors.New("boom")
	err := FromError(base, "E301")
	if err.Code != "E301" || !stderrors.Is(err, base) {
		t.Errorf("FromError wrapped incorrectly: %+v", err)
	}

	same := New("E302")
	if FromError(same, "E301") != same {
		t.Error("FromError should return an *Error unchanged")
	}

	ne := &frp.NodeError{Code: frp.CodeDisposed, Err: frp.ErrNetworkDisposed}
	if got := FromError(ne, "E301"); got.Code != frp.CodeDisposed {
		t.Errorf("Code = %q, want %q", got.Code, frp.CodeDisposed)
	}
}

func TestFormat(t *testing.T) {
	DisableColors()
	defer EnableColors()

	err := New("E101").WithNode("counter (2.1)").WithExample("frp.Defer(net, s)")
	out := err.Format()

	for _, want := range []string{
		"ERROR E101: Reentrant notification",
		"node counter (2.1)",
		"Hint: Route the feedback edge through frp.Defer",
		"    frp.Defer(net, s)",
		"Learn more: https://frp.vango.dev/docs/errors/E101",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Format() missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\033[") {
		t.Error("Format() contains ANSI codes with colors disabled")
	}
}

func TestFormatCompact(t *testing.T) {
	err := New("E105").WithNode("n")
	if got, want := err.FormatCompact(), "E105: Invalid input handle [n]"; got != want {
		t.Errorf("FormatCompact() = %q, want %q", got, want)
	}
}

func TestFormatJSON(t *testing.T) {
	var got map[string]string
	if err := json.Unmarshal([]byte(New("E303").FormatJSON()), &got); err != nil {
		t.Fatalf("FormatJSON() is not valid JSON: %v", err)
	}
	if got["code"] != "E303" || got["category"] != "config" {
		t.Errorf("FormatJSON() = %v", got)
	}
	if _, ok := got["node"]; ok {
		t.Error("empty node should be omitted")
	}
}

func TestFprint(t *testing.T) {
	DisableColors()
	defer EnableColors()

	var buf bytes.Buffer
	Fprint(&buf, stderrors.New("plain"))
	if !strings.Contains(buf.String(), "ERROR: plain") {
		t.Errorf("Fprint(plain) = %q", buf.String())
	}

	buf.Reset()
	Fprint(&buf, New("E501"))
	if !strings.Contains(buf.String(), "ERROR E501: Unknown demo") {
		t.Errorf("Fprint(*Error) = %q", buf.String())
	}
}

func TestWrapText(t *testing.T) {
	lines := wrapText(strings.Repeat("word ", 30), 20)
	for _, l := range lines {
		if len(l) > 20 {
			t.Errorf("line %q longer than 20", l)
		}
	}
	if len(lines) < 2 {
		t.Errorf("expected wrapping, got %d lines", len(lines))
	}
	if wrapText("", 10) != nil {
		t.Error("wrapText(\"\") should be nil")
	}
}

func TestGetAllCodesSorted(t *testing.T) {
	codes := GetAllCodes()
	for i := 1; i < len(codes); i++ {
		if codes[i-1] >= codes[i] {
			t.Fatalf("codes not sorted: %v", codes)
		}
	}
}
