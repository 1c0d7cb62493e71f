package interp

import (
	"testing"

	"github.com/sievebox/sievecore/bytecode"
	"github.com/sievebox/sievecore/env"
	"github.com/sievebox/sievecore/extension"
	"github.com/sievebox/sievecore/operand"
)

func newTestRunEnv(b *bytecode.Binary, ops *operand.OperationTable) *RunEnv {
	ls := &extension.LinkSet{}
	return NewRunEnv(b, ls, ops, &env.Message{ID: "m1"}, &env.ScriptEnv{DefaultMailbox: "INBOX"})
}

func TestRunDispatchesUntilBlockEnd(t *testing.T) {
	b := bytecode.New("t")
	b.EmitVarint(0)
	b.EmitVarint(0)

	var calls int
	ops := operand.NewOperationTable()
	ops.Register(&operand.Operation{Mnemonic: "nop", Code: 0, Execute: func(renv any, pc *uint32) operand.Status {
		calls++
		return operand.StatusOK
	}})

	r := newTestRunEnv(b, ops)
	status := r.Run(bytecode.MainBlockID)
	if status != operand.StatusOK {
		t.Fatalf("status = %v, want OK", status)
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
}

func TestRunStopsOnNonOKStatus(t *testing.T) {
	b := bytecode.New("t")
	b.EmitVarint(0)
	b.EmitVarint(1)
	b.EmitVarint(0)

	var order []uint32
	ops := operand.NewOperationTable()
	ops.Register(&operand.Operation{Mnemonic: "ok", Code: 0, Execute: func(renv any, pc *uint32) operand.Status {
		order = append(order, 0)
		return operand.StatusOK
	}})
	ops.Register(&operand.Operation{Mnemonic: "fail", Code: 1, Execute: func(renv any, pc *uint32) operand.Status {
		order = append(order, 1)
		return operand.StatusFailure
	}})

	r := newTestRunEnv(b, ops)
	status := r.Run(bytecode.MainBlockID)
	if status != operand.StatusFailure {
		t.Fatalf("status = %v, want FAILURE", status)
	}
	if len(order) != 2 {
		t.Fatalf("expected exactly 2 ops dispatched before stopping, got %v", order)
	}
}

func TestRunUnknownOpcodeIsBinCorrupt(t *testing.T) {
	b := bytecode.New("t")
	b.EmitVarint(42)

	ops := operand.NewOperationTable()
	r := newTestRunEnv(b, ops)
	status := r.Run(bytecode.MainBlockID)
	if status != operand.StatusBinCorrupt {
		t.Fatalf("status = %v, want BIN_CORRUPT", status)
	}
}

func TestJumpValidation(t *testing.T) {
	r := &RunEnv{}
	target, err := r.Jump(100, 10, 20, false)
	if err != nil || target != 30 {
		t.Fatalf("target=%d err=%v, want 30/nil", target, err)
	}

	if _, err := r.Jump(100, 10, 200, false); err == nil {
		t.Fatalf("expected out-of-range jump to fail")
	}

	if _, err := r.Jump(100, 10, -20, false); err == nil {
		t.Fatalf("expected non-positive target to fail")
	}

	r.Loops.Push(0, 40, 100, -1)
	if _, err := r.Jump(100, 10, 35, false); err == nil {
		t.Fatalf("expected jump beyond loop_limit to fail without break_loops")
	}
	if target, err := r.Jump(100, 10, 35, true); err != nil || target != 45 {
		t.Fatalf("break_loops jump: target=%d err=%v, want 45/nil", target, err)
	}
	if r.Loops.Depth() != 0 {
		t.Fatalf("expected break_loops jump to unwind the crossed loop frame")
	}
}
