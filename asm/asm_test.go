package asm_test

import (
	"testing"

	"github.com/sievebox/sievecore/asm"
	"github.com/sievebox/sievecore/bytecode"
	"github.com/sievebox/sievecore/coreops"
	"github.com/sievebox/sievecore/env"
	"github.com/sievebox/sievecore/extension"
	"github.com/sievebox/sievecore/interp"
	"github.com/sievebox/sievecore/operand"
)

func newEnv(b *bytecode.Binary, msg *env.Message) *interp.RunEnv {
	ops := coreops.NewCoreTable()
	return interp.NewRunEnv(b, &extension.LinkSet{}, ops, msg, &env.ScriptEnv{DefaultMailbox: "INBOX"})
}

// ifHeaderFileintoElseKeep is the assembly-source equivalent of:
//
//	if header :is "Subject" "hi" { fileinto "Work"; } else { keep; }
const ifHeaderFileintoElseKeep = `
test_header "Subject" is i;ascii-casemap "hi"
jmpfalse else_branch
fileinto 1 "Work"
jmp end
else_branch:
keep 2
end:
`

func TestAssembleTakesFileintoBranch(t *testing.T) {
	b, err := asm.Assemble("s", ifHeaderFileintoElseKeep)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	msg := &env.Message{ID: "a@x", Headers: map[string][]string{"Subject": {"hi"}}}
	r := newEnv(b, msg)

	status := r.Run(bytecode.MainBlockID)
	if status != operand.StatusOK {
		t.Fatalf("status = %v", status)
	}
	actions := r.Result.Actions()
	if len(actions) != 1 || actions[0].Name() != "store" {
		t.Fatalf("expected one store action, got %v", actions)
	}

	out, err := r.Result.Commit(msg, r.Env)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if out.KeepAttempted {
		t.Fatalf("fileinto should suppress implicit keep")
	}
	if len(out.Log) != 1 || out.Log[0] != `store into "Work" skipped (no mail namespace)` {
		t.Fatalf("log = %v", out.Log)
	}
}

func TestAssembleTakesKeepBranch(t *testing.T) {
	b, err := asm.Assemble("s", ifHeaderFileintoElseKeep)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	msg := &env.Message{ID: "b@x", Headers: map[string][]string{"Subject": {"bye"}}}
	r := newEnv(b, msg)

	status := r.Run(bytecode.MainBlockID)
	if status != operand.StatusOK {
		t.Fatalf("status = %v", status)
	}
	actions := r.Result.Actions()
	if len(actions) != 1 || actions[0].Name() != "store" {
		t.Fatalf("expected one store (keep) action, got %v", actions)
	}
}

func TestAssembleLoopBreakUnwindsFrame(t *testing.T) {
	src := `
loop_start loop_end
loop_break 1
loop_end:
`
	b, err := asm.Assemble("s", src)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	msg := &env.Message{ID: "c@x"}
	r := newEnv(b, msg)

	status := r.Run(bytecode.MainBlockID)
	if status != operand.StatusOK {
		t.Fatalf("status = %v", status)
	}
	if r.Loops.Depth() != 0 {
		t.Fatalf("expected loop_break to leave no open frames")
	}
}

func TestAssembleBreakLoopsJumpClosesFrame(t *testing.T) {
	// A jump carrying break_loops=true past the loop's end_pc unwinds the
	// open frame without ever reaching loop_next.
	src := `
loop_start loop_end
jmp loop_end break
loop_end:
stop 1
`
	b, err := asm.Assemble("s", src)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	msg := &env.Message{ID: "d@x"}
	r := newEnv(b, msg)

	status := r.Run(bytecode.MainBlockID)
	if status != operand.StatusOK {
		t.Fatalf("status = %v", status)
	}
	if r.Loops.Depth() != 0 {
		t.Fatalf("expected the break-loops jump to close the open frame")
	}
}

func TestAssembleLoopNextWithoutFrameIsCorrupt(t *testing.T) {
	// loop_next verifies its begin_pc against the innermost open frame; with
	// no loop_start ever pushed, there is no frame to verify against.
	src := `
loop_next here
here:
stop 1
`
	b, err := asm.Assemble("s", src)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	msg := &env.Message{ID: "i@x"}
	r := newEnv(b, msg)

	if status := r.Run(bytecode.MainBlockID); status != operand.StatusBinCorrupt {
		t.Fatalf("status = %v, want StatusBinCorrupt", status)
	}
}

func TestAssembleTestExistsBranch(t *testing.T) {
	src := `
test_exists "Subject","Date"
jmptrue found
stop 1
found:
keep 2
`
	b, err := asm.Assemble("s", src)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	msg := &env.Message{ID: "e@x", Headers: map[string][]string{"Subject": {"hi"}, "Date": {"today"}}}
	r := newEnv(b, msg)

	status := r.Run(bytecode.MainBlockID)
	if status != operand.StatusOK {
		t.Fatalf("status = %v", status)
	}
	actions := r.Result.Actions()
	if len(actions) != 1 || actions[0].Name() != "store" {
		t.Fatalf("expected the exists test to take the keep branch, got %v", actions)
	}
}

func TestAssembleTestSizeOver(t *testing.T) {
	src := `
test_size over 10
jmpfalse small
stop 1
small:
keep 1
`
	b, err := asm.Assemble("s", src)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	msg := &env.Message{ID: "f@x", Size: 20}
	r := newEnv(b, msg)

	status := r.Run(bytecode.MainBlockID)
	if status != operand.StatusOK {
		t.Fatalf("status = %v", status)
	}
	if len(r.Result.Actions()) != 0 {
		t.Fatalf("expected the size test to take the stop branch, got %v", r.Result.Actions())
	}
}

func TestAssembleRedirectAndDiscard(t *testing.T) {
	src := `
redirect 1 "ops@example.com"
discard 2
`
	b, err := asm.Assemble("s", src)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	msg := &env.Message{ID: "g@x"}
	r := newEnv(b, msg)

	status := r.Run(bytecode.MainBlockID)
	if status != operand.StatusOK {
		t.Fatalf("status = %v", status)
	}
	actions := r.Result.Actions()
	if len(actions) != 2 || actions[0].Name() != "redirect" || actions[1].Name() != "discard" {
		t.Fatalf("actions = %v", actions)
	}
}

func TestAssembleUndefinedLabel(t *testing.T) {
	if _, err := asm.Assemble("s", "jmp nowhere\n"); err == nil {
		t.Fatalf("expected an error for an undefined label")
	}
}

func TestAssembleUnknownMnemonic(t *testing.T) {
	if _, err := asm.Assemble("s", "frobnicate\n"); err == nil {
		t.Fatalf("expected an error for an unknown mnemonic")
	}
}

func TestAssembleDuplicateLabel(t *testing.T) {
	src := "a:\nkeep 1\na:\nkeep 2\n"
	if _, err := asm.Assemble("s", src); err == nil {
		t.Fatalf("expected an error for a duplicate label")
	}
}

func TestAssembleComment(t *testing.T) {
	src := "# a whole-line comment\nstop 1 # trailing comment\n"
	b, err := asm.Assemble("s", src)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	msg := &env.Message{ID: "h@x"}
	r := newEnv(b, msg)
	if status := r.Run(bytecode.MainBlockID); status != operand.StatusOK {
		t.Fatalf("status = %v", status)
	}
	if !r.Interrupted {
		t.Fatalf("expected stop to have run")
	}
}

func TestMnemonicsMatchesCoreOpsCount(t *testing.T) {
	if got, want := len(asm.Mnemonics()), 18; got != want {
		t.Fatalf("Mnemonics() returned %d entries, want %d (one per coreops opcode)", got, want)
	}
}
