// Package coreops implements the Sieve core operation table (spec §4.3's
// "core operation table"): the base-language opcodes (jumps, loops,
// header/address/size/exists tests, and the keep/discard/stop/redirect/
// fileinto actions) every binary can dispatch without linking an
// extension. Extension-contributed operations live in their own private
// tables, resolved through operand.CustomBase per spec §4.3.
package coreops

import "github.com/sievebox/sievecore/operand"

// Core opcodes. Values are stable for the lifetime of the bytecode format;
// an assembler/generator targeting this core table must use exactly these
// codes.
const (
	OpJmp = iota
	OpJmpTrue
	OpJmpFalse
	OpTestHeader
	OpTestAddress
	OpTestSize
	OpTestExists
	OpTestNot
	OpTestTrue
	OpTestFalse
	OpLoopStart
	OpLoopNext
	OpLoopBreak
	OpKeep
	OpDiscard
	OpStop
	OpRedirect
	OpFileinto
)

// NewCoreTable builds the process-wide core operation table. Callers
// (typically the sieve orchestrator, once at process init) register it as
// every binary's base dispatch table.
func NewCoreTable() *operand.OperationTable {
	t := operand.NewOperationTable()
	t.Register(&operand.Operation{Mnemonic: "jmp", Code: OpJmp, Execute: execJmp})
	t.Register(&operand.Operation{Mnemonic: "jmptrue", Code: OpJmpTrue, Execute: execJmpTrue})
	t.Register(&operand.Operation{Mnemonic: "jmpfalse", Code: OpJmpFalse, Execute: execJmpFalse})
	t.Register(&operand.Operation{Mnemonic: "test_header", Code: OpTestHeader, Execute: execTestHeader})
	t.Register(&operand.Operation{Mnemonic: "test_address", Code: OpTestAddress, Execute: execTestAddress})
	t.Register(&operand.Operation{Mnemonic: "test_size", Code: OpTestSize, Execute: execTestSize})
	t.Register(&operand.Operation{Mnemonic: "test_exists", Code: OpTestExists, Execute: execTestExists})
	t.Register(&operand.Operation{Mnemonic: "test_not", Code: OpTestNot, Execute: execTestNot})
	t.Register(&operand.Operation{Mnemonic: "test_true", Code: OpTestTrue, Execute: execTestTrue})
	t.Register(&operand.Operation{Mnemonic: "test_false", Code: OpTestFalse, Execute: execTestFalse})
	t.Register(&operand.Operation{Mnemonic: "loop_start", Code: OpLoopStart, Execute: execLoopStart})
	t.Register(&operand.Operation{Mnemonic: "loop_next", Code: OpLoopNext, Execute: execLoopNext})
	t.Register(&operand.Operation{Mnemonic: "loop_break", Code: OpLoopBreak, Execute: execLoopBreak})
	t.Register(&operand.Operation{Mnemonic: "keep", Code: OpKeep, Execute: execKeep})
	t.Register(&operand.Operation{Mnemonic: "discard", Code: OpDiscard, Execute: execDiscard})
	t.Register(&operand.Operation{Mnemonic: "stop", Code: OpStop, Execute: execStop})
	t.Register(&operand.Operation{Mnemonic: "redirect", Code: OpRedirect, Execute: execRedirect})
	t.Register(&operand.Operation{Mnemonic: "fileinto", Code: OpFileinto, Execute: execFileinto})
	return t
}
