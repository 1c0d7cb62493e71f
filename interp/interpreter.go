// Package interp implements the Sieve bytecode interpreter (spec §4.5): the
// program counter, loop stack, jump validation, extension-context slots,
// and the main dispatch loop that drives operand.Operation.Execute.
package interp

import (
	"fmt"

	"github.com/sievebox/sievecore/action"
	"github.com/sievebox/sievecore/bytecode"
	"github.com/sievebox/sievecore/env"
	"github.com/sievebox/sievecore/extension"
	"github.com/sievebox/sievecore/match"
	"github.com/sievebox/sievecore/operand"
)

// RunEnv is the interpreter's runtime-env aggregate (spec §4.5: "runtime env
// aggregate (message data, script env, result pointer)"), passed as the
// opaque `renv any` every operand.Operation.Execute receives. Concrete
// operations type-assert their argument to *RunEnv.
type RunEnv struct {
	Binary  *bytecode.Binary
	Links   *extension.LinkSet
	CoreOps *operand.OperationTable

	Loops       LoopStack
	TestResult  bool
	Interrupted bool

	// extCtx holds interpreter-scoped extension context, indexed by global
	// extension id, grown on demand (spec §4.5: "reading an unallocated
	// slot yields empty").
	extCtx map[int]any

	Message *env.Message
	Env     *env.ScriptEnv
	Result  *action.Result

	Captures *match.ValueRegister

	Trace TraceSink

	// CurBlock is the block currently being dispatched by Run — operations
	// that need to read their own operands (jumps, loops, string/list
	// operands) read from here rather than Binary.Active(), which only
	// tracks the write-side cursor used during generation.
	CurBlock *bytecode.Block
}

// NewRunEnv builds a RunEnv ready to execute the given binary's main block
// against msg/senv, with links already resolved.
func NewRunEnv(b *bytecode.Binary, links *extension.LinkSet, coreOps *operand.OperationTable, msg *env.Message, senv *env.ScriptEnv) *RunEnv {
	return &RunEnv{
		Binary:   b,
		Links:    links,
		CoreOps:  coreOps,
		extCtx:   make(map[int]any),
		Message:  msg,
		Env:      senv,
		Result:   action.NewResult(),
		Captures: match.NewValueRegister(),
		Trace:    NopTrace{},
	}
}

// ExtContext returns the interpreter-scoped context slot for the extension
// identified by its process-global id, running init the first time it is
// requested.
func (r *RunEnv) ExtContext(globalID int, init func() any) any {
	if v, ok := r.extCtx[globalID]; ok {
		return v
	}
	v := init()
	r.extCtx[globalID] = v
	return v
}

// resolveOps returns the operation table an opcode byte should be dispatched
// through: the core table directly, or — for codes >= operand.CustomBase —
// the linked extension's own table, per spec §4.3's two-level scheme.
func (r *RunEnv) resolveOps(code uint32) (*operand.OperationTable, uint32, error) {
	if code < operand.CustomBase {
		return r.CoreOps, code, nil
	}
	localIdx := code - operand.CustomBase
	linked, ok := r.Links.ByLocal(localIdx)
	if !ok {
		return nil, 0, fmt.Errorf("interp: opcode references unlinked extension index %d", localIdx)
	}
	if linked.Descriptor.Operations == nil {
		return nil, 0, fmt.Errorf("interp: extension %q has no operations", linked.Descriptor.Name)
	}
	return linked.Descriptor.Operations, 0, nil
}

// Run executes the binary's main block (or, for a nested/sub-interpreter, a
// caller-supplied block) from pc=0 until the block ends, the interpreter is
// interrupted, or an operation returns a non-OK status (spec §4.5's main
// loop: "while pc < block_size && !interrupted: read opcode, dispatch").
func (r *RunEnv) Run(blockID uint32) operand.Status {
	blk := r.Binary.Block(blockID)
	if blk == nil {
		return operand.StatusBinCorrupt
	}
	r.CurBlock = blk
	blockSize := uint32(len(blk.Buf))

	var pc uint32
	for pc < blockSize && !r.Interrupted {
		opStart := pc
		code, n, err := bytecode.ReadVarint(blk.Buf, int(pc), 32)
		if err != nil {
			return operand.StatusBinCorrupt
		}
		pc += uint32(n)

		var extraByte uint32
		if uint32(code) >= operand.CustomBase {
			ext, n2, err := bytecode.ReadVarint(blk.Buf, int(pc), 32)
			if err != nil {
				return operand.StatusBinCorrupt
			}
			pc += uint32(n2)
			extraByte = uint32(ext)
		}

		table, lookupCode, err := r.resolveOps(uint32(code))
		if err != nil {
			return operand.StatusBinCorrupt
		}
		if uint32(code) >= operand.CustomBase {
			lookupCode = extraByte
		}
		op, err := table.Lookup(lookupCode)
		if err != nil {
			return operand.StatusBinCorrupt
		}

		status := op.Execute(r, &pc)
		r.Trace.Emit(TraceEvent{PC: opStart, Mnemonic: op.Mnemonic, Status: status.String(), TestResult: r.TestResult, LoopDepth: r.Loops.Depth()})
		if status != operand.StatusOK {
			return status
		}
		if pc > blockSize {
			return operand.StatusBinCorrupt
		}
	}
	return operand.StatusOK
}

// Jump validates and applies a jump target computed by the caller as
// jmpStart + offset (spec §4.5): 0 < target <= block_size, and unless
// breakLoops is set, target < loop_limit. On success it unwinds any loop
// frames a break_loops jump crosses and returns the new pc.
func (r *RunEnv) Jump(blockSize uint32, jmpStart uint32, offset int32, breakLoops bool) (uint32, error) {
	target := int64(jmpStart) + int64(offset)
	if target <= 0 || target > int64(blockSize) {
		return 0, errJumpOutOfRange
	}
	t := uint32(target)
	if breakLoops {
		r.Loops.BreakBelow(t)
		return t, nil
	}
	if limit := r.Loops.Limit(); limit != 0 && t >= limit {
		return 0, errLoopLimit
	}
	return t, nil
}
