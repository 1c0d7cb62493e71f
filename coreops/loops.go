package coreops

import (
	"github.com/sievebox/sievecore/bytecode"
	"github.com/sievebox/sievecore/interp"
	"github.com/sievebox/sievecore/operand"
)

// execLoopStart reads an absolute end_pc varint operand, pushes a loop
// frame whose begin_pc is the position right after this instruction (the
// loop body's first byte), and updates loop_limit (spec §4.5).
func execLoopStart(renv any, pc *uint32) operand.Status {
	r := renv.(*interp.RunEnv)
	endPC, n, err := bytecode.ReadVarint(r.CurBlock.Buf, int(*pc), 32)
	if err != nil {
		return operand.StatusBinCorrupt
	}
	*pc += uint32(n)
	if _, err := r.Loops.Push(*pc, uint32(endPC), uint32(len(r.CurBlock.Buf)), -1); err != nil {
		return operand.StatusBinCorrupt
	}
	return operand.StatusOK
}

// execLoopNext reads the begin_pc varint the compiler expects, verifies it
// against the innermost frame, and resets pc to it.
func execLoopNext(renv any, pc *uint32) operand.Status {
	r := renv.(*interp.RunEnv)
	beginPC, n, err := bytecode.ReadVarint(r.CurBlock.Buf, int(*pc), 32)
	if err != nil {
		return operand.StatusBinCorrupt
	}
	*pc += uint32(n)
	target, err := r.Loops.Next(uint32(beginPC))
	if err != nil {
		return operand.StatusBinCorrupt
	}
	*pc = target
	return operand.StatusOK
}

// execLoopBreak reads a statically known nesting count and unwinds that
// many innermost loop frames.
func execLoopBreak(renv any, pc *uint32) operand.Status {
	r := renv.(*interp.RunEnv)
	levels, n, err := bytecode.ReadVarint(r.CurBlock.Buf, int(*pc), 32)
	if err != nil {
		return operand.StatusBinCorrupt
	}
	*pc += uint32(n)
	_, resumePC, err := r.Loops.BreakLevels(int(levels))
	if err != nil {
		return operand.StatusBinCorrupt
	}
	*pc = resumePC
	return operand.StatusOK
}
