package coreops

import (
	"github.com/sievebox/sievecore/bytecode"
	"github.com/sievebox/sievecore/interp"
	"github.com/sievebox/sievecore/operand"
)

// readJumpOperand reads a jump instruction's payload: a 4-byte signed
// offset (relative to the offset's own first byte, per spec §4.5) followed
// by a single break_loops flag byte.
func readJumpOperand(buf []byte, off int) (jmpStart uint32, offset int32, breakLoops bool, consumed int, err error) {
	jmpStart = uint32(off)
	offset, err = bytecode.ReadOffset(buf, off)
	if err != nil {
		return 0, 0, false, 0, err
	}
	flagOff := off + 4
	if flagOff >= len(buf) {
		return 0, 0, false, 0, errTruncated
	}
	return jmpStart, offset, buf[flagOff] != 0, 5, nil
}

func doJump(renv any, pc *uint32, conditional int) operand.Status {
	r := renv.(*interp.RunEnv)
	blk := r.CurBlock
	jmpStart, offset, breakLoops, n, err := readJumpOperand(blk.Buf, int(*pc))
	if err != nil {
		return operand.StatusBinCorrupt
	}
	*pc += uint32(n)

	take := true
	switch conditional {
	case 1: // jmptrue
		take = r.TestResult
	case 2: // jmpfalse
		take = !r.TestResult
	}
	if !take {
		return operand.StatusOK
	}

	target, err := r.Jump(uint32(len(blk.Buf)), jmpStart, offset, breakLoops)
	if err != nil {
		return operand.StatusBinCorrupt
	}
	*pc = target
	return operand.StatusOK
}

func execJmp(renv any, pc *uint32) operand.Status      { return doJump(renv, pc, 0) }
func execJmpTrue(renv any, pc *uint32) operand.Status  { return doJump(renv, pc, 1) }
func execJmpFalse(renv any, pc *uint32) operand.Status { return doJump(renv, pc, 2) }
