package operand

import "errors"

var (
	errTruncated    = errors.New("operand truncated")
	errClassMismatch = errors.New("operand class mismatch")
	errUnknownOpcode = errors.New("unknown opcode")
)
