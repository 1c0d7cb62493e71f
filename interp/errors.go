package interp

import "fmt"

var (
	errJumpOutOfRange  = fmt.Errorf("interp: jump target out of range")
	errLoopLimit       = fmt.Errorf("interp: jump target beyond innermost loop limit")
	errLoopNesting     = fmt.Errorf("interp: loop nesting exceeds maximum depth")
	errLoopNextMismatch = fmt.Errorf("interp: loop_next begin_pc does not match frame")
	errNoSuchLoopFrame = fmt.Errorf("interp: loop_break references an unknown frame")
)
