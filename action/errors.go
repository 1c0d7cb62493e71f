package action

import "fmt"

// ConflictError is returned by AddAction when two actions of the same kind
// report CheckConflict (spec §4.6: "conflict: fails with a runtime error at
// source_line").
type ConflictError struct {
	Action     string
	SourceLine uint32
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("action %q conflicts with an earlier action (source line %d)", e.Action, e.SourceLine)
}

var errNoStoreTarget = fmt.Errorf("action: store context missing a mailbox")
