// Package tui implements the bubbletea views sieve-test --tui renders: a
// live trace of dispatched opcodes and the resulting action commit plan.
package tui

import (
	"fmt"
	"strings"
)

// Run starts the appropriate TUI based on the view type.
// Returns an error if the view type doesn't support TUI.
func Run(viewType string, data any) error {
	if !IsTUISupported(viewType) {
		return fmt.Errorf("TUI mode is not supported for %s", viewType)
	}
	if strings.HasPrefix(viewType, "trace_") {
		return RunTraceTUI(viewType, data)
	}
	if strings.HasPrefix(viewType, "plan_") {
		return RunPlanTUI(viewType, data)
	}
	return fmt.Errorf("unknown view type: %s", viewType)
}

// IsTUISupported returns true if the view type supports TUI mode.
func IsTUISupported(viewType string) bool {
	supportedPrefixes := []string{"trace_", "plan_"}
	for _, prefix := range supportedPrefixes {
		if strings.HasPrefix(viewType, prefix) {
			return true
		}
	}
	return false
}

// SupportedTUIViews returns a list of view types that support TUI.
func SupportedTUIViews() []string {
	return []string{"trace_run", "plan_run"}
}
