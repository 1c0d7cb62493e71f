// Package action implements the result builder and two-phase commit action
// protocol described in spec §4.6: actions accumulate during script
// execution via AddAction (with duplicate-collapsing and conflict
// detection), and Commit runs the start/execute/commit-or-rollback pipeline
// that ends in exactly one terminal call per action that started, plus an
// implicit keep when nothing that ran carried TriesDeliver.
package action

import "github.com/sievebox/sievecore/env"

// Flag marks a behavioral property of an action definition.
type Flag uint32

// FlagTriesDeliver marks an action that may count toward "delivered" for
// the implicit-keep computation (spec §4.6).
const FlagTriesDeliver Flag = 1 << iota

// CheckResult is check_duplicate's three-way outcome.
type CheckResult int

const (
	CheckDistinct  CheckResult = 0
	CheckDuplicate CheckResult = 1
	CheckConflict  CheckResult = -1
)

// Def is an action definition: the four lifecycle hooks plus the predicates
// AddAction uses to collapse duplicates. Implementations receive their own
// per-action context (ctx) and must type-assert it; ctx is opaque to the
// result builder.
type Def interface {
	Name() string
	Flags() Flag

	// Equals reports structural equality between two contexts of this
	// action's own type, used by callers outside AddAction (e.g. tests).
	Equals(a, b any) bool

	// CheckDuplicate compares a not-yet-added context against an existing
	// entry's context (which may belong to a different action kind — an
	// implementation must return CheckDistinct when existing is not its
	// own context type).
	CheckDuplicate(newCtx, existingCtx any) CheckResult

	// Start acquires whatever resource this action needs (e.g. opens a
	// mailbox). A dry-run environment (senv.Namespaces == nil) must be a
	// no-op returning nil.
	Start(ctx any, msg *env.Message, senv *env.ScriptEnv) error
	// Execute performs the actual work.
	Execute(ctx any, msg *env.Message, senv *env.ScriptEnv) error
	// Commit finalizes a successfully executed action. keepOut, when true,
	// cancels the implicit keep this run would otherwise perform.
	Commit(ctx any, msg *env.Message, senv *env.ScriptEnv) (keepOut bool, err error)
	// Rollback undoes a Start that was never committed.
	Rollback(ctx any, msg *env.Message, senv *env.ScriptEnv)
	// Print renders ctx for dry-run / sieve-test output.
	Print(ctx any) string
}

// unionStrings merges b into a, preserving a's order and appending any of
// b's elements not already present (spec: "merges side-effects ... list
// union; keywords unioned").
func unionStrings(a, b []string) []string {
	seen := make(map[string]bool, len(a))
	for _, s := range a {
		seen[s] = true
	}
	out := append([]string(nil), a...)
	for _, s := range b {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func dedupStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
