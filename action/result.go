package action

import (
	"fmt"

	"github.com/sievebox/sievecore/env"
)

type entry struct {
	def         Def
	ctx         any
	sideEffects []string
	sourceLine  uint32
}

// Result accumulates actions during one script's interpretation and runs
// the two-phase commit protocol described in spec §4.6. It is not safe for
// concurrent use; per spec §5 exactly one interpreter (and its result)
// executes at a time.
type Result struct {
	entries              []*entry
	implicitKeepDisabled bool
}

// NewResult returns an empty result with implicit keep enabled.
func NewResult() *Result { return &Result{} }

// AddAction runs the duplicate-collapsing algorithm from spec §4.6: every
// existing entry is offered check_duplicate against the new context; a
// conflict aborts with an error naming sourceLine, a duplicate merges side
// effects into the existing entry and discards the new context, and
// otherwise the new action is appended.
func (r *Result) AddAction(def Def, ctx any, sideEffects []string, sourceLine uint32) error {
	for _, e := range r.entries {
		switch def.CheckDuplicate(ctx, e.ctx) {
		case CheckConflict:
			return &ConflictError{Action: def.Name(), SourceLine: sourceLine}
		case CheckDuplicate:
			e.sideEffects = unionStrings(e.sideEffects, sideEffects)
			return nil
		}
	}
	r.entries = append(r.entries, &entry{
		def:         def,
		ctx:         ctx,
		sideEffects: dedupStrings(sideEffects),
		sourceLine:  sourceLine,
	})
	return nil
}

// DisableImplicitKeep turns off the implicit-keep fallback, used by
// multiscript between scripts whose result state is shared (spec §4.6).
func (r *Result) DisableImplicitKeep() { r.implicitKeepDisabled = true }

// EnableImplicitKeep restores the implicit-keep fallback, used by
// multiscript after the last script in the chain.
func (r *Result) EnableImplicitKeep() { r.implicitKeepDisabled = false }

// Actions returns the accumulated actions in insertion order, for
// inspection by dry-run tooling.
func (r *Result) Actions() []Def {
	out := make([]Def, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.def
	}
	return out
}

// CommitOutcome reports what the commit phase actually did, for the
// orchestrator's KEEP_FAILED determination and for sieve-test's plan
// output.
type CommitOutcome struct {
	KeepAttempted bool
	KeepSucceeded bool
	Log           []string
}

// Commit runs start -> execute -> commit-or-rollback over every action in
// insertion order, then performs the implicit keep when nothing that
// executed carried FlagTriesDeliver and no committed action cancelled it
// via keepOut (spec §4.6, invariants 6 and 7).
func (r *Result) Commit(msg *env.Message, senv *env.ScriptEnv) (*CommitOutcome, error) {
	out := &CommitOutcome{}

	started := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		if err := e.def.Start(e.ctx, msg, senv); err != nil {
			for i := len(started) - 1; i >= 0; i-- {
				started[i].def.Rollback(started[i].ctx, msg, senv)
			}
			return out, fmt.Errorf("action %q start: %w", e.def.Name(), err)
		}
		started = append(started, e)
	}

	executed := make([]*entry, 0, len(started))
	for _, e := range started {
		if err := e.def.Execute(e.ctx, msg, senv); err != nil {
			e.def.Rollback(e.ctx, msg, senv)
			continue
		}
		executed = append(executed, e)
	}

	delivered := false
	keepCancelled := false
	for i, e := range executed {
		keepOut, err := e.def.Commit(e.ctx, msg, senv)
		if err != nil {
			for j := len(executed) - 1; j >= i; j-- {
				executed[j].def.Rollback(executed[j].ctx, msg, senv)
			}
			return out, fmt.Errorf("action %q commit: %w", e.def.Name(), err)
		}
		out.Log = append(out.Log, e.def.Print(e.ctx))
		if e.def.Flags()&FlagTriesDeliver != 0 {
			delivered = true
		}
		// A committed store into the default mailbox is an explicit keep.
		if sc, ok := e.ctx.(*StoreContext); ok && mailboxEqual(sc.Mailbox, senv.DefaultMailbox) {
			out.KeepSucceeded = true
		}
		if keepOut {
			keepCancelled = true
		}
	}

	if !delivered && !keepCancelled && !r.implicitKeepDisabled {
		out.KeepAttempted = true
		keepDef := StoreAction{}
		keepCtx := &StoreContext{Mailbox: senv.DefaultMailbox}
		if senv.ExecStatus != nil {
			senv.ExecStatus.TriedDefaultSave = true
		}
		if err := keepDef.Start(keepCtx, msg, senv); err == nil {
			if err := keepDef.Execute(keepCtx, msg, senv); err == nil {
				if _, err := keepDef.Commit(keepCtx, msg, senv); err == nil {
					out.KeepSucceeded = true
					out.Log = append(out.Log, keepDef.Print(keepCtx))
				} else {
					keepDef.Rollback(keepCtx, msg, senv)
				}
			} else {
				keepDef.Rollback(keepCtx, msg, senv)
			}
		}
	}

	return out, nil
}
