package action

import "github.com/sievebox/sievecore/env"

// DiscardContext carries nothing: a script may request at most one
// effective discard, which CheckDuplicate enforces by always reporting
// CheckDuplicate for a second discard in the same result (discarding twice
// is the same as discarding once).
type DiscardContext struct{}

// DiscardAction implements the "discard" command: it does not carry
// FlagTriesDeliver, so it never attempts delivery itself, but its Commit
// unconditionally cancels the implicit keep (RFC 5228 §4.5) — a bare
// "discard;" always means the message is not delivered.
type DiscardAction struct{}

func (DiscardAction) Name() string { return "discard" }

func (DiscardAction) Flags() Flag { return 0 }

func (DiscardAction) Equals(a, b any) bool {
	_, ok1 := a.(*DiscardContext)
	_, ok2 := b.(*DiscardContext)
	return ok1 && ok2
}

func (DiscardAction) CheckDuplicate(newCtx, existingCtx any) CheckResult {
	if _, ok := existingCtx.(*DiscardContext); ok {
		return CheckDuplicate
	}
	return CheckDistinct
}

func (DiscardAction) Start(ctx any, msg *env.Message, senv *env.ScriptEnv) error { return nil }

func (DiscardAction) Execute(ctx any, msg *env.Message, senv *env.ScriptEnv) error { return nil }

func (DiscardAction) Commit(ctx any, msg *env.Message, senv *env.ScriptEnv) (bool, error) {
	// Cancel the implicit keep: discard means "I have handled delivery by
	// not delivering", per RFC 5228 §4.5.
	return true, nil
}

func (DiscardAction) Rollback(ctx any, msg *env.Message, senv *env.ScriptEnv) {}

func (DiscardAction) Print(ctx any) string { return "discarded message" }
