package action

import (
	"fmt"
	"strings"

	"github.com/sievebox/sievecore/env"
)

// NotifyContext carries the notify extension's (RFC 5435) method URI and
// message text.
type NotifyContext struct {
	Method  string
	Message string
}

// Notifier is the out-of-band delivery hook for the notify action; the
// notifyhook package's WebhookNotifier implements it over a mailto-adjacent
// webhook URL.
type Notifier interface {
	Notify(method, message string) error
}

// NotifyAction implements the "notify" extension's action. It never tries
// to deliver the message itself (no FlagTriesDeliver): notify is a side
// channel, not a disposition.
type NotifyAction struct{}

func (NotifyAction) Name() string { return "notify" }

func (NotifyAction) Flags() Flag { return 0 }

func (NotifyAction) Equals(a, b any) bool {
	ca, ok1 := a.(*NotifyContext)
	cb, ok2 := b.(*NotifyContext)
	return ok1 && ok2 && ca.Method == cb.Method && ca.Message == cb.Message
}

func (NotifyAction) CheckDuplicate(newCtx, existingCtx any) CheckResult {
	existing, ok := existingCtx.(*NotifyContext)
	if !ok {
		return CheckDistinct
	}
	nc := newCtx.(*NotifyContext)
	if nc.Method == existing.Method && nc.Message == existing.Message {
		return CheckDuplicate
	}
	return CheckDistinct
}

// errUnsupportedNotifyScheme surfaces as a NOT_VALID runtime error per
// spec §7: the action layer validates only what it can actually dispatch,
// not general URI well-formedness (that is the excluded semantic
// validator's job).
var errUnsupportedNotifyScheme = fmt.Errorf("action: unsupported notify method scheme")

func (NotifyAction) Start(ctx any, msg *env.Message, senv *env.ScriptEnv) error {
	c := ctx.(*NotifyContext)
	if !strings.HasPrefix(c.Method, "mailto:") {
		return fmt.Errorf("%w: %s", errUnsupportedNotifyScheme, c.Method)
	}
	return nil
}

func (NotifyAction) Execute(ctx any, msg *env.Message, senv *env.ScriptEnv) error {
	c := ctx.(*NotifyContext)
	if senv.Namespaces == nil {
		return nil
	}
	n, ok := senv.Namespaces.(Notifier)
	if !ok {
		return nil
	}
	return n.Notify(c.Method, c.Message)
}

func (NotifyAction) Commit(ctx any, msg *env.Message, senv *env.ScriptEnv) (bool, error) {
	return false, nil
}

func (NotifyAction) Rollback(ctx any, msg *env.Message, senv *env.ScriptEnv) {}

func (NotifyAction) Print(ctx any) string {
	return fmt.Sprintf("sent notification to %q", ctx.(*NotifyContext).Method)
}
