package action

import (
	"fmt"
	"time"

	"github.com/sievebox/sievecore/env"
)

// RedirectContext carries the forwarding address. Two redirects to the same
// address collapse into one (CheckDuplicate); the duplicate-message check
// against DuplicateCheck happens before AddAction is called at all (spec
// §4.6: "the result consults an external predicate ... before adding
// redirect-class actions"), not inside this Def — see CheckRedirectDuplicate.
type RedirectContext struct {
	Address string
}

// RedirectAction implements the "redirect" command.
type RedirectAction struct{}

func (RedirectAction) Name() string { return "redirect" }

func (RedirectAction) Flags() Flag { return FlagTriesDeliver }

func (RedirectAction) Equals(a, b any) bool {
	ca, ok1 := a.(*RedirectContext)
	cb, ok2 := b.(*RedirectContext)
	return ok1 && ok2 && ca.Address == cb.Address
}

func (RedirectAction) CheckDuplicate(newCtx, existingCtx any) CheckResult {
	existing, ok := existingCtx.(*RedirectContext)
	if !ok {
		return CheckDistinct
	}
	nc := newCtx.(*RedirectContext)
	if nc.Address == existing.Address {
		return CheckDuplicate
	}
	return CheckDistinct
}

func (RedirectAction) Start(ctx any, msg *env.Message, senv *env.ScriptEnv) error {
	c := ctx.(*RedirectContext)
	if c.Address == "" {
		return fmt.Errorf("action: redirect missing an address")
	}
	return nil
}

func (RedirectAction) Execute(ctx any, msg *env.Message, senv *env.ScriptEnv) error {
	c := ctx.(*RedirectContext)
	if senv.Namespaces == nil {
		return nil
	}
	fw, ok := senv.Namespaces.(Forwarder)
	if !ok {
		return nil
	}
	return fw.Forward(c.Address, msg)
}

func (RedirectAction) Commit(ctx any, msg *env.Message, senv *env.ScriptEnv) (bool, error) {
	if senv.DuplicateMark != nil && msg != nil {
		senv.DuplicateMark(msg.ID, msg.Size, senv.Username, time.Now())
	}
	return false, nil
}

func (RedirectAction) Rollback(ctx any, msg *env.Message, senv *env.ScriptEnv) {}

func (RedirectAction) Print(ctx any) string {
	return fmt.Sprintf("redirected message to <%s>", ctx.(*RedirectContext).Address)
}

// Forwarder is the host hook that actually delivers a redirected message
// (e.g. relays it to an outbound MTA). MailboxStore implementations that
// also forward mail should implement this too.
type Forwarder interface {
	Forward(address string, msg *env.Message) error
}

// CheckRedirectDuplicate reports whether a redirect to a message already
// marked delivered should be suppressed, per spec §4.6's external
// duplicate_check predicate. Callers (the interpreter's redirect operation)
// call this before AddAction; a true result means "suppress".
func CheckRedirectDuplicate(senv *env.ScriptEnv, msg *env.Message) bool {
	if senv.DuplicateCheck == nil || msg == nil {
		return false
	}
	return senv.DuplicateCheck(msg.ID, msg.Size, senv.Username)
}
