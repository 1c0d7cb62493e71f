package action

import (
	"fmt"
	"time"

	"github.com/sievebox/sievecore/env"
)

// VacationContext carries an auto-reply's recipient and body. Vacation
// shares the redirect-class duplicate-message protocol (spec glossary:
// "Action — a deferred, committable effect (store, redirect, discard,
// vacation, notify)"): CheckVacationDuplicate must be consulted before
// AddAction, exactly like CheckRedirectDuplicate.
type VacationContext struct {
	To      string
	Subject string
	Body    string
}

// VacationAction implements the "vacation" extension's auto-reply action.
type VacationAction struct{}

func (VacationAction) Name() string { return "vacation" }

func (VacationAction) Flags() Flag { return 0 }

func (VacationAction) Equals(a, b any) bool {
	ca, ok1 := a.(*VacationContext)
	cb, ok2 := b.(*VacationContext)
	return ok1 && ok2 && ca.To == cb.To
}

func (VacationAction) CheckDuplicate(newCtx, existingCtx any) CheckResult {
	existing, ok := existingCtx.(*VacationContext)
	if !ok {
		return CheckDistinct
	}
	nc := newCtx.(*VacationContext)
	if nc.To == existing.To {
		return CheckDuplicate
	}
	return CheckDistinct
}

func (VacationAction) Start(ctx any, msg *env.Message, senv *env.ScriptEnv) error {
	c := ctx.(*VacationContext)
	if c.To == "" {
		return fmt.Errorf("action: vacation missing a recipient")
	}
	return nil
}

func (VacationAction) Execute(ctx any, msg *env.Message, senv *env.ScriptEnv) error {
	c := ctx.(*VacationContext)
	if senv.Namespaces == nil {
		return nil
	}
	fw, ok := senv.Namespaces.(Forwarder)
	if !ok {
		return nil
	}
	reply := &env.Message{
		ID:      c.To + ":vacation",
		Headers: map[string][]string{"Subject": {c.Subject}},
		Raw:     []byte(c.Body),
	}
	return fw.Forward(c.To, reply)
}

func (VacationAction) Commit(ctx any, msg *env.Message, senv *env.ScriptEnv) (bool, error) {
	if senv.DuplicateMark != nil && msg != nil {
		senv.DuplicateMark(msg.ID+":vacation", len(ctx.(*VacationContext).Body), senv.Username, time.Now())
	}
	return false, nil
}

func (VacationAction) Rollback(ctx any, msg *env.Message, senv *env.ScriptEnv) {}

func (VacationAction) Print(ctx any) string {
	return fmt.Sprintf("sent vacation auto-reply to <%s>", ctx.(*VacationContext).To)
}

// CheckVacationDuplicate reports whether an auto-reply to this message was
// already sent, consulting the same duplicate_check predicate redirect
// uses but keyed with a ":vacation" suffix so the two extensions never
// collide in the dedup backend.
func CheckVacationDuplicate(senv *env.ScriptEnv, msg *env.Message) bool {
	if senv.DuplicateCheck == nil || msg == nil {
		return false
	}
	return senv.DuplicateCheck(msg.ID+":vacation", msg.Size, senv.Username)
}
