package action

import (
	"fmt"
	"strings"

	"github.com/sievebox/sievecore/env"
)

// StoreContext is the per-action context for the canonical store action
// (spec §4.6): a target mailbox plus the flag/keyword side-effect sub-list
// applied alongside it. AddAction's duplicate-collapsing logic mutates
// Flags/Keywords in place via CheckDuplicate.
type StoreContext struct {
	Mailbox  string
	Flags    []string
	Keywords []string

	redundant bool
	disabled  bool
}

// StoreAction implements the "fileinto"/implicit-keep delivery action.
// Equality is case-sensitive except that "INBOX" is special-cased
// case-insensitively, per RFC 5228's canonical mailbox name.
type StoreAction struct{}

func (StoreAction) Name() string { return "store" }

func (StoreAction) Flags() Flag { return FlagTriesDeliver }

func mailboxEqual(a, b string) bool {
	if strings.EqualFold(a, "INBOX") && strings.EqualFold(b, "INBOX") {
		return true
	}
	return a == b
}

func (StoreAction) Equals(a, b any) bool {
	ca, ok1 := a.(*StoreContext)
	cb, ok2 := b.(*StoreContext)
	if !ok1 || !ok2 {
		return false
	}
	return mailboxEqual(ca.Mailbox, cb.Mailbox)
}

func (s StoreAction) CheckDuplicate(newCtx, existingCtx any) CheckResult {
	existing, ok := existingCtx.(*StoreContext)
	if !ok {
		return CheckDistinct
	}
	nc := newCtx.(*StoreContext)
	if !mailboxEqual(nc.Mailbox, existing.Mailbox) {
		return CheckDistinct
	}
	existing.Flags = unionStrings(existing.Flags, nc.Flags)
	existing.Keywords = unionStrings(existing.Keywords, nc.Keywords)
	return CheckDuplicate
}

func (StoreAction) Start(ctx any, msg *env.Message, senv *env.ScriptEnv) error {
	c := ctx.(*StoreContext)
	if c.Mailbox == "" {
		return errNoStoreTarget
	}
	if senv.Namespaces == nil {
		c.disabled = true
		return nil
	}
	if msg != nil && mailboxEqual(c.Mailbox, msg.OriginMailbox) {
		c.redundant = true
	}
	store, ok := senv.Namespaces.(MailboxStore)
	if !ok {
		return nil
	}
	return store.OpenMailbox(c.Mailbox, senv.MailboxAutocreate, senv.MailboxAutosubscribe)
}

func (StoreAction) Execute(ctx any, msg *env.Message, senv *env.ScriptEnv) error {
	c := ctx.(*StoreContext)
	if c.disabled {
		return nil
	}
	store, ok := senv.Namespaces.(MailboxStore)
	if !ok {
		return nil
	}
	if c.redundant {
		return store.UpdateFlags(c.Mailbox, msg, c.Flags, c.Keywords)
	}
	return store.Deliver(c.Mailbox, msg, c.Flags, c.Keywords)
}

func (StoreAction) Commit(ctx any, msg *env.Message, senv *env.ScriptEnv) (bool, error) {
	c := ctx.(*StoreContext)
	if c.disabled {
		return false, nil
	}
	if senv.ExecStatus != nil {
		senv.ExecStatus.MessageSaved = true
		senv.ExecStatus.LastStorage = c.Mailbox
	}
	return false, nil
}

func (StoreAction) Rollback(ctx any, msg *env.Message, senv *env.ScriptEnv) {}

func (StoreAction) Print(ctx any) string {
	c := ctx.(*StoreContext)
	if c.disabled {
		return fmt.Sprintf("store into %q skipped (no mail namespace)", c.Mailbox)
	}
	if c.redundant {
		return fmt.Sprintf("left message in mailbox %q", c.Mailbox)
	}
	return fmt.Sprintf("stored message into mailbox %q", c.Mailbox)
}

// MailboxStore is the host mailstore interface the store action needs.
// mailstore.FSStore and mailstore.S3Archive implement it.
type MailboxStore interface {
	OpenMailbox(name string, autocreate, autosubscribe bool) error
	Deliver(mailbox string, msg *env.Message, flags, keywords []string) error
	UpdateFlags(mailbox string, msg *env.Message, flags, keywords []string) error
}
