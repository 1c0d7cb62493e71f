package coreops

import (
	"github.com/sievebox/sievecore/action"
	"github.com/sievebox/sievecore/bytecode"
	"github.com/sievebox/sievecore/interp"
	"github.com/sievebox/sievecore/operand"
)

func execKeep(renv any, pc *uint32) operand.Status {
	r := renv.(*interp.RunEnv)
	buf := r.CurBlock.Buf
	line, n, err := bytecode.ReadVarint(buf, int(*pc), 32)
	if err != nil {
		return operand.StatusBinCorrupt
	}
	flags, n2, err := operand.ReadStringListOperand(buf, int(*pc)+n)
	if err != nil {
		return operand.StatusBinCorrupt
	}
	*pc += uint32(n + n2)

	mailbox := "INBOX"
	if r.Env != nil && r.Env.DefaultMailbox != "" {
		mailbox = r.Env.DefaultMailbox
	}
	ctx := &action.StoreContext{Mailbox: mailbox, Flags: flags}
	if err := r.Result.AddAction(action.StoreAction{}, ctx, nil, uint32(line)); err != nil {
		return operand.StatusFailure
	}
	return operand.StatusOK
}

func execDiscard(renv any, pc *uint32) operand.Status {
	r := renv.(*interp.RunEnv)
	line, n, err := bytecode.ReadVarint(r.CurBlock.Buf, int(*pc), 32)
	if err != nil {
		return operand.StatusBinCorrupt
	}
	*pc += uint32(n)
	if err := r.Result.AddAction(action.DiscardAction{}, &action.DiscardContext{}, nil, uint32(line)); err != nil {
		return operand.StatusFailure
	}
	return operand.StatusOK
}

func execStop(renv any, pc *uint32) operand.Status {
	renv.(*interp.RunEnv).Interrupted = true
	return operand.StatusOK
}

func execRedirect(renv any, pc *uint32) operand.Status {
	r := renv.(*interp.RunEnv)
	buf := r.CurBlock.Buf
	line, n, err := bytecode.ReadVarint(buf, int(*pc), 32)
	if err != nil {
		return operand.StatusBinCorrupt
	}
	addr, n2, err := operand.ReadStringOperand(buf, int(*pc)+n)
	if err != nil {
		return operand.StatusBinCorrupt
	}
	*pc += uint32(n + n2)

	if action.CheckRedirectDuplicate(r.Env, r.Message) {
		return operand.StatusOK
	}
	ctx := &action.RedirectContext{Address: addr}
	if err := r.Result.AddAction(action.RedirectAction{}, ctx, nil, uint32(line)); err != nil {
		return operand.StatusFailure
	}
	return operand.StatusOK
}

// execFileinto implements "fileinto" (spec glossary lists it as an action
// alongside store/redirect/discard; this core treats it as always
// available rather than gated behind a `require ["fileinto"]` check, since
// enforcing require-gating is the excluded semantic validator's job, not
// this runtime's — see spec.md's Non-goals).
func execFileinto(renv any, pc *uint32) operand.Status {
	r := renv.(*interp.RunEnv)
	buf := r.CurBlock.Buf
	line, n, err := bytecode.ReadVarint(buf, int(*pc), 32)
	if err != nil {
		return operand.StatusBinCorrupt
	}
	off := int(*pc) + n
	mailbox, n2, err := operand.ReadStringOperand(buf, off)
	if err != nil {
		return operand.StatusBinCorrupt
	}
	off += n2
	flags, n3, err := operand.ReadStringListOperand(buf, off)
	if err != nil {
		return operand.StatusBinCorrupt
	}
	*pc += uint32(n + n2 + n3)

	ctx := &action.StoreContext{Mailbox: mailbox, Flags: flags}
	if err := r.Result.AddAction(action.StoreAction{}, ctx, nil, uint32(line)); err != nil {
		return operand.StatusFailure
	}
	return operand.StatusOK
}
