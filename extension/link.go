package extension

import (
	"fmt"

	"github.com/sievebox/sievecore/bytecode"
)

// Linked is the runtime-resolved counterpart to a bytecode.LinkEntry: the
// local index the bytecode uses, the extension's global id and descriptor,
// and its per-binary context allocated from the descriptor's NewContext
// hook (freed when the owning Binary is released).
type Linked struct {
	LocalIndex uint32
	GlobalID   int
	Descriptor *Descriptor
	Context    *Context
	MainBlock  uint32
}

// LinkSet is the fully resolved, per-binary link table: local index ->
// Linked, plus a lookup by global id for extension-context slots indexed by
// global extension id (spec §4.5).
type LinkSet struct {
	byLocal  []Linked
	byGlobal map[int]*Linked
}

// Require links name into the set if not already present (idempotent,
// mirrors a script's `require` statement list). Returns the resulting local
// index.
func (ls *LinkSet) Require(reg *Registry, name string, mainBlock uint32) (uint32, error) {
	desc, gid, ok := reg.Lookup(name)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownExtension, name)
	}
	for _, l := range ls.byLocal {
		if l.GlobalID == gid {
			return l.LocalIndex, nil
		}
	}
	idx := uint32(len(ls.byLocal))
	var ctx *Context
	if desc.NewContext != nil {
		ctx = desc.NewContext()
	} else {
		ctx = &Context{}
	}
	l := Linked{LocalIndex: idx, GlobalID: gid, Descriptor: desc, Context: ctx, MainBlock: mainBlock}
	ls.byLocal = append(ls.byLocal, l)
	ls.byGlobal[gid] = &ls.byLocal[len(ls.byLocal)-1]
	return idx, nil
}

// ByLocal resolves a bytecode-local extension index.
func (ls *LinkSet) ByLocal(idx uint32) (*Linked, bool) {
	if int(idx) >= len(ls.byLocal) {
		return nil, false
	}
	return &ls.byLocal[idx], true
}

// ByGlobal resolves a process-global extension id (used for
// interpreter-scoped extension context slots, keyed by global id so they
// stay stable across binaries).
func (ls *LinkSet) ByGlobal(gid int) (*Linked, bool) {
	l, ok := ls.byGlobal[gid]
	return l, ok
}

// All returns every linked extension in local-index order.
func (ls *LinkSet) All() []Linked { return ls.byLocal }

// ErrUnknownExtension is returned when a binary's link table names an
// extension the registry has never heard of — the whole load fails, per
// spec §4.1's load protocol.
var ErrUnknownExtension = fmt.Errorf("unknown extension")

// Link resolves a freshly loaded (or freshly generated) binary's
// bytecode.LinkTable against the registry: every preloaded extension is
// linked implicitly, then every name in the binary's own link table is
// resolved by name. Unknown names fail the whole load. On success, each
// linked extension's BinaryLoad hook runs, in link order, only for
// binaries that came from Load (not for binaries still being generated).
func Link(reg *Registry, b *bytecode.Binary, loaded bool) (*LinkSet, error) {
	reg.markLoadSeen()

	ls := &LinkSet{byGlobal: make(map[int]*Linked)}

	for _, desc := range reg.Preloaded() {
		if _, _, ok := reg.Lookup(desc.Name); ok {
			if _, err := ls.Require(reg, desc.Name, 0); err != nil {
				return nil, err
			}
		}
	}

	for _, entry := range b.Links.Entries() {
		if _, err := ls.Require(reg, entry.Name, entry.MainBlock); err != nil {
			return nil, err
		}
	}

	if loaded {
		for i := range ls.byLocal {
			l := &ls.byLocal[i]
			if l.Descriptor.Hooks.Load != nil {
				if err := l.Descriptor.Hooks.Load(l.Context, b); err != nil {
					return nil, err
				}
			}
		}
	}

	return ls, nil
}

// SaveHooks builds a bytecode.SaveHooks slice invoking every linked
// extension's BinarySave hook, for use with Binary.Save.
func (ls *LinkSet) SaveHooks() bytecode.SaveHooks {
	hooks := make(bytecode.SaveHooks, 0, len(ls.byLocal))
	for i := range ls.byLocal {
		l := &ls.byLocal[i]
		if l.Descriptor.Hooks.Save != nil {
			ctx := l.Context
			fn := l.Descriptor.Hooks.Save
			hooks = append(hooks, func(b *bytecode.Binary) error { return fn(ctx, b) })
		}
	}
	return hooks
}

// WriteLinkTable populates b.Links from the resolved link set so that a
// freshly generated binary's block 0 reflects exactly the extensions the
// generator required, in require order. Preloaded extensions are NOT
// written to the wire link table (they are implicit on every binary and
// re-derived by Link on load), only extensions the script explicitly
// required.
func (ls *LinkSet) WriteLinkTable(b *bytecode.Binary) {
	for _, l := range ls.byLocal {
		if l.Descriptor.Preloaded {
			continue
		}
		b.Links.Add(l.Descriptor.Name, l.MainBlock)
	}
}
