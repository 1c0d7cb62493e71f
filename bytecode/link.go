package bytecode

// LinkEntry is the wire-level extension link record stored in block 0: a
// local index (how the bytecode for *this* binary refers to the extension)
// paired with the extension's global name. Per spec §4.1 load protocol,
// resolution from name back to a process-global extension id happens at
// load time, against the extension registry — that resolution, and the
// richer per-binary context each linked extension carries, live in package
// extension; this package only owns the wire shape.
type LinkEntry struct {
	LocalIndex uint32
	Name       string
	MainBlock  uint32
}

// LinkTable is the per-binary view of which *regular* (non-preloaded)
// extensions are required, in require order — the wire form of block 0.
// Its LocalIndex is a storage-order convenience for Add/ByName only; it is
// NOT the local-extension-index space object operands encode (that space
// additionally includes preloaded extensions and is owned by
// extension.LinkSet, which is rebuilt deterministically from the registry
// plus this table on every Link call).
type LinkTable struct {
	entries []LinkEntry
	byName  map[string]uint32
}

// NewLinkTable returns an empty link table.
func NewLinkTable() *LinkTable {
	return &LinkTable{byName: make(map[string]uint32)}
}

// Add appends a new link entry and returns its local index. Adding the same
// name twice returns the existing local index (link, like registration, is
// idempotent by name within one binary).
func (t *LinkTable) Add(name string, mainBlock uint32) uint32 {
	if idx, ok := t.byName[name]; ok {
		return idx
	}
	idx := uint32(len(t.entries))
	t.entries = append(t.entries, LinkEntry{LocalIndex: idx, Name: name, MainBlock: mainBlock})
	t.byName[name] = idx
	return idx
}

// Entries returns the link entries in local-index order.
func (t *LinkTable) Entries() []LinkEntry { return t.entries }

// ByLocalIndex returns the entry at the given local index, or false if out
// of range.
func (t *LinkTable) ByLocalIndex(idx uint32) (LinkEntry, bool) {
	if int(idx) >= len(t.entries) {
		return LinkEntry{}, false
	}
	return t.entries[idx], true
}

// ByName returns the local index for a linked extension name.
func (t *LinkTable) ByName(name string) (uint32, bool) {
	idx, ok := t.byName[name]
	return idx, ok
}

// Encode serialises the link table as count-varint followed by `count`
// NUL-terminated strings, per spec §4.1 save protocol step (d). The
// per-entry main-block id is recovered at load time by re-deriving it from
// block ownership, not stored inline (the wire format reserves block 0 for
// exactly this list of names).
func (t *LinkTable) Encode() []byte {
	var buf []byte
	buf = AppendVarint(buf, uint64(len(t.entries)))
	for _, e := range t.entries {
		buf = AppendString(buf, e.Name)
	}
	return buf
}

// DecodeLinkTable parses the block-0 payload into link entries with
// MainBlock left unset (callers that need block ownership look it up from
// the block index's ExtID column instead).
func DecodeLinkTable(buf []byte) (*LinkTable, error) {
	t := NewLinkTable()
	count, n, err := ReadVarint(buf, 0, 32)
	if err != nil {
		return nil, err
	}
	off := n
	for i := uint64(0); i < count; i++ {
		name, consumed, err := ReadString(buf, off)
		if err != nil {
			return nil, err
		}
		off += consumed
		t.Add(name, 0)
	}
	return t, nil
}
