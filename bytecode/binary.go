// Package bytecode implements the Sieve bytecode container: the on-disk and
// in-memory binary format, its block structure, and the primitive
// varint/offset/string codec every higher layer reads and writes through.
package bytecode

import "sync"

// Reserved block ids per spec §3.
const (
	LinkTableBlockID = 0
	MainBlockID      = 1
)

// Block is a contiguous, append-only byte buffer addressable by id.
// OwningExtension is -1 for system blocks (the link table and the main
// program).
type Block struct {
	ID              uint32
	OwningExtension int32
	Buf             []byte
	FileOffset      uint32
}

// Binary owns an ordered sequence of blocks plus a reference count and an
// optional backing script identity. While a binary is being generated,
// exactly one block is active; all Emit calls target it. Load marks a
// binary read-only (Binary.readOnly, see ReadOnly); the Emit methods do not
// check that flag, so it records the state without enforcing it.
type Binary struct {
	mu         sync.Mutex
	refs       int32
	ScriptName string
	readOnly   bool

	blocks     []*Block
	blocksByID map[uint32]int // id -> index into blocks
	activeID   uint32
	nextBlock  uint32

	Links *LinkTable
}

// New creates an empty, writable binary with block 0 (link table, filled in
// at save time) and block 1 (the main program) pre-allocated.
func New(scriptName string) *Binary {
	b := &Binary{
		ScriptName: scriptName,
		blocksByID: make(map[uint32]int),
		nextBlock:  2,
		Links:      NewLinkTable(),
	}
	b.appendBlock(&Block{ID: LinkTableBlockID, OwningExtension: -1})
	b.appendBlock(&Block{ID: MainBlockID, OwningExtension: -1})
	b.activeID = MainBlockID
	return b
}

func (b *Binary) appendBlock(blk *Block) {
	b.blocksByID[blk.ID] = len(b.blocks)
	b.blocks = append(b.blocks, blk)
}

// Retain increments the reference count.
func (b *Binary) Retain() { b.mu.Lock(); b.refs++; b.mu.Unlock() }

// Release decrements the reference count; when it reaches zero the binary's
// blocks and link table are dropped. Mirrors binary_free in spec §3: all
// per-binary allocations die with the binary.
func (b *Binary) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refs--
	if b.refs <= 0 {
		b.blocks = nil
		b.blocksByID = nil
		b.Links = nil
	}
}

// CreateBlock allocates a new block owned by the given extension (-1 for
// system) and returns its id. Blocks are appended in creation order but
// written in id order during Save.
func (b *Binary) CreateBlock(owningExtension int32) uint32 {
	id := b.nextBlock
	b.nextBlock++
	b.appendBlock(&Block{ID: id, OwningExtension: owningExtension})
	return id
}

// SetActive sets the active block and returns the previously active id.
func (b *Binary) SetActive(id uint32) uint32 {
	prev := b.activeID
	b.activeID = id
	return prev
}

// Active returns the currently active block.
func (b *Binary) Active() *Block {
	return b.Block(b.activeID)
}

// Block returns the block with the given id, or nil if absent.
func (b *Binary) Block(id uint32) *Block {
	idx, ok := b.blocksByID[id]
	if !ok {
		return nil
	}
	return b.blocks[idx]
}

// Clear truncates the block with the given id.
func (b *Binary) Clear(id uint32) {
	if blk := b.Block(id); blk != nil {
		blk.Buf = blk.Buf[:0]
	}
}

// Blocks returns all blocks in creation order (not id order — callers that
// need on-disk order should use BlocksByID).
func (b *Binary) Blocks() []*Block { return b.blocks }

// BlocksByID returns all blocks sorted by id, the order Save writes them in.
func (b *Binary) BlocksByID() []*Block {
	out := make([]*Block, len(b.blocks))
	copy(out, b.blocks)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1].ID > out[j].ID; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

// Pos returns the current length of the active block — the address that
// the next Emit call will write to. Used by jump-label fixups during
// assembly/codegen.
func (b *Binary) Pos() uint32 {
	blk := b.Active()
	if blk == nil {
		return 0
	}
	return uint32(len(blk.Buf))
}

// EmitByte appends a single byte to the active block.
func (b *Binary) EmitByte(v byte) {
	blk := b.Active()
	blk.Buf = append(blk.Buf, v)
}

// EmitVarint appends a varint to the active block.
func (b *Binary) EmitVarint(v uint64) {
	blk := b.Active()
	blk.Buf = AppendVarint(blk.Buf, v)
}

// EmitOffset appends a fixed 4-byte signed offset to the active block.
func (b *Binary) EmitOffset(v int32) {
	blk := b.Active()
	blk.Buf = AppendOffset(blk.Buf, v)
}

// EmitString appends a length-prefixed, NUL-terminated string to the active
// block.
func (b *Binary) EmitString(s string) {
	blk := b.Active()
	blk.Buf = AppendString(blk.Buf, s)
}

// PatchOffset overwrites an already-emitted 4-byte offset in place — used to
// back-patch forward jump targets once the destination address is known.
func (b *Binary) PatchOffset(blockID uint32, at int, v int32) {
	blk := b.Block(blockID)
	encoded := AppendOffset(nil, v)
	copy(blk.Buf[at:at+offsetSize], encoded)
}

// SetReadOnly marks the binary as loaded (no further Emit calls expected).
func (b *Binary) SetReadOnly() { b.readOnly = true }

// ReadOnly reports whether the binary was loaded rather than generated.
func (b *Binary) ReadOnly() bool { return b.readOnly }
