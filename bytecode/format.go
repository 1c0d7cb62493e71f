package bytecode

import (
	"encoding/binary"
	"os"
	"path/filepath"
)

// Magic identifies native byte order. Its byte-reversal is a distinct,
// implausible value (spec §9 open question), so a binary produced on a
// foreign-endian host is reliably detected and rejected rather than
// misinterpreted.
const Magic uint32 = 0x53564D31 // "SVM1"

// VersionMajor/VersionMinor are the current bytecode format version. Any
// mismatch on load fails cleanly; the caller recompiles.
const (
	VersionMajor uint16 = 1
	VersionMinor uint16 = 0
)

const (
	headerSize     = 4 + 2 + 2 + 4 // magic, major, minor, block_count
	blockIndexSize = 16            // id, size, offset, ext_id, each u32
	alignment      = 4
)

func align4(n int) int {
	return (n + alignment - 1) &^ (alignment - 1)
}

// Save serialises the binary to path using a temp-file-then-rename
// protocol: writes are staged to path+".tmp" and only renamed into place on
// success, so a crash mid-write never leaves a half-written binary at path
// (the same discipline the teacher's mailbox delivery and this repo's own
// maildir store both use — see mailstore.FSStore.Deliver).
func (b *Binary) Save(path string, hooks SaveHooks) error {
	for _, h := range hooks {
		if err := h(b); err != nil {
			return err
		}
	}

	b.rebuildLinkBlock()

	data, err := b.encode()
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return wrapErr(ErrOpenFailed, "write temp file", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return wrapErr(ErrOpenFailed, "rename into place", err)
	}
	return nil
}

// SaveHooks are invoked in order before encoding, giving linked extensions a
// chance to flush deferred data into their own blocks (binary_save hooks,
// spec §4.1).
type SaveHooks []func(*Binary) error

func (b *Binary) rebuildLinkBlock() {
	blk := b.Block(LinkTableBlockID)
	blk.Buf = b.Links.Encode()
}

func (b *Binary) encode() ([]byte, error) {
	blocksByID := b.BlocksByID()
	blockCount := len(blocksByID)

	out := make([]byte, 0, headerSize+blockIndexSize*blockCount+256)
	out = appendHeader(out, uint32(blockCount))

	indexStart := len(out)
	out = append(out, make([]byte, blockIndexSize*blockCount)...)

	indices := make([]blockIndexRecord, blockCount)
	for i, blk := range blocksByID {
		for len(out)%alignment != 0 {
			out = append(out, 0)
		}
		offset := uint32(len(out))
		out = append(out, make([]byte, 8)...)
		binary.BigEndian.PutUint32(out[len(out)-8:], blk.ID)
		binary.BigEndian.PutUint32(out[len(out)-4:], uint32(len(blk.Buf)))
		out = append(out, blk.Buf...)
		for len(out)%alignment != 0 {
			out = append(out, 0)
		}
		indices[i] = blockIndexRecord{ID: blk.ID, Size: uint32(len(blk.Buf)), Offset: offset, ExtID: uint32(int32ToExtID(blk.OwningExtension))}
	}

	for i, rec := range indices {
		p := indexStart + i*blockIndexSize
		binary.BigEndian.PutUint32(out[p:], rec.ID)
		binary.BigEndian.PutUint32(out[p+4:], rec.Size)
		binary.BigEndian.PutUint32(out[p+8:], rec.Offset)
		binary.BigEndian.PutUint32(out[p+12:], rec.ExtID)
	}

	return out, nil
}

func int32ToExtID(v int32) int32 {
	if v < 0 {
		return -1
	}
	return v
}

type blockIndexRecord struct {
	ID     uint32
	Size   uint32
	Offset uint32
	ExtID  uint32
}

func appendHeader(dst []byte, blockCount uint32) []byte {
	var hdr [headerSize]byte
	binary.BigEndian.PutUint32(hdr[0:], Magic)
	binary.BigEndian.PutUint16(hdr[4:], VersionMajor)
	binary.BigEndian.PutUint16(hdr[6:], VersionMinor)
	binary.BigEndian.PutUint32(hdr[8:], blockCount)
	return append(dst, hdr[:]...)
}

// Load reads and validates a binary from path. It does not resolve
// extension links against the registry or invoke binary_load hooks — see
// extension.Link for that step, which callers run immediately after Load
// succeeds.
func Load(path string) (*Binary, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, wrapErr(ErrStatFailed, path, err)
	}
	if fi.IsDir() {
		return nil, wrapErr(ErrStatFailed, path, os.ErrInvalid)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, wrapErr(ErrOpenFailed, path, err)
	}
	return decode(data, filepath.Base(path))
}

func decode(data []byte, scriptName string) (*Binary, error) {
	if len(data) < headerSize {
		return nil, newErr(ErrTruncated, "header truncated")
	}
	magic := binary.BigEndian.Uint32(data[0:4])
	if magic != Magic {
		if binary.BigEndian.Uint32(reverseBytes(data[0:4])) == Magic {
			return nil, newErr(ErrBadMagic, "byte-reversed magic: foreign endianness, recompile")
		}
		return nil, newErr(ErrBadMagic, "bad magic")
	}
	major := binary.BigEndian.Uint16(data[4:6])
	minor := binary.BigEndian.Uint16(data[6:8])
	if major != VersionMajor || minor != VersionMinor {
		return nil, newErr(ErrBadVersion, "version mismatch")
	}
	blockCount := binary.BigEndian.Uint32(data[8:12])

	indexStart := headerSize
	indexEnd := indexStart + int(blockCount)*blockIndexSize
	if indexEnd > len(data) {
		return nil, newErr(ErrTruncated, "block index truncated")
	}

	b := &Binary{
		ScriptName: scriptName,
		blocksByID: make(map[uint32]int),
	}
	b.SetReadOnly()

	for i := uint32(0); i < blockCount; i++ {
		p := indexStart + int(i)*blockIndexSize
		id := binary.BigEndian.Uint32(data[p:])
		size := binary.BigEndian.Uint32(data[p+4:])
		offset := binary.BigEndian.Uint32(data[p+8:])
		extID := binary.BigEndian.Uint32(data[p+12:])

		bodyStart := int(offset) + 8
		bodyEnd := bodyStart + int(size)
		if bodyStart < 0 || bodyEnd > len(data) || bodyStart > bodyEnd {
			return nil, newErr(ErrBadBlockID, "block body out of range")
		}
		gotID := binary.BigEndian.Uint32(data[offset:])
		if gotID != id {
			return nil, newErr(ErrBadBlockID, "block header id mismatch")
		}
		owning := int32(-1)
		if extID != 0xFFFFFFFF && int32(extID) >= 0 {
			owning = int32(extID)
		}
		buf := make([]byte, size)
		copy(buf, data[bodyStart:bodyEnd])
		b.appendBlock(&Block{ID: id, OwningExtension: owning, Buf: buf, FileOffset: offset})
	}

	linkBlk := b.Block(LinkTableBlockID)
	if linkBlk == nil {
		return nil, newErr(ErrBadBlockID, "missing link table block")
	}
	links, err := DecodeLinkTable(linkBlk.Buf)
	if err != nil {
		return nil, err
	}
	b.Links = links

	if b.Block(MainBlockID) == nil {
		return nil, newErr(ErrBadBlockID, "missing main block")
	}

	return b, nil
}

func reverseBytes(b []byte) []byte {
	out := make([]byte, len(b))
	for i, v := range b {
		out[len(b)-1-i] = v
	}
	return out
}
