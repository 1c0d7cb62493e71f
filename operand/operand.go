// Package operand implements typed operand reading and operation dispatch
// (spec §4.3): the interpreter's opcode stream is read through small, typed
// accessors rather than raw byte indexing, and both operations and object
// operands (side-effect, match-type, comparator, address-part) share one
// two-level dispatch scheme — a core table indexed directly, or an
// extension's private table indexed by local extension id then a second
// code byte.
package operand

import (
	"fmt"

	"github.com/sievebox/sievecore/bytecode"
)

// CustomBase is the boundary between core and extension-contributed codes
// for object operands and operations: codes below CustomBase index a fixed
// core table directly; codes at or above it encode `CustomBase + local
// extension index`, and the extension's own table is then indexed by a
// further varint code byte (spec §4.3).
const CustomBase = 128

// Class is a process-global object-operand class descriptor: a tag string
// checked against the byte the generator emitted before the operand's
// payload is read, so that reading a side-effect where a comparator was
// expected is caught as BIN_CORRUPT rather than silently misinterpreted.
type Class struct {
	Tag string
}

var (
	ClassMatchType   = Class{Tag: "match-type"}
	ClassComparator  = Class{Tag: "comparator"}
	ClassAddressPart = Class{Tag: "address-part"}
	ClassSideEffect  = Class{Tag: "side-effect"}
)

var classByTag = map[string]Class{
	ClassMatchType.Tag:   ClassMatchType,
	ClassComparator.Tag:  ClassComparator,
	ClassAddressPart.Tag: ClassAddressPart,
	ClassSideEffect.Tag:  ClassSideEffect,
}

func classTagByte(c Class) byte {
	// Stable small integer per class, assigned in the fixed order above.
	switch c.Tag {
	case ClassMatchType.Tag:
		return 0
	case ClassComparator.Tag:
		return 1
	case ClassAddressPart.Tag:
		return 2
	case ClassSideEffect.Tag:
		return 3
	default:
		return 0xFF
	}
}

func classByTagByte(b byte) (Class, bool) {
	switch b {
	case 0:
		return ClassMatchType, true
	case 1:
		return ClassComparator, true
	case 2:
		return ClassAddressPart, true
	case 3:
		return ClassSideEffect, true
	default:
		return Class{}, false
	}
}

// ObjectOperand is a tagged (class, code) pair. Code < CustomBase indexes
// the fixed core table for the class; code >= CustomBase encodes
// `CustomBase + local extension index`, resolved via the extension link
// table, whose own table is indexed by a further code byte appended after
// the object operand.
type ObjectOperand struct {
	Class Class
	Code  uint32
}

// EmitObjectOperand writes the class tag byte followed by the code varint.
func EmitObjectOperand(b *bytecode.Binary, c Class, code uint32) {
	b.EmitByte(classTagByte(c))
	b.EmitVarint(uint64(code))
}

// ReadObjectOperand reads an object operand at off, verifying the class tag
// matches want. A mismatch is bytecode corruption, per spec §4.3.
func ReadObjectOperand(buf []byte, off int, want Class) (ObjectOperand, int, error) {
	if off >= len(buf) {
		return ObjectOperand{}, 0, fmt.Errorf("%w: object operand truncated", errTruncated)
	}
	got, ok := classByTagByte(buf[off])
	if !ok || got.Tag != want.Tag {
		return ObjectOperand{}, 0, fmt.Errorf("%w: expected class %s, got tag byte %d", errClassMismatch, want.Tag, buf[off])
	}
	code, n, err := bytecode.ReadVarint(buf, off+1, 32)
	if err != nil {
		return ObjectOperand{}, 0, err
	}
	return ObjectOperand{Class: got, Code: uint32(code)}, 1 + n, nil
}

// IsCustom reports whether the operand's code refers to an extension table
// entry rather than the core table.
func (o ObjectOperand) IsCustom() bool { return o.Code >= CustomBase }

// LocalExtensionIndex returns the local link-table index encoded in a
// custom object operand's code.
func (o ObjectOperand) LocalExtensionIndex() uint32 { return o.Code - CustomBase }

// String operand codec: thin wrappers over bytecode's string codec, kept
// here so callers read "operand.ReadStringOperand" rather than reaching
// into bytecode directly — operand is the layer that knows what a typed
// read means.

// EmitStringOperand appends a string operand.
func EmitStringOperand(b *bytecode.Binary, s string) { b.EmitString(s) }

// ReadStringOperand reads a string operand.
func ReadStringOperand(buf []byte, off int) (string, int, error) {
	return bytecode.ReadString(buf, off)
}

// EmitStringListOperand appends a count-prefixed list of strings.
func EmitStringListOperand(b *bytecode.Binary, items []string) {
	b.EmitVarint(uint64(len(items)))
	for _, s := range items {
		b.EmitString(s)
	}
}

// ReadStringListOperand reads a count-prefixed list of strings.
func ReadStringListOperand(buf []byte, off int) ([]string, int, error) {
	count, n, err := bytecode.ReadVarint(buf, off, 32)
	if err != nil {
		return nil, 0, err
	}
	total := n
	out := make([]string, 0, count)
	for i := uint64(0); i < count; i++ {
		s, consumed, err := bytecode.ReadString(buf, off+total)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, s)
		total += consumed
	}
	return out, total, nil
}

// EmitNumberOperand appends an unsigned number operand (varint).
func EmitNumberOperand(b *bytecode.Binary, v uint64) { b.EmitVarint(v) }

// ReadNumberOperand reads an unsigned number operand.
func ReadNumberOperand(buf []byte, off int) (uint64, int, error) {
	return bytecode.ReadVarint(buf, off, 64)
}
