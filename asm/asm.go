// Package asm implements a textual assembler for the core bytecode
// instruction set (coreops): a generator-facing `.sieveasm` format used by
// sievec and by tests to build binaries without hand-encoding varints.
//
// The format is line-oriented: one label ("name:") or instruction per
// line, "#" starts a line comment. Instructions take the same operands the
// interpreter reads them back in — see coreops for the authoritative
// encoding. Two simplifications keep this a single left-to-right pass
// instead of the teacher's iterative fixup queue (peggyvm's Assembler.Fix):
// jump offsets are always the bytecode format's fixed 4-byte width, and any
// operand that names a label address (loop_start's end_pc, loop_next's
// begin_pc) is emitted as a fixed 5-group varint regardless of its value,
// so every instruction's length is known before any label's address is —
// no backward patching is ever required.
package asm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sievebox/sievecore/bytecode"
	"github.com/sievebox/sievecore/coreops"
)

// opcodes maps each mnemonic to the core opcode the interpreter's main loop
// reads as the instruction's leading varint (interp.Run: "read opcode,
// dispatch").
var opcodes = map[string]uint32{
	"jmp": coreops.OpJmp, "jmptrue": coreops.OpJmpTrue, "jmpfalse": coreops.OpJmpFalse,
	"test_header": coreops.OpTestHeader, "test_address": coreops.OpTestAddress,
	"test_size": coreops.OpTestSize, "test_exists": coreops.OpTestExists,
	"test_not": coreops.OpTestNot, "test_true": coreops.OpTestTrue, "test_false": coreops.OpTestFalse,
	"loop_start": coreops.OpLoopStart, "loop_next": coreops.OpLoopNext, "loop_break": coreops.OpLoopBreak,
	"keep": coreops.OpKeep, "discard": coreops.OpDiscard, "stop": coreops.OpStop,
	"redirect": coreops.OpRedirect, "fileinto": coreops.OpFileinto,
}

var coreMatchTypes = map[string]uint32{"is": 0, "contains": 1, "matches": 2, "regex": 3}
var coreComparators = map[string]uint32{"i;octet": 0, "i;ascii-casemap": 1}
var addressParts = map[string]uint32{"all": 0, "localpart": 1, "domain": 2}

// fixedVarintWidth is the byte width of a label-address operand: enough
// groups for a full 32-bit value (ceil(32/7) = 5).
const fixedVarintWidth = 5

// appendFixedVarint appends v as exactly fixedVarintWidth groups, padding
// with leading zero groups (continuation bit set) so its length never
// depends on the magnitude of a not-yet-known forward-referenced address.
func appendFixedVarint(dst []byte, v uint32) []byte {
	for i := fixedVarintWidth - 1; i >= 0; i-- {
		group := byte(v>>uint(7*i)) & 0x7f
		if i > 0 {
			group |= 0x80
		}
		dst = append(dst, group)
	}
	return dst
}

type item struct {
	line  int
	label string // non-empty for a label definition
	op    string
	args  []string
	addr  uint32
	size  uint32
}

// Assemble parses src and returns a fresh writable binary named name with
// the assembled program in its main block.
func Assemble(name, src string) (*bytecode.Binary, error) {
	items, labels, err := parse(src)
	if err != nil {
		return nil, err
	}
	if err := layout(items, labels); err != nil {
		return nil, err
	}

	b := bytecode.New(name)
	for _, it := range items {
		if it.label != "" {
			continue
		}
		buf, err := encode(it, labels)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", it.line, err)
		}
		blk := b.Active()
		blk.Buf = append(blk.Buf, buf...)
	}
	return b, nil
}

func parse(src string) ([]*item, map[string]uint32, error) {
	var items []*item
	labels := make(map[string]uint32)
	for i, raw := range strings.Split(src, "\n") {
		lineNo := i + 1
		line := stripComment(raw)
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasSuffix(line, ":") {
			name := strings.TrimSuffix(line, ":")
			if _, exists := labels[name]; exists {
				return nil, nil, fmt.Errorf("line %d: duplicate label %q", lineNo, name)
			}
			labels[name] = 0 // address filled in during layout
			items = append(items, &item{line: lineNo, label: name})
			continue
		}
		toks, err := tokenize(line)
		if err != nil {
			return nil, nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		items = append(items, &item{line: lineNo, op: toks[0], args: toks[1:]})
	}
	return items, labels, nil
}

func stripComment(line string) string {
	inQuote := false
	for i, c := range line {
		switch c {
		case '"':
			inQuote = !inQuote
		case '#':
			if !inQuote {
				return line[:i]
			}
		}
	}
	return line
}

// tokenize splits a line into whitespace-separated tokens, treating a
// double-quoted span (which may itself contain commas, as in a key list)
// as a single token.
func tokenize(line string) ([]string, error) {
	var toks []string
	var cur strings.Builder
	inQuote := false
	flush := func() {
		if cur.Len() > 0 {
			toks = append(toks, cur.String())
			cur.Reset()
		}
	}
	for _, c := range line {
		switch {
		case c == '"':
			inQuote = !inQuote
			cur.WriteRune(c)
		case c == ' ' || c == '\t':
			if inQuote {
				cur.WriteRune(c)
			} else {
				flush()
			}
		default:
			cur.WriteRune(c)
		}
	}
	if inQuote {
		return nil, fmt.Errorf("unterminated quoted string")
	}
	flush()
	return toks, nil
}

// layout assigns every instruction its address and fills in label
// addresses, in one left-to-right pass (see package doc for why no
// iteration is needed).
func layout(items []*item, labels map[string]uint32) error {
	var pc uint32
	for _, it := range items {
		if it.label != "" {
			labels[it.label] = pc
			continue
		}
		size, err := instrSize(it)
		if err != nil {
			return fmt.Errorf("line %d: %w", it.line, err)
		}
		it.addr = pc
		it.size = size
		pc += size
	}
	return nil
}

func unquote(s string) (string, error) {
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return "", fmt.Errorf("expected quoted string, got %q", s)
	}
	return s[1 : len(s)-1], nil
}

func splitList(s string) []string {
	if s == "-" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		u, err := unquote(part)
		if err == nil {
			out = append(out, u)
		} else {
			out = append(out, part)
		}
	}
	return out
}

func stringListSize(items []string) uint32 {
	n := bytecode.VarintLen(uint64(len(items)))
	for _, s := range items {
		n += bytecode.VarintLen(uint64(len(s))) + len(s) + 1
	}
	return uint32(n)
}

func stringSize(s string) uint32 {
	return uint32(bytecode.VarintLen(uint64(len(s))) + len(s) + 1)
}

// instrSize computes an instruction's encoded length without needing any
// label's resolved address (object operands, strings, and numeric
// literals are all determined purely by the source text).
func instrSize(it *item) (uint32, error) {
	code, ok := opcodes[it.op]
	if !ok {
		return 0, fmt.Errorf("unknown mnemonic %q", it.op)
	}
	opSize := uint32(bytecode.VarintLen(uint64(code)))
	size, err := operandSize(it)
	if err != nil {
		return 0, err
	}
	return opSize + size, nil
}

// operandSize computes the operand bytes following the opcode varint.
func operandSize(it *item) (uint32, error) {
	switch it.op {
	case "jmp", "jmptrue", "jmpfalse":
		return 4 + 1, nil // fixed offset + break_loops byte
	case "test_header":
		if len(it.args) < 4 {
			return 0, fmt.Errorf("%s: expected name match-type comparator keys", it.op)
		}
		name, err := unquote(it.args[0])
		if err != nil {
			return 0, err
		}
		// name string, match-type object operand (tag+code), comparator
		// object operand (tag+code), key list.
		return stringSize(name) + 2 + 2 + stringListSize(splitList(it.args[3])), nil
	case "test_address":
		if len(it.args) < 5 {
			return 0, fmt.Errorf("%s: expected name part match-type comparator keys", it.op)
		}
		name, err := unquote(it.args[0])
		if err != nil {
			return 0, err
		}
		// name string, part byte, match-type object operand, comparator
		// object operand, key list.
		return stringSize(name) + 1 + 2 + 2 + stringListSize(splitList(it.args[4])), nil
	case "test_size":
		if len(it.args) < 2 {
			return 0, fmt.Errorf("test_size: expected over|under N")
		}
		n, err := strconv.ParseUint(it.args[1], 10, 64)
		if err != nil {
			return 0, err
		}
		return 1 + uint32(bytecode.VarintLen(n)), nil
	case "test_exists":
		if len(it.args) < 1 {
			return 0, fmt.Errorf("test_exists: expected name list")
		}
		return stringListSize(splitList(it.args[0])), nil
	case "test_not", "test_true", "test_false":
		return 0, nil
	case "loop_start":
		return fixedVarintWidth, nil
	case "loop_next":
		return fixedVarintWidth, nil
	case "loop_break":
		if len(it.args) < 1 {
			return 0, fmt.Errorf("loop_break: expected levels")
		}
		n, err := strconv.ParseUint(it.args[0], 10, 64)
		if err != nil {
			return 0, err
		}
		return uint32(bytecode.VarintLen(n)), nil
	case "keep":
		if len(it.args) < 1 {
			return 0, fmt.Errorf("keep: expected line [flags]")
		}
		return lineActionSize(it.args, 1)
	case "discard":
		if len(it.args) < 1 {
			return 0, fmt.Errorf("discard: expected line")
		}
		return lineActionSize(it.args, 0)
	case "stop":
		if len(it.args) < 1 {
			return 0, fmt.Errorf("stop: expected line")
		}
		return lineActionSize(it.args, 0)
	case "redirect":
		if len(it.args) < 2 {
			return 0, fmt.Errorf("redirect: expected line address")
		}
		addr, err := unquote(it.args[1])
		if err != nil {
			return 0, err
		}
		line, err := strconv.ParseUint(it.args[0], 10, 64)
		if err != nil {
			return 0, err
		}
		return uint32(bytecode.VarintLen(line)) + stringSize(addr), nil
	case "fileinto":
		if len(it.args) < 2 {
			return 0, fmt.Errorf("fileinto: expected line mailbox [flags]")
		}
		mailbox, err := unquote(it.args[1])
		if err != nil {
			return 0, err
		}
		line, err := strconv.ParseUint(it.args[0], 10, 64)
		if err != nil {
			return 0, err
		}
		var flags []string
		if len(it.args) > 2 {
			flags = splitList(it.args[2])
		}
		return uint32(bytecode.VarintLen(line)) + stringSize(mailbox) + stringListSize(flags), nil
	default:
		return 0, fmt.Errorf("unknown mnemonic %q", it.op)
	}
}

// lineActionSize sizes an action whose only operands are a line-number
// varint and, if flagsArgIndex > 0, a trailing flag list (empty when that
// argument is absent, as encode emits it).
func lineActionSize(args []string, flagsArgIndex int) (uint32, error) {
	line, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return 0, err
	}
	n := uint32(bytecode.VarintLen(line))
	if flagsArgIndex > 0 {
		var flags []string
		if len(args) > flagsArgIndex {
			flags = splitList(args[flagsArgIndex])
		}
		n += stringListSize(flags)
	}
	return n, nil
}

func encode(it *item, labels map[string]uint32) ([]byte, error) {
	code, ok := opcodes[it.op]
	if !ok {
		return nil, fmt.Errorf("unknown mnemonic %q", it.op)
	}
	out := bytecode.AppendVarint(nil, uint64(code))
	operands, err := encodeOperands(it, labels)
	if err != nil {
		return nil, err
	}
	return append(out, operands...), nil
}

func encodeOperands(it *item, labels map[string]uint32) ([]byte, error) {
	var out []byte
	switch it.op {
	case "jmp", "jmptrue", "jmpfalse":
		target, ok := labels[it.args[0]]
		if !ok {
			return nil, fmt.Errorf("undefined label %q", it.args[0])
		}
		breakLoops := len(it.args) > 1 && it.args[1] == "break"
		// The offset is relative to its own first byte, i.e. the position
		// right after the opcode varint (interp.RunEnv.Jump's jmpStart),
		// not the instruction's start.
		jmpStart := it.addr + uint32(bytecode.VarintLen(uint64(opcodes[it.op])))
		offset := int32(target) - int32(jmpStart)
		out = bytecode.AppendOffset(out, offset)
		if breakLoops {
			out = append(out, 1)
		} else {
			out = append(out, 0)
		}
	case "test_header":
		name, _ := unquote(it.args[0])
		out = bytecode.AppendString(out, name)
		mt, ok := coreMatchTypes[it.args[1]]
		if !ok {
			return nil, fmt.Errorf("unknown match-type %q", it.args[1])
		}
		out = append(out, 0, byte(mt))
		cmp, ok := coreComparators[it.args[2]]
		if !ok {
			return nil, fmt.Errorf("unknown comparator %q", it.args[2])
		}
		out = append(out, 1, byte(cmp))
		keys := splitList(it.args[3])
		out = appendStringList(out, keys)
	case "test_address":
		name, _ := unquote(it.args[0])
		out = bytecode.AppendString(out, name)
		part, ok := addressParts[it.args[1]]
		if !ok {
			return nil, fmt.Errorf("unknown address part %q", it.args[1])
		}
		out = append(out, byte(part))
		mt, ok := coreMatchTypes[it.args[2]]
		if !ok {
			return nil, fmt.Errorf("unknown match-type %q", it.args[2])
		}
		out = append(out, 0, byte(mt))
		cmp, ok := coreComparators[it.args[3]]
		if !ok {
			return nil, fmt.Errorf("unknown comparator %q", it.args[3])
		}
		out = append(out, 1, byte(cmp))
		keys := splitList(it.args[4])
		out = appendStringList(out, keys)
	case "test_size":
		over := it.args[0] == "over"
		if over {
			out = append(out, 1)
		} else {
			out = append(out, 0)
		}
		n, _ := strconv.ParseUint(it.args[1], 10, 64)
		out = bytecode.AppendVarint(out, n)
	case "test_exists":
		out = appendStringList(out, splitList(it.args[0]))
	case "test_not", "test_true", "test_false":
		// no operands
	case "loop_start":
		target, ok := labels[it.args[0]]
		if !ok {
			return nil, fmt.Errorf("undefined label %q", it.args[0])
		}
		out = appendFixedVarint(out, target)
	case "loop_next":
		target, ok := labels[it.args[0]]
		if !ok {
			return nil, fmt.Errorf("undefined label %q", it.args[0])
		}
		out = appendFixedVarint(out, target)
	case "loop_break":
		n, _ := strconv.ParseUint(it.args[0], 10, 64)
		out = bytecode.AppendVarint(out, n)
	case "keep":
		line, _ := strconv.ParseUint(it.args[0], 10, 64)
		out = bytecode.AppendVarint(out, line)
		var flags []string
		if len(it.args) > 1 {
			flags = splitList(it.args[1])
		}
		out = appendStringList(out, flags)
	case "discard", "stop":
		line, _ := strconv.ParseUint(it.args[0], 10, 64)
		out = bytecode.AppendVarint(out, line)
	case "redirect":
		line, _ := strconv.ParseUint(it.args[0], 10, 64)
		out = bytecode.AppendVarint(out, line)
		addr, _ := unquote(it.args[1])
		out = bytecode.AppendString(out, addr)
	case "fileinto":
		line, _ := strconv.ParseUint(it.args[0], 10, 64)
		out = bytecode.AppendVarint(out, line)
		mailbox, _ := unquote(it.args[1])
		out = bytecode.AppendString(out, mailbox)
		var flags []string
		if len(it.args) > 2 {
			flags = splitList(it.args[2])
		}
		out = appendStringList(out, flags)
	default:
		return nil, fmt.Errorf("unknown mnemonic %q", it.op)
	}
	return out, nil
}

func appendStringList(dst []byte, items []string) []byte {
	dst = bytecode.AppendVarint(dst, uint64(len(items)))
	for _, s := range items {
		dst = bytecode.AppendString(dst, s)
	}
	return dst
}

// Mnemonics returns every instruction mnemonic the assembler accepts, in
// coreops opcode order.
func Mnemonics() []string {
	return []string{
		"jmp", "jmptrue", "jmpfalse",
		"test_header", "test_address", "test_size", "test_exists",
		"test_not", "test_true", "test_false",
		"loop_start", "loop_next", "loop_break",
		"keep", "discard", "stop", "redirect", "fileinto",
	}
}
