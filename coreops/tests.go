package coreops

import (
	"fmt"

	"github.com/sievebox/sievecore/interp"
	"github.com/sievebox/sievecore/match"
	"github.com/sievebox/sievecore/operand"
)

// Core object-operand code orderings (spec §4.3: codes below CustomBase
// index a fixed core table directly). These orderings are part of the
// bytecode contract a generator targeting this core table must match.
var coreMatchTypes = []string{"is", "contains", "matches", "regex"}
var coreComparators = []string{"i;octet", "i;ascii-casemap"}

func resolveMatchType(code uint32) (match.Type, error) {
	if int(code) >= len(coreMatchTypes) {
		return nil, fmt.Errorf("%w: match-type code %d", errTruncated, code)
	}
	mt, ok := match.Lookup(coreMatchTypes[code])
	if !ok {
		return nil, fmt.Errorf("coreops: unregistered match type %q", coreMatchTypes[code])
	}
	return mt, nil
}

func resolveComparator(code uint32) (match.Comparator, error) {
	if int(code) >= len(coreComparators) {
		return nil, fmt.Errorf("%w: comparator code %d", errTruncated, code)
	}
	c, ok := match.LookupComparator(coreComparators[code])
	if !ok {
		return nil, fmt.Errorf("coreops: unregistered comparator %q", coreComparators[code])
	}
	return c, nil
}

// readTestHead reads the match-type and comparator object operands plus the
// key-list operand shared by every value test (header/address/...).
func readTestHead(buf []byte, off int) (mt match.Type, cmp match.Comparator, keys []string, consumed int, err error) {
	mtOp, n, err := operand.ReadObjectOperand(buf, off, operand.ClassMatchType)
	if err != nil {
		return nil, nil, nil, 0, err
	}
	total := n
	cmpOp, n, err := operand.ReadObjectOperand(buf, off+total, operand.ClassComparator)
	if err != nil {
		return nil, nil, nil, 0, err
	}
	total += n
	keys, n, err = operand.ReadStringListOperand(buf, off+total)
	if err != nil {
		return nil, nil, nil, 0, err
	}
	total += n

	mt, err = resolveMatchType(mtOp.Code)
	if err != nil {
		return nil, nil, nil, 0, err
	}
	cmp, err = resolveComparator(cmpOp.Code)
	if err != nil {
		return nil, nil, nil, 0, err
	}
	return mt, cmp, keys, total, nil
}

func runValueTest(r *interp.RunEnv, mt match.Type, cmp match.Comparator, value string, keys []string) (bool, error) {
	var b *match.Builder
	if r.Captures != nil {
		b = r.Captures.Open()
	}
	sess := mt.NewSession(cmp, b)
	defer sess.Deinit()
	ok, err := match.RunTest(sess, value, keys)
	if err == nil && ok && b != nil {
		b.Commit()
	}
	return ok, err
}

// execTestHeader implements the base "header" test: header name, match
// type, comparator, key list. Tests the first value of the named header
// (spec leaves multi-valued header semantics to the excluded generator;
// this core always tests against the concatenation the generator chose to
// emit, represented here as Header's first value).
func execTestHeader(renv any, pc *uint32) operand.Status {
	r := renv.(*interp.RunEnv)
	buf := r.CurBlock.Buf
	name, n, err := operand.ReadStringOperand(buf, int(*pc))
	if err != nil {
		return operand.StatusBinCorrupt
	}
	off := int(*pc) + n
	mt, cmp, keys, n2, err := readTestHead(buf, off)
	if err != nil {
		return operand.StatusBinCorrupt
	}
	*pc += uint32(n + n2)

	value := ""
	if r.Message != nil {
		value = r.Message.Header(name)
	}
	ok, err := runValueTest(r, mt, cmp, value, keys)
	if err != nil {
		return operand.StatusFailure
	}
	r.TestResult = ok
	return operand.StatusOK
}

// addressPart selects which slice of an address string a ":domain" /
// ":localpart" test sees. This is a simplification: it splits on the last
// "@" rather than doing full RFC 5322 address-list parsing, which belongs
// to the excluded semantic layer.
func addressPart(part uint32, addr string) string {
	at := -1
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == '@' {
			at = i
			break
		}
	}
	switch part {
	case 1: // localpart
		if at < 0 {
			return addr
		}
		return addr[:at]
	case 2: // domain
		if at < 0 {
			return ""
		}
		return addr[at+1:]
	default: // all
		return addr
	}
}

// execTestAddress implements the base "address" test over a header whose
// value is treated as a single address (see addressPart's simplification
// note).
func execTestAddress(renv any, pc *uint32) operand.Status {
	r := renv.(*interp.RunEnv)
	buf := r.CurBlock.Buf
	name, n, err := operand.ReadStringOperand(buf, int(*pc))
	if err != nil {
		return operand.StatusBinCorrupt
	}
	off := int(*pc) + n
	if off >= len(buf) {
		return operand.StatusBinCorrupt
	}
	part := uint32(buf[off])
	off++
	consumedPart := n + 1

	mt, cmp, keys, n2, err := readTestHead(buf, off)
	if err != nil {
		return operand.StatusBinCorrupt
	}
	*pc += uint32(consumedPart + n2)

	value := ""
	if r.Message != nil {
		value = addressPart(part, r.Message.Header(name))
	}
	ok, err := runValueTest(r, mt, cmp, value, keys)
	if err != nil {
		return operand.StatusFailure
	}
	r.TestResult = ok
	return operand.StatusOK
}

// execTestSize implements "size :over/:under N". byte 0 = under, 1 = over.
func execTestSize(renv any, pc *uint32) operand.Status {
	r := renv.(*interp.RunEnv)
	buf := r.CurBlock.Buf
	if int(*pc) >= len(buf) {
		return operand.StatusBinCorrupt
	}
	over := buf[*pc] != 0
	off := int(*pc) + 1
	limit, n, err := operand.ReadNumberOperand(buf, off)
	if err != nil {
		return operand.StatusBinCorrupt
	}
	*pc += uint32(1 + n)

	size := uint64(0)
	if r.Message != nil {
		size = uint64(r.Message.Size)
	}
	if over {
		r.TestResult = size > limit
	} else {
		r.TestResult = size < limit
	}
	return operand.StatusOK
}

// execTestExists implements "exists" over a list of header names: true iff
// every named header is present.
func execTestExists(renv any, pc *uint32) operand.Status {
	r := renv.(*interp.RunEnv)
	names, n, err := operand.ReadStringListOperand(r.CurBlock.Buf, int(*pc))
	if err != nil {
		return operand.StatusBinCorrupt
	}
	*pc += uint32(n)

	all := true
	for _, name := range names {
		if r.Message == nil || len(r.Message.HeaderValues(name)) == 0 {
			all = false
			break
		}
	}
	r.TestResult = all
	return operand.StatusOK
}

func execTestNot(renv any, pc *uint32) operand.Status {
	r := renv.(*interp.RunEnv)
	r.TestResult = !r.TestResult
	return operand.StatusOK
}

func execTestTrue(renv any, pc *uint32) operand.Status {
	renv.(*interp.RunEnv).TestResult = true
	return operand.StatusOK
}

func execTestFalse(renv any, pc *uint32) operand.Status {
	renv.(*interp.RunEnv).TestResult = false
	return operand.StatusOK
}
