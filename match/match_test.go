package match_test

import (
	"testing"

	"github.com/sievebox/sievecore/match"
)

func TestIsType(t *testing.T) {
	mt, _ := match.Lookup("is")
	sess := mt.NewSession(match.Octet{}, nil)
	ok, err := match.RunTest(sess, "hello", []string{"world", "hello"})
	if err != nil || !ok {
		t.Fatalf("expected match, got ok=%v err=%v", ok, err)
	}
}

func TestContainsType(t *testing.T) {
	mt, _ := match.Lookup("contains")
	sess := mt.NewSession(match.ASCIICasemap{}, nil)
	ok, _ := match.RunTest(sess, "Hello World", []string{"WORLD"})
	if !ok {
		t.Fatalf("expected case-insensitive contains match")
	}
	ok, _ = match.RunTest(sess, "Hello World", []string{"xyz"})
	if ok {
		t.Fatalf("expected no match")
	}
}

func TestMatchesGlobCapture(t *testing.T) {
	mt, _ := match.Lookup("matches")
	reg := match.NewValueRegister()
	b := reg.Open()
	sess := mt.NewSession(match.ASCIICasemap{}, b)
	ok, err := match.RunTest(sess, "[sieve] hi", []string{"[*] *"})
	if err != nil || !ok {
		t.Fatalf("expected glob match, got ok=%v err=%v", ok, err)
	}
	b.Commit()
	if got := reg.Get(0); got != "sieve" {
		t.Errorf("capture 0 = %q, want sieve", got)
	}
	if got := reg.Get(1); got != "hi" {
		t.Errorf("capture 1 = %q, want hi", got)
	}
}

func TestMatchesEscapedWildcard(t *testing.T) {
	mt, _ := match.Lookup("matches")
	sess := mt.NewSession(match.Octet{}, nil)
	ok, _ := match.RunTest(sess, "a*b", []string{`a\*b`})
	if !ok {
		t.Fatalf("expected escaped literal * to match")
	}
	ok, _ = match.RunTest(sess, "axb", []string{`a\*b`})
	if ok {
		t.Fatalf("escaped * must not behave as wildcard")
	}
}

func TestRegexCaptures(t *testing.T) {
	mt, _ := match.Lookup("regex")
	reg := match.NewValueRegister()
	b := reg.Open()
	sess := mt.NewSession(match.ASCIICasemap{}, b)
	ok, err := match.RunTest(sess, "[sieve] hi", []string{`^\[(.*)\] `})
	if err != nil || !ok {
		t.Fatalf("expected regex match, got ok=%v err=%v", ok, err)
	}
	b.Commit()
	if got := reg.Get(1); got != "sieve" {
		t.Errorf("capture 1 = %q, want sieve", got)
	}
}

func TestRegexRejectsUnsupportedComparator(t *testing.T) {
	rt := match.RegexType{}
	if err := rt.ValidateContext(fakeComparator{}); err == nil {
		t.Fatalf("expected validation error for unsupported comparator")
	}
}

type fakeComparator struct{}

func (fakeComparator) Name() string                   { return "i;unicode-casemap" }
func (fakeComparator) Equal(a, b string) bool         { return a == b }
func (fakeComparator) IndexOf(value, key string) int  { return -1 }
func (fakeComparator) FoldRune(r rune) rune           { return r }
