package match

import (
	"fmt"
	"regexp"
)

// maxRegexCaptures bounds how many ${n} groups :regex populates (spec
// requires at least 9; this implementation allows more).
const maxRegexCaptures = 32

// RegexType implements `:regex`: POSIX extended regular expressions,
// restricted to the `i;octet` and `i;ascii-casemap` comparators. Each key's
// pattern is compiled lazily on first use and cached by key index for the
// lifetime of the session; ${0..N} captures populate from the match's
// submatches when enabled.
type RegexType struct{}

func (RegexType) Name() string { return "regex" }

func (RegexType) ValidateContext(c Comparator) error {
	switch c.Name() {
	case "i;octet", "i;ascii-casemap":
		return nil
	default:
		return fmt.Errorf("%w: :regex requires i;octet or i;ascii-casemap, got %s", errUnsupportedComparator, c.Name())
	}
}

func (RegexType) NewSession(c Comparator, b *Builder) Session {
	return &regexSession{c: c, captures: b, cache: make(map[int]*regexp.Regexp)}
}

type regexSession struct {
	c        Comparator
	captures *Builder
	cache    map[int]*regexp.Regexp
}

func (s *regexSession) compile(key string, keyIndex int) (*regexp.Regexp, error) {
	if re, ok := s.cache[keyIndex]; ok {
		return re, nil
	}
	pattern := key
	if s.c.Name() == "i;ascii-casemap" {
		pattern = foldASCIIString(pattern)
	}
	re, err := regexp.CompilePOSIX(pattern)
	if err != nil {
		return nil, fmt.Errorf("regex compile %q: %w", key, err)
	}
	s.cache[keyIndex] = re
	return re, nil
}

// foldASCIIString case-folds a string the same way ASCIICasemap.FoldRune
// does. regexp.CompilePOSIX parses with syntax.POSIX, which has no PerlX
// and so rejects an inline `(?i)` flag; folding the pattern and the
// matched value ourselves gets the same case-insensitive behavior without
// relying on a flag the POSIX parser can't see. Folding is byte-wise
// rather than rune-wise, but that's safe here: 'A'-'Z' never appear as
// continuation bytes of a multi-byte UTF-8 sequence, so this can't
// corrupt non-ASCII text, and it keeps byte offsets identical to the
// unfolded string.
func foldASCIIString(s string) string {
	b := []byte(s)
	for i, c := range b {
		b[i] = byte(foldASCII(rune(c)))
	}
	return string(b)
}

func (s *regexSession) Match(value, key string, keyIndex int) (bool, error) {
	re, err := s.compile(key, keyIndex)
	if err != nil {
		return false, err
	}
	matchValue := value
	if s.c.Name() == "i;ascii-casemap" {
		matchValue = foldASCIIString(value)
	}
	idx := re.FindStringSubmatchIndex(matchValue)
	if idx == nil {
		return false, nil
	}
	if s.captures != nil {
		n := len(idx) / 2
		if n > maxRegexCaptures {
			n = maxRegexCaptures
		}
		for i := 0; i < n; i++ {
			lo, hi := idx[2*i], idx[2*i+1]
			if lo < 0 || hi < 0 {
				s.captures.Skip()
				continue
			}
			s.captures.Append(value[lo:hi])
		}
	}
	return true, nil
}

// Deinit drops every compiled automaton cached for this test (spec §4.4:
// "frees all compiled automata on match_deinit").
func (s *regexSession) Deinit() {
	s.cache = nil
}
