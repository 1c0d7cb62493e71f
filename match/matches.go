package match

import "fmt"

// MatchesType implements `:matches`: a glob over `*` (any run, including
// empty) and `?` (exactly one character), with `\*` and `\?` as escaped
// literals. Each wildcard's expansion is captured in order for
// `${1}`, `${2}`, ... when a Builder is supplied. Case folding is delegated
// to the comparator.
type MatchesType struct{}

func (MatchesType) Name() string { return "matches" }

func (MatchesType) ValidateContext(Comparator) error { return nil }

func (MatchesType) NewSession(c Comparator, b *Builder) Session {
	return &matchesSession{c: c, captures: b}
}

type globTokenKind int

const (
	tokLiteral globTokenKind = iota
	tokAny     // '*'
	tokOne     // '?'
)

type globToken struct {
	kind globTokenKind
	r    rune
}

func parseGlob(pattern string) []globToken {
	var toks []globToken
	runes := []rune(pattern)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '\\' && i+1 < len(runes) && (runes[i+1] == '*' || runes[i+1] == '?' || runes[i+1] == '\\'):
			toks = append(toks, globToken{kind: tokLiteral, r: runes[i+1]})
			i++
		case r == '*':
			toks = append(toks, globToken{kind: tokAny})
		case r == '?':
			toks = append(toks, globToken{kind: tokOne})
		default:
			toks = append(toks, globToken{kind: tokLiteral, r: r})
		}
	}
	return toks
}

type matchesSession struct {
	c        Comparator
	captures *Builder
}

func (s *matchesSession) Match(value, key string, _ int) (bool, error) {
	toks := parseGlob(key)
	vr := []rune(value)
	ok, caps := globTry(toks, 0, vr, 0, s.c)
	if !ok {
		return false, nil
	}
	if s.captures != nil {
		for _, c := range caps {
			s.captures.Append(c)
		}
	}
	return true, nil
}

func (s *matchesSession) Deinit() {}

// globTry attempts to match toks[ti:] against value[vi:], returning the
// wildcard captures encountered from ti onward, in order, on success.
func globTry(toks []globToken, ti int, value []rune, vi int, c Comparator) (bool, []string) {
	if ti == len(toks) {
		return vi == len(value), nil
	}
	tok := toks[ti]
	switch tok.kind {
	case tokLiteral:
		if vi >= len(value) || c.FoldRune(value[vi]) != c.FoldRune(tok.r) {
			return false, nil
		}
		return globTry(toks, ti+1, value, vi+1, c)
	case tokOne:
		if vi >= len(value) {
			return false, nil
		}
		ok, rest := globTry(toks, ti+1, value, vi+1, c)
		if !ok {
			return false, nil
		}
		return true, prepend(string(value[vi]), rest)
	case tokAny:
		for n := 0; vi+n <= len(value); n++ {
			ok, rest := globTry(toks, ti+1, value, vi+n, c)
			if ok {
				return true, prepend(string(value[vi:vi+n]), rest)
			}
		}
		return false, nil
	default:
		panic(fmt.Sprintf("match: unknown glob token kind %d", tok.kind))
	}
}

func prepend(s string, rest []string) []string {
	out := make([]string, 0, len(rest)+1)
	out = append(out, s)
	out = append(out, rest...)
	return out
}
