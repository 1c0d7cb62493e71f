package match

import "fmt"

// Type is the match-type contract from spec §4.4: four hooks bracketing a
// test instruction. A session iterates the key list for each tested value
// and short-circuits on the first `yes`.
type Type interface {
	Name() string
	// ValidateContext checks this match type against a chosen comparator at
	// compile time (e.g. :regex only allows i;octet/i;ascii-casemap). The
	// interpreter never calls this — it is exposed for the (excluded)
	// validator and for tests that want to assert the same constraint.
	ValidateContext(c Comparator) error
	// NewSession allocates per-test match state. captures is nil when the
	// test has no variables capture enabled.
	NewSession(c Comparator, captures *Builder) Session
}

// Session is per-test match state, created by Type.NewSession and torn down
// by Deinit after the test completes (mirrors match_init/match_deinit).
type Session interface {
	// Match tests value against key at keyIndex within the test's key
	// list. Returns the match type's "yes"/"no" result.
	Match(value, key string, keyIndex int) (bool, error)
	Deinit()
}

// Registry resolves match-type names. Preloaded like comparators.
var typeRegistry = map[string]Type{}

func register(t Type) { typeRegistry[t.Name()] = t }

func init() {
	register(IsType{})
	register(ContainsType{})
	register(MatchesType{})
	register(RegexType{})
}

// Lookup resolves a match type by name.
func Lookup(name string) (Type, bool) {
	t, ok := typeRegistry[name]
	return t, ok
}

// RunTest iterates keys against value using the given type/session,
// stopping at the first match (spec §4.4: "the session short-circuits on
// the first yes and reports that").
func RunTest(sess Session, value string, keys []string) (bool, error) {
	for i, k := range keys {
		ok, err := sess.Match(value, k, i)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

var errUnsupportedComparator = fmt.Errorf("comparator not supported for this match type")
