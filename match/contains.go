package match

// ContainsType implements `:contains`: naive sliding-window substring
// search using the comparator's char-level equality. Contract: the whole
// key must be consumed within value; leftmost match wins, which matters
// for match-value capture even though it's moot for the boolean result.
type ContainsType struct{}

func (ContainsType) Name() string { return "contains" }

func (ContainsType) ValidateContext(Comparator) error { return nil }

func (ContainsType) NewSession(c Comparator, _ *Builder) Session {
	return &containsSession{c: c}
}

type containsSession struct{ c Comparator }

func (s *containsSession) Match(value, key string, _ int) (bool, error) {
	return s.c.IndexOf(value, key) >= 0, nil
}

func (s *containsSession) Deinit() {}
