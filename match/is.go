package match

// IsType implements `:is`: single equality via the comparator.
type IsType struct{}

func (IsType) Name() string { return "is" }

func (IsType) ValidateContext(Comparator) error { return nil }

func (IsType) NewSession(c Comparator, _ *Builder) Session {
	return &isSession{c: c}
}

type isSession struct{ c Comparator }

func (s *isSession) Match(value, key string, _ int) (bool, error) {
	return s.c.Equal(value, key), nil
}

func (s *isSession) Deinit() {}
