package interp

// TraceEvent is one per-operation structured trace record (spec §4.5:
// "optional per-operation structured trace consumed by dev tooling; MUST NOT
// change semantics"). tracewire.Writer encodes these onto the wire; sieve-test
// --tui renders them live.
type TraceEvent struct {
	PC         uint32
	Mnemonic   string
	Status     string
	TestResult bool
	LoopDepth  int
}

// TraceSink receives trace events as they are produced. Emit must not block
// the interpreter indefinitely — implementations that write to a slow sink
// (a socket, a TUI channel) are expected to buffer or drop rather than stall
// script execution.
type TraceSink interface {
	Emit(ev TraceEvent)
}

// NopTrace discards every event; the zero value of RunEnv.Trace when tracing
// is not requested.
type NopTrace struct{}

func (NopTrace) Emit(TraceEvent) {}
