// Package tracewire implements interp.TraceSink as a length-prefixed
// msgpack frame stream, the same wire shape the host-side tooling
// (cmd/sieve-test's --tui mode) consumes to render a live trace.
package tracewire

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/sievebox/sievecore/interp"
)

// LengthPrefixSize is the size of the big-endian length prefix on each
// frame.
const LengthPrefixSize = 4

// MaxFrameSize bounds a single encoded trace frame.
const MaxFrameSize = 64 * 1024

// frame is the wire representation of a single interp.TraceEvent.
type frame struct {
	PC         uint32 `msgpack:"pc"`
	Mnemonic   string `msgpack:"mnemonic"`
	Status     string `msgpack:"status"`
	TestResult bool   `msgpack:"test_result"`
	LoopDepth  int    `msgpack:"loop_depth"`
}

// Writer emits trace events to w as length-prefixed msgpack frames,
// implementing interp.TraceSink. Safe for concurrent use by a single
// interpreter goroutine plus a separate flush/close caller.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriter wraps w as a trace sink.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Emit implements interp.TraceSink.
func (tw *Writer) Emit(ev interp.TraceEvent) {
	payload, err := msgpack.Marshal(frame{
		PC:         ev.PC,
		Mnemonic:   ev.Mnemonic,
		Status:     ev.Status,
		TestResult: ev.TestResult,
		LoopDepth:  ev.LoopDepth,
	})
	if err != nil {
		return
	}
	if len(payload) > MaxFrameSize-LengthPrefixSize {
		return
	}

	tw.mu.Lock()
	defer tw.mu.Unlock()
	var lengthBuf [LengthPrefixSize]byte
	binary.BigEndian.PutUint32(lengthBuf[:], uint32(len(payload)))
	if _, err := tw.w.Write(lengthBuf[:]); err != nil {
		return
	}
	tw.w.Write(payload)
}

var _ interp.TraceSink = (*Writer)(nil)

// Reader decodes the frame stream a Writer produces, for offline replay
// (e.g. cmd/sieve-test --tui reading a saved trace file).
type Reader struct {
	r io.Reader
}

// NewReader wraps r as a trace frame reader.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// ReadEvent reads and decodes the next frame, returning io.EOF once the
// stream is exhausted cleanly.
func (tr *Reader) ReadEvent() (interp.TraceEvent, error) {
	var lengthBuf [LengthPrefixSize]byte
	if _, err := io.ReadFull(tr.r, lengthBuf[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return interp.TraceEvent{}, fmt.Errorf("tracewire: truncated frame: %w", err)
		}
		return interp.TraceEvent{}, err
	}
	size := binary.BigEndian.Uint32(lengthBuf[:])
	if size > MaxFrameSize {
		return interp.TraceEvent{}, fmt.Errorf("tracewire: frame of %d bytes exceeds max %d", size, MaxFrameSize)
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(tr.r, payload); err != nil {
		return interp.TraceEvent{}, fmt.Errorf("tracewire: truncated payload: %w", err)
	}

	var f frame
	if err := msgpack.Unmarshal(payload, &f); err != nil {
		return interp.TraceEvent{}, fmt.Errorf("tracewire: decode: %w", err)
	}
	return interp.TraceEvent{
		PC:         f.PC,
		Mnemonic:   f.Mnemonic,
		Status:     f.Status,
		TestResult: f.TestResult,
		LoopDepth:  f.LoopDepth,
	}, nil
}
