// Package metrics provides per-run metrics collection (spec §4.9's
// ambient metrics stack).
//
// The Collector accumulates counters across script compiles and message
// executions. It is a leaf package with no internal dependencies.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all counters. Returned
// by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	ScriptsCompiled int64
	ScriptsExecuted int64

	OperationsExecuted int64

	ActionsCommitted int64
	ActionsDuplicate int64
	ActionsConflict  int64

	MatchAttempts int64
	MatchErrors   int64

	BinaryCorruptions int64
	KeepFailures      int64

	// Dimensions (informational, set at construction)
	Username string
	Script   string
}

// Collector accumulates metrics during a host process's lifetime.
// Thread-safe via sync.Mutex. All increment methods are nil-receiver safe
// so a host that did not wire metrics can still call them unconditionally.
type Collector struct {
	mu sync.Mutex

	scriptsCompiled int64
	scriptsExecuted int64

	operationsExecuted int64

	actionsCommitted int64
	actionsDuplicate int64
	actionsConflict  int64

	matchAttempts int64
	matchErrors   int64

	binaryCorruptions int64
	keepFailures      int64

	username string
	script   string
}

// NewCollector creates a Collector with dimension labels.
func NewCollector(username, script string) *Collector {
	return &Collector{username: username, script: script}
}

// IncScriptsCompiled records a successful compile/open.
func (c *Collector) IncScriptsCompiled() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.scriptsCompiled++
	c.mu.Unlock()
}

// IncScriptsExecuted records one execute/test run, regardless of outcome.
func (c *Collector) IncScriptsExecuted() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.scriptsExecuted++
	c.mu.Unlock()
}

// AddOperationsExecuted adds n to the dispatched-opcode counter.
func (c *Collector) AddOperationsExecuted(n int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.operationsExecuted += n
	c.mu.Unlock()
}

// IncActionsCommitted records one action reaching Commit successfully.
func (c *Collector) IncActionsCommitted() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.actionsCommitted++
	c.mu.Unlock()
}

// IncActionsDuplicate records AddAction collapsing a duplicate.
func (c *Collector) IncActionsDuplicate() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.actionsDuplicate++
	c.mu.Unlock()
}

// IncActionsConflict records AddAction rejecting a conflicting action.
func (c *Collector) IncActionsConflict() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.actionsConflict++
	c.mu.Unlock()
}

// IncMatchAttempts records one match.RunTest call.
func (c *Collector) IncMatchAttempts() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.matchAttempts++
	c.mu.Unlock()
}

// IncMatchErrors records a match.RunTest call that returned an error
// (e.g. an unsupported comparator/match-type pairing).
func (c *Collector) IncMatchErrors() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.matchErrors++
	c.mu.Unlock()
}

// IncBinaryCorruptions records a StatusBinCorrupt result.
func (c *Collector) IncBinaryCorruptions() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.binaryCorruptions++
	c.mu.Unlock()
}

// IncKeepFailures records an implicit keep that itself failed to commit.
func (c *Collector) IncKeepFailures() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.keepFailures++
	c.mu.Unlock()
}

// Snapshot returns an immutable point-in-time view of all counters.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		ScriptsCompiled: c.scriptsCompiled,
		ScriptsExecuted: c.scriptsExecuted,

		OperationsExecuted: c.operationsExecuted,

		ActionsCommitted: c.actionsCommitted,
		ActionsDuplicate: c.actionsDuplicate,
		ActionsConflict:  c.actionsConflict,

		MatchAttempts: c.matchAttempts,
		MatchErrors:   c.matchErrors,

		BinaryCorruptions: c.binaryCorruptions,
		KeepFailures:      c.keepFailures,

		Username: c.username,
		Script:   c.script,
	}
}
