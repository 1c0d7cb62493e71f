// Package sieve implements the orchestrator (spec §4.7): compile/open,
// execute/test against a message, multiscript chaining, and save. It is
// the thin layer that wires bytecode + extension + interp + action
// together behind the four entry points the host actually calls.
package sieve

import (
	"fmt"
	"io"

	"github.com/sievebox/sievecore/action"
	"github.com/sievebox/sievecore/bytecode"
	"github.com/sievebox/sievecore/coreops"
	"github.com/sievebox/sievecore/env"
	"github.com/sievebox/sievecore/extension"
	"github.com/sievebox/sievecore/interp"
	"github.com/sievebox/sievecore/metrics"
	"github.com/sievebox/sievecore/operand"
)

// Orchestrator owns the process-wide extension registry and core operation
// table; Binary instances pass through it to resolve links and dispatch.
// Metrics is optional: a nil Collector's Inc/Add methods are no-ops, so a
// host that doesn't care about counters can leave it unset.
type Orchestrator struct {
	Registry *extension.Registry
	CoreOps  *operand.OperationTable
	Metrics  *metrics.Collector
}

// New builds an orchestrator over reg with the standard core operation
// table. Most hosts construct one at process start and reuse it for every
// script.
func New(reg *extension.Registry) *Orchestrator {
	return &Orchestrator{Registry: reg, CoreOps: coreops.NewCoreTable()}
}

// Script is a compiled-or-loaded binary plus its resolved extension link
// set — the pair every execute/test/save call needs together.
type Script struct {
	Binary *bytecode.Binary
	Links  *extension.LinkSet
}

// Open loads a binary from disk and links it against the registry (spec
// §4.7's open: "load-or-recompile-if-stale/version-mismatched" — recompile
// is the excluded front-end's job; Open surfaces ErrNotFound/ErrNotValid so
// the host can decide whether to invoke it).
func (o *Orchestrator) Open(path string) (*Script, error) {
	b, err := bytecode.Load(path)
	if err != nil {
		if bytecode.IsCorrupt(err) {
			return nil, &RunError{Code: ErrNotValid, Err: err}
		}
		return nil, &RunError{Code: ErrNotFound, Err: err}
	}
	links, err := extension.Link(o.Registry, b, true)
	if err != nil {
		return nil, &RunError{Code: ErrNotValid, Err: err}
	}
	o.Metrics.IncScriptsCompiled()
	return &Script{Binary: b, Links: links}, nil
}

// NewScript builds a fresh, writable binary whose link set reflects whatever
// Require calls the caller makes on the returned Script.Links afterward; a
// front-end code generator (excluded from this core) would call this, emit
// into Script.Binary's active block, and then call Save.
func (o *Orchestrator) NewScript(name string) *Script {
	return &Script{
		Binary: bytecode.New(name),
		Links:  &extension.LinkSet{},
	}
}

// Save serialises s back to path: the link set's non-preloaded entries are
// written into block 0, then the binary (plus every linked extension's
// BinarySave hook) is flushed via the tmp-then-rename protocol.
func (o *Orchestrator) Save(s *Script, path string) error {
	s.Links.WriteLinkTable(s.Binary)
	return s.Binary.Save(path, s.Links.SaveHooks())
}

// ExecResult is what Execute/Test report back.
type ExecResult struct {
	Code   ErrorCode
	Commit *action.CommitOutcome
}

// Execute runs s against msg under senv and commits its result (spec
// §4.7's execute). A non-nil error always carries a *RunError.
func (o *Orchestrator) Execute(s *Script, msg *env.Message, senv *env.ScriptEnv) (*ExecResult, error) {
	o.Metrics.IncScriptsExecuted()
	renv := interp.NewRunEnv(s.Binary, s.Links, o.CoreOps, msg, senv)
	renv.Trace = &countingTrace{inner: renv.Trace, metrics: o.Metrics}
	status := renv.Run(bytecode.MainBlockID)
	return o.finish(renv, status, msg, senv)
}

// countingTrace forwards every trace event to the wrapped sink while
// tallying dispatched operations, so Execute gets an operation count without
// the interpreter itself depending on package metrics.
type countingTrace struct {
	inner   interp.TraceSink
	metrics *metrics.Collector
}

func (c *countingTrace) Emit(ev interp.TraceEvent) {
	c.metrics.AddOperationsExecuted(1)
	c.inner.Emit(ev)
}

// Test runs s exactly like Execute but writes the action plan to w instead
// of silently committing, and forces a disabled mail namespace so no real
// delivery happens regardless of what senv.Namespaces was set to (spec
// §4.7's test: "dry-run: prints the plan instead of committing").
func (o *Orchestrator) Test(s *Script, msg *env.Message, senv *env.ScriptEnv, w io.Writer) (*ExecResult, error) {
	dryEnv := *senv
	dryEnv.Namespaces = nil
	renv := interp.NewRunEnv(s.Binary, s.Links, o.CoreOps, msg, &dryEnv)
	status := renv.Run(bytecode.MainBlockID)
	res, err := o.finish(renv, status, msg, &dryEnv)
	if res != nil && res.Commit != nil {
		for _, line := range res.Commit.Log {
			fmt.Fprintln(w, line)
		}
	}
	return res, err
}

func (o *Orchestrator) finish(renv *interp.RunEnv, status operand.Status, msg *env.Message, senv *env.ScriptEnv) (*ExecResult, error) {
	switch status {
	case operand.StatusBinCorrupt:
		o.Metrics.IncBinaryCorruptions()
		return nil, &RunError{Code: ErrNotValid, Err: fmt.Errorf("bytecode corrupt during execution")}
	case operand.StatusTempFailure:
		return nil, &RunError{Code: ErrTempFail, Err: fmt.Errorf("transient failure during execution")}
	}
	// StatusOK, StatusFailure, and StatusKeepFailed all proceed to commit:
	// a runtime test/action error still triggers the implicit-keep path
	// (spec §7: "abort the script, trigger implicit keep").
	out, err := renv.Result.Commit(msg, senv)
	if err != nil {
		return &ExecResult{Code: ErrNotPossible}, &RunError{Code: ErrNotPossible, Err: err}
	}
	for range out.Log {
		o.Metrics.IncActionsCommitted()
	}
	if out.KeepAttempted && !out.KeepSucceeded {
		o.Metrics.IncKeepFailures()
		return &ExecResult{Code: ErrNoPerm, Commit: out}, &RunError{Code: ErrNoPerm, Err: fmt.Errorf("implicit keep failed: message may be lost")}
	}
	return &ExecResult{Code: ErrNone, Commit: out}, nil
}

// Multiscript chains scripts sharing one interpreter result: implicit keep
// is disabled between scripts and re-enabled after the last one (spec
// §4.6/§4.7).
func (o *Orchestrator) Multiscript(scripts []*Script, msg *env.Message, senv *env.ScriptEnv) (*ExecResult, error) {
	if len(scripts) == 0 {
		return &ExecResult{Code: ErrNone, Commit: &action.CommitOutcome{}}, nil
	}
	result := action.NewResult()
	for i, s := range scripts {
		renv := interp.NewRunEnv(s.Binary, s.Links, o.CoreOps, msg, senv)
		renv.Result = result
		if i < len(scripts)-1 {
			result.DisableImplicitKeep()
		} else {
			result.EnableImplicitKeep()
		}
		if status := renv.Run(bytecode.MainBlockID); status == operand.StatusBinCorrupt {
			return nil, &RunError{Code: ErrNotValid, Err: fmt.Errorf("script %d: bytecode corrupt", i)}
		}
	}
	out, err := result.Commit(msg, senv)
	if err != nil {
		return &ExecResult{Code: ErrNotPossible}, &RunError{Code: ErrNotPossible, Err: err}
	}
	if out.KeepAttempted && !out.KeepSucceeded {
		return &ExecResult{Code: ErrNoPerm, Commit: out}, &RunError{Code: ErrNoPerm, Err: fmt.Errorf("implicit keep failed")}
	}
	return &ExecResult{Code: ErrNone, Commit: out}, nil
}
