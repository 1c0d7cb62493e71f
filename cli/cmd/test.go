package cmd

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/sievebox/sievecore/bytecode"
	"github.com/sievebox/sievecore/cli/render"
	"github.com/sievebox/sievecore/coreops"
	"github.com/sievebox/sievecore/env"
	"github.com/sievebox/sievecore/extension"
	"github.com/sievebox/sievecore/interp"
	"github.com/sievebox/sievecore/msgload"
	"github.com/sievebox/sievecore/sieve"
	"github.com/sievebox/sievecore/tracewire"
)

// TestRunCommand returns the sieve-test "run" command: a dry run of a
// compiled binary against a message, printing the action plan instead of
// committing it. With --tui it pages through the trace and the plan in a
// bubbletea program instead.
func TestRunCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Dry-run a compiled binary against a message",
		ArgsUsage: "<bin> <message.eml>",
		Flags:     ReadOnlyFlags(),
		Action:    testRunAction,
	}
}

func testRunAction(c *cli.Context) error {
	if c.Args().Len() != 2 {
		return cli.Exit("usage: sieve-test run <bin> <message.eml>", exitConfigError)
	}
	binPath, msgPath := c.Args().Get(0), c.Args().Get(1)

	b, err := bytecode.Load(binPath)
	if err != nil {
		return cli.Exit(fmt.Sprintf("load %s: %v", binPath, err), exitScriptError)
	}

	reg := extension.NewRegistry()
	links, err := extension.Link(reg, b, true)
	if err != nil {
		return cli.Exit(fmt.Sprintf("link %s: %v", binPath, err), exitScriptError)
	}

	f, err := os.Open(msgPath)
	if err != nil {
		return cli.Exit(fmt.Sprintf("open %s: %v", msgPath, err), exitConfigError)
	}
	defer f.Close()
	msg, err := msgload.FromReader(f, msgPath)
	if err != nil {
		return cli.Exit(fmt.Sprintf("parse %s: %v", msgPath, err), exitConfigError)
	}

	senv := &env.ScriptEnv{DefaultMailbox: "INBOX"}

	if c.Bool("tui") {
		return testRunTUI(c, b, links, msg, senv)
	}

	orch := sieve.New(reg)
	script := &sieve.Script{Binary: b, Links: links}
	_, err = orch.Test(script, msg, senv, os.Stdout)
	if err != nil {
		if re, ok := err.(*sieve.RunError); ok {
			return cli.Exit(re.Error(), re.Code.ExitCode())
		}
		return cli.Exit(err.Error(), exitScriptError)
	}
	return nil
}

func testRunTUI(c *cli.Context, b *bytecode.Binary, links *extension.LinkSet, msg *env.Message, senv *env.ScriptEnv) error {
	var traceBuf bytes.Buffer
	renv := interp.NewRunEnv(b, links, coreops.NewCoreTable(), msg, senv)
	renv.Trace = tracewire.NewWriter(&traceBuf)
	renv.Run(bytecode.MainBlockID)

	out, err := renv.Result.Commit(msg, senv)
	if err != nil {
		return cli.Exit(fmt.Sprintf("commit: %v", err), exitScriptError)
	}

	tr := tracewire.NewReader(&traceBuf)
	var events []interp.TraceEvent
	for {
		ev, err := tr.ReadEvent()
		if err == io.EOF {
			break
		}
		if err != nil {
			return cli.Exit(fmt.Sprintf("decode trace: %v", err), exitScriptError)
		}
		events = append(events, ev)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	if err := r.RenderTUI("trace_run", events); err != nil {
		return err
	}
	return r.RenderTUI("plan_commit", out)
}
