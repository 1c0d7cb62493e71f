// Package main provides the sieve-test CLI entrypoint: dry-running a
// compiled binary against a message and printing (or, with --tui,
// interactively paging through) the action plan it would commit.
//
// Usage:
//
//	sieve-test run <bin> <message.eml> [--tui] [--format json|table|yaml]
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/sievebox/sievecore/cli/cmd"
)

var commit = "unknown"

func main() {
	app := &cli.App{
		Name:           "sieve-test",
		Usage:          "Dry-run a compiled Sieve binary against a message",
		Version:        fmt.Sprintf("%s (commit: %s)", cmd.Version, commit),
		ExitErrHandler: exitErrHandler,
		Commands: []*cli.Command{
			cmd.TestRunCommand(),
			cmd.VersionCommand("", commit),
		},
	}

	if err := app.Run(os.Args); err != nil {
		os.Exit(1)
	}
}

func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}

	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(code)
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
