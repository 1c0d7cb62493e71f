// Package main provides the sieve-filter CLI entrypoint: the mail delivery
// agent hook that executes a compiled binary against a message read from
// stdin and commits its actions through a real mailbox store, dedup, and
// notify host.
//
// Usage:
//
//	sieve-filter <bin> --config <path>  < message.eml
//
// Exit codes follow the host wrapper convention in sieve.ErrorCode.ExitCode().
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
		Name:           "sieve-filter",
		Usage:          "Execute a compiled Sieve binary against a message read from stdin",
		ArgsUsage:      "<bin>",
		Version:        fmt.Sprintf("%s (commit: %s)", cmd.Version, commit),
		Flags:          cmd.FilterFlags(),
		Action:         cmd.FilterAction,
		ExitErrHandler: exitErrHandler,
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
