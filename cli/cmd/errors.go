package cmd

// Exit codes for failures the commands detect themselves (bad usage,
// unreadable input, load/link/assemble/commit errors), shared by sievec,
// sieve-test and sieve-filter. A *sieve.RunError from a script run exits
// with sieve.ErrorCode.ExitCode() instead.
const (
	exitSuccess     = 0
	exitScriptError = 1
	exitConfigError = 2
)
