package cmd

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/urfave/cli/v2"
)

func withStdin(t *testing.T, content string) {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "stdin")
	if err != nil {
		t.Fatalf("create stdin file: %v", err)
	}
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("write stdin file: %v", err)
	}
	if _, err := f.Seek(0, 0); err != nil {
		t.Fatalf("seek stdin file: %v", err)
	}
	old := os.Stdin
	os.Stdin = f
	t.Cleanup(func() {
		os.Stdin = old
		f.Close()
	})
}

func TestFilterAction_WrongArgCount(t *testing.T) {
	c := newArgsContext(t, FilterFlags())
	if err := FilterAction(c); err == nil {
		t.Fatal("expected an error for the wrong argument count")
	}
}

func TestFilterAction_MissingConfig(t *testing.T) {
	dir := t.TempDir()
	binPath := writeTestBinary(t, dir, "keep 1\n")
	c := newArgsContext(t, FilterFlags(), binPath)
	if err := c.Set("config", filepath.Join(dir, "nonexistent.yaml")); err != nil {
		t.Fatalf("set config flag: %v", err)
	}
	if err := FilterAction(c); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}

func TestFilterAction_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	binPath := writeTestBinary(t, dir, "keep 1\n")

	mailRoot := filepath.Join(dir, "mail")
	if err := os.Mkdir(mailRoot, 0o755); err != nil {
		t.Fatalf("mkdir mail root: %v", err)
	}
	cfgPath := filepath.Join(dir, "sieve.yaml")
	cfgYAML := "namespace:\n  root: " + mailRoot + "\nusername: alice\ndefault_mailbox: INBOX\nmailbox_autocreate: true\n"
	if err := os.WriteFile(cfgPath, []byte(cfgYAML), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	withStdin(t, sampleMessage)

	c := newArgsContext(t, FilterFlags(), binPath)
	if err := c.Set("config", cfgPath); err != nil {
		t.Fatalf("set config flag: %v", err)
	}
	// FilterAction always returns a *cli.ExitError, even on success (spec
	// §6: the host wrapper reads the process exit code, not stderr), so
	// success here means ExitCode() == 0, not err == nil.
	err := FilterAction(c)
	var exitCoder cli.ExitCoder
	if !errors.As(err, &exitCoder) {
		t.Fatalf("expected a cli.ExitCoder, got %v (%T)", err, err)
	}
	if exitCoder.ExitCode() != 0 {
		t.Fatalf("exit code = %d, want 0: %v", exitCoder.ExitCode(), err)
	}
	if _, err := os.Stat(filepath.Join(mailRoot, "INBOX", "new")); err != nil {
		t.Fatalf("expected a delivered message under INBOX/new: %v", err)
	}
}
