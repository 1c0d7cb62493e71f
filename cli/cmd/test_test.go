package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sievebox/sievecore/asm"
)

const sampleMessage = "From: a@x\r\nTo: b@x\r\nSubject: hi\r\n\r\nbody\r\n"

func writeTestBinary(t *testing.T, dir, src string) string {
	t.Helper()
	b, err := asm.Assemble("t", src)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	path := filepath.Join(dir, "t.svbin")
	if err := b.Save(path, nil); err != nil {
		t.Fatalf("save: %v", err)
	}
	return path
}

func TestTestRunAction_DryRunDoesNotRequireNamespaces(t *testing.T) {
	dir := t.TempDir()
	binPath := writeTestBinary(t, dir, "keep 1\n")
	msgPath := filepath.Join(dir, "m.eml")
	if err := os.WriteFile(msgPath, []byte(sampleMessage), 0o644); err != nil {
		t.Fatalf("write message: %v", err)
	}

	c := newArgsContext(t, ReadOnlyFlags(), binPath, msgPath)
	if err := testRunAction(c); err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestTestRunAction_WrongArgCount(t *testing.T) {
	c := newArgsContext(t, ReadOnlyFlags(), "only-one-arg")
	if err := testRunAction(c); err == nil {
		t.Fatal("expected an error for the wrong argument count")
	}
}

func TestTestRunAction_MissingBinary(t *testing.T) {
	dir := t.TempDir()
	msgPath := filepath.Join(dir, "m.eml")
	if err := os.WriteFile(msgPath, []byte(sampleMessage), 0o644); err != nil {
		t.Fatalf("write message: %v", err)
	}
	c := newArgsContext(t, ReadOnlyFlags(), "/nonexistent.svbin", msgPath)
	if err := testRunAction(c); err == nil {
		t.Fatal("expected an error for a missing binary")
	}
}
