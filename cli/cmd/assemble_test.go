package cmd

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/urfave/cli/v2"
)

func newArgsContext(t *testing.T, flags []cli.Flag, args ...string) *cli.Context {
	t.Helper()
	app := cli.NewApp()
	app.Flags = flags
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	for _, f := range flags {
		if err := f.Apply(fs); err != nil {
			t.Fatalf("apply flag: %v", err)
		}
	}
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse args: %v", err)
	}
	return cli.NewContext(app, fs, nil)
}

func TestAssembleThenInspectRoundTrip(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in.sieveasm")
	out := filepath.Join(dir, "out.svbin")
	if err := os.WriteFile(src, []byte("keep 1\n"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	c := newArgsContext(t, nil, src, out)
	if err := assembleAction(c); err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatalf("expected %s to exist: %v", out, err)
	}

	c2 := newArgsContext(t, nil, out)
	if err := inspectAction(c2); err != nil {
		t.Fatalf("inspect: %v", err)
	}
}

func TestAssembleAction_WrongArgCount(t *testing.T) {
	c := newArgsContext(t, nil, "only-one-arg")
	if err := assembleAction(c); err == nil {
		t.Fatal("expected an error for the wrong argument count")
	}
}

func TestInspectAction_MissingFile(t *testing.T) {
	c := newArgsContext(t, nil, "/nonexistent/path.svbin")
	if err := inspectAction(c); err == nil {
		t.Fatal("expected an error for a missing binary")
	}
}
