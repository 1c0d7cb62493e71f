package cmd

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/sievebox/sievecore/asm"
	"github.com/sievebox/sievecore/bytecode"
	"github.com/sievebox/sievecore/extension"
)

// AssembleCommand returns the "assemble" command: compile a .sieveasm
// source file into a bytecode binary on disk.
func AssembleCommand() *cli.Command {
	return &cli.Command{
		Name:      "assemble",
		Usage:     "Assemble a .sieveasm source file into a bytecode binary",
		ArgsUsage: "<in.sieveasm> <out.svbin>",
		Action:    assembleAction,
	}
}

func assembleAction(c *cli.Context) error {
	if c.Args().Len() != 2 {
		return cli.Exit("usage: sievec assemble <in.sieveasm> <out.svbin>", exitConfigError)
	}
	in, out := c.Args().Get(0), c.Args().Get(1)

	src, err := os.ReadFile(in)
	if err != nil {
		return cli.Exit(fmt.Sprintf("read %s: %v", in, err), exitConfigError)
	}

	b, err := asm.Assemble(scriptNameFromPath(in), string(src))
	if err != nil {
		return cli.Exit(fmt.Sprintf("assemble: %v", err), exitConfigError)
	}

	links := &extension.LinkSet{}
	links.WriteLinkTable(b)
	if err := b.Save(out, nil); err != nil {
		return cli.Exit(fmt.Sprintf("write %s: %v", out, err), exitConfigError)
	}
	return nil
}

// InspectCommand returns the "inspect" command: dump a compiled binary's
// block table and link table without executing it.
func InspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Dump a compiled binary's block and link table",
		ArgsUsage: "<bin>",
		Action:    inspectAction,
	}
}

func inspectAction(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return cli.Exit("usage: sievec inspect <bin>", exitConfigError)
	}
	path := c.Args().Get(0)

	b, err := bytecode.Load(path)
	if err != nil {
		return cli.Exit(fmt.Sprintf("load %s: %v", path, err), exitScriptError)
	}

	fmt.Printf("script: %s\n", b.ScriptName)
	fmt.Printf("blocks:\n")
	for _, blk := range b.BlocksByID() {
		fmt.Printf("  id=%d owning_extension=%d size=%d\n", blk.ID, blk.OwningExtension, len(blk.Buf))
	}

	links, err := extension.Link(extension.NewRegistry(), b, true)
	if err != nil {
		fmt.Printf("link table: unresolved (%v)\n", err)
		return nil
	}
	fmt.Printf("link table:\n")
	for _, l := range links.All() {
		name := "<unknown>"
		if l.Descriptor != nil {
			name = l.Descriptor.Name
		}
		fmt.Printf("  local=%d global=%d name=%s\n", l.LocalIndex, l.GlobalID, name)
	}
	return nil
}

func scriptNameFromPath(path string) string {
	base := path
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			base = path[i+1:]
			break
		}
	}
	return base
}
