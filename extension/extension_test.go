package extension_test

import (
	"testing"

	"github.com/sievebox/sievecore/bytecode"
	"github.com/sievebox/sievecore/extension"
)

func TestRegistryRegisterIsIdempotentByName(t *testing.T) {
	reg := extension.NewRegistry()
	id1, err := reg.Register(&extension.Descriptor{Name: "fileinto"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	id2, err := reg.Register(&extension.Descriptor{Name: "fileinto"})
	if err != nil {
		t.Fatalf("re-register: %v", err)
	}
	if id1 != id2 {
		t.Fatalf("re-registering the same name returned a different id: %d vs %d", id1, id2)
	}
}

func TestRegistryLookupAndByID(t *testing.T) {
	reg := extension.NewRegistry()
	id, err := reg.Register(&extension.Descriptor{Name: "vacation"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	desc, gotID, ok := reg.Lookup("vacation")
	if !ok || gotID != id || desc.Name != "vacation" {
		t.Fatalf("Lookup mismatch: desc=%v gotID=%d ok=%v", desc, gotID, ok)
	}
	byID, ok := reg.ByID(id)
	if !ok || byID.Name != "vacation" {
		t.Fatalf("ByID mismatch: %v ok=%v", byID, ok)
	}
	if _, ok := reg.ByID(id + 1); ok {
		t.Fatal("ByID should fail for an unregistered id")
	}
}

func TestRegistryPreloadedFiltersCorrectly(t *testing.T) {
	reg := extension.NewRegistry()
	if _, err := reg.Register(&extension.Descriptor{Name: "comparator-ascii-casemap", Preloaded: true}); err != nil {
		t.Fatalf("register preloaded: %v", err)
	}
	if _, err := reg.Register(&extension.Descriptor{Name: "vacation"}); err != nil {
		t.Fatalf("register regular: %v", err)
	}
	preloaded := reg.Preloaded()
	if len(preloaded) != 1 || preloaded[0].Name != "comparator-ascii-casemap" {
		t.Fatalf("Preloaded() = %v, want exactly the one preloaded descriptor", preloaded)
	}
}

func TestRegistryForbidsRegistrationAfterLink(t *testing.T) {
	reg := extension.NewRegistry()
	b := bytecode.New("t")
	if _, err := extension.Link(reg, b, false); err != nil {
		t.Fatalf("link: %v", err)
	}
	if _, err := reg.Register(&extension.Descriptor{Name: "late"}); err == nil {
		t.Fatal("expected registration after a binary load to fail")
	}
}

func TestLinkResolvesPreloadedAndRequiredExtensions(t *testing.T) {
	reg := extension.NewRegistry()
	if _, err := reg.Register(&extension.Descriptor{Name: "comparator-ascii-casemap", Preloaded: true}); err != nil {
		t.Fatalf("register preloaded: %v", err)
	}
	if _, err := reg.Register(&extension.Descriptor{Name: "vacation"}); err != nil {
		t.Fatalf("register vacation: %v", err)
	}

	b := bytecode.New("t")
	b.Links.Add("vacation", bytecode.MainBlockID)

	ls, err := extension.Link(reg, b, false)
	if err != nil {
		t.Fatalf("link: %v", err)
	}

	all := ls.All()
	if len(all) != 2 {
		t.Fatalf("All() = %d entries, want 2 (1 preloaded + 1 required)", len(all))
	}
	if _, ok := ls.ByLocal(0); !ok {
		t.Fatal("expected a linked extension at local index 0")
	}

	vacationDesc, vacationGID, _ := reg.Lookup("vacation")
	linked, ok := ls.ByGlobal(vacationGID)
	if !ok || linked.Descriptor != vacationDesc {
		t.Fatalf("ByGlobal(%d) = %v, ok=%v", vacationGID, linked, ok)
	}
}

func TestLinkFailsOnUnknownExtension(t *testing.T) {
	reg := extension.NewRegistry()
	b := bytecode.New("t")
	b.Links.Add("nonexistent", bytecode.MainBlockID)
	if _, err := extension.Link(reg, b, false); err == nil {
		t.Fatal("expected Link to fail on an unresolvable extension name")
	}
}

func TestLinkRunsLoadHooksOnlyWhenLoaded(t *testing.T) {
	reg := extension.NewRegistry()
	var loadCalls int
	if _, err := reg.Register(&extension.Descriptor{
		Name: "vacation",
		Hooks: extension.BinaryHooks{
			Load: func(ctx *extension.Context, b *bytecode.Binary) error {
				loadCalls++
				return nil
			},
		},
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	b := bytecode.New("t")
	b.Links.Add("vacation", bytecode.MainBlockID)

	if _, err := extension.Link(reg, b, false); err != nil {
		t.Fatalf("link (generated): %v", err)
	}
	if loadCalls != 0 {
		t.Fatalf("load hook ran %d times for a freshly generated binary, want 0", loadCalls)
	}

	reg2 := extension.NewRegistry()
	if _, err := reg2.Register(&extension.Descriptor{
		Name: "vacation",
		Hooks: extension.BinaryHooks{
			Load: func(ctx *extension.Context, b *bytecode.Binary) error {
				loadCalls++
				return nil
			},
		},
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	b2 := bytecode.New("t")
	b2.Links.Add("vacation", bytecode.MainBlockID)
	if _, err := extension.Link(reg2, b2, true); err != nil {
		t.Fatalf("link (loaded): %v", err)
	}
	if loadCalls != 1 {
		t.Fatalf("load hook ran %d times for a loaded binary, want 1", loadCalls)
	}
}

func TestWriteLinkTableOmitsPreloaded(t *testing.T) {
	reg := extension.NewRegistry()
	if _, err := reg.Register(&extension.Descriptor{Name: "comparator-ascii-casemap", Preloaded: true}); err != nil {
		t.Fatalf("register preloaded: %v", err)
	}
	if _, err := reg.Register(&extension.Descriptor{Name: "vacation"}); err != nil {
		t.Fatalf("register vacation: %v", err)
	}

	b := bytecode.New("t")
	b.Links.Add("vacation", bytecode.MainBlockID)
	ls, err := extension.Link(reg, b, false)
	if err != nil {
		t.Fatalf("link: %v", err)
	}

	out := bytecode.New("out")
	ls.WriteLinkTable(out)
	entries := out.Links.Entries()
	if len(entries) != 1 || entries[0].Name != "vacation" {
		t.Fatalf("WriteLinkTable() = %v, want exactly the one required (non-preloaded) entry", entries)
	}
}

func TestSaveHooksInvokesLinkedExtensionSaveHooks(t *testing.T) {
	reg := extension.NewRegistry()
	var saveCalls int
	if _, err := reg.Register(&extension.Descriptor{
		Name: "vacation",
		Hooks: extension.BinaryHooks{
			Save: func(ctx *extension.Context, b *bytecode.Binary) error {
				saveCalls++
				return nil
			},
		},
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	b := bytecode.New("t")
	b.Links.Add("vacation", bytecode.MainBlockID)
	ls, err := extension.Link(reg, b, false)
	if err != nil {
		t.Fatalf("link: %v", err)
	}

	for _, hook := range ls.SaveHooks() {
		if err := hook(b); err != nil {
			t.Fatalf("save hook: %v", err)
		}
	}
	if saveCalls != 1 {
		t.Fatalf("save hook ran %d times, want 1", saveCalls)
	}
}
