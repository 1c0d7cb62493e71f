// Package extension implements the process-wide extension registry (spec
// §4.2): a catalogue of language extensions addressable by name and by a
// stable integer id allocated at registration, plus the per-binary link
// table that maps local bytecode indices to that global catalogue.
package extension

import (
	"fmt"
	"sync"

	"github.com/sievebox/sievecore/bytecode"
	"github.com/sievebox/sievecore/operand"
)

// BinaryHooks are the lifecycle callbacks an extension may implement for a
// specific binary: flushing deferred state on save, and re-hydrating state
// on load.
type BinaryHooks struct {
	Save func(ctx *Context, b *bytecode.Binary) error
	Load func(ctx *Context, b *bytecode.Binary) error
}

// Descriptor is a process-global, immutable extension description. Most
// fields are optional: a preloaded core extension (match-type, comparator,
// address-part) typically has no operation table of its own, while a
// regular extension (fileinto, vacation, regex, variables, ...) usually
// does.
type Descriptor struct {
	Name       string
	Preloaded  bool
	Operations *operand.OperationTable
	Capability string

	// NewContext allocates a fresh per-binary context, or nil if the
	// extension carries no per-binary state.
	NewContext func() *Context
	Hooks      BinaryHooks
}

// Context is the opaque per-binary state an extension may allocate. It is
// intentionally a loose bag of fields rather than an interface{}: concrete
// extensions type-assert Data to their own state struct.
type Context struct {
	Data any
}

// Registry is the process-wide, append-only catalogue of extensions.
// Registration is idempotent by name; the registry forbids further
// registration once any binary has been loaded through it (spec §9: "forbid
// mutation after first binary load").
type Registry struct {
	mu       sync.Mutex
	byName   map[string]int
	descs    []*Descriptor
	loadSeen bool
}

// NewRegistry creates an empty registry. Preloaded core extensions should
// be registered immediately after construction, before any binary loads.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]int)}
}

// Register adds a descriptor and returns its global id. Re-registering the
// same name returns the existing id without modifying the stored
// descriptor.
func (r *Registry) Register(d *Descriptor) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.byName[d.Name]; ok {
		return id, nil
	}
	if r.loadSeen {
		return 0, fmt.Errorf("extension %q registered after first binary load", d.Name)
	}
	id := len(r.descs)
	r.descs = append(r.descs, d)
	r.byName[d.Name] = id
	return id, nil
}

// Lookup resolves a name to its descriptor and global id.
func (r *Registry) Lookup(name string) (*Descriptor, int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byName[name]
	if !ok {
		return nil, 0, false
	}
	return r.descs[id], id, true
}

// ByID resolves a global id to its descriptor.
func (r *Registry) ByID(id int) (*Descriptor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id < 0 || id >= len(r.descs) {
		return nil, false
	}
	return r.descs[id], true
}

// Preloaded returns every descriptor marked Preloaded — these are linked
// into every binary implicitly, without a `require` statement.
func (r *Registry) Preloaded() []*Descriptor {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Descriptor
	for _, d := range r.descs {
		if d.Preloaded {
			out = append(out, d)
		}
	}
	return out
}

// markLoadSeen freezes the registry against further registration. Called by
// Link the first time any binary links against this registry.
func (r *Registry) markLoadSeen() {
	r.mu.Lock()
	r.loadSeen = true
	r.mu.Unlock()
}
