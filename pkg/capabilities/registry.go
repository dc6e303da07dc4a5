// Package capabilities holds the catalog of facilities a generated routine may
// use. Entries are rendered into the planning prompt; the builtins behind them
// are bound into a routine's namespace only when the subtask declares them.
package capabilities

import (
	"fmt"
	"os"
	"sort"

	"go.starlark.net/starlark"
	"gopkg.in/yaml.v3"
)

type Entry struct {
	Identifiers        []string `json:"identifiers" yaml:"identifiers"`
	UsageInstructions  string   `json:"usage_instructions" yaml:"usage_instructions"`
	ExampleBody        string   `json:"example_body" yaml:"example_body"`
	UseExampleVerbatim bool     `json:"use_example_verbatim" yaml:"use_example_verbatim"`
}

type catalogFile struct {
	Capabilities []Entry `yaml:"capabilities"`
}

type Registry struct {
	entries  []Entry
	builtins starlark.StringDict
}

type Option func(*Registry)

func New(opts ...Option) *Registry {
	r := &Registry{
		entries:  make([]Entry, 0),
		builtins: starlark.StringDict{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds e to the catalog and binds members under their names.
// An entry with an identifier already known replaces the old entry.
func (r *Registry) Register(e Entry, members starlark.StringDict) {
	for k, v := range members {
		r.builtins[k] = v
	}
	for i, old := range r.entries {
		if overlaps(old.Identifiers, e.Identifiers) {
			r.entries[i] = e
			return
		}
	}
	r.entries = append(r.entries, e)
}

func (r *Registry) Catalog() []Entry {
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Available lists the identifiers that can be bound.
func (r *Registry) Available() []string {
	ids := r.builtins.Keys()
	sort.Strings(ids)
	return ids
}

// Bind returns the builtins for ids. Every id must be bindable.
func (r *Registry) Bind(ids []string) (starlark.StringDict, error) {
	out := make(starlark.StringDict, len(ids))
	for _, id := range ids {
		v, ok := r.builtins[id]
		if !ok {
			return nil, fmt.Errorf("capability '%s' is not available", id)
		}
		out[id] = v
	}
	return out, nil
}

// LoadCatalog merges catalog entries from a YAML file. Entries naming an
// identifier without a builtin are shown to the oracle but cannot be bound.
func (r *Registry) LoadCatalog(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read catalog: %w", err)
	}
	var f catalogFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("parse catalog: %w", err)
	}
	for i, e := range f.Capabilities {
		if len(e.Identifiers) == 0 {
			return fmt.Errorf("catalog entry %d: no identifiers", i)
		}
		r.Register(e, nil)
	}
	return nil
}

func overlaps(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}
