// Package plugins loads feature modules into the command registry and records
// how each load went.
package plugins

import (
	"path"
	"sort"
	"strings"

	"plugbot/internal/enablement"
	"plugbot/pkg/bottypes"
)

// Slug derives a module slug from its configured name: the base name without
// extension, lowercased. "plugins/Quote.js" and "quote" both yield "quote".
func Slug(name string) string {
	base := path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if ext := path.Ext(base); ext != "" && ext != base {
		base = strings.TrimSuffix(base, ext)
	}
	return strings.ToLower(base)
}

// Spec is one configured module.
type Spec struct {
	Name      string         `mapstructure:"name" yaml:"name"`
	Essential bool           `mapstructure:"essential" yaml:"essential"`
	Prefs     bottypes.Prefs `mapstructure:"prefs" yaml:"prefs"`
}

// Factory constructs a module instance.
type Factory func() bottypes.Module

// Entry is the load outcome of one configured module.
type Entry struct {
	Slug      string
	Essential bool
	Module    bottypes.Module
	Err       error
}

// OK reports whether the module loaded.
func (e Entry) OK() bool {
	return e.Err == nil
}

// Catalog holds every configured module in configuration order.
// It is built by Load and not modified once dispatching starts.
type Catalog struct {
	entries   []Entry
	index     map[string]int
	observers []bottypes.Observer
}

var _ enablement.Catalog = (*Catalog)(nil)

func newCatalog() *Catalog {
	return &Catalog{index: make(map[string]int)}
}

func (c *Catalog) add(e Entry) {
	if _, dup := c.index[e.Slug]; !dup {
		c.index[e.Slug] = len(c.entries)
	}
	c.entries = append(c.entries, e)
}

// Modules returns a copy of all entries in configuration order.
func (c *Catalog) Modules() []Entry {
	return append([]Entry(nil), c.entries...)
}

// Loaded returns the number of modules that loaded.
func (c *Catalog) Loaded() int {
	n := 0
	for _, e := range c.entries {
		if e.OK() {
			n++
		}
	}
	return n
}

// FailedCount returns the number of modules that failed to load.
func (c *Catalog) FailedCount() int {
	return len(c.entries) - c.Loaded()
}

// Configurable returns the sorted slugs of non-essential modules, excluding the
// module that owns enable and disable. Failed modules are included.
func (c *Catalog) Configurable() []string {
	seen := make(map[string]bool)
	var out []string
	for _, e := range c.entries {
		if e.Essential || e.Slug == enablement.SelfModule || seen[e.Slug] {
			continue
		}
		seen[e.Slug] = true
		out = append(out, e.Slug)
	}
	sort.Strings(out)
	return out
}

// Known reports whether slug is configurable.
func (c *Catalog) Known(slug string) bool {
	i, ok := c.index[slug]
	if !ok {
		return false
	}
	e := c.entries[i]
	return !e.Essential && e.Slug != enablement.SelfModule
}

// Failed reports whether slug failed to load.
func (c *Catalog) Failed(slug string) bool {
	i, ok := c.index[slug]
	return ok && !c.entries[i].OK()
}

// Has reports whether slug is configured at all.
func (c *Catalog) Has(slug string) bool {
	_, ok := c.index[slug]
	return ok
}

// Observers returns the observers of loaded modules in load order.
func (c *Catalog) Observers() []bottypes.Observer {
	return append([]bottypes.Observer(nil), c.observers...)
}
