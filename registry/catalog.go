// Package registry provides a named catalog of Schematron schemas.
//
// A catalog is described by a YAML manifest listing schema documents by
// name:
//
//	schemas:
//	  - name: invoice
//	    path: schemas/invoice.sch
//	    phase: strict
//	    description: Billing invariants for outbound invoices.
//
// Schema paths resolve relative to the manifest's directory. Entries are
// parsed and resolved on first lookup and cached, so repeated lookups are
// cheap and a Catalog is safe for concurrent use.
package registry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/goschematron/validator/cache"
	"github.com/goschematron/validator/parser"
)

// DefaultManifestName is the conventional manifest file name.
const DefaultManifestName = "catalog.yaml"

// ErrNotFound is wrapped by lookups of names the catalog does not hold.
var ErrNotFound = errors.New("schematron: schema not in catalog")

// Manifest mirrors the catalog YAML document.
type Manifest struct {
	// Version labels the manifest layout.
	Version string `yaml:"version,omitempty"`

	// Schemas lists the catalog entries in declaration order.
	Schemas []SchemaEntry `yaml:"schemas"`
}

// SchemaEntry describes one schema in the manifest.
type SchemaEntry struct {
	// Name is the lookup key, unique within the catalog.
	Name string `yaml:"name"`

	// Path locates the .sch document, relative to the manifest directory
	// unless absolute.
	Path string `yaml:"path"`

	// Phase pins the phase validators built from this entry run in.
	// Callers can still override it per validator.
	Phase string `yaml:"phase,omitempty"`

	// Description is free documentation text.
	Description string `yaml:"description,omitempty"`
}

// Catalog resolves schema names to parsed, resolved schemas.
type Catalog struct {
	base       string
	order      []string
	entries    map[string]SchemaEntry
	loaded     *cache.Cache[string, *Entry]
	cacheSize  int
	parserOpts []parser.Option
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithCacheSize bounds the number of loaded schemas kept in memory.
func WithCacheSize(n int) Option {
	return func(c *Catalog) {
		c.cacheSize = n
	}
}

// WithParserOptions forwards options to the schema parser, for example a
// custom include loader.
func WithParserOptions(opts ...parser.Option) Option {
	return func(c *Catalog) {
		c.parserOpts = append(c.parserOpts, opts...)
	}
}

// Open reads a manifest file and builds a catalog over it. Schema paths
// resolve relative to the manifest's directory.
func Open(path string, opts ...Option) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("schematron: reading catalog manifest: %w", err)
	}

	var manifest Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("schematron: parsing catalog manifest: %w", err)
	}

	return New(manifest, filepath.Dir(path), opts...)
}

// New builds a catalog from an in-memory manifest. Relative schema paths
// resolve against base.
func New(manifest Manifest, base string, opts ...Option) (*Catalog, error) {
	c := &Catalog{
		base:    base,
		entries: make(map[string]SchemaEntry, len(manifest.Schemas)),
	}
	for _, opt := range opts {
		opt(c)
	}

	for i, entry := range manifest.Schemas {
		if entry.Name == "" {
			return nil, fmt.Errorf("schematron: catalog entry %d has no name", i)
		}
		if entry.Path == "" {
			return nil, fmt.Errorf("schematron: catalog entry %q has no path", entry.Name)
		}
		if _, dup := c.entries[entry.Name]; dup {
			return nil, fmt.Errorf("schematron: catalog entry %q declared twice", entry.Name)
		}
		c.entries[entry.Name] = entry
		c.order = append(c.order, entry.Name)
	}

	c.loaded = cache.New[string, *Entry](c.cacheSize)
	return c, nil
}

// Names returns the catalog's schema names in manifest order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.order))
	copy(names, c.order)
	return names
}

// Len returns the number of entries in the manifest.
func (c *Catalog) Len() int {
	return len(c.order)
}

// Describe returns the manifest entry for name without loading the
// schema.
func (c *Catalog) Describe(name string) (SchemaEntry, bool) {
	entry, ok := c.entries[name]
	return entry, ok
}

// Stats reports load-cache effectiveness.
func (c *Catalog) Stats() cache.Stats {
	return c.loaded.Stats()
}
