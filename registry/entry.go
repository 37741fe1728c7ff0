package registry

import (
	"context"
	"fmt"
	"path/filepath"

	schematron "github.com/goschematron/validator"
	"github.com/goschematron/validator/ast"
	"github.com/goschematron/validator/engine"
	"github.com/goschematron/validator/parser"
	"github.com/goschematron/validator/resolver"
)

// Entry is a loaded catalog schema.
type Entry struct {
	SchemaEntry

	// Schema is the parsed document.
	Schema *ast.Schema

	// Resolution carries the schema's assembled patterns and rules.
	Resolution *resolver.Resolution
}

// GetSchema returns the named schema, parsed and resolved. The first
// lookup loads the schema document; later lookups hit the cache. Load
// failures are not cached, so a fixed schema file is picked up by the
// next lookup.
func (c *Catalog) GetSchema(name string) (*Entry, error) {
	meta, ok := c.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}

	return c.loaded.GetOrCompute(name, func() (*Entry, error) {
		return c.load(meta)
	})
}

// Validator builds an engine validator for the named schema. A phase
// declared in the manifest applies unless the caller passes a phase of
// their own.
func (c *Catalog) Validator(ctx context.Context, name string, opts ...schematron.Option) (*engine.Validator, error) {
	entry, err := c.GetSchema(name)
	if err != nil {
		return nil, err
	}

	if entry.Phase != "" {
		opts = append([]schematron.Option{schematron.WithPhase(entry.Phase)}, opts...)
	}
	return engine.New(ctx, entry.Schema, opts...)
}

func (c *Catalog) load(meta SchemaEntry) (*Entry, error) {
	path := meta.Path
	if !filepath.IsAbs(path) {
		path = filepath.Join(c.base, path)
	}

	schema, err := parser.ParseSchemaFile(path, c.parserOpts...)
	if err != nil {
		return nil, fmt.Errorf("catalog schema %q: %w", meta.Name, err)
	}

	resolution, err := resolver.Resolve(schema)
	if err != nil {
		return nil, fmt.Errorf("catalog schema %q: %w", meta.Name, err)
	}

	if meta.Phase != "" && !phaseKnown(schema, meta.Phase) {
		return nil, fmt.Errorf("catalog schema %q: %w", meta.Name,
			&schematron.UnknownPatternReferenceError{PatternID: meta.Phase})
	}

	return &Entry{SchemaEntry: meta, Schema: schema, Resolution: resolution}, nil
}

func phaseKnown(schema *ast.Schema, phase string) bool {
	if phase == resolver.PhaseAll || phase == resolver.PhaseDefault {
		return true
	}
	return schema.PhaseByID(phase) != nil
}
