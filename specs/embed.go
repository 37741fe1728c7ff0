// Package specs provides embedded sample Schematron schemas and XML
// documents for tests, examples, and quick experiments.
//
// The schemas cover the main authoring features:
//   - invoice.sch: patterns, variables, asserts and reports, diagnostics
//   - phased.sch: phase declarations with a default phase
//   - abstract.sch: abstract rules with extends, is-a pattern instances
//
// Usage:
//
//	data, err := specs.Schema(specs.SchemaFiles.Invoice)
//	if err != nil {
//	    return err
//	}
//	schema, err := parser.ParseSchema(bytes.NewReader(data))
package specs

import (
	"embed"
	"fmt"
)

// Embedded sample files.
//
//go:embed schemas/*.sch
var schemaFS embed.FS

//go:embed documents/*.xml
var documentFS embed.FS

// SchemaFiles names the embedded schema files.
var SchemaFiles = struct {
	Invoice  string
	Phased   string
	Abstract string
}{
	Invoice:  "invoice.sch",
	Phased:   "phased.sch",
	Abstract: "abstract.sch",
}

// DocumentFiles names the embedded XML documents.
var DocumentFiles = struct {
	InvoiceValid   string
	InvoiceInvalid string
	Order          string
}{
	InvoiceValid:   "invoice-valid.xml",
	InvoiceInvalid: "invoice-invalid.xml",
	Order:          "order.xml",
}

// Schema reads an embedded schema by file name.
func Schema(name string) ([]byte, error) {
	data, err := schemaFS.ReadFile("schemas/" + name)
	if err != nil {
		return nil, fmt.Errorf("schematron: reading embedded schema %s: %w", name, err)
	}
	return data, nil
}

// Document reads an embedded XML document by file name.
func Document(name string) ([]byte, error) {
	data, err := documentFS.ReadFile("documents/" + name)
	if err != nil {
		return nil, fmt.Errorf("schematron: reading embedded document %s: %w", name, err)
	}
	return data, nil
}

// ListSchemas returns the embedded schema file names.
func ListSchemas() ([]string, error) {
	return list(schemaFS, "schemas")
}

// ListDocuments returns the embedded XML document file names.
func ListDocuments() ([]string, error) {
	return list(documentFS, "documents")
}

func list(fsys embed.FS, dir string) ([]string, error) {
	entries, err := fsys.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("schematron: reading embedded directory %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}

// HasSchema reports whether an embedded schema with the given name exists.
func HasSchema(name string) bool {
	_, err := schemaFS.ReadFile("schemas/" + name)
	return err == nil
}
