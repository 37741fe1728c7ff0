// Package ast defines the schema syntax tree consumed by the resolver,
// matcher, and check evaluator.
//
// The tree mirrors the source schema document: a Schema owns namespaces,
// phases, and patterns; patterns own rules; rules own checks, variable
// bindings, paragraphs, and extends references. Variant hierarchies
// (Pattern, Rule, Extends, Check, Variable, content parts) are sealed
// interfaces: each has an unexported marker method so the set of variants
// is closed and exhaustive type switches stay safe.
//
// Values are built once, by the parser or by hand in tests, and are
// treated as read-only by every engine component. Nothing in this package
// compiles or evaluates expressions; a Query is just the expression text
// as written in the schema.
package ast
