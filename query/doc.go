// Package query defines the expression-evaluation capability the engine
// consumes: compiling expression text in the schema's query language and
// evaluating it under a context node and a variable scope.
//
// The engine never interprets expressions itself. It hands each rule
// context, check test, let value, and subject path to a Parser and works
// with the resulting Expr values. The concrete binding lives in a
// subpackage (xpathbind for the XSLT/XPath bindings); keeping it behind
// these interfaces means the engine code never names the XPath engine.
package query
