// Package xpathbind implements the query interfaces over the antchfx
// XPath engine and the xmlquery document model. It is the expression
// capability behind the XSLT and XPath query bindings: rule contexts,
// check tests, let values, and subject paths all compile and evaluate
// here.
//
// The underlying engine has no variable support, so expressions that
// reference $names are rewritten per evaluation with the variable's value
// inlined as an XPath literal. Compiled expressions are kept in an LRU
// cache keyed by the final expression text, so the rewrite cost is paid
// once per distinct value.
package xpathbind
