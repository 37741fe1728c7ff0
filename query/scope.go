package query

import (
	"errors"
	"fmt"
	"sync"
)

// ErrUnbound is wrapped by Lookup when a name is bound nowhere in the
// scope chain.
var ErrUnbound = errors.New("unbound variable")

type bindingState uint8

const (
	bindingPending bindingState = iota
	bindingBusy
	bindingDone
)

// binding holds one variable's value, evaluated at most once.
type binding struct {
	mu    sync.Mutex
	state bindingState
	eval  func() (Value, error)
	val   Value
	err   error
}

func (b *binding) value(name string) (Value, error) {
	b.mu.Lock()
	switch b.state {
	case bindingDone:
		val, err := b.val, b.err
		b.mu.Unlock()
		return val, err
	case bindingBusy:
		b.mu.Unlock()
		return nil, fmt.Errorf("circular reference evaluating variable $%s", name)
	}
	b.state = bindingBusy
	eval := b.eval
	b.mu.Unlock()

	val, err := eval()

	b.mu.Lock()
	b.state = bindingDone
	b.val, b.err = val, err
	b.eval = nil
	b.mu.Unlock()
	return val, err
}

// Scope is a lexically nested variable environment. Lookups walk from the
// innermost scope outward; a query-valued binding is evaluated on first
// lookup and memoized, errors included. Within one scope a binding may
// reference bindings declared before it; referencing itself, directly or
// through a chain, is reported as a circular reference.
//
// Lookups of settled bindings are safe for concurrent use. Lazy evaluation
// itself is not goroutine-safe: a scope that will be shared across
// goroutines must be settled with Force first. Scopes built per goroutine
// (pattern and rule scopes during validation) need no forcing.
type Scope struct {
	parent *Scope

	mu       sync.Mutex
	names    []string
	bindings map[string]*binding
}

// NewScope returns an empty scope nested inside parent. A nil parent makes
// a root scope.
func NewScope(parent *Scope) *Scope {
	return &Scope{parent: parent}
}

// Parent returns the enclosing scope, or nil.
func (s *Scope) Parent() *Scope {
	return s.parent
}

// BindValue binds name to a settled value. Rebinding a name in the same
// scope replaces the earlier binding; binding a name already bound in an
// outer scope shadows it.
func (s *Scope) BindValue(name string, v Value) {
	s.bind(name, &binding{state: bindingDone, val: v})
}

// BindLazy binds name to an evaluation function invoked on first lookup.
// The outcome, value or error, is memoized.
func (s *Scope) BindLazy(name string, eval func() (Value, error)) {
	s.bind(name, &binding{eval: eval})
}

func (s *Scope) bind(name string, b *binding) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bindings == nil {
		s.bindings = make(map[string]*binding)
	}
	if _, exists := s.bindings[name]; !exists {
		s.names = append(s.names, name)
	}
	s.bindings[name] = b
}

// Lookup resolves name against this scope chain, innermost first. The
// error wraps ErrUnbound when no scope binds the name.
func (s *Scope) Lookup(name string) (Value, error) {
	for sc := s; sc != nil; sc = sc.parent {
		sc.mu.Lock()
		b := sc.bindings[name]
		sc.mu.Unlock()
		if b != nil {
			return b.value(name)
		}
	}
	return nil, fmt.Errorf("%w: $%s", ErrUnbound, name)
}

// Defined reports whether name is bound anywhere in the scope chain,
// without evaluating it.
func (s *Scope) Defined(name string) bool {
	for sc := s; sc != nil; sc = sc.parent {
		sc.mu.Lock()
		_, ok := sc.bindings[name]
		sc.mu.Unlock()
		if ok {
			return true
		}
	}
	return false
}

// Names returns the names bound directly in this scope, in declaration
// order, parents excluded.
func (s *Scope) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Force evaluates every binding of this scope in declaration order,
// settling it for concurrent use. Each binding's first error is memoized
// and keeps surfacing on lookup; Force itself returns them keyed by name
// so callers can report every failure, not just the first.
func (s *Scope) Force() map[string]error {
	var failed map[string]error
	for _, name := range s.Names() {
		if _, err := s.Lookup(name); err != nil {
			if failed == nil {
				failed = make(map[string]error)
			}
			failed[name] = err
		}
	}
	return failed
}
