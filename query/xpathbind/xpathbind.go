package xpathbind

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"

	"github.com/goschematron/validator/cache"
	"github.com/goschematron/validator/query"
)

// DefaultCacheSize bounds the compiled-expression cache when no size is
// configured.
const DefaultCacheSize = 2000

// Compile guard: Parser must satisfy the query capability.
var _ query.Parser = (*Parser)(nil)

// Recorder receives cache effectiveness events. *schematron.Metrics
// satisfies it.
type Recorder interface {
	RecordCacheHit()
	RecordCacheMiss()
}

// Parser compiles XPath expressions under a fixed namespace environment.
// Parsers are safe for concurrent use; derived parsers share the compiled
// cache.
type Parser struct {
	namespaces map[string]string
	nsKey      string
	exprs      *cache.Cache[string, *compiled]
	rec        Recorder
}

// Option configures a Parser.
type Option func(*Parser)

// WithCacheSize sets the compiled-expression cache capacity.
func WithCacheSize(n int) Option {
	return func(p *Parser) {
		if n > 0 {
			p.exprs = cache.New[string, *compiled](n)
		}
	}
}

// WithNamespaces sets the prefix bindings expressions compile under.
func WithNamespaces(ns map[string]string) Option {
	return func(p *Parser) {
		p.setNamespaces(ns)
	}
}

// WithRecorder wires cache hit/miss events to a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(p *Parser) {
		p.rec = r
	}
}

// New creates a Parser.
func New(opts ...Option) *Parser {
	p := &Parser{}
	for _, opt := range opts {
		opt(p)
	}
	if p.exprs == nil {
		p.exprs = cache.New[string, *compiled](DefaultCacheSize)
	}
	return p
}

// WithNamespaces returns a parser compiling under ns. The compiled cache
// is shared with the receiver; cache keys carry the namespace environment
// so entries never cross bindings.
func (p *Parser) WithNamespaces(ns map[string]string) query.Parser {
	d := &Parser{exprs: p.exprs, rec: p.rec}
	d.setNamespaces(ns)
	return d
}

func (p *Parser) setNamespaces(ns map[string]string) {
	if len(ns) == 0 {
		p.namespaces = nil
		p.nsKey = ""
		return
	}
	p.namespaces = make(map[string]string, len(ns))
	prefixes := make([]string, 0, len(ns))
	for prefix, uri := range ns {
		p.namespaces[prefix] = uri
		prefixes = append(prefixes, prefix)
	}
	sort.Strings(prefixes)
	var b strings.Builder
	for _, prefix := range prefixes {
		b.WriteString(prefix)
		b.WriteByte('=')
		b.WriteString(p.namespaces[prefix])
		b.WriteByte(';')
	}
	p.nsKey = b.String()
}

// Parse compiles source. Variable-free expressions compile immediately, so
// syntax errors surface here; expressions referencing $names compile at
// evaluation time, once their values are known.
func (p *Parser) Parse(source string) (query.Expr, error) {
	if strings.TrimSpace(source) == "" {
		return nil, errors.New("xpathbind: empty expression")
	}
	e := &expr{p: p, source: source, refs: scanRefs(source)}
	if len(e.refs) == 0 {
		c, err := p.compile(source)
		if err != nil {
			return nil, err
		}
		e.static = c
	}
	return e, nil
}

// CacheStats reports compiled-expression cache effectiveness.
func (p *Parser) CacheStats() cache.Stats {
	return p.exprs.Stats()
}

// compiled pairs an engine expression with a mutex: the engine keeps
// iterator state on the compiled query, so evaluations are serialized per
// expression. Node-set iteration happens on a per-call clone and needs no
// lock.
type compiled struct {
	mu   sync.Mutex
	expr *xpath.Expr
}

func (c *compiled) evaluate(nav *xmlquery.NodeNavigator) any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expr.Evaluate(nav)
}

func (p *Parser) compile(src string) (*compiled, error) {
	key := p.nsKey + "\x00" + src
	if c, ok := p.exprs.Get(key); ok {
		if p.rec != nil {
			p.rec.RecordCacheHit()
		}
		return c, nil
	}
	if p.rec != nil {
		p.rec.RecordCacheMiss()
	}
	return p.exprs.GetOrCompute(key, func() (*compiled, error) {
		var (
			xe  *xpath.Expr
			err error
		)
		if len(p.namespaces) > 0 {
			xe, err = xpath.CompileWithNS(src, p.namespaces)
		} else {
			xe, err = xpath.Compile(src)
		}
		if err != nil {
			return nil, fmt.Errorf("xpathbind: compile %q: %w", src, err)
		}
		return &compiled{expr: xe}, nil
	})
}
