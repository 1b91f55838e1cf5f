package parser

import (
	"sync"
	"sync/atomic"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
)

var (
	pythonOnce sync.Once
	pythonLang *sitter.Language
)

// PythonLanguage returns the shared Python grammar.
func PythonLanguage() *sitter.Language {
	pythonOnce.Do(func() {
		pythonLang = sitter.NewLanguage(tree_sitter_python.Language())
	})
	return pythonLang
}

// ParserPool recycles tree-sitter parsers for one grammar so that extraction
// workers do not pay sitter.NewParser()/Close() per file.
//
//	sp := pool.Get()
//	defer pool.Put(sp)
//	tree := sp.Parse(source, nil)
//
// Safe for concurrent use.
type ParserPool struct {
	lang   *sitter.Language
	pool   sync.Pool
	leased atomic.Int64
}

func NewParserPool(lang *sitter.Language) *ParserPool {
	p := &ParserPool{lang: lang}
	p.pool = sync.Pool{
		New: func() any {
			sp := sitter.NewParser()
			_ = sp.SetLanguage(lang)
			return sp
		},
	}
	return p
}

// Get returns a parser configured for the pool's grammar.
func (p *ParserPool) Get() *sitter.Parser {
	sp := p.pool.Get().(*sitter.Parser)
	_ = sp.SetLanguage(p.lang)
	p.leased.Add(1)
	return sp
}

// Put resets sp and returns it to the pool. sp must not be used afterwards.
func (p *ParserPool) Put(sp *sitter.Parser) {
	if sp == nil {
		return
	}
	p.leased.Add(-1)
	sp.Reset()
	p.pool.Put(sp)
}

// leasedCount returns the number of parsers currently handed out.
func (p *ParserPool) leasedCount() int {
	return int(p.leased.Load())
}
