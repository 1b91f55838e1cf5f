package parser

import (
	"fmt"
	"strings"
	"time"

	"importcheck/internal/core/errors"
	"importcheck/internal/shared/observability"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// Parser turns Python source into FileFacts.
type Parser struct {
	pool *ParserPool
}

func NewParser() *Parser {
	return &Parser{pool: NewParserPool(PythonLanguage())}
}

// ParseFile extracts facts from content. Source with syntax errors yields a
// CodeParseFailure error and no facts.
func (p *Parser) ParseFile(path string, content []byte) (FileFacts, error) {
	start := time.Now()
	defer func() {
		observability.ParsingDuration.Observe(time.Since(start).Seconds())
	}()

	sp := p.pool.Get()
	defer p.pool.Put(sp)

	tree := sp.Parse(content, nil)
	if tree == nil {
		return FileFacts{}, errors.AddContext(errors.New(errors.CodeInternal, "parse failed"), errors.CtxPath, path)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		msg := "syntax error"
		if bad := firstErrorNode(root); bad != nil {
			pos := bad.StartPosition()
			msg = fmt.Sprintf("syntax error at line %d column %d", pos.Row+1, pos.Column+1)
		}
		return FileFacts{}, errors.AddContext(errors.New(errors.CodeParseFailure, msg), errors.CtxPath, path)
	}
	if legacy := firstLegacyStatement(root); legacy != nil {
		pos := legacy.StartPosition()
		msg := fmt.Sprintf("python 2 %s at line %d column %d", strings.TrimSuffix(legacy.Kind(), "_statement"), pos.Row+1, pos.Column+1)
		return FileFacts{}, errors.AddContext(errors.New(errors.CodeParseFailure, msg), errors.CtxPath, path)
	}

	return Extract(root, content), nil
}

// firstErrorNode returns the first ERROR or MISSING node in document order.
func firstErrorNode(node *sitter.Node) *sitter.Node {
	if node == nil {
		return nil
	}
	if node.IsError() || node.IsMissing() {
		return node
	}
	if !node.HasError() {
		return nil
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child.IsError() || child.IsMissing() {
			return child
		}
		if found := firstErrorNode(child); found != nil {
			return found
		}
	}
	return node
}

// firstLegacyStatement finds print and exec statements. The grammar still
// accepts them but Python 3 rejects the file.
func firstLegacyStatement(node *sitter.Node) *sitter.Node {
	switch node.Kind() {
	case "print_statement", "exec_statement":
		return node
	}
	for i := uint(0); i < node.NamedChildCount(); i++ {
		if found := firstLegacyStatement(node.NamedChild(i)); found != nil {
			return found
		}
	}
	return nil
}
