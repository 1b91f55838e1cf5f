package parser

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// wildcardMarker is the name recorded by "from M import *".
const wildcardMarker = "*"

// nodeKind is the closed set of Python syntax nodes the extractor reacts to.
// Everything else is nodeOther and only walked through.
type nodeKind int

const (
	nodeOther nodeKind = iota
	nodeImport
	nodeImportFrom
	nodeFutureImport
	nodeAssignment
	nodeFunction
	nodeClass
)

func classify(node *sitter.Node) nodeKind {
	switch node.Kind() {
	case "import_statement":
		return nodeImport
	case "import_from_statement":
		return nodeImportFrom
	case "future_import_statement":
		return nodeFutureImport
	case "assignment":
		return nodeAssignment
	case "function_definition":
		return nodeFunction
	case "class_definition":
		return nodeClass
	default:
		return nodeOther
	}
}

// Extract walks a syntactically valid Python tree and returns the imports
// it references and the names it defines. Definitions from every scope land
// in the same flat set: a method contributes exactly like a module-level
// function.
func Extract(root *sitter.Node, source []byte) FileFacts {
	v := &importsVisitor{source: source, facts: newFactsBuilder()}
	v.visit(root)
	return v.facts.build()
}

type importsVisitor struct {
	source []byte
	facts  *factsBuilder
}

func (v *importsVisitor) visit(node *sitter.Node) {
	if node == nil {
		return
	}

	switch classify(node) {
	case nodeImport:
		v.visitImport(node)
	case nodeImportFrom:
		v.visitImportFrom(node, v.fromModule(node.ChildByFieldName("module_name")))
	case nodeFutureImport:
		v.visitImportFrom(node, "__future__")
	case nodeAssignment:
		v.visitAssignment(node)
	case nodeFunction, nodeClass:
		v.facts.addDefined(v.text(node.ChildByFieldName("name")))
	case nodeOther:
	}

	for i := uint(0); i < node.ChildCount(); i++ {
		v.visit(node.Child(i))
	}
}

func (v *importsVisitor) visitImport(node *sitter.Node) {
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		switch child.Kind() {
		case "dotted_name":
			v.facts.addImport(v.dottedName(child))
		case "aliased_import":
			v.facts.addImport(v.dottedName(child.ChildByFieldName("name")))
		}
	}
}

// visitImportFrom records the names that follow the "import" keyword.
func (v *importsVisitor) visitImportFrom(node *sitter.Node, module string) {
	afterImport := false
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child.Kind() == "import" {
			afterImport = true
			continue
		}
		if !afterImport {
			continue
		}

		var name string
		switch child.Kind() {
		case "wildcard_import":
			name = wildcardMarker
		case "dotted_name":
			name = v.dottedName(child)
		case "aliased_import":
			name = v.dottedName(child.ChildByFieldName("name"))
		default:
			continue
		}
		v.recordFromName(module, name)
	}
}

func (v *importsVisitor) recordFromName(module, name string) {
	switch {
	case name == wildcardMarker:
		if module != "" {
			v.facts.addImport(module)
		}
	case module != "":
		v.facts.addImport(module + "." + name)
	default:
		v.facts.addImport(name)
	}
}

// fromModule returns the module of a from-import with any leading relative
// dots removed ("from ..pkg import x" -> "pkg", "from . import x" -> "").
func (v *importsVisitor) fromModule(node *sitter.Node) string {
	if node == nil {
		return ""
	}
	if node.Kind() != "relative_import" {
		return v.dottedName(node)
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child.Kind() == "dotted_name" {
			return v.dottedName(child)
		}
	}
	return ""
}

// visitAssignment records plain assignment targets. Annotated assignments
// carry a "type" field and are skipped.
func (v *importsVisitor) visitAssignment(node *sitter.Node) {
	if node.ChildByFieldName("type") != nil {
		return
	}
	left := node.ChildByFieldName("left")
	if left == nil {
		return
	}

	switch left.Kind() {
	case "identifier":
		v.facts.addDefined(v.text(left))
	case "pattern_list", "tuple_pattern", "list_pattern":
		for i := uint(0); i < left.NamedChildCount(); i++ {
			elt := left.NamedChild(i)
			if elt.Kind() == "identifier" {
				v.facts.addDefined(v.text(elt))
			}
		}
	}
}

// dottedName rebuilds "a.b.c" from identifier segments so that spacing or
// line continuations inside the source do not leak into the path.
func (v *importsVisitor) dottedName(node *sitter.Node) string {
	if node == nil {
		return ""
	}
	if node.Kind() != "dotted_name" {
		return v.text(node)
	}
	parts := make([]string, 0, node.NamedChildCount())
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		if child.Kind() == "identifier" {
			parts = append(parts, v.text(child))
		}
	}
	return strings.Join(parts, ".")
}

func (v *importsVisitor) text(node *sitter.Node) string {
	if node == nil {
		return ""
	}
	return strings.TrimSpace(string(v.source[node.StartByte():node.EndByte()]))
}
