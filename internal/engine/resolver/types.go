package resolver

import (
	"context"
	"fmt"
	"strings"

	"importcheck/internal/engine/parser"
)

type IssueKind int

const (
	IssueUndefined IssueKind = iota + 1
	IssueExternal
)

func (k IssueKind) String() string {
	switch k {
	case IssueUndefined:
		return "UNDEFINED"
	case IssueExternal:
		return "EXTERNAL"
	default:
		return "UNKNOWN"
	}
}

func (k IssueKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// ImportIssue is one import that failed to resolve.
type ImportIssue struct {
	File       string            `json:"file" yaml:"file"`
	ImportPath parser.DottedPath `json:"import_path" yaml:"import_path"`
	Message    string            `json:"message" yaml:"message"`
	Kind       IssueKind         `json:"kind" yaml:"kind"`
}

func (i ImportIssue) String() string {
	return fmt.Sprintf("[%s] %s: %s", i.Kind, i.File, i.Message)
}

// Layout names the on-disk conventions used for local resolution.
type Layout struct {
	SourceExtension string
	PackageInitFile string
}

func DefaultLayout() Layout {
	return Layout{SourceExtension: ".py", PackageInitFile: "__init__.py"}
}

func (l Layout) normalized() Layout {
	def := DefaultLayout()
	if strings.TrimSpace(l.SourceExtension) == "" {
		l.SourceExtension = def.SourceExtension
	}
	if !strings.HasPrefix(l.SourceExtension, ".") {
		l.SourceExtension = "." + l.SourceExtension
	}
	if strings.TrimSpace(l.PackageInitFile) == "" {
		l.PackageInitFile = def.PackageInitFile
	}
	return l
}

type ExternalStatus int

const (
	StatusResolved ExternalStatus = iota
	StatusModuleNotFound
	StatusAttributeNotFound
	StatusOtherError
)

func (s ExternalStatus) String() string {
	switch s {
	case StatusResolved:
		return "resolved"
	case StatusModuleNotFound:
		return "module_not_found"
	case StatusAttributeNotFound:
		return "attribute_not_found"
	default:
		return "other_error"
	}
}

// ExternalResult is a provider's verdict. Detail carries the human-readable
// message used for the EXTERNAL issue.
type ExternalResult struct {
	Status ExternalStatus
	Detail string
}

func Resolved() ExternalResult { return ExternalResult{Status: StatusResolved} }

// ExternalModuleProvider answers whether a dotted path exists outside the
// project. sourceFile is the importing file, used for messages only.
type ExternalModuleProvider interface {
	Validate(ctx context.Context, path parser.DottedPath, sourceFile string) (ExternalResult, error)
}

// ProviderFunc adapts a function to ExternalModuleProvider.
type ProviderFunc func(ctx context.Context, path parser.DottedPath, sourceFile string) (ExternalResult, error)

func (f ProviderFunc) Validate(ctx context.Context, path parser.DottedPath, sourceFile string) (ExternalResult, error) {
	return f(ctx, path, sourceFile)
}

// ModuleNotFoundMessage and friends keep provider messages uniform.
func ModuleNotFoundMessage(module, sourceFile, detail string) string {
	msg := fmt.Sprintf("Module not found: '%s'%s", module, inFile(sourceFile))
	if detail != "" {
		msg += fmt.Sprintf(" (%s)", detail)
	}
	return msg
}

func AttributeNotFoundMessage(module, attribute, sourceFile string) string {
	return fmt.Sprintf("Module '%s' has no attribute '%s'%s", module, attribute, inFile(sourceFile))
}

func ImportErrorMessage(path parser.DottedPath, detail string) string {
	return fmt.Sprintf("Import error for '%s': %s", path, detail)
}

const EmptyImportPathMessage = "Empty import path"

func inFile(sourceFile string) string {
	if sourceFile == "" {
		return ""
	}
	return " in " + sourceFile
}

// SplitForProvider mirrors how runtime lookups treat a dotted path: the
// module is everything before the last dot, or the whole path when there is
// no dot, in which case the attribute is empty.
func SplitForProvider(path parser.DottedPath) (module, attribute string) {
	if mod := path.Module(); mod != "" {
		return mod, path.Attribute()
	}
	return path.String(), ""
}
