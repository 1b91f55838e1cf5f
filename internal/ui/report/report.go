// Package report renders analysis results for humans and machines.
package report

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	domainerrors "importcheck/internal/core/errors"
	"importcheck/internal/engine/resolver"
	"importcheck/internal/shared/diag"
)

type Format string

const (
	FormatText  Format = "text"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
	FormatSARIF Format = "sarif"
)

var Formats = []Format{FormatText, FormatJSON, FormatYAML, FormatSARIF}

func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", domainerrors.New(domainerrors.CodeValidationError,
		fmt.Sprintf("unknown format %q (want text, json, yaml or sarif)", s))
}

// Data is everything a reporter needs from one run.
type Data struct {
	RunID         string
	Root          string
	StartedAt     time.Time
	Duration      time.Duration
	FilesAnalyzed int
	Skipped       []string
	Issues        []resolver.ImportIssue
	Diagnostics   []diag.Diagnostic
}

func (d Data) counts() (undefined, external int) {
	for _, issue := range d.Issues {
		if issue.Kind == resolver.IssueUndefined {
			undefined++
		} else {
			external++
		}
	}
	return undefined, external
}

func Write(w io.Writer, format Format, data Data) error {
	switch format {
	case FormatText, "":
		return WriteText(w, data)
	case FormatJSON:
		return WriteJSON(w, data)
	case FormatYAML:
		return WriteYAML(w, data)
	case FormatSARIF:
		return WriteSARIF(w, data)
	default:
		return domainerrors.New(domainerrors.CodeNotSupported, fmt.Sprintf("unsupported format %q", format))
	}
}

func relativeURI(projectRoot, filePath string) string {
	if projectRoot != "" && filepath.IsAbs(filePath) {
		if rel, err := filepath.Rel(projectRoot, filePath); err == nil && !strings.HasPrefix(rel, "..") {
			filePath = rel
		}
	}
	return filepath.ToSlash(filePath)
}
