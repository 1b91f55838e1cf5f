package report

import (
	"encoding/json"
	"io"
	"time"

	"gopkg.in/yaml.v3"
)

type document struct {
	RunID         string               `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Root          string               `json:"root" yaml:"root"`
	StartedAt     *time.Time           `json:"started_at,omitempty" yaml:"started_at,omitempty"`
	DurationMS    int64                `json:"duration_ms" yaml:"duration_ms"`
	FilesAnalyzed int                  `json:"files_analyzed" yaml:"files_analyzed"`
	Skipped       []string             `json:"skipped" yaml:"skipped"`
	Summary       documentSummary      `json:"summary" yaml:"summary"`
	Issues        []documentIssue      `json:"issues" yaml:"issues"`
	Diagnostics   []documentDiagnostic `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
}

type documentSummary struct {
	Total     int `json:"total" yaml:"total"`
	Undefined int `json:"undefined" yaml:"undefined"`
	External  int `json:"external" yaml:"external"`
}

type documentIssue struct {
	Kind       string `json:"kind" yaml:"kind"`
	File       string `json:"file" yaml:"file"`
	ImportPath string `json:"import_path" yaml:"import_path"`
	Message    string `json:"message" yaml:"message"`
}

type documentDiagnostic struct {
	Severity string `json:"severity" yaml:"severity"`
	Path     string `json:"path,omitempty" yaml:"path,omitempty"`
	Message  string `json:"message" yaml:"message"`
	Error    string `json:"error,omitempty" yaml:"error,omitempty"`
}

func newDocument(data Data) document {
	undefined, external := data.counts()
	doc := document{
		RunID:         data.RunID,
		Root:          data.Root,
		DurationMS:    data.Duration.Milliseconds(),
		FilesAnalyzed: data.FilesAnalyzed,
		Skipped:       append([]string{}, data.Skipped...),
		Summary:       documentSummary{Total: len(data.Issues), Undefined: undefined, External: external},
		Issues:        make([]documentIssue, 0, len(data.Issues)),
	}
	if !data.StartedAt.IsZero() {
		ts := data.StartedAt.UTC()
		doc.StartedAt = &ts
	}
	for _, issue := range data.Issues {
		doc.Issues = append(doc.Issues, documentIssue{
			Kind:       issue.Kind.String(),
			File:       issue.File,
			ImportPath: issue.ImportPath.String(),
			Message:    issue.Message,
		})
	}
	for _, d := range data.Diagnostics {
		entry := documentDiagnostic{Severity: string(d.Severity), Path: d.Path, Message: d.Message}
		if d.Err != nil {
			entry.Error = d.Err.Error()
		}
		doc.Diagnostics = append(doc.Diagnostics, entry)
	}
	return doc
}

func WriteJSON(w io.Writer, data Data) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(newDocument(data))
}

func WriteYAML(w io.Writer, data Data) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(newDocument(data)); err != nil {
		return err
	}
	return enc.Close()
}
