package report

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"importcheck/internal/data/history"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"
)

// HistoryPoint is one stored run plus its change in issue count relative to
// the run before it.
type HistoryPoint struct {
	RunID        string    `json:"run_id" yaml:"run_id"`
	Timestamp    time.Time `json:"timestamp" yaml:"timestamp"`
	Provider     string    `json:"provider" yaml:"provider"`
	FilesIndexed int       `json:"files_indexed" yaml:"files_indexed"`
	FilesSkipped int       `json:"files_skipped" yaml:"files_skipped"`
	Undefined    int       `json:"undefined" yaml:"undefined"`
	External     int       `json:"external" yaml:"external"`
	DurationMS   int64     `json:"duration_ms" yaml:"duration_ms"`
	DeltaIssues  int       `json:"delta_issues" yaml:"delta_issues"`
}

// HistoryPoints expects runs newest first, as history.Store.ListRuns
// returns them. The oldest run has a zero delta.
func HistoryPoints(runs []history.Run) []HistoryPoint {
	points := make([]HistoryPoint, 0, len(runs))
	for i, run := range runs {
		p := HistoryPoint{
			RunID:        run.ID,
			Timestamp:    run.Timestamp.UTC(),
			Provider:     run.Provider,
			FilesIndexed: run.FilesIndexed,
			FilesSkipped: run.FilesSkipped,
			Undefined:    run.UndefinedCount,
			External:     run.ExternalCount,
			DurationMS:   run.Duration.Milliseconds(),
		}
		if i+1 < len(runs) {
			p.DeltaIssues = run.IssueCount() - runs[i+1].IssueCount()
		}
		points = append(points, p)
	}
	return points
}

func WriteHistory(w io.Writer, format Format, root string, runs []history.Run) error {
	points := HistoryPoints(runs)
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(points)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(points); err != nil {
			return err
		}
		return enc.Close()
	case FormatText, "":
		return writeHistoryTable(w, root, points)
	default:
		return fmt.Errorf("history cannot be rendered as %s", format)
	}
}

func writeHistoryTable(w io.Writer, root string, points []HistoryPoint) error {
	if len(points) == 0 {
		_, err := fmt.Fprintf(w, "No recorded runs for %s\n", root)
		return err
	}
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.DrawBorder = false
	tbl.Style().Options.SeparateColumns = false
	tbl.SetTitle("Run history: " + root)
	tbl.AppendHeader(table.Row{"Run", "When", "Provider", "Files", "Skipped", "Undefined", "External", "Δ", "Duration"})
	for _, p := range points {
		tbl.AppendRow(table.Row{
			shortID(p.RunID),
			humanize.Time(p.Timestamp),
			p.Provider,
			humanize.Comma(int64(p.FilesIndexed)),
			p.FilesSkipped,
			p.Undefined,
			p.External,
			formatDelta(p.DeltaIssues),
			(time.Duration(p.DurationMS) * time.Millisecond).String(),
		})
	}
	_, err := io.WriteString(w, tbl.Render()+"\n")
	return err
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatDelta(d int) string {
	if d > 0 {
		return fmt.Sprintf("+%d", d)
	}
	return fmt.Sprintf("%d", d)
}
