package report

import (
	"fmt"
	"io"
	"strings"

	"importcheck/internal/engine/resolver"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
)

type textStyles struct {
	title     lipgloss.Style
	muted     lipgloss.Style
	undefined lipgloss.Style
	external  lipgloss.Style
	ok        lipgloss.Style
}

func newTextStyles(w io.Writer) textStyles {
	r := lipgloss.NewRenderer(w)
	return textStyles{
		title:     r.NewStyle().Bold(true),
		muted:     r.NewStyle().Foreground(lipgloss.Color("#6C7A89")),
		undefined: r.NewStyle().Foreground(lipgloss.Color("#F4D03F")).Bold(true),
		external:  r.NewStyle().Foreground(lipgloss.Color("#E74C3C")).Bold(true),
		ok:        r.NewStyle().Foreground(lipgloss.Color("#2CD7C7")),
	}
}

func (s textStyles) kind(k resolver.IssueKind) string {
	if k == resolver.IssueUndefined {
		return s.undefined.Render(k.String())
	}
	return s.external.Render(k.String())
}

// WriteText prints the human report: a header with totals followed by one
// table row per issue.
func WriteText(w io.Writer, data Data) error {
	styles := newTextStyles(w)
	var b strings.Builder

	if len(data.Issues) == 0 {
		b.WriteString(styles.ok.Render(fmt.Sprintf("No import issues found in %s", data.Root)))
		b.WriteString("\n")
		writeSkipped(&b, styles, data)
		_, err := io.WriteString(w, b.String())
		return err
	}

	undefined, external := data.counts()
	b.WriteString("\n")
	b.WriteString(styles.title.Render("Import Analysis Report: " + data.Root))
	b.WriteString("\n" + strings.Repeat("=", 60) + "\n")
	fmt.Fprintf(&b, "Files analyzed: %s\n", humanize.Comma(int64(data.FilesAnalyzed)))
	fmt.Fprintf(&b, "Issues found: %s (%d undefined, %d external)\n",
		humanize.Comma(int64(len(data.Issues))), undefined, external)
	if data.Duration > 0 {
		b.WriteString(styles.muted.Render(fmt.Sprintf("Completed in %s", data.Duration.Round(1e6))))
		b.WriteString("\n")
	}
	b.WriteString(strings.Repeat("-", 60) + "\n")

	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.DrawBorder = false
	tbl.Style().Options.SeparateColumns = false
	tbl.AppendHeader(table.Row{"Kind", "File", "Import", "Message"})
	for _, issue := range data.Issues {
		tbl.AppendRow(table.Row{
			styles.kind(issue.Kind),
			relativeURI(data.Root, issue.File),
			issue.ImportPath.String(),
			issue.Message,
		})
	}
	tbl.AppendFooter(table.Row{"", "", "Total", humanize.Comma(int64(len(data.Issues)))})
	b.WriteString(tbl.Render())
	b.WriteString("\n")
	writeSkipped(&b, styles, data)

	_, err := io.WriteString(w, b.String())
	return err
}

func writeSkipped(b *strings.Builder, styles textStyles, data Data) {
	if len(data.Skipped) == 0 {
		return
	}
	noun := "files"
	if len(data.Skipped) == 1 {
		noun = "file"
	}
	b.WriteString(styles.muted.Render(fmt.Sprintf("Skipped %d %s that could not be parsed:", len(data.Skipped), noun)))
	b.WriteString("\n")
	for _, path := range data.Skipped {
		b.WriteString("  " + relativeURI(data.Root, path) + "\n")
	}
}
