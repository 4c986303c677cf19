// Package report renders traceability matrices as JSON, Markdown, or a
// styled terminal summary.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"reqtrace/internal/logging"
	"reqtrace/internal/trace"
)

// Format selects the output encoding.
type Format string

const (
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
	FormatTerminal Format = "terminal"
)

// Styles for terminal output.
var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	coveredStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	missingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// Write renders the matrix to w in the requested format. Markdown can
// optionally be rendered for the terminal with glamour.
func Write(w io.Writer, m *trace.Matrix, format Format, render bool) error {
	logging.Report("writing %s report: %d requirements, %.0f%% coverage", format, len(m.Requirements), m.Coverage*100)

	switch format {
	case FormatJSON:
		return JSON(w, m)
	case FormatMarkdown:
		md := Markdown(m)
		if render {
			rendered, err := renderMarkdown(md)
			if err == nil {
				_, err = io.WriteString(w, rendered)
				return err
			}
			// Fall back to raw markdown when no TTY styling is available.
		}
		_, err := io.WriteString(w, md)
		return err
	case FormatTerminal:
		_, err := io.WriteString(w, Terminal(m))
		return err
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}

// JSON writes the matrix as indented JSON with a stable field order.
func JSON(w io.Writer, m *trace.Matrix) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(m)
}

// Markdown renders the traceability matrix as a Markdown document.
func Markdown(m *trace.Matrix) string {
	var sb strings.Builder

	sb.WriteString("# Traceability Matrix\n\n")
	fmt.Fprintf(&sb, "Coverage: **%.1f%%** (%d requirements, %d tags)\n\n", m.Coverage*100, len(m.Requirements), m.TagCount)

	sb.WriteString("| Requirement | Title | Status | Covered | Tags |\n")
	sb.WriteString("|---|---|---|---|---|\n")
	for _, rc := range m.Requirements {
		covered := "no"
		if rc.Covered {
			covered = "yes"
		}
		refs := make([]string, 0, len(rc.Tags))
		for _, t := range rc.Tags {
			refs = append(refs, fmt.Sprintf("%s:%d", t.File, t.Line))
		}
		fmt.Fprintf(&sb, "| %s | %s | %s | %s | %s |\n",
			rc.Requirement.ID, rc.Requirement.Title, rc.Requirement.Status, covered, strings.Join(refs, ", "))
	}

	if len(m.Untraced) > 0 {
		sb.WriteString("\n## Untraced Requirements\n\n")
		for _, id := range m.Untraced {
			fmt.Fprintf(&sb, "- %s\n", id)
		}
	}

	if len(m.Orphans) > 0 {
		sb.WriteString("\n## Orphan Tags\n\n")
		for _, o := range m.Orphans {
			fmt.Fprintf(&sb, "- `%s` at %s:%d (no such requirement)\n", o.ReqID, o.File, o.Line)
		}
	}

	return sb.String()
}

// Terminal renders a compact styled summary.
func Terminal(m *trace.Matrix) string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render("Traceability Matrix"))
	sb.WriteString("\n\n")

	coverage := fmt.Sprintf("%.1f%%", m.Coverage*100)
	switch {
	case m.Coverage >= 1.0:
		coverage = coveredStyle.Render(coverage)
	case m.Coverage >= 0.5:
		coverage = warnStyle.Render(coverage)
	default:
		coverage = missingStyle.Render(coverage)
	}
	fmt.Fprintf(&sb, "Coverage: %s (%d requirements, %d tags)\n\n", coverage, len(m.Requirements), m.TagCount)

	for _, rc := range m.Requirements {
		mark := missingStyle.Render("✗")
		if rc.Covered {
			mark = coveredStyle.Render("✓")
		}
		fmt.Fprintf(&sb, "  %s %s", mark, rc.Requirement.ID)
		if len(rc.Tags) > 0 {
			refs := make([]string, 0, len(rc.Tags))
			for _, t := range rc.Tags {
				refs = append(refs, fmt.Sprintf("%s:%d", t.File, t.Line))
			}
			sb.WriteString(mutedStyle.Render("  " + strings.Join(refs, ", ")))
		}
		sb.WriteString("\n")
	}

	if len(m.Orphans) > 0 {
		sb.WriteString("\n")
		sb.WriteString(warnStyle.Render(fmt.Sprintf("%d orphan tag(s):", len(m.Orphans))))
		sb.WriteString("\n")
		for _, o := range m.Orphans {
			fmt.Fprintf(&sb, "  %s at %s:%d\n", o.ReqID, o.File, o.Line)
		}
	}

	return sb.String()
}

func renderMarkdown(md string) (string, error) {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return "", err
	}
	return renderer.Render(md)
}
