package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00FFFF"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#808080"))
	goodStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00"))
	badStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5555"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFAA00"))
)

// report prints v as indented JSON with --json, and calls text otherwise.
func (a *app) report(w io.Writer, v any, text func(w io.Writer)) error {
	if a.jsonOut {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(w)
	return nil
}

func heading(w io.Writer, title string) {
	fmt.Fprintln(w, titleStyle.Render(title))
}

func field(w io.Writer, label string, value any) {
	fmt.Fprintf(w, "%s %v\n", labelStyle.Render(label+":"), value)
}

// status colors well-known outcome words.
func status(s string) string {
	switch strings.ToLower(s) {
	case "completed", "agreement", "ok", "resolved", "true", "reached":
		return goodStyle.Render(s)
	case "failed", "deadlock", "rejected", "invalid", "false", "no_agent":
		return badStyle.Render(s)
	default:
		return warnStyle.Render(s)
	}
}

func renderTable(w io.Writer, headers []string, rows [][]string) {
	if len(rows) == 0 {
		return
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(labelStyle).
		Headers(headers...).
		Rows(rows...)
	fmt.Fprintln(w, t.Render())
}

func pct(v float64) string { return fmt.Sprintf("%.1f%%", v) }
