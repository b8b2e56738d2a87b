package tui

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/aretw0/yolotrain/pkg/domain"
	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

// NewRenderer returns a function that renders markdown using glamour.
func NewRenderer() func(string) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(), // Automatically detect light/dark background
		glamour.WithWordWrap(100),
	)
	return func(markdown string) (string, error) {
		if err != nil {
			return "", err
		}
		return r.Render(markdown)
	}
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// MetricsMarkdown formats metrics as a markdown table sorted by name.
func MetricsMarkdown(m domain.Metrics) string {
	var b strings.Builder
	b.WriteString("## Validation metrics\n\n| metric | value |\n|---|---:|\n")
	for _, k := range m.Keys() {
		fmt.Fprintf(&b, "| %s | %s |\n", escapeCell(k), strconv.FormatFloat(m[k], 'g', 5, 64))
	}
	return b.String()
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

// ReportMetrics renders a markdown table on terminals and plain
// "name: value" lines otherwise.
func ReportMetrics(w io.Writer, m domain.Metrics) error {
	if !IsTerminal(w) {
		_, err := fmt.Fprintln(w, m.String())
		return err
	}
	out, err := NewRenderer()(MetricsMarkdown(m))
	if err != nil {
		_, err = fmt.Fprintln(w, m.String())
		return err
	}
	_, err = io.WriteString(w, out)
	return err
}
