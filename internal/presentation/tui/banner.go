package tui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aretw0/yolotrain/pkg/domain"
	"github.com/muesli/termenv"
)

// PrintBanner outputs the program name and version.
func PrintBanner(w io.Writer, version string) {
	out := termenv.NewOutput(w)
	name := out.String("yolotrain").Bold().Foreground(out.Color("#818cf8"))
	ver := out.String("v" + strings.TrimSpace(version)).Faint()
	fmt.Fprintf(w, "%s %s\n", name, ver)
}

// StageHooks prints one colored status line per finished stage.
func StageHooks(w io.Writer) domain.LifecycleHooks {
	out := termenv.NewOutput(w)
	ok := out.Color("#34d399")
	bad := out.Color("#fb7185")

	return domain.LifecycleHooks{
		OnStageLeave: func(_ context.Context, e *domain.StageEvent) {
			if e.Err != nil {
				fmt.Fprintf(w, "%s %s\n", out.String("✗ "+label(e.Stage)).Foreground(bad), out.String(e.Err.Error()).Faint())
				return
			}
			fmt.Fprintf(w, "%s %s\n", out.String("✓ "+label(e.Stage)).Foreground(ok), out.String(formatDuration(e.Duration)).Faint())
		},
	}
}

func label(s domain.Stage) string {
	return strings.ReplaceAll(string(s), "_", " ")
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return ""
	case d < time.Second:
		return d.Round(time.Millisecond).String()
	default:
		return d.Round(100 * time.Millisecond).String()
	}
}
