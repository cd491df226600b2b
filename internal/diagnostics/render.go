package diagnostics

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
)

// Render writes a human-readable report to w.
func Render(w io.Writer, r Report) {
	fmt.Fprintln(w)
	color.New(color.FgCyan, color.Bold).Fprintln(w, "━━━ System Diagnostics ━━━")
	fmt.Fprintln(w)

	for _, s := range r.Steps {
		renderStep(w, s)
	}

	fmt.Fprintln(w)
	if r.OK() {
		ok := color.New(color.FgGreen, color.Bold)
		ok.Fprint(w, "━━━ Diagnostics Passed ")
		color.New(color.FgHiBlack).Fprintf(w, "(%d passed, %d warnings in %v)",
			r.Count(StepPassed), r.Count(StepWarning), r.Duration.Round(time.Millisecond))
		ok.Fprintln(w, " ━━━")
	} else {
		fail := color.New(color.FgRed, color.Bold)
		fail.Fprint(w, "━━━ Diagnostics Failed ")
		color.New(color.FgHiBlack).Fprintf(w, "(%d passed, %d failed)",
			r.Count(StepPassed), r.Count(StepFailed))
		fail.Fprintln(w, " ━━━")
	}
}

func renderStep(w io.Writer, s Step) {
	var icon string
	var clr *color.Color

	switch s.Status {
	case StepPassed:
		icon, clr = "✓", color.New(color.FgGreen)
	case StepFailed:
		icon, clr = "✗", color.New(color.FgRed)
	case StepWarning:
		icon, clr = "!", color.New(color.FgYellow)
	default:
		icon, clr = "○", color.New(color.FgHiBlack)
	}

	clr.Fprintf(w, "  %s %s", icon, s.Name)
	if s.Message != "" {
		color.New(color.FgHiBlack).Fprintf(w, " - %s", s.Message)
	}
	fmt.Fprintln(w)

	if s.Status == StepFailed && s.Error != nil {
		color.New(color.FgRed).Fprintf(w, "    └─ %s\n", s.Error)
	}
}
