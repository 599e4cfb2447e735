// Package report renders plan previews and run summaries for the
// terminal. Output is purely informational; nothing here affects run
// semantics.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gookit/color"
	"github.com/mattn/go-runewidth"

	"github.com/dbsmedya/gofresh/internal/planner"
	"github.com/dbsmedya/gofresh/internal/scheduler"
)

// Theme groups the styles used by the renderer.
type Theme struct {
	Header  color.Style
	Success color.Style
	Warning color.Style
	Danger  color.Style
	Muted   color.Style
}

// ThemeByName resolves a configured theme name. Unknown names fall back
// to the default theme. The minimal theme renders without color codes.
func ThemeByName(name string) Theme {
	switch name {
	case "dark":
		return Theme{
			Header:  color.New(color.FgCyan, color.Bold),
			Success: color.New(color.FgLightGreen),
			Warning: color.New(color.FgLightYellow),
			Danger:  color.New(color.FgLightRed, color.Bold),
			Muted:   color.New(color.FgGray),
		}
	case "minimal":
		return Theme{}
	default:
		return Theme{
			Header:  color.New(color.FgBlue, color.Bold),
			Success: color.New(color.FgGreen),
			Warning: color.New(color.FgYellow),
			Danger:  color.New(color.FgRed, color.Bold),
			Muted:   color.New(color.FgDarkGray),
		}
	}
}

// Renderer writes themed reports to a single output stream.
type Renderer struct {
	out   io.Writer
	theme Theme
}

func NewRenderer(out io.Writer, theme Theme) *Renderer {
	return &Renderer{out: out, theme: theme}
}

// PrintPlan renders the execution plan preview shown before a reset (and
// as the entire output of a dry run).
func (r *Renderer) PrintPlan(database string, plan *planner.ExecutionPlan) {
	fmt.Fprintln(r.out, r.theme.Header.Sprintf("Reset plan for %s", database))
	fmt.Fprintln(r.out)

	rows := [][2]string{
		{"Tables", fmt.Sprintf("%d", plan.Waves.TableCount())},
		{"Waves", fmt.Sprintf("%d", len(plan.Waves.Waves))},
		{"Complexity", string(plan.Complexity)},
		{"Risk", r.riskStyle(plan.Risk).Sprint(string(plan.Risk))},
		{"Parallelism", fmt.Sprintf("%d", plan.ParallelDegree)},
		{"Batch size", fmt.Sprintf("%d", plan.BatchSize)},
		{"Predicted", plan.PredictedDuration.Round(time.Second).String()},
	}
	if plan.HistorySamples > 0 {
		rows = append(rows, [2]string{"History", fmt.Sprintf("%d similar runs", plan.HistorySamples)})
	}
	r.printKV(rows)

	fmt.Fprintln(r.out)
	for i, wave := range plan.Waves.Waves {
		label := fmt.Sprintf("wave %d", i+1)
		tables := strings.Join(wave.Tables, ", ")
		if len(wave.Forced) > 0 {
			tables += " " + r.theme.Warning.Sprint("(forced)")
		}
		fmt.Fprintf(r.out, "  %s  %s\n", r.theme.Muted.Sprint(pad(label, 8)), tables)
	}
}

// PrintSummary renders the post-run summary.
func (r *Renderer) PrintSummary(database string, plan *planner.ExecutionPlan, result *scheduler.Result, err error) {
	fmt.Fprintln(r.out)
	if err == nil {
		fmt.Fprintln(r.out, r.theme.Success.Sprintf("Reset complete: %s", database))
	} else {
		fmt.Fprintln(r.out, r.theme.Danger.Sprintf("Reset failed: %s", database))
	}

	if result == nil {
		result = &scheduler.Result{}
	}
	rows := [][2]string{
		{"Dropped", fmt.Sprintf("%d tables in %d waves", len(result.Dropped), len(result.Waves))},
		{"Duration", result.Duration.Round(time.Millisecond).String()},
	}
	if plan != nil && plan.PredictedDuration > 0 {
		rows = append(rows, [2]string{"Predicted", plan.PredictedDuration.Round(time.Second).String()})
	}
	r.printKV(rows)

	if err != nil {
		fmt.Fprintf(r.out, "  %s %v\n", r.theme.Danger.Sprint("error:"), err)
	}
}

func (r *Renderer) riskStyle(risk planner.RiskLevel) color.Style {
	switch risk {
	case planner.RiskHigh:
		return r.theme.Danger
	case planner.RiskMedium:
		return r.theme.Warning
	default:
		return r.theme.Success
	}
}

// printKV renders aligned key/value rows. Keys are padded by display
// width, not byte length, so wide runes line up too.
func (r *Renderer) printKV(rows [][2]string) {
	width := 0
	for _, row := range rows {
		if w := runewidth.StringWidth(row[0]); w > width {
			width = w
		}
	}
	for _, row := range rows {
		fmt.Fprintf(r.out, "  %s  %s\n", r.theme.Muted.Sprint(pad(row[0], width)), row[1])
	}
}

func pad(s string, width int) string {
	gap := width - runewidth.StringWidth(s)
	if gap <= 0 {
		return s
	}
	return s + strings.Repeat(" ", gap)
}
