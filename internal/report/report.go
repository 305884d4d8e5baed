// Package report renders check reports for terminals and machines.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"github.com/starford/metacheck/internal/models"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Formats lists the accepted output formats.
var Formats = []string{FormatText, FormatJSON}

// Process exit codes of the check command.
const (
	ExitClean         = 0
	ExitFailure       = 1
	ExitDiscrepancies = 2
)

// ExitCode maps a report to the check command's exit status. Warnings do
// not fail a run.
func ExitCode(rep *models.Report) int {
	if rep.HasErrors() {
		return ExitDiscrepancies
	}
	return ExitClean
}

// Write renders rep to w in the given format.
func Write(w io.Writer, rep *models.Report, format string) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, rep)
	case FormatText, "":
		return writeText(w, rep, isTerminal(w))
	default:
		return fmt.Errorf("report: unknown format %q", format)
	}
}

// WriteRuns renders a list of run summaries.
func WriteRuns(w io.Writer, runs []models.Summary, total int, format string) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, map[string]any{"runs": runs, "total": total})
	case FormatText, "":
	default:
		return fmt.Errorf("report: unknown format %q", format)
	}

	tw := newTable(isTerminal(w))
	tw.AppendHeader(table.Row{"Run", "Started", "Files", "Clean", "Errors", "Warnings"})
	for _, s := range runs {
		tw.AppendRow(table.Row{s.RunID, s.StartedAt.Format("2006-01-02 15:04:05"), s.Files, s.Clean, s.Errors, s.Warnings})
	}
	tw.AppendFooter(table.Row{"", "total", total})
	_, err := fmt.Fprintln(w, tw.Render())
	return err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeText(w io.Writer, rep *models.Report, colorize bool) error {
	sum := rep.Summarize()
	if _, err := fmt.Fprintf(w, "run %s: %d files, %d clean, %d errors, %d warnings\n",
		rep.RunID, sum.Files, sum.Clean, sum.Errors, sum.Warnings); err != nil {
		return err
	}
	if sum.Errors+sum.Warnings == 0 {
		return nil
	}

	tw := newTable(colorize)
	tw.AppendHeader(table.Row{"#", "Path", "Severity", "Check", "Kind", "Detail"})
	n := 0
	for _, f := range rep.Files {
		for _, d := range f.Discrepancies {
			n++
			tw.AppendRow(table.Row{strconv.Itoa(n), f.Path, severity(d.Severity, colorize), d.Check, string(d.Kind), d.Detail()})
		}
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 6, WidthMax: 80},
	})
	_, err := fmt.Fprintln(w, tw.Render())
	return err
}

func newTable(colorize bool) table.Writer {
	tw := table.NewWriter()
	if colorize {
		tw.SetStyle(table.StyleRounded)
	} else {
		tw.SetStyle(table.StyleLight)
		tw.Style().Options.DrawBorder = false
	}
	return tw
}

func severity(s models.Severity, colorize bool) string {
	if !colorize {
		return string(s)
	}
	if s == models.SeverityError {
		return text.FgRed.Sprint(string(s))
	}
	return text.FgYellow.Sprint(string(s))
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
