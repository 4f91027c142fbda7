package commands

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/dwsmith1983/cancel-workflow/pkg/types"
)

const shortSHALen = 7

func printReport(w io.Writer, r *types.Report, dryRun bool) {
	tw := reportTable(r)
	tw.SetOutputMirror(w)
	tw.Render()

	ok, failed := countResults(r)
	line := fmt.Sprintf("%d cancelled, %d failed, %d workflow errors", ok, failed, r.FailedWorkflows())
	if dryRun {
		line = fmt.Sprintf("dry run: %d runs would be cancelled", len(r.Outcomes()))
	}
	switch {
	case failed > 0 || r.FailedWorkflows() > 0:
		color.New(color.FgRed).Fprintln(w, line)
	case dryRun:
		color.New(color.FgCyan).Fprintln(w, line)
	default:
		color.New(color.FgGreen).Fprintln(w, line)
	}
}

// appendStepSummary adds a markdown version of the report to the job
// summary file.
func appendStepSummary(path string, r *types.Report, dryRun bool) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening step summary: %w", err)
	}
	defer func() { _ = f.Close() }()

	title := "### Cancelled superseded runs"
	if dryRun {
		title = "### Runs that would be cancelled (dry run)"
	}
	if _, err := fmt.Fprintf(f, "%s\n\n%s\n\n", title, reportTable(r).RenderMarkdown()); err != nil {
		return fmt.Errorf("writing step summary: %w", err)
	}
	return nil
}

func reportTable(r *types.Report) table.Writer {
	tw := table.NewWriter()
	tw.AppendHeader(table.Row{"Workflow", "Run", "Head SHA", "Result", "Status", "Detail"})

	for _, w := range r.Workflows {
		name := w.Workflow.String()
		switch {
		case w.Failed():
			tw.AppendRow(table.Row{name, "-", "-", "error", "", w.Error})
			continue
		case w.Vetoed:
			tw.AppendRow(table.Row{name, "-", "-", "vetoed", "", "protected job in progress"})
			continue
		case w.DuplicateOf != 0:
			tw.AppendRow(table.Row{name, "-", "-", "none", "", fmt.Sprintf("same workflow as %d", w.DuplicateOf)})
			continue
		case len(w.Outcomes) == 0 && !w.DeferSelf:
			tw.AppendRow(table.Row{name, "-", "-", "none", "", fmt.Sprintf("%d runs scanned", w.Scanned)})
			continue
		}
		for _, o := range w.Outcomes {
			tw.AppendRow(outcomeRow(name, o))
		}
	}
	if r.Self != nil {
		tw.AppendRow(outcomeRow(strconv.FormatInt(r.Self.WorkflowID, 10), *r.Self))
	}
	return tw
}

func outcomeRow(workflow string, o types.CancellationOutcome) table.Row {
	status := ""
	if o.StatusCode != 0 {
		status = strconv.Itoa(o.StatusCode)
	}
	detail := o.ErrorMessage
	if o.Self {
		detail = "current run"
	}
	if o.Self && o.ErrorMessage != "" {
		detail = "current run: " + o.ErrorMessage
	}
	return table.Row{workflow, o.RunID, shortSHA(o.HeadSHA), string(o.Result), status, detail}
}

func shortSHA(sha string) string {
	if len(sha) > shortSHALen {
		return sha[:shortSHALen]
	}
	return sha
}

func countResults(r *types.Report) (ok, failed int) {
	for _, o := range r.Outcomes() {
		switch o.Result {
		case types.OutcomeOK:
			ok++
		case types.OutcomeFailed:
			failed++
		}
	}
	return ok, failed
}
