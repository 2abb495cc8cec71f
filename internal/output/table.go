package output

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/pankaj-dahiya-devops/orgsweep/internal/models"
)

// TableOptions controls RenderTable.
type TableOptions struct {
	// NoColor forces plain output even on a terminal.
	NoColor bool

	// DetailWidth caps the DETAIL column. Defaults to 60.
	DetailWidth int
}

type cellStatus string

const (
	statusOK    cellStatus = "OK"
	statusEmpty cellStatus = "EMPTY"
	statusError cellStatus = "ERROR"
)

func statusOf(res models.CellResult) cellStatus {
	switch {
	case res.Failed():
		return statusError
	case len(res.Records) == 0:
		return statusEmpty
	default:
		return statusOK
	}
}

// ShortenMessage truncates msg to at most max runes, appending "..." when
// truncated. max is treated as at least 4.
func ShortenMessage(msg string, max int) string {
	if max < 4 {
		max = 4
	}
	runes := []rune(msg)
	if len(runes) <= max {
		return msg
	}
	return string(runes[:max-3]) + "..."
}

// RenderTable writes one row per cell followed by a summary line.
//
// Column order:
//
//	ACCOUNT  REGION  STATUS  RECORDS  DURATION  DETAIL
func RenderTable(w io.Writer, report *models.RunReport, opts TableOptions) {
	if opts.DetailWidth <= 0 {
		opts.DetailWidth = 60
	}
	cells := report.Results.All()
	if len(cells) == 0 {
		fmt.Fprintln(w, "No cells.")
		return
	}

	colors := NewColorScheme(w, opts.NoColor)
	table := newTable(w)

	headers := []string{"ACCOUNT", "REGION", "STATUS", "RECORDS", "DURATION", "DETAIL"}
	if !colors.Disabled {
		for i, h := range headers {
			headers[i] = colors.Header(h)
		}
	}
	table.SetHeader(headers)

	for _, res := range cells {
		status := statusOf(res)
		var detail string
		if res.Failed() {
			detail = ShortenMessage(res.Error.String(), opts.DetailWidth)
		}
		table.Append([]string{
			colors.Account("%s", res.AccountID),
			res.Region,
			colors.statusColor(status)("%s", status),
			strconv.Itoa(len(res.Records)),
			colors.Duration("%s", res.Duration.Round(time.Millisecond)),
			detail,
		})
	}
	table.Render()

	printSummary(w, report, colors)
}

func newTable(w io.Writer) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)
	return table
}

func printSummary(w io.Writer, report *models.RunReport, colors *ColorScheme) {
	s := report.Summary

	ok := colors.Success("%d succeeded", s.Succeeded)
	failed := fmt.Sprintf("%d failed", s.Failed)
	if s.Failed > 0 {
		failed = colors.Error("%s", failed)
	}
	elapsed := colors.Duration("%s", report.Duration.Round(time.Millisecond))

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s: %d accounts × %d regions = %d cells; %s (%d empty), %s, %d records in %s\n",
		report.Operation, len(report.Accounts), len(report.Regions), s.TotalCells,
		ok, s.Empty, failed, s.Records, elapsed)
}
