package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/pankaj-dahiya-devops/orgsweep/internal/models"
	"github.com/pankaj-dahiya-devops/orgsweep/internal/operations"
)

// Placeholder cell text.
const (
	NoData             = "No Data"
	NoCoverageDetected = "No Coverage Detected"
	NotApplicable      = "N.A"
	errorPrefix        = "ERROR: "
)

// coverageHeader is the fixed layout for guardduty-coverage reports.
var coverageHeader = []string{"Account", "Region", "ResourceId", "ResourceType", "CoverageStatus", "Issue"}

// WriteCSV writes one row per record, or a single placeholder row for an
// empty or failed cell, sorted by account then region. guardduty-coverage
// uses its own fixed columns; every other operation gets
// Account,Region,Status,Detail followed by the sorted union of record keys.
func WriteCSV(w io.Writer, operation string, results *models.ResultMapping) error {
	cw := csv.NewWriter(w)

	var rows [][]string
	if operation == operations.GuardDutyCoverage {
		rows = coverageRows(results)
	} else {
		rows = genericRows(results)
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

func coverageRows(results *models.ResultMapping) [][]string {
	rows := [][]string{coverageHeader}
	for _, res := range results.All() {
		switch {
		case res.Failed():
			rows = append(rows, []string{res.AccountID, res.Region, ErrorMarker(res.Error), "", "", ""})
		case len(res.Records) == 0:
			rows = append(rows, []string{res.AccountID, res.Region, NoCoverageDetected, "", "", ""})
		default:
			for _, rec := range res.Records {
				issue := FormatValue(rec[operations.KeyIssue])
				if issue == "" {
					issue = NotApplicable
				}
				rows = append(rows, []string{
					res.AccountID,
					res.Region,
					FormatValue(rec[operations.KeyResourceID]),
					FormatValue(rec[operations.KeyResourceType]),
					FormatValue(rec[operations.KeyCoverageStatus]),
					issue,
				})
			}
		}
	}
	return rows
}

func genericRows(results *models.ResultMapping) [][]string {
	cells := results.All()
	keys := recordKeys(cells)

	header := append([]string{"Account", "Region", "Status", "Detail"}, keys...)
	rows := [][]string{header}
	blank := make([]string, len(keys))

	for _, res := range cells {
		switch {
		case res.Failed():
			rows = append(rows, append([]string{res.AccountID, res.Region, "error", ErrorMarker(res.Error)}, blank...))
		case len(res.Records) == 0:
			rows = append(rows, append([]string{res.AccountID, res.Region, "empty", NoData}, blank...))
		default:
			for _, rec := range res.Records {
				row := []string{res.AccountID, res.Region, "ok", ""}
				for _, k := range keys {
					row = append(row, FormatValue(rec[k]))
				}
				rows = append(rows, row)
			}
		}
	}
	return rows
}

// recordKeys returns the sorted union of keys across every record.
func recordKeys(cells []models.CellResult) []string {
	seen := make(map[string]struct{})
	for _, res := range cells {
		for _, rec := range res.Records {
			for k := range rec {
				seen[k] = struct{}{}
			}
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ErrorMarker renders a failed cell as "ERROR: <kind>: <message>".
func ErrorMarker(e *models.CellError) string {
	return errorPrefix + e.String()
}

// FormatValue renders a record value for a text cell. nil and zero times
// become "".
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case time.Time:
		if x.IsZero() {
			return ""
		}
		return x.UTC().Format(time.RFC3339)
	case float64:
		return strconv.FormatFloat(x, 'f', 2, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprintf("%v", x)
	}
}
