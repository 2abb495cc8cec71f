package models

import (
	"time"

	"github.com/google/uuid"
)

// RunSummary aggregates cell outcomes across a run.
type RunSummary struct {
	TotalCells int `json:"total_cells" yaml:"total_cells"`
	Succeeded  int `json:"succeeded"   yaml:"succeeded"`
	Failed     int `json:"failed"      yaml:"failed"`
	Empty      int `json:"empty"       yaml:"empty"`
	Records    int `json:"records"     yaml:"records"`
}

// RunReport is the complete, serialisable outcome of one iteration run.
type RunReport struct {
	RunID       string         `json:"run_id"       yaml:"run_id"`
	Operation   string         `json:"operation"    yaml:"operation"`
	RoleName    string         `json:"role_name"    yaml:"role_name"`
	GeneratedAt time.Time      `json:"generated_at" yaml:"generated_at"`
	Duration    time.Duration  `json:"duration_ns"  yaml:"duration_ns"`
	Accounts    []string       `json:"accounts"     yaml:"accounts"`
	Regions     []string       `json:"regions"      yaml:"regions"`
	Summary     RunSummary     `json:"summary"      yaml:"summary"`
	Results     *ResultMapping `json:"results"      yaml:"results"`
}

// NewRunReport assembles a report for results produced over scope.
func NewRunReport(operation, roleName string, scope Scope, results *ResultMapping, elapsed time.Duration) *RunReport {
	return &RunReport{
		RunID:       uuid.NewString(),
		Operation:   operation,
		RoleName:    roleName,
		GeneratedAt: time.Now().UTC(),
		Duration:    elapsed,
		Accounts:    scope.Accounts.Sorted(),
		Regions:     scope.Regions.Sorted(),
		Summary:     Summarize(results),
		Results:     results,
	}
}

// Summarize counts cell outcomes in results.
func Summarize(results *ResultMapping) RunSummary {
	var s RunSummary
	if results == nil {
		return s
	}
	for _, res := range results.All() {
		s.TotalCells++
		switch {
		case res.Failed():
			s.Failed++
		case len(res.Records) == 0:
			s.Succeeded++
			s.Empty++
		default:
			s.Succeeded++
			s.Records += len(res.Records)
		}
	}
	return s
}
