// Package output renders a run report as CSV, a terminal table, JSON or
// YAML.
package output

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/pankaj-dahiya-devops/orgsweep/internal/models"
)

// Format names.
const (
	FormatCSV   = "csv"
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// Options controls Write.
type Options struct {
	Format  string
	NoColor bool
}

// Write renders report to w in opts.Format.
func Write(w io.Writer, report *models.RunReport, opts Options) error {
	switch opts.Format {
	case FormatCSV, "":
		return WriteCSV(w, report.Operation, report.Results)
	case FormatTable:
		RenderTable(w, report, TableOptions{NoColor: opts.NoColor})
		return nil
	case FormatJSON:
		return WriteJSON(w, report)
	case FormatYAML:
		return WriteYAML(w, report)
	default:
		return fmt.Errorf("unsupported output format %q", opts.Format)
	}
}

// WriteJSON writes report as indented JSON.
func WriteJSON(w io.Writer, report *models.RunReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

// WriteYAML writes report as YAML.
func WriteYAML(w io.Writer, report *models.RunReport) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	return enc.Close()
}
