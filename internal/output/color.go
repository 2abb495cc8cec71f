package output

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// ColorScheme holds the Sprintf functions used by the table renderer.
type ColorScheme struct {
	Account  func(format string, a ...interface{}) string
	Success  func(format string, a ...interface{}) string
	Empty    func(format string, a ...interface{}) string
	Error    func(format string, a ...interface{}) string
	Header   func(format string, a ...interface{}) string
	Duration func(format string, a ...interface{}) string

	Disabled bool
}

// NewColorScheme returns a colored scheme when w is a terminal and noColor
// is false, and a plain one otherwise.
func NewColorScheme(w io.Writer, noColor bool) *ColorScheme {
	if noColor || !isTTY(w) {
		plain := fmt.Sprintf
		return &ColorScheme{
			Account:  plain,
			Success:  plain,
			Empty:    plain,
			Error:    plain,
			Header:   plain,
			Duration: plain,
			Disabled: true,
		}
	}
	return &ColorScheme{
		Account:  color.New(color.FgCyan, color.Bold).Sprintf,
		Success:  color.New(color.FgGreen).Sprintf,
		Empty:    color.New(color.FgYellow).Sprintf,
		Error:    color.New(color.FgRed, color.Bold).Sprintf,
		Header:   color.New(color.FgWhite, color.Bold).Sprintf,
		Duration: color.New(color.FgBlue).Sprintf,
	}
}

func isTTY(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// statusColor picks the color for a cell status label.
func (cs *ColorScheme) statusColor(s cellStatus) func(format string, a ...interface{}) string {
	switch s {
	case statusError:
		return cs.Error
	case statusEmpty:
		return cs.Empty
	default:
		return cs.Success
	}
}
