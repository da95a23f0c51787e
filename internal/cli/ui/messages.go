package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// WriteSuccess writes a "✓ message" line
func WriteSuccess(w io.Writer, message string, noColor bool) {
	fmt.Fprintln(w, newColor(noColor, color.FgGreen, color.Bold).Sprintf("✓ %s", message))
}

// WriteInfo writes a plain status line
func WriteInfo(w io.Writer, message string, noColor bool) {
	fmt.Fprintln(w, newColor(noColor, color.FgCyan).Sprint(message))
}

// WriteError writes an error header followed by optional suggestions
//
// Example output:
//
//	Error: model "cta" is not defined
//	   Did you mean: cat?
func WriteError(w io.Writer, err error, suggestions []string, noColor bool) {
	red := newColor(noColor, color.FgRed, color.Bold)
	red.Fprintf(w, "Error: %v\n", err)

	if len(suggestions) > 0 {
		yellow := newColor(noColor, color.FgYellow)
		yellow.Fprintf(w, "   Did you mean: %s?\n", strings.Join(suggestions, ", "))
	}
}
