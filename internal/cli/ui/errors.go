package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/fatih/color"
)

// ErrorOptions configures the error message formatting
type ErrorOptions struct {
	// Suggestions are offered as "Did you mean" alternatives
	Suggestions []string
	NoColor     bool
}

// FormatError renders err for the terminal. Hints attached to the error
// chain are listed below the message.
//
// Example output:
//
//	Error: unknown transformation "cpy"
//
//	   Did you mean: copy?
//
//	   → available transformations: copy, identity, pets
func FormatError(err error, opts ErrorOptions) string {
	if err == nil {
		return ""
	}
	red := color.New(color.FgRed, color.Bold)
	yellow := color.New(color.FgYellow)
	cyan := color.New(color.FgCyan)
	if opts.NoColor {
		red.DisableColor()
		yellow.DisableColor()
		cyan.DisableColor()
	}

	var b strings.Builder
	red.Fprintf(&b, "Error: %v\n", err)

	if len(opts.Suggestions) > 0 {
		b.WriteString("\n")
		yellow.Fprintf(&b, "   Did you mean: %s?\n", strings.Join(opts.Suggestions, ", "))
	}

	if hints := errors.GetAllHints(err); len(hints) > 0 {
		b.WriteString("\n")
		for _, hint := range hints {
			cyan.Fprintf(&b, "   → %s\n", hint)
		}
	}
	return b.String()
}

// WriteError writes a formatted error message to w
func WriteError(w io.Writer, err error, opts ErrorOptions) {
	fmt.Fprint(w, FormatError(err, opts))
}

// FormatSuccess creates a success message
func FormatSuccess(message string, noColor bool) string {
	green := color.New(color.FgGreen, color.Bold)
	if noColor {
		green.DisableColor()
	}
	return green.Sprintf("✓ %s", message)
}

// WriteSuccess writes a success message to w
func WriteSuccess(w io.Writer, message string, noColor bool) {
	fmt.Fprintln(w, FormatSuccess(message, noColor))
}
