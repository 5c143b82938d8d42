package errors

import (
	"fmt"
	"sort"
	"strings"
)

// SchemaError reports required columns that are absent from one input table.
// It is not recoverable for the run that produced it.
type SchemaError struct {
	Source    string   `json:"source"`
	Missing   []string `json:"missing"`
	Available []string `json:"available,omitempty"`
	Expected  []string `json:"expected,omitempty"`
}

// NewSchemaError builds a SchemaError with the missing columns sorted.
func NewSchemaError(source string, missing, available, expected []string) *SchemaError {
	sortedMissing := append([]string(nil), missing...)
	sort.Strings(sortedMissing)
	return &SchemaError{
		Source:    source,
		Missing:   sortedMissing,
		Available: append([]string(nil), available...),
		Expected:  append([]string(nil), expected...),
	}
}

func (e *SchemaError) Error() string {
	noun := "column"
	if len(e.Missing) > 1 {
		noun = "columns"
	}
	return fmt.Sprintf("%s report is missing required %s: %s", e.Source, noun, quoteJoin(e.Missing))
}

// Category reports the error category used for exit codes and help text.
func (e *SchemaError) Category() ErrorCategory {
	return CategorySchema
}

// Code returns CodeMissingColumn.
func (e *SchemaError) Code() ErrorCode {
	return CodeMissingColumn
}

// Detail returns a multi-line description including the available headers.
func (e *SchemaError) Detail() string {
	var b strings.Builder
	fmt.Fprintf(&b, "ERROR: %s\n", e.Error())
	if len(e.Expected) > 0 {
		fmt.Fprintf(&b, "  → Expected: %s\n", quoteJoin(e.Expected))
	}
	if len(e.Available) > 0 {
		fmt.Fprintf(&b, "  → Found:    %s\n", quoteJoin(e.Available))
	} else {
		b.WriteString("  → Found:    no columns\n")
	}
	return b.String()
}

// FormatError reports a cell that could not be parsed as a number.
// Row is the 1-based row of the cell in the source file, counting the
// header and any blank rows, as a spreadsheet would show it.
type FormatError struct {
	Source string `json:"source"`
	Row    int    `json:"row"`
	Column string `json:"column"`
	Value  string `json:"value"`
	Cause  error  `json:"-"`
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%s report row %d, column %q: %q is not a number", e.Source, e.Row, e.Column, e.Value)
}

func (e *FormatError) Unwrap() error {
	return e.Cause
}

// Code returns CodeInvalidNumber.
func (e *FormatError) Code() ErrorCode {
	return CodeInvalidNumber
}

// Category reports the error category used for exit codes and help text.
func (e *FormatError) Category() ErrorCategory {
	return CategoryParse
}

func quoteJoin(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = fmt.Sprintf("'%s'", v)
	}
	return strings.Join(quoted, ", ")
}
