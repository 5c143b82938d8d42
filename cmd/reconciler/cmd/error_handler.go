package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"go.uber.org/multierr"

	"sales-reconciliation-service/internal/models"
	"sales-reconciliation-service/pkg/errors"
	"sales-reconciliation-service/pkg/logger"
)

// CLIErrorHandler provides user-friendly error handling for CLI operations
type CLIErrorHandler struct {
	logger  logger.Logger
	out     io.Writer
	fs      afero.Fs
	schemas *models.SchemaSet
	verbose bool
}

// NewCLIErrorHandler creates a new CLI error handler writing to stderr
func NewCLIErrorHandler() *CLIErrorHandler {
	return &CLIErrorHandler{
		logger:  logger.GetGlobalLogger().WithComponent("cli"),
		out:     os.Stderr,
		fs:      appFs,
		schemas: activeSchemas,
		verbose: viper.GetBool("verbose"),
	}
}

// HandleError reports err on stderr and returns the process exit code.
func HandleError(err error) int {
	return NewCLIErrorHandler().HandleError(err)
}

// HandleError handles errors and provides user-friendly messages. Combined
// errors are reported one by one; the exit code is that of the first.
func (h *CLIErrorHandler) HandleError(err error) int {
	if err == nil {
		return 0
	}

	errs := multierr.Errors(err)
	if len(errs) > 1 {
		fmt.Fprintf(h.out, "Found %d errors:\n\n", len(errs))
	}

	var reportFailure bool
	for i, e := range errs {
		h.logger.WithError(e).WithField("code", errors.CodeOf(e)).Debug("Command failed")
		if i > 0 {
			fmt.Fprintln(h.out)
		}
		h.handleOne(e)
		if category, ok := errors.CategoryOf(e); ok && isReportCategory(category) {
			reportFailure = true
		}
	}

	if reportFailure {
		h.printExpectedSchemas()
	}
	return errors.ExitCode(errs[0])
}

// isReportCategory reports whether errors of category come from the
// content of an input report, where the expected columns help the user.
func isReportCategory(category errors.ErrorCategory) bool {
	switch category {
	case errors.CategoryParse, errors.CategorySchema, errors.CategoryValidation:
		return true
	default:
		return false
	}
}

func (h *CLIErrorHandler) handleOne(err error) {
	var schemaErr *errors.SchemaError
	if errors.As(err, &schemaErr) {
		fmt.Fprint(h.out, schemaErr.Detail())
		return
	}

	var formatErr *errors.FormatError
	if errors.As(err, &formatErr) {
		h.handleFormatError(formatErr)
		return
	}

	// Handle ReconcilerError with detailed information
	if reconcilerErr, ok := errors.AsReconcilerError(err); ok {
		h.handleReconcilerError(reconcilerErr)
		return
	}

	// Handle other error types
	h.handleGenericError(err)
}

func (h *CLIErrorHandler) handleFormatError(err *errors.FormatError) {
	fmt.Fprintf(h.out, "Error: %s\n", err.Error())
	fmt.Fprintf(h.out, "  Report: %s\n", err.Source)
	fmt.Fprintf(h.out, "  Row:    %d\n", err.Row)
	fmt.Fprintf(h.out, "  Column: %s\n", err.Column)
	fmt.Fprintf(h.out, "  Value:  %q\n", err.Value)
	fmt.Fprintf(h.out, "\nSuggestion: fix the cell in the report, or run without --strict to count it as zero\n")
	fmt.Fprintf(h.out, "\n%s\n", h.getCategoryHelp(err.Category()))
}

// handleReconcilerError handles ReconcilerError with detailed context
func (h *CLIErrorHandler) handleReconcilerError(err *errors.ReconcilerError) {
	// Print the main error message
	fmt.Fprintf(h.out, "Error: %s\n", err.Message)

	// Add context information if available
	if len(err.Context) > 0 {
		keys := make([]string, 0, len(err.Context))
		for key := range err.Context {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		fmt.Fprintf(h.out, "\nContext:\n")
		for _, key := range keys {
			fmt.Fprintf(h.out, "  %s: %v\n", key, err.Context[key])
		}
	}

	// Add suggestion if available
	if err.Suggestion != "" {
		fmt.Fprintf(h.out, "\nSuggestion: %s\n", err.Suggestion)
	}

	if err.Code == errors.CodeFileNotFound {
		if path, ok := err.Context["file_path"].(string); ok {
			fmt.Fprint(h.out, h.similarFiles(path))
		}
	}

	// Add category-specific help
	fmt.Fprintf(h.out, "\n%s\n", h.getCategoryHelp(err.Category))

	// Show underlying error in verbose mode
	if h.verbose && err.Cause != nil {
		fmt.Fprintf(h.out, "\nUnderlying error: %v\n", err.Cause)
	}
}

// handleGenericError handles errors outside the reconciler's own types
func (h *CLIErrorHandler) handleGenericError(err error) {
	// Check for common system errors and provide better messages
	switch {
	case h.isFileNotFoundError(err):
		fmt.Fprintf(h.out, "Error: File not found\n")
		fmt.Fprintf(h.out, "Suggestion: Check if the file path is correct and the file exists\n")
	case h.isPermissionError(err):
		fmt.Fprintf(h.out, "Error: Permission denied\n")
		fmt.Fprintf(h.out, "Suggestion: Check file permissions and ensure you have read access\n")
	case h.isDiskFullError(err):
		fmt.Fprintf(h.out, "Error: Insufficient disk space\n")
		fmt.Fprintf(h.out, "Suggestion: Free up disk space and try again\n")
	default:
		fmt.Fprintf(h.out, "Error: %v\n", err)
	}

	if !h.verbose {
		fmt.Fprintf(h.out, "\nRun with --verbose for more details\n")
	}
}

// printExpectedSchemas lists the columns every report must contain.
func (h *CLIErrorHandler) printExpectedSchemas() {
	schemas := h.schemas
	if schemas == nil {
		set := models.DefaultSchemaSet()
		schemas = &set
	}
	fmt.Fprintf(h.out, "\nExpected report columns:\n")
	for _, line := range strings.Split(strings.TrimRight(schemas.Describe(), "\n"), "\n") {
		fmt.Fprintf(h.out, "  %s\n", line)
	}
	fmt.Fprintf(h.out, "\nUse --profile or --schema-file when your portal exports different column names.\n")
	fmt.Fprintf(h.out, "Run 'reconciler schemas' to list the available profiles.\n")
}

// getCategoryHelp returns category-specific help text
func (h *CLIErrorHandler) getCategoryHelp(category errors.ErrorCategory) string {
	switch category {
	case errors.CategoryFile:
		return `File error help:
• Check if the file exists and is readable
• Verify the file path is correct (use absolute paths if needed)
• Ensure you have proper permissions to access the file`

	case errors.CategoryParse:
		return `Parse error help:
• Verify the report is a CSV, TSV or XLSX export
• Check that the first non-empty row holds the column headers
• Amounts may use thousands separators and currency symbols, but not text
• Use --encoding windows-1252 for reports saved by older spreadsheet tools`

	case errors.CategoryValidation:
		return `Validation error help:
• Check that every report has a header row and at least the required columns
• Provide all three reports: shipment (GST), returns (RTV) and payment`

	case errors.CategoryConfiguration:
		return `Configuration error help:
• Check your command-line flags and arguments
• Verify configuration file syntax if using --config or --schema-file
• Use 'reconciler reconcile --help' to see all available options`

	case errors.CategoryReconciliation:
		return `Reconciliation error help:
• Check that order ids use the same format in all three reports
• Try --join-mode full_outer to see orders missing from the shipment report`

	default:
		return `For more help:
• Use 'reconciler --help' for general help
• Use 'reconciler reconcile --help' for command-specific help
• Use 'reconciler schemas' to see the expected report columns`
	}
}

// similarFiles suggests files next to path whose names share its prefix.
func (h *CLIErrorHandler) similarFiles(path string) string {
	baseName := filepath.Base(path)
	prefix := strings.ToLower(baseName[:min(len(baseName), 3)])

	entries, err := afero.ReadDir(h.fs, filepath.Dir(path))
	if err != nil {
		return ""
	}

	var similar []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.Contains(strings.ToLower(entry.Name()), prefix) {
			similar = append(similar, entry.Name())
		}
	}
	if len(similar) == 0 {
		return ""
	}

	var message strings.Builder
	message.WriteString("Similar files found:\n")
	for _, name := range similar[:min(len(similar), 3)] {
		message.WriteString(fmt.Sprintf("  - %s\n", name))
	}
	return message.String()
}

// Error detection helpers

func (h *CLIErrorHandler) isFileNotFoundError(err error) bool {
	return os.IsNotExist(err) || strings.Contains(err.Error(), "no such file or directory")
}

func (h *CLIErrorHandler) isPermissionError(err error) bool {
	return os.IsPermission(err) ||
		strings.Contains(err.Error(), "permission denied") ||
		strings.Contains(err.Error(), "access denied")
}

func (h *CLIErrorHandler) isDiskFullError(err error) bool {
	if errors.Is(err, syscall.ENOSPC) {
		return true
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "no space left") ||
		strings.Contains(errStr, "disk full") ||
		strings.Contains(errStr, "device full")
}
