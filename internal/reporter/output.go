package reporter

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"sales-reconciliation-service/internal/reconciler"
	"sales-reconciliation-service/pkg/errors"
	"sales-reconciliation-service/pkg/logger"
)

// SafeReportGenerator wraps ReportGenerator with file output and error handling
type SafeReportGenerator struct {
	*ReportGenerator
	fs     afero.Fs
	logger logger.Logger
}

// NewSafeReportGenerator creates a generator writing files through fs.
// A nil fs uses the OS filesystem.
func NewSafeReportGenerator(config *ReportConfig, fs afero.Fs, log logger.Logger) (*SafeReportGenerator, error) {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	if fs == nil {
		fs = afero.NewOsFs()
	}

	generator, err := NewReportGenerator(config)
	if err != nil {
		return nil, errors.ConfigurationError(
			errors.CodeInvalidConfig,
			"report_config",
			config.Format,
			err,
		).WithSuggestion("supported formats are console, json, csv and tsv")
	}

	return &SafeReportGenerator{
		ReportGenerator: generator,
		fs:              fs,
		logger:          log.WithComponent("reporter"),
	}, nil
}

// GenerateReportSafely writes the report to writer, logging and wrapping failures.
func (srg *SafeReportGenerator) GenerateReportSafely(result *reconciler.Result, writer io.Writer) error {
	if err := srg.validateInputs(result, writer); err != nil {
		srg.logger.WithError(err).Error("Report generation failed: input validation")
		return err
	}

	srg.logger.WithFields(logger.Fields{
		"format":  srg.config.Format,
		"orders":  len(result.Records),
		"output":  getWriterDescription(writer),
		"sort_by": srg.config.SortBy,
	}).Debug("Starting report generation")

	if err := srg.GenerateReport(result, writer); err != nil {
		srg.logger.WithError(err).Error("Report generation failed")
		return srg.wrapGenerationError(err)
	}
	return nil
}

// GenerateToFile writes the report to path. The report is written to a
// temporary file in the same directory and renamed into place, so a failed
// run never leaves a truncated report behind.
func (srg *SafeReportGenerator) GenerateToFile(result *reconciler.Result, path string) error {
	dir := filepath.Dir(path)
	if err := srg.fs.MkdirAll(dir, 0o755); err != nil {
		return errors.FileError(errors.CodeDirectoryError, dir, err)
	}

	tmp, err := afero.TempFile(srg.fs, dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return srg.fileError(dir, err)
	}
	tmpPath := tmp.Name()

	genErr := srg.GenerateReportSafely(result, tmp)
	closeErr := tmp.Close()
	if genErr == nil && closeErr != nil {
		genErr = srg.fileError(path, closeErr)
	}
	if genErr != nil {
		if err := srg.fs.Remove(tmpPath); err != nil {
			srg.logger.WithError(err).WithField("file", tmpPath).Warn("Failed to remove temporary report")
		}
		return genErr
	}

	if err := srg.fs.Rename(tmpPath, path); err != nil {
		_ = srg.fs.Remove(tmpPath)
		return srg.fileError(path, err)
	}

	srg.logger.WithFields(logger.Fields{
		"file":   path,
		"format": srg.config.Format,
	}).Info("Report written")
	return nil
}

func (srg *SafeReportGenerator) validateInputs(result *reconciler.Result, writer io.Writer) error {
	if result == nil {
		return errors.ValidationError(
			errors.CodeMissingField,
			"result",
			nil,
			nil,
		).WithSuggestion("Provide a valid reconciliation result")
	}

	if result.Summary == nil {
		return errors.ValidationError(
			errors.CodeMissingField,
			"summary",
			nil,
			nil,
		).WithSuggestion("Ensure the reconciliation result includes a summary")
	}

	if writer == nil {
		return errors.ValidationError(
			errors.CodeMissingField,
			"writer",
			nil,
			nil,
		).WithSuggestion("Provide a valid output writer")
	}

	return nil
}

func (srg *SafeReportGenerator) fileError(path string, err error) error {
	if os.IsPermission(err) {
		return errors.FileError(errors.CodeFilePermission, path, err)
	}
	return errors.FileError(errors.CodeDirectoryError, path, err)
}

// wrapGenerationError wraps generation errors with context
func (srg *SafeReportGenerator) wrapGenerationError(err error) error {
	if reconcilerErr, ok := errors.AsReconcilerError(err); ok {
		return reconcilerErr
	}

	return errors.InternalError(
		errors.CodeUnexpectedError,
		"report generation",
		err,
	).WithSuggestion("Check the output destination and report format settings")
}

func getWriterDescription(writer io.Writer) string {
	switch w := writer.(type) {
	case afero.File:
		return fmt.Sprintf("file:%s", w.Name())
	default:
		return fmt.Sprintf("writer:%T", writer)
	}
}
