// Package parsers loads seller reports into generic tables.
//
// Reports arrive as comma separated text, tab separated text (the "Unicode
// text" export of most spreadsheet tools) or XLSX workbooks. Whatever the
// layout, the loader returns a models.Table whose first non-blank row is the
// header and whose cells are strings. Numeric interpretation of cells is left
// to the aggregator.
//
// Example usage:
//
//	loader := parsers.NewLoader(afero.NewOsFs(), parsers.DefaultLoaderConfig())
//	table, err := loader.Load("gst_report.xlsx")
package parsers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sourcegraph/conc"
	"github.com/spf13/afero"
	"go.uber.org/multierr"

	"sales-reconciliation-service/internal/models"
	"sales-reconciliation-service/pkg/errors"
	"sales-reconciliation-service/pkg/logger"
)

var zipMagic = []byte("PK\x03\x04")

// Loader reads report files into tables
type Loader struct {
	fs     afero.Fs
	config *LoaderConfig
	logger logger.Logger
}

// NewLoader creates a Loader reading through fs. A nil fs uses the OS
// filesystem and a nil config uses DefaultLoaderConfig.
func NewLoader(fs afero.Fs, config *LoaderConfig) *Loader {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if config == nil {
		config = DefaultLoaderConfig()
	}

	log := logger.GetGlobalLogger().WithComponent("loader")
	log.WithFields(logger.Fields{
		"format":   config.Format,
		"encoding": config.Encoding,
		"sheet":    config.Sheet,
	}).Debug("Created report loader")

	return &Loader{
		fs:     fs,
		config: config,
		logger: log,
	}
}

// Load reads the report at path.
func (l *Loader) Load(path string) (*models.Table, error) {
	log := l.logger.WithField("file_path", path)
	log.Debug("Loading report")

	info, err := l.fs.Stat(path)
	if err != nil {
		return nil, l.fileError(path, err)
	}
	if info.IsDir() {
		return nil, errors.FileError(errors.CodeDirectoryError, path, fmt.Errorf("is a directory"))
	}
	if limit := int64(l.config.MaxFileSizeMB) << 20; limit > 0 && info.Size() > limit {
		return nil, errors.FileError(errors.CodeFileCorrupted, path,
			fmt.Errorf("file is %d bytes, larger than the %d MB limit", info.Size(), l.config.MaxFileSizeMB)).
			WithSuggestion("split the report or raise loader.max_file_size_mb")
	}

	file, err := l.fs.Open(path)
	if err != nil {
		return nil, l.fileError(path, err)
	}
	defer file.Close()

	return l.LoadReader(path, file)
}

// LoadReader reads a report from r. name is used for format detection by
// extension and in error messages.
func (l *Loader) LoadReader(name string, r io.Reader) (*models.Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.FileError(errors.CodeFileCorrupted, name, err)
	}

	format := l.detectFormat(name, data)
	l.logger.WithFields(logger.Fields{
		"file_path": name,
		"format":    format,
		"bytes":     len(data),
	}).Debug("Detected report format")

	var records [][]string
	var lines []int
	switch format {
	case FormatXLSX:
		records, lines, err = l.readWorkbook(name, data)
	case FormatCSV, FormatTSV:
		records, lines, err = l.readDelimited(name, data, format)
	default:
		err = errors.ParseError(errors.CodeUnsupportedFormat, name, 0, "", string(format), nil)
	}
	if err != nil {
		return nil, err
	}

	table, err := buildTable(tableName(name), records, lines)
	if err != nil {
		return nil, err
	}

	l.logger.WithFields(logger.Fields{
		"file_path": name,
		"columns":   len(table.Columns),
		"rows":      table.Len(),
	}).Info("Loaded report")
	return table, nil
}

// LoadAll loads several reports concurrently. Tables are returned in the
// order of paths; errors from every file are combined.
func (l *Loader) LoadAll(ctx context.Context, paths ...string) ([]*models.Table, error) {
	tables := make([]*models.Table, len(paths))
	errs := make([]error, len(paths))

	var wg conc.WaitGroup
	for i, path := range paths {
		wg.Go(func() {
			if err := ctx.Err(); err != nil {
				errs[i] = errors.InternalError(errors.CodeCancelled, "report loading", err)
				return
			}
			tables[i], errs[i] = l.Load(path)
		})
	}
	wg.Wait()

	if err := multierr.Combine(errs...); err != nil {
		return nil, err
	}
	return tables, nil
}

func (l *Loader) detectFormat(name string, data []byte) Format {
	if l.config.Format != "" && l.config.Format != FormatAuto {
		return l.config.Format
	}
	if bytes.HasPrefix(data, zipMagic) {
		return FormatXLSX
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		return FormatXLSX
	case ".tsv", ".tab":
		return FormatTSV
	}
	return FormatCSV
}

func (l *Loader) fileError(path string, err error) error {
	l.logger.WithError(err).WithField("file_path", path).Error("Failed to open report")
	if os.IsNotExist(err) {
		return errors.FileError(errors.CodeFileNotFound, path, err)
	}
	if os.IsPermission(err) {
		return errors.FileError(errors.CodeFilePermission, path, err)
	}
	return errors.FileError(errors.CodeDirectoryError, path, err)
}

// buildTable turns raw records into a table. The first non-blank record is
// the header; blank records are skipped and short records padded. lines[i]
// is the source line of records[i].
func buildTable(name string, records [][]string, lines []int) (*models.Table, error) {
	start := -1
	for i, record := range records {
		if !isBlank(record) {
			start = i
			break
		}
	}
	if start < 0 {
		return nil, errors.ValidationError(errors.CodeMissingField, "header row", name, nil).
			WithSuggestion("the report is empty; export it again including the header row")
	}

	table := models.NewTable(name, cleanHeaders(records[start])...)
	for i := start + 1; i < len(records); i++ {
		record := records[i]
		if isBlank(record) {
			continue
		}
		values := make([]any, len(table.Columns))
		for i := range values {
			if i < len(record) {
				values[i] = record[i]
			} else {
				values[i] = ""
			}
		}
		line := 0
		if i < len(lines) {
			line = lines[i]
		}
		table.AppendAt(line, values...)
	}
	return table, nil
}

// cleanHeaders trims header cells, names blank ones Column_N and suffixes
// repeated names with _2, _3 and so on.
func cleanHeaders(headers []string) []string {
	cleaned := make([]string, len(headers))
	seen := make(map[string]int, len(headers))
	for i, header := range headers {
		h := strings.TrimSpace(strings.TrimPrefix(header, "\ufeff"))
		if h == "" {
			h = fmt.Sprintf("Column_%d", i+1)
		}
		seen[h]++
		if n := seen[h]; n > 1 {
			h = fmt.Sprintf("%s_%d", h, n)
		}
		cleaned[i] = h
	}
	return cleaned
}

func isBlank(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func tableName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}
