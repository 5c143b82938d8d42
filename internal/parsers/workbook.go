package parsers

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"sales-reconciliation-service/pkg/errors"
	"sales-reconciliation-service/pkg/logger"
)

func (l *Loader) readWorkbook(name string, data []byte) ([][]string, []int, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, nil, errors.FileError(errors.CodeFileCorrupted, name, err).
			WithSuggestion("the workbook could not be opened; re-export it as .xlsx or .csv")
	}
	defer f.Close()

	sheet := l.config.Sheet
	if sheet == "" {
		sheet = f.GetSheetName(0)
	} else if index, err := f.GetSheetIndex(sheet); err != nil || index < 0 {
		return nil, nil, errors.ParseError(errors.CodeInvalidFormat, name, 0, "", sheet,
			fmt.Errorf("sheet %q not found (available: %v)", sheet, f.GetSheetList()))
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, nil, errors.ParseError(errors.CodeInvalidFormat, name, 0, "", sheet, err)
	}

	l.logger.WithFields(logger.Fields{
		"file_path": name,
		"sheet":     sheet,
		"rows":      len(rows),
	}).Debug("Read workbook sheet")
	// GetRows starts at sheet row 1 and keeps empty rows in place.
	lines := make([]int, len(rows))
	for i := range rows {
		lines[i] = i + 1
	}
	return rows, lines, nil
}
