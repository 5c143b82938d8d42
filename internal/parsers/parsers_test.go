package parsers

import (
	"context"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/xuri/excelize/v2"

	"sales-reconciliation-service/internal/models"
	"sales-reconciliation-service/pkg/errors"
)

func writeFile(t *testing.T, fs afero.Fs, path string, data []byte) {
	t.Helper()
	if err := afero.WriteFile(fs, path, data, 0o644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
}

func workbookBytes(t *testing.T, sheet string, rows [][]interface{}) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	if sheet != "Sheet1" {
		if err := f.SetSheetName("Sheet1", sheet); err != nil {
			t.Fatalf("Failed to rename sheet: %v", err)
		}
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("Failed to build cell name: %v", err)
		}
		row := row
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("Failed to write row %d: %v", i, err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("Failed to write workbook: %v", err)
	}
	return buf.Bytes()
}

func TestLoaderConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  *LoaderConfig
		wantErr bool
	}{
		{"default", DefaultLoaderConfig(), false},
		{"tab delimiter", &LoaderConfig{Format: FormatTSV, Delimiter: '\t'}, false},
		{"bad format", &LoaderConfig{Format: "pdf"}, true},
		{"bad encoding", &LoaderConfig{Encoding: "ebcdic"}, true},
		{"bad delimiter", &LoaderConfig{Delimiter: 'x'}, true},
		{"negative size", &LoaderConfig{MaxFileSizeMB: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	tests := map[string]Format{
		"":      FormatAuto,
		"CSV":   FormatCSV,
		"txt":   FormatTSV,
		"excel": FormatXLSX,
	}
	for input, want := range tests {
		got, err := ParseFormat(input)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v; want %q", input, got, err, want)
		}
	}
	if _, err := ParseFormat("pdf"); err == nil {
		t.Error("Expected error for pdf")
	}
}

func TestLoader_LoadDelimited(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		content  string
		columns  []string
		rows     int
		firstRow models.Row
	}{
		{
			name:    "comma",
			path:    "/reports/gst.csv",
			content: "Cust Order No,Shipped QTY,Invoice Value\nA001,2,1000\nA001,1,500\n",
			columns: []string{"Cust Order No", "Shipped QTY", "Invoice Value"},
			rows:    2,
			firstRow: models.Row{
				"Cust Order No": "A001", "Shipped QTY": "2", "Invoice Value": "1000",
			},
		},
		{
			name:    "tab by extension",
			path:    "/reports/rtv.tsv",
			content: "Cust Order No\tReturn QTY\tReturn Value\nA001\t1\t1,200.50\n",
			columns: []string{"Cust Order No", "Return QTY", "Return Value"},
			rows:    1,
			firstRow: models.Row{
				"Cust Order No": "A001", "Return QTY": "1", "Return Value": "1,200.50",
			},
		},
		{
			name:    "tab sniffed in txt",
			path:    "/reports/payment.txt",
			content: "Order No\tValue\nB002\t300\n",
			columns: []string{"Order No", "Value"},
			rows:    1,
			firstRow: models.Row{
				"Order No": "B002", "Value": "300",
			},
		},
		{
			name:    "bom blank rows and short rows",
			path:    "/reports/payment.csv",
			content: "\ufeff Order No , Value\n\n,\nC003\n",
			columns: []string{"Order No", "Value"},
			rows:    1,
			firstRow: models.Row{
				"Order No": "C003", "Value": "",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			writeFile(t, fs, tt.path, []byte(tt.content))

			table, err := NewLoader(fs, nil).Load(tt.path)
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if strings.Join(table.Columns, "|") != strings.Join(tt.columns, "|") {
				t.Errorf("Columns = %q, want %q", table.Columns, tt.columns)
			}
			if table.Len() != tt.rows {
				t.Fatalf("Len() = %d, want %d", table.Len(), tt.rows)
			}
			for column, want := range tt.firstRow {
				if got := table.Rows[0][column]; got != want {
					t.Errorf("row 0 %q = %v, want %v", column, got, want)
				}
			}
		})
	}
}

func TestLoader_Windows1252Fallback(t *testing.T) {
	fs := afero.NewMemMapFs()
	// 0xE9 is "é" in Windows-1252 and invalid as UTF-8.
	writeFile(t, fs, "/r.csv", []byte("Order No,Value,Note\nA1,10,caf\xe9\n"))

	table, err := NewLoader(fs, nil).Load("/r.csv")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := table.Rows[0]["Note"]; got != "café" {
		t.Errorf("Note = %q, want %q", got, "café")
	}

	strict := &LoaderConfig{Encoding: EncodingUTF8}
	_, err = NewLoader(fs, strict).Load("/r.csv")
	rerr, ok := errors.AsReconcilerError(err)
	if !ok || rerr.Code != errors.CodeEncodingError {
		t.Errorf("Expected encoding error, got %v", err)
	}
}

func TestLoader_UTF16(t *testing.T) {
	fs := afero.NewMemMapFs()
	text := "Order No\tValue\nA1\t5\n"
	data := []byte{0xFF, 0xFE}
	for _, r := range text {
		data = append(data, byte(r), 0)
	}
	writeFile(t, fs, "/payment.txt", data)

	table, err := NewLoader(fs, nil).Load("/payment.txt")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if table.Len() != 1 || table.Rows[0]["Value"] != "5" {
		t.Errorf("Unexpected table %+v", table)
	}
}

func TestLoader_Headers(t *testing.T) {
	got := cleanHeaders([]string{" Value ", "", "Value", "Value", "\ufeffOrder No"})
	want := []string{"Value", "Column_2", "Value_2", "Value_3", "Order No"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("cleanHeaders() = %q, want %q", got, want)
	}
}

func TestLoader_LineNumbers(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/rtv.csv", []byte("\nCust Order No,Value\nA001,1\n,\nB002,\"multi\nline\"\nC003,x\n"))

	table, err := NewLoader(fs, nil).Load("/rtv.csv")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if table.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", table.Len())
	}
	want := []int{3, 5, 7}
	for i, line := range want {
		if got := table.Line(i); got != line {
			t.Errorf("Line(%d) = %d, want %d", i, got, line)
		}
	}
}

func TestLoader_Workbook(t *testing.T) {
	fs := afero.NewMemMapFs()
	data := workbookBytes(t, "GST", [][]interface{}{
		{"Cust Order No", "Shipped QTY", "Invoice Value"},
		{"A001", 2, 1000.5},
		{},
		{"B002", 1},
	})
	// Extension is deliberately wrong; detection uses the zip signature.
	writeFile(t, fs, "/upload.bin", data)

	table, err := NewLoader(fs, nil).Load("/upload.bin")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if table.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", table.Len())
	}
	if got := table.Rows[0]["Invoice Value"]; got != "1000.5" {
		t.Errorf("Invoice Value = %v, want 1000.5", got)
	}
	if got := table.Rows[1]["Invoice Value"]; got != "" {
		t.Errorf("padded cell = %v, want empty", got)
	}
	if table.Line(0) != 2 || table.Line(1) != 4 {
		t.Errorf("lines = %v, want sheet rows 2 and 4", table.Lines)
	}

	_, err = NewLoader(fs, &LoaderConfig{Sheet: "Missing"}).Load("/upload.bin")
	if err == nil {
		t.Error("Expected error for missing sheet")
	}
}

func TestLoader_Errors(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/empty.csv", []byte("\n \n"))
	writeFile(t, fs, "/broken.xlsx", []byte("not a workbook"))
	if err := fs.MkdirAll("/dir", 0o755); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		path     string
		category errors.ErrorCategory
		code     errors.ErrorCode
	}{
		{"missing file", "/nope.csv", errors.CategoryFile, errors.CodeFileNotFound},
		{"directory", "/dir", errors.CategoryFile, errors.CodeDirectoryError},
		{"empty", "/empty.csv", errors.CategoryValidation, errors.CodeMissingField},
		{"corrupt workbook", "/broken.xlsx", errors.CategoryFile, errors.CodeFileCorrupted},
	}

	loader := NewLoader(fs, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loader.Load(tt.path)
			rerr, ok := errors.AsReconcilerError(err)
			if !ok {
				t.Fatalf("Expected ReconcilerError, got %v", err)
			}
			if rerr.Category != tt.category || rerr.Code != tt.code {
				t.Errorf("got %s/%s, want %s/%s", rerr.Category, rerr.Code, tt.category, tt.code)
			}
		})
	}
}

func TestLoader_LoadAll(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/a.csv", []byte("Order No,Value\nA,1\n"))
	writeFile(t, fs, "/b.csv", []byte("Order No,Value\nB,2\nC,3\n"))

	tables, err := NewLoader(fs, nil).LoadAll(context.Background(), "/a.csv", "/b.csv")
	if err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	if tables[0].Name != "a" || tables[1].Name != "b" || tables[1].Len() != 2 {
		t.Errorf("Unexpected tables: %s=%d %s=%d", tables[0].Name, tables[0].Len(), tables[1].Name, tables[1].Len())
	}

	_, err = NewLoader(fs, nil).LoadAll(context.Background(), "/a.csv", "/x.csv", "/y.csv")
	if err == nil || !strings.Contains(err.Error(), "/x.csv") || !strings.Contains(err.Error(), "/y.csv") {
		t.Errorf("Expected both missing files reported, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewLoader(fs, nil).LoadAll(ctx, "/a.csv"); err == nil {
		t.Error("Expected cancellation error")
	}
}
