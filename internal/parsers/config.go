package parsers

import (
	"fmt"
	"strings"
)

// Format identifies the on-disk layout of a seller report.
type Format string

const (
	FormatAuto Format = "auto"
	FormatCSV  Format = "csv"
	FormatTSV  Format = "tsv"
	FormatXLSX Format = "xlsx"
)

// Encoding names the character set of delimited text reports.
type Encoding string

const (
	// EncodingAuto reads UTF-8 (and UTF-16 with a byte order mark) and falls
	// back to Windows-1252 when the bytes are not valid UTF-8.
	EncodingAuto        Encoding = "auto"
	EncodingUTF8        Encoding = "utf-8"
	EncodingWindows1252 Encoding = "windows-1252"
)

// LoaderConfig holds configuration for loading report files
type LoaderConfig struct {
	Format    Format   `json:"format" mapstructure:"format"`
	Encoding  Encoding `json:"encoding" mapstructure:"encoding"`
	Delimiter rune     `json:"delimiter" mapstructure:"delimiter"`
	// Sheet selects a workbook sheet by name; empty means the first sheet.
	Sheet string `json:"sheet" mapstructure:"sheet"`
	// MaxFileSizeMB rejects larger files before reading them. Zero disables the check.
	MaxFileSizeMB int `json:"max_file_size_mb" mapstructure:"max_file_size_mb"`
}

// DefaultLoaderConfig returns a configuration with sensible defaults
func DefaultLoaderConfig() *LoaderConfig {
	return &LoaderConfig{
		Format:        FormatAuto,
		Encoding:      EncodingAuto,
		Delimiter:     0,
		MaxFileSizeMB: 200,
	}
}

// Validate checks if the loader configuration is valid
func (c *LoaderConfig) Validate() error {
	switch c.Format {
	case "", FormatAuto, FormatCSV, FormatTSV, FormatXLSX:
	default:
		return fmt.Errorf("unsupported format %q (supported: auto, csv, tsv, xlsx)", c.Format)
	}

	switch Encoding(strings.ToLower(string(c.Encoding))) {
	case "", EncodingAuto, EncodingUTF8, EncodingWindows1252:
	default:
		return fmt.Errorf("unsupported encoding %q (supported: auto, utf-8, windows-1252)", c.Encoding)
	}

	switch c.Delimiter {
	case 0, ',', '\t', ';', '|':
	default:
		return fmt.Errorf("unsupported delimiter %q", c.Delimiter)
	}

	if c.MaxFileSizeMB < 0 {
		return fmt.Errorf("max file size cannot be negative")
	}
	return nil
}

// ParseFormat converts a user supplied format name.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return FormatAuto, nil
	case "csv":
		return FormatCSV, nil
	case "tsv", "tab", "txt":
		return FormatTSV, nil
	case "xlsx", "xlsm", "excel":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("unsupported format %q", s)
	}
}
