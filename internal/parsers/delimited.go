package parsers

import (
	"bytes"
	"encoding/csv"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"sales-reconciliation-service/pkg/errors"
)

var (
	utf8BOM    = []byte{0xEF, 0xBB, 0xBF}
	utf16LEBOM = []byte{0xFF, 0xFE}
	utf16BEBOM = []byte{0xFE, 0xFF}
)

// readDelimited returns the records of a CSV or TSV report together with
// the line each record starts on.
func (l *Loader) readDelimited(name string, data []byte, format Format) ([][]string, []int, error) {
	text, err := l.decode(name, data)
	if err != nil {
		return nil, nil, err
	}

	delimiter := l.config.Delimiter
	if delimiter == 0 {
		if format == FormatTSV {
			delimiter = '\t'
		} else {
			delimiter = sniffDelimiter(text)
		}
	}

	reader := csv.NewReader(bytes.NewReader(text))
	reader.Comma = delimiter
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	var records [][]string
	var lines []int
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			line := 0
			if parseErr, ok := err.(*csv.ParseError); ok {
				line = parseErr.Line
			}
			return nil, nil, errors.ParseError(errors.CodeInvalidFormat, name, line, "", "", err)
		}
		line, _ := reader.FieldPos(0)
		records = append(records, record)
		lines = append(lines, line)
	}
	return records, lines, nil
}

// decode returns data as UTF-8 text without a byte order mark.
func (l *Loader) decode(name string, data []byte) ([]byte, error) {
	switch {
	case bytes.HasPrefix(data, utf8BOM):
		return data[len(utf8BOM):], nil
	case bytes.HasPrefix(data, utf16LEBOM), bytes.HasPrefix(data, utf16BEBOM):
		decoder := unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder()
		text, _, err := transform.Bytes(decoder, data)
		if err != nil {
			return nil, errors.ParseError(errors.CodeEncodingError, name, 1, "", "", err)
		}
		return text, nil
	}

	switch Encoding(strings.ToLower(string(l.config.Encoding))) {
	case EncodingWindows1252:
		return charmap.Windows1252.NewDecoder().Bytes(data)
	case EncodingUTF8:
		if !utf8.Valid(data) {
			return nil, errors.ParseError(errors.CodeEncodingError, name, firstInvalidLine(data), "", "", nil)
		}
		return data, nil
	default:
		if utf8.Valid(data) {
			return data, nil
		}
		l.logger.WithField("file_path", name).Warn("Report is not valid UTF-8, decoding as Windows-1252")
		return charmap.Windows1252.NewDecoder().Bytes(data)
	}
}

// sniffDelimiter picks the most frequent candidate on the header line.
func sniffDelimiter(text []byte) rune {
	line := text
	if i := bytes.IndexByte(text, '\n'); i >= 0 {
		line = text[:i]
	}

	best, bestCount := ',', 0
	for _, candidate := range []rune{',', '\t', ';', '|'} {
		if n := bytes.Count(line, []byte(string(candidate))); n > bestCount {
			best, bestCount = candidate, n
		}
	}
	return best
}

func firstInvalidLine(data []byte) int {
	for i, line := range bytes.Split(data, []byte("\n")) {
		if !utf8.Valid(line) {
			return i + 1
		}
	}
	return 0
}
