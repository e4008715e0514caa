package csvimport

import (
	"errors"
	"fmt"
	"strings"
)

// MaxRows caps the number of data rows kept from one CSV input. Anything
// beyond the cap is dropped with a warning so the validation and commit
// stages never face unbounded work.
const MaxRows = 500

// ErrEmptyInput is returned when the input contains no usable text.
var ErrEmptyInput = errors.New("empty file: input contains no CSV data")

// Parse turns raw delimited text into a rectangular grid of string cells.
//
// The delimiter is detected from the first line: ';' when the line contains a
// semicolon and no comma, ',' otherwise. Quotes toggle literal mode, so a
// delimiter inside quotes is not a separator; a missing closing quote is
// tolerated rather than rejected. Every cell is trimmed of surrounding
// whitespace, quoted or not; quotes protect delimiters, not padding. When
// hasHeader is false, column names "Col 1".."Col N" are synthesized from the
// first line's width.
func Parse(text string, hasHeader bool) (*ParseResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}

	var lines []string
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		return nil, ErrEmptyInput
	}

	delimiter := detectDelimiter(lines[0])

	var headers []string
	var dataLines []string
	if hasHeader {
		headers = splitLine(lines[0], delimiter)
		dataLines = lines[1:]
	} else {
		width := len(splitLine(lines[0], delimiter))
		headers = make([]string, width)
		for i := range headers {
			headers[i] = fmt.Sprintf("Col %d", i+1)
		}
		dataLines = lines
	}

	result := &ParseResult{Headers: headers}

	dropped := 0
	for _, line := range dataLines {
		cells := splitLine(line, delimiter)

		empty := true
		for _, c := range cells {
			if c != "" {
				empty = false
				break
			}
		}
		if empty {
			continue
		}

		if len(result.Rows) >= MaxRows {
			dropped++
			continue
		}

		row := make(ParsedRow, len(headers))
		for i, h := range headers {
			if i < len(cells) {
				row[h] = cells[i]
			} else {
				row[h] = ""
			}
		}
		result.Rows = append(result.Rows, row)
	}

	if dropped > 0 {
		result.Warning = fmt.Sprintf(
			"input contained %d data rows; only the first %d were kept", MaxRows+dropped, MaxRows)
	}

	return result, nil
}

// detectDelimiter applies the first-line heuristic. This is deliberately not
// RFC 4180 sniffing: a semicolon-delimited file whose first line also carries
// a comma will be read as comma-delimited.
func detectDelimiter(line string) rune {
	if strings.ContainsRune(line, ';') && !strings.ContainsRune(line, ',') {
		return ';'
	}
	return ','
}

// splitLine splits one line on the delimiter, treating delimiters inside
// quotes as literal text. The quote characters themselves are dropped and
// each cell is trimmed of surrounding whitespace.
func splitLine(line string, delimiter rune) []string {
	var cells []string
	var cell strings.Builder
	inQuotes := false

	for _, r := range line {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case r == delimiter && !inQuotes:
			cells = append(cells, strings.TrimSpace(cell.String()))
			cell.Reset()
		default:
			cell.WriteRune(r)
		}
	}
	cells = append(cells, strings.TrimSpace(cell.String()))

	return cells
}
