// Package source normalizes raw editor text before it reaches a parser and
// reads CSV records out of it.
package source

import (
	"encoding/csv"
	"errors"
	"io"
	"strings"
	"unicode"

	"github.com/rendis/mindflow/pkg/schema"
)

const bom = "\ufeff"

// Normalize strips a leading byte order mark, converts CRLF and lone CR line
// endings to LF and trims surrounding whitespace.
func Normalize(text string) string {
	return strings.TrimSpace(normalizeEndings(text))
}

func normalizeEndings(text string) string {
	text = strings.TrimPrefix(text, bom)
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n")
}

// Lines returns the normalized text split on LF. Empty text yields no lines.
func Lines(text string) []string {
	text = Normalize(text)
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

// ReadRecords parses normalized CSV text into rows of cells. Rows may have
// different lengths and stray quotes are tolerated.
func ReadRecords(text string) ([][]string, error) {
	rows, _, err := ReadNumbered(text)
	return rows, err
}

// ReadNumbered is ReadRecords that also returns the 1-based line of the
// original text each row starts on. Empty lines produce no row, so the two
// numbers drift apart as soon as one appears.
func ReadNumbered(text string) ([][]string, []int, error) {
	raw := normalizeEndings(text)
	body := strings.TrimLeftFunc(raw, unicode.IsSpace)
	offset := strings.Count(raw[:len(raw)-len(body)], "\n")

	r := csv.NewReader(strings.NewReader(strings.TrimRightFunc(body, unicode.IsSpace)))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var (
		rows  [][]string
		lines []int
	)
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			line := 0
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				line = perr.StartLine + offset
			}
			return nil, nil, schema.NewErrorf(schema.ErrCodeMalformedCSV, "malformed CSV: %v", err).
				WithLine(line).
				WithCause(err)
		}
		line, _ := r.FieldPos(0)
		rows = append(rows, rec)
		lines = append(lines, line+offset)
	}
	return rows, lines, nil
}

// Table is CSV text read with its first row as a header.
type Table struct {
	// Header holds the trimmed, lower-cased column names.
	Header []string
	// Rows maps each lower-cased column name to the row's trimmed cell.
	Rows []map[string]string
	// Lines holds the 1-based text line of each entry in Rows.
	Lines []int
}

// Line returns the text line of Rows[i]. Tables built by hand without Lines
// are assumed to have the header on line 1 and no blank lines.
func (t *Table) Line(i int) int {
	if i < len(t.Lines) {
		return t.Lines[i]
	}
	return i + 2
}

// Has reports whether the header contains column (case-insensitive).
func (t *Table) Has(column string) bool {
	column = strings.ToLower(column)
	for _, h := range t.Header {
		if h == column {
			return true
		}
	}
	return false
}

// ReadTable parses CSV text whose first row names the columns. Column lookup
// is case-insensitive: "Task", "TASK" and "task" all land under "task".
// Missing trailing cells read as empty strings.
func ReadTable(text string) (*Table, error) {
	records, lines, err := ReadNumbered(text)
	if err != nil {
		return nil, err
	}
	t := &Table{}
	if len(records) == 0 {
		return t, nil
	}

	t.Header = make([]string, len(records[0]))
	for i, h := range records[0] {
		t.Header[i] = strings.ToLower(strings.TrimSpace(h))
	}

	for n, rec := range records[1:] {
		if isBlank(rec) {
			continue
		}
		row := make(map[string]string, len(t.Header))
		for i, col := range t.Header {
			if col == "" {
				continue
			}
			if _, dup := row[col]; dup {
				continue
			}
			if i < len(rec) {
				row[col] = strings.TrimSpace(rec[i])
			} else {
				row[col] = ""
			}
		}
		t.Rows = append(t.Rows, row)
		t.Lines = append(t.Lines, lines[n+1])
	}
	return t, nil
}

func isBlank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
