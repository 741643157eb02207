package importer

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Format is the layout of an uploaded batch
type Format string

const (
	FormatCSV   Format = "csv"
	FormatLines Format = "lines"
)

// ParseFormat maps a user-supplied name to a Format
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "csv":
		return FormatCSV, nil
	case "lines", "text", "txt", "manual":
		return FormatLines, nil
	default:
		return "", fmt.Errorf("unknown import format %q", s)
	}
}

// Limits bounds the size of a single batch
type Limits struct {
	MaxRows     int
	MaxBytes    int64
	ErrorSample int
}

// DefaultLimits returns the stock batch limits
func DefaultLimits() Limits {
	return Limits{
		MaxRows:     2000,
		MaxBytes:    10 * 1024 * 1024,
		ErrorSample: 5,
	}
}

// ReadBatch reads at most limits.MaxBytes from r and parses it. Oversize
// input is rejected before any parsing happens.
func ReadBatch(r io.Reader, format Format, limits Limits) ([]RawContactRow, error) {
	data, err := io.ReadAll(io.LimitReader(r, limits.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read import: %w", err)
	}
	if int64(len(data)) > limits.MaxBytes {
		return nil, &SizeLimitError{Limit: "bytes", Max: limits.MaxBytes}
	}

	var rows []RawContactRow
	switch format {
	case FormatLines:
		rows, err = ParseLines(bytes.NewReader(data))
	default:
		rows, err = ParseCSV(bytes.NewReader(data))
	}
	if err != nil {
		return nil, err
	}

	if limits.MaxRows > 0 && len(rows) > limits.MaxRows {
		return nil, &SizeLimitError{Limit: "rows", Max: int64(limits.MaxRows), Actual: int64(len(rows))}
	}
	return rows, nil
}

type column int

const (
	colNone column = iota
	colPhone
	// colPhoneFallback holds a phone only when no column says so plainly
	colPhoneFallback
	colFirstName
	colLastName
	colEmail
	colCompany
	colTags
)

// classifyHeader maps a header cell to the field it most likely holds
func classifyHeader(h string) column {
	h = strings.ToLower(strings.TrimSpace(h))
	has := func(subs ...string) bool {
		for _, s := range subs {
			if strings.Contains(h, s) {
				return true
			}
		}
		return false
	}

	switch {
	case has("first") && has("name"):
		return colFirstName
	case (has("last") && has("name")) || has("surname"):
		return colLastName
	case has("mail"):
		return colEmail
	case has("company", "organi", "business"):
		return colCompany
	case has("tag"):
		return colTags
	case has("phone", "mobile", "cell"):
		return colPhone
	case has("number", "tel"):
		return colPhoneFallback
	default:
		return colNone
	}
}

// ParseCSV reads a header-driven CSV. Columns are recognised by keyword;
// unrecognised columns are ignored. A record that cannot be read becomes an
// invalid row rather than failing the batch.
func ParseCSV(r io.Reader) ([]RawContactRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return []RawContactRow{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	index := map[column]int{}
	for i, h := range header {
		col := classifyHeader(h)
		if col == colNone {
			continue
		}
		if _, ok := index[col]; !ok {
			index[col] = i
		}
	}
	if _, ok := index[colPhone]; !ok {
		i, ok := index[colPhoneFallback]
		if !ok {
			return nil, ErrNoPhoneColumn
		}
		index[colPhone] = i
	}

	field := func(rec []string, col column) string {
		i, ok := index[col]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	rows := []RawContactRow{}
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if !errors.As(err, &perr) {
				return nil, fmt.Errorf("failed to read csv: %w", err)
			}
			rows = append(rows, RawContactRow{Line: perr.StartLine, parseErr: perr.Err.Error()})
			continue
		}

		if blankRecord(rec) {
			continue
		}

		line, _ := cr.FieldPos(0)
		rows = append(rows, RawContactRow{
			Line:      line,
			Phone:     field(rec, colPhone),
			FirstName: field(rec, colFirstName),
			LastName:  field(rec, colLastName),
			Email:     field(rec, colEmail),
			Company:   field(rec, colCompany),
			Tags:      field(rec, colTags),
		})
	}

	return rows, nil
}

// ParseLines reads manual entry: one phone per line, optionally followed by
// comma-separated first and last name. Blank lines are skipped.
func ParseLines(r io.Reader) ([]RawContactRow, error) {
	rows := []RawContactRow{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		parts := strings.SplitN(text, ",", 3)
		row := RawContactRow{Line: line, Phone: strings.TrimSpace(parts[0])}
		if len(parts) > 1 {
			row.FirstName = strings.TrimSpace(parts[1])
		}
		if len(parts) > 2 {
			row.LastName = strings.TrimSpace(parts[2])
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read lines: %w", err)
	}
	return rows, nil
}

func blankRecord(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
