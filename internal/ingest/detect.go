// Package ingest holds the validation and normalization core of contact
// ingestion: format detection, header mapping, fingerprinting, row hashing
// and issue detection. Nothing in here performs I/O.
package ingest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

var byteOrderMark = []byte{0xEF, 0xBB, 0xBF}

// Encodings lists candidate encodings in priority order. latin-1 and
// iso-8859-1 (and cp1252/windows-1252) are aliases; the order is kept as
// published so detection stays deterministic.
var Encodings = []string{"utf-8", "latin-1", "cp1252", "iso-8859-1", "windows-1252"}

// Delimiters lists candidate delimiters in priority order.
var Delimiters = []rune{',', ';', '\t'}

var decoders = map[string]func([]byte) (string, bool){
	"utf-8":        decodeUTF8,
	"latin-1":      decodeCharmap(charmap.ISO8859_1),
	"iso-8859-1":   decodeCharmap(charmap.ISO8859_1),
	"cp1252":       decodeCharmap(charmap.Windows1252),
	"windows-1252": decodeCharmap(charmap.Windows1252),
}

// Table is a decoded CSV file: the header row, the data rows, and the
// combination that parsed it.
type Table struct {
	Encoding  string
	Delimiter rune
	Header    []string
	// Rows holds data records with their 1-based line numbers in Lines.
	Rows  [][]string
	Lines []int
}

// DelimiterName renders the delimiter for logs and API responses.
func (t *Table) DelimiterName() string {
	switch t.Delimiter {
	case ',':
		return "comma"
	case ';':
		return "semicolon"
	case '\t':
		return "tab"
	}
	return string(t.Delimiter)
}

// Detect decodes raw bytes into a table, trying encodings and delimiters in
// priority order. The first combination that decodes cleanly and yields a
// header with more than one column wins.
func Detect(data []byte) (*Table, error) {
	if len(bytes.TrimSpace(bytes.TrimPrefix(data, byteOrderMark))) == 0 {
		return nil, &EmptyContentError{Reason: "CSV file is empty"}
	}
	var tried []string
	for _, enc := range Encodings {
		text, ok := decoders[enc](data)
		if !ok {
			tried = append(tried, enc)
			continue
		}
		for _, delim := range Delimiters {
			tried = append(tried, fmt.Sprintf("%s/%q", enc, delim))
			records, lines, err := parseRecords(text, delim)
			if err != nil || len(records) == 0 || len(records[0]) < 2 {
				continue
			}
			table := &Table{
				Encoding:  enc,
				Delimiter: delim,
				Header:    records[0],
				Rows:      records[1:],
				Lines:     lines[1:],
			}
			if len(table.Rows) == 0 {
				return nil, &EmptyContentError{Reason: "CSV file has no data rows (only header)"}
			}
			return table, nil
		}
	}
	return nil, &FormatError{Tried: tried}
}

func decodeUTF8(data []byte) (string, bool) {
	data = bytes.TrimPrefix(data, byteOrderMark)
	if !utf8.Valid(data) {
		return "", false
	}
	text := string(data)
	if strings.ContainsRune(text, utf8.RuneError) {
		return "", false
	}
	return text, true
}

func decodeCharmap(cm *charmap.Charmap) func([]byte) (string, bool) {
	return func(data []byte) (string, bool) {
		out, err := cm.NewDecoder().Bytes(data)
		if err != nil {
			return "", false
		}
		text := string(out)
		if strings.ContainsRune(text, utf8.RuneError) {
			return "", false
		}
		return text, true
	}
}

// parseRecords reads every record, dropping rows whose cells are all blank.
func parseRecords(text string, delim rune) ([][]string, []int, error) {
	reader := csv.NewReader(strings.NewReader(text))
	reader.Comma = delim
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	var (
		records [][]string
		lines   []int
	)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		if blank(record) {
			continue
		}
		line, _ := reader.FieldPos(0)
		records = append(records, record)
		lines = append(lines, line)
	}
	return records, lines, nil
}

func blank(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
