// Package csv decodes the delimited reporting payload into an in-memory Table.
package csv

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Table is the parsed payload: named columns in source order plus rows aligned
// to the columns by position.
//
// Invariant: every row has exactly len(Columns) values. A value is either a
// string or nil; nil marks a field that was absent or empty in the payload and
// must become a SQL NULL downstream, never the literal text "nan" or "None".
type Table struct {
	// Columns holds header names verbatim (after BOM/edge-space cleanup).
	// Sanitization into storage names happens in the load stage, which keeps
	// the display name distinct from the storage name.
	Columns []string
	Rows    [][]any
}

// Empty reports whether the table holds no data rows. A header-only payload
// parses successfully and is Empty; callers treat it as "nothing to do".
func (t *Table) Empty() bool {
	return t == nil || len(t.Rows) == 0
}

// Parse decodes a delimited payload.
//
// Behavior:
//   - Empty or whitespace-only input yields an empty Table and no error.
//   - The first record is the header and defines column count and order.
//   - Data rows shorter than the header are padded with nil; longer rows are
//     truncated. encoding/csv quoting rules apply for embedded delimiters and
//     newlines.
//   - Empty fields become nil, matching how absent values are stored. Any
//     other value is kept verbatim; whitespace, interior or edge, is data.
//
// Errors:
//   - Malformed quoting or a reader failure is a parse error; the line number
//     reported by encoding/csv is preserved in the wrapped error.
func Parse(r io.Reader) (*Table, error) {
	// The reporting API serves UTF-8, sometimes with a BOM. BOMOverride keeps
	// the header name of the first column clean without byte fiddling here.
	cr := csv.NewReader(transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder())))
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	hdr, err := cr.Read()
	if err == io.EOF {
		return &Table{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if headerIsBlank(hdr) {
		return &Table{}, nil
	}

	columns := make([]string, len(hdr))
	for i, h := range hdr {
		columns[i] = strings.TrimSpace(h)
	}

	var rows [][]any
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv read: %w", err)
		}

		row := make([]any, len(columns))
		for i := range columns {
			if i >= len(rec) {
				row[i] = nil
				continue
			}
			// Values are preserved verbatim, whitespace included. Only the
			// truly empty field collapses to nil.
			if rec[i] == "" {
				row[i] = nil
			} else {
				row[i] = rec[i]
			}
		}
		rows = append(rows, row)
	}

	return &Table{Columns: columns, Rows: rows}, nil
}

// ParseString is a convenience wrapper over Parse for in-memory payloads.
func ParseString(raw string) (*Table, error) {
	return Parse(strings.NewReader(raw))
}

// headerIsBlank reports whether a record carries no usable column names.
// A payload of just whitespace decodes to one record with one empty field.
func headerIsBlank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
