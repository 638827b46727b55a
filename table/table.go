// Copyright 2022 Stock Parfait

// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at

//     http://www.apache.org/licenses/LICENSE-2.0

// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package table

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/stockparfait/errors"
)

// Row interface that a table row representation must implement.
type Row interface {
	CSV() []string // an encoding/csv compatible row representation
}

// Table container for printing.
//
// A typical use:
//   t := NewTable("ano_mes", "valor")
//   t.AddRow(db.SeriesRow{Month: db.NewDate(2012, 1, 1), Value: 0.56})
//   t.WriteText(os.Stdout, Params{Index: true})
type Table struct {
	Header []string // optional, may be nil
	Rows   []Row
}

// NewTable creates a new Table instance with optional column headers. It is
// expected that, when present, the number of column headers is the same as the
// number of elements in each Row.
func NewTable(header ...string) *Table {
	return &Table{Header: header}
}

// AddRow adds one or more rows to the table.
func (t *Table) AddRow(rows ...Row) {
	t.Rows = append(t.Rows, rows...)
}

// Format of the printed table.
type Format string

const (
	FormatText Format = "text"
	FormatCSV  Format = "csv"
	FormatJSON Format = "json" // Dataset only
)

// Check that the format is known. Empty format means FormatText.
func (f Format) Check() error {
	switch f {
	case "", FormatText, FormatCSV, FormatJSON:
		return nil
	}
	return errors.Reason("unknown table format '%s'", f)
}

// Params are parameters for pretty-printing or CSV export of Table data.
type Params struct {
	Rows        int  // max. number of rows to write; 0 = unlimited (default)
	NoHeader    bool // whether to print the header, default - yes
	MaxColWidth int  // for WriteText only; 0 = unlimited, otherwise must be >= 4
	Index       bool // for WriteText only: prefix each row with its 0-based index
	Summary     bool // for WriteText only: end with "[R rows x C columns]"
}

// Write the table in the given format.
func (t *Table) Write(w io.Writer, f Format, p Params) error {
	switch f {
	case "", FormatText:
		return t.WriteText(w, p)
	case FormatCSV:
		return t.WriteCSV(w, p)
	case FormatJSON:
		return errors.Reason("%s format is only supported for a Dataset", f)
	}
	return errors.Reason("unknown table format '%s'", f)
}

// WriteCSV writes the entire table to w in CSV format.
func (t *Table) WriteCSV(w io.Writer, p Params) error {
	cw := csv.NewWriter(w)
	if !p.NoHeader && len(t.Header) > 0 {
		if err := cw.Write(t.Header); err != nil {
			return errors.Annotate(err, "failed to write header")
		}
	}
	for i, r := range t.Rows {
		if p.Rows > 0 && i >= p.Rows {
			break
		}
		if err := cw.Write(r.CSV()); err != nil {
			return errors.Annotate(err, "failed to write row %d", i)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return errors.Annotate(err, "failed to flush written rows")
	}
	return nil
}

// textWriter accumulates column widths and writes aligned rows.
type textWriter struct {
	w           io.Writer
	widths      []int
	maxColWidth int
}

func (tw *textWriter) update(row []string) error {
	if len(row) == 0 {
		return errors.Reason("row size = 0")
	}
	if len(tw.widths) == 0 {
		tw.widths = make([]int, len(row))
	}
	if len(row) != len(tw.widths) {
		return errors.Reason("row size [%d] != expected size [%d]",
			len(row), len(tw.widths))
	}
	for i, s := range row {
		n := utf8.RuneCountInString(s)
		if tw.maxColWidth > 0 && n > tw.maxColWidth {
			n = tw.maxColWidth
		}
		if tw.widths[i] < n {
			tw.widths[i] = n
		}
	}
	return nil
}

func (tw *textWriter) write(row []string) error {
	cells := make([]string, len(row))
	for i, s := range row {
		r := []rune(s)
		if len(r) > tw.widths[i] {
			r = append(r[:tw.widths[i]-2], '.', '.')
		}
		cells[i] = strings.Repeat(" ", tw.widths[i]-len(r)) + string(r)
	}
	_, err := fmt.Fprintf(tw.w, "%s\n", strings.Join(cells, " | "))
	return err
}

func (tw *textWriter) separator() error {
	row := make([]string, len(tw.widths))
	for i, n := range tw.widths {
		row[i] = strings.Repeat("-", n)
	}
	return tw.write(row)
}

// WriteText writes the table as a text formatted for ease of reading.
func (t *Table) WriteText(w io.Writer, p Params) error {
	if p.MaxColWidth != 0 && p.MaxColWidth < 4 {
		return errors.Reason("MaxColWidth [%d] must be 0 or >= 4", p.MaxColWidth)
	}
	n := len(t.Rows)
	if p.Rows > 0 && p.Rows < n {
		n = p.Rows
	}
	withHeader := !p.NoHeader && len(t.Header) > 0

	rows := make([][]string, 0, n+1)
	if withHeader {
		h := t.Header
		if p.Index {
			h = append([]string{""}, h...)
		}
		rows = append(rows, h)
	}
	for i, r := range t.Rows[:n] {
		row := r.CSV()
		if p.Index {
			row = append([]string{strconv.Itoa(i)}, row...)
		}
		rows = append(rows, row)
	}

	tw := &textWriter{w: w, maxColWidth: p.MaxColWidth}
	for i, row := range rows {
		if err := tw.update(row); err != nil {
			return errors.Annotate(err, "failed to update widths for row %d", i)
		}
	}
	for i, row := range rows {
		if err := tw.write(row); err != nil {
			return errors.Annotate(err, "failed to write row %d", i)
		}
		if i == 0 && withHeader {
			if err := tw.separator(); err != nil {
				return errors.Annotate(err, "failed to write header separator")
			}
		}
	}
	if p.Summary {
		cols := len(t.Header)
		if cols == 0 && len(t.Rows) > 0 {
			cols = len(t.Rows[0].CSV())
		}
		if _, err := fmt.Fprintf(w, "\n[%d rows x %d columns]\n", len(t.Rows), cols); err != nil {
			return errors.Annotate(err, "failed to write summary")
		}
	}
	return nil
}
