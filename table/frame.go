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
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/ipca/db"
)

// Frame is a raw two-column table of (period, value) strings, before any type
// coercion.
type Frame struct {
	Header  []string // column names: period column first, value column second
	Periods []string
	Values  []string
}

// DefaultColumns are the column names used when none are given to NewFrame or
// Build.
func DefaultColumns() []string {
	return []string{db.ColumnMonth, db.ColumnValue}
}

func checkColumns(columns []string) error {
	if len(columns) != 2 {
		return errors.Reason("expected 2 column names, got %d", len(columns))
	}
	for i, c := range columns {
		if c == "" {
			return errors.Reason("column %d has no name", i)
		}
	}
	if columns[0] == columns[1] {
		return errors.Reason("duplicate column name '%s'", columns[0])
	}
	return nil
}

// NewFrame lays out the records as two columns, in the records' order. When no
// column names are given, DefaultColumns are used.
func NewFrame(records []db.Record, columns ...string) (*Frame, error) {
	if len(columns) == 0 {
		columns = DefaultColumns()
	}
	if err := checkColumns(columns); err != nil {
		return nil, errors.Annotate(err, "invalid columns")
	}
	f := &Frame{
		Header:  append([]string(nil), columns...),
		Periods: make([]string, len(records)),
		Values:  make([]string, len(records)),
	}
	for i, r := range records {
		f.Periods[i] = r.Period
		f.Values[i] = r.Value
	}
	return f, nil
}

// Len is the number of rows in the frame.
func (f *Frame) Len() int { return len(f.Periods) }

// ParseMonth parses a YYYYMM period into the first day of that month. Anything
// else, including surrounding spaces and year 0000, yields the null (zero)
// Date.
func ParseMonth(s string) db.Date {
	t, err := time.Parse("200601", s)
	if err != nil || t.Year() < 1 {
		return db.Date{}
	}
	return db.NewDateFromTime(t)
}

// CoerceMonths parses all periods with ParseMonth. It never fails.
func CoerceMonths(periods []string) []db.Date {
	res := make([]db.Date, len(periods))
	for i, p := range periods {
		res[i] = ParseMonth(p)
	}
	return res
}

// ParseValue parses a decimal number, ignoring surrounding spaces.
func ParseValue(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, errors.Annotate(err, "not a number: '%s'", s)
	}
	return v, nil
}

// CoerceValues parses all values with ParseValue, failing on the first one
// that is not a number.
func CoerceValues(values []string) ([]float64, error) {
	res := make([]float64, len(values))
	for i, s := range values {
		v, err := ParseValue(s)
		if err != nil {
			return nil, errors.Annotate(err, "row %d", i)
		}
		res[i] = v
	}
	return res, nil
}

// Dataset is the typed two-column table ready to be loaded into a sink.
type Dataset struct {
	Header []string
	Rows   []db.SeriesRow
}

// Coerce the frame into a Dataset: periods leniently into months (null on
// failure), values strictly into floats.
func (f *Frame) Coerce() (*Dataset, error) {
	if len(f.Periods) != len(f.Values) {
		return nil, errors.Reason("len(Periods) = %d != len(Values) = %d",
			len(f.Periods), len(f.Values))
	}
	months := CoerceMonths(f.Periods)
	values, err := CoerceValues(f.Values)
	if err != nil {
		return nil, errors.Annotate(err, "failed to coerce column '%s'", f.Header[1])
	}
	ds := &Dataset{
		Header: append([]string(nil), f.Header...),
		Rows:   make([]db.SeriesRow, len(months)),
	}
	for i := range months {
		ds.Rows[i] = db.SeriesRow{Month: months[i], Value: values[i]}
	}
	return ds, nil
}

// Build constructs and coerces a Dataset from flat records.
func Build(records []db.Record, columns ...string) (*Dataset, error) {
	f, err := NewFrame(records, columns...)
	if err != nil {
		return nil, errors.Annotate(err, "failed to construct the table")
	}
	ds, err := f.Coerce()
	if err != nil {
		return nil, errors.Annotate(err, "failed to construct the table")
	}
	return ds, nil
}

// Len is the number of rows.
func (d *Dataset) Len() int { return len(d.Rows) }

// NullMonths counts the rows whose period failed to parse.
func (d *Dataset) NullMonths() int {
	n := 0
	for _, r := range d.Rows {
		if r.Month.IsZero() {
			n++
		}
	}
	return n
}

// Months column.
func (d *Dataset) Months() []db.Date {
	res := make([]db.Date, len(d.Rows))
	for i, r := range d.Rows {
		res[i] = r.Month
	}
	return res
}

// Values column.
func (d *Dataset) Values() []float64 {
	res := make([]float64, len(d.Rows))
	for i, r := range d.Rows {
		res[i] = r.Value
	}
	return res
}

// CheckSchema verifies that the schema is valid and describes the dataset:
// the same column names in the same order, with a DATE column followed by a
// FLOAT column.
func (d *Dataset) CheckSchema(s db.Schema) error {
	if err := s.Check(); err != nil {
		return errors.Annotate(err, "invalid schema")
	}
	if ds := d.Schema(); !ds.Equal(s) {
		return errors.Reason("dataset %s does not match schema %s", ds, s)
	}
	return nil
}

// Schema of the dataset: the month column is a DATE and the value column is a
// FLOAT, in this order. It is nil for a malformed Header.
func (d *Dataset) Schema() db.Schema {
	if len(d.Header) != 2 {
		return nil
	}
	return db.Schema{
		{Name: d.Header[0], Type: db.TypeDate},
		{Name: d.Header[1], Type: db.TypeFloat},
	}
}

// Write the dataset in the given format.
func (d *Dataset) Write(w io.Writer, f Format, p Params) error {
	if f == FormatJSON {
		return d.WriteJSON(w)
	}
	return d.Table().Write(w, f, p)
}

// WriteJSON writes the dataset as an array of records keyed by the column
// names, one record per line. A null month is written as null.
func (d *Dataset) WriteJSON(w io.Writer) error {
	if len(d.Header) != 2 {
		return errors.Reason("dataset must have 2 columns, got %v", d.Header)
	}
	var keys [2][]byte
	for i, h := range d.Header {
		k, err := json.Marshal(h)
		if err != nil {
			return errors.Annotate(err, "failed to encode column name '%s'", h)
		}
		keys[i] = k
	}
	var buf bytes.Buffer
	buf.WriteString("[")
	for i, r := range d.Rows {
		month, err := json.Marshal(r.Month)
		if err != nil {
			return errors.Annotate(err, "row %d: failed to encode %s", i, d.Header[0])
		}
		value, err := json.Marshal(r.Value)
		if err != nil {
			return errors.Annotate(err, "row %d: failed to encode %s", i, d.Header[1])
		}
		if i > 0 {
			buf.WriteString(",")
		}
		fmt.Fprintf(&buf, "\n{%s:%s,%s:%s}", keys[0], month, keys[1], value)
	}
	buf.WriteString("\n]\n")
	if _, err := w.Write(buf.Bytes()); err != nil {
		return errors.Annotate(err, "failed to write JSON")
	}
	return nil
}

// Table representation of the dataset for printing.
func (d *Dataset) Table() *Table {
	t := NewTable(d.Header...)
	for _, r := range d.Rows {
		t.AddRow(r)
	}
	return t
}
