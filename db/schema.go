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

package db

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/stockparfait/errors"
	"golang.org/x/exp/slices"
)

// Column names of the loaded series table, in their fixed order.
const (
	ColumnMonth = "ano_mes"
	ColumnValue = "valor"
)

// lessLex is a lexicographic ordering on the slices of int.
func lessLex(x, y []int) bool {
	l := len(x)
	if len(y) < l {
		l = len(y)
	}
	for i := 0; i < l; i++ {
		if x[i] < y[i] {
			return true
		}
		if x[i] > y[i] {
			return false
		}
	}
	return len(x) < len(y)
}

func parseTime(s string) (time.Time, error) {
	if s == "0000-00-00" || s == "0000-00-00T00:00:00.000" {
		return time.Time{}, nil
	}
	formats := []string{
		"2006-01-02 15:04:05.999",
		"2006-01-02T15:04:05.999",
		"2006-01-02T15:04:05.999Z",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02",
		"02/01/2006 15:04:05",
		"02/01/2006",
	}
	var err error
	for _, f := range formats {
		var tm time.Time
		if tm, err = time.Parse(f, s); err == nil {
			return tm, nil
		}
	}
	return time.Time{}, err
}

// Date records a calendar date as year, month and day. The zero value is used
// as the null (missing) date.
type Date struct {
	YearVal  uint16
	MonthVal uint8
	DayVal   uint8
}

var _ json.Marshaler = Date{}

// NewDate is the constructor for Date.
func NewDate(year uint16, month, day uint8) Date {
	return Date{year, month, day}
}

// NewDateFromTime creates a Date instance from a time.Time value in UTC.
func NewDateFromTime(t time.Time) Date {
	return Date{
		YearVal:  uint16(t.Year()),
		MonthVal: uint8(t.Month()),
		DayVal:   uint8(t.Day()),
	}
}

func (d Date) Year() uint16 { return d.YearVal }
func (d Date) Month() uint8 { return d.MonthVal }
func (d Date) Day() uint8   { return d.DayVal }

// String representation of the value. The null date is an empty string.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return fmt.Sprintf("%04d-%02d-%02d", d.Year(), d.Month(), d.Day())
}

// YearMonth is the compact YYYYMM representation used by the IBGE API.
func (d Date) YearMonth() string {
	return fmt.Sprintf("%04d%02d", d.Year(), d.Month())
}

// MarshalJSON implements json.Marshaler. The null date is marshaled as null.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

// ToTime converts Date to Time in UTC.
func (d Date) ToTime() time.Time {
	return time.Date(int(d.Year()), time.Month(d.Month()), int(d.Day()), 0, 0, 0, 0, time.UTC)
}

// MonthStart returns the 1st of the month of the current date.
func (d Date) MonthStart() Date {
	return NewDate(d.Year(), d.Month(), 1)
}

// NextMonth returns the 1st of the following month.
func (d Date) NextMonth() Date {
	if d.Month() >= 12 {
		return NewDate(d.Year()+1, 1, 1)
	}
	return NewDate(d.Year(), d.Month()+1, 1)
}

// Before compares two Date objects for strict inequality (self < d2).
func (d Date) Before(d2 Date) bool {
	return lessLex([]int{int(d.Year()), int(d.Month()), int(d.Day())},
		[]int{int(d2.Year()), int(d2.Month()), int(d2.Day())})
}

// After compares two Date objects for strict inequality, self > d2.
func (d Date) After(d2 Date) bool {
	return d2.Before(d)
}

// IsZero checks whether the date has a zero value.
func (d Date) IsZero() bool {
	return d.Year() == 0 && d.Month() == 0 && d.Day() == 0
}

// MinDate returns the earliest date from the list, or zero value.
func MinDate(dates ...Date) Date {
	var min Date
	for _, d := range dates {
		if min.IsZero() || (!d.IsZero() && min.After(d)) {
			min = d
		}
	}
	return min
}

// MaxDate returns the latest date from the list, or zero value.
func MaxDate(dates ...Date) Date {
	var max Date
	for _, d := range dates {
		if max.IsZero() || (!d.IsZero() && max.Before(d)) {
			max = d
		}
	}
	return max
}

// SeriesRow is a single coerced row of the series table. A zero Month means the
// period could not be parsed.
type SeriesRow struct {
	Month Date
	Value float64
}

// CSV implements table.Row.
func (r SeriesRow) CSV() []string {
	return []string{r.Month.String(), strconv.FormatFloat(r.Value, 'f', -1, 64)}
}

// FieldType is a warehouse column type tag.
type FieldType string

// Supported values of FieldType.
const (
	TypeDate  = FieldType("DATE")
	TypeFloat = FieldType("FLOAT")
)

// Field is the schema definition for a single column.
type Field struct {
	Name string    `json:"name" toml:"name"`
	Type FieldType `json:"type" toml:"type"`
}

// Schema is the ordered list of columns passed to a sink along with the data.
type Schema []Field

// DefaultSchema is the schema of the series table: ano_mes DATE, valor FLOAT.
func DefaultSchema() Schema {
	return Schema{
		{Name: ColumnMonth, Type: TypeDate},
		{Name: ColumnValue, Type: TypeFloat},
	}
}

// Names of the columns in the schema order.
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, f := range s {
		names[i] = f.Name
	}
	return names
}

// Equal tests two schemas for exact equality, including the field ordering.
func (s Schema) Equal(s2 Schema) bool {
	return slices.Equal(s, s2)
}

// Check that all the names are non-empty and distinct, and the types are known.
func (s Schema) Check() error {
	if len(s) == 0 {
		return errors.Reason("schema is empty")
	}
	for i, f := range s {
		if f.Name == "" {
			return errors.Reason("field %d has no name", i)
		}
		if j := slices.IndexFunc(s[:i], func(g Field) bool { return g.Name == f.Name }); j >= 0 {
			return errors.Reason("duplicate field '%s' at %d and %d", f.Name, j, i)
		}
		switch f.Type {
		case TypeDate, TypeFloat:
		default:
			return errors.Reason("field '%s' has unsupported type '%s'", f.Name, f.Type)
		}
	}
	return nil
}

// String prints a string representation of the schema.
func (s Schema) String() string {
	fields := []string{}
	for _, f := range s {
		fields = append(fields, fmt.Sprintf("%s: %s", f.Name, f.Type))
	}
	return "{" + strings.Join(fields, ", ") + "}"
}

// Time is a wrapper around time.Time with JSON methods.
type Time time.Time

var _ json.Unmarshaler = &Time{}

func NewTime(year, month, day, hour, minute, second int) *Time {
	t := time.Date(year, time.Month(month), day, hour, minute, second, 0, time.UTC)
	return (*Time)(&t)
}

// String representation of Time.
func (t *Time) String() string {
	return time.Time(*t).Format("2006-01-02 15:04:05")
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Time) UnmarshalJSON(data []byte) error {
	var s string
	var err error
	if err = json.Unmarshal(data, &s); err != nil {
		return errors.Annotate(err, "Time JSON must be a string")
	}
	tm, err := parseTime(s)
	if err != nil {
		return errors.Annotate(err, "failed to parse time string: '%s'", s)
	}
	*t = Time(tm)
	return nil
}

// Record is a single (period, value) pair extracted from the nested API series
// data, before any type coercion.
type Record struct {
	Period string // YYYYMM
	Value  string // decimal number
}

// CSV implements table.Row.
func (r Record) CSV() []string {
	return []string{r.Period, r.Value}
}
