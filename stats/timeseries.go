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

package stats

import (
	"sort"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/ipca/db"
	"github.com/stockparfait/ipca/table"
	"github.com/stockparfait/iterator"
)

// Timeseries stores numeric values along with dates. The dates are always
// sorted in ascending order.
type Timeseries struct {
	dates []db.Date
	data  []float64
}

// NewTimeseries creates a new Timeseries. The dates are expected to be sorted
// in ascending order (not checked). It panics if dates and data have different
// lengths. Note, that the argument slices are used as is, not copied.
func NewTimeseries(dates []db.Date, data []float64) *Timeseries {
	if len(dates) != len(data) {
		panic(errors.Reason("len(dates) [%d] != len(data) [%d]",
			len(dates), len(data)))
	}
	return &Timeseries{dates: dates, data: data}
}

// NewTimeseriesFromDataset extracts the series from the dataset. Rows with a
// null month are dropped, the rest are sorted by month. It is an error for a
// month to appear more than once.
func NewTimeseriesFromDataset(ds *table.Dataset) (*Timeseries, error) {
	rows := iterator.Reduce[db.SeriesRow, []db.SeriesRow](
		iterator.FromSlice(ds.Rows), []db.SeriesRow{},
		func(r db.SeriesRow, acc []db.SeriesRow) []db.SeriesRow {
			if r.Month.IsZero() {
				return acc
			}
			return append(acc, r)
		})
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Month.Before(rows[j].Month) })

	dates := make([]db.Date, len(rows))
	data := make([]float64, len(rows))
	for i, r := range rows {
		dates[i] = r.Month
		data[i] = r.Value
	}
	ts := NewTimeseries(dates, data)
	if err := ts.Check(); err != nil {
		return nil, errors.Annotate(err, "invalid series")
	}
	return ts, nil
}

// Dates of the Timeseries.
func (t *Timeseries) Dates() []db.Date { return t.dates }

// Data of the Timeseries.
func (t *Timeseries) Data() []float64 { return t.data }

// Len is the number of points in the Timeseries.
func (t *Timeseries) Len() int { return len(t.dates) }

// Check that Timeseries is consistent: the lengths of dates and data are the
// same and the dates are strictly ascending.
func (t *Timeseries) Check() error {
	if len(t.dates) != len(t.data) {
		return errors.Reason("len(dates) [%d] != len(data) [%d]",
			len(t.dates), len(t.data))
	}
	for i := 1; i < len(t.dates); i++ {
		if !t.dates[i-1].Before(t.dates[i]) {
			return errors.Reason("dates[%d] = %s >= dates[%d] = %s",
				i-1, t.dates[i-1], i, t.dates[i])
		}
	}
	return nil
}

// rangeSlice returns slice indices for dates to extract an inclusive interval
// between start and end dates.
func rangeSlice(dates []db.Date, start, end db.Date) (s, e int) {
	if start.After(end) {
		return 0, 0
	}
	s = sort.Search(len(dates), func(i int) bool { return !dates[i].Before(start) })
	e = sort.Search(len(dates), func(i int) bool { return dates[i].After(end) })
	if s >= e {
		return 0, 0
	}
	return
}

// Range extracts the sub-series from the inclusive date interval. It may
// return an empty Timeseries, but never nil.
func (t *Timeseries) Range(start, end db.Date) *Timeseries {
	s, e := rangeSlice(t.dates, start, end)
	if s == 0 && e == len(t.dates) {
		return t
	}
	return NewTimeseries(t.dates[s:e], t.data[s:e])
}

// Shift the timeseries in time by the number of points. A positive shift
// moves the values into the future, negative - into the past. The values
// outside of the date range are dropped. It may return an empty Timeseries,
// but never nil.
func (t *Timeseries) Shift(shift int) *Timeseries {
	if shift == 0 {
		return t
	}
	absShift := shift
	if absShift < 0 {
		absShift = -shift
	}
	l := len(t.dates)
	if absShift >= l {
		return NewTimeseries(nil, nil)
	}
	if shift > 0 {
		return NewTimeseries(t.dates[shift:], t.data[:l-shift])
	}
	return NewTimeseries(t.dates[:l+shift], t.data[-shift:])
}

// Compound accumulates the percentage variations of the whole series:
// (prod(1 + x/100) - 1) * 100. An empty series compounds to 0.
func (t *Timeseries) Compound() float64 {
	return compound(t.data)
}

func compound(xs []float64) float64 {
	p := 1.0
	for _, x := range xs {
		p *= 1 + x/100
	}
	return (p - 1) * 100
}

// Accumulate returns the running compounded variation: the value at each date
// is Compound() of the series up to and including that date.
func (t *Timeseries) Accumulate() *Timeseries {
	data := make([]float64, len(t.data))
	p := 1.0
	for i, x := range t.data {
		p *= 1 + x/100
		data[i] = (p - 1) * 100
	}
	return NewTimeseries(t.dates, data)
}

// Rolling returns the compounded variation over each window of n consecutive
// points, dated by the last point of the window. For monthly variations and
// n=12 this is the 12-month accumulated rate. It panics if n < 1.
func (t *Timeseries) Rolling(n int) *Timeseries {
	if n < 1 {
		panic(errors.Reason("n=%d must be >= 1", n))
	}
	if n > len(t.data) {
		return NewTimeseries(nil, nil)
	}
	data := make([]float64, 0, len(t.data)-n+1)
	for i := n; i <= len(t.data); i++ {
		data = append(data, compound(t.data[i-n:i]))
	}
	return NewTimeseries(t.dates[n-1:], data)
}
