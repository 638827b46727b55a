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
	"strconv"

	"github.com/stockparfait/ipca/db"
	"github.com/stockparfait/ipca/table"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary statistics of a series.
type Summary struct {
	Count  int
	Start  db.Date
	End    db.Date
	Min    float64
	Max    float64
	Mean   float64
	StdDev float64 // sample standard deviation; 0 for fewer than 2 points
	Median float64 // lower median for an even number of points
	Change float64 // last value minus the previous one; 0 for fewer than 2 points

	// Only for a series of monthly percentage variations.
	Variation   bool
	Accumulated float64 // compounded variation over the whole series
	Last12      float64 // compounded variation over the last 12 points, if present
}

// Summarize the Timeseries. The compounded statistics are computed only when
// the values are monthly percentage variations, and not index numbers or
// weights. An empty series yields zero statistics.
func Summarize(ts *Timeseries, variation bool) Summary {
	s := Summary{Variation: variation}
	n := ts.Len()
	if n == 0 {
		return s
	}
	data := ts.Data()
	s.Count = n
	s.Start = ts.Dates()[0]
	s.End = ts.Dates()[n-1]
	s.Min = floats.Min(data)
	s.Max = floats.Max(data)
	s.Mean = stat.Mean(data, nil)
	if n > 1 {
		s.StdDev = stat.StdDev(data, nil)
	}
	sorted := make([]float64, n)
	copy(sorted, data)
	sort.Float64s(sorted)
	s.Median = stat.Quantile(0.5, stat.Empirical, sorted, nil)
	if prev := ts.Shift(1); prev.Len() > 0 {
		s.Change = data[n-1] - prev.Data()[prev.Len()-1]
	}
	if variation {
		s.Accumulated = ts.Compound()
		if r := ts.Rolling(12); r.Len() > 0 {
			s.Last12 = r.Data()[r.Len()-1]
		}
	}
	return s
}

type summaryRow struct {
	Name  string
	Value string
}

func (r summaryRow) CSV() []string { return []string{r.Name, r.Value} }

func formatFloat(x float64) string {
	return strconv.FormatFloat(x, 'f', 4, 64)
}

// Table representation of the Summary for printing.
func (s Summary) Table() *table.Table {
	t := table.NewTable("statistic", "value")
	t.AddRow(
		summaryRow{"count", strconv.Itoa(s.Count)},
		summaryRow{"start", s.Start.String()},
		summaryRow{"end", s.End.String()},
		summaryRow{"min", formatFloat(s.Min)},
		summaryRow{"max", formatFloat(s.Max)},
		summaryRow{"mean", formatFloat(s.Mean)},
		summaryRow{"stddev", formatFloat(s.StdDev)},
		summaryRow{"median", formatFloat(s.Median)},
		summaryRow{"change", formatFloat(s.Change)},
	)
	if s.Variation {
		t.AddRow(
			summaryRow{"accumulated", formatFloat(s.Accumulated)},
			summaryRow{"last 12", formatFloat(s.Last12)},
		)
	}
	return t
}

type accumulationRow struct {
	Month       db.Date
	Value       float64
	Accumulated float64
	Last12      *float64
}

func (r accumulationRow) CSV() []string {
	last12 := ""
	if r.Last12 != nil {
		last12 = formatFloat(*r.Last12)
	}
	return []string{r.Month.String(), formatFloat(r.Value),
		formatFloat(r.Accumulated), last12}
}

// AccumulationTable lists a series of monthly percentage variations along with
// the running accumulated variation and the variation over the last 12
// months, which is empty for the first 11 months.
func AccumulationTable(ts *Timeseries) *table.Table {
	acc := ts.Accumulate()
	rolling := ts.Rolling(12)
	t := table.NewTable(db.ColumnMonth, db.ColumnValue, "acumulado", "12 meses")
	for i, d := range ts.Dates() {
		r := accumulationRow{Month: d, Value: ts.Data()[i], Accumulated: acc.Data()[i]}
		if j := i - 11; j >= 0 {
			r.Last12 = &rolling.Data()[j]
		}
		t.AddRow(r)
	}
	return t
}
