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
	"testing"

	"github.com/stockparfait/ipca/db"
	"github.com/stockparfait/ipca/table"
	"github.com/stockparfait/testutil"

	. "github.com/smartystreets/goconvey/convey"
)

func month(y uint16, m uint8) db.Date { return db.NewDate(y, m, 1) }

func TestTimeseries(t *testing.T) {
	t.Parallel()

	dates := func() []db.Date {
		return []db.Date{
			month(2012, 1),
			month(2012, 2),
			month(2012, 3),
			month(2012, 4),
			month(2012, 5),
		}
	}
	data := func() []float64 { return []float64{1.0, 2.0, 3.0, 4.0, 5.0} }

	Convey("Timeseries methods work", t, func() {
		ts := NewTimeseries(dates(), data())

		Convey("Init initializes correctly", func() {
			So(ts.Dates(), ShouldResemble, dates())
			So(ts.Data(), ShouldResemble, data())
			So(ts.Len(), ShouldEqual, 5)
			So(ts.Check(), ShouldBeNil)
		})

		Convey("Mismatched lengths panic", func() {
			So(func() { NewTimeseries(dates(), data()[1:]) }, ShouldPanic)
		})

		Convey("Check catches disorder", func() {
			d := dates()
			d[1], d[2] = d[2], d[1]
			So(NewTimeseries(d, data()).Check(), ShouldNotBeNil)
			d = dates()
			d[2] = d[1]
			So(NewTimeseries(d, data()).Check(), ShouldNotBeNil)
		})

		Convey("Range", func() {
			r := ts.Range(month(2012, 2), month(2012, 4))
			So(r.Dates(), ShouldResemble, dates()[1:4])
			So(r.Data(), ShouldResemble, data()[1:4])

			r = ts.Range(db.NewDate(2012, 1, 15), db.NewDate(2012, 4, 15))
			So(r.Dates(), ShouldResemble, dates()[1:4])

			r = ts.Range(month(2011, 12), month(2012, 6))
			So(r, ShouldResemble, ts)

			r = ts.Range(month(2012, 5), month(2012, 4))
			So(r.Len(), ShouldEqual, 0)

			r = ts.Range(month(2013, 1), month(2013, 4))
			So(r.Len(), ShouldEqual, 0)
		})

		Convey("Shift", func() {
			r := ts.Shift(0)
			So(r, ShouldResemble, ts)

			r = ts.Shift(2)
			So(r.Dates(), ShouldResemble, dates()[2:])
			So(r.Data(), ShouldResemble, data()[:3])

			r = ts.Shift(-2)
			So(r.Dates(), ShouldResemble, dates()[:3])
			So(r.Data(), ShouldResemble, data()[2:])

			So(ts.Shift(5).Len(), ShouldEqual, 0)
			So(ts.Shift(-7).Len(), ShouldEqual, 0)
		})

		Convey("Compound", func() {
			ts := NewTimeseries(dates()[:2], []float64{10, 10})
			So(testutil.Round(ts.Compound(), 5), ShouldEqual, 21.0)
			So(NewTimeseries(nil, nil).Compound(), ShouldEqual, 0.0)

			acc := NewTimeseries(dates()[:3], []float64{10, 10, -50}).Accumulate()
			So(acc.Dates(), ShouldResemble, dates()[:3])
			So(testutil.RoundSlice(acc.Data(), 5), ShouldResemble, []float64{10, 21, -39.5})
		})

		Convey("Rolling", func() {
			r := ts.Rolling(2)
			So(r.Dates(), ShouldResemble, dates()[1:])
			So(testutil.RoundSlice(r.Data(), 5), ShouldResemble, testutil.RoundSlice([]float64{
				(1.01*1.02 - 1) * 100,
				(1.02*1.03 - 1) * 100,
				(1.03*1.04 - 1) * 100,
				(1.04*1.05 - 1) * 100,
			}, 5))
			So(ts.Rolling(6).Len(), ShouldEqual, 0)
			So(ts.Rolling(5).Len(), ShouldEqual, 1)
			So(func() { ts.Rolling(0) }, ShouldPanic)
		})
	})

	Convey("NewTimeseriesFromDataset", t, func() {
		ds := &table.Dataset{
			Header: []string{db.ColumnMonth, db.ColumnValue},
			Rows: []db.SeriesRow{
				{Month: month(2012, 2), Value: 0.45},
				{Value: 99},
				{Month: month(2012, 1), Value: 0.56},
				{Month: month(2012, 3), Value: 0.21},
			},
		}

		Convey("drops null months and sorts", func() {
			ts, err := NewTimeseriesFromDataset(ds)
			So(err, ShouldBeNil)
			So(ts.Dates(), ShouldResemble, []db.Date{month(2012, 1), month(2012, 2), month(2012, 3)})
			So(ts.Data(), ShouldResemble, []float64{0.56, 0.45, 0.21})
			So(len(ds.Rows), ShouldEqual, 4) // the dataset is intact
		})

		Convey("rejects duplicate months", func() {
			ds.Rows = append(ds.Rows, db.SeriesRow{Month: month(2012, 1), Value: 1})
			_, err := NewTimeseriesFromDataset(ds)
			So(err, ShouldNotBeNil)
		})

		Convey("empty dataset", func() {
			ts, err := NewTimeseriesFromDataset(&table.Dataset{})
			So(err, ShouldBeNil)
			So(ts.Len(), ShouldEqual, 0)
		})
	})
}
