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
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestSchema(t *testing.T) {
	t.Parallel()

	Convey("Lexicographic ordering works correctly", t, func() {
		Convey("Shorter list is smaller", func() {
			So(lessLex([]int{1, 2}, []int{1, 2, 0}), ShouldBeTrue)
			So(lessLex([]int{1, 2, 0}, []int{1, 2}), ShouldBeFalse)
		})
		Convey("Equal lists compare as false", func() {
			So(lessLex([]int{1, 2}, []int{1, 2}), ShouldBeFalse)
		})
		Convey("Middle element is less", func() {
			So(lessLex([]int{1, 2, 3}, []int{1, 3, 2}), ShouldBeTrue)
		})
	})

	Convey("Date type", t, func() {
		Convey("prints the null date as empty string", func() {
			So(NewDate(2012, 1, 1).String(), ShouldEqual, "2012-01-01")
			So(Date{}.String(), ShouldEqual, "")
			So(NewDate(2012, 3, 1).YearMonth(), ShouldEqual, "201203")
		})

		Convey("compares the dates correctly", func() {
			So(NewDate(2019, 10, 15).After(NewDate(2018, 11, 25)), ShouldBeTrue)
			So(NewDate(2019, 10, 15).Before(NewDate(2019, 11, 25)), ShouldBeTrue)
			So(NewDate(2019, 10, 15).Before(NewDate(2019, 10, 25)), ShouldBeTrue)
			So(NewDate(2019, 10, 15).After(NewDate(2019, 10, 5)), ShouldBeTrue)
		})

		Convey("MinDate and MaxDate skip null dates", func() {
			So(MaxDate(), ShouldResemble, Date{})
			d1 := NewDate(2018, 10, 15)
			d2 := NewDate(2019, 12, 1)
			d3 := NewDate(2019, 11, 30)
			So(MaxDate(d1, Date{}, d2, d3), ShouldResemble, d2)
			So(MinDate(d2, Date{}, d1, d3), ShouldResemble, d1)
		})

		Convey("month arithmetic", func() {
			So(NewDate(2018, 2, 14).MonthStart(), ShouldResemble, NewDate(2018, 2, 1))
			So(NewDate(2018, 2, 14).NextMonth(), ShouldResemble, NewDate(2018, 3, 1))
			So(NewDate(2018, 12, 14).NextMonth(), ShouldResemble, NewDate(2019, 1, 1))
		})

		Convey("converts to time", func() {
			So(NewDate(2012, 2, 1).ToTime(), ShouldResemble,
				time.Date(2012, 2, 1, 0, 0, 0, 0, time.UTC))
		})

		Convey("marshals null to JSON", func() {
			js, err := json.Marshal([]Date{NewDate(2012, 1, 1), {}})
			So(err, ShouldBeNil)
			So(string(js), ShouldEqual, `["2012-01-01",null]`)
		})
	})

	Convey("SeriesRow prints as CSV", t, func() {
		So(SeriesRow{Month: NewDate(2012, 1, 1), Value: 123.45}.CSV(), ShouldResemble,
			[]string{"2012-01-01", "123.45"})
		So(SeriesRow{Value: 100}.CSV(), ShouldResemble, []string{"", "100"})
	})

	Convey("Schema methods work", t, func() {
		Convey("DefaultSchema", func() {
			s := DefaultSchema()
			So(s.Names(), ShouldResemble, []string{"ano_mes", "valor"})
			So(s.String(), ShouldEqual, "{ano_mes: DATE, valor: FLOAT}")
			So(s.Check(), ShouldBeNil)
		})

		Convey("Equal", func() {
			orig := Schema{{"ano_mes", TypeDate}, {"valor", TypeFloat}}
			diffOrder := Schema{{"valor", TypeFloat}, {"ano_mes", TypeDate}}
			So(orig.Equal(DefaultSchema()), ShouldBeTrue)
			So(orig.Equal(diffOrder), ShouldBeFalse)
			So(orig.Equal(orig[:1]), ShouldBeFalse)
		})

		Convey("Check", func() {
			So(Schema{}.Check(), ShouldNotBeNil)
			So(Schema{{"", TypeDate}}.Check(), ShouldNotBeNil)
			So(Schema{{"a", TypeDate}, {"a", TypeFloat}}.Check(), ShouldNotBeNil)
			So(Schema{{"a", FieldType("STRING")}}.Check(), ShouldNotBeNil)
		})
	})

	Convey("Time parses API timestamps", t, func() {
		var tm Time
		So(json.Unmarshal([]byte(`"2020-04-09T22:51:22.000Z"`), &tm), ShouldBeNil)
		So(&tm, ShouldResemble, NewTime(2020, 4, 9, 22, 51, 22))
		So(tm.String(), ShouldEqual, "2020-04-09 22:51:22")

		So(json.Unmarshal([]byte(`"09/01/2020"`), &tm), ShouldBeNil)
		So(&tm, ShouldResemble, NewTime(2020, 1, 9, 0, 0, 0))

		So(json.Unmarshal([]byte(`"yesterday"`), &tm), ShouldNotBeNil)
		So(json.Unmarshal([]byte(`42`), &tm), ShouldNotBeNil)
	})
}
