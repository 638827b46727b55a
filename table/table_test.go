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
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

type testRow struct {
	Month string
	Value string
}

func (r testRow) CSV() []string { return []string{r.Month, r.Value} }

func TestTable(t *testing.T) {
	t.Parallel()

	Convey("Table methods work", t, func() {
		t := NewTable("ano_mes", "valor")
		headless := NewTable()

		So(t.Header, ShouldResemble, []string{"ano_mes", "valor"})
		t.AddRow(testRow{"2012-01-01", "0.56"}, testRow{"2012-02-01", "0.45"})
		headless.AddRow(testRow{"2012-01-01", "0.56"}, testRow{"2012-02-01", "0.45"})

		Convey("AddRow worked", func() {
			So(len(t.Rows), ShouldEqual, 2)
			So(len(headless.Rows), ShouldEqual, 2)
		})

		Convey("WriteCSV", func() {
			Convey("Default Params", func() {
				var buf bytes.Buffer
				So(t.WriteCSV(&buf, Params{}), ShouldBeNil)
				So("\n"+buf.String(), ShouldEqual, `
ano_mes,valor
2012-01-01,0.56
2012-02-01,0.45
`)
			})

			Convey("Default Params, headless", func() {
				var buf bytes.Buffer
				So(headless.WriteCSV(&buf, Params{}), ShouldBeNil)
				So("\n"+buf.String(), ShouldEqual, `
2012-01-01,0.56
2012-02-01,0.45
`)
			})

			Convey("Limited rows, no header", func() {
				var buf bytes.Buffer
				So(t.Write(&buf, FormatCSV, Params{Rows: 1, NoHeader: true}), ShouldBeNil)
				So("\n"+buf.String(), ShouldEqual, `
2012-01-01,0.56
`)
			})
		})

		Convey("WriteText", func() {
			Convey("Default Params", func() {
				var buf bytes.Buffer
				So(t.WriteText(&buf, Params{}), ShouldBeNil)
				So("\n"+buf.String(), ShouldEqual, `
   ano_mes | valor
---------- | -----
2012-01-01 |  0.56
2012-02-01 |  0.45
`)
			})

			Convey("Default Params, headless", func() {
				var buf bytes.Buffer
				So(headless.Write(&buf, FormatText, Params{}), ShouldBeNil)
				So("\n"+buf.String(), ShouldEqual, `
2012-01-01 | 0.56
2012-02-01 | 0.45
`)
			})

			Convey("Limited rows and width, no header", func() {
				var buf bytes.Buffer
				So(t.WriteText(&buf, Params{Rows: 1, NoHeader: true, MaxColWidth: 4}), ShouldBeNil)
				So("\n"+buf.String(), ShouldResemble, `
20.. | 0.56
`)
			})

			Convey("Index and summary", func() {
				var buf bytes.Buffer
				So(t.WriteText(&buf, Params{Index: true, Summary: true}), ShouldBeNil)
				So("\n"+buf.String(), ShouldEqual, `
  |    ano_mes | valor
- | ---------- | -----
0 | 2012-01-01 |  0.56
1 | 2012-02-01 |  0.45

[2 rows x 2 columns]
`)
			})

			Convey("Multibyte text is aligned by characters", func() {
				tt := NewTable("nível", "n")
				tt.AddRow(testRow{"Brasil", "1"})
				var buf bytes.Buffer
				So(tt.WriteText(&buf, Params{}), ShouldBeNil)
				So("\n"+buf.String(), ShouldEqual, `
 nível | n
------ | -
Brasil | 1
`)
			})

			Convey("Bad params", func() {
				var buf bytes.Buffer
				So(t.WriteText(&buf, Params{MaxColWidth: 3}), ShouldNotBeNil)
				So(t.Write(&buf, Format("xml"), Params{}), ShouldNotBeNil)
				So(Format("xml").Check(), ShouldNotBeNil)
				So(Format("").Check(), ShouldBeNil)
				So(FormatCSV.Check(), ShouldBeNil)
			})
		})
	})
}
