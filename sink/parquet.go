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

package sink

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/logging"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/stockparfait/ipca/db"
	"github.com/stockparfait/ipca/table"
)

// parquetSchema converts the load schema into parquet-go schema tags. DATE is
// stored as INT32 days since the Unix epoch, FLOAT as DOUBLE. All the columns
// are optional.
func parquetSchema(s db.Schema) ([]string, error) {
	md := make([]string, len(s))
	for i, f := range s {
		switch f.Type {
		case db.TypeDate:
			md[i] = fmt.Sprintf("name=%s, type=INT32, convertedtype=DATE, repetitiontype=OPTIONAL", f.Name)
		case db.TypeFloat:
			md[i] = fmt.Sprintf("name=%s, type=DOUBLE, repetitiontype=OPTIONAL", f.Name)
		default:
			return nil, errors.Reason("unsupported type '%s' for field '%s'", f.Type, f.Name)
		}
	}
	return md, nil
}

// epochDays is the parquet DATE value of d: the number of days since
// 1970-01-01, or nil for a null date.
func epochDays(d db.Date) any {
	if d.IsZero() {
		return nil
	}
	return int32(d.ToTime().Unix() / (24 * 60 * 60))
}

// writeParquet writes the dataset to w as a Parquet file.
func writeParquet(w io.Writer, schema db.Schema, ds *table.Dataset) error {
	md, err := parquetSchema(schema)
	if err != nil {
		return errors.Annotate(err, "invalid schema")
	}
	pw, err := writer.NewCSVWriterFromWriter(md, w, 1)
	if err != nil {
		return errors.Annotate(err, "failed to create parquet writer")
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY
	for i, r := range ds.Rows {
		if err := pw.Write([]any{epochDays(r.Month), r.Value}); err != nil {
			return errors.Annotate(err, "failed to write row %d", i)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return errors.Annotate(err, "failed to finalize parquet data")
	}
	return nil
}

// ParquetFile writes the dataset into a local Parquet file, replacing it if it
// exists.
type ParquetFile struct {
	path string
}

var _ Sink = &ParquetFile{}

// NewParquetFile creates a Parquet file sink.
func NewParquetFile(path string) *ParquetFile {
	return &ParquetFile{path: path}
}

// Load implements Sink.
func (p *ParquetFile) Load(ctx context.Context, schema db.Schema, ds *table.Dataset) (err error) {
	if _, err = begin(ctx, KindParquet, schema, ds); err != nil {
		return err
	}
	f, err := os.Create(p.path)
	if err != nil {
		return errors.Annotate(err, "failed to create %s", p.path)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = errors.Annotate(cerr, "failed to close %s", p.path)
		}
	}()
	if err = writeParquet(f, schema, ds); err != nil {
		return errors.Annotate(err, "failed to write %s", p.path)
	}
	logging.Infof(ctx, "wrote %d rows to %s", ds.Len(), p.path)
	return nil
}
