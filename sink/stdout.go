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
	"io"

	"github.com/stockparfait/errors"

	"github.com/stockparfait/ipca/db"
	"github.com/stockparfait/ipca/table"
)

// Stdout prints the dataset to a writer, normally os.Stdout.
type Stdout struct {
	w      io.Writer
	format table.Format
}

var _ Sink = &Stdout{}

// NewStdout creates a sink printing the dataset to w in the given format.
func NewStdout(w io.Writer, format table.Format) *Stdout {
	return &Stdout{w: w, format: format}
}

// Load implements Sink.
func (s *Stdout) Load(ctx context.Context, schema db.Schema, ds *table.Dataset) error {
	if _, err := begin(ctx, KindStdout, schema, ds); err != nil {
		return err
	}
	p := table.Params{Index: true, Summary: true}
	if err := ds.Write(s.w, s.format, p); err != nil {
		return errors.Annotate(err, "failed to print the dataset")
	}
	return nil
}
