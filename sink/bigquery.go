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
	"bytes"
	"context"

	"cloud.google.com/go/bigquery"
	"github.com/stockparfait/errors"
	"github.com/stockparfait/logging"
	"google.golang.org/api/option"

	"github.com/stockparfait/ipca/db"
	"github.com/stockparfait/ipca/table"
)

// BigQuery loads the dataset into a BigQuery table with a load job, appending
// to the table and creating it if necessary.
type BigQuery struct {
	project     string
	table       string // "dataset.table"
	credentials string // optional path to a service account key file
}

var _ Sink = &BigQuery{}

// NewBigQuery creates a BigQuery sink. When credentials is empty, the
// application default credentials are used.
func NewBigQuery(project, table, credentials string) *BigQuery {
	return &BigQuery{project: project, table: table, credentials: credentials}
}

// bigQuerySchema converts the load schema into a BigQuery schema. All the
// fields are nullable.
func bigQuerySchema(s db.Schema) (bigquery.Schema, error) {
	res := make(bigquery.Schema, len(s))
	for i, f := range s {
		var t bigquery.FieldType
		switch f.Type {
		case db.TypeDate:
			t = bigquery.DateFieldType
		case db.TypeFloat:
			t = bigquery.FloatFieldType
		default:
			return nil, errors.Reason("unsupported type '%s' for field '%s'", f.Type, f.Name)
		}
		res[i] = &bigquery.FieldSchema{Name: f.Name, Type: t}
	}
	return res, nil
}

// jobID for a load run. BigQuery job IDs allow letters, digits, dashes and
// underscores.
func jobID(runID string) string {
	return "ipca_load_" + runID
}

// Load implements Sink.
func (b *BigQuery) Load(ctx context.Context, schema db.Schema, ds *table.Dataset) error {
	runID, err := begin(ctx, KindBigQuery, schema, ds)
	if err != nil {
		return err
	}
	dataset, tbl, err := splitBigQueryTable(b.table)
	if err != nil {
		return err
	}
	bqSchema, err := bigQuerySchema(schema)
	if err != nil {
		return errors.Annotate(err, "invalid schema")
	}
	var opts []option.ClientOption
	if b.credentials != "" {
		opts = append(opts, option.WithCredentialsFile(b.credentials))
	}
	client, err := bigquery.NewClient(ctx, b.project, opts...)
	if err != nil {
		return errors.Annotate(err, "failed to create BigQuery client")
	}
	defer client.Close()

	var buf bytes.Buffer
	if err := ds.Table().WriteCSV(&buf, table.Params{NoHeader: true}); err != nil {
		return errors.Annotate(err, "failed to serialize the dataset")
	}
	source := bigquery.NewReaderSource(&buf)
	source.SourceFormat = bigquery.CSV
	source.Schema = bqSchema

	loader := client.Dataset(dataset).Table(tbl).LoaderFrom(source)
	loader.JobID = jobID(runID)
	loader.WriteDisposition = bigquery.WriteAppend
	loader.CreateDisposition = bigquery.CreateIfNeeded

	job, err := loader.Run(ctx)
	if err != nil {
		return errors.Annotate(err, "failed to start load job into %s.%s", b.project, b.table)
	}
	logging.Debugf(ctx, "waiting for BigQuery job %s", job.ID())
	status, err := job.Wait(ctx)
	if err != nil {
		return errors.Annotate(err, "failed waiting for load job %s", job.ID())
	}
	if err := status.Err(); err != nil {
		return errors.Annotate(err, "load job %s failed", job.ID())
	}
	logging.Infof(ctx, "loaded %d rows into %s.%s", ds.Len(), b.project, b.table)
	return nil
}
