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

// Package sink loads the coerced series into an external destination: a data
// warehouse, a database, a file or an object store. A load is a single batch
// which either succeeds or fails; it is never retried.
package sink

import (
	"context"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/stockparfait/errors"
	"github.com/stockparfait/logging"

	"github.com/stockparfait/ipca/db"
	"github.com/stockparfait/ipca/table"
)

// Sink is the destination of a load.
type Sink interface {
	// Load the dataset with the given schema. It blocks until the load
	// completes. The schema must describe the dataset exactly.
	Load(ctx context.Context, schema db.Schema, ds *table.Dataset) error
}

// Kind of the sink.
type Kind string

// Supported sink kinds.
const (
	KindStdout   Kind = "stdout"
	KindBigQuery Kind = "bigquery"
	KindSQLite   Kind = "sqlite"
	KindPostgres Kind = "postgres"
	KindMongo    Kind = "mongo"
	KindParquet  Kind = "parquet"
	KindS3       Kind = "s3"
)

// Object formats for the s3 sink.
const (
	FormatCSV     = "csv"
	FormatJSON    = "json"
	FormatParquet = "parquet"
)

// Config of a sink. Only the fields relevant to the Kind are used.
type Config struct {
	Kind           Kind   `toml:"kind"`             // default: stdout
	Project        string `toml:"project"`          // bigquery
	Table          string `toml:"table"`            // bigquery: "dataset.table"; sqlite, postgres, mongo
	Credentials    string `toml:"credentials"`      // bigquery: service account key; s3: shared credentials file
	DSN            string `toml:"dsn"`              // postgres
	Path           string `toml:"path"`             // sqlite, parquet
	URI            string `toml:"uri"`              // mongo
	Database       string `toml:"database"`         // mongo
	Bucket         string `toml:"bucket"`           // s3
	Region         string `toml:"region"`           // s3
	Endpoint       string `toml:"endpoint"`         // s3, optional
	Prefix         string `toml:"prefix"`           // s3, optional
	ForcePathStyle bool   `toml:"force_path_style"` // s3
	Format         string `toml:"format"`           // stdout: text|csv|json; s3: csv|json|parquet
}

// DefaultTable is the table (collection) name for sinks which do not require
// one explicitly.
const DefaultTable = "ipca"

// Check the config for consistency and set the defaults.
func (c *Config) Check() error {
	if c.Kind == "" {
		c.Kind = KindStdout
	}
	require := func(name, value string) error {
		if value == "" {
			return errors.Reason("%s sink requires %s", c.Kind, name)
		}
		return nil
	}
	var err error
	switch c.Kind {
	case KindStdout:
		if c.Format == "" {
			c.Format = string(table.FormatText)
		}
		err = table.Format(c.Format).Check()
	case KindBigQuery:
		if err = require("project", c.Project); err != nil {
			break
		}
		if err = require("table", c.Table); err != nil {
			break
		}
		_, _, err = splitBigQueryTable(c.Table)
	case KindSQLite:
		if c.Table == "" {
			c.Table = DefaultTable
		}
		err = require("path", c.Path)
	case KindPostgres:
		if c.Table == "" {
			c.Table = DefaultTable
		}
		err = require("dsn", c.DSN)
	case KindMongo:
		if c.Table == "" {
			c.Table = DefaultTable
		}
		if err = require("uri", c.URI); err != nil {
			break
		}
		err = require("database", c.Database)
	case KindParquet:
		err = require("path", c.Path)
	case KindS3:
		if c.Format == "" {
			c.Format = FormatCSV
		}
		switch c.Format {
		case FormatCSV, FormatJSON, FormatParquet:
		default:
			err = errors.Reason("s3 sink format must be %s, %s or %s, got '%s'",
				FormatCSV, FormatJSON, FormatParquet, c.Format)
		}
		if err != nil {
			break
		}
		if err = require("bucket", c.Bucket); err != nil {
			break
		}
		err = require("region", c.Region)
	default:
		err = errors.Reason("unknown sink kind '%s'", c.Kind)
	}
	return err
}

// New creates the sink described by the config. The stdout sink writes to w.
func New(ctx context.Context, cfg Config, w io.Writer) (Sink, error) {
	if err := cfg.Check(); err != nil {
		return nil, errors.Annotate(err, "invalid sink config")
	}
	switch cfg.Kind {
	case KindStdout:
		return NewStdout(w, table.Format(cfg.Format)), nil
	case KindBigQuery:
		return NewBigQuery(cfg.Project, cfg.Table, cfg.Credentials), nil
	case KindSQLite:
		return NewSQLite(cfg.Path, cfg.Table), nil
	case KindPostgres:
		return NewPostgres(cfg.DSN, cfg.Table), nil
	case KindMongo:
		return NewMongo(cfg.URI, cfg.Database, cfg.Table), nil
	case KindParquet:
		return NewParquetFile(cfg.Path), nil
	case KindS3:
		return NewS3(cfg.Bucket, cfg.Region,
			WithEndpoint(cfg.Endpoint),
			WithPrefix(cfg.Prefix),
			WithForcePathStyle(cfg.ForcePathStyle),
			WithFormat(cfg.Format),
			WithCredentialsFile(cfg.Credentials)), nil
	}
	return nil, errors.Reason("unknown sink kind '%s'", cfg.Kind)
}

// begin validates the load and assigns it a new run ID.
func begin(ctx context.Context, kind Kind, schema db.Schema, ds *table.Dataset) (string, error) {
	if ds == nil {
		return "", errors.Reason("no dataset to load")
	}
	if err := ds.CheckSchema(schema); err != nil {
		return "", errors.Annotate(err, "dataset does not match the schema")
	}
	id := uuid.NewString()
	logging.Infof(ctx, "%s load %s: %d rows, schema %s", kind, id, ds.Len(), schema)
	return id, nil
}

// splitBigQueryTable splits "dataset.table" into its parts.
func splitBigQueryTable(t string) (dataset, tbl string, err error) {
	parts := strings.Split(t, ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", errors.Reason("table '%s' must be in the form dataset.table", t)
	}
	return parts[0], parts[1], nil
}
