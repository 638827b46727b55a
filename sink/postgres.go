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
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/stockparfait/errors"
	"github.com/stockparfait/logging"

	"github.com/stockparfait/ipca/db"
	"github.com/stockparfait/ipca/table"
)

// Postgres appends the dataset to a PostgreSQL table using COPY, creating the
// table if it doesn't exist.
type Postgres struct {
	dsn   string
	table string // optionally schema-qualified: "schema.table"
}

var _ Sink = &Postgres{}

// NewPostgres creates a PostgreSQL sink.
func NewPostgres(dsn, table string) *Postgres {
	return &Postgres{dsn: dsn, table: table}
}

func (p *Postgres) identifier() pgx.Identifier {
	return pgx.Identifier(strings.Split(p.table, "."))
}

// copyRows converts the dataset into rows for CopyFrom.
func copyRows(ds *table.Dataset) [][]any {
	rows := make([][]any, len(ds.Rows))
	for i, r := range ds.Rows {
		var month any
		if !r.Month.IsZero() {
			month = r.Month.ToTime()
		}
		rows[i] = []any{month, r.Value}
	}
	return rows
}

// Load implements Sink.
func (p *Postgres) Load(ctx context.Context, schema db.Schema, ds *table.Dataset) error {
	if _, err := begin(ctx, KindPostgres, schema, ds); err != nil {
		return err
	}
	ident := p.identifier()
	create, err := createTableSQL(ident.Sanitize(), schema, "DOUBLE PRECISION")
	if err != nil {
		return errors.Annotate(err, "invalid schema")
	}
	conn, err := pgx.Connect(ctx, p.dsn)
	if err != nil {
		return errors.Annotate(err, "failed to connect to postgres")
	}
	defer conn.Close(ctx)

	tx, err := conn.Begin(ctx)
	if err != nil {
		return errors.Annotate(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx) // no-op after commit

	if _, err := tx.Exec(ctx, create); err != nil {
		return errors.Annotate(err, "failed to create table %s", ident.Sanitize())
	}
	n, err := tx.CopyFrom(ctx, ident, schema.Names(), pgx.CopyFromRows(copyRows(ds)))
	if err != nil {
		return errors.Annotate(err, "failed to copy rows into %s", ident.Sanitize())
	}
	if err := tx.Commit(ctx); err != nil {
		return errors.Annotate(err, "failed to commit")
	}
	logging.Infof(ctx, "loaded %d rows into %s", n, ident.Sanitize())
	return nil
}
