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
	"database/sql"
	"fmt"
	"strings"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/logging"
	_ "modernc.org/sqlite"

	"github.com/stockparfait/ipca/db"
	"github.com/stockparfait/ipca/table"
)

// SQLite appends the dataset to a table in a local SQLite database file,
// creating the table if it doesn't exist.
type SQLite struct {
	path  string
	table string
}

var _ Sink = &SQLite{}

// NewSQLite creates a SQLite sink for the database file at path.
func NewSQLite(path, table string) *SQLite {
	return &SQLite{path: path, table: table}
}

// quoteIdent quotes an SQL identifier.
func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// sqlType maps the schema type to an SQL column type.
func sqlType(t db.FieldType, float string) (string, error) {
	switch t {
	case db.TypeDate:
		return "DATE", nil
	case db.TypeFloat:
		return float, nil
	}
	return "", errors.Reason("unsupported type '%s'", t)
}

// createTableSQL generates the CREATE TABLE IF NOT EXISTS statement, using
// float as the SQL name of the FLOAT type.
func createTableSQL(name string, schema db.Schema, float string) (string, error) {
	cols := make([]string, len(schema))
	for i, f := range schema {
		t, err := sqlType(f.Type, float)
		if err != nil {
			return "", errors.Annotate(err, "field '%s'", f.Name)
		}
		cols[i] = quoteIdent(f.Name) + " " + t
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)",
		name, strings.Join(cols, ", ")), nil
}

// monthValue is the SQL value of a month: nil for a null month.
func monthValue(d db.Date) any {
	if d.IsZero() {
		return nil
	}
	return d.String()
}

// Load implements Sink.
func (s *SQLite) Load(ctx context.Context, schema db.Schema, ds *table.Dataset) (err error) {
	if _, err = begin(ctx, KindSQLite, schema, ds); err != nil {
		return err
	}
	create, err := createTableSQL(quoteIdent(s.table), schema, "REAL")
	if err != nil {
		return errors.Annotate(err, "invalid schema")
	}
	conn, err := sql.Open("sqlite", s.path)
	if err != nil {
		return errors.Annotate(err, "failed to open %s", s.path)
	}
	defer conn.Close()
	conn.SetMaxOpenConns(1)

	if _, err = conn.ExecContext(ctx, create); err != nil {
		return errors.Annotate(err, "failed to create table %s", s.table)
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return errors.Annotate(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	insert := fmt.Sprintf("INSERT INTO %s (%s, %s) VALUES (?, ?)", quoteIdent(s.table),
		quoteIdent(schema[0].Name), quoteIdent(schema[1].Name))
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return errors.Annotate(err, "failed to prepare insert")
	}
	defer stmt.Close()

	for i, r := range ds.Rows {
		if _, err = stmt.ExecContext(ctx, monthValue(r.Month), r.Value); err != nil {
			return errors.Annotate(err, "failed to insert row %d", i)
		}
	}
	if err = tx.Commit(); err != nil {
		return errors.Annotate(err, "failed to commit")
	}
	logging.Infof(ctx, "loaded %d rows into %s:%s", ds.Len(), s.path, s.table)
	return nil
}
