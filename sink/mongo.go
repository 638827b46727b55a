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

	"github.com/stockparfait/errors"
	"github.com/stockparfait/logging"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/stockparfait/ipca/db"
	"github.com/stockparfait/ipca/table"
)

// Mongo inserts the dataset as documents into a MongoDB collection. Each
// document carries the run ID of the load.
type Mongo struct {
	uri        string
	database   string
	collection string
}

var _ Sink = &Mongo{}

// NewMongo creates a MongoDB sink.
func NewMongo(uri, database, collection string) *Mongo {
	return &Mongo{uri: uri, database: database, collection: collection}
}

// documents converts the dataset into BSON documents keyed by the schema
// field names. A null month is stored as BSON null.
func documents(schema db.Schema, ds *table.Dataset, runID string) []any {
	docs := make([]any, len(ds.Rows))
	for i, r := range ds.Rows {
		var month any
		if !r.Month.IsZero() {
			month = r.Month.ToTime()
		}
		docs[i] = bson.D{
			{Key: schema[0].Name, Value: month},
			{Key: schema[1].Name, Value: r.Value},
			{Key: "run_id", Value: runID},
		}
	}
	return docs
}

// Load implements Sink.
func (m *Mongo) Load(ctx context.Context, schema db.Schema, ds *table.Dataset) error {
	runID, err := begin(ctx, KindMongo, schema, ds)
	if err != nil {
		return err
	}
	if ds.Len() == 0 {
		logging.Infof(ctx, "nothing to insert into %s.%s", m.database, m.collection)
		return nil
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(m.uri))
	if err != nil {
		return errors.Annotate(err, "failed to connect to mongo")
	}
	defer func() {
		if err := client.Disconnect(ctx); err != nil {
			logging.Warningf(ctx, "failed to disconnect from mongo: %s", err.Error())
		}
	}()

	coll := client.Database(m.database).Collection(m.collection)
	res, err := coll.InsertMany(ctx, documents(schema, ds, runID))
	if err != nil {
		return errors.Annotate(err, "failed to insert into %s.%s", m.database, m.collection)
	}
	logging.Infof(ctx, "inserted %d documents into %s.%s",
		len(res.InsertedIDs), m.database, m.collection)
	return nil
}
