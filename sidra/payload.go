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

package sidra

import (
	"bytes"
	"encoding/json"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/ipca/db"
)

// Payload is the raw JSON response of the aggregates API. It is guaranteed to
// be valid JSON, but its structure is checked only by Decode.
type Payload []byte

// NewPayload checks that data is valid JSON and wraps it as a Payload.
func NewPayload(data []byte) (Payload, error) {
	if !json.Valid(data) {
		return nil, errors.Reason("response is not valid JSON")
	}
	return Payload(data), nil
}

// Point is a single period => value entry of a series.
type Point struct {
	Period string
	Value  string
}

// Serie is the mapping of periods to values, in the order they were sent.
type Serie []Point

var _ json.Unmarshaler = &Serie{}

// UnmarshalJSON implements json.Unmarshaler. It reads the object key by key to
// keep the original order of periods, which a Go map would lose.
func (s *Serie) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return errors.Annotate(err, "failed to read serie")
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return errors.Reason("serie must be an object, got %v", tok)
	}
	points := Serie{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return errors.Annotate(err, "failed to read serie period")
		}
		period, ok := tok.(string)
		if !ok {
			return errors.Reason("serie period must be a string, got %v", tok)
		}
		tok, err = dec.Token()
		if err != nil {
			return errors.Annotate(err, "failed to read value for period %s", period)
		}
		value, ok := tok.(string)
		if !ok {
			return errors.Reason("value for period %s must be a string, got %v", period, tok)
		}
		points = append(points, Point{Period: period, Value: value})
	}
	if _, err := dec.Token(); err != nil {
		return errors.Annotate(err, "failed to close serie")
	}
	*s = points
	return nil
}

// requireKeys checks that data is a JSON object with all the keys present and
// non-null.
func requireKeys(data []byte, keys ...string) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return errors.Annotate(err, "expected a JSON object")
	}
	if m == nil {
		return errors.Reason("expected a JSON object, got null")
	}
	for _, k := range keys {
		v, ok := m[k]
		if !ok {
			return errors.Reason("missing key '%s'", k)
		}
		if string(bytes.TrimSpace(v)) == "null" {
			return errors.Reason("key '%s' is null", k)
		}
	}
	return nil
}

// Level of a locality, e.g. N1 for the whole country.
type Level struct {
	ID   string `json:"id"`
	Name string `json:"nome"`
}

// Locality of a series.
type Locality struct {
	ID    string `json:"id"`
	Name  string `json:"nome"`
	Level Level  `json:"nivel"`
}

// Series is a single time series for a locality.
type Series struct {
	Locality Locality `json:"localidade"`
	Serie    Serie    `json:"serie"`
}

// UnmarshalJSON implements json.Unmarshaler, requiring the "serie" key.
func (s *Series) UnmarshalJSON(data []byte) error {
	if err := requireKeys(data, "serie"); err != nil {
		return errors.Annotate(err, "malformed series")
	}
	type plain Series
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return errors.Annotate(err, "malformed series")
	}
	*s = Series(p)
	return nil
}

// Classification of the results, with the selected categories by ID.
type Classification struct {
	ID         string            `json:"id"`
	Name       string            `json:"nome"`
	Categories map[string]string `json:"categoria"`
}

// Result is a set of series for a combination of classification categories.
type Result struct {
	Classifications []Classification `json:"classificacoes"`
	Series          []Series         `json:"series"`
}

// UnmarshalJSON implements json.Unmarshaler, requiring the "series" key.
func (r *Result) UnmarshalJSON(data []byte) error {
	if err := requireKeys(data, "series"); err != nil {
		return errors.Annotate(err, "malformed result")
	}
	type plain Result
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return errors.Annotate(err, "malformed result")
	}
	*r = Result(p)
	return nil
}

// Aggregate is the top-level element of the response: one per variable.
type Aggregate struct {
	ID       string   `json:"id"`
	Variable string   `json:"variavel"`
	Unit     string   `json:"unidade"`
	Results  []Result `json:"resultados"`
}

// UnmarshalJSON implements json.Unmarshaler, requiring the "resultados" key.
func (a *Aggregate) UnmarshalJSON(data []byte) error {
	if err := requireKeys(data, "resultados"); err != nil {
		return errors.Annotate(err, "malformed aggregate")
	}
	type plain Aggregate
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return errors.Annotate(err, "malformed aggregate")
	}
	*a = Aggregate(p)
	return nil
}

// Decode the payload into its nested structure. It fails if the payload does
// not have the expected shape.
func (p Payload) Decode() ([]Aggregate, error) {
	trimmed := bytes.TrimSpace(p)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, errors.Reason("payload must be a JSON array")
	}
	var aggs []Aggregate
	if err := json.Unmarshal(trimmed, &aggs); err != nil {
		return nil, errors.Annotate(err, "failed to decode payload")
	}
	return aggs, nil
}

// Flatten decodes the payload and extracts all of its (period, value) pairs.
func Flatten(p Payload) ([]db.Record, error) {
	aggs, err := p.Decode()
	if err != nil {
		return nil, errors.Annotate(err, "malformed payload")
	}
	return FlattenAggregates(aggs), nil
}

// FlattenAggregates emits one record per serie entry of every series of every
// result, in the order of appearance. Nothing is sorted, merged or dropped.
func FlattenAggregates(aggs []Aggregate) []db.Record {
	records := []db.Record{}
	for _, a := range aggs {
		for _, r := range a.Results {
			for _, s := range r.Series {
				for _, pt := range s.Serie {
					records = append(records, db.Record{Period: pt.Period, Value: pt.Value})
				}
			}
		}
	}
	return records
}
