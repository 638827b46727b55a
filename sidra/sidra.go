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
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/fetch"
	"github.com/stockparfait/ipca/db"
	"github.com/stockparfait/logging"
)

type contextKey int

const (
	clientContextKey contextKey = iota
)

// URL is the default base URL of the server. It may be overwritten in tests
// before creating a new client.
var URL = "https://servicodados.ibge.gov.br/api/v3"

// Default retry policy.
const (
	DefaultMaxAttempts = 6
	DefaultWait        = 2 * time.Second
)

// RetryParams control how Fetch handles transient failures (HTTP 429 and 500).
type RetryParams struct {
	MaxAttempts int           // max. number of requests for a single fetch
	Wait        time.Duration // fixed pause after each transient failure
}

// DefaultRetryParams returns the default retry policy: up to 6 requests with a
// 2 second pause after each transient failure.
func DefaultRetryParams() RetryParams {
	return RetryParams{MaxAttempts: DefaultMaxAttempts, Wait: DefaultWait}
}

// Client for querying the IBGE aggregates API.
type Client struct {
	baseURL string
	retry   RetryParams
}

// Option configures a Client.
type Option func(*Client)

// BaseURL overrides the default server URL.
func BaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// Retry sets the retry policy. Zero fields keep their default values.
func Retry(p RetryParams) Option {
	return func(c *Client) {
		if p.MaxAttempts > 0 {
			c.retry.MaxAttempts = p.MaxAttempts
		}
		if p.Wait > 0 {
			c.retry.Wait = p.Wait
		}
	}
}

// newClient creates a new client.
func newClient(opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(URL, "/"),
		retry:   DefaultRetryParams(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// GetClient extracts the Client from the context, if any.
func GetClient(ctx context.Context) *Client {
	c, ok := ctx.Value(clientContextKey).(*Client)
	if !ok {
		return nil
	}
	return c
}

// UseClient creates a new client with the given options and injects it into
// the context.
func UseClient(ctx context.Context, opts ...Option) context.Context {
	return context.WithValue(ctx, clientContextKey, newClient(opts...))
}

// RetryParams of the client.
func (c *Client) RetryParams() RetryParams { return c.retry }

// BaseURL of the client.
func (c *Client) BaseURL() string { return c.baseURL }

// ValidateLocator checks that the locator is an absolute http(s) URL.
func ValidateLocator(locator string) error {
	if locator == "" {
		return errors.Reason("locator is empty")
	}
	u, err := url.Parse(locator)
	if err != nil {
		return errors.Annotate(err, "malformed locator '%s'", locator)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.Reason("locator '%s' must be an http(s) URL", locator)
	}
	if u.Host == "" {
		return errors.Reason("locator '%s' has no host", locator)
	}
	return nil
}

// describe a failed response for logs and errors: its status and the start
// of its body. fetch.Get consumes the body of 4xx responses into its own
// error, so only the status remains for those.
func describe(resp *http.Response) string {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
	return strings.TrimSpace(resp.Status + " " + strings.TrimSpace(string(body)))
}

// Fetch downloads and decodes the JSON payload at the locator using the Client
// from the context. See FetchAttempt for details.
func Fetch(ctx context.Context, locator string) (Payload, error) {
	return FetchAttempt(ctx, locator, 0)
}

// FetchAttempt is Fetch which starts counting requests from the given
// attempt. Attempts are numbered from 0.
//
// HTTP 200 returns the payload. HTTP 429 and 500 are transient: a warning is
// logged, Fetch pauses for RetryParams.Wait and tries again. Any other status
// is an error, as are transport failures and a 200 response which is not
// valid JSON. When the attempt number reaches RetryParams.MaxAttempts, no
// request is sent and the result is (nil, nil), meaning "no data".
//
// Requests are sent with the HTTP client from fetch.GetClient(ctx), if any.
func FetchAttempt(ctx context.Context, locator string, attempt int) (Payload, error) {
	client := GetClient(ctx)
	if client == nil {
		return nil, errors.Reason("no client in context")
	}
	if attempt < 0 {
		return nil, errors.Reason("attempt = %d must be >= 0", attempt)
	}
	if err := ValidateLocator(locator); err != nil {
		return nil, errors.Annotate(err, "invalid locator")
	}
	limit := client.retry.MaxAttempts
	last := "none"
	if attempt >= limit {
		logging.Warningf(ctx, "request has reached the limit of %d attempts. Reason: %s",
			limit, last)
		return nil, nil
	}
	params := fetch.NewParams().Retries(limit - attempt - 1).
		MinWait(client.retry.Wait).MaxWait(client.retry.Wait)

	var p Payload
	err := fetch.Retry(ctx, params, func(i int) error {
		n := attempt + i + 1
		logging.Debugf(ctx, "GET %s (attempt %d)", locator, n)
		// Non-2xx responses also return an error, classified by status below.
		resp, err := fetch.Get(ctx, locator, nil)
		if resp == nil {
			return errors.Annotate(err, "GET %s failed", locator)
		}
		defer resp.Body.Close()

		switch resp.StatusCode {
		case http.StatusOK:
			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return errors.Annotate(err, "failed to read response body")
			}
			if p, err = NewPayload(body); err != nil {
				return errors.Annotate(err, "failed to decode response from %s", locator)
			}
			return nil
		case http.StatusTooManyRequests, http.StatusInternalServerError:
			last = describe(resp)
			logging.Warningf(ctx, "request has failed %d time(s). Reason: %s", n, last)
			return fetch.NewRetriableError(errors.Reason("GET %s: %s", locator, last))
		default:
			return errors.Reason("GET %s: unexpected status %s", locator, describe(resp))
		}
	})
	var re *fetch.RetriableError
	if errors.As(err, &re) {
		logging.Warningf(ctx, "request has reached the limit of %d attempts. Reason: %s",
			limit, last)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Query is a builder for an aggregate data query.
type Query struct {
	aggregate      int
	periods        []string
	variables      []int
	localities     []string
	classification []string
}

// NewQuery creates a new query for the aggregate (e.g. 1420 for IPCA).
func NewQuery(aggregate int) *Query {
	return &Query{aggregate: aggregate}
}

// Copy creates a deep copy of the query. It is primarily used in its builder
// methods.
func (q *Query) Copy() *Query {
	q2 := Query{aggregate: q.aggregate}
	q2.periods = append([]string(nil), q.periods...)
	q2.variables = append([]int(nil), q.variables...)
	q2.localities = append([]string(nil), q.localities...)
	q2.classification = append([]string(nil), q.classification...)
	return &q2
}

// Aggregate ID of the query.
func (q *Query) Aggregate() int { return q.aggregate }

// Periods adds periods to the query, e.g. "201201" for a monthly series. This
// and other builder methods always create a deep copy of the query, leaving
// the original intact.
func (q *Query) Periods(periods ...string) *Query {
	q2 := q.Copy()
	q2.periods = append(q2.periods, periods...)
	return q2
}

// Months adds all the months in the inclusive range as periods.
func (q *Query) Months(start, end db.Date) *Query {
	return q.Periods(MonthRange(start, end)...)
}

// Variables adds variable IDs to the query.
func (q *Query) Variables(vars ...int) *Query {
	q2 := q.Copy()
	q2.variables = append(q2.variables, vars...)
	return q2
}

// Localities adds locality filters, e.g. "N1[all]" for the whole country.
func (q *Query) Localities(locs ...string) *Query {
	q2 := q.Copy()
	q2.localities = append(q2.localities, locs...)
	return q2
}

// Classification adds classification filters, e.g. "315[7169]".
func (q *Query) Classification(cls ...string) *Query {
	q2 := q.Copy()
	q2.classification = append(q2.classification, cls...)
	return q2
}

// Check that the query has all the required parts.
func (q *Query) Check() error {
	if q.aggregate <= 0 {
		return errors.Reason("aggregate ID = %d must be positive", q.aggregate)
	}
	if len(q.periods) == 0 {
		return errors.Reason("no periods in the query")
	}
	if len(q.variables) == 0 {
		return errors.Reason("no variables in the query")
	}
	if len(q.localities) == 0 {
		return errors.Reason("no localities in the query")
	}
	return nil
}

// Path returns the URL path to add to the base URL.
func (q *Query) Path() string {
	vars := make([]string, len(q.variables))
	for i, v := range q.variables {
		vars[i] = strconv.Itoa(v)
	}
	return "agregados/" + strconv.Itoa(q.aggregate) +
		"/periodos/" + url.PathEscape(strings.Join(q.periods, "|")) +
		"/variaveis/" + url.PathEscape(strings.Join(vars, "|"))
}

// Values returns the query values for the query. Each call creates a new
// object, so the caller is free to modify it without affecting the query.
func (q *Query) Values() url.Values {
	v := make(url.Values)
	if len(q.localities) > 0 {
		v["localidades"] = []string{strings.Join(q.localities, "|")}
	}
	if len(q.classification) > 0 {
		v["classificacao"] = []string{strings.Join(q.classification, "|")}
	}
	return v
}

// Locator returns the full resource URL of the query relative to baseURL.
func (q *Query) Locator(baseURL string) (string, error) {
	if err := q.Check(); err != nil {
		return "", errors.Annotate(err, "invalid query")
	}
	loc := strings.TrimRight(baseURL, "/") + "/" + q.Path()
	if v := q.Values(); len(v) > 0 {
		loc += "?" + v.Encode()
	}
	return loc, nil
}

// Fetch executes the query using the Client from the context.
func (q *Query) Fetch(ctx context.Context) (Payload, error) {
	client := GetClient(ctx)
	if client == nil {
		return nil, errors.Reason("Query.Fetch: no client in context")
	}
	loc, err := q.Locator(client.baseURL)
	if err != nil {
		return nil, err
	}
	return Fetch(ctx, loc)
}

// MonthRange lists all the months between start and end inclusive in the
// YYYYMM format. Days of the month are ignored.
func MonthRange(start, end db.Date) []string {
	var res []string
	if start.IsZero() || end.IsZero() {
		return res
	}
	last := end.MonthStart()
	for d := start.MonthStart(); !d.After(last); d = d.NextMonth() {
		res = append(res, d.YearMonth())
	}
	return res
}

// Periodicity of an aggregate.
type Periodicity struct {
	Frequency string `json:"frequencia"` // e.g. "mensal"
	Start     int    `json:"inicio"`     // first period, e.g. 201201
	End       int    `json:"fim"`        // last available period
}

// VariableMeta describes a variable of an aggregate.
type VariableMeta struct {
	ID   int    `json:"id"`
	Name string `json:"nome"`
	Unit string `json:"unidade"`
}

// CategoryMeta is a single category of a classification.
type CategoryMeta struct {
	ID    int    `json:"id"`
	Name  string `json:"nome"`
	Level int    `json:"nivel"`
}

// ClassificationMeta describes a classification of an aggregate.
type ClassificationMeta struct {
	ID         int            `json:"id"`
	Name       string         `json:"nome"`
	Categories []CategoryMeta `json:"categorias"`
}

// Metadata is the JSON struct returned by the aggregate metadata API.
type Metadata struct {
	ID              int                  `json:"id"`
	Name            string               `json:"nome"`
	URL             string               `json:"URL"`
	Survey          string               `json:"pesquisa"`
	Subject         string               `json:"assunto"`
	Periodicity     Periodicity          `json:"periodicidade"`
	Variables       []VariableMeta       `json:"variaveis"`
	Classifications []ClassificationMeta `json:"classificacoes"`
}

// FetchMetadata obtains metadata about the requested aggregate.
func FetchMetadata(ctx context.Context, aggregate int) (*Metadata, error) {
	var m Metadata
	client := GetClient(ctx)
	if client == nil {
		return nil, errors.Reason("no client in context")
	}
	uri := client.baseURL + "/agregados/" + strconv.Itoa(aggregate) + "/metadados"
	if err := fetch.FetchJSON(ctx, uri, &m, nil, nil); err != nil {
		return nil, errors.Annotate(err, "failed to fetch URL")
	}
	return &m, nil
}

// Period available for an aggregate.
type Period struct {
	ID       string   `json:"id"`          // e.g. "201912"
	Literals []string `json:"literals"`    // e.g. ["dezembro 2019"]
	Modified *db.Time `json:"modificacao"` // last modification of the period data
}

// FetchPeriods lists all the periods available for the aggregate, in the
// order returned by the server.
func FetchPeriods(ctx context.Context, aggregate int) ([]Period, error) {
	var periods []Period
	client := GetClient(ctx)
	if client == nil {
		return nil, errors.Reason("no client in context")
	}
	uri := client.baseURL + "/agregados/" + strconv.Itoa(aggregate) + "/periodos"
	if err := fetch.FetchJSON(ctx, uri, &periods, nil, nil); err != nil {
		return nil, errors.Annotate(err, "failed to fetch URL")
	}
	return periods, nil
}
