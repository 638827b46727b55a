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

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/fetch"
	"github.com/stockparfait/logging"

	"github.com/stockparfait/ipca/db"
	"github.com/stockparfait/ipca/sidra"
	"github.com/stockparfait/ipca/sink"
	"github.com/stockparfait/ipca/stats"
	"github.com/stockparfait/ipca/table"

	toml "github.com/pelletier/go-toml/v2"
)

type Flags struct {
	Config   string // TOML config file; default: the IPCA query printed to stdout
	LogLevel logging.Level
	Summary  bool // print series summary after the load
	Metadata bool // print the aggregate metadata instead of loading data
}

func parseFlags(args []string) (*Flags, error) {
	var flags Flags
	fs := flag.NewFlagSet("ipca", flag.ExitOnError)
	fs.StringVar(&flags.Config, "conf", "", "config file (TOML); default: IPCA 2012-2019 to stdout")
	flags.LogLevel = logging.Info
	fs.Var(&flags.LogLevel, "log-level", "Log level: debug, info, warning, error")
	fs.BoolVar(&flags.Summary, "summary", false, "print series summary after the load")
	fs.BoolVar(&flags.Metadata, "metadata", false, "print the aggregate metadata and exit")

	err := fs.Parse(args)
	return &flags, err
}

// QueryConfig describes the aggregate data to fetch.
type QueryConfig struct {
	Aggregate      int      `toml:"aggregate"`      // e.g. 1420
	Variables      []int    `toml:"variables"`      // e.g. [306]
	Periods        []string `toml:"periods"`        // explicit periods; exclusive with start/end
	Start          string   `toml:"start"`          // first month, YYYYMM
	End            string   `toml:"end"`            // last month, YYYYMM
	Localities     []string `toml:"localities"`     // e.g. ["N1[all]"]
	Classification []string `toml:"classification"` // e.g. ["315[7169]"]
}

func defaultQueryConfig() QueryConfig {
	return QueryConfig{
		Aggregate:      1420,
		Variables:      []int{306},
		Start:          "201201",
		End:            "201912",
		Localities:     []string{"N1[all]"},
		Classification: []string{"315[7169]"},
	}
}

func (q *QueryConfig) isZero() bool {
	return q.Aggregate == 0 && len(q.Variables) == 0 && len(q.Periods) == 0 &&
		q.Start == "" && q.End == "" && len(q.Localities) == 0 &&
		len(q.Classification) == 0
}

// Query builds the API query.
func (q *QueryConfig) Query() (*sidra.Query, error) {
	res := sidra.NewQuery(q.Aggregate).Variables(q.Variables...).
		Localities(q.Localities...).Classification(q.Classification...)
	switch {
	case len(q.Periods) > 0 && (q.Start != "" || q.End != ""):
		return nil, errors.Reason("periods and start/end are mutually exclusive")
	case len(q.Periods) > 0:
		res = res.Periods(q.Periods...)
	default:
		start := table.ParseMonth(q.Start)
		if start.IsZero() {
			return nil, errors.Reason("start='%s' must be YYYYMM", q.Start)
		}
		end := table.ParseMonth(q.End)
		if end.IsZero() {
			return nil, errors.Reason("end='%s' must be YYYYMM", q.End)
		}
		if end.Before(start) {
			return nil, errors.Reason("end=%s is before start=%s", q.End, q.Start)
		}
		res = res.Months(start, end)
	}
	if err := res.Check(); err != nil {
		return nil, errors.Annotate(err, "incomplete query")
	}
	return res, nil
}

// SummaryConfig controls the series summary printed with -summary.
type SummaryConfig struct {
	Start string `toml:"start"` // first month to summarize, YYYYMM; default: all
	End   string `toml:"end"`   // last month to summarize, YYYYMM; default: all
	// The values are monthly percentage variations, which enables the
	// accumulated statistics. Weights and index numbers must not be compounded,
	// so the default is false.
	Variation bool `toml:"variation"`

	start db.Date
	end   db.Date
}

// Check validates the summary window.
func (c *SummaryConfig) Check() error {
	if c.Start != "" {
		if c.start = table.ParseMonth(c.Start); c.start.IsZero() {
			return errors.Reason("start='%s' must be YYYYMM", c.Start)
		}
	}
	if c.End != "" {
		if c.end = table.ParseMonth(c.End); c.end.IsZero() {
			return errors.Reason("end='%s' must be YYYYMM", c.End)
		}
	}
	if !c.start.IsZero() && !c.end.IsZero() && c.end.Before(c.start) {
		return errors.Reason("end=%s is before start=%s", c.End, c.Start)
	}
	return nil
}

// RetryConfig overrides the default retry policy.
type RetryConfig struct {
	MaxAttempts int    `toml:"max_attempts"` // default: 6
	Wait        string `toml:"wait"`         // Go duration; default: "2s"
}

type Config struct {
	URL     string        `toml:"url"`      // full resource URL; exclusive with [query]
	BaseURL string        `toml:"base_url"` // API server; default: IBGE v3
	Query   QueryConfig   `toml:"query"`
	Retry   RetryConfig   `toml:"retry"`
	Timeout string        `toml:"timeout"` // per-request timeout; default: none
	Sink    sink.Config   `toml:"sink"`
	Summary SummaryConfig `toml:"summary"`

	query   *sidra.Query
	wait    time.Duration
	timeout time.Duration
}

// Check validates the config and fills in the defaults.
func (c *Config) Check() error {
	if c.URL != "" && !c.Query.isZero() {
		return errors.Reason("url and [query] are mutually exclusive")
	}
	if c.URL == "" && c.Query.isZero() {
		c.Query = defaultQueryConfig()
	}
	if c.URL != "" {
		if err := sidra.ValidateLocator(c.URL); err != nil {
			return errors.Annotate(err, "invalid url")
		}
	} else {
		q, err := c.Query.Query()
		if err != nil {
			return errors.Annotate(err, "invalid [query]")
		}
		c.query = q
	}
	if c.BaseURL == "" {
		c.BaseURL = sidra.URL
	}
	if err := sidra.ValidateLocator(c.BaseURL); err != nil {
		return errors.Annotate(err, "invalid base_url")
	}
	if c.Retry.MaxAttempts < 0 {
		return errors.Reason("retry.max_attempts=%d must be >= 0", c.Retry.MaxAttempts)
	}
	if c.Retry.Wait != "" {
		d, err := time.ParseDuration(c.Retry.Wait)
		if err != nil {
			return errors.Annotate(err, "invalid retry.wait")
		}
		if d < 0 {
			return errors.Reason("retry.wait=%s must be >= 0", c.Retry.Wait)
		}
		c.wait = d
	}
	if c.Timeout != "" {
		d, err := time.ParseDuration(c.Timeout)
		if err != nil {
			return errors.Annotate(err, "invalid timeout")
		}
		if d < 0 {
			return errors.Reason("timeout=%s must be >= 0", c.Timeout)
		}
		c.timeout = d
	}
	if err := c.Sink.Check(); err != nil {
		return errors.Annotate(err, "invalid [sink]")
	}
	if err := c.Summary.Check(); err != nil {
		return errors.Annotate(err, "invalid [summary]")
	}
	return nil
}

// Locator of the data to fetch.
func (c *Config) Locator() (string, error) {
	if c.URL != "" {
		return c.URL, nil
	}
	if c.query == nil {
		return "", errors.Reason("config is not checked")
	}
	return c.query.Locator(c.BaseURL)
}

// parseConfig reads the TOML config file, or returns the default config when
// the path is empty.
func parseConfig(path string) (*Config, error) {
	var c Config
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, errors.Annotate(err, "failed to open config file %s", path)
		}
		defer f.Close()

		d := toml.NewDecoder(f)
		d.DisallowUnknownFields()
		if err := d.Decode(&c); err != nil {
			return nil, errors.Annotate(err, "failed to read config file %s", path)
		}
	}
	if err := c.Check(); err != nil {
		return nil, errors.Annotate(err, "invalid config")
	}
	return &c, nil
}

type metadataRow struct {
	Field string
	Value string
}

func (r metadataRow) CSV() []string { return []string{r.Field, r.Value} }

func metadataTable(m *sidra.Metadata) *table.Table {
	t := table.NewTable("field", "value")
	t.AddRow(
		metadataRow{"id", strconv.Itoa(m.ID)},
		metadataRow{"name", m.Name},
		metadataRow{"survey", m.Survey},
		metadataRow{"subject", m.Subject},
		metadataRow{"periodicity", fmt.Sprintf("%s %d-%d",
			m.Periodicity.Frequency, m.Periodicity.Start, m.Periodicity.End)},
	)
	for _, v := range m.Variables {
		t.AddRow(metadataRow{"variable " + strconv.Itoa(v.ID), fmt.Sprintf("%s [%s]", v.Name, v.Unit)})
	}
	for _, c := range m.Classifications {
		t.AddRow(metadataRow{"classification " + strconv.Itoa(c.ID),
			fmt.Sprintf("%s (%d categories)", c.Name, len(c.Categories))})
	}
	return t
}

func printMetadata(ctx context.Context, config *Config, w io.Writer) error {
	if config.query == nil {
		return errors.Reason("-metadata requires [query] in the config")
	}
	m, err := sidra.FetchMetadata(ctx, config.query.Aggregate())
	if err != nil {
		return errors.Annotate(err, "failed to fetch metadata")
	}
	periods, err := sidra.FetchPeriods(ctx, config.query.Aggregate())
	if err != nil {
		return errors.Annotate(err, "failed to fetch periods")
	}
	t := metadataTable(m)
	if n := len(periods); n > 0 {
		last := periods[n-1]
		modified := "unknown"
		if last.Modified != nil {
			modified = last.Modified.String()
		}
		t.AddRow(metadataRow{"periods", fmt.Sprintf(
			"%d available; last %s, modified %s", n, last.ID, modified)})
	}
	if err := t.WriteText(w, table.Params{MaxColWidth: 80}); err != nil {
		return errors.Annotate(err, "failed to print metadata")
	}
	return nil
}

func printSummary(ds *table.Dataset, c *SummaryConfig, w io.Writer) error {
	ts, err := stats.NewTimeseriesFromDataset(ds)
	if err != nil {
		return errors.Annotate(err, "failed to extract the series")
	}
	if n := ts.Len(); n > 0 {
		start, end := ts.Dates()[0], ts.Dates()[n-1]
		if !c.start.IsZero() {
			start = c.start
		}
		if !c.end.IsZero() {
			end = c.end
		}
		ts = ts.Range(start, end)
	}
	if _, err := fmt.Fprintln(w); err != nil {
		return errors.Annotate(err, "failed to print summary")
	}
	if err := stats.Summarize(ts, c.Variation).Table().WriteText(w, table.Params{}); err != nil {
		return errors.Annotate(err, "failed to print summary")
	}
	if !c.Variation {
		return nil
	}
	if _, err := fmt.Fprintln(w); err != nil {
		return errors.Annotate(err, "failed to print summary")
	}
	if err := stats.AccumulationTable(ts).WriteText(w, table.Params{}); err != nil {
		return errors.Annotate(err, "failed to print accumulated variations")
	}
	return nil
}

// run executes a single fetch-transform-load pass. Exhausted retries are not
// an error: a warning is logged and nothing is loaded.
func run(ctx context.Context, flags *Flags, w io.Writer) error {
	config, err := parseConfig(flags.Config)
	if err != nil {
		return errors.Annotate(err, "failed to parse config")
	}
	client := &http.Client{Timeout: config.timeout}
	ctx = fetch.UseClient(ctx, client)
	ctx = sidra.UseClient(ctx,
		sidra.BaseURL(config.BaseURL),
		sidra.Retry(sidra.RetryParams{MaxAttempts: config.Retry.MaxAttempts, Wait: config.wait}))

	if flags.Metadata {
		return printMetadata(ctx, config, w)
	}

	loc, err := config.Locator()
	if err != nil {
		return errors.Annotate(err, "failed to build the request URL")
	}
	logging.Infof(ctx, "fetching %s", loc)
	payload, err := sidra.Fetch(ctx, loc)
	if err != nil {
		return errors.Annotate(err, "failed to fetch data")
	}
	if payload == nil {
		logging.Warningf(ctx, "no data received; nothing to load")
		return nil
	}
	records, err := sidra.Flatten(payload)
	if err != nil {
		return errors.Annotate(err, "failed to extract records")
	}
	ds, err := table.Build(records)
	if err != nil {
		return errors.Annotate(err, "failed to build the table")
	}
	if n := ds.NullMonths(); n > 0 {
		logging.Warningf(ctx, "%d of %d periods are not YYYYMM; their %s is null",
			n, ds.Len(), db.ColumnMonth)
	}
	months := ds.Months()
	logging.Infof(ctx, "%d rows covering %s to %s", ds.Len(),
		db.MinDate(months...), db.MaxDate(months...))
	schema := db.DefaultSchema()
	if err := ds.CheckSchema(schema); err != nil {
		return errors.Annotate(err, "table does not match the load schema")
	}
	s, err := sink.New(ctx, config.Sink, w)
	if err != nil {
		return errors.Annotate(err, "failed to create sink")
	}
	if err := s.Load(ctx, schema, ds); err != nil {
		return errors.Annotate(err, "failed to load %d rows into %s", ds.Len(), config.Sink.Kind)
	}
	if flags.Summary {
		return printSummary(ds, &config.Summary, w)
	}
	return nil
}

func main() {
	ctx := context.Background()
	flags, err := parseFlags(os.Args[1:])
	if err != nil {
		ctx = logging.Use(ctx, logging.DefaultGoLogger(logging.Info))
		logging.Errorf(ctx, "failed to parse flags: %s", err.Error())
		os.Exit(1)
	}
	ctx = logging.Use(ctx, logging.DefaultGoLogger(flags.LogLevel))

	if err := run(ctx, flags, os.Stdout); err != nil {
		logging.Errorf(ctx, "%s", err.Error())
		os.Exit(1)
	}
}
