// Command toriload runs the daily TORI ingestion pass: it obtains an OAuth2
// bearer token, downloads the report CSV for a time window, and upserts the
// rows into the destination table, creating the table on first run.
//
// It is designed to be triggered by a scheduler (GitHub Actions in
// production); each invocation is a fresh, self-contained process.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/deya-hazra-maersk/TORI-Data-Processing/internal/config"
	"github.com/deya-hazra-maersk/TORI-Data-Processing/internal/fetch"
	"github.com/deya-hazra-maersk/TORI-Data-Processing/internal/metrics"
	"github.com/deya-hazra-maersk/TORI-Data-Processing/internal/metrics/datadog"
	"github.com/deya-hazra-maersk/TORI-Data-Processing/internal/pipeline"
	"github.com/deya-hazra-maersk/TORI-Data-Processing/internal/storage"

	// register all backends with the storage factory.
	_ "github.com/deya-hazra-maersk/TORI-Data-Processing/internal/storage/all"
)

// windowLayout matches the reporting API's timestamp format.
const windowLayout = "2006-01-02T15:04:05"

// runner is the seam between the CLI and the pipeline.
type runner interface {
	Run(ctx context.Context, w fetch.Window) (pipeline.Result, error)
}

// backendCloser is the minimal interface used to manage a metrics backend.
type backendCloser interface {
	metrics.Backend
	Close() error
}

// deps holds the external seams of run. main wires the real implementations;
// tests inject fakes and capture stderr.
type deps struct {
	Stderr io.Writer

	LoadConfig     func(envFile string) config.Config
	NewRunner      func(cfg config.Config, st storage.Config, table, runID string) runner
	BackendFactory func(ctx context.Context, jobName string, tags []string) (backendCloser, error)
	NewRunID       func() string
	Now            func() time.Time
}

func main() {
	code := run(context.Background(), os.Args[1:], deps{
		Stderr:     os.Stderr,
		LoadConfig: config.Load,
		NewRunner: func(cfg config.Config, st storage.Config, table, runID string) runner {
			return pipeline.NewDefaultRunner(cfg, st, table, runID)
		},
		BackendFactory: func(ctx context.Context, jobName string, tags []string) (backendCloser, error) {
			return datadog.NewBackend(ctx, datadog.Options{JobName: jobName, Tags: tags})
		},
		NewRunID: func() string { return uuid.NewString() },
		Now:      time.Now,
	})
	os.Exit(code)
}

// run executes the command and returns an exit code.
//
// Exit codes:
//   - 0: rows loaded, or nothing to do (empty payload).
//   - 1: a pipeline stage failed.
//   - 2: usage or configuration error; no network call was made.
func run(ctx context.Context, args []string, d deps) int {
	if d.Stderr == nil {
		d.Stderr = io.Discard
	}
	if d.Now == nil {
		d.Now = time.Now
	}

	fs := flag.NewFlagSet("toriload", flag.ContinueOnError)
	fs.SetOutput(d.Stderr)

	var (
		startFlg       string
		endFlg         string
		envFile        string
		storageKind    string
		dsnFlg         string
		table          string
		metricsBackend string
		validate       bool
	)
	fs.StringVar(&startFlg, "start", "", "window start, YYYY-MM-DDTHH:MM:SS UTC (default: 24h before -end)")
	fs.StringVar(&endFlg, "end", "", "window end, YYYY-MM-DDTHH:MM:SS UTC (default: now)")
	fs.StringVar(&envFile, "env-file", "", "optional .env file to seed the environment")
	fs.StringVar(&storageKind, "storage", "sqlserver", "destination backend (sqlserver, postgres, sqlite)")
	fs.StringVar(&dsnFlg, "dsn", "", "destination DSN (required for non-sqlserver backends; overrides the assembled one)")
	fs.StringVar(&table, "table", config.DefaultTable, "destination table name")
	fs.StringVar(&metricsBackend, "metrics-backend", "none", "metrics backend to use (datadog, none)")
	fs.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	verbose := fs.Bool("v", false, "enable verbose logs")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	log.SetOutput(d.Stderr)

	window, err := parseWindow(startFlg, endFlg, d.Now)
	if err != nil {
		fmt.Fprintf(d.Stderr, "invalid window: %v\n", err)
		return 2
	}

	cfg := d.LoadConfig(envFile)
	if err := cfg.Validate(); err != nil {
		err = pipeline.NewStageError(pipeline.StageConfig, err)
		fmt.Fprintf(d.Stderr, "%v\n", err)
		return 2
	}
	if validate {
		log.Printf("configuration is valid")
		return 0
	}

	st := storage.Config{Kind: storageKind, DSN: dsnFlg}
	if st.DSN == "" {
		if st.Kind != "sqlserver" {
			fmt.Fprintf(d.Stderr, "-dsn is required for storage kind %q\n", st.Kind)
			return 2
		}
		st.DSN = cfg.SQLServerDSN()
	}

	// Decide metrics backend: flag → env → default.
	switch metricsBackend {
	case "datadog":
		tags := datadog.ParseTagsCSV(os.Getenv("METRICS_TAGS"))
		b, err := d.BackendFactory(ctx, "tori_load", tags)
		if err != nil {
			log.Printf("metrics: failed to init datadog backend: %v; using nop", err)
		} else {
			metrics.SetBackend(b)
			defer func() {
				if err := b.Close(); err != nil {
					log.Printf("metrics: datadog close/flush error: %v", err)
				}
			}()
		}

	case "", "none":
		// metrics disabled; nop backend remains
		if *verbose {
			log.Printf("metrics: disabled (backend=%q)", metricsBackend)
		}

	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", metricsBackend)
	}

	runID := "unknown"
	if d.NewRunID != nil {
		runID = d.NewRunID()
	}

	if *verbose {
		log.Printf("run=%s storage=%s table=%s", runID, st.Kind, table)
	}

	start := d.Now()
	res, err := d.NewRunner(cfg, st, table, runID).Run(ctx, window)
	if err != nil {
		var se *pipeline.StageError
		if errors.As(err, &se) {
			log.Printf("run=%s failed at stage %s: %v", runID, se.Stage, err)
		} else {
			log.Printf("run=%s failed: %v", runID, err)
		}
		return 1
	}

	switch res.State {
	case pipeline.StateSkipped:
		log.Printf("run=%s completed with nothing to do in %s", runID, time.Since(start).Truncate(time.Millisecond))
	default:
		log.Printf("run=%s completed: %d rows loaded in %s", runID, res.Rows, time.Since(start).Truncate(time.Millisecond))
	}
	return 0
}

// parseWindow builds the fetch window from the optional -start/-end flags.
//
// Rules:
//   - Neither flag set: zero Window; the pipeline computes [now-24h, now].
//   - Only -end set: the 24 hours ending there.
//   - Only -start set: start through now.
//   - Both set: used as given, unvalidated. An inverted window is passed
//     through and the remote decides what it returns.
func parseWindow(startFlg, endFlg string, now func() time.Time) (fetch.Window, error) {
	if startFlg == "" && endFlg == "" {
		return fetch.Window{}, nil
	}

	var w fetch.Window
	var err error
	if startFlg != "" {
		w.Start, err = time.ParseInLocation(windowLayout, startFlg, time.UTC)
		if err != nil {
			return fetch.Window{}, fmt.Errorf("parse -start: %w", err)
		}
	}
	if endFlg != "" {
		w.End, err = time.ParseInLocation(windowLayout, endFlg, time.UTC)
		if err != nil {
			return fetch.Window{}, fmt.Errorf("parse -end: %w", err)
		}
	} else {
		w.End = now().UTC()
	}
	if startFlg == "" {
		w.Start = w.End.Add(-24 * time.Hour)
	}
	return w, nil
}
