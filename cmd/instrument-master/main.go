package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/shpitdev/instrument-master/internal/app"
	"github.com/shpitdev/instrument-master/internal/config"
	"github.com/shpitdev/instrument-master/internal/version"
	"github.com/shpitdev/instrument-master/internal/web"
	"github.com/shpitdev/instrument-master/pkg/export"
	"github.com/shpitdev/instrument-master/pkg/instruments"
	"github.com/shpitdev/instrument-master/pkg/logger"
	"github.com/shpitdev/instrument-master/pkg/masterapi"
	"github.com/shpitdev/instrument-master/pkg/pipeline/core"
	"github.com/shpitdev/instrument-master/pkg/pipeline/io/local"
	"github.com/shpitdev/instrument-master/pkg/pipeline/io/objectstore"
	"github.com/shpitdev/instrument-master/pkg/redact"
)

const (
	exitOK     = 0
	exitFailed = 1
	exitUsage  = 2
	exitNoData = 3
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string) int {
	if len(args) < 1 {
		usage(os.Stderr)
		return exitUsage
	}

	switch args[0] {
	case "help", "-h", "--help":
		usage(os.Stdout)
		return exitOK
	case "fetch":
		return runFetch(ctx, args[1:])
	case "serve":
		return runServe(ctx, args[1:])
	case "segments":
		return runSegments(os.Stdout)
	case "version":
		_, _ = fmt.Fprintln(os.Stdout, version.Current)
		return exitOK
	default:
		_, _ = fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		usage(os.Stderr)
		return exitUsage
	}
}

// commonFlags are shared by fetch and serve. Values left unset fall back to
// the environment, then the config file, then defaults.
type commonFlags struct {
	configPath     *string
	apiURL         *string
	requestTimeout *time.Duration
	rateLimitRPS   *float64
}

func registerCommon(fs *flag.FlagSet) commonFlags {
	return commonFlags{
		configPath:     fs.String("config", os.Getenv("INSTRUMENT_MASTER_CONFIG"), "YAML config file (env: INSTRUMENT_MASTER_CONFIG)"),
		apiURL:         fs.String("api-url", "", "Instrument master API URL (env: API_URL)"),
		requestTimeout: fs.Duration("request-timeout", 0, "Upstream request timeout, 0 for none (env: REQUEST_TIMEOUT)"),
		rateLimitRPS:   fs.Float64("rate-limit-rps", 0, "Upstream fetch rate limit (RPS), 0 disables (env: RATE_LIMIT_RPS)"),
	}
}

func resolve(fs *flag.FlagSet, common commonFlags, extra func(f *flag.Flag, cfg *config.Config)) (config.Config, error) {
	cfg, err := loadSettings(*common.configPath)
	if err != nil {
		return config.Config{}, err
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "api-url":
			cfg.APIURL = *common.apiURL
		case "request-timeout":
			cfg.RequestTimeout = config.Duration(*common.requestTimeout)
		case "rate-limit-rps":
			cfg.RateLimitRPS = *common.rateLimitRPS
		default:
			if extra != nil {
				extra(f, &cfg)
			}
		}
	})
	if err := logger.Init(os.Stderr, cfg.Log.Level, cfg.Log.Format); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func clientOptions(cfg config.Config) masterapi.Options {
	return masterapi.Options{
		Timeout:      time.Duration(cfg.RequestTimeout),
		RateLimitRPS: cfg.RateLimitRPS,
	}
}

func runFetch(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("fetch", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	common := registerCommon(fs)
	segments := fs.String("segments", "", "Comma-separated exchange segments, e.g. NSECM,NSEFO (env: SEGMENTS)")
	output := fs.String("output", "", "Output file, directory, '-' for stdout, or s3://bucket/key (env: OUTPUT)")
	compressionFlag := fs.String("compression", "", "Artifact compression: none|gzip|zstd (env: COMPRESSION)")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	cfg, err := resolve(fs, common, func(f *flag.Flag, cfg *config.Config) {
		switch f.Name {
		case "segments":
			cfg.Segments = splitCSV(*segments)
		case "output":
			cfg.Output = *output
		case "compression":
			cfg.Compression = *compressionFlag
		}
	})
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "config error: %s\n", redact.Secrets(err.Error()))
		return exitUsage
	}

	segs, err := instruments.ParseSegments(cfg.Segments)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "config error: %s\n", err)
		return exitUsage
	}
	if len(segs) == 0 {
		_, _ = fmt.Fprintln(os.Stderr, "error: Please select at least one exchange segment.")
		return exitUsage
	}
	compression, err := export.ParseCompression(cfg.Compression)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "config error: %s\n", err)
		return exitUsage
	}

	client, err := masterapi.NewClient(cfg.APIURL, clientOptions(cfg))
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "config error: %s\n", redact.Secrets(err.Error()))
		return exitUsage
	}
	sink, err := newSink(cfg)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "config error: %s\n", redact.Secrets(err.Error()))
		return exitUsage
	}

	res, err := app.Run(ctx, client, segs, sink, app.Options{Compression: compression})
	switch {
	case errors.Is(err, app.ErrNoRecords):
		_, _ = fmt.Fprintln(os.Stderr, "warning: No valid data returned.")
		return exitNoData
	case err != nil:
		_, _ = fmt.Fprintf(os.Stderr, "Error fetching data: %s\n", redact.Secrets(err.Error()))
		return exitFailed
	}
	_, _ = fmt.Fprintf(os.Stderr, "Data fetched successfully! %d records written to %s\n", len(res.Records), res.Location)
	return exitOK
}

func newSink(cfg config.Config) (core.ArtifactSink, error) {
	if !objectstore.IsTarget(cfg.Output) {
		return local.FileSink{Path: cfg.Output, Stdout: os.Stdout}, nil
	}
	bucket, key, err := objectstore.ParseTarget(cfg.Output)
	if err != nil {
		return nil, err
	}
	client, err := objectstore.NewClient(objectstore.Config{
		Endpoint:        cfg.ObjectStore.Endpoint,
		AccessKeyID:     cfg.ObjectStore.AccessKeyID,
		SecretAccessKey: cfg.ObjectStore.SecretAccessKey,
		Region:          cfg.ObjectStore.Region,
		UseSSL:          cfg.ObjectStore.UseSSL,
	})
	if err != nil {
		return nil, err
	}
	return objectstore.NewSink(client, bucket, key), nil
}

func runServe(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	common := registerCommon(fs)
	addr := fs.String("addr", "", "Listen address (env: LISTEN_ADDR)")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	cfg, err := resolve(fs, common, func(f *flag.Flag, cfg *config.Config) {
		if f.Name == "addr" {
			cfg.ListenAddr = *addr
		}
	})
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "config error: %s\n", redact.Secrets(err.Error()))
		return exitUsage
	}
	defaults, err := instruments.ParseSegments(cfg.Segments)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "config error: %s\n", err)
		return exitUsage
	}

	ui := web.New(web.Config{
		APIURL:          cfg.APIURL,
		DefaultSegments: defaults,
		ClientOptions:   clientOptions(cfg),
	})
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           ui.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("instrument master ui listening", "addr", cfg.ListenAddr, "apiURL", redact.Secrets(cfg.APIURL))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			_, _ = fmt.Fprintf(os.Stderr, "server error: %v\n", err)
			return exitFailed
		}
		return exitOK
	case <-ctx.Done():
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "shutdown error: %v\n", err)
			return exitFailed
		}
		return exitOK
	}
}

func runSegments(w io.Writer) int {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "SEGMENT\tSCHEMA\tCOLUMNS")
	for _, seg := range instruments.Selectable() {
		kind, _ := instruments.Kind(seg)
		schema, _ := instruments.Lookup(seg)
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%d\n", seg, kind, len(schema))
	}
	if err := tw.Flush(); err != nil {
		return exitFailed
	}
	return exitOK
}

func usage(w io.Writer) {
	_, _ = fmt.Fprintf(w, `instrument-master: download the exchange instrument master as CSV

Usage:
  instrument-master <command> [flags]

Commands:
  fetch     Fetch, parse and write instruments_master.csv
  serve     Run the web form that offers the CSV for download
  segments  List selectable exchange segments and their schemas
  version   Print the version

Examples:
  instrument-master fetch --segments NSECM,NSEFO --output instruments_master.csv
  instrument-master fetch --segments NSEFO --compression gzip --output s3://exports/daily/
  instrument-master serve --addr :8501

Environment:
  INSTRUMENT_MASTER_CONFIG  YAML config file path
  API_URL                   Instrument master endpoint
  SEGMENTS                  Comma-separated exchange segments
  OUTPUT                    Output file, directory, '-' or s3://bucket/key
  COMPRESSION               none|gzip|zstd (fetch only; the UI always serves plain CSV)
  REQUEST_TIMEOUT           Upstream request timeout (e.g. 60s)
  RATE_LIMIT_RPS            Upstream fetch rate limit, 0 disables
  LISTEN_ADDR               serve listen address
  LOG_LEVEL, LOG_FORMAT     debug|info|warn|error, json|text
  S3_ENDPOINT, S3_ACCESS_KEY_ID, S3_SECRET_ACCESS_KEY, S3_REGION, S3_USE_SSL

Exit codes:
  0 ok, 1 fetch or write failed, 2 usage or config error, 3 no valid data

`)
}
