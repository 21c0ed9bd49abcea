package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shpitdev/instrument-master/pkg/export"
	"github.com/shpitdev/instrument-master/pkg/instruments"
	"github.com/shpitdev/instrument-master/pkg/pipeline/core"
	"github.com/shpitdev/instrument-master/pkg/redact"
)

var (
	// ErrNoSegments is returned before any request when nothing is selected.
	ErrNoSegments = errors.New("no exchange segments selected")

	// ErrNoRecords is returned when the feed has no parsable lines.
	ErrNoRecords = errors.New("no valid data returned")
)

// Options control one fetch-parse-export cycle.
type Options struct {
	Compression export.Compression

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Result is the outcome of a successful cycle.
type Result struct {
	RunID    string
	Records  []instruments.Record
	Stats    instruments.Stats
	Artifact core.Artifact
	// Location is where the artifact was stored; empty when no sink was used.
	Location string
	Duration time.Duration
}

// FetchMaster fetches the feed for segments, parses it and encodes the CSV
// artifact. It issues exactly one request and never retries.
func FetchMaster(ctx context.Context, fetcher core.FeedFetcher, segments []instruments.Segment, opts Options) (Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	res := Result{RunID: uuid.NewString()}
	logger = logger.With("run", res.RunID)
	start := time.Now()

	if len(segments) == 0 {
		return res, ErrNoSegments
	}
	wire := instruments.Strings(segments)
	logger.Info("fetching instrument master", "segments", wire)

	payload, err := fetcher.FetchMaster(ctx, wire)
	if err != nil {
		logger.Error("instrument master fetch failed", "error", redact.Secrets(err.Error()))
		return res, fmt.Errorf("fetch instrument master: %w", err)
	}
	fetched := time.Since(start)

	records, stats := instruments.ParseFeed(payload)
	res.Stats = stats
	logger.Debug("parsed instrument master feed",
		"lines", stats.Lines,
		"parsed", stats.Parsed,
		"padded", stats.Padded,
		"unknownSegment", stats.UnknownSegment,
		"fieldCount", stats.FieldCount,
	)
	if len(records) == 0 {
		logger.Warn("instrument master returned no valid data", "lines", stats.Lines, "fetchDuration", fetched.Round(time.Millisecond))
		return res, ErrNoRecords
	}
	res.Records = records

	data, err := export.EncodeCSV(records)
	if err != nil {
		return res, fmt.Errorf("encode csv: %w", err)
	}
	name, data, err := export.Compress(export.DefaultFilename, data, opts.Compression)
	if err != nil {
		return res, err
	}
	res.Artifact = core.Artifact{
		Name:        name,
		ContentType: opts.Compression.ContentType(),
		Data:        data,
	}
	res.Duration = time.Since(start)

	logger.Info("instrument master ready",
		"records", len(records),
		"dropped", stats.Dropped(),
		"artifact", name,
		"bytes", len(data),
		"fetchDuration", fetched.Round(time.Millisecond),
		"totalDuration", res.Duration.Round(time.Millisecond),
	)
	return res, nil
}

// Run performs one cycle and stores the artifact with sink.
func Run(ctx context.Context, fetcher core.FeedFetcher, segments []instruments.Segment, sink core.ArtifactSink, opts Options) (Result, error) {
	res, err := FetchMaster(ctx, fetcher, segments, opts)
	if err != nil {
		return res, err
	}
	loc, err := sink.Store(ctx, res.Artifact)
	if err != nil {
		return res, fmt.Errorf("store %s: %w", res.Artifact.Name, err)
	}
	res.Location = loc

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("instrument master stored", "run", res.RunID, "location", loc)
	return res, nil
}
