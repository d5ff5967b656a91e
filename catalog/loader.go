// Package catalog loads motorcycle catalogs and publishes them to readers.
package catalog

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aluiziolira/motofit/config"
	"github.com/aluiziolira/motofit/metrics"
	"github.com/aluiziolira/motofit/models"
	"github.com/aluiziolira/motofit/parser"
	"github.com/aluiziolira/motofit/pipeline"
	"github.com/aluiziolira/motofit/source"
)

// ErrEmptySource is returned when a catalog has no header row.
var ErrEmptySource = errors.New("catalog: source is empty")

// Loader reads a catalog source through the record pipeline.
type Loader struct {
	cfg     *config.Config
	fetcher *source.Fetcher
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewLoader builds a loader. m may be nil.
func NewLoader(cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) *Loader {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		cfg:     cfg,
		fetcher: source.NewFetcher(cfg, m).WithLogger(logger),
		metrics: m,
		logger:  logger,
	}
}

// Fetcher exposes the underlying fetcher, mainly so tests can swap transports.
func (l *Loader) Fetcher() *source.Fetcher {
	return l.fetcher
}

// Load opens location and parses it into a catalog.
func (l *Loader) Load(ctx context.Context, location string) (*models.Catalog, *models.LoadResult, error) {
	start := time.Now()
	requestsBefore := l.fetcher.RequestCount()
	retriesBefore := l.fetcher.RetryCount()

	rc, err := l.fetcher.Open(ctx, location)
	if err != nil {
		l.metrics.ObserveCatalogLoad("error", 0, 0)
		return nil, nil, fmt.Errorf("open %s: %w", location, err)
	}
	defer rc.Close()

	cat, result, err := l.Read(ctx, rc, location)
	if result != nil {
		result.StartTime = start
		result.RequestCount = l.fetcher.RequestCount() - requestsBefore
		result.RetryCount = l.fetcher.RetryCount() - retriesBefore
	}
	return cat, result, err
}

// Read parses CSV from r. The header must carry every essential column;
// rows that are malformed or lack an essential value are dropped and counted.
func (l *Loader) Read(ctx context.Context, r io.Reader, name string) (*models.Catalog, *models.LoadResult, error) {
	result := &models.LoadResult{
		Source:        name,
		StartTime:     time.Now(),
		RejectReasons: make(map[string]int),
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	names, err := reader.Read()
	if errors.Is(err, io.EOF) {
		l.metrics.ObserveCatalogLoad("error", 0, 0)
		return nil, result, ErrEmptySource
	}
	if err != nil {
		l.metrics.ObserveCatalogLoad("error", 0, 0)
		return nil, result, fmt.Errorf("read header: %w", err)
	}
	header, err := parser.ParseHeader(names)
	if err != nil {
		l.metrics.ObserveCatalogLoad("error", 0, 0)
		return nil, result, fmt.Errorf("parse header: %w", err)
	}

	writer := pipeline.NewCatalogWriter()
	p := pipeline.NewPipeline(ctx, writer, header, l.cfg).WithLogger(l.logger)
	p.Start(l.cfg.Catalog.Workers)
	p.StartMetricsReporting(l.cfg.Catalog.ProgressLog)

	line := 1
	for {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		result.RowsRead++
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				result.RejectReasons[pipeline.RejectMalformed]++
				continue
			}
			p.Close()
			l.metrics.ObserveCatalogLoad("error", 0, 0)
			return nil, result, fmt.Errorf("read record %d: %w", line, err)
		}
		if err := p.Process(pipeline.Record{Line: line, Fields: fields}); err != nil {
			p.Close()
			l.metrics.ObserveCatalogLoad("error", 0, 0)
			return nil, result, fmt.Errorf("process record %d: %w", line, err)
		}
	}

	if err := p.Close(); err != nil {
		l.metrics.ObserveCatalogLoad("error", 0, 0)
		return nil, result, fmt.Errorf("drain pipeline: %w", err)
	}

	for reason, n := range p.RejectReasons() {
		result.RejectReasons[reason] += n
	}
	for _, n := range result.RejectReasons {
		result.RowsRejected += n
	}
	result.RowsKept = p.Processed()
	result.EndTime = time.Now()

	cat := writer.Catalog(header.Columns())
	cat.Source = name
	cat.LoadedAt = result.EndTime

	l.metrics.ObserveCatalogLoad("ok", result.RowsKept, result.RowsRejected)
	l.logger.Info("catalog loaded",
		slog.String("source", name),
		slog.Int("rows_read", result.RowsRead),
		slog.Int("rows_kept", result.RowsKept),
		slog.Int("rows_rejected", result.RowsRejected),
		slog.Duration("duration", result.Duration()),
	)
	return cat, result, nil
}
