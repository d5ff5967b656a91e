// Package pipeline turns raw catalog records into validated rows and hands
// them to an OutputWriter in batches.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aluiziolira/motofit/config"
	"github.com/aluiziolira/motofit/models"
	"github.com/aluiziolira/motofit/parser"
)

var (
	// ErrPipelineClosed is returned when Process is called after shutdown.
	ErrPipelineClosed = errors.New("pipeline: closed")
	// ErrPipelineCloseTimeout is returned when workers fail to drain in time.
	ErrPipelineCloseTimeout = errors.New("pipeline: close timed out")
)

// drainTimeout bounds how long Close waits for workers.
var drainTimeout = 30 * time.Second

// Rejection reasons reported by GetMetrics.
const (
	RejectMalformed        = "malformed_record"
	RejectMissingEssential = "missing_essential"
)

// Record is one raw CSV record with its position in the source.
type Record struct {
	Line   int
	Fields []string
}

// Row is a parsed, validated motorcycle with the line it came from.
type Row struct {
	Line       int
	Motorcycle *models.Motorcycle
}

// OutputWriter defines the interface for row output.
type OutputWriter interface {
	Write(rows []Row) error
	Close() error
	Validate() error
}

// Pipeline coordinates parsing, validation, and output writing.
type Pipeline struct {
	writer    OutputWriter
	header    *parser.Header
	recordCh  chan Record
	batchSize int
	logger    *slog.Logger

	wg sync.WaitGroup

	metrics metrics

	mu     sync.Mutex // guards closed/err
	closed bool
	err    error

	closeOnce    sync.Once
	shutdown     chan struct{}
	shutdownOnce sync.Once
}

// NewPipeline builds a pipeline sized from cfg. Cancelling ctx stops intake.
func NewPipeline(ctx context.Context, writer OutputWriter, header *parser.Header, cfg *config.Config) *Pipeline {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	batchSize := cfg.Catalog.BatchSize
	if batchSize <= 0 {
		batchSize = 64
	}
	bufferSize := cfg.Catalog.BufferSize
	if bufferSize <= 0 {
		bufferSize = 512
	}

	p := &Pipeline{
		writer:    writer,
		header:    header,
		recordCh:  make(chan Record, bufferSize),
		batchSize: batchSize,
		logger:    slog.Default(),
		metrics:   newMetrics(),
		shutdown:  make(chan struct{}),
	}

	if ctx != nil && ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				p.setErr(ctx.Err())
			case <-p.shutdown:
			}
		}()
	}
	return p
}

// WithLogger overrides the logger used for progress reporting.
func (p *Pipeline) WithLogger(logger *slog.Logger) *Pipeline {
	if logger != nil {
		p.logger = logger
	}
	return p
}

// Start launches worker goroutines.
func (p *Pipeline) Start(workers int) {
	if workers <= 0 {
		workers = 1
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// Process enqueues records for downstream processing.
func (p *Pipeline) Process(records ...Record) error {
	if len(records) == 0 {
		return nil
	}

	closed, err := p.state()
	if err != nil {
		return err
	}
	if closed {
		return ErrPipelineClosed
	}

	for _, rec := range records {
		if err := p.enqueue(rec); err != nil {
			return err
		}
	}
	return nil
}

// Close stops intake and waits up to drainTimeout for workers to flush.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	p.closeOnce.Do(func() {
		close(p.recordCh)
	})

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(drainTimeout)
	defer timer.Stop()

	select {
	case <-done:
	case <-timer.C:
		p.signalShutdown()
		return fmt.Errorf("%w after %s", ErrPipelineCloseTimeout, drainTimeout)
	}

	p.signalShutdown()
	return p.Err()
}

// Err returns the first error encountered during processing.
func (p *Pipeline) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// GetMetrics returns a snapshot of the internal counters.
func (p *Pipeline) GetMetrics() map[string]interface{} {
	return p.metrics.snapshot()
}

// Processed is the number of rows handed to the writer.
func (p *Pipeline) Processed() int {
	return int(p.metrics.processedCount())
}

// RejectReasons copies the rejection counters.
func (p *Pipeline) RejectReasons() map[string]int {
	return p.metrics.rejectedCopy()
}

// StartMetricsReporting emits periodic progress logs.
func (p *Pipeline) StartMetricsReporting(interval time.Duration) {
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				p.logger.Info("pipeline progress",
					slog.Int64("processed", p.metrics.processedCount()),
					slog.Any("rejected", p.metrics.rejectedCopy()),
				)
			case <-p.shutdown:
				return
			}
		}
	}()
}

func (p *Pipeline) worker() {
	defer p.wg.Done()

	batch := make([]Row, 0, p.batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := p.writer.Write(batch); err != nil {
			return err
		}
		batch = batch[:0]
		return nil
	}

	for rec := range p.recordCh {
		row, ok := p.prepare(rec)
		if !ok {
			continue
		}
		batch = append(batch, row)
		if len(batch) >= p.batchSize {
			if err := flush(); err != nil {
				p.setErr(fmt.Errorf("write batch: %w", err))
				return
			}
		}
	}

	if err := flush(); err != nil {
		p.setErr(fmt.Errorf("write batch: %w", err))
	}
}

func (p *Pipeline) prepare(rec Record) (Row, bool) {
	m, err := parser.ParseRecord(p.header, rec.Fields)
	if err != nil {
		p.metrics.addRejected(RejectMalformed)
		p.logger.Debug("record rejected", slog.Int("line", rec.Line), slog.Any("error", err))
		return Row{}, false
	}
	if err := parser.ValidateMotorcycle(m); err != nil {
		p.metrics.addRejected(RejectMissingEssential)
		p.logger.Debug("record rejected", slog.Int("line", rec.Line), slog.Any("error", err))
		return Row{}, false
	}

	p.metrics.incrementProcessed()
	return Row{Line: rec.Line, Motorcycle: m}, true
}

func (p *Pipeline) enqueue(rec Record) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = ErrPipelineClosed
		}
	}()

	select {
	case <-p.shutdown:
		if perr := p.Err(); perr != nil {
			return perr
		}
		return ErrPipelineClosed
	case p.recordCh <- rec:
		return nil
	}
}

func (p *Pipeline) setErr(err error) {
	if err == nil {
		return
	}

	p.mu.Lock()
	if p.err != nil {
		p.mu.Unlock()
		return
	}
	p.err = err
	p.closed = true
	p.mu.Unlock()

	p.signalShutdown()
	p.closeOnce.Do(func() {
		close(p.recordCh)
	})
}

func (p *Pipeline) state() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed, p.err
}

func (p *Pipeline) signalShutdown() {
	p.shutdownOnce.Do(func() {
		close(p.shutdown)
	})
}

type metrics struct {
	mu        sync.Mutex
	processed int64
	rejected  map[string]int
}

func newMetrics() metrics {
	return metrics{
		rejected: make(map[string]int),
	}
}

func (m *metrics) incrementProcessed() {
	m.mu.Lock()
	m.processed++
	m.mu.Unlock()
}

func (m *metrics) addRejected(reason string) {
	m.mu.Lock()
	m.rejected[reason]++
	m.mu.Unlock()
}

func (m *metrics) processedCount() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.processed
}

func (m *metrics) rejectedCopy() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int, len(m.rejected))
	for k, v := range m.rejected {
		out[k] = v
	}
	return out
}

func (m *metrics) snapshot() map[string]interface{} {
	return map[string]interface{}{
		"processed_rows": m.processedCount(),
		"rejected_rows":  m.rejectedCopy(),
	}
}
