package pipeline

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/aluiziolira/motofit/config"
	"github.com/aluiziolira/motofit/models"
	"github.com/aluiziolira/motofit/parser"
)

type mockWriter struct {
	mu          sync.Mutex
	batches     [][]Row
	closed      bool
	validateErr error
}

func (mw *mockWriter) Write(rows []Row) error {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	copyBatch := make([]Row, len(rows))
	copy(copyBatch, rows)
	mw.batches = append(mw.batches, copyBatch)
	return nil
}

func (mw *mockWriter) Close() error {
	mw.mu.Lock()
	mw.closed = true
	mw.mu.Unlock()
	return nil
}

func (mw *mockWriter) Validate() error {
	return mw.validateErr
}

func (mw *mockWriter) totalWritten() int {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	total := 0
	for _, batch := range mw.batches {
		total += len(batch)
	}
	return total
}

func (mw *mockWriter) batchSizes() []int {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	sizes := make([]int, 0, len(mw.batches))
	for _, batch := range mw.batches {
		sizes = append(sizes, len(batch))
	}
	return sizes
}

type blockingWriter struct {
	blockCh chan struct{}
}

func (bw *blockingWriter) Write(rows []Row) error {
	<-bw.blockCh
	return nil
}

func (bw *blockingWriter) Close() error {
	return nil
}

func (bw *blockingWriter) Validate() error {
	return nil
}

type failingWriter struct{}

func (failingWriter) Write(rows []Row) error { return errors.New("disk full") }
func (failingWriter) Close() error           { return nil }
func (failingWriter) Validate() error        { return nil }

var testColumns = []string{"MARCA", "MODELO", "PRECIO", "POTENCIA", "ALTURA_ASIENTO", "PESO_VACIO", "CILINDRADA", "CARNET_MINIMO", "TIPO_SIMPLIFICADO"}

func testHeader(t *testing.T) *parser.Header {
	t.Helper()
	h, err := parser.ParseHeader(testColumns)
	if err != nil {
		t.Fatalf("parse header: %v", err)
	}
	return h
}

func bikeRecord(line int, model string) Record {
	return Record{
		Line:   line,
		Fields: []string{"Honda", model, "6.500 €", "47 cv", "785", "189", "471", "a2", "Naked"},
	}
}

func TestPipelineProcessValidation(t *testing.T) {
	cfg := config.DefaultConfig()
	writer := &mockWriter{}
	p := NewPipeline(context.Background(), writer, testHeader(t), cfg)
	p.Start(1)

	valid := bikeRecord(1, "CB500F")
	missingPrice := bikeRecord(2, "CB650R")
	missingPrice.Fields[2] = "consultar"
	short := Record{Line: 3, Fields: []string{"Honda", "CB125R"}}

	if err := p.Process(valid, missingPrice, short); err != nil {
		t.Fatalf("process: %v", err)
	}

	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if got := writer.totalWritten(); got != 1 {
		t.Fatalf("written rows = %d, want 1", got)
	}

	metrics := p.GetMetrics()
	rejected, ok := metrics["rejected_rows"].(map[string]int)
	if !ok {
		t.Fatalf("expected rejected rows map")
	}
	if rejected[RejectMissingEssential] != 1 {
		t.Fatalf("expected one %s rejection, got %v", RejectMissingEssential, rejected)
	}
	if rejected[RejectMalformed] != 1 {
		t.Fatalf("expected one %s rejection, got %v", RejectMalformed, rejected)
	}
	if processed := metrics["processed_rows"].(int64); processed != 1 {
		t.Fatalf("processed = %d, want 1", processed)
	}

	row := writer.batches[0][0]
	if row.Motorcycle.MinimumLicense != "A2" {
		t.Fatalf("license = %q, want A2", row.Motorcycle.MinimumLicense)
	}
	if v, _ := row.Motorcycle.Price.Float(); v != 6.5 {
		t.Fatalf("price = %v, want 6.5", v)
	}
}

func TestPipelineBatchFlushThreshold(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Catalog.BatchSize = 64
	writer := &mockWriter{}
	p := NewPipeline(context.Background(), writer, testHeader(t), cfg)
	p.Start(1)

	for i := 0; i < 65; i++ {
		if err := p.Process(bikeRecord(i+1, "CB"+strconv.Itoa(i))); err != nil {
			t.Fatalf("process: %v", err)
		}
	}

	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	sizes := writer.batchSizes()
	if len(sizes) != 2 {
		t.Fatalf("batch writes = %d, want 2", len(sizes))
	}
	if sizes[0] != 64 || sizes[1] != 1 {
		t.Fatalf("batch sizes = %v, want [64 1]", sizes)
	}
}

func TestPipelineCatalogPreservesSourceOrder(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Catalog.BatchSize = 3
	writer := NewCatalogWriter()
	h := testHeader(t)
	p := NewPipeline(context.Background(), writer, h, cfg)
	p.Start(4)

	for i := 0; i < 100; i++ {
		if err := p.Process(bikeRecord(i+1, "M"+strconv.Itoa(i))); err != nil {
			t.Fatalf("process: %v", err)
		}
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	cat := writer.Catalog(h.Columns())
	if cat.Len() != 100 {
		t.Fatalf("catalog rows = %d, want 100", cat.Len())
	}
	for i, m := range cat.Rows {
		if want := "M" + strconv.Itoa(i); m.Model != want {
			t.Fatalf("row %d model = %q, want %q", i, m.Model, want)
		}
	}
	if !cat.HasColumn(models.ColumnDryWeight) {
		t.Fatalf("expected dry weight in schema")
	}
}

func TestPipelineCloseTimeout(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Catalog.BatchSize = 1

	writer := &blockingWriter{blockCh: make(chan struct{})}
	p := NewPipeline(context.Background(), writer, testHeader(t), cfg)
	p.Start(1)

	if err := p.Process(bikeRecord(1, "Blocked")); err != nil {
		t.Fatalf("process: %v", err)
	}

	previousTimeout := drainTimeout
	drainTimeout = 25 * time.Millisecond
	t.Cleanup(func() {
		drainTimeout = previousTimeout
		close(writer.blockCh)
	})

	if err := p.Close(); err == nil || !errors.Is(err, ErrPipelineCloseTimeout) {
		t.Fatalf("expected close timeout error, got %v", err)
	}
}

func TestPipelineWriterErrorStopsIntake(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Catalog.BatchSize = 1
	p := NewPipeline(context.Background(), failingWriter{}, testHeader(t), cfg)
	p.Start(1)

	_ = p.Process(bikeRecord(1, "A"))
	err := p.Close()
	if err == nil {
		t.Fatalf("expected write error")
	}
	if err := p.Process(bikeRecord(2, "B")); err == nil {
		t.Fatalf("expected process after failure to error")
	}
}

func TestPipelineContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := NewPipeline(ctx, &mockWriter{}, testHeader(t), config.DefaultConfig())
	p.Start(1)
	cancel()

	deadline := time.Now().Add(time.Second)
	for p.Err() == nil && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if !errors.Is(p.Err(), context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", p.Err())
	}
	if err := p.Process(bikeRecord(1, "late")); err == nil {
		t.Fatalf("expected process after cancel to fail")
	}
}

func TestPipelineProcessAfterClose(t *testing.T) {
	p := NewPipeline(context.Background(), &mockWriter{}, testHeader(t), config.DefaultConfig())
	p.Start(1)
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := p.Process(bikeRecord(1, "late")); !errors.Is(err, ErrPipelineClosed) {
		t.Fatalf("expected ErrPipelineClosed, got %v", err)
	}
}
