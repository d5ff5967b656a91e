package pipeline

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/goccy/go-json"

	"github.com/aluiziolira/motofit/models"
)

// CSVWriter writes rows to CSV, one column per configured catalog column.
type CSVWriter struct {
	file    *os.File
	writer  *csv.Writer
	columns []models.Column
	mu      sync.Mutex
}

// NewCSVWriter initialises a CSV writer and writes the header row. An empty
// column list writes every known column.
func NewCSVWriter(filename string, columns []models.Column) (*CSVWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create csv file: %w", err)
	}

	if len(columns) == 0 {
		columns = models.AllColumns()
	}

	writer := csv.NewWriter(f)
	header := make([]string, len(columns))
	for i, col := range columns {
		header[i] = string(col)
	}
	if err := writer.Write(header); err != nil {
		f.Close()
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		f.Close()
		return nil, fmt.Errorf("flush csv header: %w", err)
	}

	return &CSVWriter{
		file:    f,
		writer:  writer,
		columns: columns,
	}, nil
}

// Write appends rows to the CSV output.
func (cw *CSVWriter) Write(rows []Row) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	record := make([]string, len(cw.columns))
	for _, row := range rows {
		if row.Motorcycle == nil {
			continue
		}
		for i, col := range cw.columns {
			record[i] = row.Motorcycle.Text(col)
		}
		if err := cw.writer.Write(record); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv records: %w", err)
	}
	return nil
}

// Close flushes and closes the file handle.
func (cw *CSVWriter) Close() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv writer: %w", err)
	}
	return cw.file.Close()
}

// Validate ensures the file has content besides the header.
func (cw *CSVWriter) Validate() error {
	info, err := cw.file.Stat()
	if err != nil {
		return fmt.Errorf("stat csv file: %w", err)
	}
	if info.Size() <= 0 {
		return fmt.Errorf("csv file is empty")
	}
	return nil
}

// JSONWriter writes newline-delimited JSON objects keyed by column name.
type JSONWriter struct {
	file    *os.File
	writer  *bufio.Writer
	encoder *json.Encoder
	columns []models.Column
	mu      sync.Mutex
}

// NewJSONWriter initialises the JSON writer. An empty column list writes every
// known column.
func NewJSONWriter(filename string, columns []models.Column) (*JSONWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create json file: %w", err)
	}

	if len(columns) == 0 {
		columns = models.AllColumns()
	}

	buffer := bufio.NewWriter(f)
	return &JSONWriter{
		file:    f,
		writer:  buffer,
		encoder: json.NewEncoder(buffer),
		columns: columns,
	}, nil
}

// Write appends rows in JSONL format. Missing numbers encode as null.
func (jw *JSONWriter) Write(rows []Row) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	for _, row := range rows {
		if row.Motorcycle == nil {
			continue
		}
		obj := make(map[string]any, len(jw.columns))
		for _, col := range jw.columns {
			if col.IsNumeric() {
				n, _ := row.Motorcycle.Number(col)
				obj[string(col)] = n
				continue
			}
			obj[string(col)] = row.Motorcycle.Text(col)
		}
		if err := jw.encoder.Encode(obj); err != nil {
			return fmt.Errorf("encode json record: %w", err)
		}
	}

	if err := jw.writer.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}

	return nil
}

// Close flushes buffers and closes the underlying file.
func (jw *JSONWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	if err := jw.writer.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}
	return jw.file.Close()
}

// Validate ensures the JSON file has data.
func (jw *JSONWriter) Validate() error {
	info, err := jw.file.Stat()
	if err != nil {
		return fmt.Errorf("stat json file: %w", err)
	}
	if info.Size() <= 0 {
		return fmt.Errorf("json file is empty")
	}
	return nil
}

// CatalogWriter collects rows in memory and assembles them into a catalog
// in source order.
type CatalogWriter struct {
	mu   sync.Mutex
	rows []Row
}

// NewCatalogWriter returns an empty collector.
func NewCatalogWriter() *CatalogWriter {
	return &CatalogWriter{}
}

// Write buffers rows.
func (w *CatalogWriter) Write(rows []Row) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, row := range rows {
		if row.Motorcycle != nil {
			w.rows = append(w.rows, row)
		}
	}
	return nil
}

// Close is a no-op; the rows stay available to Catalog.
func (w *CatalogWriter) Close() error { return nil }

// Validate always succeeds: an empty catalog is valid.
func (w *CatalogWriter) Validate() error { return nil }

// Catalog sorts the buffered rows by source line and returns them as a
// catalog with the given schema.
func (w *CatalogWriter) Catalog(columns []models.Column) *models.Catalog {
	w.mu.Lock()
	defer w.mu.Unlock()

	sort.SliceStable(w.rows, func(i, j int) bool {
		return w.rows[i].Line < w.rows[j].Line
	})
	out := make([]models.Motorcycle, len(w.rows))
	for i, row := range w.rows {
		out[i] = *row.Motorcycle
	}
	cat := models.NewCatalog(out)
	if len(columns) > 0 {
		cat.Columns = append([]models.Column(nil), columns...)
	}
	return cat
}

// Rows wraps plain motorcycles as pipeline rows numbered from 1.
func Rows(motorcycles []models.Motorcycle) []Row {
	rows := make([]Row, len(motorcycles))
	for i := range motorcycles {
		m := motorcycles[i]
		rows[i] = Row{Line: i + 1, Motorcycle: &m}
	}
	return rows
}

// DisplayRows converts recommendation output back into exportable rows.
func DisplayRows(display []models.DisplayRow) []Row {
	rows := make([]Row, len(display))
	for i, d := range display {
		rows[i] = Row{Line: i + 1, Motorcycle: &models.Motorcycle{
			Brand:      d.Brand,
			Model:      d.Model,
			Type:       d.Type,
			Price:      d.Price,
			SeatHeight: d.SeatHeight,
			Power:      d.Power,
			DryWeight:  d.DryWeight,
		}}
	}
	return rows
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
