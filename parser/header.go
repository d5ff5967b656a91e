package parser

import (
	"fmt"
	"strings"

	"github.com/aluiziolira/motofit/models"
)

// headerAliases maps accepted CSV header names, lower-cased, to columns.
var headerAliases = map[string]models.Column{
	"marca":             models.ColumnBrand,
	"brand":             models.ColumnBrand,
	"modelo":            models.ColumnModel,
	"model":             models.ColumnModel,
	"precio":            models.ColumnPrice,
	"price":             models.ColumnPrice,
	"potencia":          models.ColumnPower,
	"power":             models.ColumnPower,
	"altura_asiento":    models.ColumnSeatHeight,
	"seat_height":       models.ColumnSeatHeight,
	"peso_vacio":        models.ColumnDryWeight,
	"dry_weight":        models.ColumnDryWeight,
	"cilindrada":        models.ColumnDisplacement,
	"displacement":      models.ColumnDisplacement,
	"carnet_minimo":     models.ColumnMinimumLicense,
	"minimum_license":   models.ColumnMinimumLicense,
	"tipo_simplificado": models.ColumnType,
	"type_simplified":   models.ColumnType,
	"type":              models.ColumnType,
}

// Header records where each known column sits in a CSV record.
type Header struct {
	index map[models.Column]int
	width int
}

// ParseHeader resolves a CSV header row. Unknown columns are ignored; a
// missing essential column is an error.
func ParseHeader(names []string) (*Header, error) {
	h := &Header{index: make(map[models.Column]int), width: len(names)}
	for i, name := range names {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		col, ok := headerAliases[key]
		if !ok {
			continue
		}
		if _, dup := h.index[col]; dup {
			return nil, fmt.Errorf("duplicate column %q", col)
		}
		h.index[col] = i
	}

	var missing []string
	for _, col := range models.EssentialColumns() {
		if _, ok := h.index[col]; !ok {
			missing = append(missing, string(col))
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("header missing essential columns: %s", strings.Join(missing, ", "))
	}
	return h, nil
}

// Columns lists the resolved columns in canonical order.
func (h *Header) Columns() []models.Column {
	out := make([]models.Column, 0, len(h.index))
	for _, col := range models.AllColumns() {
		if _, ok := h.index[col]; ok {
			out = append(out, col)
		}
	}
	return out
}

func (h *Header) field(record []string, col models.Column) string {
	i, ok := h.index[col]
	if !ok || i >= len(record) {
		return ""
	}
	return record[i]
}

func (h *Header) number(record []string, col models.Column) models.Number {
	if _, ok := h.index[col]; !ok {
		return models.Missing()
	}
	return ParseNumber(h.field(record, col))
}
