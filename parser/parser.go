// Package parser turns raw catalog text into typed motorcycle rows.
package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aluiziolira/motofit/models"
)

// ValidateMotorcycle ensures the row carries every essential field.
func ValidateMotorcycle(m *models.Motorcycle) error {
	if m == nil {
		return fmt.Errorf("motorcycle is nil")
	}
	if strings.TrimSpace(m.Brand) == "" {
		return fmt.Errorf("motorcycle missing brand")
	}
	if strings.TrimSpace(m.Type) == "" {
		return fmt.Errorf("motorcycle missing type for %s", m.Model)
	}
	if strings.TrimSpace(m.MinimumLicense) == "" {
		return fmt.Errorf("motorcycle missing license for %s", m.Model)
	}
	if _, ok := m.Price.Float(); !ok {
		return fmt.Errorf("motorcycle missing price for %s", m.Model)
	}
	if _, ok := m.SeatHeight.Float(); !ok {
		return fmt.Errorf("motorcycle missing seat height for %s", m.Model)
	}
	if _, ok := m.Displacement.Float(); !ok {
		return fmt.Errorf("motorcycle missing displacement for %s", m.Model)
	}
	return nil
}

// ParseNumber keeps only digits and dots, then parses what is left. Anything
// that does not survive as a number is missing rather than an error.
func ParseNumber(raw string) models.Number {
	var b strings.Builder
	for _, r := range raw {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if cleaned == "" {
		return models.Missing()
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return models.Missing()
	}
	return models.Num(v)
}

// NormalizeText trims surrounding whitespace.
func NormalizeText(text string) string {
	return strings.TrimSpace(text)
}

// NormalizeLicense trims and upper-cases a license category code.
func NormalizeLicense(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ParseRecord maps one CSV record onto a Motorcycle using h.
func ParseRecord(h *Header, record []string) (*models.Motorcycle, error) {
	if len(record) < h.width {
		return nil, fmt.Errorf("record has %d fields, header has %d", len(record), h.width)
	}
	m := &models.Motorcycle{
		Brand:          NormalizeText(h.field(record, models.ColumnBrand)),
		Model:          NormalizeText(h.field(record, models.ColumnModel)),
		Price:          h.number(record, models.ColumnPrice),
		Power:          h.number(record, models.ColumnPower),
		SeatHeight:     h.number(record, models.ColumnSeatHeight),
		DryWeight:      h.number(record, models.ColumnDryWeight),
		Displacement:   h.number(record, models.ColumnDisplacement),
		MinimumLicense: NormalizeLicense(h.field(record, models.ColumnMinimumLicense)),
		Type:           NormalizeText(h.field(record, models.ColumnType)),
	}
	return m, nil
}
