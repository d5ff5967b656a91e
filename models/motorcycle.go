// Package models defines the catalog data structures shared across motofit.
package models

import "time"

// Motorcycle is one catalog row.
type Motorcycle struct {
	Brand          string `csv:"brand" json:"brand"`
	Model          string `csv:"model" json:"model"`
	Price          Number `csv:"price" json:"price"`
	Power          Number `csv:"power" json:"power"`
	SeatHeight     Number `csv:"seat_height" json:"seat_height"`
	DryWeight      Number `csv:"dry_weight" json:"dry_weight"`
	Displacement   Number `csv:"displacement" json:"displacement"`
	MinimumLicense string `csv:"minimum_license" json:"minimum_license"`
	Type           string `csv:"type_simplified" json:"type_simplified"`
}

// Number returns the numeric field backing col.
func (m *Motorcycle) Number(col Column) (Number, bool) {
	switch col {
	case ColumnPrice:
		return m.Price, true
	case ColumnPower:
		return m.Power, true
	case ColumnSeatHeight:
		return m.SeatHeight, true
	case ColumnDryWeight:
		return m.DryWeight, true
	case ColumnDisplacement:
		return m.Displacement, true
	default:
		return Number{}, false
	}
}

// Text returns the textual representation of col, "" when missing.
func (m *Motorcycle) Text(col Column) string {
	switch col {
	case ColumnBrand:
		return m.Brand
	case ColumnModel:
		return m.Model
	case ColumnMinimumLicense:
		return m.MinimumLicense
	case ColumnType:
		return m.Type
	}
	if n, ok := m.Number(col); ok {
		return n.String()
	}
	return ""
}

// DisplayRow is the projected view of a Motorcycle returned by a recommendation.
type DisplayRow struct {
	Brand      string `csv:"brand" json:"brand"`
	Model      string `csv:"model" json:"model"`
	Type       string `csv:"type_simplified" json:"type_simplified"`
	Price      Number `csv:"price" json:"price"`
	SeatHeight Number `csv:"seat_height" json:"seat_height"`
	Power      Number `csv:"power" json:"power"`
	DryWeight  Number `csv:"dry_weight" json:"dry_weight"`
}

// LoadResult summarises one catalog load.
type LoadResult struct {
	Source        string
	StartTime     time.Time
	EndTime       time.Time
	RowsRead      int
	RowsKept      int
	RowsRejected  int
	RejectReasons map[string]int
	RetryCount    int
	RequestCount  int
}

// Duration is the wall time of the load.
func (r *LoadResult) Duration() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}
