package recommend

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/aluiziolira/motofit/models"
)

// Query holds a rider's constraints. Bounds are inclusive. PriceMin < PriceMax
// is the caller's responsibility.
type Query struct {
	PriceMin        float64
	PriceMax        float64
	DisplacementMin float64
	DisplacementMax float64
	License         string
	RiderHeight     float64
	Brands          []string
	Types           []string
	SortKey         models.Column
	SortAscending   bool
}

// DefaultQuery mirrors the initial state of the search form.
func DefaultQuery() Query {
	return Query{
		PriceMin:        0,
		PriceMax:        7000,
		DisplacementMin: 0,
		DisplacementMax: 750,
		License:         "A2",
		RiderHeight:     175,
		SortKey:         models.ColumnPrice,
		SortAscending:   true,
	}
}

// SortKeys lists the columns a result can be ordered by.
func SortKeys() []models.Column {
	return []models.Column{
		models.ColumnPrice,
		models.ColumnPower,
		models.ColumnSeatHeight,
		models.ColumnDryWeight,
	}
}

// ValidSortKey reports whether col is one of SortKeys.
func ValidSortKey(col models.Column) bool {
	return slices.Contains(SortKeys(), col)
}

// Key returns a canonical string for the query, suitable as a cache key.
// Brand and type sets are order-insensitive.
func (q Query) Key() string {
	brands := slices.Clone(q.Brands)
	slices.Sort(brands)
	types := slices.Clone(q.Types)
	slices.Sort(types)

	var b strings.Builder
	fmt.Fprintf(&b, "p=%s..%s;d=%s..%s;l=%s;h=%s;s=%s;a=%t",
		formatFloat(q.PriceMin), formatFloat(q.PriceMax),
		formatFloat(q.DisplacementMin), formatFloat(q.DisplacementMax),
		strings.ToUpper(q.License), formatFloat(q.RiderHeight),
		q.SortKey, q.SortAscending,
	)
	b.WriteString(";b=")
	b.WriteString(strings.Join(brands, "\x1f"))
	b.WriteString(";t=")
	b.WriteString(strings.Join(types, "\x1f"))
	return b.String()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
