// Package recommend filters and ranks a motorcycle catalog against a rider's
// constraints.
//
// Recommend is a pure function: it never mutates the catalog and holds no
// state, so concurrent calls are safe as long as the catalog itself is not
// modified while they run.
package recommend

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/aluiziolira/motofit/models"
)

// Result is the projected, ordered output of a recommendation.
type Result struct {
	Columns []models.Column     `json:"columns"`
	Rows    []models.DisplayRow `json:"rows"`
}

// Empty reports whether no motorcycle matched.
func (r *Result) Empty() bool {
	return r == nil || len(r.Rows) == 0
}

// Len returns the number of rows.
func (r *Result) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Rows)
}

// DisplayColumns is the fixed projection applied to every result.
func DisplayColumns() []models.Column {
	return []models.Column{
		models.ColumnBrand,
		models.ColumnModel,
		models.ColumnType,
		models.ColumnPrice,
		models.ColumnSeatHeight,
		models.ColumnPower,
		models.ColumnDryWeight,
	}
}

type predicate func(m *models.Motorcycle) bool

// Recommend applies q to cat and returns the matching motorcycles.
//
// An unknown license code yields an empty result and a nil error, whatever
// the other constraints. A sort key outside SortKeys, or one the catalog
// schema does not carry, is rejected.
func Recommend(cat *models.Catalog, q Query) (*Result, error) {
	if !ValidSortKey(q.SortKey) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSortKey, q.SortKey)
	}
	columns := projection(cat)
	userRank, ok := LicenseRank(q.License)
	if !ok || cat == nil || cat.Len() == 0 {
		return &Result{Columns: columns, Rows: []models.DisplayRow{}}, nil
	}
	if !cat.HasColumn(q.SortKey) {
		return nil, fmt.Errorf("%w: %q", ErrSortKeyUnavailable, q.SortKey)
	}

	maxSeat := MaxSeatHeight(q.RiderHeight)
	filters := []predicate{
		within(models.ColumnPrice, q.PriceMin, q.PriceMax),
		within(models.ColumnDisplacement, q.DisplacementMin, q.DisplacementMax),
		func(m *models.Motorcycle) bool {
			rank, ok := rowLicenseRank(m.MinimumLicense)
			return ok && rank <= userRank
		},
		func(m *models.Motorcycle) bool {
			seat, ok := m.SeatHeight.Float()
			return ok && seat <= maxSeat
		},
		memberOf(q.Brands, func(m *models.Motorcycle) string { return m.Brand }),
		memberOf(q.Types, func(m *models.Motorcycle) string { return m.Type }),
		func(m *models.Motorcycle) bool {
			n, _ := m.Number(q.SortKey)
			_, ok := n.Float()
			return ok
		},
	}

	matched := make([]*models.Motorcycle, 0, len(cat.Rows))
	for i := range cat.Rows {
		m := &cat.Rows[i]
		if matchesAll(m, filters) {
			matched = append(matched, m)
		}
	}

	slices.SortStableFunc(matched, func(a, b *models.Motorcycle) int {
		av, _ := a.Number(q.SortKey)
		bv, _ := b.Number(q.SortKey)
		c := cmp.Compare(av.Value, bv.Value)
		if !q.SortAscending {
			c = -c
		}
		return c
	})

	rows := make([]models.DisplayRow, len(matched))
	for i, m := range matched {
		rows[i] = Project(m, cat)
	}
	return &Result{Columns: columns, Rows: rows}, nil
}

func within(col models.Column, lo, hi float64) predicate {
	return func(m *models.Motorcycle) bool {
		n, _ := m.Number(col)
		v, ok := n.Float()
		return ok && lo <= v && v <= hi
	}
}

func memberOf(allowed []string, field func(*models.Motorcycle) string) predicate {
	if len(allowed) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(allowed))
	for _, v := range allowed {
		set[v] = struct{}{}
	}
	return func(m *models.Motorcycle) bool {
		_, ok := set[field(m)]
		return ok
	}
}

func matchesAll(m *models.Motorcycle, filters []predicate) bool {
	for _, keep := range filters {
		if keep != nil && !keep(m) {
			return false
		}
	}
	return true
}

func projection(cat *models.Catalog) []models.Column {
	out := make([]models.Column, 0, len(DisplayColumns()))
	for _, col := range DisplayColumns() {
		if cat.HasColumn(col) {
			out = append(out, col)
		}
	}
	return out
}

// Project copies the display fields present in the catalog schema; absent
// columns stay zero (missing).
func Project(m *models.Motorcycle, cat *models.Catalog) models.DisplayRow {
	var row models.DisplayRow
	if cat.HasColumn(models.ColumnBrand) {
		row.Brand = m.Brand
	}
	if cat.HasColumn(models.ColumnModel) {
		row.Model = m.Model
	}
	if cat.HasColumn(models.ColumnType) {
		row.Type = m.Type
	}
	if cat.HasColumn(models.ColumnPrice) {
		row.Price = m.Price
	}
	if cat.HasColumn(models.ColumnSeatHeight) {
		row.SeatHeight = m.SeatHeight
	}
	if cat.HasColumn(models.ColumnPower) {
		row.Power = m.Power
	}
	if cat.HasColumn(models.ColumnDryWeight) {
		row.DryWeight = m.DryWeight
	}
	return row
}

// Negotiate checks once, up front, that schema provides every required column.
func Negotiate(schema []models.Column, required []models.Column) error {
	var missing []models.Column
	for _, col := range required {
		if !slices.Contains(schema, col) {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return &MissingColumnsError{Columns: missing}
	}
	return nil
}
