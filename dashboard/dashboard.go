// Package dashboard computes the catalog analytics view: headline figures,
// seat height and price distributions by type, price against power and the
// license mix per type.
package dashboard

import (
	"errors"
	"math"
	"slices"
	"sort"
	"strings"

	"github.com/aluiziolira/motofit/models"
)

// ErrNoData is returned when the filter leaves no rows.
var ErrNoData = errors.New("dashboard: no data for the selected filters")

// TypeOrder is the display order of motorcycle types. Types outside it
// follow alphabetically.
var TypeOrder = []string{"Adventure", "Custom", "Naked", "Off-road", "Otro", "Scooter", "Sport", "Tourer"}

// LicenseOrder is the display order of license categories, least to most
// permissive.
var LicenseOrder = []string{"AM", "B", "A1", "A2", "A"}

// Filter narrows the dashboard to one type and one brand. An empty value or
// one of the "all" sentinels leaves that dimension unrestricted.
type Filter struct {
	Type  string `json:"type"`
	Brand string `json:"brand"`
}

// KPIs are the headline figures. Medians ignore missing values and are nil
// when nothing is left.
type KPIs struct {
	Models           int      `json:"models"`
	MedianPrice      *float64 `json:"median_price"`
	MedianSeatHeight *float64 `json:"median_seat_height"`
}

// Domain is a suggested value-axis range.
type Domain struct {
	Lo float64 `json:"lo"`
	Hi float64 `json:"hi"`
}

// Point is one motorcycle on the price against power scatter.
type Point struct {
	Brand string  `json:"brand"`
	Model string  `json:"model"`
	Type  string  `json:"type"`
	Power float64 `json:"power"`
	Price float64 `json:"price"`
}

// LicenseShare is the count and within-type proportion of one license.
type LicenseShare struct {
	License string  `json:"license"`
	Count   int     `json:"count"`
	Share   float64 `json:"share"`
}

// LicenseMix is the license breakdown of one type.
type LicenseMix struct {
	Type   string         `json:"type"`
	Total  int            `json:"total"`
	Shares []LicenseShare `json:"shares"`
}

// Dashboard is the full analytics view model.
type Dashboard struct {
	Filter           Filter       `json:"filter"`
	KPIs             KPIs         `json:"kpis"`
	SeatHeightByType []BoxStats   `json:"seat_height_by_type"`
	SeatHeightDomain *Domain      `json:"seat_height_domain"`
	PriceVsPower     []Point      `json:"price_vs_power"`
	PriceByType      []BoxStats   `json:"price_by_type"`
	LicenseMix       []LicenseMix `json:"license_mix"`
}

// Facets lists the selectable values for the dashboard filters.
type Facets struct {
	Brands []string `json:"brands"`
	Types  []string `json:"types"`
}

// BuildFacets returns the sorted distinct brands and types of cat.
func BuildFacets(cat *models.Catalog) Facets {
	brands := map[string]struct{}{}
	types := map[string]struct{}{}
	if cat != nil {
		for i := range cat.Rows {
			if b := cat.Rows[i].Brand; b != "" {
				brands[b] = struct{}{}
			}
			if t := cat.Rows[i].Type; t != "" {
				types[t] = struct{}{}
			}
		}
	}
	return Facets{Brands: sortedKeys(brands), Types: sortedKeys(types)}
}

// Build computes the dashboard for the rows of cat matching f.
func Build(cat *models.Catalog, f Filter) (*Dashboard, error) {
	rows := filterRows(cat, f)
	if len(rows) == 0 {
		return nil, ErrNoData
	}

	d := &Dashboard{
		Filter:       f,
		PriceVsPower: []Point{},
	}

	var prices, seats []float64
	seatByType := map[string][]float64{}
	priceByType := map[string][]float64{}
	licenseByType := map[string]map[string]int{}

	for _, m := range rows {
		price, hasPrice := m.Price.Float()
		seat, hasSeat := m.SeatHeight.Float()
		power, hasPower := m.Power.Float()

		if hasPrice {
			prices = append(prices, price)
		}
		if hasSeat {
			seats = append(seats, seat)
		}
		if hasPrice && hasPower {
			d.PriceVsPower = append(d.PriceVsPower, Point{
				Brand: m.Brand, Model: m.Model, Type: m.Type, Power: power, Price: price,
			})
		}

		if m.Type == "" {
			continue
		}
		if hasSeat {
			seatByType[m.Type] = append(seatByType[m.Type], seat)
		}
		if hasPrice {
			priceByType[m.Type] = append(priceByType[m.Type], price)
		}
		if m.MinimumLicense != "" {
			if licenseByType[m.Type] == nil {
				licenseByType[m.Type] = map[string]int{}
			}
			licenseByType[m.Type][m.MinimumLicense]++
		}
	}

	d.KPIs = KPIs{
		Models:           len(rows),
		MedianPrice:      median(prices),
		MedianSeatHeight: median(seats),
	}
	d.SeatHeightByType = boxesByType(seatByType)
	d.SeatHeightDomain = seatHeightDomain(seatByType)
	d.PriceByType = boxesByType(priceByType)
	d.LicenseMix = licenseMix(licenseByType)
	return d, nil
}

func isAll(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "all", "todos", "todas":
		return true
	}
	return false
}

func filterRows(cat *models.Catalog, f Filter) []*models.Motorcycle {
	if cat == nil {
		return nil
	}
	var out []*models.Motorcycle
	for i := range cat.Rows {
		m := &cat.Rows[i]
		if !isAll(f.Type) && m.Type != f.Type {
			continue
		}
		if !isAll(f.Brand) && m.Brand != f.Brand {
			continue
		}
		out = append(out, m)
	}
	return out
}

func boxesByType(groups map[string][]float64) []BoxStats {
	out := make([]BoxStats, 0, len(groups))
	for _, t := range orderedKeys(groups, TypeOrder) {
		out = append(out, newBoxStats(t, groups[t]))
	}
	return out
}

// seatHeightDomain pads the 2nd–98th percentile range so outliers stay
// visible, never starting below 600 mm.
func seatHeightDomain(groups map[string][]float64) *Domain {
	var all []float64
	for _, vals := range groups {
		all = append(all, vals...)
	}
	if len(all) == 0 {
		return nil
	}
	sorted := sortedCopy(all)
	q02 := quantile(sorted, 0.02)
	q98 := quantile(sorted, 0.98)
	vmin, vmax := sorted[0], sorted[len(sorted)-1]
	return &Domain{
		Lo: math.Max(600, math.Min(q02-20, vmin-15)),
		Hi: math.Max(q98+20, vmax+20),
	}
}

func licenseMix(byType map[string]map[string]int) []LicenseMix {
	out := make([]LicenseMix, 0, len(byType))
	for _, t := range orderedKeys(byType, TypeOrder) {
		counts := byType[t]
		mix := LicenseMix{Type: t}
		for _, n := range counts {
			mix.Total += n
		}
		for _, lic := range orderedKeys(counts, LicenseOrder) {
			mix.Shares = append(mix.Shares, LicenseShare{
				License: lic,
				Count:   counts[lic],
				Share:   float64(counts[lic]) / float64(mix.Total),
			})
		}
		out = append(out, mix)
	}
	return out
}

// orderedKeys lists the keys of m in preferred order, then any others
// alphabetically.
func orderedKeys[V any](m map[string]V, preferred []string) []string {
	out := make([]string, 0, len(m))
	for _, k := range preferred {
		if _, ok := m[k]; ok {
			out = append(out, k)
		}
	}
	var rest []string
	for k := range m {
		if !slices.Contains(preferred, k) {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
