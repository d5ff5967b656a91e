package dashboard

import (
	"math"
	"sort"
)

// BoxStats summarises one group's distribution for a box plot. Whiskers
// reach the most extreme values within 1.5 IQR of the quartiles.
type BoxStats struct {
	Group        string    `json:"group"`
	Count        int       `json:"count"`
	Min          float64   `json:"min"`
	Q1           float64   `json:"q1"`
	Median       float64   `json:"median"`
	Q3           float64   `json:"q3"`
	Max          float64   `json:"max"`
	LowerWhisker float64   `json:"lower_whisker"`
	UpperWhisker float64   `json:"upper_whisker"`
	Outliers     []float64 `json:"outliers"`
}

func newBoxStats(group string, vals []float64) BoxStats {
	sorted := sortedCopy(vals)
	q1 := quantile(sorted, 0.25)
	q3 := quantile(sorted, 0.75)
	iqr := q3 - q1
	lowFence, highFence := q1-1.5*iqr, q3+1.5*iqr

	box := BoxStats{
		Group:        group,
		Count:        len(sorted),
		Min:          sorted[0],
		Q1:           q1,
		Median:       quantile(sorted, 0.5),
		Q3:           q3,
		Max:          sorted[len(sorted)-1],
		LowerWhisker: q1,
		UpperWhisker: q3,
		Outliers:     []float64{},
	}
	for _, v := range sorted {
		if v < lowFence || v > highFence {
			box.Outliers = append(box.Outliers, v)
			continue
		}
		box.LowerWhisker = math.Min(box.LowerWhisker, v)
		box.UpperWhisker = math.Max(box.UpperWhisker, v)
	}
	return box
}

func sortedCopy(vals []float64) []float64 {
	cp := make([]float64, len(vals))
	copy(cp, vals)
	sort.Float64s(cp)
	return cp
}

// median returns nil for an empty input.
func median(vals []float64) *float64 {
	if len(vals) == 0 {
		return nil
	}
	m := quantile(sortedCopy(vals), 0.5)
	return &m
}

// quantile interpolates linearly between the closest ranks of sorted.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	w := pos - float64(lo)
	return sorted[lo]*(1-w) + sorted[hi]*w
}
