// Package demo derives a small, balanced, publishable sample from a full
// catalog.
package demo

import (
	"math/rand/v2"
	"regexp"
	"slices"
	"sort"
	"strings"

	"github.com/aluiziolira/motofit/models"
)

// Options controls the sample.
type Options struct {
	Brands   []string
	PerGroup int
	MaxRows  int
	Seed     uint64
	Mask     bool
}

// DefaultOptions returns the published demo settings.
func DefaultOptions() Options {
	return Options{
		Brands:   []string{"Yamaha", "Honda", "BMW", "Kawasaki", "KTM"},
		PerGroup: 3,
		MaxRows:  25,
		Seed:     42,
		Mask:     true,
	}
}

var (
	trimSuffixes = regexp.MustCompile(`(?i)\b(ABS|SP|PRO|RR|R|S|SE|X|ADV|LTD)\b`)
	whitespace   = regexp.MustCompile(`\s+`)
)

// SoftMask removes commercial suffixes from a model name and collapses the
// remaining whitespace.
func SoftMask(model string) string {
	masked := trimSuffixes.ReplaceAllString(model, "")
	return strings.TrimSpace(whitespace.ReplaceAllString(masked, " "))
}

type groupKey struct {
	brand string
	typ   string
}

// Build keeps rows of the selected brands, samples up to PerGroup rows from
// every (brand, type) group in sorted group order and caps the result at
// MaxRows. The same rows and seed always produce the same sample.
func Build(rows []models.Motorcycle, opt Options) []models.Motorcycle {
	groups := map[groupKey][]models.Motorcycle{}
	for _, m := range rows {
		if len(opt.Brands) > 0 && !slices.Contains(opt.Brands, m.Brand) {
			continue
		}
		k := groupKey{brand: m.Brand, typ: m.Type}
		groups[k] = append(groups[k], m)
	}

	keys := make([]groupKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].brand != keys[j].brand {
			return keys[i].brand < keys[j].brand
		}
		return keys[i].typ < keys[j].typ
	})

	rng := rand.New(rand.NewPCG(opt.Seed, opt.Seed))
	out := []models.Motorcycle{}
	for _, k := range keys {
		g := groups[k]
		n := len(g)
		if opt.PerGroup > 0 {
			n = min(n, opt.PerGroup)
		}
		for _, idx := range rng.Perm(len(g))[:n] {
			out = append(out, g[idx])
		}
	}

	if opt.MaxRows > 0 && len(out) > opt.MaxRows {
		out = out[:opt.MaxRows]
	}
	if opt.Mask {
		for i := range out {
			out[i].Model = SoftMask(out[i].Model)
		}
	}
	return out
}
