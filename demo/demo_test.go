package demo

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aluiziolira/motofit/models"
)

func fullCatalog() []models.Motorcycle {
	var rows []models.Motorcycle
	for _, brand := range []string{"Yamaha", "Honda", "BMW", "Kawasaki", "KTM", "Ducati"} {
		for _, typ := range []string{"Naked", "Sport"} {
			for i := 0; i < 5; i++ {
				rows = append(rows, models.Motorcycle{
					Brand: brand,
					Model: fmt.Sprintf("%s %s %d ABS", brand, typ, i),
					Type:  typ,
					Price: models.Num(float64(5000 + i)),
				})
			}
		}
	}
	return rows
}

func TestSoftMask(t *testing.T) {
	tests := map[string]string{
		"CBR650R":            "CBR650R",
		"MT-09 SP":           "MT-09",
		"R 1250 GS Adv":      "1250 GS",
		"Ninja 650  abs":     "Ninja 650",
		"890 Duke R":         "890 Duke",
		"Tracer 9 GT+ X LTD": "Tracer 9 GT+",
		"":                   "",
	}
	for in, want := range tests {
		assert.Equal(t, want, SoftMask(in), "SoftMask(%q)", in)
	}
}

func TestBuildBalancedAndCapped(t *testing.T) {
	out := Build(fullCatalog(), DefaultOptions())
	require.Len(t, out, 25)

	perGroup := map[string]int{}
	for _, m := range out {
		assert.NotEqual(t, "Ducati", m.Brand)
		assert.NotContains(t, m.Model, "ABS")
		perGroup[m.Brand+"/"+m.Type]++
	}
	for group, n := range perGroup {
		assert.LessOrEqual(t, n, 3, group)
	}
	assert.Equal(t, "BMW", out[0].Brand, "groups are visited in sorted order")
}

func TestBuildDeterministic(t *testing.T) {
	a := Build(fullCatalog(), DefaultOptions())
	b := Build(fullCatalog(), DefaultOptions())
	assert.Equal(t, a, b)

	opt := DefaultOptions()
	opt.Seed = 7
	opt.MaxRows = 0
	opt.Mask = false
	c := Build(fullCatalog(), opt)
	assert.Len(t, c, 30)
	assert.Contains(t, c[0].Model, "ABS")
}

func TestBuildSmallGroupsKeepEverything(t *testing.T) {
	rows := []models.Motorcycle{
		{Brand: "Honda", Model: "CB500F", Type: "Naked"},
		{Brand: "Honda", Model: "CB650R", Type: "Naked"},
	}
	out := Build(rows, DefaultOptions())
	assert.Len(t, out, 2)
	assert.Empty(t, Build(nil, DefaultOptions()))
}
