package models

import (
	"math"
	"strconv"

	"github.com/goccy/go-json"
)

// Number is a numeric catalog value that may be missing.
type Number struct {
	Value float64
	Valid bool
}

// Num returns a present Number.
func Num(v float64) Number {
	return Number{Value: v, Valid: true}
}

// Missing returns an absent Number.
func Missing() Number {
	return Number{}
}

// Float reports the value and whether it can take part in a comparison.
// NaN and infinities count as missing.
func (n Number) Float() (float64, bool) {
	if !n.Valid || math.IsNaN(n.Value) || math.IsInf(n.Value, 0) {
		return 0, false
	}
	return n.Value, true
}

// String formats the value without trailing zeros, or "" when missing.
func (n Number) String() string {
	v, ok := n.Float()
	if !ok {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// MarshalJSON encodes a missing value as null.
func (n Number) MarshalJSON() ([]byte, error) {
	v, ok := n.Float()
	if !ok {
		return []byte("null"), nil
	}
	return json.Marshal(v)
}

// UnmarshalJSON accepts a number or null.
func (n *Number) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*n = Number{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*n = Num(v)
	return nil
}
