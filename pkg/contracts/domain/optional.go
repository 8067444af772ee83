package domain

import (
	"bytes"
	"encoding/json"
	"math"
)

// OptionalFloat is a float with explicit presence. The zero value is "missing";
// a present zero is OptionalFloat{Float64: 0, Valid: true}.
type OptionalFloat struct {
	Float64 float64
	Valid   bool
}

// Some returns a present value.
func Some(v float64) OptionalFloat {
	return OptionalFloat{Float64: v, Valid: true}
}

// None returns a missing value.
func None() OptionalFloat {
	return OptionalFloat{}
}

// MarshalJSON renders missing values as null.
func (o OptionalFloat) MarshalJSON() ([]byte, error) {
	if !o.Valid || math.IsNaN(o.Float64) || math.IsInf(o.Float64, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(o.Float64)
}

// UnmarshalJSON accepts a number or null.
func (o *OptionalFloat) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*o = OptionalFloat{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*o = Some(v)
	return nil
}

// Present returns the present values of cells in order.
func Present(cells []OptionalFloat) []float64 {
	out := make([]float64, 0, len(cells))
	for _, c := range cells {
		if c.Valid {
			out = append(out, c.Float64)
		}
	}
	return out
}

// CountPresent returns how many cells carry a value.
func CountPresent(cells []OptionalFloat) int {
	n := 0
	for _, c := range cells {
		if c.Valid {
			n++
		}
	}
	return n
}
