package exporter

import (
	"math"
	"strconv"

	"datafit/pkg/contracts/domain"
)

// formatValue renders a computed value with the shortest exact
// representation. Missing and non-finite values are empty cells.
func formatValue(v domain.OptionalFloat) string {
	if !v.Valid || math.IsNaN(v.Float64) || math.IsInf(v.Float64, 0) {
		return ""
	}
	return strconv.FormatFloat(v.Float64, 'f', -1, 64)
}
