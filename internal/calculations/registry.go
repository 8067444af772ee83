// Package calculations holds the fixed set of statistics that can be computed
// for a numeric column. Every function takes a non-empty slice of finite values
// and never mutates it.
package calculations

import (
	"sort"
	"strings"
)

// Func computes one statistic over a non-empty slice of values.
type Func func(values []float64) float64

// Kind enumerates the supported statistics.
type Kind int

const (
	KindMedian Kind = iota
	KindMean
	KindMode
	KindQuartileQ1
	KindQuartileQ2
	KindQuartileQ3
	KindOutliersNumber
	KindVariationRange
)

type entry struct {
	key         string
	displayName string
	fn          Func
}

var kinds = map[Kind]entry{
	KindMedian:         {"median", "Median", Median},
	KindMean:           {"mean", "Mean", Mean},
	KindMode:           {"mode", "Mode", Mode},
	KindQuartileQ1:     {"quartile q1", "Quartile Q1", QuartileQ1},
	KindQuartileQ2:     {"quartile q2", "Quartile Q2", QuartileQ2},
	KindQuartileQ3:     {"quartile q3", "Quartile Q3", QuartileQ3},
	KindOutliersNumber: {"outliers number", "Outliers Number", OutliersNumber},
	KindVariationRange: {"variation range", "Variation Range", VariationRange},
}

var byKey = func() map[string]Kind {
	m := make(map[string]Kind, len(kinds))
	for k, e := range kinds {
		m[e.key] = k
	}
	return m
}()

// String returns the registry key of k, e.g. "quartile q1".
func (k Kind) String() string {
	if e, ok := kinds[k]; ok {
		return e.key
	}
	return "unknown"
}

// DisplayName returns the catalog name of k, e.g. "Quartile Q1".
func (k Kind) DisplayName() string {
	return kinds[k].displayName
}

// Func returns the function computing k.
func (k Kind) Func() Func {
	return kinds[k].fn
}

// Parse resolves an indicator name to its Kind.
// Matching ignores case and surrounding whitespace.
func Parse(name string) (Kind, bool) {
	k, ok := byKey[strings.ToLower(strings.TrimSpace(name))]
	return k, ok
}

// Lookup resolves an indicator name to its function.
func Lookup(name string) (Func, bool) {
	k, ok := Parse(name)
	if !ok {
		return nil, false
	}
	return k.Func(), true
}

// Kinds returns every supported Kind in declaration order.
func Kinds() []Kind {
	out := make([]Kind, 0, len(kinds))
	for k := range kinds {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// CatalogNames returns the display names used to seed the indicator catalog.
func CatalogNames() []string {
	ks := Kinds()
	names := make([]string, len(ks))
	for i, k := range ks {
		names[i] = k.DisplayName()
	}
	return names
}
