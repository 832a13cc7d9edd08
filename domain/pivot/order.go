package pivot

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

// NaturalLess orders numeric strings by value ("2" < "10") and everything
// else lexicographically. Numbers sort before non-numbers.
func NaturalLess(a, b string) bool {
	fa, errA := parseNumber(a)
	fb, errB := parseNumber(b)
	switch {
	case errA == nil && errB == nil:
		if fa != fb {
			return fa < fb
		}
		return a < b
	case errA == nil:
		return true
	case errB == nil:
		return false
	default:
		return a < b
	}
}

func lessKey(a, b []string) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] == b[i] {
			continue
		}
		return NaturalLess(a[i], b[i])
	}
	return len(a) < len(b)
}

func sortedNatural(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return NaturalLess(out[i], out[j]) })
	return out
}

func parseNumber(s string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err == nil && math.IsNaN(f) {
		return 0, strconv.ErrSyntax
	}
	return f, err
}
