package roster

import (
	"sort"
	"strconv"
	"strings"
)

// CompareIDs orders account and member ids numerically when both are
// integers, otherwise as strings.
func CompareIDs(a, b string) int {
	ai, errA := strconv.Atoi(a)
	bi, errB := strconv.Atoi(b)
	if errA == nil && errB == nil {
		switch {
		case ai < bi:
			return -1
		case ai > bi:
			return 1
		}
		return 0
	}
	if errA == nil {
		return -1
	}
	if errB == nil {
		return 1
	}
	return strings.Compare(a, b)
}

// SortIDs sorts ids in place with CompareIDs.
func SortIDs(ids []string) {
	sort.SliceStable(ids, func(i, j int) bool { return CompareIDs(ids[i], ids[j]) < 0 })
}

// NormalizeName lower-cases and collapses whitespace.
func NormalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}
