// Package comparison implements multi-scan comparisons for alicorn: scan-id
// parsing, aggregation of stored scan results into comparison data, the
// per-session note/bookmark controller, and export generation.
package comparison

import (
	"strconv"
	"strings"
)

// MinScans is the smallest number of distinct scans a comparison needs.
const MinScans = 2

// ParseScanIDs parses a comma-separated list of scan ids as found in the
// "ids" query parameter. Tokens that are not positive integers are dropped
// and duplicates are collapsed, keeping the order of first appearance.
func ParseScanIDs(raw string) []int64 {
	ids := make([]int64, 0)
	seen := make(map[int64]struct{})

	for _, token := range strings.Split(raw, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(token), 10, 64)
		if err != nil || id <= 0 {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	return ids
}

// HasEnoughScans reports whether ids can be compared.
func HasEnoughScans(ids []int64) bool {
	return len(ids) >= MinScans
}

// JoinScanIDs formats ids using sep, e.g. "3,9" or "3-9".
func JoinScanIDs(ids []int64, sep string) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, sep)
}
