package google

import (
	"fmt"
	"strings"
)

// matchReferenceRows returns the zero-based row indexes whose first cell
// equals the given reference.
func matchReferenceRows(values [][]interface{}, reference string) []int {
	var rows []int
	for i, row := range values {
		if len(row) == 0 {
			continue
		}
		if strings.TrimSpace(fmt.Sprint(row[0])) == reference {
			rows = append(rows, i)
		}
	}
	return rows
}

// collectReferences returns the distinct values of column A in first-seen
// order, skipping blanks and a header row that is not a posting reference.
func collectReferences(values [][]interface{}) []string {
	seen := map[string]struct{}{}
	var out []string
	for i, row := range values {
		if len(row) == 0 {
			continue
		}
		v := strings.TrimSpace(fmt.Sprint(row[0]))
		if v == "" {
			continue
		}
		if i == 0 && !strings.HasPrefix(v, "AST-") {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
