package app

import "potbench/internal/domain"

// Partition splits items into n disjoint strided chunks that together
// cover every item exactly once (item i goes to chunk i mod n). It models
// leader-side work distribution for a multi-process run; chunks for
// processes beyond the item count come back empty.
func Partition(items []domain.WorkItem, n int) [][]domain.WorkItem {
	if n < 1 {
		n = 1
	}
	parts := make([][]domain.WorkItem, n)
	for i, item := range items {
		parts[i%n] = append(parts[i%n], item)
	}
	return parts
}

// Merge gathers per-process partial outcome maps into a single map.
func Merge(parts ...map[string]domain.Outcome) map[string]domain.Outcome {
	merged := make(map[string]domain.Outcome)
	for _, part := range parts {
		for id, outcome := range part {
			merged[id] = outcome
		}
	}
	return merged
}
