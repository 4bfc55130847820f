package search

import "github.com/cliphaven/cliphaven/pkg/models"

// Filter returns the items matching the folded query, preserving their order.
func Filter(items []*models.Item, folded string) []*models.Item {
	out := make([]*models.Item, 0, len(items))
	for _, it := range items {
		if it != nil && it.Matches(folded) {
			out = append(out, it)
		}
	}
	return out
}

// Merge builds the displayed result: lexical matches in their given order,
// then live items referenced by hits in rank order that are not already
// lexical matches. Each item appears once and the result holds at most limit
// items. Hits for items no longer in live are dropped.
func Merge(lexical []*models.Item, hits []models.SemanticHit, live []*models.Item, limit int) []*models.Item {
	if limit <= 0 {
		limit = models.DefaultSearchLimit
	}

	out := make([]*models.Item, 0, limit)
	seen := make(map[string]bool, len(lexical)+len(hits))
	for _, it := range lexical {
		if len(out) == limit {
			return out
		}
		if seen[it.ID] {
			continue
		}
		seen[it.ID] = true
		out = append(out, it)
	}
	if len(hits) == 0 || len(out) == limit {
		return out
	}

	byKey := make(map[string]*models.Item, len(live))
	for _, it := range live {
		if it == nil {
			continue
		}
		byKey[it.SemanticKey()] = it
		if _, ok := byKey[it.ID]; !ok {
			byKey[it.ID] = it
		}
	}
	for _, h := range hits {
		if len(out) == limit {
			break
		}
		it, ok := byKey[h.ExternalID]
		if !ok || seen[it.ID] {
			continue
		}
		seen[it.ID] = true
		out = append(out, it)
	}
	return out
}
