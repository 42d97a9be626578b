package retrieval

import "github.com/groundctx/groundctx/internal/store"

// FilterDiverse prunes near-duplicate results. Greedy: the top result is
// always kept; each subsequent candidate, taken in score order, is admitted
// only if its Jaccard word-set similarity to every already-selected result
// stays below threshold.
//
// The output is a subsequence of the input, so relative score order is
// preserved. If all candidates are mutually similar exactly one survives.
func FilterDiverse(results []*SearchResult, threshold float64) []*SearchResult {
	if len(results) <= 1 {
		return results
	}

	selected := make([]*SearchResult, 0, len(results))
	selectedSets := make([]map[string]struct{}, 0, len(results))

	for _, candidate := range results {
		set := termSetOf(candidate)

		admit := true
		for _, existing := range selectedSets {
			if jaccard(set, existing) >= threshold {
				admit = false
				break
			}
		}
		if admit {
			selected = append(selected, candidate)
			selectedSets = append(selectedSets, set)
		}
	}

	return selected
}

func termSetOf(r *SearchResult) map[string]struct{} {
	if r.Chunk == nil {
		return map[string]struct{}{}
	}
	return store.TermSet(r.Chunk.Text)
}

// jaccard computes |a ∩ b| / |a ∪ b|. Two empty sets count as identical.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	smaller, larger := a, b
	if len(b) < len(a) {
		smaller, larger = b, a
	}

	intersection := 0
	for term := range smaller {
		if _, ok := larger[term]; ok {
			intersection++
		}
	}

	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}
