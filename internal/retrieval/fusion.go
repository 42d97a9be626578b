package retrieval

import (
	"sort"

	"github.com/groundctx/groundctx/internal/store"
)

// fuseWeighted merges semantic and keyword candidates by chunk id.
//
// A chunk appearing in both lists scores semanticWeight*sem + keywordWeight*kw;
// a chunk seen by only one index keeps that score scaled by its weight, with
// no imputation for the missing signal. Sorted descending; ties broken by
// semantic rank, then keyword rank, then chunk id, so the output is fully
// deterministic.
func fuseWeighted(
	semantic []*store.VectorResult,
	keyword []*store.KeywordResult,
	semanticWeight, keywordWeight float64,
	limit int,
) []*SearchResult {
	type fused struct {
		score   float64
		semRank int
		kwRank  int
	}
	merged := make(map[string]*fused, len(semantic)+len(keyword))

	const unranked = 1 << 30

	for rank, r := range semantic {
		merged[r.ChunkID] = &fused{
			score:   semanticWeight * r.Score,
			semRank: rank,
			kwRank:  unranked,
		}
	}
	for rank, r := range keyword {
		if f, ok := merged[r.ChunkID]; ok {
			f.score += keywordWeight * r.Score
			f.kwRank = rank
		} else {
			merged[r.ChunkID] = &fused{
				score:   keywordWeight * r.Score,
				semRank: unranked,
				kwRank:  rank,
			}
		}
	}

	results := make([]*SearchResult, 0, len(merged))
	for id, f := range merged {
		results = append(results, &SearchResult{
			ChunkID:   id,
			Score:     f.score,
			BaseScore: f.score,
			Source:    SourceHybrid,
		})
	}

	ranks := func(id string) (int, int) {
		f := merged[id]
		return f.semRank, f.kwRank
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		iSem, iKw := ranks(results[i].ChunkID)
		jSem, jKw := ranks(results[j].ChunkID)
		if iSem != jSem {
			return iSem < jSem
		}
		if iKw != jKw {
			return iKw < jKw
		}
		return results[i].ChunkID < results[j].ChunkID
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}
