package retrieval

import (
	"sort"

	"github.com/brunobiangulo/gocypher/store"
)

const rrfK = 60 // RRF constant (standard value from literature)

// FusedResultInfo holds per-example method contribution metadata.
type FusedResultInfo struct {
	Methods []string `json:"methods"`
	VecRank int      `json:"vec_rank,omitempty"` // 1-based, 0 = not present
	FTSRank int      `json:"fts_rank,omitempty"` // 1-based, 0 = not present
}

// fuseRRF implements Reciprocal Rank Fusion over the vector and keyword
// result lists: score = sum(weight_i / (k + rank_i)). It also returns
// per-example contribution info keyed by example ID.
func fuseRRF(
	vecResults, ftsResults []store.ExampleResult,
	weightVec, weightFTS float64,
	maxResults int,
) ([]store.ExampleResult, map[int64]FusedResultInfo) {
	type fusedEntry struct {
		result store.ExampleResult
		score  float64
		info   FusedResultInfo
	}

	fused := make(map[int64]*fusedEntry)
	add := func(results []store.ExampleResult, weight float64, method string, setRank func(*FusedResultInfo, int)) {
		for rank, r := range results {
			entry, ok := fused[r.ID]
			if !ok {
				entry = &fusedEntry{result: r}
				fused[r.ID] = entry
			}
			entry.score += weight / float64(rrfK+rank+1)
			entry.info.Methods = append(entry.info.Methods, method)
			setRank(&entry.info, rank+1)
		}
	}
	add(vecResults, weightVec, "vector", func(i *FusedResultInfo, r int) { i.VecRank = r })
	add(ftsResults, weightFTS, "fts", func(i *FusedResultInfo, r int) { i.FTSRank = r })

	entries := make([]*fusedEntry, 0, len(fused))
	for _, e := range fused {
		entries = append(entries, e)
	}

	// Ties break on ID so the prompt is stable across runs.
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].score != entries[j].score {
			return entries[i].score > entries[j].score
		}
		return entries[i].result.ID < entries[j].result.ID
	})

	if maxResults > 0 && len(entries) > maxResults {
		entries = entries[:maxResults]
	}

	results := make([]store.ExampleResult, len(entries))
	infoMap := make(map[int64]FusedResultInfo, len(entries))
	for i, e := range entries {
		results[i] = e.result
		results[i].Score = e.score
		infoMap[e.result.ID] = e.info
	}

	return results, infoMap
}
