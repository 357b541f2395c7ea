package usecase

import (
	"sort"

	"github.com/hockeytools/rules-engine/internal/core/domain"
)

const defaultRRFK = 60

// fuseRRF merges the two channel rankings with Reciprocal Rank Fusion. Each
// chunk scores 1/(k + rank) per channel it appears in, rank counted from 1, so
// chunks strong in both channels rise without any cross-channel score
// normalization. Ordering is deterministic: score descending, then chunk id
// ascending.
func fuseRRF(vector, keyword []domain.Chunk, rrfK int) []domain.Candidate {
	if rrfK <= 0 {
		rrfK = defaultRRFK
	}

	acc := make(map[int64]domain.Candidate, len(vector)+len(keyword))

	for i, chunk := range vector {
		rank := i + 1
		cand := acc[chunk.ID]
		cand.Chunk = chunk
		cand.VectorRank = rank
		cand.RRFScore += 1.0 / float64(rrfK+rank)
		acc[chunk.ID] = cand
	}
	for i, chunk := range keyword {
		rank := i + 1
		cand := acc[chunk.ID]
		if cand.VectorRank == 0 {
			cand.Chunk = chunk
		}
		cand.KeywordRank = rank
		cand.RRFScore += 1.0 / float64(rrfK+rank)
		acc[chunk.ID] = cand
	}

	out := make([]domain.Candidate, 0, len(acc))
	for _, cand := range acc {
		out = append(out, cand)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].RRFScore != out[j].RRFScore {
			return out[i].RRFScore > out[j].RRFScore
		}
		return out[i].Chunk.ID < out[j].Chunk.ID
	})

	return out
}

func trimCandidates(candidates []domain.Candidate, limit int) []domain.Candidate {
	if limit <= 0 || len(candidates) <= limit {
		return candidates
	}
	return candidates[:limit]
}
