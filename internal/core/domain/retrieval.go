package domain

// Retrieval channel names, used for degraded-mode reporting and metrics labels.
const (
	ChannelVector  = "vector"
	ChannelKeyword = "keyword"
)

// Candidate is the per-request record produced by the hybrid retrieval engine.
// A rank of zero means the chunk did not appear in that channel's result.
type Candidate struct {
	Chunk       Chunk   `json:"chunk"`
	VectorRank  int     `json:"vector_rank,omitempty"`
	KeywordRank int     `json:"keyword_rank,omitempty"`
	RRFScore    float64 `json:"rrf_score"`
}

// CandidateSet is the joined output of both retrieval channels for one scope.
type CandidateSet struct {
	Candidates []Candidate
	// FailedChannels lists channels that errored or came back empty while the
	// other channel produced results; retrieval proceeded on the survivors.
	// Empty means a fully fused result.
	FailedChannels []string
}

func (s CandidateSet) Degraded() bool {
	return len(s.FailedChannels) > 0
}

// RankedPassage is one reranked passage in the final answer context.
type RankedPassage struct {
	Chunk     Chunk   `json:"chunk"`
	Relevance float64 `json:"relevance"`
	Rank      int     `json:"rank"`
}

// RetrievalContext is the orchestrator's result: the ranked, provenance-bearing
// passages for one standalone question. It is valid only for the request that
// produced it.
type RetrievalContext struct {
	StandaloneQuestion string          `json:"standalone_question"`
	Scope              Scope           `json:"scope"`
	Passages           []RankedPassage `json:"passages"`

	Degraded       bool     `json:"degraded"`
	FailedChannels []string `json:"failed_channels,omitempty"`
	// RerankApplied is false when the cross-encoder failed and the fused
	// ordering was kept as a fallback.
	RerankApplied bool `json:"rerank_applied"`
}
