package domain

// Scope identifies one retrieval partition: a rule-set variant, optionally
// narrowed to a national jurisdiction. Every search and every ingestion run
// is bound to exactly one scope. An empty Country means the official
// international rulebook.
type Scope struct {
	Variant string `json:"variant"`
	Country string `json:"country,omitempty"`
}

func (s Scope) String() string {
	if s.Country == "" {
		return s.Variant
	}
	return s.Variant + "/" + s.Country
}

// ChunkMetadata carries the citation data extracted during chunking.
type ChunkMetadata struct {
	Rule       string `json:"rule,omitempty"`
	Chapter    string `json:"chapter,omitempty"`
	Section    string `json:"section,omitempty"`
	Page       int    `json:"page,omitempty"`
	SourceFile string `json:"source_file,omitempty"`
	// ContentType distinguishes playing rules from the definitions appendix.
	ContentType string `json:"content_type,omitempty"`
}

// Chunk is one indexed unit of retrievable rule text. The chunk store owns
// chunk identity; ID is zero until the store assigns one on insert.
type Chunk struct {
	ID       int64         `json:"id"`
	Scope    Scope         `json:"scope"`
	Text     string        `json:"text"`
	Metadata ChunkMetadata `json:"metadata"`

	// Embedding is populated on the ingestion path only; queries never read
	// vectors back out of the store.
	Embedding []float32 `json:"-"`
}
