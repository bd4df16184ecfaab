package models

// Document is the single logical unit currently indexed.
type Document struct {
	ID   string `json:"document_id"`
	Name string `json:"document_name"`
	Text string `json:"-"`
}

// Batch is one ingestion's worth of chunk records, written under a single generation.
// Vectors[i] is the embedding of Texts[i].
type Batch struct {
	Generation   uint64
	Vectors      [][]float32
	Texts        []string
	DocumentID   string
	DocumentName string
}

// Validate checks the batch shape before any store is touched.
func (b Batch) Validate() error {
	if len(b.Vectors) != len(b.Texts) {
		return ErrLengthMismatch
	}
	return nil
}

// Match is one retrieval hit. Score is cosine similarity.
type Match struct {
	Text         string  `json:"text"`
	Score        float32 `json:"score"`
	DocumentName string  `json:"document"`
}

// PromptResponse is the outcome of a question against the current document.
type PromptResponse struct {
	Query   string  `json:"question"`
	Source  string  `json:"source,omitempty"`
	Content string  `json:"answer"`
	Matches []Match `json:"matches,omitempty"`
	// Grounded is false when the confidence gate declined to call the generator.
	Grounded bool `json:"grounded"`
}

// IngestResult summarises a successful ingestion.
type IngestResult struct {
	Document   Document       `json:"document"`
	ChunkCount int            `json:"chunks_ingested"`
	Generation uint64         `json:"generation"`
	PreOCR     PreOCRDecision `json:"preocr"`
}
