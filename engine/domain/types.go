// Package domain defines core types, sentinel errors, and validation for the
// BookBodh retrieval engine. It acts as the validation gate at pipeline entry points.
package domain

// Chunk is a bounded span of a book's text stored with book metadata.
// Chunk ids are assigned monotonically and never reused; a chunk is
// immutable once created.
type Chunk struct {
	ID     int    `json:"id"`
	BookID string `json:"book_id,omitempty"` // empty on chunks created before book ids existed
	Title  string `json:"title"`
	Author string `json:"author"`
	Text   string `json:"text"`
}

// Book is the metadata record for an ingested book.
type Book struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Author string `json:"author"`
	Chunks int    `json:"chunks"`
}

// ExtractedChunk is one chunk of text delivered by the external extraction
// pipeline (PDF/OCR), ready to be appended to the chunk store.
type ExtractedChunk struct {
	BookID     string `json:"book_id"`
	ChunkIndex int    `json:"chunk_index"`
	Title      string `json:"title"`
	Author     string `json:"author,omitempty"`
	Text       string `json:"text"`
}

// RetrievedChunk is a chunk returned from semantic search with its raw
// L2 distance. Lower score means more relevant; callers wanting a
// similarity-style score must invert or normalize themselves.
type RetrievedChunk struct {
	ChunkID int     `json:"chunk_id"`
	BookID  string  `json:"book_id,omitempty"`
	Title   string  `json:"title"`
	Author  string  `json:"author"`
	Text    string  `json:"text"`
	Score   float32 `json:"score"`
}
