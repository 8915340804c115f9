package domain

import "strconv"

// ValidateExtractedChunk checks an ExtractedChunk before ingestion.
func ValidateExtractedChunk(c ExtractedChunk) error {
	if c.Text == "" {
		return NewValidationError("text", "", ErrEmptyContent)
	}
	if c.BookID == "" {
		return NewValidationError("book_id", "", ErrEmptyContent)
	}
	if c.Title == "" {
		return NewValidationError("title", "", ErrEmptyContent)
	}
	if c.ChunkIndex < 0 {
		return NewValidationError("chunk_index", strconv.Itoa(c.ChunkIndex), ErrNegativeIndex)
	}
	return nil
}

// ValidateBookUpload checks a whole-book upload before chunking.
func ValidateBookUpload(title, content string) error {
	if title == "" {
		return NewValidationError("title", title, ErrEmptyContent)
	}
	if content == "" {
		return NewValidationError("content", title, ErrEmptyContent)
	}
	return nil
}
