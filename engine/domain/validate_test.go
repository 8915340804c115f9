package domain

import (
	"errors"
	"testing"
)

func TestValidateExtractedChunk(t *testing.T) {
	valid := ExtractedChunk{BookID: "b", ChunkIndex: 0, Title: "t", Text: "x"}
	if err := ValidateExtractedChunk(valid); err != nil {
		t.Fatalf("valid chunk rejected: %v", err)
	}

	tests := []struct {
		name    string
		mutate  func(*ExtractedChunk)
		wantErr error
	}{
		{"empty text", func(c *ExtractedChunk) { c.Text = "" }, ErrEmptyContent},
		{"empty book id", func(c *ExtractedChunk) { c.BookID = "" }, ErrEmptyContent},
		{"empty title", func(c *ExtractedChunk) { c.Title = "" }, ErrEmptyContent},
		{"negative index", func(c *ExtractedChunk) { c.ChunkIndex = -1 }, ErrNegativeIndex},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			err := ValidateExtractedChunk(c)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("got %v, want %v", err, tt.wantErr)
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Errorf("expected ValidationError, got %T", err)
			}
		})
	}
}

func TestValidateBookUpload(t *testing.T) {
	if err := ValidateBookUpload("Title", "some content"); err != nil {
		t.Fatalf("valid upload rejected: %v", err)
	}
	if err := ValidateBookUpload("", "content"); !errors.Is(err, ErrEmptyContent) {
		t.Errorf("empty title: got %v", err)
	}
	if err := ValidateBookUpload("Title", ""); !errors.Is(err, ErrEmptyContent) {
		t.Errorf("empty content: got %v", err)
	}
}
