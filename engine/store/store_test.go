package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bookbodh/bookbodh/engine/domain"
)

func words(n int) string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("w%d", i)
	}
	return strings.Join(out, " ")
}

func TestChunkWords(t *testing.T) {
	tests := []struct {
		name      string
		wordCount int
		size      int
		overlap   int
		want      int
	}{
		{"empty", 0, 300, 50, 0},
		{"single short", 10, 300, 50, 1},
		{"exact fit", 300, 300, 0, 1},
		{"two no overlap", 600, 300, 0, 2},
		{"overlap adds chunks", 600, 300, 50, 3}, // starts at 0, 250, 500
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ChunkWords(words(tt.wordCount), tt.size, tt.overlap)
			if len(got) != tt.want {
				t.Errorf("got %d chunks, want %d", len(got), tt.want)
			}
		})
	}
}

func TestChunkWords_OverlapContent(t *testing.T) {
	chunks := ChunkWords(words(600), 300, 50)
	if len(chunks) < 2 {
		t.Fatalf("expected at least 2 chunks, got %d", len(chunks))
	}
	first := strings.Fields(chunks[0])
	second := strings.Fields(chunks[1])
	// The last 50 words of chunk 0 open chunk 1.
	tail := first[len(first)-50:]
	for i, w := range tail {
		if second[i] != w {
			t.Fatalf("overlap broken at word %d: %q vs %q", i, second[i], w)
		}
	}
}

func TestChunkWords_DegenerateOverlap(t *testing.T) {
	// Overlap >= chunk size must still make forward progress.
	chunks := ChunkWords(words(30), 10, 10)
	if len(chunks) == 0 || len(chunks) > 30 {
		t.Fatalf("degenerate overlap produced %d chunks", len(chunks))
	}
}

func TestAddBook_AssignsSequentialIDs(t *testing.T) {
	s := New(DefaultConfig(), nil)
	if _, err := s.AddBook("First", "A. Author", words(700)); err != nil {
		t.Fatalf("add book: %v", err)
	}
	if _, err := s.AddBook("Second", "B. Author", words(400)); err != nil {
		t.Fatalf("add book: %v", err)
	}

	chunks := s.GetAllChunks()
	for i, c := range chunks {
		if c.ID != i {
			t.Errorf("chunk %d has id %d, ids must be sequential", i, c.ID)
		}
	}
}

func TestAddBook_TitleCollision(t *testing.T) {
	s := New(DefaultConfig(), nil)
	id1, err := s.AddBook("Meditations", "Marcus Aurelius", words(100))
	if err != nil {
		t.Fatalf("add book: %v", err)
	}
	id2, err := s.AddBook("Meditations", "Someone Else", words(100))
	if err != nil {
		t.Fatalf("add colliding book: %v", err)
	}
	if id1 == id2 {
		t.Fatal("colliding titles must still get distinct book ids")
	}

	b2, err := s.GetBook(id2)
	if err != nil {
		t.Fatalf("get book: %v", err)
	}
	if b2.Title == "Meditations" {
		t.Error("second book title should have been disambiguated")
	}
	if !strings.HasPrefix(b2.Title, "Meditations (") {
		t.Errorf("unexpected disambiguated title %q", b2.Title)
	}
}

func TestAddBook_Validation(t *testing.T) {
	s := New(DefaultConfig(), nil)
	if _, err := s.AddBook("", "a", "text"); err == nil {
		t.Error("empty title must be rejected")
	}
	if _, err := s.AddBook("t", "a", ""); err == nil {
		t.Error("empty content must be rejected")
	}
}

func TestGetChunk_NotFound(t *testing.T) {
	s := New(DefaultConfig(), nil)
	_, err := s.GetChunk(42)
	if !errors.Is(err, domain.ErrChunkNotFound) {
		t.Fatalf("expected ErrChunkNotFound, got %v", err)
	}
}

func TestGetChunksByBookID_EmptyIsValid(t *testing.T) {
	s := New(DefaultConfig(), nil)
	chunks := s.GetChunksByBookID("not-yet-processed")
	if len(chunks) != 0 {
		t.Fatalf("expected empty result, got %d chunks", len(chunks))
	}
}

func TestAddChunk_RegistersBook(t *testing.T) {
	s := New(DefaultConfig(), nil)
	id, err := s.AddChunk(domain.ExtractedChunk{
		BookID: "b-1", ChunkIndex: 0, Title: "Extracted", Author: "X", Text: "some text",
	})
	if err != nil {
		t.Fatalf("add chunk: %v", err)
	}
	if id != 0 {
		t.Errorf("first chunk id %d, want 0", id)
	}

	if got := s.GetChunksByBookID("b-1"); len(got) != 1 {
		t.Fatalf("by book id: got %d chunks, want 1", len(got))
	}
	if got := s.GetChunksByTitle("Extracted"); len(got) != 1 {
		t.Fatalf("by title: got %d chunks, want 1", len(got))
	}

	book, err := s.GetBook("b-1")
	if err != nil {
		t.Fatalf("get book: %v", err)
	}
	if book.Chunks != 1 {
		t.Errorf("book chunk count %d, want 1", book.Chunks)
	}
}

func TestAddChunk_Validation(t *testing.T) {
	s := New(DefaultConfig(), nil)
	bad := []domain.ExtractedChunk{
		{BookID: "b", Title: "t", Text: ""},
		{BookID: "", Title: "t", Text: "x"},
		{BookID: "b", Title: "", Text: "x"},
		{BookID: "b", Title: "t", Text: "x", ChunkIndex: -1},
	}
	for i, ec := range bad {
		if _, err := s.AddChunk(ec); err == nil {
			t.Errorf("case %d: expected validation error", i)
		}
	}
}

func TestSnapshot_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "books.json")

	cfg := DefaultConfig()
	cfg.SnapshotPath = path
	s := New(cfg, nil)
	bookID, err := s.AddBook("Persisted", "P. Author", words(350))
	if err != nil {
		t.Fatalf("add book: %v", err)
	}
	wantChunks := s.Len()

	// A fresh store restores the whole set from the snapshot.
	restored := New(cfg, nil)
	if restored.Len() != wantChunks {
		t.Fatalf("restored %d chunks, want %d", restored.Len(), wantChunks)
	}
	book, err := restored.GetBook(bookID)
	if err != nil {
		t.Fatalf("restored book lookup: %v", err)
	}
	if book.Title != "Persisted" {
		t.Errorf("restored title %q", book.Title)
	}

	// New ids continue after the restored ones.
	id, err := restored.AddChunk(domain.ExtractedChunk{
		BookID: bookID, ChunkIndex: 99, Title: "Persisted", Text: "tail",
	})
	if err != nil {
		t.Fatalf("add chunk after restore: %v", err)
	}
	if id != wantChunks {
		t.Errorf("next id %d, want %d", id, wantChunks)
	}
}

func TestSnapshot_BrokenFileIgnored(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "books.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := DefaultConfig()
	cfg.SnapshotPath = path
	s := New(cfg, nil)
	if s.Len() != 0 {
		t.Errorf("broken snapshot should leave the store empty, len=%d", s.Len())
	}
	// The store must still be usable.
	if _, err := s.AddBook("T", "A", "hello world"); err != nil {
		t.Fatalf("store unusable after broken snapshot: %v", err)
	}
}
