// Package store holds the canonical in-memory repository of book text chunks.
// The chunk set only grows (or is wholesale-replaced from a snapshot); chunk
// ids are assigned monotonically and never reused.
package store

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/bookbodh/bookbodh/engine/domain"
	"github.com/google/uuid"
)

// Config controls chunking and snapshot persistence.
type Config struct {
	ChunkSize    int
	Overlap      int
	SnapshotPath string // empty disables persistence
}

// DefaultConfig returns the standard chunking configuration.
func DefaultConfig() Config {
	return Config{
		ChunkSize: DefaultChunkSize,
		Overlap:   DefaultOverlap,
	}
}

// Store is the chunk store. All methods are safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	cfg     Config
	logger  *slog.Logger
	books   map[string]domain.Book // keyed by book id
	byTitle map[string]string      // title -> book id
	chunks  []domain.Chunk
	nextID  int
}

// New creates a Store. If cfg.SnapshotPath names an existing snapshot file,
// the in-memory set is replaced with its contents; a broken snapshot is
// logged and ignored.
func New(cfg Config, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.Overlap < 0 {
		cfg.Overlap = 0
	}
	s := &Store{
		cfg:     cfg,
		logger:  logger,
		books:   make(map[string]domain.Book),
		byTitle: make(map[string]string),
	}
	if cfg.SnapshotPath != "" {
		if snap, err := loadSnapshot(cfg.SnapshotPath); err != nil {
			logger.Warn("store: snapshot load failed, starting empty", "path", cfg.SnapshotPath, "err", err)
		} else if snap != nil {
			s.replaceAll(snap)
			logger.Info("store: snapshot restored", "books", len(s.books), "chunks", len(s.chunks))
		}
	}
	return s
}

// AddBook splits content into overlapping word chunks, assigns each chunk
// the next global id, and returns a freshly generated book id. A title
// collision is disambiguated by suffixing; the id remains the identity.
func (s *Store) AddBook(title, author, content string) (string, error) {
	if err := domain.ValidateBookUpload(title, content); err != nil {
		return "", err
	}

	s.mu.Lock()
	bookID := uuid.NewString()
	if _, taken := s.byTitle[title]; taken {
		title = fmt.Sprintf("%s (%s)", title, uuid.NewString()[:8])
	}

	texts := ChunkWords(content, s.cfg.ChunkSize, s.cfg.Overlap)
	for _, text := range texts {
		s.chunks = append(s.chunks, domain.Chunk{
			ID:     s.nextID,
			BookID: bookID,
			Title:  title,
			Author: author,
			Text:   text,
		})
		s.nextID++
	}
	s.books[bookID] = domain.Book{ID: bookID, Title: title, Author: author, Chunks: len(texts)}
	s.byTitle[title] = bookID
	s.mu.Unlock()

	s.persist()
	return bookID, nil
}

// AddChunk appends one extracted chunk, registering its book on first sight.
// Returns the assigned chunk id.
func (s *Store) AddChunk(ec domain.ExtractedChunk) (int, error) {
	if err := domain.ValidateExtractedChunk(ec); err != nil {
		return 0, err
	}

	s.mu.Lock()
	book, seen := s.books[ec.BookID]
	if !seen {
		book = domain.Book{ID: ec.BookID, Title: ec.Title, Author: ec.Author}
		s.byTitle[ec.Title] = ec.BookID
	}
	id := s.nextID
	s.chunks = append(s.chunks, domain.Chunk{
		ID:     id,
		BookID: ec.BookID,
		Title:  book.Title,
		Author: book.Author,
		Text:   ec.Text,
	})
	s.nextID++
	book.Chunks++
	s.books[ec.BookID] = book
	s.mu.Unlock()

	s.persist()
	return id, nil
}

// GetAllChunks returns the full ordered chunk set.
func (s *Store) GetAllChunks() []domain.Chunk {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Chunk, len(s.chunks))
	copy(out, s.chunks)
	return out
}

// GetChunk looks up a chunk by id.
func (s *Store) GetChunk(id int) (domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.chunks {
		if c.ID == id {
			return c, nil
		}
	}
	return domain.Chunk{}, fmt.Errorf("store: chunk %d: %w", id, domain.ErrChunkNotFound)
}

// GetChunksByTitle returns all chunks whose title matches exactly.
func (s *Store) GetChunksByTitle(title string) []domain.Chunk {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Chunk
	for _, c := range s.chunks {
		if c.Title == title {
			out = append(out, c)
		}
	}
	return out
}

// GetChunksByBookID returns all chunks for a book id. An empty result is a
// valid outcome while a book has not yet been processed.
func (s *Store) GetChunksByBookID(bookID string) []domain.Chunk {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Chunk
	for _, c := range s.chunks {
		if c.BookID == bookID {
			out = append(out, c)
		}
	}
	return out
}

// GetBook returns book metadata by id.
func (s *Store) GetBook(bookID string) (domain.Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if b, ok := s.books[bookID]; ok {
		return b, nil
	}
	return domain.Book{}, fmt.Errorf("store: book %s: %w", bookID, domain.ErrBookNotFound)
}

// Books lists all known books.
func (s *Store) Books() []domain.Book {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Book, 0, len(s.books))
	for _, b := range s.books {
		out = append(out, b)
	}
	return out
}

// Len returns the number of stored chunks.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

// replaceAll swaps the whole in-memory set. Caller must not hold s.mu.
func (s *Store) replaceAll(snap *snapshotFile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.books = make(map[string]domain.Book, len(snap.Books))
	s.byTitle = make(map[string]string, len(snap.Books))
	for id, b := range snap.Books {
		s.books[id] = domain.Book{ID: id, Title: b.Title, Author: b.Author, Chunks: b.ChunksCount}
		s.byTitle[b.Title] = id
	}
	s.chunks = append([]domain.Chunk(nil), snap.Chunks...)
	s.nextID = 0
	for _, c := range s.chunks {
		if c.ID >= s.nextID {
			s.nextID = c.ID + 1
		}
	}
}

// persist writes the snapshot if configured. Failure is non-fatal.
func (s *Store) persist() {
	if s.cfg.SnapshotPath == "" {
		return
	}
	s.mu.RLock()
	snap := snapshotFromState(s.books, s.chunks)
	s.mu.RUnlock()
	if err := saveSnapshot(s.cfg.SnapshotPath, snap); err != nil {
		s.logger.Error("store: snapshot save failed", "path", s.cfg.SnapshotPath, "err", err)
	}
}
