// Package retrieval composes the chunk store, the vector index, and the
// embedding encoder into the two operations the rest of the system consumes:
// scored retrieval and chunk ingestion with deferred index synchronization.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bookbodh/bookbodh/engine/domain"
	"github.com/bookbodh/bookbodh/engine/index"
	"github.com/bookbodh/bookbodh/engine/store"
	"github.com/bookbodh/bookbodh/pkg/metrics"
)

// DefaultTopK is the number of chunks retrieved when the caller does not say.
const DefaultTopK = 3

// QueryEmbedder encodes a single query text.
type QueryEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Options tunes service behaviour.
type Options struct {
	// EagerSync embeds immediately on every ingested chunk instead of
	// waiting for the next SyncIndex call.
	EagerSync bool
}

// Service exposes retrieval and ingestion over the store and index.
type Service struct {
	store  *store.Store
	idx    *index.Indexer
	embed  QueryEmbedder
	opts   Options
	logger *slog.Logger

	retrievals *metrics.Counter
	ingested   *metrics.Counter
	syncDur    *metrics.Histogram
}

// New creates a retrieval Service. The metrics registry may be nil.
func New(st *store.Store, idx *index.Indexer, embed QueryEmbedder, opts Options, reg *metrics.Registry, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if reg == nil {
		reg = metrics.New()
	}
	return &Service{
		store:      st,
		idx:        idx,
		embed:      embed,
		opts:       opts,
		logger:     logger,
		retrievals: reg.Counter("retrieval_queries_total", "Retrieval queries served"),
		ingested:   reg.Counter("retrieval_chunks_ingested_total", "Chunks appended to the store"),
		syncDur:    reg.Histogram("retrieval_sync_seconds", "Incremental index sync duration", nil),
	}
}

// Filter narrows retrieval to one book. BookID takes precedence over Title;
// a filter matching nothing degrades to an unfiltered search.
type Filter struct {
	BookID string
	Title  string
}

// Retrieve embeds the query and returns up to k chunks ranked ascending by
// raw L2 distance. An empty index yields an empty, successful result
// without invoking the encoder.
func (s *Service) Retrieve(ctx context.Context, query string, k int, filter Filter) ([]domain.RetrievedChunk, error) {
	if query == "" {
		return nil, fmt.Errorf("retrieval: %w", domain.ErrEmptyQuery)
	}
	if k <= 0 {
		k = DefaultTopK
	}
	s.retrievals.Inc()

	if s.idx.Size() == 0 {
		s.logger.Info("retrieval: index empty, returning no results")
		return nil, nil
	}

	qvec, err := s.embed.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("retrieval: embed query: %w", err)
	}

	title := s.resolveTitle(filter)
	var hits []index.Hit
	if title != "" {
		hits, err = s.idx.SearchBook(qvec, k, title)
	} else {
		hits, err = s.idx.Search(qvec, k)
	}
	if err != nil {
		return nil, fmt.Errorf("retrieval: search: %w", err)
	}

	out := make([]domain.RetrievedChunk, 0, len(hits))
	for _, h := range hits {
		chunk, err := s.store.GetChunk(h.ChunkID)
		if err != nil {
			// Indexed ids always come from the store; a miss here would
			// mean the parallel arrays drifted.
			s.logger.Error("retrieval: indexed chunk missing from store", "chunk_id", h.ChunkID)
			continue
		}
		out = append(out, domain.RetrievedChunk{
			ChunkID: chunk.ID,
			BookID:  chunk.BookID,
			Title:   chunk.Title,
			Author:  chunk.Author,
			Text:    chunk.Text,
			Score:   h.Distance,
		})
	}
	return out, nil
}

// resolveTitle normalizes the filter: a book id maps to its stored title
// when the book has chunks, otherwise the title filter applies as-is.
func (s *Service) resolveTitle(f Filter) string {
	if f.BookID != "" {
		if chunks := s.store.GetChunksByBookID(f.BookID); len(chunks) > 0 {
			return chunks[0].Title
		}
	}
	return f.Title
}

// Ingest appends one extracted chunk to the store; the index picks it up on
// the next SyncIndex unless EagerSync is set.
func (s *Service) Ingest(ctx context.Context, ec domain.ExtractedChunk) (int, error) {
	id, err := s.store.AddChunk(ec)
	if err != nil {
		return 0, fmt.Errorf("retrieval: ingest: %w", err)
	}
	s.ingested.Inc()

	if s.opts.EagerSync {
		if _, err := s.SyncIndex(ctx); err != nil {
			return id, err
		}
	}
	return id, nil
}

// AddBook chunks and stores a whole book, returning its id.
func (s *Service) AddBook(ctx context.Context, title, author, content string) (string, error) {
	bookID, err := s.store.AddBook(title, author, content)
	if err != nil {
		return "", err
	}
	if s.opts.EagerSync {
		if _, err := s.SyncIndex(ctx); err != nil {
			return bookID, err
		}
	}
	return bookID, nil
}

// SyncIndex runs the incremental indexer. Safe with zero pending chunks.
func (s *Service) SyncIndex(ctx context.Context) (int, error) {
	start := time.Now()
	n, err := s.idx.Sync(ctx)
	if err != nil {
		return 0, err
	}
	s.syncDur.Since(start)
	return n, nil
}

// Books lists stored books.
func (s *Service) Books() []domain.Book { return s.store.Books() }

// IndexedChunks returns the number of vectors currently indexed.
func (s *Service) IndexedChunks() int { return s.idx.Size() }

// StoredChunks returns the number of chunks in the store.
func (s *Service) StoredChunks() int { return s.store.Len() }
