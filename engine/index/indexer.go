package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bookbodh/bookbodh/engine/domain"
)

// DefaultDim is the dimensionality used for an index built over an empty
// chunk store, matching the all-MiniLM-class sentence embedding models.
const DefaultDim = 384

// Embedder is the encoding capability consumed by the indexer. It must be
// deterministic for a fixed model and produce fixed-width vectors.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// ChunkSource supplies the current ordered chunk set, typically *store.Store.
type ChunkSource interface {
	GetAllChunks() []domain.Chunk
}

// Indexer owns the flat index, the set of already-embedded chunk ids, and
// the title-to-positions map. One mutex guards incremental updates and both
// search paths: a sync appends to the parallel arrays, so reads must see
// them as a consistent snapshot.
type Indexer struct {
	mu      sync.Mutex
	source  ChunkSource
	embed   Embedder
	flat    *Flat
	indexed map[int]struct{} // chunk ids already embedded
	byTitle map[string][]int // book title -> index positions
	logger  *slog.Logger
}

// New creates an Indexer over an empty flat index of defaultDim width.
// Call Sync to embed whatever the source already holds.
func New(source ChunkSource, embed Embedder, defaultDim int, logger *slog.Logger) *Indexer {
	if defaultDim <= 0 {
		defaultDim = DefaultDim
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{
		source:  source,
		embed:   embed,
		flat:    NewFlat(defaultDim),
		indexed: make(map[int]struct{}),
		byTitle: make(map[string][]int),
		logger:  logger,
	}
}

// Sync embeds chunks added since the last call and appends their vectors to
// the index, then rebuilds the title map over the complete chunk list.
// Returns the number of newly embedded chunks; zero pending chunks is a
// logged no-op. The whole diff-encode-append-rebuild sequence runs under
// the indexer lock.
func (x *Indexer) Sync(ctx context.Context) (int, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	chunks := x.source.GetAllChunks()

	var pending []domain.Chunk
	for _, c := range chunks {
		if _, done := x.indexed[c.ID]; !done {
			pending = append(pending, c)
		}
	}
	if len(pending) == 0 {
		x.logger.Info("index: sync no-op, nothing pending", "indexed", x.flat.Len())
		return 0, nil
	}

	texts := make([]string, len(pending))
	for i, c := range pending {
		texts[i] = c.Text
	}
	vecs, err := x.embed.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("index: embed %d pending chunks: %w", len(pending), err)
	}
	if len(vecs) != len(pending) {
		return 0, fmt.Errorf("index: encoder returned %d vectors for %d chunks", len(vecs), len(pending))
	}

	// An empty index adopts the encoder's dimensionality on first append;
	// afterwards any width change is a fatal configuration error.
	if x.flat.Len() == 0 && len(vecs) > 0 && len(vecs[0]) != x.flat.Dim() {
		x.flat = NewFlat(len(vecs[0]))
	}

	ids := make([]int, len(pending))
	for i, c := range pending {
		ids[i] = c.ID
	}
	if err := x.flat.Add(ids, vecs); err != nil {
		return 0, err
	}
	for _, id := range ids {
		x.indexed[id] = struct{}{}
	}

	x.rebuildTitleMap(chunks)

	x.logger.Info("index: sync complete", "embedded", len(pending), "total", x.flat.Len())
	return len(pending), nil
}

// rebuildTitleMap recomputes title -> positions from scratch. Must hold x.mu.
// Every position it records indexes the current embeddings array; chunks not
// yet embedded are skipped.
func (x *Indexer) rebuildTitleMap(chunks []domain.Chunk) {
	titleByID := make(map[int]string, len(chunks))
	for _, c := range chunks {
		titleByID[c.ID] = c.Title
	}
	byTitle := make(map[string][]int)
	for pos, id := range x.flat.IDs() {
		title, ok := titleByID[id]
		if !ok {
			continue
		}
		byTitle[title] = append(byTitle[title], pos)
	}
	x.byTitle = byTitle
}

// Search runs a global exact search over all indexed vectors.
func (x *Indexer) Search(query []float32, k int) ([]Hit, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.flat.Search(query, k)
}

// SearchBook restricts the search to one book's positions by building a
// transient flat index over just that subset; result ids map back to the
// original chunks because the subset carries their ids. An unknown title
// falls back to the global search rather than failing.
func (x *Indexer) SearchBook(query []float32, k int, title string) ([]Hit, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	positions, ok := x.byTitle[title]
	if !ok || len(positions) == 0 {
		x.logger.Debug("index: title not indexed, falling back to global search", "title", title)
		return x.flat.Search(query, k)
	}

	sub := NewFlat(x.flat.Dim())
	ids := make([]int, len(positions))
	vecs := make([][]float32, len(positions))
	for i, pos := range positions {
		ids[i], vecs[i] = x.flat.at(pos)
	}
	if err := sub.Add(ids, vecs); err != nil {
		return nil, err
	}
	return sub.Search(query, k)
}

// Size returns the number of indexed vectors.
func (x *Indexer) Size() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.flat.Len()
}

// Dim returns the current index dimensionality.
func (x *Indexer) Dim() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.flat.Dim()
}

// HasTitle reports whether a book title has indexed positions.
func (x *Indexer) HasTitle(title string) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.byTitle[title]) > 0
}

// IsEncoderErr reports whether err stems from an unreachable encoder.
func IsEncoderErr(err error) bool {
	return errors.Is(err, domain.ErrEncoderUnavailable)
}
