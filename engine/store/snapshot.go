package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/bookbodh/bookbodh/engine/domain"
)

// snapshotFile is the on-disk shape: a dictionary of books plus the flat
// chunk list, enough to rebuild the store across process restarts.
type snapshotFile struct {
	Books  map[string]snapshotBook `json:"books"`
	Chunks []domain.Chunk          `json:"chunks"`
}

type snapshotBook struct {
	Title       string `json:"title"`
	Author      string `json:"author"`
	ChunksCount int    `json:"chunks_count"`
}

func snapshotFromState(books map[string]domain.Book, chunks []domain.Chunk) *snapshotFile {
	snap := &snapshotFile{
		Books:  make(map[string]snapshotBook, len(books)),
		Chunks: append([]domain.Chunk(nil), chunks...),
	}
	for id, b := range books {
		snap.Books[id] = snapshotBook{Title: b.Title, Author: b.Author, ChunksCount: b.Chunks}
	}
	return snap
}

// loadSnapshot reads and validates a snapshot file. A missing file yields
// (nil, nil); a malformed one yields an error.
func loadSnapshot(path string) (*snapshotFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: read snapshot: %w", err)
	}
	var snap snapshotFile
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("store: decode snapshot: %w", err)
	}
	if snap.Books == nil || snap.Chunks == nil {
		return nil, fmt.Errorf("store: snapshot missing books or chunks")
	}
	return &snap, nil
}

// saveSnapshot writes the snapshot atomically via a temp file rename.
func saveSnapshot(path string, snap *snapshotFile) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("store: encode snapshot: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("store: write snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("store: rename snapshot: %w", err)
	}
	return nil
}
