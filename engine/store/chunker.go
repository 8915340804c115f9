package store

import "strings"

const (
	// DefaultChunkSize is the target number of words per chunk.
	DefaultChunkSize = 300
	// DefaultOverlap is the number of words shared between consecutive
	// chunks, preserving cross-boundary context for retrieval.
	DefaultOverlap = 50
)

// ChunkWords splits content into spans of roughly chunkSize words with
// overlap words repeated between consecutive spans. Whitespace runs are
// collapsed before splitting.
func ChunkWords(content string, chunkSize, overlap int) []string {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	// The step must advance or a long text would loop forever.
	if overlap >= chunkSize {
		overlap = chunkSize - 1
	}

	words := strings.Fields(content)
	if len(words) == 0 {
		return nil
	}

	step := chunkSize - overlap
	var out []string
	for start := 0; start < len(words); start += step {
		end := start + chunkSize
		if end > len(words) {
			end = len(words)
		}
		out = append(out, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}
	}
	return out
}
