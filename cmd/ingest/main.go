// Package main publishes a book text file onto the extracted-chunk subject,
// standing in for the PDF/OCR extraction pipeline during development.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/bookbodh/bookbodh/engine/domain"
	"github.com/bookbodh/bookbodh/engine/ingest"
	"github.com/bookbodh/bookbodh/engine/store"
	"github.com/bookbodh/bookbodh/pkg/natsutil"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
)

var (
	file      = flag.String("file", "", "Path to a UTF-8 text file")
	title     = flag.String("title", "", "Book title")
	author    = flag.String("author", "Unknown", "Book author")
	bookID    = flag.String("book-id", "", "Book id (generated when empty)")
	natsURL   = flag.String("nats-url", nats.DefaultURL, "NATS server URL")
	subject   = flag.String("subject", ingest.SubjectChunks, "NATS subject to publish to")
	chunkSize = flag.Int("chunk-size", store.DefaultChunkSize, "Words per chunk")
	overlap   = flag.Int("overlap", store.DefaultOverlap, "Overlapping words between chunks")
)

func main() {
	flag.Parse()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	_ = godotenv.Load()

	if *file == "" || *title == "" {
		fmt.Fprintln(os.Stderr, "usage: ingest -file book.txt -title 'The Alchemist' [-author ...]")
		os.Exit(2)
	}

	if err := run(logger); err != nil {
		logger.Error("ingest failed", "err", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	content, err := os.ReadFile(*file)
	if err != nil {
		return fmt.Errorf("read %s: %w", *file, err)
	}

	nc, err := nats.Connect(*natsURL)
	if err != nil {
		return fmt.Errorf("nats connect: %w", err)
	}
	defer nc.Close()

	id := *bookID
	if id == "" {
		id = uuid.NewString()
	}

	ctx := context.Background()
	texts := store.ChunkWords(string(content), *chunkSize, *overlap)
	for i, text := range texts {
		ec := domain.ExtractedChunk{
			BookID:     id,
			ChunkIndex: i,
			Title:      *title,
			Author:     *author,
			Text:       text,
		}
		if err := natsutil.Publish(ctx, nc, *subject, ec); err != nil {
			return fmt.Errorf("publish chunk %d: %w", i, err)
		}
	}
	if err := nc.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	logger.Info("book published", "book_id", id, "title", *title, "chunks", len(texts))
	fmt.Println(id)
	return nil
}
