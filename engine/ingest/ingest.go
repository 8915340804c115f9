// Package ingest consumes extracted book chunks from NATS and feeds them to
// the retrieval core: validate, append to the chunk store, and periodically
// synchronize the vector index.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/bookbodh/bookbodh/engine/domain"
	"github.com/bookbodh/bookbodh/pkg/fn"
	"github.com/bookbodh/bookbodh/pkg/natsutil"
	"github.com/nats-io/nats.go"
)

const (
	// SubjectChunks is the NATS subject the extraction pipeline publishes to.
	SubjectChunks = "engine.extract.chunks"
	// SubjectDLQ is the dead letter queue subject for failed messages.
	SubjectDLQ = "engine.extract.dlq"
	// MaxRetries before sending to the DLQ.
	MaxRetries = 3
	// DefaultSyncInterval is how often pending chunks are embedded.
	DefaultSyncInterval = 5 * time.Second
)

// Sink is the retrieval-core surface the consumer feeds.
type Sink interface {
	Ingest(ctx context.Context, ec domain.ExtractedChunk) (int, error)
	SyncIndex(ctx context.Context) (int, error)
}

// Deps holds the consumer's external dependencies.
type Deps struct {
	Sink         Sink
	Logger       *slog.Logger
	SyncInterval time.Duration
}

// Validate checks an ExtractedChunk via domain validation.
var Validate fn.Stage[domain.ExtractedChunk, domain.ExtractedChunk] = func(_ context.Context, ec domain.ExtractedChunk) fn.Result[domain.ExtractedChunk] {
	if err := domain.ValidateExtractedChunk(ec); err != nil {
		return fn.Err[domain.ExtractedChunk](err)
	}
	return fn.Ok(ec)
}

// NewStore creates the stage that appends a chunk to the store.
func NewStore(sink Sink) fn.Stage[domain.ExtractedChunk, int] {
	return func(ctx context.Context, ec domain.ExtractedChunk) fn.Result[int] {
		return fn.FromPair(sink.Ingest(ctx, ec))
	}
}

// NewPipeline composes validate and store with tracing.
func NewPipeline(deps Deps) fn.Stage[domain.ExtractedChunk, int] {
	validated := fn.TracedStage("ingest.validate", Validate)
	stored := fn.TracedStage("ingest.store", NewStore(deps.Sink))
	return fn.Then(validated, stored)
}

// dlqMessage is published to the DLQ on repeated failure.
type dlqMessage struct {
	Chunk   domain.ExtractedChunk `json:"chunk"`
	Error   string                `json:"error"`
	Retries int                   `json:"retries"`
}

// StartConsumer subscribes to the extracted-chunk subject and runs each
// message through the pipeline, re-publishing on failure up to MaxRetries
// before handing off to the DLQ. Index synchronization is deferred to the
// sync loop, so a burst of chunks is embedded in one batch.
func StartConsumer(nc *nats.Conn, subject, queue string, deps Deps) (*nats.Subscription, error) {
	if subject == "" {
		subject = SubjectChunks
	}
	pipeline := NewPipeline(deps)
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	handler := func(msg *nats.Msg) {
		var ec domain.ExtractedChunk
		if err := json.Unmarshal(msg.Data, &ec); err != nil {
			log.Error("ingest: unmarshal failed", "error", err)
			return
		}

		ctx := context.Background()

		retries := 0
		if msg.Header != nil {
			if v := msg.Header.Get("X-Retry-Count"); v != "" {
				fmt.Sscanf(v, "%d", &retries)
			}
		}

		result := pipeline(ctx, ec)
		if result.IsErr() {
			_, pipeErr := result.Unwrap()
			retries++
			log.Error("ingest: pipeline failed",
				"error", pipeErr,
				"book_id", ec.BookID,
				"chunk_index", ec.ChunkIndex,
				"retry", retries,
			)

			if retries >= MaxRetries {
				dlq := dlqMessage{Chunk: ec, Error: pipeErr.Error(), Retries: retries}
				if err := natsutil.Publish(ctx, nc, SubjectDLQ, dlq); err != nil {
					log.Error("ingest: DLQ publish failed", "error", err)
				}
				return
			}
			retryMsg := nats.NewMsg(subject)
			retryMsg.Data = msg.Data
			retryMsg.Header = nats.Header{}
			retryMsg.Header.Set("X-Retry-Count", fmt.Sprintf("%d", retries))
			if err := nc.PublishMsg(retryMsg); err != nil {
				log.Error("ingest: retry publish failed", "error", err)
			}
			return
		}

		chunkID, _ := result.Unwrap()
		log.Info("ingest: chunk stored", "chunk_id", chunkID, "book_id", ec.BookID)
	}

	if queue != "" {
		return nc.QueueSubscribe(subject, queue, handler)
	}
	return nc.Subscribe(subject, handler)
}

// StartSyncLoop periodically runs the incremental indexer until ctx is done.
// Sync failures are logged and retried on the next tick; an unreachable
// encoder must not kill the consumer.
func StartSyncLoop(ctx context.Context, deps Deps) {
	interval := deps.SyncInterval
	if interval <= 0 {
		interval = DefaultSyncInterval
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := deps.Sink.SyncIndex(ctx)
			if err != nil {
				log.Warn("ingest: index sync failed", "error", err)
				continue
			}
			if n > 0 {
				log.Info("ingest: index sync", "embedded", n)
			}
		}
	}
}
