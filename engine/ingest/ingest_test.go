package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bookbodh/bookbodh/engine/domain"
)

type fakeSink struct {
	mu      sync.Mutex
	chunks  []domain.ExtractedChunk
	syncs   int
	ingErr  error
	syncErr error
}

func (f *fakeSink) Ingest(_ context.Context, ec domain.ExtractedChunk) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ingErr != nil {
		return 0, f.ingErr
	}
	f.chunks = append(f.chunks, ec)
	return len(f.chunks) - 1, nil
}

func (f *fakeSink) SyncIndex(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.syncs++
	return 0, f.syncErr
}

func (f *fakeSink) syncCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.syncs
}

func validChunk() domain.ExtractedChunk {
	return domain.ExtractedChunk{
		BookID:     "b-1",
		ChunkIndex: 0,
		Title:      "The Alchemist",
		Author:     "Paulo Coelho",
		Text:       "the boy dreamed of treasure",
	}
}

func TestValidateStage(t *testing.T) {
	ctx := context.Background()

	if res := Validate(ctx, validChunk()); res.IsErr() {
		_, err := res.Unwrap()
		t.Fatalf("valid chunk rejected: %v", err)
	}

	bad := validChunk()
	bad.Text = ""
	if res := Validate(ctx, bad); res.IsOk() {
		t.Fatal("empty text must fail validation")
	}
}

func TestPipeline_StoresValidChunk(t *testing.T) {
	sink := &fakeSink{}
	pipeline := NewPipeline(Deps{Sink: sink})

	res := pipeline(context.Background(), validChunk())
	if res.IsErr() {
		_, err := res.Unwrap()
		t.Fatalf("pipeline: %v", err)
	}
	id, _ := res.Unwrap()
	if id != 0 {
		t.Errorf("chunk id %d, want 0", id)
	}
	if len(sink.chunks) != 1 {
		t.Fatalf("sink received %d chunks, want 1", len(sink.chunks))
	}
}

func TestPipeline_InvalidChunkNeverReachesStore(t *testing.T) {
	sink := &fakeSink{}
	pipeline := NewPipeline(Deps{Sink: sink})

	bad := validChunk()
	bad.BookID = ""
	res := pipeline(context.Background(), bad)
	if res.IsOk() {
		t.Fatal("invalid chunk must fail the pipeline")
	}
	if len(sink.chunks) != 0 {
		t.Errorf("invalid chunk reached the store")
	}

	var verr *domain.ValidationError
	_, err := res.Unwrap()
	if !errors.As(err, &verr) {
		t.Errorf("expected a ValidationError, got %v", err)
	}
}

func TestPipeline_StoreErrorPropagates(t *testing.T) {
	sink := &fakeSink{ingErr: errors.New("store full")}
	pipeline := NewPipeline(Deps{Sink: sink})

	res := pipeline(context.Background(), validChunk())
	if res.IsOk() {
		t.Fatal("expected store error to fail the pipeline")
	}
}

func TestStartSyncLoop(t *testing.T) {
	sink := &fakeSink{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		StartSyncLoop(ctx, Deps{Sink: sink, SyncInterval: 5 * time.Millisecond})
	}()

	deadline := time.After(2 * time.Second)
	for sink.syncCount() < 2 {
		select {
		case <-deadline:
			t.Fatal("sync loop never ticked")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done
}

func TestStartSyncLoop_SurvivesSyncErrors(t *testing.T) {
	sink := &fakeSink{syncErr: domain.ErrEncoderUnavailable}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		StartSyncLoop(ctx, Deps{Sink: sink, SyncInterval: 5 * time.Millisecond})
	}()

	deadline := time.After(2 * time.Second)
	for sink.syncCount() < 3 {
		select {
		case <-deadline:
			t.Fatal("sync loop died on encoder failure")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done
}
