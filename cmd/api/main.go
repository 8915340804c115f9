// Package main implements the BookBodh API server: retrieval-augmented chat
// over an in-memory book corpus, with NATS-driven chunk ingestion.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bookbodh/bookbodh/engine/domain"
	"github.com/bookbodh/bookbodh/engine/index"
	"github.com/bookbodh/bookbodh/engine/ingest"
	"github.com/bookbodh/bookbodh/engine/rag"
	"github.com/bookbodh/bookbodh/engine/retrieval"
	"github.com/bookbodh/bookbodh/engine/store"
	"github.com/bookbodh/bookbodh/pkg/config"
	"github.com/bookbodh/bookbodh/pkg/embed"
	"github.com/bookbodh/bookbodh/pkg/metrics"
	"github.com/bookbodh/bookbodh/pkg/mid"
	"github.com/bookbodh/bookbodh/pkg/resilience"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	openai "github.com/sashabaranov/go-openai"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		logger.Error("config load failed", "err", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := metrics.New()

	// --- Embedding encoder ---
	embedder, err := buildEmbedder(cfg.Embedder)
	if err != nil {
		return err
	}

	// --- Store and index ---
	st := store.New(store.Config{
		ChunkSize:    cfg.Store.ChunkSize,
		Overlap:      cfg.Store.Overlap,
		SnapshotPath: cfg.Store.SnapshotPath,
	}, logger)
	idx := index.New(st, embedder, cfg.Index.DefaultDim, logger)

	retrievalSvc := retrieval.New(st, idx, embedder,
		retrieval.Options{EagerSync: cfg.Index.EagerSync}, reg, logger)

	// Embed whatever survived the snapshot before serving queries.
	if n, err := retrievalSvc.SyncIndex(ctx); err != nil {
		logger.Warn("initial index sync failed, continuing with empty index", "err", err)
	} else if n > 0 {
		logger.Info("initial index built", "chunks", n)
	}

	// --- Chat model ---
	chatCfg := openai.DefaultConfig(cfg.Chat.APIKey())
	if cfg.Chat.BaseURL != "" {
		chatCfg.BaseURL = cfg.Chat.BaseURL
	}
	ragSvc := rag.New(retrievalSvc, openai.NewClientWithConfig(chatCfg), rag.Options{
		TopK:         cfg.Chat.TopK,
		Temperature:  cfg.Chat.Temperature,
		MaxTokens:    cfg.Chat.MaxTokens,
		Model:        cfg.Chat.Model,
		SystemPrompt: rag.DefaultOptions().SystemPrompt,
		ChatRPS:      cfg.Chat.RPS,
	}, logger)

	// --- Optional NATS ingestion ---
	if cfg.NATS.URL != "" {
		nc, err := nats.Connect(cfg.NATS.URL)
		if err != nil {
			logger.Warn("nats connect failed, ingestion consumer disabled", "url", cfg.NATS.URL, "err", err)
		} else {
			defer nc.Close()
			deps := ingest.Deps{Sink: retrievalSvc, Logger: logger}
			sub, err := ingest.StartConsumer(nc, cfg.NATS.Subject, cfg.NATS.Queue, deps)
			if err != nil {
				return fmt.Errorf("start ingest consumer: %w", err)
			}
			defer sub.Unsubscribe()
			go ingest.StartSyncLoop(ctx, deps)
			logger.Info("ingest consumer started", "subject", cfg.NATS.Subject)
		}
	}

	// --- HTTP server ---
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", handleHealth(retrievalSvc))
	mux.HandleFunc("POST /api/chat", handleChat(ragSvc, logger))
	mux.HandleFunc("GET /api/search", handleSearch(retrievalSvc, logger))
	mux.HandleFunc("POST /api/books", handleAddBook(retrievalSvc, logger))
	mux.HandleFunc("GET /api/books", handleListBooks(retrievalSvc))
	mux.HandleFunc("POST /api/index/sync", handleSync(retrievalSvc, logger))
	mux.Handle("GET /metrics", reg.Handler())

	handler := mid.Chain(mux,
		mid.Recover(logger),
		mid.Logger(logger),
		mid.CORS(cfg.Server.CORSOrigin),
		mid.OTel("bookbodh-api"),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Server.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

func buildEmbedder(cfg config.EmbedderConfig) (embed.Embedder, error) {
	var inner embed.Embedder
	switch cfg.Type {
	case "", "ollama":
		inner = embed.NewOllamaClient(cfg.BaseURL, cfg.Model)
	case "openai":
		inner = embed.NewOpenAIClient(cfg.APIKey(), cfg.BaseURL, cfg.Model)
	default:
		return nil, fmt.Errorf("unknown embedder type %q", cfg.Type)
	}
	return embed.Guard(inner, resilience.DefaultBreakerOpts), nil
}

// --- Handlers ---

func handleHealth(svc *retrieval.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":         "ok",
			"stored_chunks":  svc.StoredChunks(),
			"indexed_chunks": svc.IndexedChunks(),
		})
	}
}

// ChatRequest is the JSON body for POST /api/chat.
type ChatRequest struct {
	Query  string `json:"query"`
	Book   string `json:"book,omitempty"`
	BookID string `json:"book_id,omitempty"`
}

// ChatResponse is the JSON response for POST /api/chat.
type ChatResponse struct {
	Response string                  `json:"response"`
	Book     string                  `json:"book,omitempty"`
	Author   string                  `json:"author,omitempty"`
	Sources  []domain.RetrievedChunk `json:"sources,omitempty"`
}

func handleChat(ragSvc *rag.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Query == "" {
			writeError(w, http.StatusBadRequest, "query is required")
			return
		}

		answer, err := ragSvc.Query(r.Context(), req.Query, retrieval.Filter{
			BookID: req.BookID,
			Title:  req.Book,
		})
		if err != nil {
			logger.Error("chat query failed", "err", err)
			if errors.Is(err, domain.ErrEncoderUnavailable) {
				writeError(w, http.StatusServiceUnavailable, "embedding service unavailable")
				return
			}
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		writeJSON(w, http.StatusOK, ChatResponse{
			Response: answer.Text,
			Book:     answer.Book,
			Author:   answer.Author,
			Sources:  answer.Sources,
		})
	}
}

func handleSearch(svc *retrieval.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		if q == "" {
			writeError(w, http.StatusBadRequest, "q is required")
			return
		}
		k := 0
		fmt.Sscanf(r.URL.Query().Get("k"), "%d", &k)

		chunks, err := svc.Retrieve(r.Context(), q, k, retrieval.Filter{
			BookID: r.URL.Query().Get("book_id"),
			Title:  r.URL.Query().Get("book"),
		})
		if err != nil {
			logger.Error("search failed", "err", err)
			if errors.Is(err, domain.ErrEncoderUnavailable) {
				writeError(w, http.StatusServiceUnavailable, "embedding service unavailable")
				return
			}
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"results": chunks})
	}
}

// AddBookRequest is the JSON body for POST /api/books.
type AddBookRequest struct {
	Title   string `json:"title"`
	Author  string `json:"author"`
	Content string `json:"content"`
}

func handleAddBook(svc *retrieval.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AddBookRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		bookID, err := svc.AddBook(r.Context(), req.Title, req.Author, req.Content)
		if err != nil {
			var verr *domain.ValidationError
			if errors.As(err, &verr) {
				writeError(w, http.StatusBadRequest, verr.Error())
				return
			}
			logger.Error("add book failed", "err", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"book_id": bookID})
	}
}

func handleListBooks(svc *retrieval.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"books": svc.Books()})
	}
}

func handleSync(svc *retrieval.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := svc.SyncIndex(r.Context())
		if err != nil {
			logger.Error("index sync failed", "err", err)
			if errors.Is(err, domain.ErrEncoderUnavailable) {
				writeError(w, http.StatusServiceUnavailable, "embedding service unavailable")
				return
			}
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"embedded": n})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
