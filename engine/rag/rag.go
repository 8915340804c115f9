// Package rag orchestrates the chat pipeline: retrieve relevant book
// chunks, build a cited prompt, and call the hosted chat-completion model
// for the final answer.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bookbodh/bookbodh/engine/domain"
	"github.com/bookbodh/bookbodh/engine/retrieval"
	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

// Retriever abstracts the semantic retrieval core.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int, filter retrieval.Filter) ([]domain.RetrievedChunk, error)
}

// ChatClient is the slice of the OpenAI-compatible client the pipeline uses.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Options configures the chat pipeline.
type Options struct {
	TopK         int
	Temperature  float32
	MaxTokens    int
	Model        string
	SystemPrompt string
	// ChatRPS rate-limits outbound completion calls; zero disables.
	ChatRPS float64
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		TopK:         retrieval.DefaultTopK,
		Temperature:  0.7,
		MaxTokens:    500,
		Model:        "grok-1",
		SystemPrompt: "You are a helpful assistant that provides insights from books.",
	}
}

const noResultsMessage = "I couldn't find any relevant information in this book. " +
	"Please try a different question or book selection."

// Answer is the structured chat response with citation info.
type Answer struct {
	Text    string                  `json:"text"`
	Book    string                  `json:"book,omitempty"`
	Author  string                  `json:"author,omitempty"`
	Sources []domain.RetrievedChunk `json:"sources,omitempty"`
}

// Service runs the chat pipeline.
type Service struct {
	retriever Retriever
	chat      ChatClient
	opts      Options
	limiter   *rate.Limiter
	logger    *slog.Logger
}

// New creates a chat Service.
func New(retriever Retriever, chat ChatClient, opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.TopK <= 0 {
		opts.TopK = retrieval.DefaultTopK
	}
	var limiter *rate.Limiter
	if opts.ChatRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.ChatRPS), 1)
	}
	return &Service{
		retriever: retriever,
		chat:      chat,
		opts:      opts,
		limiter:   limiter,
		logger:    logger,
	}
}

// Query answers a question from the book corpus. An empty retrieval yields
// a "nothing relevant found" answer; encoder failures propagate as errors
// so the caller can decide whether to retry.
func (s *Service) Query(ctx context.Context, question string, filter retrieval.Filter) (*Answer, error) {
	s.logger.Info("rag query start", "question_len", len(question), "book_id", filter.BookID, "title", filter.Title)

	chunks, err := s.retriever.Retrieve(ctx, question, s.opts.TopK, filter)
	if err != nil {
		return nil, fmt.Errorf("rag: retrieve: %w", err)
	}
	if len(chunks) == 0 {
		return &Answer{Text: noResultsMessage}, nil
	}

	prompt := buildPrompt(question, chunks)

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rag: rate limit wait: %w", err)
		}
	}

	resp, err := s.chat.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       s.opts.Model,
		Temperature: s.opts.Temperature,
		MaxTokens:   s.opts.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: s.opts.SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		// The user gets a readable degradation instead of a crash; the
		// retrieval itself succeeded.
		s.logger.Error("rag: chat completion failed", "err", err)
		return &Answer{
			Text:    "I'm sorry, I encountered an issue while generating a response. Please try again.",
			Sources: chunks,
		}, nil
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("rag: completion returned no choices")
	}

	text := resp.Choices[0].Message.Content
	book, author := detectCitation(text, chunks)

	return &Answer{
		Text:    text,
		Book:    book,
		Author:  author,
		Sources: chunks,
	}, nil
}

// buildPrompt formats retrieved chunks as numbered context blocks followed
// by citation instructions.
func buildPrompt(question string, chunks []domain.RetrievedChunk) string {
	var b strings.Builder
	for i, c := range chunks {
		fmt.Fprintf(&b, "\nChunk %d from '%s' by %s:\n%s\n", i+1, c.Title, c.Author, c.Text)
	}
	return fmt.Sprintf(`Answer the query: '%s' using this context:
%s
Always cite the book and author when referencing information from the texts.
If the answer cannot be found in the provided context, indicate that clearly.
Provide a thoughtful, well-reasoned response with quotations from the book where appropriate.`,
		question, b.String())
}

// detectCitation returns the first retrieved book whose title appears in
// the reply, case-insensitively.
func detectCitation(reply string, chunks []domain.RetrievedChunk) (string, string) {
	lower := strings.ToLower(reply)
	for _, c := range chunks {
		if c.Title != "" && strings.Contains(lower, strings.ToLower(c.Title)) {
			return c.Title, c.Author
		}
	}
	return "", ""
}
