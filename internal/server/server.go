// Package server exposes the answering pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/iamvartikasingh/chat-with-multiple-pdf/internal/chain"
	"github.com/iamvartikasingh/chat-with-multiple-pdf/internal/domain"
	"github.com/iamvartikasingh/chat-with-multiple-pdf/internal/stream"
)

// Chain runs one conversational query.
type Chain interface {
	Run(ctx context.Context, req chain.Request) (<-chan chain.Token, <-chan chain.Result, error)
}

// Ingester populates the index from a source document.
type Ingester interface {
	Ingest(ctx context.Context, path string) (int, error)
}

// Server is the HTTP transport for chat and ingestion.
type Server struct {
	chain    Chain
	ingester Ingester
	pdfPath  string
	addr     string
}

// New creates the HTTP server.
func New(c Chain, ing Ingester, pdfPath, addr string) *Server {
	return &Server{chain: c, ingester: ing, pdfPath: pdfPath, addr: addr}
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/chat", s.handleChat)
	mux.HandleFunc("/api/ingest", s.handleIngest)
	mux.HandleFunc("/api/health", s.handleHealth)
	return loggingMiddleware(mux)
}

// Start runs the HTTP server until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 300 * time.Second, // answers stream for a while
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	log.Printf("listening on %s", s.addr)
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

type apiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatBody accepts both the structured messages shape and the legacy
// single-message shape with optional preformatted history.
type chatBody struct {
	Message     string       `json:"message"`
	Input       string       `json:"input"`
	Messages    []apiMessage `json:"messages"`
	ChatHistory string       `json:"chatHistory"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var body chatBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	req := requestFromBody(body)
	tokens, results, err := s.chain.Run(r.Context(), req)
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			writeError(w, http.StatusBadRequest, "no question provided")
			return
		}
		log.Printf("chat: %v", err)
		writeError(w, http.StatusInternalServerError, "Something went wrong. Try again!")
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	n, err := stream.Encode(w, tokens, results)
	if err != nil {
		log.Printf("chat stream: %v", err)
		if n == 0 {
			// Nothing written yet, the status line is still ours to set.
			writeError(w, http.StatusInternalServerError, "Something went wrong. Try again!")
			return
		}
		// Tokens already reached the client; abort the connection rather
		// than complete the stream without a sources sentinel.
		panic(http.ErrAbortHandler)
	}
}

// requestFromBody extracts the question and history. With a messages
// array the last entry is the question and the preceding entries are the
// history; otherwise the single-message fields are used.
func requestFromBody(body chatBody) chain.Request {
	if len(body.Messages) > 0 {
		last := body.Messages[len(body.Messages)-1]
		turns := make([]domain.ConversationTurn, 0, len(body.Messages)-1)
		for _, m := range body.Messages[:len(body.Messages)-1] {
			turns = append(turns, domain.ConversationTurn{Role: m.Role, Content: m.Content})
		}
		return chain.Request{Question: last.Content, Turns: turns}
	}
	question := body.Message
	if question == "" {
		question = body.Input
	}
	return chain.Request{Question: question, HistoryText: body.ChatHistory}
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	count, err := s.ingester.Ingest(r.Context(), s.pdfPath)
	if err != nil {
		log.Printf("ingest: %v", err)
		writeError(w, http.StatusInternalServerError, "ingestion failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"entriesWritten": count})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %v", r.Method, r.URL.Path, time.Since(start))
	})
}
