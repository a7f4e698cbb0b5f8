// Package http exposes the CRUD contract for categories and expenses
// over HTTP/JSON.
package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"outlay/internal/core"
)

// Store is the persistence surface the handlers consume.
// *storage.Repository satisfies it.
type Store interface {
	ListCategories(ctx context.Context) ([]core.Category, error)
	GetCategory(ctx context.Context, id int64) (*core.Category, error)
	GetCategoryByName(ctx context.Context, name string) (*core.Category, error)
	CreateCategory(ctx context.Context, name string) (*core.Category, error)
	UpdateCategory(ctx context.Context, id int64, name string) (*core.Category, error)
	DeleteCategory(ctx context.Context, id int64) error
	CountExpensesByCategory(ctx context.Context, categoryID int64) (int64, error)

	ListExpenses(ctx context.Context) ([]core.Expense, error)
	GetExpense(ctx context.Context, id int64) (*core.Expense, error)
	CreateExpense(ctx context.Context, e core.Expense) (*core.Expense, error)
	UpdateExpense(ctx context.Context, e core.Expense) error
	DeleteExpense(ctx context.Context, id int64) error
}

// EventPublisher emits an event after an expense is persisted so the
// export pipeline can mirror it. Publish failures never fail the request.
type EventPublisher interface {
	PublishExpenseCreated(ctx context.Context, id int64) error
}

type Server struct {
	http.Server
	store  Store
	events EventPublisher
}

// NewServer configures routes, returning a ready-to-run http.Server.
// events may be nil when eventing is disabled.
func NewServer(addr string, store Store, events EventPublisher) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		store:  store,
		events: events,
	}

	mux.HandleFunc("GET /{$}", s.withRequestLog(handleIndex))
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.HandleFunc("GET /categories", s.withRequestLog(s.handleListCategories))
	mux.HandleFunc("POST /categories", s.withRequestLog(s.handleCreateCategory))
	mux.HandleFunc("PUT /categories/{id}", s.withRequestLog(s.handleUpdateCategory))
	mux.HandleFunc("DELETE /categories/{id}", s.withRequestLog(s.handleDeleteCategory))

	mux.HandleFunc("GET /expenses", s.withRequestLog(s.handleListExpenses))
	mux.HandleFunc("GET /expenses/{id}", s.withRequestLog(s.handleGetExpense))
	mux.HandleFunc("POST /expenses", s.withRequestLog(s.handleCreateExpense))
	mux.HandleFunc("PUT /expenses/{id}", s.withRequestLog(s.handleUpdateExpense))
	mux.HandleFunc("DELETE /expenses/{id}", s.withRequestLog(s.handleDeleteExpense))

	return s
}

type ctxKey string

const requestIDKey ctxKey = "request_id"

// withRequestLog adds a request ID and start/completion logging to a handler.
func (s *Server) withRequestLog(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := generateRequestID()
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		r = r.WithContext(ctx)

		slog.InfoContext(ctx, "Request started",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		slog.InfoContext(ctx, "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", time.Since(start).Milliseconds())
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// generateRequestID creates a unique request ID for tracing
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp if random fails
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

func handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("Expense tracker is up and running"))
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
