// Package api exposes the HTTP interface for the catalog service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/geoffreykithuku/books-crawler/internal/books"
	"github.com/geoffreykithuku/books-crawler/internal/config"
	"github.com/geoffreykithuku/books-crawler/internal/metrics"
	"github.com/geoffreykithuku/books-crawler/internal/policy/ratelimit"
	"github.com/geoffreykithuku/books-crawler/internal/report"
)

// Server wires HTTP handlers to the store and report aggregator.
type Server struct {
	router  chi.Router
	store   books.Store
	reports *report.Aggregator
	limiter *ratelimit.Limiter
	clock   books.Clock
	logger  *zap.Logger
	cfg     config.Config
}

// NewServer constructs a Server with middleware and routes.
func NewServer(store books.Store, reports *report.Aggregator, clock books.Clock, cfg config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	s := &Server{
		store:   store,
		reports: reports,
		clock:   clock,
		logger:  logger,
		cfg:     cfg,
	}
	if cfg.Auth.Enabled {
		s.limiter = ratelimit.New(ratelimit.Config{RequestsPerHour: cfg.Auth.RateLimitPerHour})
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(timeoutMiddleware(60 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		if cfg.Auth.Enabled {
			r.Use(s.apiKeyMiddleware)
		}
		r.Get("/books", s.listBooks)
		r.Get("/books/{id}", s.getBook)
		r.Get("/reports/changes", s.changeReport)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	// The store is the only hard dependency; probe it with a cheap read.
	if _, err := s.store.ListBooks(r.Context(), books.BookFilter{PerPage: 1, Page: 1}); err != nil {
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) listBooks(w http.ResponseWriter, r *http.Request) {
	filter, err := parseBookFilter(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	found, err := s.store.ListBooks(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list books")
		return
	}
	out := make([]books.Book, len(found))
	for i, b := range found {
		b.RawSnapshot = ""
		out[i] = b
	}
	writeJSON(w, http.StatusOK, map[string]any{"books": out, "count": len(out)})
}

func (s *Server) getBook(w http.ResponseWriter, r *http.Request) {
	sourceURL, err := url.PathUnescape(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid book id")
		return
	}
	book, err := s.store.FindBook(r.Context(), sourceURL)
	if err != nil {
		if errors.Is(err, books.ErrNotFound) {
			writeError(w, http.StatusNotFound, "book not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load book")
		return
	}
	book.RawSnapshot = ""
	writeJSON(w, http.StatusOK, map[string]any{"book": book})
}

func (s *Server) changeReport(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = report.FormatJSON
	}

	day := s.clock.Now()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
			return
		}
		day = parsed
	}

	out, err := s.reports.Generate(r.Context(), day, format)
	if err != nil {
		if errors.Is(err, report.ErrUnsupportedFormat) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to generate report")
		return
	}

	switch format {
	case report.FormatCSV:
		w.Header().Set("Content-Type", "text/csv")
	default:
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(out)); err != nil {
		s.logger.Error("report write failed", zap.Error(err))
	}
}

func parseBookFilter(q url.Values) (books.BookFilter, error) {
	filter := books.BookFilter{Category: q.Get("category")}

	if raw := q.Get("min_price"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return filter, fmt.Errorf("invalid min_price %q", raw)
		}
		filter.MinPrice = &v
	}
	if raw := q.Get("max_price"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return filter, fmt.Errorf("invalid max_price %q", raw)
		}
		filter.MaxPrice = &v
	}
	if raw := q.Get("rating"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 || v > 5 {
			return filter, fmt.Errorf("invalid rating %q", raw)
		}
		filter.Rating = &v
	}
	switch sortBy := q.Get("sort_by"); sortBy {
	case "":
	case string(books.SortByPrice), string(books.SortByRating), string(books.SortByReviews):
		filter.SortBy = books.SortField(sortBy)
	default:
		return filter, fmt.Errorf("invalid sort_by %q", sortBy)
	}
	if raw := q.Get("page"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			return filter, fmt.Errorf("invalid page %q", raw)
		}
		filter.Page = v
	}
	if raw := q.Get("per_page"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			return filter, fmt.Errorf("invalid per_page %q", raw)
		}
		filter.PerPage = v
	}
	return filter, nil
}

type requestIDKey struct{}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		duration := time.Since(start)
		metrics.ObserveHTTPRequest(r.Method, r.URL.Path, ww.status, duration)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", duration.Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

func (s *Server) apiKeyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("X-API-Key")
		if key == "" {
			key = r.URL.Query().Get("api_key")
		}
		if key != s.cfg.Auth.APIKey {
			writeError(w, http.StatusForbidden, "unauthorized")
			return
		}
		if s.limiter != nil && !s.limiter.Allow(key) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
