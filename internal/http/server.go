// Package http serves the browser UI and the JSON API over one mux.
package http

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/events"
	"fintrack/internal/log"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/middleware/security"
	"fintrack/internal/middleware/trace"
	appweb "fintrack/web"
)

// Store is the slice of the repository the server depends on.
type Store interface {
	ListNames(ctx context.Context) ([]core.Name, error)
	CreateName(ctx context.Context, label string) (core.Name, error)
	ListCategories(ctx context.Context) ([]core.Category, error)
	CreateCategory(ctx context.Context, label string) (core.Category, error)
	ListTransactions(ctx context.Context) ([]core.Record, error)
	GetTransaction(ctx context.Context, id int64) (core.Transaction, error)
	CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
	UpdateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
	DeleteTransaction(ctx context.Context, id int64) error
}

// Options tunes the server. Zero values fall back to defaults.
type Options struct {
	CacheSize          int
	CacheTTL           time.Duration
	RateLimitPerMinute int
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
}

func (o Options) withDefaults() Options {
	if o.CacheSize <= 0 {
		o.CacheSize = 16
	}
	if o.CacheTTL <= 0 {
		o.CacheTTL = 5 * time.Minute
	}
	if o.RateLimitPerMinute <= 0 {
		o.RateLimitPerMinute = 300
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = 10 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 20 * time.Second
	}
	return o
}

// recordCacheKey is the single key under which the full record set lives.
// Every mutation purges the cache wholesale, so a fresh read after a write
// always reflects post-mutation state.
const recordCacheKey = "records"

type Server struct {
	http.Server
	store     Store
	bus       *events.Client
	templates *template.Template

	limiter     *ratelimit.Limiter
	recordCache *cache.LRU[[]core.Record]

	stopCacheCleanup chan struct{}
	shutdownOnce     sync.Once
}

// NewServer configures routes, middleware, and templates, returning a
// ready-to-run server. bus may be nil when AMQP is not configured.
func NewServer(addr string, store Store, bus *events.Client, opts Options) *Server {
	opts = opts.withDefaults()
	mux := http.NewServeMux()

	s := &Server{
		store: store,
		bus:   bus,
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: opts.RateLimitPerMinute,
		}),
		recordCache:      cache.NewLRU[[]core.Record](opts.CacheSize, opts.CacheTTL),
		stopCacheCleanup: make(chan struct{}),
	}

	go s.startCacheCleanup()

	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		slog.Warn("Failed parsing templates", "error", err)
	}
	s.templates = t

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		slog.Warn("Failed to mount embedded static FS", "error", err)
	}

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /ui/records", s.handleRecordsPartial)

	mux.HandleFunc("GET /api/names", s.handleListNames)
	mux.HandleFunc("POST /api/names", s.handleCreateName)
	mux.HandleFunc("GET /api/categories", s.handleListCategories)
	mux.HandleFunc("POST /api/categories", s.handleCreateCategory)
	mux.HandleFunc("GET /api/transactions", s.handleListTransactions)
	mux.HandleFunc("POST /api/transactions", s.handleCreateTransaction)
	mux.HandleFunc("PUT /api/transactions/{id}", s.handleUpdateTransaction)
	mux.HandleFunc("DELETE /api/transactions/{id}", s.handleDeleteTransaction)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	tracer := trace.NewMiddleware(clientIP)
	handler := headers.Middleware(tracer.Middleware(s.limitMutations(mux)))

	s.Server = http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
	}

	return s
}

// limitMutations rate-limits writes only; reads stay unthrottled.
func (s *Server) limitMutations(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodDelete:
			ip := clientIP(r)
			if !s.limiter.Allow(ip) {
				slog.WarnContext(r.Context(), "Rate limit exceeded",
					log.FieldClientIP, ip,
					log.FieldMethod, r.Method,
					log.FieldPath, r.URL.Path,
					log.FieldComponent, log.ComponentRateLimit)
				w.Header().Set("Retry-After", "60")
				respondErrorMessage(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) startCacheCleanup() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if cleaned := s.recordCache.CleanExpired(); cleaned > 0 {
				slog.Debug("Cache cleanup completed", "entries_removed", cleaned)
			}
		case <-s.stopCacheCleanup:
			return
		}
	}
}

// Shutdown stops the background goroutines and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		close(s.stopCacheCleanup)
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// loadRecords returns the full denormalized record set, served from cache
// when a live entry exists.
func (s *Server) loadRecords(ctx context.Context) ([]core.Record, error) {
	if records, ok := s.recordCache.Get(recordCacheKey); ok {
		slog.DebugContext(ctx, "Record cache hit", log.FieldRecordCount, len(records))
		out := make([]core.Record, len(records))
		copy(out, records)
		return out, nil
	}

	records, err := s.store.ListTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	s.recordCache.Set(recordCacheKey, records)
	slog.DebugContext(ctx, "Record cache filled", log.FieldRecordCount, len(records))
	return records, nil
}

// invalidateRecords drops the cached record set after any write.
func (s *Server) invalidateRecords() {
	s.recordCache.Purge()
}

// publishEvent announces a transaction mutation on the bus. Publish
// failures are logged, never surfaced to the API client.
func (s *Server) publishEvent(ctx context.Context, kind string, id int64, month string) {
	if err := s.bus.PublishTransactionEvent(ctx, kind, id, month); err != nil {
		slog.ErrorContext(ctx, "Failed to publish transaction event",
			log.FieldError, err,
			"kind", kind,
			log.FieldTransactionID, id,
			log.FieldMonth, month)
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if _, err := s.store.ListNames(r.Context()); err != nil {
		slog.ErrorContext(r.Context(), "Readiness check failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
