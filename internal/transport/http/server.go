package http

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/joshdurbin/ns-shortener/internal/service"
)

// Options configures the HTTP server
type Options struct {
	Port      string
	ServerURL string
	Verbose   bool

	// RateLimitRPS of zero disables rate limiting
	RateLimitRPS   float64
	RateLimitBurst int

	// TrustProxy reads the client address from X-Forwarded-For/X-Real-IP
	// instead of the peer address
	TrustProxy bool

	// Gatherer backs /metrics; nil leaves the endpoint out
	Gatherer prometheus.Gatherer
	Health   func(ctx context.Context) error
	Logger   *zap.Logger
}

// Server represents the HTTP server
type Server struct {
	handler *Handler
	limiter *RateLimiter
	server  *http.Server
	port    string
	logger  *zap.Logger

	stopChan chan struct{}
}

// NewServer creates a new HTTP server
func NewServer(svc service.URLService, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	handler := NewHandler(svc, opts.ServerURL, opts.Health, opts.Logger)
	handler.trustProxy = opts.TrustProxy

	s := &Server{
		handler:  handler,
		port:     opts.Port,
		logger:   opts.Logger,
		stopChan: make(chan struct{}),
	}

	var finalHandler http.Handler = s.routes(opts.Gatherer)

	if opts.RateLimitRPS > 0 {
		s.limiter = NewRateLimiter(opts.RateLimitRPS, opts.RateLimitBurst)
		s.limiter.trustProxy = opts.TrustProxy
		finalHandler = s.limiter.Middleware(finalHandler)
	}

	// Logging is outermost so rejected requests are logged too
	finalHandler = NewLoggingMiddleware(opts.Verbose, opts.Logger).Middleware(finalHandler)

	s.server = &http.Server{
		Addr:         ":" + opts.Port,
		Handler:      finalHandler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) routes(gatherer prometheus.Gatherer) *http.ServeMux {
	h := s.handler
	mux := http.NewServeMux()

	// Management API
	mux.HandleFunc("POST /api/namespaces/{ns}/urls", h.CreateURL)
	mux.HandleFunc("GET /api/namespaces/{ns}/urls", h.ListURLs)
	mux.HandleFunc("POST /api/namespaces/{ns}/urls/bulk", h.BulkCreate)
	mux.HandleFunc("GET /api/namespaces/{ns}/urls/{code}", h.GetURL)
	mux.HandleFunc("PATCH /api/namespaces/{ns}/urls/{code}", h.UpdateURL)
	mux.HandleFunc("DELETE /api/namespaces/{ns}/urls/{code}", h.DeleteURL)
	mux.HandleFunc("GET /api/namespaces/{ns}/urls/{code}/analytics", h.URLAnalytics)
	mux.HandleFunc("GET /api/namespaces/{ns}/analytics", h.NamespaceAnalytics)
	mux.HandleFunc("GET /api/namespaces/{ns}/stats", h.NamespaceStats)
	mux.HandleFunc("DELETE /api/namespaces/{ns}", h.DeleteNamespace)

	mux.HandleFunc("GET /healthz", h.Health)
	if gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	// Redirect endpoint
	mux.HandleFunc("GET /{ns}/{code}", h.Redirect)

	return mux
}

// Start starts the HTTP server; it returns nil after a graceful shutdown
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("server starting", zap.String("addr", ln.Addr().String()))

	if s.limiter != nil {
		go s.pruneVisitors()
	}

	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) pruneVisitors() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			if n := s.limiter.Prune(now); n > 0 {
				s.logger.Debug("pruned idle rate limit visitors", zap.Int("count", n))
			}
		case <-s.stopChan:
			return
		}
	}
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server shutting down")
	select {
	case <-s.stopChan:
	default:
		close(s.stopChan)
	}
	return s.server.Shutdown(ctx)
}

// Port returns the server port
func (s *Server) Port() string {
	return s.port
}

// Handler returns the root HTTP handler, middleware included
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}
