package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/storyweaver/pkg/domain/interfaces"
	"github.com/secmon-lab/storyweaver/pkg/observability"
	"github.com/secmon-lab/storyweaver/pkg/usecase"
)

const defaultMaxBodyBytes = 8 << 20

type Server struct {
	router       *chi.Mux
	uc           *usecase.UseCases
	verifier     interfaces.IdentityVerifier
	metrics      *observability.Metrics
	version      string
	maxBodyBytes int64
}

type Options func(*Server)

// WithVerifier sets how bearer tokens are turned into owners. Required.
func WithVerifier(v interfaces.IdentityVerifier) Options {
	return func(s *Server) {
		s.verifier = v
	}
}

// WithMetrics exposes m at GET /metrics
func WithMetrics(m *observability.Metrics) Options {
	return func(s *Server) {
		s.metrics = m
	}
}

func WithVersion(version string) Options {
	return func(s *Server) {
		s.version = version
	}
}

// WithMaxBodyBytes limits the size of request bodies
func WithMaxBodyBytes(n int64) Options {
	return func(s *Server) {
		s.maxBodyBytes = n
	}
}

func New(uc *usecase.UseCases, opts ...Options) (*Server, error) {
	if uc == nil {
		return nil, goerr.New("use cases are required")
	}

	r := chi.NewRouter()
	s := &Server{
		router:       r,
		uc:           uc,
		maxBodyBytes: defaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.verifier == nil {
		return nil, goerr.New("identity verifier is required")
	}

	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(accessLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", healthHandler(s.version))
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(authMiddleware(s.verifier))
		r.Use(bodyLimit(s.maxBodyBytes))

		r.Post("/transcripts", s.ingestHandler)

		r.Route("/segments", func(r chi.Router) {
			r.Post("/search", s.searchSegmentsHandler)
			r.Get("/{id}", s.getSegmentHandler)
			r.Put("/{id}", s.correctSegmentHandler)
		})

		r.Route("/outline", func(r chi.Router) {
			r.Post("/generate", s.generateOutlineHandler)
			r.Post("/analyze", s.analyzeHandler)
		})
	})

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func healthHandler(version string) http.HandlerFunc {
	type response struct {
		Status  string `json:"status"`
		Version string `json:"version"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(r.Context(), w, http.StatusOK, response{Status: "ok", Version: version})
	}
}
