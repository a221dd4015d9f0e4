// Package api exposes search sessions and the stateless marketplace proxy over HTTP.
package api

import (
	"fmt"
	"log/slog"
	"net/http"

	scalargo "github.com/bdpiprava/scalar-go"

	"github.com/pauljones0/smart-shopper/internal/config"
	"github.com/pauljones0/smart-shopper/internal/enricher"
	"github.com/pauljones0/smart-shopper/internal/session"
	"github.com/pauljones0/smart-shopper/internal/validator"
)

// Server routes HTTP requests to the session registry and the source collaborators.
type Server struct {
	registry  *Registry
	searcher  session.SourceSearcher
	analyzer  enricher.Analyzer
	validator *validator.Validator
	batchSize int
	origin    string
	docsDir   string
	logger    *slog.Logger
	mux       *http.ServeMux
}

func New(cfg *config.Config, registry *Registry, searcher session.SourceSearcher, analyzer enricher.Analyzer, v *validator.Validator, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		registry:  registry,
		searcher:  searcher,
		analyzer:  analyzer,
		validator: v,
		batchSize: cfg.SearchBatchSize,
		origin:    cfg.FrontendURL,
		docsDir:   cfg.DocsSpecDir,
		logger:    logger.With("component", "api"),
		mux:       http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	s.mux.HandleFunc("GET /api/sessions/{id}", s.handleGetSession)
	s.mux.HandleFunc("DELETE /api/sessions/{id}", s.handleDeleteSession)
	s.mux.HandleFunc("POST /api/sessions/{id}/search", s.handleSearch)
	s.mux.HandleFunc("POST /api/sessions/{id}/load-more", s.handleLoadMore)
	s.mux.HandleFunc("PUT /api/sessions/{id}/sort", s.handleSort)

	s.mux.HandleFunc("POST /search-products", s.handleSearchProducts)
	s.mux.HandleFunc("POST /analyze-product-reviews", s.handleAnalyzeProductReviews)

	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /docs", s.handleDocs)
}

// Handler returns the routed handler wrapped in CORS and request logging.
func (s *Server) Handler() http.Handler {
	return s.logRequests(s.cors(s.mux))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "sessions": s.registry.Len()})
}

func (s *Server) handleDocs(w http.ResponseWriter, r *http.Request) {
	html, err := scalargo.NewV2(
		scalargo.WithSpecDir(s.docsDir),
		scalargo.WithMetaDataOpts(
			scalargo.WithTitle("Smart Shopper API"),
		),
	)
	if err != nil {
		WriteInternalServerError(w, err, r.URL.Path)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, html)
}
