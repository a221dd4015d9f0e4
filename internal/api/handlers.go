package api

import (
	"encoding/json"
	"net/http"

	"github.com/pauljones0/smart-shopper/internal/models"
	"github.com/pauljones0/smart-shopper/internal/session"
)

type createSessionResponse struct {
	ID       string           `json:"id"`
	Snapshot session.Snapshot `json:"session"`
}

type searchBody struct {
	Query string `json:"query" validate:"notblank"`
}

type sortBody struct {
	Mode string `json:"mode" validate:"required,sortmode"`
}

// decode reads a JSON body and validates it. On failure the problem response
// has already been written.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		WriteBadRequest(w, "Invalid JSON body: "+err.Error(), r.URL.Path)
		return false
	}
	if err := s.validator.ValidateStruct(v); err != nil {
		writeServiceError(w, err, r.URL.Path)
		return false
	}
	return true
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*session.Controller, bool) {
	c, err := s.registry.Get(r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err, r.URL.Path)
		return nil, false
	}
	return c, true
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	id, c := s.registry.Create()
	s.logger.Info("Session created", "id", id)
	writeJSON(w, http.StatusCreated, createSessionResponse{ID: id, Snapshot: c.Snapshot()})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	c, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, c.Snapshot())
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.Delete(r.PathValue("id")); err != nil {
		writeServiceError(w, err, r.URL.Path)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	c, ok := s.session(w, r)
	if !ok {
		return
	}
	var body searchBody
	if !s.decode(w, r, &body) {
		return
	}
	snap, err := c.Search(r.Context(), body.Query)
	if err != nil {
		writeServiceError(w, err, r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleLoadMore(w http.ResponseWriter, r *http.Request) {
	c, ok := s.session(w, r)
	if !ok {
		return
	}
	snap, err := c.LoadMore(r.Context())
	if err != nil {
		writeServiceError(w, err, r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleSort(w http.ResponseWriter, r *http.Request) {
	c, ok := s.session(w, r)
	if !ok {
		return
	}
	var body sortBody
	if !s.decode(w, r, &body) {
		return
	}
	snap, err := c.SetSortMode(models.SortMode(body.Mode))
	if err != nil {
		writeServiceError(w, err, r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
