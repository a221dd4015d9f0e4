package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/pauljones0/smart-shopper/internal/models"
)

// ProblemDetails follows RFC 7807: Problem Details for HTTP APIs.
type ProblemDetails struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail"`
	Instance string `json:"instance,omitempty"`
}

func (pd *ProblemDetails) Error() string {
	return fmt.Sprintf("%d %s: %s", pd.Status, pd.Title, pd.Detail)
}

func WriteError(w http.ResponseWriter, status int, title, detail, instance string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)

	pd := &ProblemDetails{
		Type:     "about:blank",
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: instance,
	}

	json.NewEncoder(w).Encode(pd)
}

func WriteInternalServerError(w http.ResponseWriter, err error, instance string) {
	WriteError(w, http.StatusInternalServerError, "Internal Server Error", err.Error(), instance)
}

func WriteBadRequest(w http.ResponseWriter, detail, instance string) {
	WriteError(w, http.StatusBadRequest, "Bad Request", detail, instance)
}

func WriteNotFound(w http.ResponseWriter, detail, instance string) {
	WriteError(w, http.StatusNotFound, "Not Found", detail, instance)
}

// writeServiceError maps the domain error taxonomy onto problem responses.
func writeServiceError(w http.ResponseWriter, err error, instance string) {
	switch {
	case errors.Is(err, models.ErrValidation),
		errors.Is(err, models.ErrUnknownSortMode),
		errors.Is(err, models.ErrUnknownSource):
		WriteBadRequest(w, err.Error(), instance)
	case errors.Is(err, models.ErrSessionNotFound):
		WriteNotFound(w, err.Error(), instance)
	case errors.Is(err, models.ErrSourceUnavailable), errors.Is(err, models.ErrEnrichment):
		WriteError(w, http.StatusBadGateway, "Bad Gateway", err.Error(), instance)
	default:
		WriteInternalServerError(w, err, instance)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
