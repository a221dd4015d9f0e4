package models

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks input rejected before any network call.
	ErrValidation = errors.New("validation error")
	// ErrSourceUnavailable marks a failed page request against one source.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrEnrichment marks a failed review fetch or classification for one offer.
	ErrEnrichment = errors.New("enrichment failure")

	ErrSessionNotFound = errors.New("session not found")
	ErrUnknownSortMode = errors.New("unknown sort mode")
	ErrUnknownSource   = errors.New("unknown source")
)

// ValidationError describes a rejected user input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// SourceUnavailableError carries the underlying failure of one source's page request.
type SourceUnavailableError struct {
	Source Source
	Err    error
}

func (e *SourceUnavailableError) Error() string {
	return fmt.Sprintf("source %s unavailable: %v", e.Source, e.Err)
}

func (e *SourceUnavailableError) Unwrap() error { return e.Err }

func (e *SourceUnavailableError) Is(target error) bool {
	return target == ErrSourceUnavailable
}

// EnrichmentError records which stage of an offer's analysis failed.
type EnrichmentError struct {
	Identity Identity
	Stage    string
	Err      error
}

func (e *EnrichmentError) Error() string {
	return fmt.Sprintf("enrich %s (%s): %v", e.Identity, e.Stage, e.Err)
}

func (e *EnrichmentError) Unwrap() error { return e.Err }

func (e *EnrichmentError) Is(target error) bool {
	return target == ErrEnrichment
}
