package model

import "github.com/m-mizutani/goerr/v2"

// Error kinds that cross the core boundary. Callers classify them with errors.Is.
var (
	// ErrEmptyTranscript is returned when an ingest call carries no transcription items
	ErrEmptyTranscript = goerr.New("transcript has no items")

	// ErrEmbedding is returned when the embedding backend fails on at least one input
	ErrEmbedding = goerr.New("embedding failed")

	// ErrStoreUnavailable is returned when the segment store backend cannot be reached. Retryable.
	ErrStoreUnavailable = goerr.New("segment store unavailable")

	// ErrNoValidSegments is returned when no requested segment resolves, or when a repaired
	// result has no grounding left
	ErrNoValidSegments = goerr.New("no valid segments")

	// ErrSchema is returned when generative model output cannot be parsed into the expected structure
	ErrSchema = goerr.New("model output does not match schema")

	// ErrModelTransient marks a rate limit, timeout or empty response from the generative model. Retryable.
	ErrModelTransient = goerr.New("generative model transient failure")

	// ErrModelExhausted is returned after transient model failures used up every attempt
	ErrModelExhausted = goerr.New("generative model retries exhausted")

	// ErrInvalidInput is returned for malformed requests; nothing external is contacted
	ErrInvalidInput = goerr.New("invalid input")

	// ErrNotFound is returned by point lookups for an id the owner does not have
	ErrNotFound = goerr.New("not found")

	// ErrDimensionMismatch is a startup configuration error between embedder and store
	ErrDimensionMismatch = goerr.New("embedding dimension mismatch")

	// ErrUnauthenticated is returned when the caller identity cannot be verified
	ErrUnauthenticated = goerr.New("unauthenticated")
)

// Context keys for error values
const (
	OwnerKey     = "owner"
	SegmentIDKey = "segment_id"
	IndexKey     = "index"
	AttemptKey   = "attempt"
)
