package errutil

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/getsentry/sentry-go"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/storyweaver/pkg/domain/model"
	"github.com/secmon-lab/storyweaver/pkg/utils/logging"
	"github.com/secmon-lab/storyweaver/pkg/utils/safe"
)

// Kind is the externally visible error category
type Kind string

const (
	KindInvalidInput     Kind = "invalid_input"
	KindEmptyTranscript  Kind = "empty_transcript"
	KindUnauthenticated  Kind = "unauthenticated"
	KindNotFound         Kind = "not_found"
	KindNoValidSegments  Kind = "no_valid_segments"
	KindSchema           Kind = "schema"
	KindModelExhausted   Kind = "model_exhausted"
	KindModelTransient   Kind = "model_transient"
	KindStoreUnavailable Kind = "store_unavailable"
	KindEmbedding        Kind = "embedding"
	KindInternal         Kind = "internal"
)

// Classification describes how an error is presented to callers
type Classification struct {
	Kind    Kind
	Status  int
	Message string
}

var classifications = []struct {
	target error
	class  Classification
}{
	{model.ErrEmptyTranscript, Classification{KindEmptyTranscript, http.StatusBadRequest, "The transcript is empty. Record the conversation again."}},
	{model.ErrInvalidInput, Classification{KindInvalidInput, http.StatusBadRequest, "The request is invalid."}},
	{model.ErrUnauthenticated, Classification{KindUnauthenticated, http.StatusUnauthorized, "Authentication is required."}},
	{model.ErrNotFound, Classification{KindNotFound, http.StatusNotFound, "The segment was not found."}},
	{model.ErrNoValidSegments, Classification{KindNoValidSegments, http.StatusUnprocessableEntity, "Not enough transcript content to build an outline."}},
	{model.ErrSchema, Classification{KindSchema, http.StatusBadGateway, "The model returned a malformed result. Try again."}},
	{model.ErrModelExhausted, Classification{KindModelExhausted, http.StatusBadGateway, "The model is busy. Try again later."}},
	{model.ErrModelTransient, Classification{KindModelTransient, http.StatusServiceUnavailable, "The model is temporarily unavailable. Try again later."}},
	{model.ErrStoreUnavailable, Classification{KindStoreUnavailable, http.StatusServiceUnavailable, "Storage is temporarily unavailable. Try again later."}},
	{model.ErrEmbedding, Classification{KindEmbedding, http.StatusBadGateway, "Failed to index the transcript. Check the input and try again."}},
}

// Classify maps err onto the first matching error kind. Unknown errors are internal.
func Classify(err error) Classification {
	for _, c := range classifications {
		if errors.Is(err, c.target) {
			return c.class
		}
	}
	return Classification{KindInternal, http.StatusInternalServerError, "Internal server error."}
}

// Handle logs the error with its goerr values and stack and reports it to Sentry.
// Sentry reporting is a no-op unless a client was initialized.
func Handle(ctx context.Context, err error, msg string) {
	if err == nil {
		return
	}

	attrs := []any{slog.String("error", err.Error())}
	var ge *goerr.Error
	if errors.As(err, &ge) {
		attrs = append(attrs, slog.Any("values", ge.Values()), slog.Any("stack", ge.Stacks()))
	}
	logging.From(ctx).Error(msg, attrs...)

	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	hub.CaptureException(err)
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

// HandleHTTP writes the JSON error response for err. Server-side failures go through Handle,
// client errors are logged at warn level only.
func HandleHTTP(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	c := Classify(err)
	if c.Status >= http.StatusInternalServerError {
		Handle(ctx, err, "request failed")
	} else {
		logging.From(ctx).Warn("request rejected",
			slog.String("kind", string(c.Kind)),
			slog.Int("status", c.Status),
			slog.String("error", err.Error()))
	}

	data, mErr := json.Marshal(errorBody{Error: errorDetail{Kind: c.Kind, Message: c.Message}})
	if mErr != nil {
		http.Error(w, c.Message, c.Status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(c.Status)
	safe.Write(ctx, w, data)
}
