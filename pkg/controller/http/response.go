package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/storyweaver/pkg/domain/model"
	"github.com/secmon-lab/storyweaver/pkg/utils/errutil"
	"github.com/secmon-lab/storyweaver/pkg/utils/safe"
)

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "failed to marshal response"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	safe.Write(ctx, w, data)
}

// decodeJSON reads a single JSON object from the request body. Malformed or oversized bodies are invalid input.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return goerr.Wrap(model.ErrInvalidInput, "request body too large", goerr.V("limit", tooLarge.Limit))
		}
		return goerr.Wrap(model.ErrInvalidInput, "malformed request body", goerr.V("reason", err.Error()))
	}
	return nil
}
