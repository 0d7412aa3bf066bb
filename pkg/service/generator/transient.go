package generator

import (
	"context"
	"errors"
	"strings"

	"github.com/secmon-lab/storyweaver/pkg/domain/model"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Provider messages that indicate a rate limit or a temporary outage
var transientMarkers = []string{
	"429",
	"rate limit",
	"resource_exhausted",
	"resource exhausted",
	"quota",
	"503",
	"unavailable",
	"overloaded",
	"deadline exceeded",
	"timeout",
	"connection reset",
}

// IsTransient reports whether err is worth another model attempt
func IsTransient(err error) bool {
	return errors.Is(err, model.ErrModelTransient)
}

// classify marks provider errors that look transient with model.ErrModelTransient.
// Cancellation of the caller is never transient.
func classify(err error) error {
	if err == nil || errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, model.ErrModelTransient) {
		return err
	}

	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.ResourceExhausted, codes.Unavailable, codes.DeadlineExceeded, codes.Aborted:
			return errors.Join(model.ErrModelTransient, err)
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Join(model.ErrModelTransient, err)
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return errors.Join(model.ErrModelTransient, err)
		}
	}
	return err
}
