package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/storyweaver/pkg/domain/interfaces"
	"github.com/secmon-lab/storyweaver/pkg/domain/model"
	"github.com/secmon-lab/storyweaver/pkg/utils/errutil"
	"github.com/secmon-lab/storyweaver/pkg/utils/logging"
)

type ctxOwnerKey struct{}

func contextWithOwner(ctx context.Context, owner string) context.Context {
	return context.WithValue(ctx, ctxOwnerKey{}, owner)
}

// ownerFromContext returns the verified owner set by authMiddleware
func ownerFromContext(ctx context.Context) string {
	owner, _ := ctx.Value(ctxOwnerKey{}).(string)
	return owner
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

// authMiddleware verifies the bearer token and stores the owner in the request context
func authMiddleware(verifier interfaces.IdentityVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			owner, err := verifier.Verify(r.Context(), bearerToken(r))
			if err != nil {
				errutil.HandleHTTP(r.Context(), w, goerr.Wrap(err, "authentication failed"))
				return
			}
			if owner == "" {
				errutil.HandleHTTP(r.Context(), w, goerr.Wrap(model.ErrUnauthenticated, "verified identity is empty"))
				return
			}

			ctx := contextWithOwner(r.Context(), owner)
			ctx = logging.With(ctx, logging.From(ctx).With(model.OwnerKey, owner))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
