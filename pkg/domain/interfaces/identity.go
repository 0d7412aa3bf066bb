package interfaces

import "context"

// IdentityVerifier verifies a bearer credential and returns the owner identity it belongs to.
// Returns model.ErrUnauthenticated when the credential is not valid.
type IdentityVerifier interface {
	Verify(ctx context.Context, token string) (string, error)
}
