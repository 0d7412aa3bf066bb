package identity

import (
	"context"

	"github.com/secmon-lab/storyweaver/pkg/domain/interfaces"
)

// Static accepts any token and returns a fixed owner. Used with --no-auth in development.
type Static struct {
	owner string
}

var _ interfaces.IdentityVerifier = &Static{}

func NewStatic(owner string) *Static {
	return &Static{owner: owner}
}

func (s *Static) Verify(ctx context.Context, token string) (string, error) {
	return s.owner, nil
}
