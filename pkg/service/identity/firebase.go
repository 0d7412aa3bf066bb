package identity

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/storyweaver/pkg/domain/interfaces"
	"github.com/secmon-lab/storyweaver/pkg/domain/model"
)

// DefaultJWKSURL serves the public keys that sign Firebase ID tokens
const DefaultJWKSURL = "https://www.googleapis.com/service_accounts/v1/jwk/securetoken@system.gserviceaccount.com"

const (
	defaultKeyTTL = time.Hour
	clockSkew     = 10 * time.Second
)

// Firebase verifies Firebase Authentication ID tokens. The owner is the token subject.
type Firebase struct {
	projectID  string
	jwksURL    string
	httpClient *http.Client
	keyTTL     time.Duration
	now        func() time.Time

	mu        sync.Mutex
	keySet    jwk.Set
	fetchedAt time.Time
}

var _ interfaces.IdentityVerifier = &Firebase{}

type FirebaseOption func(*Firebase)

// WithJWKSURL replaces the key set location, for emulators and tests
func WithJWKSURL(url string) FirebaseOption {
	return func(f *Firebase) {
		f.jwksURL = url
	}
}

func WithHTTPClient(c *http.Client) FirebaseOption {
	return func(f *Firebase) {
		f.httpClient = c
	}
}

// WithKeyTTL sets how long a fetched key set is reused
func WithKeyTTL(d time.Duration) FirebaseOption {
	return func(f *Firebase) {
		f.keyTTL = d
	}
}

func WithClock(now func() time.Time) FirebaseOption {
	return func(f *Firebase) {
		f.now = now
	}
}

func NewFirebase(projectID string, opts ...FirebaseOption) (*Firebase, error) {
	if projectID == "" {
		return nil, goerr.New("firebase project ID is required")
	}
	f := &Firebase{
		projectID:  projectID,
		jwksURL:    DefaultJWKSURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		keyTTL:     defaultKeyTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

func (f *Firebase) issuer() string {
	return "https://securetoken.google.com/" + f.projectID
}

func (f *Firebase) keys(ctx context.Context) (jwk.Set, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.keySet != nil && f.now().Sub(f.fetchedAt) < f.keyTTL {
		return f.keySet, nil
	}

	keySet, err := jwk.Fetch(ctx, f.jwksURL, jwk.WithHTTPClient(f.httpClient))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to fetch token signing keys", goerr.V("jwks_url", f.jwksURL))
	}
	f.keySet = keySet
	f.fetchedAt = f.now()
	return keySet, nil
}

// Verify checks signature, audience, issuer and expiry of idToken and returns its subject
func (f *Firebase) Verify(ctx context.Context, idToken string) (string, error) {
	idToken = strings.TrimSpace(idToken)
	if idToken == "" {
		return "", goerr.Wrap(model.ErrUnauthenticated, "ID token is empty")
	}

	keySet, err := f.keys(ctx)
	if err != nil {
		return "", err
	}

	token, err := jwt.Parse([]byte(idToken),
		jwt.WithKeySet(keySet),
		jwt.WithValidate(true),
		jwt.WithAudience(f.projectID),
		jwt.WithIssuer(f.issuer()),
		jwt.WithAcceptableSkew(clockSkew),
		jwt.WithClock(jwt.ClockFunc(f.now)),
	)
	if err != nil {
		return "", goerr.Wrap(model.ErrUnauthenticated, "failed to verify ID token", goerr.V("reason", err.Error()))
	}

	sub := token.Subject()
	if sub == "" {
		return "", goerr.Wrap(model.ErrUnauthenticated, "sub claim not found in token")
	}
	return sub, nil
}
