package firestore

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/storyweaver/pkg/domain/interfaces"
	"github.com/secmon-lab/storyweaver/pkg/domain/model"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	ownersCollection   = "owners"
	segmentsCollection = "segments"
	embeddingField     = "Embedding"
	distanceField      = "Distance"

	// searchOverfetch extra neighbors are requested beyond topK to settle ties in original order
	searchOverfetch     = 16
	maxFindNearestLimit = 1000
)

// Firestore is a SegmentRepository backed by Cloud Firestore vector search.
// Segments live under owners/{owner}/segments/{segmentID}.
type Firestore struct {
	client           *firestore.Client
	collectionPrefix string
	dimension        int
}

var _ interfaces.SegmentRepository = &Firestore{}

type Option func(*Firestore)

// WithCollectionPrefix prefixes the root collection name, used to isolate test runs
func WithCollectionPrefix(prefix string) Option {
	return func(f *Firestore) {
		f.collectionPrefix = prefix
	}
}

// WithDimension sets the embedding dimension of the vector index
func WithDimension(dim int) Option {
	return func(f *Firestore) {
		f.dimension = dim
	}
}

func New(ctx context.Context, projectID, databaseID string, opts ...Option) (*Firestore, error) {
	if databaseID == "" {
		databaseID = firestore.DefaultDatabaseID
	}

	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("projectID", projectID),
			goerr.V("databaseID", databaseID))
	}

	f := &Firestore{
		client:    client,
		dimension: model.EmbeddingDimension,
	}
	for _, opt := range opts {
		opt(f)
	}

	return f, nil
}

func (f *Firestore) Dimension() int { return f.dimension }

func (f *Firestore) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}

func (f *Firestore) segments(owner string) *firestore.CollectionRef {
	return f.client.Collection(f.collectionPrefix + ownersCollection).Doc(owner).Collection(segmentsCollection)
}

// validateOwner rejects owners that cannot be used as a document ID
func validateOwner(owner string) error {
	if owner == "" {
		return goerr.Wrap(model.ErrInvalidInput, "owner is required")
	}
	if !validDocumentID(owner) {
		return goerr.Wrap(model.ErrInvalidInput, "owner is not a valid document ID", goerr.V(model.OwnerKey, owner))
	}
	return nil
}

const maxDocumentIDBytes = 1500

// validDocumentID reports whether id can name a Firestore document. Segment ids cited by a
// model are untrusted and may not.
func validDocumentID(id string) bool {
	if id == "" || id == "." || id == ".." || len(id) > maxDocumentIDBytes {
		return false
	}
	if !utf8.ValidString(id) || strings.Contains(id, "/") {
		return false
	}
	if len(id) >= 4 && strings.HasPrefix(id, "__") && strings.HasSuffix(id, "__") {
		return false
	}
	return true
}

var retryableCodes = map[codes.Code]struct{}{
	codes.Unavailable:       {},
	codes.DeadlineExceeded:  {},
	codes.ResourceExhausted: {},
	codes.Aborted:           {},
	codes.Internal:          {},
}

// unavailable marks err as a retryable backend failure when its status code says the call may
// succeed later. Other errors are returned unchanged.
func unavailable(err error) error {
	if _, ok := retryableCodes[status.Code(err)]; ok {
		return errors.Join(model.ErrStoreUnavailable, err)
	}
	return err
}
