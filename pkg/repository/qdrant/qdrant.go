package qdrant

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strconv"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/qdrant/go-client/qdrant"
	"github.com/secmon-lab/storyweaver/pkg/domain/interfaces"
	"github.com/secmon-lab/storyweaver/pkg/domain/model"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	defaultGRPCPort = 6334
	ownerField      = "owner"

	// searchOverfetch extra neighbors are requested beyond topK to settle ties in original order
	searchOverfetch = 16
)

// pointNamespace derives point IDs from (owner, segment ID) so equal segment IDs under
// different owners never share a point
var pointNamespace = uuid.MustParse("6f1d4c8a-3b0e-5d7a-9c42-8e5b1a2f7d30")

// pointsAPI is the subset of *qdrant.Client used by the repository
type pointsAPI interface {
	CollectionExists(ctx context.Context, collectionName string) (bool, error)
	CreateCollection(ctx context.Context, request *qdrant.CreateCollection) error
	GetCollectionInfo(ctx context.Context, collectionName string) (*qdrant.CollectionInfo, error)
	CreateFieldIndex(ctx context.Context, request *qdrant.CreateFieldIndexCollection) (*qdrant.UpdateResult, error)
	Upsert(ctx context.Context, request *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Get(ctx context.Context, request *qdrant.GetPoints) ([]*qdrant.RetrievedPoint, error)
	Query(ctx context.Context, request *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
	Close() error
}

// Qdrant is a SegmentRepository backed by a Qdrant collection with cosine distance
type Qdrant struct {
	client     pointsAPI
	apiKey     string
	collection string
	dimension  int
}

var _ interfaces.SegmentRepository = &Qdrant{}

type Option func(*Qdrant)

func WithAPIKey(key string) Option {
	return func(q *Qdrant) {
		q.apiKey = key
	}
}

func WithDimension(dim int) Option {
	return func(q *Qdrant) {
		q.dimension = dim
	}
}

// New connects to the Qdrant gRPC endpoint and makes sure the collection exists with the
// configured dimension. endpoint is "host", "host:port" or a URL; an https URL enables TLS.
// An existing collection with another vector size fails with model.ErrDimensionMismatch.
func New(ctx context.Context, endpoint, collection string, opts ...Option) (*Qdrant, error) {
	if endpoint == "" {
		return nil, goerr.New("qdrant endpoint is required")
	}

	q := &Qdrant{}
	for _, opt := range opts {
		opt(q)
	}

	cfg, err := clientConfig(endpoint, q.apiKey)
	if err != nil {
		return nil, err
	}
	client, err := qdrant.NewClient(cfg)
	if err != nil {
		return nil, goerr.Wrap(errors.Join(model.ErrStoreUnavailable, err), "failed to create qdrant client",
			goerr.V("endpoint", endpoint))
	}

	return newWithClient(ctx, client, collection, opts...)
}

func newWithClient(ctx context.Context, client pointsAPI, collection string, opts ...Option) (*Qdrant, error) {
	if collection == "" {
		return nil, goerr.New("qdrant collection is required")
	}

	q := &Qdrant{
		client:     client,
		collection: collection,
		dimension:  model.EmbeddingDimension,
	}
	for _, opt := range opts {
		opt(q)
	}

	if err := q.ensureCollection(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}

	return q, nil
}

// clientConfig turns an endpoint into a client config. The port defaults to the gRPC port.
func clientConfig(endpoint, apiKey string) (*qdrant.Config, error) {
	cfg := &qdrant.Config{
		Port:                   defaultGRPCPort,
		APIKey:                 apiKey,
		SkipCompatibilityCheck: true,
	}

	hostPort := endpoint
	if u, err := url.Parse(endpoint); err == nil && u.Host != "" {
		hostPort = u.Host
		cfg.UseTLS = u.Scheme == "https"
	}

	host, port, err := net.SplitHostPort(hostPort)
	if err != nil {
		cfg.Host = hostPort
		return cfg, nil
	}
	p, err := strconv.Atoi(port)
	if err != nil || p <= 0 || p > 65535 {
		return nil, goerr.New("invalid qdrant port", goerr.V("endpoint", endpoint))
	}
	cfg.Host = host
	cfg.Port = p
	return cfg, nil
}

func (q *Qdrant) Dimension() int { return q.dimension }

func (q *Qdrant) Close() error {
	return q.client.Close()
}

func (q *Qdrant) ensureCollection(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return goerr.Wrap(unavailable(err), "failed to check qdrant collection", goerr.V("collection", q.collection))
	}

	if exists {
		info, err := q.client.GetCollectionInfo(ctx, q.collection)
		if err != nil {
			return goerr.Wrap(unavailable(err), "failed to get qdrant collection", goerr.V("collection", q.collection))
		}
		size := info.GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize()
		if size != uint64(q.dimension) {
			return goerr.Wrap(model.ErrDimensionMismatch, "qdrant collection has a different vector size",
				goerr.V("collection", q.collection),
				goerr.V("expected", q.dimension),
				goerr.V("actual", size))
		}
		return nil
	}

	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(q.dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return goerr.Wrap(unavailable(err), "failed to create qdrant collection", goerr.V("collection", q.collection))
	}

	_, err = q.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: q.collection,
		Wait:           qdrant.PtrOf(true),
		FieldName:      ownerField,
		FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
	})
	if err != nil {
		return goerr.Wrap(unavailable(err), "failed to create owner payload index", goerr.V("collection", q.collection))
	}
	return nil
}

func pointID(owner string, id model.SegmentID) string {
	return uuid.NewSHA1(pointNamespace, []byte(owner+"\x00"+string(id))).String()
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
