package qdrant

import (
	"context"

	"github.com/qdrant/go-client/qdrant"
)

type PointsAPI = pointsAPI

func NewWithClient(ctx context.Context, client PointsAPI, collection string, opts ...Option) (*Qdrant, error) {
	return newWithClient(ctx, client, collection, opts...)
}

func ClientConfig(endpoint, apiKey string) (*qdrant.Config, error) {
	return clientConfig(endpoint, apiKey)
}

var PointID = pointID
