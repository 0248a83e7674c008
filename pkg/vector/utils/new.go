// Package vectorutils builds the configured vector.Driver.
package vectorutils

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/papercomputeco/insurag/pkg/vector"
	"github.com/papercomputeco/insurag/pkg/vector/chroma"
	"github.com/papercomputeco/insurag/pkg/vector/inmemory"
	"github.com/papercomputeco/insurag/pkg/vector/pgvector"
	"github.com/papercomputeco/insurag/pkg/vector/qdrant"
	"github.com/papercomputeco/insurag/pkg/vector/sqlitevec"
)

type NewVectorDriverOpts struct {
	// ProviderType is one of "inmemory", "sqlite", "chroma", "qdrant" or "pgvector".
	ProviderType string

	// Target is the provider address: a database path for sqlite, a URL for
	// chroma, a gRPC address for qdrant or a connection string for pgvector.
	Target string

	// Dimensions is the embedding size of the configured embedder.
	Dimensions uint

	Logger *slog.Logger
}

func NewVectorDriver(ctx context.Context, o *NewVectorDriverOpts) (vector.Driver, error) {
	switch o.ProviderType {
	case "", "inmemory", "memory":
		return inmemory.NewDriver(), nil
	case "sqlite", "sqlitevec", "sqlite-vec":
		return sqlitevec.NewDriver(sqlitevec.Config{
			DBPath:     o.Target,
			Dimensions: o.Dimensions,
		}, o.Logger)
	case "chroma":
		return chroma.NewDriver(chroma.Config{
			URL: o.Target,
		}, o.Logger)
	case "qdrant":
		return qdrant.NewDriver(ctx, qdrant.Config{
			Addr:       o.Target,
			Dimensions: o.Dimensions,
		}, o.Logger)
	case "pgvector", "postgres":
		return pgvector.NewDriver(ctx, pgvector.Config{
			ConnString: o.Target,
			Dimensions: o.Dimensions,
		}, o.Logger)
	default:
		return nil, fmt.Errorf("unsupported vector store provider: %s", o.ProviderType)
	}
}
