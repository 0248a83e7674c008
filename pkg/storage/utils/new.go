package storageutils

import (
	"context"
	"fmt"

	"github.com/papercomputeco/insurag/pkg/storage"
	"github.com/papercomputeco/insurag/pkg/storage/inmemory"
	"github.com/papercomputeco/insurag/pkg/storage/postgres"
	"github.com/papercomputeco/insurag/pkg/storage/sqlite"
)

type NewDriverOpts struct {
	// ProviderType is one of "inmemory", "sqlite" or "postgres".
	ProviderType string

	// SQLitePath is the database file for the sqlite provider.
	SQLitePath string

	// PostgresDSN is the connection string for the postgres provider.
	PostgresDSN string
}

func NewDriver(ctx context.Context, o *NewDriverOpts) (storage.Driver, error) {
	switch o.ProviderType {
	case "", "inmemory", "memory":
		return inmemory.NewDriver(), nil
	case "sqlite":
		if o.SQLitePath == "" {
			return nil, fmt.Errorf("sqlite storage requires a database path")
		}
		return sqlite.NewDriver(ctx, o.SQLitePath)
	case "postgres", "postgresql":
		if o.PostgresDSN == "" {
			return nil, fmt.Errorf("postgres storage requires a connection string")
		}
		return postgres.NewDriver(ctx, o.PostgresDSN)
	default:
		return nil, fmt.Errorf("unsupported storage provider: %s", o.ProviderType)
	}
}
