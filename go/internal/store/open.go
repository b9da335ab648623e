package store

import (
	"context"
	"fmt"

	"github.com/mcdev12/osce/go/internal/dbconfig"
)

// Backend names accepted by Open.
const (
	BackendBadger   = "badger"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Open builds the store selected by backend.
func Open(ctx context.Context, backend, dataDir string, db dbconfig.Config) (Store, error) {
	switch backend {
	case BackendBadger, "":
		return NewBadger(dataDir)
	case BackendPostgres:
		return NewPostgres(ctx, db)
	case BackendMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}
