package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/osce/go/internal/config"
	"github.com/mcdev12/osce/go/internal/store"
)

const badgerGCInterval = 10 * time.Minute

func setupStore(ctx context.Context, cfg config.AppConfig) (store.Store, error) {
	st, err := store.Open(ctx, cfg.StoreBackend, cfg.DataDir, cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.StoreBackend, err)
	}

	switch s := st.(type) {
	case *store.BadgerStore:
		go s.RunGCLoop(ctx, badgerGCInterval)
		log.Info().Str("dir", cfg.DataDir).Msg("Using badger store")
	case *store.PostgresStore:
		log.Info().Str("host", cfg.DB.Host).Str("database", cfg.DB.Database).Msg("Using postgres store")
	default:
		log.Warn().Msg("Using in-memory store, exams will not survive a restart")
	}
	return st, nil
}
