// Package store picks the persistence backend named in config.
package store

import (
	"context"
	"fmt"

	"github.com/dkeye/huddle/internal/config"
	"github.com/dkeye/huddle/internal/core"
	"github.com/dkeye/huddle/internal/store/memory"
	"github.com/dkeye/huddle/internal/store/mongostore"
	"github.com/dkeye/huddle/internal/store/sqlstore"
)

func Open(ctx context.Context, cfg config.StoreConfig) (core.Store, error) {
	switch cfg.Driver {
	case "", "memory":
		return memory.New(), nil
	case "mongo":
		s, err := mongostore.Open(ctx, mongostore.Config{URI: cfg.MongoURI, Database: cfg.MongoDatabase})
		if err != nil {
			return nil, err
		}
		return s, nil
	case "postgres":
		s, err := sqlstore.Open(cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
