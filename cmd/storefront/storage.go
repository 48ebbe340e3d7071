package main

import (
	"context"
	"fmt"

	"github.com/example/storefront/pkg/audit"
	"github.com/example/storefront/pkg/config"
	"github.com/example/storefront/pkg/repository"
	"github.com/example/storefront/pkg/service"
)

// storage is what every backend offers: the service store, an audit sink and
// a liveness probe.
type storage interface {
	service.Store
	audit.Sink
	Ping(ctx context.Context) error
}

func openStorage(ctx context.Context, cfg *config.Config) (storage, func(), error) {
	switch cfg.Storage.Driver {
	case config.DriverMongoDB:
		repo, err := repository.NewMongoRepository(ctx, &cfg.MongoDB)
		if err != nil {
			return nil, nil, err
		}
		return repo, func() { _ = repo.Close(context.Background()) }, nil

	case config.DriverMySQL:
		repo, err := repository.NewMySQLRepository(&cfg.MySQL)
		if err != nil {
			return nil, nil, err
		}
		return repo, func() { _ = repo.Close() }, nil

	case config.DriverSQLite:
		repo, err := repository.NewSQLiteRepository(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return repo, func() { _ = repo.Close() }, nil

	case config.DriverMemory:
		return repository.NewMemoryStore(), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}
