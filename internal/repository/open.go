package repository

import (
	"context"
	"fmt"
)

// Store drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMongo    = "mongo"
)

// StoreOptions selects and configures a Store backend
type StoreOptions struct {
	Driver      string
	DatabaseURL string
	SQLitePath  string
	MongoURI    string
	MongoDB     string
}

// OpenStore connects the configured backend and migrates its schema
func OpenStore(ctx context.Context, opts StoreOptions) (Store, error) {
	var store Store
	switch opts.Driver {
	case DriverPostgres:
		db, err := OpenPostgres(opts.DatabaseURL)
		if err != nil {
			return nil, err
		}
		store = NewGormStore(db)
	case DriverSQLite:
		db, err := OpenSQLite(opts.SQLitePath)
		if err != nil {
			return nil, err
		}
		store = NewGormStore(db)
	case DriverMongo:
		client, err := ConnectMongo(ctx, opts.MongoURI)
		if err != nil {
			return nil, err
		}
		store = NewMongoStore(client, opts.MongoDB)
	default:
		return nil, fmt.Errorf("unknown store driver %q", opts.Driver)
	}

	if err := store.AutoMigrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("migrate %s store: %w", opts.Driver, err)
	}
	return store, nil
}
