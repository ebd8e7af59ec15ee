package db

import (
	"context"
	"fmt"
	"log/slog"
)

// Bootstrap ensures the target database exists and then opens the shared
// pool scoped to it. It returns only once the pool has answered a ping.
//
// Bootstrap is idempotent: running it against an existing database creates
// nothing and yields an equivalent pool. It never creates or alters tables;
// schema is owned by cmd/migrate.
func Bootstrap(ctx context.Context, driverName string, opts DriverOptions, cfg Config) (*DB, error) {
	drv, err := LookupDriver(driverName)
	if err != nil {
		return nil, err
	}

	if err := drv.EnsureDatabase(ctx, opts); err != nil {
		return nil, fmt.Errorf("postboard/db: ensure database %q: %w", opts.Database, err)
	}
	slog.InfoContext(ctx, "database ready", "driver", drv.Name(), "database", opts.Database)

	d, err := OpenWithDriver(driverName, opts, cfg)
	if err != nil {
		return nil, err
	}
	stats := d.Stats()
	slog.InfoContext(ctx, "connection pool initialised",
		"max_open", stats.MaxOpenConnections,
		"open", stats.OpenConnections,
	)
	return d, nil
}
