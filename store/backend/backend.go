// Package backend opens the store selected by configuration.
package backend

import (
	"context"
	"fmt"

	"github.com/Ashenafi-pixel/jackpot-royale/config"
	"github.com/Ashenafi-pixel/jackpot-royale/store"
	"github.com/Ashenafi-pixel/jackpot-royale/store/filestore"
	"github.com/Ashenafi-pixel/jackpot-royale/store/memstore"
	"github.com/Ashenafi-pixel/jackpot-royale/store/mysqlstore"
	"github.com/Ashenafi-pixel/jackpot-royale/store/pgstore"
	"github.com/Ashenafi-pixel/jackpot-royale/store/redisstore"
	"github.com/Ashenafi-pixel/jackpot-royale/store/remote"
)

const (
	File     = "file"
	Memory   = "memory"
	Postgres = "postgres"
	MySQL    = "mysql"
	Redis    = "redis"
	Remote   = "remote"
)

// Open connects to the configured driver. SQL backends apply their schema first.
func Open(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.StoreDriver {
	case File, "":
		return filestore.New(cfg.DataDir), nil
	case Memory:
		return memstore.New(), nil
	case Postgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("backend: DATABASE_URL is required for %s", Postgres)
		}
		return pgstore.Open(ctx, cfg.DatabaseURL)
	case MySQL:
		if cfg.MySQLDSN == "" {
			return nil, fmt.Errorf("backend: MYSQL_DSN is required for %s", MySQL)
		}
		return mysqlstore.Open(ctx, cfg.MySQLDSN)
	case Redis:
		return redisstore.Open(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	case Remote:
		return remote.NewClient(cfg.RemoteStoreURL, 0), nil
	}
	return nil, fmt.Errorf("backend: unknown STORE_DRIVER %q", cfg.StoreDriver)
}
