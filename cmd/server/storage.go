package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/Skotchmaster/bookstore/internal/config"
	"github.com/Skotchmaster/bookstore/internal/session"
)

type closer func() error

func noopClose() error { return nil }

// openTokenStorage picks the token backend named by TOKEN_STORE.
func openTokenStorage(ctx context.Context, cfg *config.Config, l *slog.Logger) (session.TokenStorage, closer, error) {
	switch cfg.TokenStore {
	case "memory":
		return session.NewMemoryStorage(), noopClose, nil

	case "file", "":
		return session.NewFileStorage(cfg.TokenFile), noopClose, nil

	case "sqlite":
		db, err := session.OpenSQLite(cfg.TokenSQLitePath)
		if err != nil {
			return nil, nil, err
		}
		st, err := session.NewGormStorage(db)
		if err != nil {
			return nil, nil, err
		}
		return st, st.Close, nil

	case "postgres":
		db, err := session.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		st, err := session.NewGormStorage(db)
		if err != nil {
			return nil, nil, err
		}
		return st, st.Close, nil

	case "redis":
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		if err := rdb.Ping(ctx).Err(); err != nil {
			l.Warn("redis_ping_failed", "addr", cfg.RedisAddr, "error", err)
		}
		st := session.NewRedisStorage(rdb, cfg.RedisKey)
		return st, st.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown TOKEN_STORE %q", cfg.TokenStore)
}
