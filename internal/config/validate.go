package config

import (
	"fmt"
	"strings"

	"go.uber.org/zap/zapcore"
)

// Validate checks that the selected components have what they need.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Server.HTTPAddr) == "" {
		return fmt.Errorf("server.http_addr must be set")
	}

	var lvl zapcore.Level
	if err := lvl.Set(strings.ToLower(c.Log.Level)); err != nil {
		return fmt.Errorf("log.level %q is not a valid level", c.Log.Level)
	}
	if c.Log.Encoding != "json" && c.Log.Encoding != "console" {
		return fmt.Errorf("log.encoding must be json or console, got %q", c.Log.Encoding)
	}

	switch c.Store.Backend {
	case BackendMemory:
	case BackendPostgres:
		if strings.TrimSpace(c.DB.DSN) == "" {
			return fmt.Errorf("db.dsn is required for the postgres backend")
		}
	case BackendDynamoDB:
		if strings.TrimSpace(c.DynamoDB.Table) == "" {
			return fmt.Errorf("dynamodb.table is required for the dynamodb backend")
		}
		if strings.TrimSpace(c.DynamoDB.Region) == "" {
			return fmt.Errorf("dynamodb.region is required for the dynamodb backend")
		}
	case BackendRemote:
		if err := c.Remote.validateEndpoint(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("store.backend must be one of memory, postgres, dynamodb, remote, got %q", c.Store.Backend)
	}

	if c.Remote.PageLimit < 1 || c.Remote.PageLimit > 50 {
		return fmt.Errorf("remote.page_limit must be between 1 and 50, got %d", c.Remote.PageLimit)
	}
	if c.Remote.MaxPages < 1 {
		return fmt.Errorf("remote.max_pages must be at least 1, got %d", c.Remote.MaxPages)
	}

	switch c.Board.Source {
	case BoardSourceStore:
	case BoardSourceRemote:
		if err := c.Remote.validateEndpoint(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("board.source must be store or remote, got %q", c.Board.Source)
	}

	switch c.Board.Cache {
	case CacheNone, "":
	case CacheMemory:
	case CacheRedis:
		if strings.TrimSpace(c.Redis.Addr) == "" {
			return fmt.Errorf("redis.addr is required for the redis board cache")
		}
	default:
		return fmt.Errorf("board.cache must be none, memory or redis, got %q", c.Board.Cache)
	}
	if c.Board.CacheTTL < 0 {
		return fmt.Errorf("board.cache_ttl must not be negative")
	}

	if c.Feed.Buffer < 1 {
		return fmt.Errorf("feed.buffer must be at least 1, got %d", c.Feed.Buffer)
	}
	return nil
}

func (r RemoteConfig) validateEndpoint() error {
	if strings.TrimSpace(r.BaseURL) == "" {
		return fmt.Errorf("remote.base_url is required")
	}
	if strings.TrimSpace(r.APIKey) == "" {
		return fmt.Errorf("remote.api_key is required")
	}
	return nil
}
