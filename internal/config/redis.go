package config

// Redis backs the response cache, the write rate limiter, the override
// store and the cross-replica broadcaster.  When it cannot be reached at
// startup every one of those degrades to its in-process variant.

import (
	"context"
	"crypto/tls"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOptions builds client options from the environment:
//
//	REDIS_ADDR            host:port shorthand
//	REDIS_HOST/REDIS_PORT take precedence over REDIS_ADDR when both set
//	REDIS_PASSWORD        optional password
//	REDIS_DB              database number (default 0)
//	REDIS_TLS             "true" or "1" enables TLS
func RedisOptions() *redis.Options {
	addr := envStr("REDIS_ADDR", "localhost:6379")
	if host, port := os.Getenv("REDIS_HOST"), os.Getenv("REDIS_PORT"); host != "" && port != "" {
		addr = host + ":" + port
	}
	var tlsConf *tls.Config
	if v := os.Getenv("REDIS_TLS"); strings.EqualFold(v, "true") || v == "1" {
		tlsConf = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return &redis.Options{
		Addr:      addr,
		Password:  os.Getenv("REDIS_PASSWORD"),
		DB:        envInt("REDIS_DB", 0),
		TLSConfig: tlsConf,
	}
}

// NewRedisClient connects using RedisOptions and pings the server with a
// short timeout.  It returns nil when Redis is disabled (REDIS_ENABLED=false)
// or unreachable so callers can degrade gracefully.
func NewRedisClient() *redis.Client {
	if !envBool("REDIS_ENABLED", true) {
		return nil
	}
	client := redis.NewClient(RedisOptions())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil
	}
	return client
}
