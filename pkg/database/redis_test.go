package database

import (
	"testing"
	"time"

	"quiz_master_backend/internal/config"
)

func TestRedisOptions(t *testing.T) {
	cfg := &config.RedisConfig{
		Host:         "cache.internal",
		Port:         6380,
		Password:     "pw",
		DB:           2,
		PoolSize:     20,
		MinIdleConns: 4,
	}
	opts := redisOptions(cfg)
	if opts.Addr != "cache.internal:6380" {
		t.Errorf("Addr = %q", opts.Addr)
	}
	if opts.DB != 2 || opts.PoolSize != 20 || opts.MinIdleConns != 4 || opts.Password != "pw" {
		t.Errorf("unexpected options: %+v", opts)
	}
	if opts.DialTimeout != 3*time.Second {
		t.Errorf("DialTimeout = %v, want default 3s", opts.DialTimeout)
	}

	cfg.DialTimeoutSec = 1
	if got := redisOptions(cfg).DialTimeout; got != time.Second {
		t.Errorf("DialTimeout = %v, want 1s", got)
	}
}
