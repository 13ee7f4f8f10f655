package testutil

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisCandidates lists the addresses tried when TEST_REDIS_ADDR and REDIS_ADDR are unset.
var redisCandidates = []string{"localhost:56379", "localhost:6379", "redis:6379"}

// SetupTestRedis returns a client on an empty, reserved Redis DB. The test is skipped
// when no Redis answers, unless TEST_REQUIRE_REDIS or TEST_REQUIRE_INFRA is set.
// Callers close the client.
func SetupTestRedis(t TestingTB) *redis.Client {
	t.Helper()

	addr, err := findRedis()
	if err != nil {
		if requireRedis() {
			t.Fatal("Redis not available for testing:", err)
		}
		t.Skip("Redis not available for testing:", err)
	}

	client := redis.NewClient(&redis.Options{Addr: addr, DB: reserveRedisDB(t, addr)})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.FlushDB(ctx).Err(); err != nil {
		closeAndLog(t, "redis client", client)
		t.Fatalf("Failed to flush test redis db at %s: %v", addr, err)
	}
	return client
}

func findRedis() (string, error) {
	candidates := redisCandidates
	if addr := envOr("TEST_REDIS_ADDR", os.Getenv("REDIS_ADDR")); addr != "" {
		candidates = []string{addr}
	}

	var lastErr error
	for _, addr := range candidates {
		if lastErr = pingRedis(addr); lastErr == nil {
			return addr, nil
		}
	}
	return "", lastErr
}

func pingRedis(addr string) error {
	c := redis.NewClient(&redis.Options{Addr: addr})
	defer func() { _ = c.Close() }()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping %s: %w", addr, err)
	}
	return nil
}

// reserveRedisDB picks a DB index so packages running in parallel do not flush each
// other. TEST_REDIS_DB wins; otherwise a lock key in DB 0 claims one of 1..15 until the
// test ends. DB 1 is the fallback.
func reserveRedisDB(t TestingTB, addr string) int {
	if v := os.Getenv("TEST_REDIS_DB"); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i >= 0 {
			return i
		}
		t.Logf("Invalid TEST_REDIS_DB=%q, reserving one instead", v)
	}

	meta := redis.NewClient(&redis.Options{Addr: addr, DB: 0})
	owner := fmt.Sprintf("%d:%d", os.Getpid(), time.Now().UnixNano())
	for i := 1; i <= 15; i++ {
		key := fmt.Sprintf("renderjobs:testutil:db_lock:%d", i)
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		ok, err := meta.SetNX(ctx, key, owner, 30*time.Minute).Result()
		cancel()
		if err != nil || !ok {
			continue
		}
		t.Cleanup(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := meta.Del(ctx, key).Err(); err != nil {
				t.Logf("warning: failed to release redis db lock %s: %v", key, err)
			}
			closeAndLog(t, "redis meta client", meta)
		})
		return i
	}

	closeAndLog(t, "redis meta client", meta)
	t.Logf("No free Redis DB at %s; using DB 1", addr)
	return 1
}
