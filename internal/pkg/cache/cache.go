package cache

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/AhmadMHawwash/10xarch-sub002/internal/pkg/env"
	"github.com/redis/go-redis/v9"
)

var (
	client *redis.Client
	ctx    = context.Background()
)

// SetupCache initializes the connection to the Redis cache server
func SetupCache() {
	host := env.GetEnv("CACHE_HOST", "localhost")
	port := env.GetEnv("CACHE_PORT", "6379")

	client = redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", host, port),
		Password: "", // no password set
		DB:       0,  // use default DB
	})

	// Test the connection
	pong, err := client.Ping(ctx).Result()
	if err != nil {
		log.Printf("Warning: Could not connect to Redis cache: %v", err)
	} else {
		log.Printf("Successfully connected to Redis cache: %s", pong)
	}
}

// GetClient returns the Redis client instance
func GetClient() *redis.Client {
	if client == nil {
		SetupCache()
	}
	return client
}

// Set stores a value in the cache with the given key and expiration time
func Set(key string, value interface{}, expiration time.Duration) error {
	return GetClient().Set(ctx, key, value, expiration).Err()
}

// Get retrieves a value from the cache by key
func Get(key string) (string, error) {
	return GetClient().Get(ctx, key).Result()
}

// Delete removes a value from the cache by key
func Delete(key string) error {
	return GetClient().Del(ctx, key).Err()
}

// BalanceKey builds the cache key for an owner's token balance snapshot.
func BalanceKey(ownerType, ownerID string) string {
	return fmt.Sprintf("tokens:balance:%s:%s", ownerType, ownerID)
}

// InvalidateBalance drops the cached balance snapshot for an owner.
// Callers treat failures as best-effort; the database row is the
// source of truth.
func InvalidateBalance(ownerType, ownerID string) {
	if err := Delete(BalanceKey(ownerType, ownerID)); err != nil && err != redis.Nil {
		log.Printf("cache: failed to invalidate balance for %s:%s: %v", ownerType, ownerID, err)
	}
}
