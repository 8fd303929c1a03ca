package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/Baby-jesuset/FBGENERALHW-sj/config"
	"github.com/Baby-jesuset/FBGENERALHW-sj/pkg/logger"
	"github.com/redis/go-redis/v9"
)

var client *redis.Client

// Init connects the shared client and verifies it with a ping.
func Init(cfg *config.RedisConfig) error {
	logger.Info("Initializing Redis connection", map[string]interface{}{
		"addr": cfg.Addr(),
		"db":   cfg.DB,
	})

	c := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.Ping(ctx).Err(); err != nil {
		logger.Error("Failed to connect to Redis", err, map[string]interface{}{
			"addr": cfg.Addr(),
		})
		_ = c.Close()
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	client = c
	logger.Info("Redis connection established")
	return nil
}

// GetClient returns the shared client, nil before Init succeeds.
func GetClient() *redis.Client {
	return client
}

func Close() error {
	if client == nil {
		return nil
	}
	logger.Info("Closing Redis connection")
	err := client.Close()
	client = nil
	return err
}
