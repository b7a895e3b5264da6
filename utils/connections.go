package utils

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
)

// CreatePostgresConnection opens the job-store pool and pings it with
// exponential backoff so a briefly-late database does not kill the
// process at boot.
func CreatePostgresConnection(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetConnMaxIdleTime(5 * time.Minute)

	retry := backoff.NewExponentialBackOff()
	retry.MaxElapsedTime = 30 * time.Second

	err = backoff.Retry(func() error {
		return db.Ping()
	}, retry)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres unreachable: %w", err)
	}

	fmt.Printf("Connected to postgres job store\n")
	return db, nil
}

// CreateRedisConnection opens the queue/pub-sub client, pinging with
// the same backoff policy as the job store.
func CreateRedisConnection(address string, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
	})

	retry := backoff.NewExponentialBackOff()
	retry.MaxElapsedTime = 30 * time.Second

	err := backoff.Retry(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return client.Ping(ctx).Err()
	}, retry)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("redis unreachable at %s: %w", address, err)
	}

	fmt.Printf("Connected to redis at %s\n", address)
	return client, nil
}
