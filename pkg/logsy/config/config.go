// Package config loads server configuration from the environment and
// assembles the service with its repository, storage, tiler and event bus.
package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fruit-freedom/logsy/pkg/logsy"
	"github.com/fruit-freedom/logsy/pkg/logsy/events/rabbitmq"
	memoryrepo "github.com/fruit-freedom/logsy/pkg/logsy/repo/memory"
	postgresrepo "github.com/fruit-freedom/logsy/pkg/logsy/repo/postgres"
	fsstorage "github.com/fruit-freedom/logsy/pkg/logsy/storage/fs"
	memorystorage "github.com/fruit-freedom/logsy/pkg/logsy/storage/memory"
	s3storage "github.com/fruit-freedom/logsy/pkg/logsy/storage/s3"
	"github.com/fruit-freedom/logsy/pkg/logsy/tiling"
)

// ServerConfig represents server configuration for the logsy service
type ServerConfig struct {
	Port        string
	Environment string // development, production, testing

	// Database configuration
	DatabaseURL  string
	DatabaseType string // "memory", "postgres"

	// Storage configuration
	StorageBackend   string // "memory", "fs", "s3"
	StorageDirectory string
	S3               S3EnvConfig

	// Tiling service; empty TilerURL disables geotiff tiling
	TilerURL           string
	TilerTimeoutSecs   int
	TilerRetryAttempts int

	// Event bus
	EventBusEnabled bool
	EventBusURL     string
	EventExchange   string
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	if c.DatabaseType != "memory" && c.DatabaseType != "postgres" {
		return errors.New("database type must be 'memory' or 'postgres'")
	}

	if c.DatabaseType == "postgres" {
		if !strings.HasPrefix(c.DatabaseURL, "postgres://") &&
			!strings.HasPrefix(c.DatabaseURL, "postgresql://") {
			return fmt.Errorf("unsupported DATABASE_URL format (use 'memory' or 'postgresql://...')")
		}
	}

	switch c.StorageBackend {
	case "memory":
	case "fs":
		if c.StorageDirectory == "" {
			return errors.New("storage directory is required for fs backend")
		}
	case "s3":
		if c.S3.BucketName == "" {
			return errors.New("bucket name is required for s3 backend")
		}
	default:
		return fmt.Errorf("unsupported storage backend: %s", c.StorageBackend)
	}

	if c.EventBusEnabled && c.EventBusURL == "" {
		return errors.New("event bus connection string is required")
	}

	return nil
}

// RequestTimeout returns the per-request deadline for the HTTP layer. When a
// tiler is configured the deadline covers its full retry schedule, so a slow
// geotiff ingestion is not cut off below the tiling budget.
func (c *ServerConfig) RequestTimeout() time.Duration {
	timeout := 60 * time.Second
	if c.TilerURL == "" {
		return timeout
	}
	attempts := c.TilerRetryAttempts
	if attempts < 1 {
		attempts = 1
	}
	budget := time.Duration(attempts)*time.Duration(c.TilerTimeoutSecs)*time.Second + 30*time.Second
	if budget > timeout {
		return budget
	}
	return timeout
}

// Components holds everything Build assembled, so callers can reach the
// pieces the HTTP layer needs and release them at shutdown.
type Components struct {
	Service logsy.Service
	Store   logsy.BlobStore
	Bus     logsy.EventBus
	Pool    *pgxpool.Pool
}

// Close releases the event bus connection and the database pool.
func (c *Components) Close() error {
	var err error
	if c.Bus != nil {
		err = c.Bus.Close()
	}
	if c.Pool != nil {
		c.Pool.Close()
	}
	return err
}

// Build assembles the service and its collaborators from the configuration.
// The postgres schema is migrated before the service is handed out.
func (c *ServerConfig) Build(ctx context.Context) (*Components, error) {
	components := &Components{}

	repo, err := c.buildRepository(ctx, components)
	if err != nil {
		return nil, fmt.Errorf("failed to build repository: %w", err)
	}

	store, err := c.buildStorageBackend()
	if err != nil {
		return nil, fmt.Errorf("failed to build storage backend: %w", err)
	}
	components.Store = store

	options := []logsy.Option{
		logsy.WithRepository(repo),
		logsy.WithBlobStore(store),
	}

	if c.TilerURL != "" {
		options = append(options, logsy.WithTiler(tiling.NewClient(c.TilerURL,
			tiling.WithTimeout(time.Duration(c.TilerTimeoutSecs)*time.Second),
			tiling.WithRetry(c.TilerRetryAttempts, time.Second),
		)))
	}

	if c.EventBusEnabled {
		bus := rabbitmq.New(c.EventBusURL, c.EventExchange)
		if err := bus.Connect(ctx); err != nil {
			return nil, fmt.Errorf("failed to connect event bus: %w", err)
		}
		components.Bus = bus
		options = append(options, logsy.WithEventBus(bus))
	}

	svc, err := logsy.New(options...)
	if err != nil {
		return nil, err
	}
	components.Service = svc

	return components, nil
}

func (c *ServerConfig) buildRepository(ctx context.Context, components *Components) (logsy.Repository, error) {
	switch c.DatabaseType {
	case "memory":
		return memoryrepo.New(), nil
	case "postgres":
		pool, err := pgxpool.New(ctx, c.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create pgx pool: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("database ping failed: %w", err)
		}
		if err := postgresrepo.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("schema migration failed: %w", err)
		}
		components.Pool = pool
		return postgresrepo.New(pool), nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}
}

func (c *ServerConfig) buildStorageBackend() (logsy.BlobStore, error) {
	switch c.StorageBackend {
	case "memory":
		return memorystorage.New(), nil
	case "fs":
		return fsstorage.New(fsstorage.Config{BaseDir: c.StorageDirectory})
	case "s3":
		return s3storage.New(s3storage.Config{
			Region:                 c.S3.Region,
			Bucket:                 c.S3.BucketName,
			AccessKeyID:            c.S3.AccessKeyID,
			SecretAccessKey:        c.S3.SecretAccessKey,
			Endpoint:               c.S3.Endpoint,
			UseSSL:                 c.S3.UseSSL,
			UsePathStyle:           c.S3.UsePathStyle,
			CreateBucketIfNotExist: c.S3.CreateBucket,
		})
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", c.StorageBackend)
	}
}
