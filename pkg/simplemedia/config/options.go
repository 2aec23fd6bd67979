package config

import (
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"
)

// WithEnv reads configuration from environment variables using the env
// tags on ServerConfig.
//
//	PORT, ENVIRONMENT
//	DATABASE_URL  "memory" (default) or "postgresql://..."
//	DB_SCHEMA, RUN_MIGRATIONS
//	STORAGE_URL   "memory://" (default) or "s3://bucket?region=...&endpoint=..."
//	S3_*          credentials, path style, presign seconds, SSE
//	JWT_SECRET, WEBHOOK_TOKEN (both required in production)
//	AMQP_URL, AMQP_QUEUE, AMQP_PREFETCH
//	THUMBNAIL_WIDTH, THUMBNAIL_HEIGHT, THUMBNAIL_QUALITY, THUMBNAIL_MAX_PIXELS
//	LIST_DEFAULT_LIMIT, LIST_MAX_LIMIT
func WithEnv() Option {
	return func(c *ServerConfig) error {
		if err := cleanenv.ReadEnv(c); err != nil {
			return fmt.Errorf("failed to read environment: %w", err)
		}
		return nil
	}
}

// WithPort sets the server port
func WithPort(port string) Option {
	return func(c *ServerConfig) error {
		if port == "" {
			return fmt.Errorf("port cannot be empty")
		}
		c.Port = port
		return nil
	}
}

// WithEnvironment sets the environment (development, production, testing)
func WithEnvironment(env string) Option {
	return func(c *ServerConfig) error {
		if env == "" {
			return fmt.Errorf("environment cannot be empty")
		}
		c.Environment = env
		return nil
	}
}

// WithDatabaseURL sets the database connection string ("memory" or a
// postgres URL)
func WithDatabaseURL(url string) Option {
	return func(c *ServerConfig) error {
		c.DatabaseURL = url
		return nil
	}
}

// WithDatabaseSchema sets the database schema (for Postgres)
func WithDatabaseSchema(schema string) Option {
	return func(c *ServerConfig) error {
		c.DBSchema = schema
		return nil
	}
}

// WithStorageURL sets the storage connection string
func WithStorageURL(url string) Option {
	return func(c *ServerConfig) error {
		c.StorageURL = url
		return nil
	}
}

// WithWebhookToken sets the shared token guarding the storage webhook
func WithWebhookToken(token string) Option {
	return func(c *ServerConfig) error {
		c.WebhookToken = token
		return nil
	}
}

func WithJWTSecret(secret string) Option {
	return func(c *ServerConfig) error {
		c.JWTSecret = secret
		return nil
	}
}

// WithThumbnailSize sets the thumbnail box and JPEG quality
func WithThumbnailSize(width, height, quality int) Option {
	return func(c *ServerConfig) error {
		if width <= 0 || height <= 0 {
			return fmt.Errorf("thumbnail dimensions must be positive, got: %dx%d", width, height)
		}
		c.Thumbnail.Width = width
		c.Thumbnail.Height = height
		c.Thumbnail.Quality = quality
		return nil
	}
}

// WithThumbnailMaxPixels caps the decoded size of source images
func WithThumbnailMaxPixels(n int) Option {
	return func(c *ServerConfig) error {
		c.Thumbnail.MaxPixels = n
		return nil
	}
}

// WithListLimits sets the default and maximum page sizes
func WithListLimits(defaultLimit, maxLimit int) Option {
	return func(c *ServerConfig) error {
		c.List = ListConfig{DefaultLimit: defaultLimit, MaxLimit: maxLimit}
		return nil
	}
}
