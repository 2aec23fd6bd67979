package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/simple-media/pkg/simplemedia"
	"github.com/tendant/simple-media/pkg/simplemedia/repo/memory"
	repopg "github.com/tendant/simple-media/pkg/simplemedia/repo/postgres"
	memorystorage "github.com/tendant/simple-media/pkg/simplemedia/storage/memory"
	s3storage "github.com/tendant/simple-media/pkg/simplemedia/storage/s3"
	"github.com/tendant/simple-media/pkg/simplemedia/thumbnail"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top of library defaults.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.resolve(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Port:        "8080",
		Environment: "development",
		DatabaseURL: "memory",
		StorageURL:  "memory://",
		S3: S3Config{
			Region:          "us-east-1",
			PresignDuration: s3storage.DefaultPresignDuration,
			SSEAlgorithm:    "AES256",
		},
		AMQP: AMQPConfig{
			Queue:    "media-uploads",
			Prefetch: 4,
		},
		Thumbnail: ThumbnailConfig{
			Width:   simplemedia.DefaultThumbnailOptions.Width,
			Height:  simplemedia.DefaultThumbnailOptions.Height,
			Quality:   simplemedia.DefaultThumbnailOptions.Quality,
			MaxPixels: thumbnail.DefaultMaxPixels,
		},
		List: ListConfig{
			DefaultLimit: simplemedia.DefaultListLimit,
			MaxLimit:     simplemedia.MaxListLimit,
		},
	}
}

// ServerConfig represents configuration for the media server and worker.
// The env tags are read by WithEnv.
type ServerConfig struct {
	Port        string `env:"PORT" env-default:"8080"`
	Environment string `env:"ENVIRONMENT" env-default:"development"` // development, production, testing

	// Database configuration
	DatabaseURL   string `env:"DATABASE_URL" env-default:"memory"`
	DBSchema      string `env:"DB_SCHEMA"`
	RunMigrations bool   `env:"RUN_MIGRATIONS" env-default:"false"`
	DatabaseType  string // derived: "memory" or "postgres"

	// Storage configuration
	StorageURL  string `env:"STORAGE_URL" env-default:"memory://"`
	StorageType string // derived: "memory" or "s3"
	S3          S3Config

	JWTSecret    string `env:"JWT_SECRET"`
	WebhookToken string `env:"WEBHOOK_TOKEN"`

	AMQP      AMQPConfig
	Thumbnail ThumbnailConfig
	List      ListConfig
}

// S3Config holds S3 settings not carried by STORAGE_URL. The URL fills an
// empty bucket or endpoint and replaces the default region.
type S3Config struct {
	Bucket                 string `env:"S3_BUCKET"`
	Region                 string `env:"S3_REGION" env-default:"us-east-1"`
	Endpoint               string `env:"S3_ENDPOINT"`
	AccessKeyID            string `env:"S3_ACCESS_KEY_ID"`
	SecretAccessKey        string `env:"S3_SECRET_ACCESS_KEY"`
	UsePathStyle           bool   `env:"S3_USE_PATH_STYLE" env-default:"false"`
	PresignDuration        int    `env:"S3_PRESIGN_SECONDS" env-default:"300"`
	EnableSSE              bool   `env:"S3_ENABLE_SSE" env-default:"false"`
	SSEAlgorithm           string `env:"S3_SSE_ALGORITHM" env-default:"AES256"`
	SSEKMSKeyID            string `env:"S3_SSE_KMS_KEY_ID"`
	CreateBucketIfNotExist bool   `env:"S3_CREATE_BUCKET" env-default:"false"`
}

type AMQPConfig struct {
	URL      string `env:"AMQP_URL"`
	Queue    string `env:"AMQP_QUEUE" env-default:"media-uploads"`
	Prefetch int    `env:"AMQP_PREFETCH" env-default:"4"`
}

type ThumbnailConfig struct {
	Width     int `env:"THUMBNAIL_WIDTH" env-default:"200"`
	Height    int `env:"THUMBNAIL_HEIGHT" env-default:"200"`
	Quality   int `env:"THUMBNAIL_QUALITY" env-default:"80"`
	MaxPixels int `env:"THUMBNAIL_MAX_PIXELS" env-default:"268435456"`
}

type ListConfig struct {
	DefaultLimit int `env:"LIST_DEFAULT_LIMIT" env-default:"20"`
	MaxLimit     int `env:"LIST_MAX_LIMIT" env-default:"100"`
}

// IsProduction reports whether the environment is "production".
func (c *ServerConfig) IsProduction() bool {
	return c.Environment == "production"
}

// resolve derives DatabaseType and StorageType from their URLs.
func (c *ServerConfig) resolve() error {
	switch {
	case c.DatabaseURL == "" || c.DatabaseURL == "memory":
		c.DatabaseType = "memory"
		c.DatabaseURL = ""
	case strings.HasPrefix(c.DatabaseURL, "postgresql://"), strings.HasPrefix(c.DatabaseURL, "postgres://"):
		c.DatabaseType = "postgres"
	default:
		return fmt.Errorf("unsupported DATABASE_URL format: %s (use 'memory' or 'postgresql://...')", c.DatabaseURL)
	}

	switch {
	case c.StorageURL == "" || c.StorageURL == "memory" || c.StorageURL == "memory://":
		c.StorageType = "memory"
	case strings.HasPrefix(c.StorageURL, "s3://"):
		c.StorageType = "s3"
		return c.applyS3URL()
	default:
		return fmt.Errorf("unsupported STORAGE_URL format: %s (use 'memory://' or 's3://...')", c.StorageURL)
	}
	return nil
}

// applyS3URL reads s3://bucket?region=us-east-1&endpoint=http://localhost:9000
func (c *ServerConfig) applyS3URL() error {
	u, err := url.Parse(c.StorageURL)
	if err != nil {
		return fmt.Errorf("invalid STORAGE_URL: %w", err)
	}
	if c.S3.Bucket == "" {
		c.S3.Bucket = u.Host
	}
	q := u.Query()
	if v := q.Get("region"); v != "" && (c.S3.Region == "" || c.S3.Region == "us-east-1") {
		c.S3.Region = v
	}
	if v := q.Get("endpoint"); v != "" && c.S3.Endpoint == "" {
		c.S3.Endpoint = v
	}
	if c.S3.Bucket == "" {
		return errors.New("S3 bucket name cannot be empty in STORAGE_URL")
	}
	return nil
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	if c.DatabaseType != "memory" && c.DatabaseType != "postgres" {
		return errors.New("database_type must be 'memory' or 'postgres'")
	}
	if c.DatabaseType == "postgres" && c.DatabaseURL == "" {
		return errors.New("database_url is required when using postgres")
	}

	if c.StorageType != "memory" && c.StorageType != "s3" {
		return errors.New("storage_type must be 'memory' or 's3'")
	}
	if c.S3.PresignDuration <= 0 {
		return errors.New("s3 presign duration must be positive")
	}

	if c.IsProduction() {
		if c.JWTSecret == "" {
			return errors.New("jwt_secret is required in production")
		}
		if c.WebhookToken == "" {
			return errors.New("webhook_token is required in production")
		}
		if c.DatabaseType == "memory" || c.StorageType == "memory" {
			return errors.New("memory database or storage is not allowed in production")
		}
	}

	if c.Thumbnail.Width <= 0 || c.Thumbnail.Height <= 0 {
		return errors.New("thumbnail dimensions must be positive")
	}
	if c.Thumbnail.Quality < 1 || c.Thumbnail.Quality > 100 {
		return errors.New("thumbnail quality must be between 1 and 100")
	}
	if c.Thumbnail.MaxPixels <= 0 {
		return errors.New("thumbnail max pixels must be positive")
	}

	if c.List.DefaultLimit <= 0 || c.List.MaxLimit <= 0 {
		return errors.New("list limits must be positive")
	}
	if c.List.DefaultLimit > c.List.MaxLimit {
		return fmt.Errorf("list default limit %d exceeds max limit %d", c.List.DefaultLimit, c.List.MaxLimit)
	}

	return nil
}

// Runtime holds a built service and the resources behind it.
type Runtime struct {
	Service simplemedia.Service
	pool    *pgxpool.Pool
}

// Close releases the database pool, if any.
func (r *Runtime) Close() {
	if r.pool != nil {
		r.pool.Close()
	}
}

// BuildService creates a Service from the configuration. extra options are
// applied last, so callers can add a logger or metrics recorder.
func (c *ServerConfig) BuildService(ctx context.Context, logger *slog.Logger, extra ...simplemedia.Option) (*Runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}
	rt := &Runtime{}

	repo, pool, err := c.buildRepository(ctx, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build repository: %w", err)
	}
	rt.pool = pool

	store, err := c.buildStorage(ctx)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to build storage: %w", err)
	}

	options := []simplemedia.Option{
		simplemedia.WithRepository(repo),
		simplemedia.WithStorage(store),
		simplemedia.WithThumbnailer(thumbnail.New(thumbnail.WithMaxPixels(c.Thumbnail.MaxPixels))),
		simplemedia.WithThumbnailOptions(simplemedia.ThumbnailOptions{
			Width:   c.Thumbnail.Width,
			Height:  c.Thumbnail.Height,
			Quality: c.Thumbnail.Quality,
		}),
		simplemedia.WithListLimits(c.List.DefaultLimit, c.List.MaxLimit),
		simplemedia.WithLogger(logger),
	}
	options = append(options, extra...)

	svc, err := simplemedia.New(options...)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.Service = svc
	return rt, nil
}

// buildRepository creates a Repository based on the configuration
func (c *ServerConfig) buildRepository(ctx context.Context, logger *slog.Logger) (simplemedia.Repository, *pgxpool.Pool, error) {
	switch c.DatabaseType {
	case "memory":
		return memory.New(), nil, nil
	case "postgres":
		pool, err := NewPool(ctx, c.DatabaseURL, c.DBSchema)
		if err != nil {
			return nil, nil, err
		}
		if c.RunMigrations {
			err := repopg.Migrate(ctx, pool, repopg.MigrateConfig{SchemaName: c.DBSchema, Logger: logger})
			if err != nil {
				pool.Close()
				return nil, nil, err
			}
		}
		return repopg.NewWithPool(pool), pool, nil
	default:
		return nil, nil, fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}
}

// NewPool opens and pings a pgx pool. When schema is set every session uses
// it as its search_path.
func NewPool(ctx context.Context, databaseURL, schema string) (*pgxpool.Pool, error) {
	if databaseURL == "" {
		return nil, errors.New("database_url is required")
	}
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
	}
	if schema != "" {
		cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			_, err := conn.Exec(ctx, "SET search_path TO "+pgx.Identifier{schema}.Sanitize())
			return err
		}
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	return pool, nil
}

// buildStorage creates a Storage based on the configuration
func (c *ServerConfig) buildStorage(ctx context.Context) (simplemedia.Storage, error) {
	switch c.StorageType {
	case "memory":
		return memorystorage.New(), nil
	case "s3":
		return s3storage.New(ctx, s3storage.Config{
			Region:                 c.S3.Region,
			Bucket:                 c.S3.Bucket,
			AccessKeyID:            c.S3.AccessKeyID,
			SecretAccessKey:        c.S3.SecretAccessKey,
			Endpoint:               c.S3.Endpoint,
			UsePathStyle:           c.S3.UsePathStyle,
			PresignDuration:        c.S3.PresignDuration,
			EnableSSE:              c.S3.EnableSSE,
			SSEAlgorithm:           c.S3.SSEAlgorithm,
			SSEKMSKeyID:            c.S3.SSEKMSKeyID,
			CreateBucketIfNotExist: c.S3.CreateBucketIfNotExist,
		})
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", c.StorageType)
	}
}
