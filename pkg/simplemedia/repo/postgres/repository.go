package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/simple-media/pkg/simplemedia"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository implements simplemedia.Repository using PostgreSQL
type Repository struct {
	db DBTX
}

// New creates a new PostgreSQL repository
func New(db DBTX) *Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with connection pool
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

const mediaColumns = `id, owner_id, file_name, file_size, content_type,
	storage_key, thumbnail_key, status, created_at, updated_at`

// Error handling helper
func handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			if strings.Contains(pgErr.ConstraintName, "storage_key") {
				return fmt.Errorf("%s: storage key already in use: %w", operation, err)
			}
			return fmt.Errorf("%s: duplicate entry: %w", operation, err)
		case "23502": // not_null_violation
			return fmt.Errorf("%s: required field %s is missing: %w", operation, pgErr.ColumnName, err)
		case "23514": // check_violation
			return fmt.Errorf("%s: check constraint %s violated: %w", operation, pgErr.ConstraintName, err)
		case "42P01": // undefined_table
			return fmt.Errorf("%s: table does not exist - database migration required: %w", operation, err)
		default:
			return fmt.Errorf("database error in %s: %s (code: %s): %w", operation, pgErr.Message, pgErr.Code, err)
		}
	}

	return fmt.Errorf("database error in %s: %w", operation, err)
}

// Save upserts the media row. A row with the same id but another owner is
// left untouched and reported as an error.
func (r *Repository) Save(ctx context.Context, media *simplemedia.Media) error {
	s := media.Snapshot()
	query := `
		INSERT INTO media (` + mediaColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			file_name = EXCLUDED.file_name,
			file_size = EXCLUDED.file_size,
			content_type = EXCLUDED.content_type,
			storage_key = EXCLUDED.storage_key,
			thumbnail_key = EXCLUDED.thumbnail_key,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at
		WHERE media.owner_id = EXCLUDED.owner_id`

	tag, err := r.db.Exec(ctx, query,
		s.ID, s.OwnerID, s.FileName, s.FileSize, s.ContentType,
		s.StorageKey, nullableString(s.ThumbnailKey), s.Status, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return handlePostgresError("save media", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("save media %s: id belongs to another owner", s.ID)
	}
	return nil
}

func (r *Repository) FindByIDAndOwner(ctx context.Context, id, ownerID uuid.UUID, createdAt time.Time) (*simplemedia.Media, error) {
	query := `SELECT ` + mediaColumns + ` FROM media WHERE id = $1 AND owner_id = $2`
	args := []interface{}{id, ownerID}
	if !createdAt.IsZero() {
		query += ` AND created_at = $3`
		args = append(args, createdAt)
	}

	m, err := scanMedia(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, simplemedia.ErrNotFound
		}
		return nil, handlePostgresError("find media by id", err)
	}
	return m, nil
}

// FindByOwner pages with a keyset on (created_at, id), both descending.
func (r *Repository) FindByOwner(ctx context.Context, params simplemedia.FindByOwnerParams) (*simplemedia.Page, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = simplemedia.DefaultListLimit
	}

	var (
		rows pgx.Rows
		err  error
	)
	if c := params.Cursor; c != nil && c.OwnerID == params.OwnerID {
		query := `
			SELECT ` + mediaColumns + ` FROM media
			WHERE owner_id = $1 AND (created_at, id) < ($2, $3)
			ORDER BY created_at DESC, id DESC
			LIMIT $4`
		rows, err = r.db.Query(ctx, query, params.OwnerID, c.CreatedAt, c.MediaID, limit)
	} else {
		query := `
			SELECT ` + mediaColumns + ` FROM media
			WHERE owner_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2`
		rows, err = r.db.Query(ctx, query, params.OwnerID, limit)
	}
	if err != nil {
		return nil, handlePostgresError("list media", err)
	}
	defer rows.Close()

	items := make([]*simplemedia.Media, 0, limit)
	for rows.Next() {
		m, err := scanMedia(rows)
		if err != nil {
			return nil, handlePostgresError("scan media", err)
		}
		items = append(items, m)
	}
	if err := rows.Err(); err != nil {
		return nil, handlePostgresError("list media", err)
	}

	page := &simplemedia.Page{Items: items}
	if len(items) == limit {
		next := items[len(items)-1].Cursor()
		page.NextCursor = &next
	}
	return page, nil
}

func (r *Repository) FindByStorageKey(ctx context.Context, key simplemedia.StorageKey) (*simplemedia.Media, error) {
	query := `SELECT ` + mediaColumns + ` FROM media WHERE storage_key = $1`

	m, err := scanMedia(r.db.QueryRow(ctx, query, key.String()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, simplemedia.ErrNotFound
		}
		return nil, handlePostgresError("find media by storage key", err)
	}
	return m, nil
}

func scanMedia(row pgx.Row) (*simplemedia.Media, error) {
	var (
		s            simplemedia.MediaSnapshot
		thumbnailKey *string
	)
	err := row.Scan(
		&s.ID, &s.OwnerID, &s.FileName, &s.FileSize, &s.ContentType,
		&s.StorageKey, &thumbnailKey, &s.Status, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if thumbnailKey != nil {
		s.ThumbnailKey = *thumbnailKey
	}
	return simplemedia.RestoreMedia(s)
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
