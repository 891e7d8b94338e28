package files

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/cloudvault/internal/common"
	"github.com/dmitrijs2005/cloudvault/internal/dbx"
	"github.com/dmitrijs2005/cloudvault/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const fileColumns = `id, name, type, size, storage_key, folder_id, user_id, tags, confidentiality, importance, allow_sharing,
	download_count, last_accessed, content_hash, width, height, thumbnail_key, created_at, updated_at`

func scanFile(row interface{ Scan(...any) error }) (*models.File, error) {
	f := &models.File{}
	var folder sql.NullString
	var lastAccessed sql.NullTime
	var tags []byte
	err := row.Scan(&f.ID, &f.Name, &f.Type, &f.Size, &f.StorageKey, &folder, &f.UserID, &tags,
		&f.Confidentiality, &f.Importance, &f.AllowSharing, &f.DownloadCount, &lastAccessed,
		&f.ContentHash, &f.Width, &f.Height, &f.ThumbnailKey, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if folder.Valid {
		f.FolderID = &folder.String
	}
	if lastAccessed.Valid {
		f.LastAccessed = &lastAccessed.Time
	}
	if f.Tags, err = dbx.Strings(tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	return f, nil
}

func (r *PostgresRepository) Create(ctx context.Context, file *models.File) error {
	tags, err := dbx.JSONB(file.Tags)
	if err != nil {
		return err
	}

	query :=
		`INSERT INTO files (id, name, type, size, storage_key, folder_id, user_id, tags, confidentiality, importance,
			allow_sharing, download_count, content_hash, width, height, thumbnail_key, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

	_, err = r.db.ExecContext(ctx, query,
		file.ID, file.Name, file.Type, file.Size, file.StorageKey, file.FolderID, file.UserID, tags,
		string(file.Confidentiality), string(file.Importance), file.AllowSharing, file.DownloadCount,
		file.ContentHash, file.Width, file.Height, file.ThumbnailKey, file.CreatedAt, file.UpdatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, userID, id string) (*models.File, error) {
	return r.get(ctx, `SELECT `+fileColumns+` FROM files WHERE id = $1 AND user_id = $2`, id, userID)
}

func (r *PostgresRepository) Find(ctx context.Context, id string) (*models.File, error) {
	return r.get(ctx, `SELECT `+fileColumns+` FROM files WHERE id = $1`, id)
}

func (r *PostgresRepository) get(ctx context.Context, query string, args ...any) (*models.File, error) {
	f, err := scanFile(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return f, nil
}

func (r *PostgresRepository) ListByFolder(ctx context.Context, userID string, folderID *string) ([]*models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE user_id = $1 ORDER BY created_at DESC`
	args := []any{userID}
	if folderID != nil {
		query = `SELECT ` + fileColumns + ` FROM files WHERE user_id = $1 AND folder_id = $2 ORDER BY created_at DESC`
		args = append(args, *folderID)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select files: %w", err)
	}
	defer rows.Close()

	result := []*models.File{}
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) RecordDownload(ctx context.Context, id string, at time.Time) error {
	query :=
		`UPDATE files SET download_count = download_count + 1, last_accessed = $2, updated_at = $2
		 WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, userID, id string) (*models.File, error) {
	query := `DELETE FROM files WHERE id = $1 AND user_id = $2 RETURNING ` + fileColumns
	return r.get(ctx, query, id, userID)
}
