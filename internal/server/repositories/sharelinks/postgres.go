package sharelinks

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

const linkColumns = `id, file_id, user_id, token, expires_at, download_limit, download_count, is_active, recipients,
	password_hash, password_salt, created_at, updated_at`

func scanLink(row interface{ Scan(...any) error }) (*models.ShareLink, error) {
	l := &models.ShareLink{}
	var expires sql.NullTime
	var limit sql.NullInt64
	var recipients []byte
	err := row.Scan(&l.ID, &l.FileID, &l.UserID, &l.Token, &expires, &limit, &l.DownloadCount, &l.IsActive,
		&recipients, &l.PasswordHash, &l.PasswordSalt, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if expires.Valid {
		l.ExpiresAt = &expires.Time
	}
	if limit.Valid {
		l.DownloadLimit = &limit.Int64
	}
	if l.Recipients, err = dbx.Strings(recipients); err != nil {
		return nil, fmt.Errorf("decode recipients: %w", err)
	}
	return l, nil
}

func (r *PostgresRepository) Create(ctx context.Context, link *models.ShareLink) error {
	recipients, err := dbx.JSONB(link.Recipients)
	if err != nil {
		return err
	}

	query :=
		`INSERT INTO share_links (id, file_id, user_id, token, expires_at, download_limit, download_count, is_active,
			recipients, password_hash, password_salt, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err = r.db.ExecContext(ctx, query,
		link.ID, link.FileID, link.UserID, link.Token, link.ExpiresAt, link.DownloadLimit, link.DownloadCount,
		link.IsActive, recipients, link.PasswordHash, link.PasswordSalt, link.CreatedAt, link.UpdatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, userID, id string) (*models.ShareLink, error) {
	return r.get(ctx, `SELECT `+linkColumns+` FROM share_links WHERE id = $1 AND user_id = $2`, id, userID)
}

func (r *PostgresRepository) GetByToken(ctx context.Context, token string) (*models.ShareLink, error) {
	return r.get(ctx, `SELECT `+linkColumns+` FROM share_links WHERE token = $1`, token)
}

func (r *PostgresRepository) Consume(ctx context.Context, token string, now time.Time) (*models.ShareLink, error) {
	query :=
		`UPDATE share_links SET download_count = download_count + 1, updated_at = $2
		 WHERE token = $1
		   AND is_active
		   AND (expires_at IS NULL OR expires_at > $2)
		   AND (download_limit IS NULL OR download_count < download_limit)
		 RETURNING ` + linkColumns
	return r.get(ctx, query, token, now)
}

func (r *PostgresRepository) get(ctx context.Context, query string, args ...any) (*models.ShareLink, error) {
	l, err := scanLink(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return l, nil
}

func (r *PostgresRepository) Deactivate(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE share_links SET is_active = FALSE, updated_at = now() WHERE id = $1 AND user_id = $2`, id, userID)
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

func (r *PostgresRepository) ListByFile(ctx context.Context, userID, fileID string) ([]*models.ShareLink, error) {
	query := `SELECT ` + linkColumns + ` FROM share_links WHERE file_id = $1 AND user_id = $2 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, fileID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to select share links: %w", err)
	}
	defer rows.Close()

	result := []*models.ShareLink{}
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
