package folders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

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

const folderColumns = `id, name, parent_id, user_id, allowed_file_types, confidentiality, importance, allow_sharing, created_at, updated_at`

func scanFolder(row interface{ Scan(...any) error }) (*models.Folder, error) {
	f := &models.Folder{}
	var parent sql.NullString
	var types []byte
	err := row.Scan(&f.ID, &f.Name, &parent, &f.UserID, &types, &f.Confidentiality, &f.Importance, &f.AllowSharing, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if parent.Valid {
		f.ParentID = &parent.String
	}
	if f.AllowedFileTypes, err = dbx.Strings(types); err != nil {
		return nil, fmt.Errorf("decode allowed_file_types: %w", err)
	}
	return f, nil
}

func (r *PostgresRepository) Create(ctx context.Context, folder *models.Folder) error {
	types, err := dbx.JSONB(folder.AllowedFileTypes)
	if err != nil {
		return err
	}

	query :=
		`INSERT INTO folders (id, name, parent_id, user_id, allowed_file_types, confidentiality, importance, allow_sharing, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err = r.db.ExecContext(ctx, query,
		folder.ID, folder.Name, folder.ParentID, folder.UserID, types,
		string(folder.Confidentiality), string(folder.Importance), folder.AllowSharing,
		folder.CreatedAt, folder.UpdatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, userID, id string) (*models.Folder, error) {
	query := `SELECT ` + folderColumns + ` FROM folders WHERE id = $1 AND user_id = $2`

	f, err := scanFolder(r.db.QueryRowContext(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return f, nil
}

func (r *PostgresRepository) ListByParent(ctx context.Context, userID string, parentID *string) ([]*models.Folder, error) {
	if parentID == nil {
		return r.list(ctx,
			`SELECT `+folderColumns+` FROM folders WHERE user_id = $1 AND parent_id IS NULL ORDER BY created_at DESC`,
			userID)
	}
	return r.list(ctx,
		`SELECT `+folderColumns+` FROM folders WHERE user_id = $1 AND parent_id = $2 ORDER BY created_at DESC`,
		userID, *parentID)
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]*models.Folder, error) {
	return r.list(ctx, `SELECT `+folderColumns+` FROM folders WHERE user_id = $1`, userID)
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]*models.Folder, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select folders: %w", err)
	}
	defer rows.Close()

	result := []*models.Folder{}
	for rows.Next() {
		f, err := scanFolder(rows)
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

func (r *PostgresRepository) Lock(ctx context.Context, userID, id string) error {
	var got string
	err := r.db.QueryRowContext(ctx, `SELECT id FROM folders WHERE id = $1 AND user_id = $2 FOR SHARE`, id, userID).Scan(&got)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrNotFound
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM folders WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete folder: %w", err)
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
