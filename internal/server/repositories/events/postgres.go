package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/cloudvault/internal/dbx"
	"github.com/dmitrijs2005/cloudvault/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Insert(ctx context.Context, event *models.AnalyticsEvent) error {
	data := event.EventData
	if data == nil {
		data = map[string]any{}
	}
	payload, err := dbx.JSONB(data)
	if err != nil {
		return fmt.Errorf("encode event data: %w", err)
	}

	query :=
		`INSERT INTO analytics_events (id, user_id, event_type, event_data, ts)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO NOTHING`

	_, err = r.db.ExecContext(ctx, query, event.ID, event.UserID, string(event.EventType), payload, event.Timestamp)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Query(ctx context.Context, userID string, filter Filter) ([]*models.AnalyticsEvent, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT id, user_id, event_type, event_data, ts FROM analytics_events WHERE user_id = $1`)
	args := []any{userID}

	if filter.EventType != "" {
		args = append(args, string(filter.EventType))
		fmt.Fprintf(&sb, ` AND event_type = $%d`, len(args))
	}
	if filter.Start != nil {
		args = append(args, *filter.Start)
		fmt.Fprintf(&sb, ` AND ts >= $%d`, len(args))
	}
	if filter.End != nil {
		args = append(args, *filter.End)
		fmt.Fprintf(&sb, ` AND ts <= $%d`, len(args))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	args = append(args, limit)
	fmt.Fprintf(&sb, ` ORDER BY ts DESC LIMIT $%d`, len(args))

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select events: %w", err)
	}
	defer rows.Close()

	result := []*models.AnalyticsEvent{}
	for rows.Next() {
		e := &models.AnalyticsEvent{}
		var payload []byte
		if err := rows.Scan(&e.ID, &e.UserID, &e.EventType, &payload, &e.Timestamp); err != nil {
			return nil, err
		}
		e.EventData = map[string]any{}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &e.EventData); err != nil {
				return nil, fmt.Errorf("decode event data: %w", err)
			}
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
