package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wpp-platform/customer-service/internal/model"
	"github.com/wpp-platform/customer-service/pkg/logger"
)

type statsRepository struct {
	db  *pgxpool.Pool
	log *logger.Logger
}

func NewStatsRepository(db *pgxpool.Pool, log *logger.Logger) StatsRepository {
	return &statsRepository{db: db, log: log}
}

func (r *statsRepository) Overview(ctx context.Context, dayStart time.Time) (*model.Overview, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM users WHERE is_active),
			(SELECT COUNT(*) FROM conversations),
			(SELECT COUNT(*) FROM conversations WHERE status = 'active'),
			(SELECT COUNT(*) FROM messages),
			(SELECT COUNT(*) FROM messages WHERE created_at >= $1),
			(SELECT COUNT(*) FROM messages WHERE NOT is_processed AND direction = 'incoming')
	`

	var o model.Overview
	err := r.db.QueryRow(ctx, query, dayStart).Scan(
		&o.TotalUsers, &o.ActiveUsers,
		&o.TotalConversations, &o.ActiveConversations,
		&o.TotalMessages, &o.MessagesToday, &o.UnprocessedMessages,
	)
	if err != nil {
		return nil, mapError("analytics overview", "overview", "", err)
	}
	return &o, nil
}

// DailyMessageCounts returns only the days that have messages, ascending.
func (r *statsRepository) DailyMessageCounts(ctx context.Context, from time.Time) ([]model.DailyMessageCount, error) {
	query := `
		SELECT
			(created_at AT TIME ZONE 'UTC')::date AS day,
			COUNT(*) FILTER (WHERE direction = 'incoming'),
			COUNT(*) FILTER (WHERE direction = 'outgoing'),
			COUNT(*)
		FROM messages
		WHERE created_at >= $1
		GROUP BY day
		ORDER BY day
	`

	rows, err := r.db.Query(ctx, query, from)
	if err != nil {
		return nil, mapError("daily message counts", "messages", "", err)
	}
	defer rows.Close()

	var out []model.DailyMessageCount
	for rows.Next() {
		var d model.DailyMessageCount
		if err := rows.Scan(&d.Date, &d.Incoming, &d.Outgoing, &d.Total); err != nil {
			return nil, mapError("scan daily message count", "messages", "", err)
		}
		d.Date = time.Date(d.Date.Year(), d.Date.Month(), d.Date.Day(), 0, 0, 0, 0, time.UTC)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("daily message counts", "messages", "", err)
	}
	return out, nil
}

func (r *statsRepository) ConversationMetrics(ctx context.Context) (*model.ConversationMetrics, error) {
	rows, err := r.db.Query(ctx, `SELECT status, COUNT(*) FROM conversations GROUP BY status`)
	if err != nil {
		return nil, mapError("conversation metrics", "conversations", "", err)
	}
	defer rows.Close()

	m := &model.ConversationMetrics{ByStatus: map[model.StatusKind]int{}}
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, mapError("scan conversation metrics", "conversations", "", err)
		}
		m.ByStatus[model.StatusKind(status)] = n
		m.TotalConversations += n
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("conversation metrics", "conversations", "", err)
	}

	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM messages`).Scan(&m.TotalMessages); err != nil {
		return nil, mapError("conversation metrics", "messages", "", err)
	}
	if m.TotalConversations > 0 {
		m.AvgMessagesPerConversation = float64(m.TotalMessages) / float64(m.TotalConversations)
	}
	return m, nil
}
