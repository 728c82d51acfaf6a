package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/wpp-platform/customer-service/internal/model"
	"github.com/wpp-platform/customer-service/pkg/logger"
)

const conversationColumns = `id, user_id, external_id, status, status_reason, status_agent_id, status_at,
	agent_id, context, created_at, updated_at`

type conversationRepository struct {
	db  *pgxpool.Pool
	log *logger.Logger
}

func NewConversationRepository(db *pgxpool.Pool, log *logger.Logger) ConversationRepository {
	return &conversationRepository{db: db, log: log}
}

func (r *conversationRepository) Save(ctx context.Context, conv *model.Conversation) error {
	convCtx := conv.Context
	if convCtx == nil {
		convCtx = map[string]any{}
	}
	contextJSON, err := json.Marshal(convCtx)
	if err != nil {
		return fmt.Errorf("marshal conversation context: %w", err)
	}

	query := `
		INSERT INTO conversations (` + conversationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			status          = EXCLUDED.status,
			status_reason   = EXCLUDED.status_reason,
			status_agent_id = EXCLUDED.status_agent_id,
			status_at       = EXCLUDED.status_at,
			agent_id        = EXCLUDED.agent_id,
			context         = EXCLUDED.context,
			updated_at      = EXCLUDED.updated_at
	`

	_, err = r.db.Exec(ctx, query,
		conv.ID, conv.UserID, conv.ExternalID,
		string(conv.Status.Kind), nullString(conv.Status.Reason), nullString(conv.Status.AgentID), conv.Status.Timestamp,
		nullString(conv.AgentID), contextJSON, conv.CreatedAt, conv.UpdatedAt,
	)
	if err != nil {
		r.log.Warn("failed to save conversation",
			zap.String("conversation_id", conv.ID),
			zap.String("status", string(conv.Status.Kind)),
			zap.Error(err),
		)
		return mapError("save conversation", "conversation", conv.ID, err)
	}
	return nil
}

func (r *conversationRepository) FindByID(ctx context.Context, id string) (*model.Conversation, error) {
	row := r.db.QueryRow(ctx, `SELECT `+conversationColumns+` FROM conversations WHERE id = $1`, id)
	conv, err := scanConversation(row)
	if err != nil {
		return nil, mapError("find conversation", "conversation", id, err)
	}
	return conv, nil
}

func (r *conversationRepository) FindByExternalID(ctx context.Context, externalID string) (*model.Conversation, error) {
	row := r.db.QueryRow(ctx, `SELECT `+conversationColumns+` FROM conversations WHERE external_id = $1`, externalID)
	conv, err := scanConversation(row)
	if err != nil {
		return nil, mapError("find conversation by external id", "conversation", externalID, err)
	}
	return conv, nil
}

func (r *conversationRepository) FindActiveByUserID(ctx context.Context, userID string) (*model.Conversation, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE user_id = $1 AND status = $2`,
		userID, string(model.StatusActive))
	conv, err := scanConversation(row)
	if err != nil {
		return nil, mapError("find active conversation", "active conversation for user", userID, err)
	}
	return conv, nil
}

func (r *conversationRepository) FindByStatus(ctx context.Context, status model.StatusKind, skip, limit int) ([]*model.Conversation, error) {
	skip, limit = pageArgs(skip, limit)
	return r.list(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE status = $1
		 ORDER BY updated_at DESC, id OFFSET $2 LIMIT $3`,
		string(status), skip, limit)
}

func (r *conversationRepository) FindAll(ctx context.Context, skip, limit int) ([]*model.Conversation, error) {
	skip, limit = pageArgs(skip, limit)
	return r.list(ctx,
		`SELECT `+conversationColumns+` FROM conversations ORDER BY updated_at DESC, id OFFSET $1 LIMIT $2`,
		skip, limit)
}

func (r *conversationRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM conversations WHERE id = $1`, id)
	if err != nil {
		return mapError("delete conversation", "conversation", id, err)
	}
	if tag.RowsAffected() == 0 {
		return mapError("delete conversation", "conversation", id, pgx.ErrNoRows)
	}
	return nil
}

func (r *conversationRepository) list(ctx context.Context, query string, args ...any) ([]*model.Conversation, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError("list conversations", "conversation", "", err)
	}
	defer rows.Close()

	var convs []*model.Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, mapError("scan conversation", "conversation", "", err)
		}
		convs = append(convs, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("list conversations", "conversation", "", err)
	}
	return convs, nil
}

func scanConversation(row pgx.Row) (*model.Conversation, error) {
	var (
		conv          model.Conversation
		status        string
		reason, agent *string
		statusAgent   *string
		contextJSON   []byte
	)
	err := row.Scan(
		&conv.ID, &conv.UserID, &conv.ExternalID,
		&status, &reason, &statusAgent, &conv.Status.Timestamp,
		&agent, &contextJSON, &conv.CreatedAt, &conv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	kind, err := model.ParseStatusKind(status)
	if err != nil {
		return nil, err
	}
	conv.Status.Kind = kind
	conv.Status.Timestamp = conv.Status.Timestamp.UTC()
	if reason != nil {
		conv.Status.Reason = *reason
	}
	if statusAgent != nil {
		conv.Status.AgentID = *statusAgent
	}
	if agent != nil {
		conv.AgentID = *agent
	}
	conv.Context = map[string]any{}
	if len(contextJSON) > 0 {
		if err := json.Unmarshal(contextJSON, &conv.Context); err != nil {
			return nil, fmt.Errorf("decode conversation context: %w", err)
		}
	}
	conv.CreatedAt = conv.CreatedAt.UTC()
	conv.UpdatedAt = conv.UpdatedAt.UTC()
	return &conv, nil
}
