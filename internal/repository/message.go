package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/wpp-platform/customer-service/internal/model"
	"github.com/wpp-platform/customer-service/pkg/logger"
)

const messageColumns = `id, conversation_id, user_id, external_id, content, message_type, direction,
	is_processed, metadata, created_at`

type messageRepository struct {
	db  *pgxpool.Pool
	log *logger.Logger
}

func NewMessageRepository(db *pgxpool.Pool, log *logger.Logger) MessageRepository {
	return &messageRepository{db: db, log: log}
}

func (r *messageRepository) Save(ctx context.Context, msg *model.Message) error {
	var metadataJSON []byte
	if md := msg.Content.Metadata(); len(md) > 0 {
		var err error
		if metadataJSON, err = json.Marshal(md); err != nil {
			return fmt.Errorf("marshal message metadata: %w", err)
		}
	}

	// Only the processed flag and metadata change after insert.
	query := `
		INSERT INTO messages (` + messageColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			is_processed = EXCLUDED.is_processed,
			metadata = EXCLUDED.metadata
	`

	_, err := r.db.Exec(ctx, query,
		msg.ID, msg.ConversationID, msg.UserID, msg.ExternalID,
		msg.Content.Text(), string(msg.Content.Type()), string(msg.Content.Direction()),
		msg.Processed, metadataJSON, msg.CreatedAt,
	)
	if err != nil {
		r.log.Warn("failed to save message",
			zap.String("message_id", msg.ID),
			zap.String("external_id", msg.ExternalID),
			zap.Error(err),
		)
		return mapError("save message", "message", msg.ExternalID, err)
	}
	return nil
}

func (r *messageRepository) FindByID(ctx context.Context, id string) (*model.Message, error) {
	row := r.db.QueryRow(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = $1`, id)
	msg, err := scanMessage(row)
	if err != nil {
		return nil, mapError("find message", "message", id, err)
	}
	return msg, nil
}

func (r *messageRepository) FindByExternalID(ctx context.Context, externalID string) (*model.Message, error) {
	row := r.db.QueryRow(ctx, `SELECT `+messageColumns+` FROM messages WHERE external_id = $1`, externalID)
	msg, err := scanMessage(row)
	if err != nil {
		return nil, mapError("find message by external id", "message", externalID, err)
	}
	return msg, nil
}

func (r *messageRepository) ExistsByExternalID(ctx context.Context, externalID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM messages WHERE external_id = $1)`, externalID).Scan(&exists)
	if err != nil {
		return false, mapError("check message exists", "message", externalID, err)
	}
	return exists, nil
}

func (r *messageRepository) FindByConversationID(ctx context.Context, conversationID string, skip, limit int) ([]*model.Message, error) {
	skip, limit = pageArgs(skip, limit)
	return r.list(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE conversation_id = $1
		 ORDER BY created_at, id OFFSET $2 LIMIT $3`,
		conversationID, skip, limit)
}

func (r *messageRepository) FindRecentByConversationID(ctx context.Context, conversationID string, before time.Time, limit int) ([]*model.Message, error) {
	_, limit = pageArgs(0, limit)
	msgs, err := r.list(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE conversation_id = $1 AND created_at < $2
		 ORDER BY created_at DESC, id DESC LIMIT $3`,
		conversationID, before, limit)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (r *messageRepository) CountByConversationID(ctx context.Context, conversationID string) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM messages WHERE conversation_id = $1`, conversationID).Scan(&n)
	if err != nil {
		return 0, mapError("count messages", "conversation", conversationID, err)
	}
	return n, nil
}

func (r *messageRepository) FindUnprocessed(ctx context.Context, limit int) ([]*model.Message, error) {
	_, limit = pageArgs(0, limit)
	return r.list(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE NOT is_processed AND direction = $1
		 ORDER BY created_at, id LIMIT $2`,
		string(model.DirectionIncoming), limit)
}

func (r *messageRepository) FindAll(ctx context.Context, skip, limit int) ([]*model.Message, error) {
	skip, limit = pageArgs(skip, limit)
	return r.list(ctx,
		`SELECT `+messageColumns+` FROM messages ORDER BY created_at DESC, id OFFSET $1 LIMIT $2`,
		skip, limit)
}

func (r *messageRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM messages WHERE id = $1`, id)
	if err != nil {
		return mapError("delete message", "message", id, err)
	}
	if tag.RowsAffected() == 0 {
		return mapError("delete message", "message", id, pgx.ErrNoRows)
	}
	return nil
}

func (r *messageRepository) list(ctx context.Context, query string, args ...any) ([]*model.Message, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError("list messages", "message", "", err)
	}
	defer rows.Close()

	var msgs []*model.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, mapError("scan message", "message", "", err)
		}
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("list messages", "message", "", err)
	}
	return msgs, nil
}

func scanMessage(row pgx.Row) (*model.Message, error) {
	var (
		msg                model.Message
		text, msgType, dir string
		metadataJSON       []byte
	)
	err := row.Scan(
		&msg.ID, &msg.ConversationID, &msg.UserID, &msg.ExternalID,
		&text, &msgType, &dir, &msg.Processed, &metadataJSON, &msg.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	var metadata map[string]any
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &metadata); err != nil {
			return nil, fmt.Errorf("decode message metadata: %w", err)
		}
	}
	content, err := model.NewMessageContent(text, model.MessageType(msgType), model.MessageDirection(dir), metadata)
	if err != nil {
		return nil, err
	}
	msg.Content = content
	msg.CreatedAt = msg.CreatedAt.UTC()
	return &msg, nil
}
