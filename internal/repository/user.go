package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/wpp-platform/customer-service/internal/model"
	"github.com/wpp-platform/customer-service/pkg/logger"
)

const userColumns = `id, phone_number, name, email, is_active, created_at, updated_at`

type userRepository struct {
	db  *pgxpool.Pool
	log *logger.Logger
}

func NewUserRepository(db *pgxpool.Pool, log *logger.Logger) UserRepository {
	return &userRepository{db: db, log: log}
}

func (r *userRepository) Save(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			phone_number = EXCLUDED.phone_number,
			name         = EXCLUDED.name,
			email        = EXCLUDED.email,
			is_active    = EXCLUDED.is_active,
			updated_at   = EXCLUDED.updated_at
	`

	_, err := r.db.Exec(ctx, query,
		user.ID, user.PhoneNumber.String(), user.Name, nullString(user.Email),
		user.Active, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		r.log.Warn("failed to save user", zap.String("user_id", user.ID), zap.Error(err))
		return mapError("save user", "user", user.PhoneNumber.String(), err)
	}
	return nil
}

func (r *userRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	user, err := scanUser(row)
	if err != nil {
		return nil, mapError("find user", "user", id, err)
	}
	return user, nil
}

func (r *userRepository) FindByPhone(ctx context.Context, phone model.PhoneNumber) (*model.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE phone_number = $1`, phone.String())
	user, err := scanUser(row)
	if err != nil {
		return nil, mapError("find user by phone", "user", phone.String(), err)
	}
	return user, nil
}

func (r *userRepository) FindAll(ctx context.Context, skip, limit int) ([]*model.User, error) {
	skip, limit = pageArgs(skip, limit)
	rows, err := r.db.Query(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at, id OFFSET $1 LIMIT $2`, skip, limit)
	if err != nil {
		return nil, mapError("list users", "user", "", err)
	}
	defer rows.Close()

	users := make([]*model.User, 0, limit)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, mapError("scan user", "user", "", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("list users", "user", "", err)
	}
	return users, nil
}

func (r *userRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return mapError("delete user", "user", id, err)
	}
	if tag.RowsAffected() == 0 {
		return mapError("delete user", "user", id, pgx.ErrNoRows)
	}
	return nil
}

func scanUser(row pgx.Row) (*model.User, error) {
	var (
		user  model.User
		phone string
		email *string
	)
	if err := row.Scan(&user.ID, &phone, &user.Name, &email, &user.Active, &user.CreatedAt, &user.UpdatedAt); err != nil {
		return nil, err
	}

	p, err := model.NewPhoneNumber(phone)
	if err != nil {
		return nil, err
	}
	user.PhoneNumber = p
	if email != nil {
		user.Email = *email
	}
	user.CreatedAt = user.CreatedAt.UTC()
	user.UpdatedAt = user.UpdatedAt.UTC()
	return &user, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
