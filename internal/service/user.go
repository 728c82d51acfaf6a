package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/wpp-platform/customer-service/internal/model"
	"github.com/wpp-platform/customer-service/internal/repository"
	apperrors "github.com/wpp-platform/customer-service/pkg/errors"
	"github.com/wpp-platform/customer-service/pkg/logger"
)

// UserService handles user operations.
type UserService struct {
	users  repository.UserRepository
	logger *logger.Logger
}

// NewUserService creates a new user service.
func NewUserService(users repository.UserRepository, log *logger.Logger) *UserService {
	return &UserService{users: users, logger: log}
}

// CreateUserInput carries the fields of a new user.
type CreateUserInput struct {
	PhoneNumber string `json:"phone_number"`
	Name        string `json:"name"`
	Email       string `json:"email,omitempty"`
}

// UpdateUserInput carries optional changes; nil fields are left alone.
type UpdateUserInput struct {
	Name   *string `json:"name,omitempty"`
	Email  *string `json:"email,omitempty"`
	Active *bool   `json:"is_active,omitempty"`
}

// Create registers a user. It is idempotent on phone number: an existing
// user is returned unchanged with created=false.
func (s *UserService) Create(ctx context.Context, in CreateUserInput) (user *model.User, created bool, err error) {
	phone, err := model.NewPhoneNumber(in.PhoneNumber)
	if err != nil {
		return nil, false, err
	}

	existing, err := s.users.FindByPhone(ctx, phone)
	if err == nil {
		return existing, false, nil
	}
	if !apperrors.IsNotFound(err) {
		return nil, false, fmt.Errorf("create user: %w", err)
	}

	user, err = model.NewUser(phone, in.Name, in.Email)
	if err != nil {
		return nil, false, err
	}
	return s.insert(ctx, user)
}

// FindOrCreateByPhone returns the user owning phone, creating one named
// after the contact profile (or the formatted number) when absent.
func (s *UserService) FindOrCreateByPhone(ctx context.Context, phone model.PhoneNumber, profileName string) (*model.User, bool, error) {
	user, err := s.users.FindByPhone(ctx, phone)
	if err == nil {
		return user, false, nil
	}
	if !apperrors.IsNotFound(err) {
		return nil, false, fmt.Errorf("find user: %w", err)
	}

	user, err = model.NewUser(phone, profileName, "")
	if err != nil {
		user, err = model.NewUser(phone, "Usuário "+phone.DisplayFormat(), "")
		if err != nil {
			return nil, false, err
		}
	}
	return s.insert(ctx, user)
}

// insert saves a new user; losing a race on the phone number returns the
// winner instead.
func (s *UserService) insert(ctx context.Context, user *model.User) (*model.User, bool, error) {
	err := s.users.Save(ctx, user)
	if apperrors.IsConflict(err) {
		winner, findErr := s.users.FindByPhone(ctx, user.PhoneNumber)
		if findErr != nil {
			return nil, false, fmt.Errorf("create user: %w", findErr)
		}
		return winner, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info("user created",
		zap.String("user_id", user.ID),
		zap.String("phone", user.PhoneNumber.String()),
	)
	return user, true, nil
}

// Get retrieves a user by ID.
func (s *UserService) Get(ctx context.Context, id string) (*model.User, error) {
	return s.users.FindByID(ctx, id)
}

// GetByPhone retrieves a user by E.164 phone number; separators are ignored.
func (s *UserService) GetByPhone(ctx context.Context, raw string) (*model.User, error) {
	phone, err := model.NewPhoneNumber(raw)
	if err != nil {
		return nil, err
	}
	return s.users.FindByPhone(ctx, phone)
}

// Update applies the non-nil fields of in.
func (s *UserService) Update(ctx context.Context, id string, in UpdateUserInput) (*model.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		if err := user.UpdateName(*in.Name); err != nil {
			return nil, err
		}
	}
	if in.Email != nil {
		if err := user.UpdateEmail(*in.Email); err != nil {
			return nil, err
		}
	}
	if in.Active != nil {
		if *in.Active {
			user.Activate()
		} else {
			user.Deactivate()
		}
	}

	if err := s.users.Save(ctx, user); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return user, nil
}

// List retrieves users ordered by creation.
func (s *UserService) List(ctx context.Context, skip, limit int) ([]*model.User, error) {
	return s.users.FindAll(ctx, skip, limit)
}

// Delete removes a user and, through the store, their conversations.
func (s *UserService) Delete(ctx context.Context, id string) error {
	if err := s.users.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("user deleted", zap.String("user_id", id))
	return nil
}
