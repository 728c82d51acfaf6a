package model

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	apperrors "github.com/wpp-platform/customer-service/pkg/errors"
)

const (
	maxNameLength  = 100
	maxEmailLength = 255
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// User is a WhatsApp contact served by the platform. The phone number
// identifies the user uniquely.
type User struct {
	ID          string      `json:"id"`
	PhoneNumber PhoneNumber `json:"phone_number"`
	Name        string      `json:"name"`
	Email       string      `json:"email,omitempty"`
	Active      bool        `json:"is_active"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// NewUser creates an active user with a fresh id.
func NewUser(phone PhoneNumber, name, email string) (*User, error) {
	if phone.IsZero() {
		return nil, apperrors.Validation("phone_number", "is required")
	}
	name, err := validateName(name)
	if err != nil {
		return nil, err
	}
	email, err = validateEmail(email)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &User{
		ID:          uuid.Must(uuid.NewV7()).String(),
		PhoneNumber: phone,
		Name:        name,
		Email:       email,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// UpdateName replaces the display name.
func (u *User) UpdateName(name string) error {
	name, err := validateName(name)
	if err != nil {
		return err
	}
	u.Name = name
	u.touch()
	return nil
}

// UpdateEmail replaces the email; an empty string clears it.
func (u *User) UpdateEmail(email string) error {
	email, err := validateEmail(email)
	if err != nil {
		return err
	}
	u.Email = email
	u.touch()
	return nil
}

func (u *User) Activate() {
	u.Active = true
	u.touch()
}

func (u *User) Deactivate() {
	u.Active = false
	u.touch()
}

// DisplayName falls back to the formatted phone number.
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.PhoneNumber.DisplayFormat()
}

// WhatsAppID is the digits-only phone number the WhatsApp API addresses.
func (u *User) WhatsAppID() string {
	return u.PhoneNumber.WhatsAppFormat()
}

func (u *User) touch() {
	u.UpdatedAt = time.Now().UTC()
}

func validateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperrors.Validation("name", "cannot be empty")
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return "", apperrors.Validation("name", "must be at most %d characters", maxNameLength)
	}
	return name, nil
}

func validateEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", nil
	}
	if len(email) > maxEmailLength || !emailPattern.MatchString(email) {
		return "", apperrors.Validation("email", "invalid email address %q", email)
	}
	return email, nil
}
