// Package model defines the value types and entities of the customer
// service platform.
package model

import (
	"encoding/json"
	"regexp"
	"strings"

	apperrors "github.com/wpp-platform/customer-service/pkg/errors"
)

var (
	phoneStrip   = regexp.MustCompile(`[^\d+]`)
	phonePattern = regexp.MustCompile(`^\+\d{10,15}$`)
)

// PhoneNumber is an E.164 phone number: a leading '+' followed by 10 to 15
// digits. The zero value is not a valid number.
type PhoneNumber struct {
	value string
}

// NewPhoneNumber strips separators from raw and validates the result.
func NewPhoneNumber(raw string) (PhoneNumber, error) {
	clean := phoneStrip.ReplaceAllString(strings.TrimSpace(raw), "")
	if !phonePattern.MatchString(clean) {
		return PhoneNumber{}, apperrors.Validation("phone_number", "must be '+' followed by 10 to 15 digits, got %q", raw)
	}
	return PhoneNumber{value: clean}, nil
}

// PhoneNumberFromWhatsApp builds a PhoneNumber from the digits-only form the
// WhatsApp platform uses in webhook payloads.
func PhoneNumberFromWhatsApp(waID string) (PhoneNumber, error) {
	waID = strings.TrimSpace(waID)
	if !strings.HasPrefix(waID, "+") {
		waID = "+" + waID
	}
	return NewPhoneNumber(waID)
}

// String returns the E.164 form.
func (p PhoneNumber) String() string { return p.value }

// IsZero reports whether p was never validated.
func (p PhoneNumber) IsZero() bool { return p.value == "" }

// WhatsAppFormat returns the digits only, without the leading '+'.
func (p PhoneNumber) WhatsAppFormat() string {
	return strings.TrimPrefix(p.value, "+")
}

// CountryCode returns the leading digits for the countries with a dedicated
// display format, or "" otherwise.
func (p PhoneNumber) CountryCode() string {
	digits := p.WhatsAppFormat()
	switch {
	case strings.HasPrefix(digits, "55"):
		return "55"
	case strings.HasPrefix(digits, "1") && len(digits) == 11:
		return "1"
	}
	return ""
}

// DisplayFormat renders the number for humans. Brazilian numbers become
// "+55 (AA) NNNNN-NNNN", NANP numbers "+1 (AAA) NNN-NNNN"; anything else is
// returned in E.164.
func (p PhoneNumber) DisplayFormat() string {
	digits := p.WhatsAppFormat()
	switch p.CountryCode() {
	case "55":
		local := digits[2:]
		if len(local) != 10 && len(local) != 11 {
			return p.value
		}
		area, number := local[:2], local[2:]
		split := len(number) - 4
		return "+55 (" + area + ") " + number[:split] + "-" + number[split:]
	case "1":
		local := digits[1:]
		return "+1 (" + local[:3] + ") " + local[3:6] + "-" + local[6:]
	}
	return p.value
}

func (p PhoneNumber) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.value)
}

func (p *PhoneNumber) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := NewPhoneNumber(raw)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
