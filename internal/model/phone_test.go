package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/wpp-platform/customer-service/pkg/errors"
)

func TestNewPhoneNumber(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantE164 string
		wantWire string
	}{
		{name: "e164", raw: "+5511999998888", wantE164: "+5511999998888", wantWire: "5511999998888"},
		{name: "separators", raw: "+55 (11) 99999-8888", wantE164: "+5511999998888", wantWire: "5511999998888"},
		{name: "ten digits", raw: "+1234567890", wantE164: "+1234567890", wantWire: "1234567890"},
		{name: "fifteen digits", raw: "+123456789012345", wantE164: "+123456789012345", wantWire: "123456789012345"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewPhoneNumber(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.wantE164, p.String())
			assert.Equal(t, tt.wantWire, p.WhatsAppFormat())
		})
	}
}

func TestNewPhoneNumber_Invalid(t *testing.T) {
	for _, raw := range []string{"", "5511999998888", "+123456789", "+1234567890123456", "+55abc", "++5511999998888"} {
		t.Run(raw, func(t *testing.T) {
			_, err := NewPhoneNumber(raw)
			require.Error(t, err)
			assert.True(t, apperrors.IsValidation(err))
		})
	}
}

func TestPhoneNumberFromWhatsApp(t *testing.T) {
	p, err := PhoneNumberFromWhatsApp("5511999998888")
	require.NoError(t, err)
	assert.Equal(t, "+5511999998888", p.String())
}

func TestPhoneNumber_DisplayFormat(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"+5511999998888", "+55 (11) 99999-8888"},
		{"+551133334444", "+55 (11) 3333-4444"},
		{"+14155552671", "+1 (415) 555-2671"},
		{"+447911123456", "+447911123456"},
	}

	for _, tt := range tests {
		p, err := NewPhoneNumber(tt.raw)
		require.NoError(t, err)
		assert.Equal(t, tt.want, p.DisplayFormat())
	}
}

func TestPhoneNumber_JSON(t *testing.T) {
	p, err := NewPhoneNumber("+5511999998888")
	require.NoError(t, err)

	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.Equal(t, `"+5511999998888"`, string(data))

	var bad PhoneNumber
	assert.Error(t, json.Unmarshal([]byte(`"123"`), &bad))
}
