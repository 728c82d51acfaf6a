package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPredicatesSeeThroughWrapping(t *testing.T) {
	err := fmt.Errorf("create user: %w", Validation("phone_number", "too short"))
	assert.True(t, IsValidation(err))
	assert.False(t, IsNotFound(err))
	assert.Equal(t, "create user: phone_number: too short", err.Error())

	err = fmt.Errorf("load: %w", NotFound("conversation", "abc"))
	assert.True(t, IsNotFound(err))
	assert.Equal(t, "load: conversation abc not found", err.Error())
}

func TestAdapterAndStorageUnwrap(t *testing.T) {
	cause := errors.New("connection reset")

	err := Adapter("whatsapp", cause)
	assert.True(t, IsAdapter(err))
	assert.ErrorIs(t, err, cause)

	err = Storage("save message", cause)
	assert.ErrorIs(t, err, cause)
	assert.Nil(t, Storage("noop", nil))
	assert.Nil(t, Adapter("noop", nil))
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(Validation("", "bad")))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(NotFound("user", "")))
	assert.Equal(t, http.StatusConflict, HTTPStatus(Conflict("message", "duplicate")))
	assert.Equal(t, http.StatusBadGateway, HTTPStatus(Adapter("llm", errors.New("x"))))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(Storage("x", errors.New("x"))))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("boom")))
}
