package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wpp-platform/customer-service/internal/model"
	"github.com/wpp-platform/customer-service/internal/processing"
	apperrors "github.com/wpp-platform/customer-service/pkg/errors"
	"github.com/wpp-platform/customer-service/pkg/logger"
)

func TestDiagnosticsService_TestAI(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	svc := NewDiagnosticsService(processing.NewHeuristic(), env.sender, "heuristic", logger.NewNop())

	res, err := svc.TestAI(ctx, "bom dia")
	require.NoError(t, err)
	assert.Equal(t, "heuristic", res.Engine)
	assert.Equal(t, model.IntentGreeting, res.Intent.Intent)
	assert.False(t, res.ShouldEscalate)
	require.NotNil(t, res.Response)
	assert.Equal(t, processing.CannedResponse(model.IntentGreeting), *res.Response)

	res, err = svc.TestAI(ctx, "quero cancelar")
	require.NoError(t, err)
	assert.True(t, res.ShouldEscalate)
	assert.Nil(t, res.Response)

	_, err = svc.TestAI(ctx, "  ")
	assert.True(t, apperrors.IsValidation(err))

	// nothing is stored
	users, err := env.repos.User.FindAll(ctx, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestDiagnosticsService_TestWhatsApp(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	svc := NewDiagnosticsService(processing.NewHeuristic(), env.sender, "heuristic", logger.NewNop())

	res, err := svc.TestWhatsApp(ctx, "+5511999998888", "teste")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "wamid.out.1", res.MessageID)
	assert.Equal(t, []string{"5511999998888: teste"}, env.sender.sent)

	_, err = svc.TestWhatsApp(ctx, "5511999998888", "teste")
	assert.True(t, apperrors.IsValidation(err))
	_, err = svc.TestWhatsApp(ctx, "+5511999998888", " ")
	assert.True(t, apperrors.IsValidation(err))

	env.sender.failing = true
	res, err = svc.TestWhatsApp(ctx, "+5511999998888", "teste")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "unavailable")

	noSender := NewDiagnosticsService(processing.NewHeuristic(), nil, "heuristic", logger.NewNop())
	_, err = noSender.TestWhatsApp(ctx, "+5511999998888", "teste")
	assert.ErrorIs(t, err, ErrNoSender)
}
