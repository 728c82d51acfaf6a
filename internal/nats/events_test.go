package nats

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wpp-platform/customer-service/internal/model"
)

func TestEventSubject(t *testing.T) {
	assert.Equal(t, "wpp.conv.c1.message.received", EventSubject("c1", model.EventMessageReceived))
	assert.Equal(t, "wpp.conv.c1.conversation.escalated", EventSubject("c1", model.EventConversationEscalated))
}
