package messaging

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prompt-service/internal/models"
)

func TestNewPublishing_Created(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	event := models.PromptEvent{
		EventType:  models.PromptEventTypeCreated,
		ID:         7,
		Name:       "greet",
		ModelName:  "m1",
		Version:    2,
		Prompt:     "hi {user}",
		OccurredAt: at,
	}

	msg, err := newPublishing(event)
	require.NoError(t, err)

	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, uint8(amqp091.Persistent), msg.DeliveryMode)
	assert.Equal(t, "created", msg.Type)
	assert.Equal(t, at, msg.Timestamp)
	_, err = uuid.Parse(msg.MessageId)
	assert.NoError(t, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(msg.Body, &body))
	assert.Equal(t, "created", body["eventType"])
	assert.Equal(t, "greet", body["name"])
	assert.Equal(t, "m1", body["modelName"])
	assert.EqualValues(t, 2, body["version"])
	assert.Equal(t, "hi {user}", body["prompt"])
}

func TestNewPublishing_ModelDeletedOmitsEmptyFields(t *testing.T) {
	msg, err := newPublishing(models.PromptEvent{EventType: models.PromptEventTypeModelDeleted, ModelName: "m1"})
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(msg.Body, &body))
	assert.NotContains(t, body, "name")
	assert.NotContains(t, body, "prompt")
	assert.NotContains(t, body, "version")
	assert.Contains(t, body, "occurredAt")
	assert.False(t, msg.Timestamp.IsZero())
}

func TestNewPublishing_UniqueMessageIDs(t *testing.T) {
	a, err := newPublishing(models.PromptEvent{EventType: models.PromptEventTypeDeleted})
	require.NoError(t, err)
	b, err := newPublishing(models.PromptEvent{EventType: models.PromptEventTypeDeleted})
	require.NoError(t, err)
	assert.NotEqual(t, a.MessageId, b.MessageId)
}
