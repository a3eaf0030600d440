package queue

import (
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventMessage(t *testing.T) {
	ev := sampleEvent()

	msg, err := eventMessage(ev)
	require.NoError(t, err)
	assert.Equal(t, ev.OrderNumber, string(msg.Key))
	assert.True(t, ev.OccurredAt.Equal(msg.Time))

	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, string(ev.Type), headers[headerEventType])
	assert.Equal(t, ev.EventID, headers[headerEventID])

	got, err := decodeMessage(msg)
	require.NoError(t, err)
	assert.Equal(t, ev.EventID, got.EventID)
	assert.Equal(t, ev.OrderID, got.OrderID)
	assert.True(t, ev.TotalAmount.Equal(got.TotalAmount))
}

func TestEventMessage_RejectsInvalid(t *testing.T) {
	ev := sampleEvent()
	ev.OrderNumber = ""

	_, err := eventMessage(ev)
	assert.Error(t, err)
}

func TestDecodeMessage_Rejects(t *testing.T) {
	msg, err := eventMessage(sampleEvent())
	require.NoError(t, err)

	tampered := msg
	tampered.Headers = []kafka.Header{{Key: headerEventID, Value: []byte("other")}}
	_, err = decodeMessage(tampered)
	assert.Error(t, err)

	_, err = decodeMessage(kafka.Message{Value: []byte("{not json")})
	assert.Error(t, err)
}
