package queue

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"color_shop/internal/model"
	"color_shop/internal/store/storetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHub struct {
	mu  sync.Mutex
	got []any
}

func (h *fakeHub) Broadcast(v any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.got = append(h.got, v)
}

func TestActivityRecorder_HandleIsIdempotent(t *testing.T) {
	db := storetest.NewDB(t)
	hub := &fakeHub{}
	rec := NewActivityRecorder(db, hub)
	ev := sampleEvent()

	require.NoError(t, rec.Handle(context.Background(), ev))
	require.NoError(t, rec.Handle(context.Background(), ev))

	assert.Equal(t, int64(1), storetest.Count(t, db, &model.OrderEvent{}))
	require.Len(t, hub.got, 1)

	var stored model.OrderEvent
	require.NoError(t, db.Where("event_id = ?", ev.EventID).First(&stored).Error)

	pushed, ok := hub.got[0].(model.OrderEvent)
	require.True(t, ok, "hub receives the stored record, got %T", hub.got[0])
	assert.Equal(t, stored.ID, pushed.ID)
	b, err := json.Marshal(pushed)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"eventId"`)
	assert.Contains(t, string(b), `"orderNumber"`)
	assert.NotContains(t, string(b), `"event_id"`)
	assert.Equal(t, ev.OrderNumber, stored.OrderNumber)
	assert.True(t, ev.TotalAmount.Equal(stored.TotalAmount))
	require.NotNil(t, stored.ActorID)
	assert.Equal(t, ev.ActorID, *stored.ActorID)
}

func TestActivityRecorder_RejectsInvalid(t *testing.T) {
	db := storetest.NewDB(t)
	rec := NewActivityRecorder(db, nil)
	ev := sampleEvent()
	ev.OrderID = 0

	assert.Error(t, rec.Handle(context.Background(), ev))
	assert.Zero(t, storetest.Count(t, db, &model.OrderEvent{}))
}

func TestActivityRecorder_NilHub(t *testing.T) {
	db := storetest.NewDB(t)
	rec := NewActivityRecorder(db, nil)
	assert.NoError(t, rec.Handle(context.Background(), sampleEvent()))
}
