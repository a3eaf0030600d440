package queue

import (
	"testing"
	"time"

	"color_shop/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEvent() OrderEvent {
	return OrderEvent{
		EventID:       "9f1c1c4e-2f4b-4d8e-9a3e-1f7f0a5d2c11",
		Type:          model.OrderEventCreated,
		OrderID:       42,
		OrderNumber:   "ORD-1760000000000-7",
		Status:        model.OrderStatusPending,
		PaymentStatus: model.PaymentStatusPending,
		TotalAmount:   decimal.RequireFromString("76.00"),
		ActorID:       3,
		OccurredAt:    time.Date(2026, 3, 1, 9, 30, 0, 123000000, time.UTC),
	}
}

func TestOrderEvent_Validate(t *testing.T) {
	assert.NoError(t, sampleEvent().Validate())

	tests := []struct {
		name   string
		mutate func(*OrderEvent)
	}{
		{"missing event id", func(e *OrderEvent) { e.EventID = "" }},
		{"unknown type", func(e *OrderEvent) { e.Type = "order.deleted" }},
		{"missing order id", func(e *OrderEvent) { e.OrderID = 0 }},
		{"missing order number", func(e *OrderEvent) { e.OrderNumber = "" }},
		{"missing occurred at", func(e *OrderEvent) { e.OccurredAt = time.Time{} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := sampleEvent()
			tt.mutate(&ev)
			assert.Error(t, ev.Validate())
		})
	}
}

func TestParseOrderEvent_FromStreamValues(t *testing.T) {
	ev := sampleEvent()
	got, err := parseOrderEvent(ev.streamValues())
	require.NoError(t, err)

	assert.Equal(t, ev.EventID, got.EventID)
	assert.Equal(t, ev.OrderID, got.OrderID)
	assert.Equal(t, ev.ActorID, got.ActorID)
	assert.True(t, ev.TotalAmount.Equal(got.TotalAmount))
	assert.True(t, ev.OccurredAt.Equal(got.OccurredAt))
}

func TestParseOrderEvent_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(map[string]interface{})
	}{
		{"missing field", func(v map[string]interface{}) { delete(v, "order_number") }},
		{"bad order id", func(v map[string]interface{}) { v["order_id"] = "forty-two" }},
		{"bad total", func(v map[string]interface{}) { v["total_amount"] = "NaN-ish" }},
		{"bad time", func(v map[string]interface{}) { v["occurred_at"] = "yesterday" }},
		{"unsupported type", func(v map[string]interface{}) { v["status"] = 3.14 }},
		{"fails validation", func(v map[string]interface{}) { v["type"] = "order.deleted" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values := sampleEvent().streamValues()
			tt.mutate(values)
			_, err := parseOrderEvent(values)
			assert.Error(t, err)
		})
	}
}

func TestOrderEvent_Record(t *testing.T) {
	rec := sampleEvent().Record()
	require.NotNil(t, rec.ActorID)
	assert.Equal(t, uint(3), *rec.ActorID)
	assert.Equal(t, model.OrderEventCreated, rec.Type)

	guest := sampleEvent()
	guest.ActorID = 0
	assert.Nil(t, guest.Record().ActorID)
}
