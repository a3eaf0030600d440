package queue

import (
	"fmt"
	"strconv"
	"time"

	"color_shop/internal/model"

	"github.com/shopspring/decimal"
)

// OrderEvent 是写入 Redis Stream / Kafka 的订单事件。
type OrderEvent struct {
	EventID       string               `json:"event_id"`
	Type          model.OrderEventType `json:"type"`
	OrderID       uint                 `json:"order_id"`
	OrderNumber   string               `json:"order_number"`
	Status        model.OrderStatus    `json:"status"`
	PaymentStatus model.PaymentStatus  `json:"payment_status"`
	TotalAmount   decimal.Decimal      `json:"total_amount"`
	ActorID       uint                 `json:"actor_id,omitempty"` // 0 表示系统/游客
	OccurredAt    time.Time            `json:"occurred_at"`
}

// Validate 做最小字段校验，防止下游处理脏消息。
func (e OrderEvent) Validate() error {
	if e.EventID == "" {
		return fmt.Errorf("event_id is required")
	}
	switch e.Type {
	case model.OrderEventCreated, model.OrderEventStatusChanged, model.OrderEventPaymentStatusChanged:
	default:
		return fmt.Errorf("unknown event type %q", e.Type)
	}
	if e.OrderID == 0 {
		return fmt.Errorf("order_id is required")
	}
	if e.OrderNumber == "" {
		return fmt.Errorf("order_number is required")
	}
	if e.OccurredAt.IsZero() {
		return fmt.Errorf("occurred_at is required")
	}
	return nil
}

// Record 转成落库用的活动记录。
func (e OrderEvent) Record() model.OrderEvent {
	rec := model.OrderEvent{
		EventID:       e.EventID,
		Type:          e.Type,
		OrderID:       e.OrderID,
		OrderNumber:   e.OrderNumber,
		Status:        e.Status,
		PaymentStatus: e.PaymentStatus,
		TotalAmount:   e.TotalAmount,
		OccurredAt:    e.OccurredAt,
	}
	if e.ActorID > 0 {
		actor := e.ActorID
		rec.ActorID = &actor
	}
	return rec
}

// streamValues 展平为 XADD 字段，全部以字符串存储。
func (e OrderEvent) streamValues() map[string]interface{} {
	return map[string]interface{}{
		"event_id":       e.EventID,
		"type":           string(e.Type),
		"order_id":       strconv.FormatUint(uint64(e.OrderID), 10),
		"order_number":   e.OrderNumber,
		"status":         string(e.Status),
		"payment_status": string(e.PaymentStatus),
		"total_amount":   e.TotalAmount.String(),
		"actor_id":       strconv.FormatUint(uint64(e.ActorID), 10),
		"occurred_at":    e.OccurredAt.UTC().Format(time.RFC3339Nano),
	}
}

func parseOrderEvent(values map[string]interface{}) (OrderEvent, error) {
	fields := make(map[string]string, 9)
	for _, key := range []string{"event_id", "type", "order_id", "order_number", "status",
		"payment_status", "total_amount", "actor_id", "occurred_at"} {
		s, err := getStreamString(values, key)
		if err != nil {
			return OrderEvent{}, err
		}
		fields[key] = s
	}

	orderID, err := strconv.ParseUint(fields["order_id"], 10, 64)
	if err != nil {
		return OrderEvent{}, fmt.Errorf("invalid order_id %q", fields["order_id"])
	}
	actorID, err := strconv.ParseUint(fields["actor_id"], 10, 64)
	if err != nil {
		return OrderEvent{}, fmt.Errorf("invalid actor_id %q", fields["actor_id"])
	}
	total, err := decimal.NewFromString(fields["total_amount"])
	if err != nil {
		return OrderEvent{}, fmt.Errorf("invalid total_amount %q", fields["total_amount"])
	}
	occurredAt, err := time.Parse(time.RFC3339Nano, fields["occurred_at"])
	if err != nil {
		return OrderEvent{}, fmt.Errorf("invalid occurred_at %q", fields["occurred_at"])
	}

	ev := OrderEvent{
		EventID:       fields["event_id"],
		Type:          model.OrderEventType(fields["type"]),
		OrderID:       uint(orderID),
		OrderNumber:   fields["order_number"],
		Status:        model.OrderStatus(fields["status"]),
		PaymentStatus: model.PaymentStatus(fields["payment_status"]),
		TotalAmount:   total,
		ActorID:       uint(actorID),
		OccurredAt:    occurredAt,
	}
	if err := ev.Validate(); err != nil {
		return OrderEvent{}, err
	}
	return ev, nil
}

func getStreamString(values map[string]interface{}, key string) (string, error) {
	v, ok := values[key]
	if !ok {
		return "", fmt.Errorf("missing field %s", key)
	}
	switch x := v.(type) {
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	default:
		return "", fmt.Errorf("unsupported field type %s: %T", key, v)
	}
}
