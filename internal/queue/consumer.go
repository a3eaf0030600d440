package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Broadcaster 推送订单事件给在线的管理端连接。
type Broadcaster interface {
	Broadcast(v any)
}

// ActivityRecorder 把订单事件记入 order_events，并推送给实时订阅方。
type ActivityRecorder struct {
	db  *gorm.DB
	hub Broadcaster
}

func NewActivityRecorder(db *gorm.DB, hub Broadcaster) *ActivityRecorder {
	return &ActivityRecorder{db: db, hub: hub}
}

// Handle 幂等落库：同一 event_id 重复投递只记一次、只推送一次。
// 推送的是落库后的记录，与 GET /api/orders/:id/events 返回的结构一致。
func (a *ActivityRecorder) Handle(ctx context.Context, ev OrderEvent) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	rec := ev.Record()
	if err := a.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if errorsLikeUnique(err) {
			return nil
		}
		return fmt.Errorf("record order event: %w", err)
	}
	if a.hub != nil {
		a.hub.Broadcast(rec)
	}
	return nil
}

// Consumer 从 Kafka 读取订单事件交给 ActivityRecorder。
type Consumer struct {
	r        *kafka.Reader
	recorder *ActivityRecorder
}

func NewConsumer(brokers []string, topic, groupID string, recorder *ActivityRecorder) *Consumer {
	return &Consumer{
		r: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 1e3,
			MaxBytes: 1e6,
		}),
		recorder: recorder,
	}
}

func (c *Consumer) Close() error { return c.r.Close() }

func (c *Consumer) Run(ctx context.Context) {
	log := logrus.WithField("component", "activity-consumer")
	for {
		m, err := c.r.ReadMessage(ctx)
		if err != nil {
			return // ctx cancel / 连接断开等
		}

		ev, err := decodeMessage(m)
		if err != nil {
			log.WithError(err).WithField("offset", m.Offset).Warn("decode order event")
			continue
		}
		if err := c.recorder.Handle(ctx, ev); err != nil {
			log.WithError(err).WithField("event_id", ev.EventID).Error("handle order event")
		}
	}
}

// decodeMessage 解出事件；header 里的 event-id 与 body 不一致视为脏消息。
func decodeMessage(m kafka.Message) (OrderEvent, error) {
	var ev OrderEvent
	if err := json.Unmarshal(m.Value, &ev); err != nil {
		return OrderEvent{}, err
	}
	for _, h := range m.Headers {
		if h.Key == headerEventID && string(h.Value) != ev.EventID {
			return OrderEvent{}, fmt.Errorf("event-id header %q does not match body %q", h.Value, ev.EventID)
		}
	}
	return ev, nil
}

func errorsLikeUnique(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	s := err.Error()
	return strings.Contains(s, "UNIQUE") || strings.Contains(s, "unique") || strings.Contains(s, "duplicate key")
}
