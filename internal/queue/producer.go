package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	headerEventType = "event-type"
	headerEventID   = "event-id"
)

// Producer 把订单事件写入 Kafka topic。
type Producer struct {
	w *kafka.Writer
}

// NewProducer 以订单号做分区键（Hash 均衡），同一订单的事件保持有序；
// RequireAll 等待全部 ISR 确认。
func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{
		w: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			MaxAttempts:            5,
			WriteTimeout:           5 * time.Second,
			ReadTimeout:            5 * time.Second,
			BatchTimeout:           20 * time.Millisecond,
			AllowAutoTopicCreation: true,
		},
	}
}

func (p *Producer) Close() error { return p.w.Close() }

// Publish 同步写入一条事件，broker 确认后才返回。
func (p *Producer) Publish(ctx context.Context, ev OrderEvent) error {
	msg, err := eventMessage(ev)
	if err != nil {
		return err
	}
	return p.w.WriteMessages(ctx, msg)
}

// eventMessage 构造 Kafka 消息：key=订单号，value=事件 JSON，
// 类型与事件 ID 同时放进 header，下游无需解包即可路由。
func eventMessage(ev OrderEvent) (kafka.Message, error) {
	if err := ev.Validate(); err != nil {
		return kafka.Message{}, fmt.Errorf("invalid order event: %w", err)
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(ev.OrderNumber),
		Value: b,
		Time:  ev.OccurredAt,
		Headers: []kafka.Header{
			{Key: headerEventType, Value: []byte(ev.Type)},
			{Key: headerEventID, Value: []byte(ev.EventID)},
		},
	}, nil
}
