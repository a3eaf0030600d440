package queue

import (
	"context"
	"fmt"

	rd "github.com/redis/go-redis/v9"
)

// StreamPublisher 把订单事件追加到 Redis Stream，由 Relay 异步转发到 Kafka。
type StreamPublisher struct {
	rdb    *rd.Client
	stream string
	maxLen int64
}

func NewStreamPublisher(rdb *rd.Client, stream string) *StreamPublisher {
	return &StreamPublisher{rdb: rdb, stream: stream, maxLen: 100000}
}

// PublishOrderEvent 追加一条事件；流长度按近似 MAXLEN 截断。
func (p *StreamPublisher) PublishOrderEvent(ctx context.Context, ev OrderEvent) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	err := p.rdb.XAdd(ctx, &rd.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: ev.streamValues(),
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", p.stream, err)
	}
	return nil
}
