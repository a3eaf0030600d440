package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	rd "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// EventWriter 是 Relay 的下游，生产环境为 *Producer。
type EventWriter interface {
	Publish(ctx context.Context, ev OrderEvent) error
}

// RelayConfig 描述 outbox 所在的 stream 与消费组。
type RelayConfig struct {
	Stream   string
	Group    string
	Consumer string

	BatchSize int64         // 每批最多读取条数，默认 16
	Block     time.Duration // 读新消息的阻塞时长，默认 2s
	// ClaimIdle 其他消费者 pending 超过该时长后被本实例接管，0 表示不接管
	ClaimIdle time.Duration
}

func (c RelayConfig) withDefaults() RelayConfig {
	if c.BatchSize <= 0 {
		c.BatchSize = 16
	}
	if c.Block <= 0 {
		c.Block = 2 * time.Second
	}
	return c
}

// Relay 把 Redis Stream（outbox）中的订单事件转发到 Kafka。
// 发布成功才 ACK+DEL；失败的消息留在 pending，下一轮优先重试。
type Relay struct {
	rdb    *rd.Client
	writer EventWriter
	cfg    RelayConfig
}

func NewRelay(rdb *rd.Client, writer EventWriter, cfg RelayConfig) *Relay {
	return &Relay{rdb: rdb, writer: writer, cfg: cfg.withDefaults()}
}

const (
	minBackoff = 200 * time.Millisecond
	maxBackoff = 10 * time.Second
)

// Run 阻塞直到 ctx 取消；连续失败时指数退避。
func (r *Relay) Run(ctx context.Context) {
	log := logrus.WithFields(logrus.Fields{"component": "relay", "stream": r.cfg.Stream})
	if err := r.ensureGroup(ctx); err != nil {
		log.WithError(err).Error("ensure consumer group")
		return
	}

	backoff := minBackoff
	for ctx.Err() == nil {
		if r.cfg.ClaimIdle > 0 {
			if n, err := r.claimStale(ctx); err != nil {
				log.WithError(err).Warn("claim stale order events")
			} else if n > 0 {
				log.WithField("count", n).Info("claimed stale order events")
			}
		}

		n, err := r.Pump(ctx, r.cfg.Block)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.WithError(err).WithField("retry_in", backoff).Warn("relay pump")
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		}
		backoff = minBackoff
		if n > 0 {
			log.WithField("count", n).Debug("relayed order events")
		}
	}
}

// Pump 处理一批：本消费者有 pending 时只重试 pending，否则读新消息。
// 返回成功转发的条数；遇到第一条失败即停止，保持同一 stream 内的顺序。
func (r *Relay) Pump(ctx context.Context, block time.Duration) (int, error) {
	msgs, err := r.read(ctx, "0", -1)
	if err != nil {
		return 0, fmt.Errorf("read pending: %w", err)
	}
	if len(msgs) == 0 {
		if msgs, err = r.read(ctx, ">", block); err != nil {
			return 0, fmt.Errorf("read new: %w", err)
		}
	}

	for i, xm := range msgs {
		if err := r.forward(ctx, xm); err != nil {
			return i, fmt.Errorf("message %s: %w", xm.ID, err)
		}
	}
	return len(msgs), nil
}

func (r *Relay) ensureGroup(ctx context.Context) error {
	err := r.rdb.XGroupCreateMkStream(ctx, r.cfg.Stream, r.cfg.Group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

// read 从消费组读取；block<0 表示不阻塞（pending 读取）。
func (r *Relay) read(ctx context.Context, from string, block time.Duration) ([]rd.XMessage, error) {
	streams, err := r.rdb.XReadGroup(ctx, &rd.XReadGroupArgs{
		Group:    r.cfg.Group,
		Consumer: r.cfg.Consumer,
		Streams:  []string{r.cfg.Stream, from},
		Count:    r.cfg.BatchSize,
		Block:    block,
	}).Result()
	if errors.Is(err, rd.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []rd.XMessage
	for _, s := range streams {
		out = append(out, s.Messages...)
	}
	return out, nil
}

// claimStale 接管已下线实例遗留的 pending 消息，交由下一轮 Pump 重试。
func (r *Relay) claimStale(ctx context.Context) (int, error) {
	msgs, _, err := r.rdb.XAutoClaim(ctx, &rd.XAutoClaimArgs{
		Stream:   r.cfg.Stream,
		Group:    r.cfg.Group,
		Consumer: r.cfg.Consumer,
		MinIdle:  r.cfg.ClaimIdle,
		Start:    "0-0",
		Count:    r.cfg.BatchSize,
	}).Result()
	if errors.Is(err, rd.Nil) {
		return 0, nil
	}
	return len(msgs), err
}

func (r *Relay) forward(ctx context.Context, xm rd.XMessage) error {
	ev, err := parseOrderEvent(xm.Values)
	if err != nil {
		// 无法解析的消息重试也没用，ACK 后丢弃
		logrus.WithField("message_id", xm.ID).WithError(err).Warn("drop malformed order event")
		if ackErr := r.ack(ctx, xm.ID); ackErr != nil {
			return fmt.Errorf("parse failed: %v, ack failed: %w", err, ackErr)
		}
		return nil
	}

	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := r.writer.Publish(pubCtx, ev); err != nil {
		return err
	}
	return r.ack(ctx, xm.ID)
}

func (r *Relay) ack(ctx context.Context, id string) error {
	pipe := r.rdb.TxPipeline()
	pipe.XAck(ctx, r.cfg.Stream, r.cfg.Group, id)
	pipe.XDel(ctx, r.cfg.Stream, id)
	_, err := pipe.Exec(ctx)
	return err
}
