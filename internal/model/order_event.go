package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderEventType 订单事件类型。
type OrderEventType string

const (
	OrderEventCreated              OrderEventType = "order.created"
	OrderEventStatusChanged        OrderEventType = "order.status_changed"
	OrderEventPaymentStatusChanged OrderEventType = "order.payment_status_changed"
)

// OrderEvent 订单动态，由 Kafka 消费者落库，EventID 唯一保证重复消息只记一次。
type OrderEvent struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`

	EventID       string          `gorm:"size:64;uniqueIndex;not null" json:"eventId"`
	Type          OrderEventType  `gorm:"size:64;not null" json:"type"`
	OrderID       uint            `gorm:"not null;index" json:"orderId"`
	OrderNumber   string          `gorm:"size:64;not null" json:"orderNumber"`
	Status        OrderStatus     `gorm:"size:32" json:"status"`
	PaymentStatus PaymentStatus   `gorm:"size:32" json:"paymentStatus"`
	TotalAmount   decimal.Decimal `gorm:"type:decimal(12,2)" json:"totalAmount"`
	ActorID       *uint           `json:"actorId"`
	OccurredAt    time.Time       `gorm:"not null" json:"occurredAt"`
}

func (OrderEvent) TableName() string { return "order_events" }
