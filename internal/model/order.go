package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus 订单履约状态，取值为闭集。
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// PaymentStatus 订单支付状态，取值为闭集。
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

var orderStatuses = map[OrderStatus]struct{}{
	OrderStatusPending:    {},
	OrderStatusProcessing: {},
	OrderStatusShipped:    {},
	OrderStatusDelivered:  {},
	OrderStatusCancelled:  {},
}

var paymentStatuses = map[PaymentStatus]struct{}{
	PaymentStatusPending:  {},
	PaymentStatusPaid:     {},
	PaymentStatusFailed:   {},
	PaymentStatusRefunded: {},
}

func (s OrderStatus) Valid() bool {
	_, ok := orderStatuses[s]
	return ok
}

func (s PaymentStatus) Valid() bool {
	_, ok := paymentStatuses[s]
	return ok
}

// Order 一次下单。金额字段在创建时一次算定：TotalAmount = Subtotal + TaxAmount + ShippingCost。
type Order struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	OrderNumber string `gorm:"size:64;uniqueIndex;not null" json:"orderNumber"`
	// UserID 为空表示游客下单
	UserID *uint `gorm:"index" json:"userId"`
	User   *User `gorm:"constraint:OnDelete:SET NULL" json:"-"`

	Status        OrderStatus   `gorm:"size:32;not null;default:pending;index" json:"status"`
	PaymentStatus PaymentStatus `gorm:"size:32;not null;default:pending;index" json:"paymentStatus"`

	Subtotal     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"subtotal"`
	TaxAmount    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"taxAmount"`
	ShippingCost decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"shippingCost"`
	TotalAmount  decimal.Decimal `gorm:"type:decimal(12,2);not null;index" json:"totalAmount"`

	ShippingAddress Address `gorm:"not null" json:"shippingAddress"`
	BillingAddress  Address `json:"billingAddress"`
	CustomerNote    string  `gorm:"size:1000" json:"customerNote,omitempty"`

	Items []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
}

func (Order) TableName() string { return "orders" }

// OrderItem 订单行，商品名/规格名在下单时快照，之后不随商品改名变化。
type OrderItem struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`

	OrderID   uint  `gorm:"not null;index" json:"orderId"`
	ProductID *uint `gorm:"index" json:"productId"`
	// 商品删除后置空，订单行保留
	Product   *Product `gorm:"constraint:OnDelete:SET NULL" json:"-"`
	VariantID *uint    `gorm:"index" json:"variantId"`

	ProductName string `gorm:"size:255;not null" json:"productName"`
	VariantName string `gorm:"size:255" json:"variantName,omitempty"`

	Quantity   int             `gorm:"not null" json:"quantity"`
	Price      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"` // 单价，含规格加价
	TotalPrice decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"totalPrice"`
}

func (OrderItem) TableName() string { return "order_items" }
