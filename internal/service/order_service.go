package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"color_shop/internal/auth"
	"color_shop/internal/config"
	"color_shop/internal/model"
	"color_shop/internal/queue"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// EventPublisher 接收订单事件（生产环境为 Redis Stream outbox）。
type EventPublisher interface {
	PublishOrderEvent(ctx context.Context, ev queue.OrderEvent) error
}

type noopPublisher struct{}

func (noopPublisher) PublishOrderEvent(context.Context, queue.OrderEvent) error { return nil }

// OrderService 订单下单、查询与状态变更。
type OrderService struct {
	db      *gorm.DB
	pricing config.Pricing
	events  EventPublisher

	now         func() time.Time
	orderNumber func(time.Time) string
}

func NewOrderService(db *gorm.DB, pricing config.Pricing, events EventPublisher) *OrderService {
	if events == nil {
		events = noopPublisher{}
	}
	return &OrderService{
		db:          db,
		pricing:     pricing,
		events:      events,
		now:         time.Now,
		orderNumber: newOrderNumber,
	}
}

// newOrderNumber 生成 ORD-<毫秒时间戳>-<0..999 随机数>。
func newOrderNumber(now time.Time) string {
	return fmt.Sprintf("ORD-%d-%d", now.UnixMilli(), rand.Intn(1000))
}

// LineItemInput 下单请求中的一行。
type LineItemInput struct {
	ProductID uint
	VariantID *uint
	Quantity  int
}

// CreateOrderInput 下单参数；UserID 为空表示游客。
type CreateOrderInput struct {
	Items           []LineItemInput
	ShippingAddress model.Address
	BillingAddress  model.Address
	CustomerNote    string
	UserID          *uint
}

func (in CreateOrderInput) validate() error {
	if len(in.Items) == 0 {
		return validationError("Order must contain at least one item")
	}
	for i, it := range in.Items {
		if it.ProductID == 0 {
			return validationError("Item %d: productId is required", i+1)
		}
		if it.Quantity <= 0 {
			return validationError("Item %d: quantity must be a positive integer", i+1)
		}
	}
	if len(in.ShippingAddress) == 0 {
		return validationError("Shipping address is required")
	}
	return nil
}

// CreateOrder 在一个事务内完成：逐行查商品、计价、扣规格库存，汇总金额，写订单与订单行。
// 任一行失败整单回滚，之前已扣的库存一并恢复。返回的订单不含 Items。
func (s *OrderService) CreateOrder(ctx context.Context, in CreateOrderInput) (*model.Order, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	billing := in.BillingAddress
	if len(billing) == 0 {
		billing = in.ShippingAddress
	}

	var order model.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		subtotal := decimal.Zero
		items := make([]model.OrderItem, 0, len(in.Items))

		for _, it := range in.Items {
			item, err := priceLine(tx, it)
			if err != nil {
				return err
			}
			subtotal = subtotal.Add(item.TotalPrice)
			items = append(items, item)
		}

		totals := ComputeTotals(s.pricing, subtotal)
		now := s.now()
		order = model.Order{
			CreatedAt:       now,
			OrderNumber:     s.orderNumber(now),
			UserID:          in.UserID,
			Status:          model.OrderStatusPending,
			PaymentStatus:   model.PaymentStatusPending,
			Subtotal:        totals.Subtotal,
			TaxAmount:       totals.TaxAmount,
			ShippingCost:    totals.ShippingCost,
			TotalAmount:     totals.TotalAmount,
			ShippingAddress: in.ShippingAddress,
			BillingAddress:  billing,
			CustomerNote:    in.CustomerNote,
		}
		if err := tx.Create(&order).Error; err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		for i := range items {
			items[i].OrderID = order.ID
		}
		if err := tx.Create(&items).Error; err != nil {
			return fmt.Errorf("insert order items: %w", err)
		}
		return nil
	})
	if err != nil {
		var appErr *Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, serverError("Failed to create order", err)
	}

	logrus.WithFields(logrus.Fields{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"total":        order.TotalAmount.String(),
	}).Info("order created")

	s.publish(ctx, model.OrderEventCreated, &order, in.UserID)
	return &order, nil
}

// priceLine 处理单行：商品存在且 active，计价，按需扣规格库存。
func priceLine(tx *gorm.DB, it LineItemInput) (model.OrderItem, error) {
	row, err := lookupCatalog(tx, it.ProductID, it.VariantID)
	if err != nil {
		return model.OrderItem{}, err
	}
	return priceRow(tx, row, it)
}

// priceRow 用已读出的目录行定价并扣减库存；row 可能已过期，以条件扣减结果为准。
func priceRow(tx *gorm.DB, row catalogRow, it LineItemInput) (model.OrderItem, error) {
	if row.Status != model.ProductStatusActive {
		return model.OrderItem{}, invalidState("Product %q is not available", row.Name)
	}

	price := UnitPrice(row.Price, row.VariantPrice)
	productID := row.ID
	item := model.OrderItem{
		ProductID:   &productID,
		ProductName: row.Name,
		Quantity:    it.Quantity,
		Price:       price,
		TotalPrice:  LineTotal(price, it.Quantity),
	}

	if it.VariantID == nil {
		return item, nil
	}
	if !row.variantFound() {
		return model.OrderItem{}, notFound("Variant %d of product %q not found", *it.VariantID, row.Name)
	}
	variantName := ""
	if row.VariantName != nil {
		variantName = *row.VariantName
	}
	if row.VariantStock == nil || *row.VariantStock < it.Quantity {
		return model.OrderItem{}, insufficientStock("Insufficient stock for %s", describeLine(row.Name, variantName))
	}
	ok, err := reserveStock(tx, *it.VariantID, it.Quantity)
	if err != nil {
		return model.OrderItem{}, err
	}
	if !ok {
		// 读到库存之后被并发请求扣走
		return model.OrderItem{}, insufficientStock("Insufficient stock for %s", describeLine(row.Name, variantName))
	}

	variantID := *it.VariantID
	item.VariantID = &variantID
	item.VariantName = variantName
	return item, nil
}

func describeLine(productName, variantName string) string {
	if variantName == "" {
		return fmt.Sprintf("%q", productName)
	}
	return fmt.Sprintf("%q (%s)", productName, variantName)
}

// publish 投递订单事件；失败只记日志，不影响已提交的订单。
func (s *OrderService) publish(ctx context.Context, typ model.OrderEventType, order *model.Order, actorID *uint) {
	ev := queue.OrderEvent{
		EventID:       uuid.NewString(),
		Type:          typ,
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		Status:        order.Status,
		PaymentStatus: order.PaymentStatus,
		TotalAmount:   order.TotalAmount,
		OccurredAt:    s.now().UTC(),
	}
	if actorID != nil {
		ev.ActorID = *actorID
	}
	if err := s.events.PublishOrderEvent(ctx, ev); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"order_id": order.ID,
			"event_id": ev.EventID,
			"type":     typ,
		}).Warn("publish order event")
	}
}

func actorRef(actor auth.Identity) *uint {
	if actor.UserID == 0 {
		return nil
	}
	id := actor.UserID
	return &id
}
