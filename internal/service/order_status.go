package service

import (
	"context"
	"errors"

	"color_shop/internal/auth"
	"color_shop/internal/model"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// UpdateOrderStatus 管理员修改订单状态。存在性检查与更新在同一事务内。
func (s *OrderService) UpdateOrderStatus(ctx context.Context, id uint, status model.OrderStatus, actor auth.Identity) (*model.Order, error) {
	if status == "" {
		return nil, validationError("Status is required")
	}
	if !status.Valid() {
		return nil, validationError("Invalid order status %q", status)
	}
	order, err := s.updateColumn(ctx, id, "status", status, "Failed to update order status")
	if err != nil {
		return nil, err
	}
	s.publish(ctx, model.OrderEventStatusChanged, order, actorRef(actor))
	return order, nil
}

// UpdatePaymentStatus 管理员修改支付状态。
func (s *OrderService) UpdatePaymentStatus(ctx context.Context, id uint, status model.PaymentStatus, actor auth.Identity) (*model.Order, error) {
	if status == "" {
		return nil, validationError("Payment status is required")
	}
	if !status.Valid() {
		return nil, validationError("Invalid payment status %q", status)
	}
	order, err := s.updateColumn(ctx, id, "payment_status", status, "Failed to update payment status")
	if err != nil {
		return nil, err
	}
	s.publish(ctx, model.OrderEventPaymentStatusChanged, order, actorRef(actor))
	return order, nil
}

func (s *OrderService) updateColumn(ctx context.Context, id uint, column string, value any, failMsg string) (*model.Order, error) {
	var order model.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&order, id).Error; err != nil {
			return err
		}
		if err := tx.Model(&order).Update(column, value).Error; err != nil {
			return err
		}
		return tx.First(&order, id).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("Order not found")
		}
		logrus.WithError(err).WithFields(logrus.Fields{"order_id": id, "column": column}).Error("update order")
		return nil, serverError(failMsg, err)
	}
	logrus.WithFields(logrus.Fields{"order_id": id, column: value}).Info("order updated")
	return &order, nil
}
