package service

import (
	"context"
	"errors"
	"strings"

	"color_shop/internal/auth"
	"color_shop/internal/model"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	defaultPageLimit = 10
	maxPageLimit     = 100
	maxExportRows    = 5000
)

// Page 分页参数，非法值回落到默认。
type Page struct {
	Page  int
	Limit int
}

func NewPage(page, limit int) Page {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return Page{Page: page, Limit: limit}
}

func (p Page) offset() int { return (p.Page - 1) * p.Limit }

// PageInfo 分页信封。
type PageInfo struct {
	Total   int64 `json:"total"`
	Page    int   `json:"page"`
	Pages   int   `json:"pages"`
	HasNext bool  `json:"hasNext"`
	HasPrev bool  `json:"hasPrev"`
}

func newPageInfo(p Page, total int64) PageInfo {
	pages := int((total + int64(p.Limit) - 1) / int64(p.Limit))
	return PageInfo{
		Total:   total,
		Page:    p.Page,
		Pages:   pages,
		HasNext: p.Page < pages,
		HasPrev: p.Page > 1,
	}
}

// FirstItem 订单列表里的首行预览。
type FirstItem struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Image    string `json:"image,omitempty"`
}

// OrderSummary 列表行：订单本身（不含 items）加行数、首行预览与下单人邮箱。
type OrderSummary struct {
	model.Order
	ItemCount int        `json:"itemCount"`
	FirstItem *FirstItem `json:"firstItem,omitempty"`
	UserEmail string     `json:"userEmail,omitempty"`
}

// OrderFilter 管理端列表的筛选与排序。
type OrderFilter struct {
	Status        string
	PaymentStatus string
	Search        string
	Sort          string
}

var orderSorts = map[string]string{
	"newest":     "orders.created_at DESC, orders.id DESC",
	"oldest":     "orders.created_at ASC, orders.id ASC",
	"total_asc":  "orders.total_amount ASC, orders.id ASC",
	"total_desc": "orders.total_amount DESC, orders.id DESC",
}

func sortClause(key string) string {
	if s, ok := orderSorts[key]; ok {
		return s
	}
	return orderSorts["newest"]
}

func itemsByID(db *gorm.DB) *gorm.DB { return db.Order("order_items.id ASC") }

// GetOrder 查单个订单（含 items）。非管理员只能查自己的订单，
// 归属校验与存在性合并为一次查询，查不到一律 NotFound。
func (s *OrderService) GetOrder(ctx context.Context, id uint, actor auth.Identity) (*model.Order, error) {
	q := s.db.WithContext(ctx).Where("id = ?", id)
	if !actor.IsAdmin() {
		q = q.Where("user_id = ?", actor.UserID)
	}

	var order model.Order
	if err := q.Preload("Items", itemsByID).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("Order not found")
		}
		return nil, serverError("Failed to load order", err)
	}
	return &order, nil
}

// GetMyOrders 当前用户的订单，按创建时间倒序。
func (s *OrderService) GetMyOrders(ctx context.Context, actor auth.Identity, page Page) ([]OrderSummary, PageInfo, error) {
	q := s.db.WithContext(ctx).Model(&model.Order{}).
		Where("orders.user_id = ?", actor.UserID).
		Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, PageInfo{}, serverError("Failed to count orders", err)
	}

	var orders []model.Order
	err := q.Preload("Items", itemsByID).
		Order(sortClause("newest")).
		Offset(page.offset()).Limit(page.Limit).
		Find(&orders).Error
	if err != nil {
		return nil, PageInfo{}, serverError("Failed to list orders", err)
	}

	return s.summarize(ctx, orders, true), newPageInfo(page, total), nil
}

// GetOrders 管理端订单列表：按状态、支付状态筛选，search 不区分大小写匹配订单号或下单人邮箱。
func (s *OrderService) GetOrders(ctx context.Context, filter OrderFilter, page Page) ([]OrderSummary, PageInfo, error) {
	q := s.filteredOrders(ctx, filter)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, PageInfo{}, serverError("Failed to count orders", err)
	}

	var orders []model.Order
	err := q.Select("orders.*").
		Preload("User").
		Preload("Items", itemsByID).
		Order(sortClause(filter.Sort)).
		Offset(page.offset()).Limit(page.Limit).
		Find(&orders).Error
	if err != nil {
		return nil, PageInfo{}, serverError("Failed to list orders", err)
	}

	return s.summarize(ctx, orders, true), newPageInfo(page, total), nil
}

// ExportOrders 与 GetOrders 同样的筛选与排序，不分页，最多 maxExportRows 行。
func (s *OrderService) ExportOrders(ctx context.Context, filter OrderFilter) ([]OrderSummary, error) {
	var orders []model.Order
	err := s.filteredOrders(ctx, filter).
		Select("orders.*").
		Preload("User").
		Preload("Items", itemsByID).
		Order(sortClause(filter.Sort)).
		Limit(maxExportRows).
		Find(&orders).Error
	if err != nil {
		return nil, serverError("Failed to export orders", err)
	}
	return s.summarize(ctx, orders, false), nil
}

// likeEscaper 转义 LIKE 通配符，search 按字面子串匹配。
var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

func (s *OrderService) filteredOrders(ctx context.Context, filter OrderFilter) *gorm.DB {
	q := s.db.WithContext(ctx).Model(&model.Order{}).
		Joins("LEFT JOIN users ON users.id = orders.user_id")
	if filter.Status != "" {
		q = q.Where("orders.status = ?", filter.Status)
	}
	if filter.PaymentStatus != "" {
		q = q.Where("orders.payment_status = ?", filter.PaymentStatus)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		like := "%" + likeEscaper.Replace(strings.ToLower(search)) + "%"
		q = q.Where(`(LOWER(orders.order_number) LIKE ? ESCAPE '\' OR LOWER(users.email) LIKE ? ESCAPE '\')`, like, like)
	}
	return q.Session(&gorm.Session{})
}

// summarize 计算行数与首行预览；withImage 为 false 时跳过首图查询。
func (s *OrderService) summarize(ctx context.Context, orders []model.Order, withImage bool) []OrderSummary {
	out := make([]OrderSummary, 0, len(orders))
	for _, o := range orders {
		sum := OrderSummary{ItemCount: len(o.Items)}
		if o.User != nil {
			sum.UserEmail = o.User.Email
		}
		if len(o.Items) > 0 {
			first := o.Items[0]
			sum.FirstItem = &FirstItem{Name: first.ProductName, Quantity: first.Quantity}
			if withImage {
				img, err := primaryImage(s.db.WithContext(ctx), first.ProductID, first.VariantID)
				if err != nil {
					// 首图只是预览，查询失败不影响列表
					logrus.WithError(err).WithField("order_id", o.ID).Warn("first item image")
				}
				sum.FirstItem.Image = img
			}
		}
		o.Items = nil
		o.User = nil
		sum.Order = o
		out = append(out, sum)
	}
	return out
}

// ListOrderEvents 订单动态，按发生时间升序。
func (s *OrderService) ListOrderEvents(ctx context.Context, orderID uint) ([]model.OrderEvent, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.Order{}).Where("id = ?", orderID).Count(&count).Error; err != nil {
		return nil, serverError("Failed to load order", err)
	}
	if count == 0 {
		return nil, notFound("Order not found")
	}

	var events []model.OrderEvent
	err := s.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("occurred_at ASC, id ASC").
		Find(&events).Error
	if err != nil {
		return nil, serverError("Failed to load order events", err)
	}
	return events, nil
}
