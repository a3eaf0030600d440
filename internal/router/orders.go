package router

import (
	"net/http"
	"strings"
	"time"

	"color_shop/internal/model"
	"color_shop/internal/service"
	rediskey "color_shop/pkg/redis"

	"github.com/gin-gonic/gin"
	rd "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

type lineItemRequest struct {
	ProductID uint  `json:"productId" binding:"required,min=1"`
	VariantID *uint `json:"variantId" binding:"omitempty,min=1"`
	Quantity  int   `json:"quantity" binding:"required,min=1"`
}

type createOrderRequest struct {
	Items           []lineItemRequest `json:"items" binding:"required,min=1,dive"`
	ShippingAddress model.Address     `json:"shippingAddress" binding:"required,min=1"`
	BillingAddress  model.Address     `json:"billingAddress"`
	CustomerNote    string            `json:"customerNote" binding:"max=1000"`
}

func (r createOrderRequest) input(userID uint) service.CreateOrderInput {
	in := service.CreateOrderInput{
		Items:           make([]service.LineItemInput, 0, len(r.Items)),
		ShippingAddress: r.ShippingAddress,
		BillingAddress:  r.BillingAddress,
		CustomerNote:    r.CustomerNote,
	}
	if userID > 0 {
		in.UserID = &userID
	}
	for _, it := range r.Items {
		in.Items = append(in.Items, service.LineItemInput{
			ProductID: it.ProductID,
			VariantID: it.VariantID,
			Quantity:  it.Quantity,
		})
	}
	return in
}

// createOrder 下单入口。带 Idempotency-Key 时：
// 1. SETNX 抢占键（pending）
// 2. 已成功的键直接返回原订单，仍在处理中的返回 409
// 3. 下单失败释放键，成功记录订单 ID
// Redis 不可用时退化为普通下单。
func createOrder(svc *service.OrderService, rdb *rd.Client, idemTTL time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, bindError(err))
			return
		}
		actor := identity(c)
		ctx := c.Request.Context()

		idemKey := ""
		if raw := strings.TrimSpace(c.GetHeader("Idempotency-Key")); raw != "" && rdb != nil {
			key := rediskey.IdempotencyKey(actor.UserID, raw)
			claimed, err := rediskey.ClaimRequest(ctx, rdb, key, idemTTL)
			switch {
			case err != nil:
				logrus.WithError(err).WithField("user_id", actor.UserID).Warn("idempotency unavailable")
			case !claimed:
				replayOrder(c, svc, rdb, key)
				return
			default:
				idemKey = key
			}
		}

		order, err := svc.CreateOrder(ctx, req.input(actor.UserID))
		if err != nil {
			if idemKey != "" {
				if relErr := rediskey.ReleaseRequest(ctx, rdb, idemKey); relErr != nil {
					logrus.WithError(relErr).WithField("key", idemKey).Warn("release idempotency key")
				}
			}
			respondError(c, err)
			return
		}
		if idemKey != "" {
			if err := rediskey.CompleteRequest(ctx, rdb, idemKey, order.ID, idemTTL); err != nil {
				logrus.WithError(err).WithField("order_id", order.ID).Warn("complete idempotency key")
			}
		}
		respondOK(c, http.StatusCreated, order)
	}
}

func replayOrder(c *gin.Context, svc *service.OrderService, rdb *rd.Client, key string) {
	st, found, err := rediskey.GetRequestState(c.Request.Context(), rdb, key)
	if err != nil {
		respondError(c, err)
		return
	}
	if !found || st.Status != rediskey.RequestSuccess || st.OrderID == 0 {
		fail(c, http.StatusConflict, "A request with this Idempotency-Key is already in progress")
		return
	}
	order, err := svc.GetOrder(c.Request.Context(), st.OrderID, identity(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Idempotent-Replayed", "true")
	respondOK(c, http.StatusOK, order)
}

func myOrders(svc *service.OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, info, err := svc.GetMyOrders(c.Request.Context(), identity(c), pageFromQuery(c))
		if err != nil {
			respondError(c, err)
			return
		}
		respondPage(c, list, len(list), info)
	}
}

func getOrder(svc *service.OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, valid := parseID(c)
		if !valid {
			return
		}
		order, err := svc.GetOrder(c.Request.Context(), id, identity(c))
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, http.StatusOK, order)
	}
}

// filterFromQuery 解析管理端筛选参数；状态取值必须在闭集内。
func filterFromQuery(c *gin.Context) (service.OrderFilter, bool) {
	f := service.OrderFilter{
		Status:        strings.TrimSpace(c.Query("status")),
		PaymentStatus: strings.TrimSpace(c.Query("paymentStatus")),
		Search:        c.Query("search"),
		Sort:          c.Query("sort"),
	}
	if f.Status != "" && !model.OrderStatus(f.Status).Valid() {
		fail(c, http.StatusBadRequest, "Invalid order status filter")
		return f, false
	}
	if f.PaymentStatus != "" && !model.PaymentStatus(f.PaymentStatus).Valid() {
		fail(c, http.StatusBadRequest, "Invalid payment status filter")
		return f, false
	}
	return f, true
}

func listOrders(svc *service.OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter, valid := filterFromQuery(c)
		if !valid {
			return
		}
		list, info, err := svc.GetOrders(c.Request.Context(), filter, pageFromQuery(c))
		if err != nil {
			respondError(c, err)
			return
		}
		respondPage(c, list, len(list), info)
	}
}

func updateOrderStatus(svc *service.OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, valid := parseID(c)
		if !valid {
			return
		}
		var req struct {
			Status model.OrderStatus `json:"status" binding:"required,orderstatus"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, bindError(err))
			return
		}
		order, err := svc.UpdateOrderStatus(c.Request.Context(), id, req.Status, identity(c))
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, http.StatusOK, order)
	}
}

func updatePaymentStatus(svc *service.OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, valid := parseID(c)
		if !valid {
			return
		}
		var req struct {
			PaymentStatus model.PaymentStatus `json:"paymentStatus" binding:"required,paymentstatus"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, bindError(err))
			return
		}
		order, err := svc.UpdatePaymentStatus(c.Request.Context(), id, req.PaymentStatus, identity(c))
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, http.StatusOK, order)
	}
}

func orderEvents(svc *service.OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, valid := parseID(c)
		if !valid {
			return
		}
		events, err := svc.ListOrderEvents(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, http.StatusOK, events)
	}
}
