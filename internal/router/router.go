package router

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"color_shop/internal/auth"
	"color_shop/internal/config"
	"color_shop/internal/middleware"
	"color_shop/internal/model"
	"color_shop/internal/realtime"
	"color_shop/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	rd "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Deps 路由依赖。Redis 为空时跳过限流与幂等键，Hub 为空时不注册 WebSocket。
type Deps struct {
	DB     *gorm.DB
	Redis  *rd.Client
	Orders *service.OrderService
	Signer *auth.Signer
	Hub    *realtime.Hub
	Config config.AppConfig
}

// Setup 注册全部 HTTP 路由。
func Setup(r *gin.Engine, deps Deps) {
	registerValidators()

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"msg": "pong"})
	})

	authn := middleware.Authenticate(deps.Signer)
	admin := middleware.RequireAdmin()

	api := r.Group("/api")
	api.GET("/products", listProducts(deps.DB))
	api.POST("/products", authn, admin, createProduct(deps.DB))
	api.POST("/users", authn, admin, createUser(deps.DB, deps.Signer))

	orders := api.Group("/orders", authn)
	create := []gin.HandlerFunc{}
	if deps.Redis != nil {
		create = append(create, middleware.RedisRateLimit(deps.Redis, deps.Config.OrderRateLimit, deps.Config.OrderRateWindow))
	}
	create = append(create, createOrder(deps.Orders, deps.Redis, deps.Config.IdempotencyTTL))
	orders.POST("", create...)
	orders.GET("/my-orders", myOrders(deps.Orders))
	orders.GET("/export", admin, exportOrders(deps.Orders))
	if deps.Hub != nil {
		orders.GET("/ws", admin, deps.Hub.Handler())
	}
	orders.GET("/:id", getOrder(deps.Orders))
	orders.GET("", admin, listOrders(deps.Orders))
	orders.PATCH("/:id/status", admin, updateOrderStatus(deps.Orders))
	orders.PUT("/:id/payment-status", admin, updatePaymentStatus(deps.Orders))
	orders.GET("/:id/events", admin, orderEvents(deps.Orders))
}

var validatorsOnce sync.Once

// registerValidators 给 gin 的 validator 注册订单状态标签，错误信息使用 JSON 字段名。
func registerValidators() {
	validatorsOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation("orderstatus", func(fl validator.FieldLevel) bool {
			return model.OrderStatus(fl.Field().String()).Valid()
		})
		_ = v.RegisterValidation("paymentstatus", func(fl validator.FieldLevel) bool {
			return model.PaymentStatus(fl.Field().String()).Valid()
		})
	})
}

func respondOK(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

func respondPage(c *gin.Context, data any, count int, info service.PageInfo) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"count":   count,
		"total":   info.Total,
		"page":    info.Page,
		"pages":   info.Pages,
		"hasNext": info.HasNext,
		"hasPrev": info.HasPrev,
		"data":    data,
	})
}

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"success": false, "message": msg})
}

// respondError 把业务错误分类映射为 HTTP 状态码。
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch service.KindOf(err) {
	case service.KindValidation, service.KindInvalidState, service.KindInsufficientStock:
		status = http.StatusBadRequest
	case service.KindNotFound:
		status = http.StatusNotFound
	}
	if status >= http.StatusInternalServerError {
		logrus.WithError(err).WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
		}).Error("request failed")
	}
	fail(c, status, service.PublicMessage(err))
}

// bindError 把绑定/校验失败转成一条可读提示。
func bindError(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		field := fe.Namespace()
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}
		switch fe.Tag() {
		case "required":
			return fmt.Sprintf("%s is required", field)
		case "min":
			return fmt.Sprintf("%s must be at least %s", field, fe.Param())
		case "max":
			return fmt.Sprintf("%s must be at most %s", field, fe.Param())
		case "oneof":
			return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
		case "orderstatus":
			return fmt.Sprintf("Invalid order status %q", fmt.Sprint(fe.Value()))
		case "paymentstatus":
			return fmt.Sprintf("Invalid payment status %q", fmt.Sprint(fe.Value()))
		default:
			return fmt.Sprintf("%s is invalid", field)
		}
	}
	return "Invalid request body"
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		fail(c, http.StatusBadRequest, "Invalid order id")
		return 0, false
	}
	return uint(id), true
}

func pageFromQuery(c *gin.Context) service.Page {
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))
	return service.NewPage(page, limit)
}

func identity(c *gin.Context) auth.Identity {
	id, _ := middleware.IdentityFrom(c)
	return id
}
