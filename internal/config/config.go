package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// AppConfig 聚合运行时配置，全部通过环境变量（或 .env）注入。
type AppConfig struct {
	HTTPAddr    string
	CORSOrigins []string

	// DBDriver 取值 sqlite / postgres，DBDSN 为对应驱动的连接串
	DBDriver string
	DBDSN    string

	RedisAddr string
	RedisDB   int

	// Kafka 集群地址（逗号分隔）、Topic、消费者组
	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string

	// Redis Stream outbox（下单后入流，Relay 异步转 Kafka）
	EventsEnabled      bool
	OrderEventStream   string
	OrderEventGroup    string
	OrderEventConsumer string

	// 下单接口限流与幂等键保留时长
	OrderRateLimit  int
	OrderRateWindow time.Duration
	IdempotencyTTL  time.Duration

	JWTSecret string

	// 计价规则：税率、包邮门槛、固定运费
	Pricing Pricing

	LogLevel  string
	LogFormat string
}

// Pricing 描述订单汇总阶段使用的费率。
type Pricing struct {
	TaxRate               decimal.Decimal
	FreeShippingThreshold decimal.Decimal
	ShippingFee           decimal.Decimal
}

// DefaultPricing 10% 税率，满 100 包邮，否则运费 10。
func DefaultPricing() Pricing {
	return Pricing{
		TaxRate:               decimal.RequireFromString("0.10"),
		FreeShippingThreshold: decimal.NewFromInt(100),
		ShippingFee:           decimal.NewFromInt(10),
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("CORS_ORIGINS", "*")
	v.SetDefault("DB_DRIVER", "sqlite")
	v.SetDefault("DB_DSN", "color_shop.db")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("KAFKA_BROKERS", "localhost:9092")
	v.SetDefault("KAFKA_TOPIC", "color-shop-order-events")
	v.SetDefault("KAFKA_GROUP_ID", "color-shop-order-activity")
	v.SetDefault("EVENTS_ENABLED", true)
	v.SetDefault("ORDER_EVENT_STREAM", "color_shop:order_events")
	v.SetDefault("ORDER_EVENT_GROUP", "color-shop-relay-group")
	v.SetDefault("ORDER_EVENT_CONSUMER", "color-shop-relay-1")
	v.SetDefault("ORDER_RATE_LIMIT", 20)
	v.SetDefault("ORDER_RATE_WINDOW_SEC", 60)
	v.SetDefault("IDEMPOTENCY_TTL_HOUR", 24)
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("TAX_RATE", "0.10")
	v.SetDefault("FREE_SHIPPING_THRESHOLD", "100")
	v.SetDefault("SHIPPING_FEE", "10")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
}

// Load 读取并校验配置，缺失时使用默认值。
func Load() (AppConfig, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	cfg := AppConfig{
		HTTPAddr:           strings.TrimSpace(v.GetString("HTTP_ADDR")),
		CORSOrigins:        splitCSV(v.GetString("CORS_ORIGINS")),
		DBDriver:           strings.ToLower(strings.TrimSpace(v.GetString("DB_DRIVER"))),
		DBDSN:              strings.TrimSpace(v.GetString("DB_DSN")),
		RedisAddr:          strings.TrimSpace(v.GetString("REDIS_ADDR")),
		RedisDB:            v.GetInt("REDIS_DB"),
		KafkaBrokers:       splitCSV(v.GetString("KAFKA_BROKERS")),
		KafkaTopic:         strings.TrimSpace(v.GetString("KAFKA_TOPIC")),
		KafkaGroupID:       strings.TrimSpace(v.GetString("KAFKA_GROUP_ID")),
		EventsEnabled:      v.GetBool("EVENTS_ENABLED"),
		OrderEventStream:   strings.TrimSpace(v.GetString("ORDER_EVENT_STREAM")),
		OrderEventGroup:    strings.TrimSpace(v.GetString("ORDER_EVENT_GROUP")),
		OrderEventConsumer: strings.TrimSpace(v.GetString("ORDER_EVENT_CONSUMER")),
		JWTSecret:          v.GetString("JWT_SECRET"),
		LogLevel:           strings.TrimSpace(v.GetString("LOG_LEVEL")),
		LogFormat:          strings.TrimSpace(v.GetString("LOG_FORMAT")),
	}

	switch cfg.DBDriver {
	case "sqlite", "postgres":
	default:
		return AppConfig{}, fmt.Errorf("DB_DRIVER must be sqlite or postgres, got %q", cfg.DBDriver)
	}
	if cfg.DBDSN == "" {
		return AppConfig{}, fmt.Errorf("DB_DSN must not be empty")
	}
	if cfg.RedisDB < 0 {
		return AppConfig{}, fmt.Errorf("REDIS_DB must be >= 0")
	}

	rateLimit := v.GetInt("ORDER_RATE_LIMIT")
	if rateLimit <= 0 {
		return AppConfig{}, fmt.Errorf("ORDER_RATE_LIMIT must be > 0")
	}
	cfg.OrderRateLimit = rateLimit

	rateWindowSec := v.GetInt("ORDER_RATE_WINDOW_SEC")
	if rateWindowSec <= 0 {
		return AppConfig{}, fmt.Errorf("ORDER_RATE_WINDOW_SEC must be > 0")
	}
	cfg.OrderRateWindow = time.Duration(rateWindowSec) * time.Second

	idemTTLHour := v.GetInt("IDEMPOTENCY_TTL_HOUR")
	if idemTTLHour <= 0 {
		return AppConfig{}, fmt.Errorf("IDEMPOTENCY_TTL_HOUR must be > 0")
	}
	cfg.IdempotencyTTL = time.Duration(idemTTLHour) * time.Hour

	// JWT 密钥不给默认值，避免以空密钥签发令牌
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return AppConfig{}, fmt.Errorf("JWT_SECRET must not be empty")
	}

	pricing, err := loadPricing(v)
	if err != nil {
		return AppConfig{}, err
	}
	cfg.Pricing = pricing

	if cfg.EventsEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return AppConfig{}, fmt.Errorf("KAFKA_BROKERS must not be empty")
		}
		if cfg.KafkaTopic == "" {
			return AppConfig{}, fmt.Errorf("KAFKA_TOPIC must not be empty")
		}
		if cfg.KafkaGroupID == "" {
			return AppConfig{}, fmt.Errorf("KAFKA_GROUP_ID must not be empty")
		}
		if cfg.OrderEventStream == "" {
			return AppConfig{}, fmt.Errorf("ORDER_EVENT_STREAM must not be empty")
		}
		if cfg.OrderEventGroup == "" {
			return AppConfig{}, fmt.Errorf("ORDER_EVENT_GROUP must not be empty")
		}
		if cfg.OrderEventConsumer == "" {
			return AppConfig{}, fmt.Errorf("ORDER_EVENT_CONSUMER must not be empty")
		}
	}

	return cfg, nil
}

func loadPricing(v *viper.Viper) (Pricing, error) {
	taxRate, err := decimal.NewFromString(strings.TrimSpace(v.GetString("TAX_RATE")))
	if err != nil {
		return Pricing{}, fmt.Errorf("invalid TAX_RATE: %w", err)
	}
	if taxRate.IsNegative() || taxRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return Pricing{}, fmt.Errorf("TAX_RATE must be in [0, 1)")
	}
	threshold, err := decimal.NewFromString(strings.TrimSpace(v.GetString("FREE_SHIPPING_THRESHOLD")))
	if err != nil {
		return Pricing{}, fmt.Errorf("invalid FREE_SHIPPING_THRESHOLD: %w", err)
	}
	fee, err := decimal.NewFromString(strings.TrimSpace(v.GetString("SHIPPING_FEE")))
	if err != nil {
		return Pricing{}, fmt.Errorf("invalid SHIPPING_FEE: %w", err)
	}
	if threshold.IsNegative() || fee.IsNegative() {
		return Pricing{}, fmt.Errorf("FREE_SHIPPING_THRESHOLD and SHIPPING_FEE must be >= 0")
	}
	return Pricing{TaxRate: taxRate, FreeShippingThreshold: threshold, ShippingFee: fee}, nil
}

// splitCSV 将逗号分隔字符串解析为字符串切片。
func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
