package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// 通知投递方式
const (
	NotifyModeDirect = "direct" // 请求内直接调用 Telegram（带独立超时）
	NotifyModeOutbox = "outbox" // 写 Redis Stream，Relay 转 Kafka，Consumer 投递
	NotifyModeNone   = "none"
)

// AppConfig 聚合运行时配置，全部通过环境变量注入，避免硬编码。
type AppConfig struct {
	HTTPAddr string `env:"HTTP_ADDR" env-default:":8080"`
	DBPath   string `env:"DB_PATH" env-default:"topup.db"`

	// RedisAddr 为空时关闭限流、状态缓存、下单锁与 outbox。
	RedisAddr string `env:"REDIS_ADDR" env-default:"localhost:6379"`
	RedisDB   int    `env:"REDIS_DB" env-default:"0"`

	// Kafka 集群地址（逗号分隔）、Topic、消费者组，仅 outbox 模式使用
	KafkaBrokers []string `env:"KAFKA_BROKERS" env-default:"localhost:9092" env-separator:","`
	KafkaTopic   string   `env:"KAFKA_TOPIC" env-default:"topup-notifications"`
	KafkaGroupID string   `env:"KAFKA_GROUP_ID" env-default:"topup-notifier"`

	// Redis Stream outbox（API 入流，Relay 异步转 Kafka）
	NotifyStream   string `env:"NOTIFY_STREAM" env-default:"topup:notify_events"`
	NotifyGroup    string `env:"NOTIFY_GROUP" env-default:"topup-relay-group"`
	NotifyConsumer string `env:"NOTIFY_CONSUMER" env-default:"topup-relay-1"`
	NotifyMode     string `env:"NOTIFY_MODE" env-default:"direct"`

	NotifyTimeoutMS int `env:"NOTIFY_TIMEOUT_MS" env-default:"5000"`
	NotifyTimeout   time.Duration
	// 后台并发投递上限，占满时丢弃新通知
	NotifyConcurrency int `env:"NOTIFY_CONCURRENCY" env-default:"32"`

	TelegramAPIBase  string `env:"TELEGRAM_API_BASE" env-default:"https://api.telegram.org"`
	TelegramBotToken string `env:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID   string `env:"TELEGRAM_CHAT_ID"`

	// 登录 cookie 的 HS256 密钥，必须显式配置
	AuthSecret        string `env:"AUTH_SECRET" env-required:"true"`
	AuthTokenTTLHours int    `env:"AUTH_TOKEN_TTL_HOURS" env-default:"24"`
	AuthTokenTTL      time.Duration
	// 两者都非空时启动会确保该管理员账号存在
	AdminUsername string `env:"ADMIN_USERNAME"`
	AdminPassword string `env:"ADMIN_PASSWORD"`
	PublicBaseURL string `env:"PUBLIC_BASE_URL" env-default:"http://localhost:8080"`

	// PaymentProvider 决定发起支付时使用的网关
	PaymentProvider string `env:"PAYMENT_PROVIDER" env-default:"dana"`
	ReferencePrefix string `env:"REFERENCE_PREFIX" env-default:"MDZ"`

	DanaMerchantID      string `env:"DANA_MERCHANT_ID"`
	DanaSecretKey       string `env:"DANA_SECRET_KEY"`
	DanaBaseURL         string `env:"DANA_BASE_URL" env-default:"https://dashboard.dana.id"`
	DanaVerifySignature bool   `env:"DANA_VERIFY_SIGNATURE" env-default:"true"`

	MidtransServerKey       string `env:"MIDTRANS_SERVER_KEY"`
	MidtransBaseURL         string `env:"MIDTRANS_BASE_URL" env-default:"https://app.sandbox.midtrans.com"`
	MidtransAPIBaseURL      string `env:"MIDTRANS_API_BASE_URL" env-default:"https://api.sandbox.midtrans.com"`
	MidtransVerifySignature bool   `env:"MIDTRANS_VERIFY_SIGNATURE" env-default:"true"`

	// 开启后终态订单不会被后续回调改写
	StrictStatusTransitions bool `env:"STRICT_STATUS_TRANSITIONS" env-default:"false"`

	// 游客下单限流，按客户端 IP 计数
	GuestOrderRateLimit     int `env:"GUEST_ORDER_RATE_LIMIT" env-default:"30"`
	GuestOrderRateWindowSec int `env:"GUEST_ORDER_RATE_WINDOW_SEC" env-default:"60"`
	GuestOrderRateWindow    time.Duration

	StatusCacheTTLSec int `env:"STATUS_CACHE_TTL_SEC" env-default:"30"`
	StatusCacheTTL       time.Duration

	LogLevel  string `env:"LOG_LEVEL" env-default:"info"`
	LogFormat string `env:"LOG_FORMAT" env-default:"json"`
}

// Load 读取并校验配置，缺失时使用默认值。
func Load() (AppConfig, error) {
	var cfg AppConfig
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return AppConfig{}, fmt.Errorf("read env: %w", err)
	}
	cfg.KafkaBrokers = splitCSV(strings.Join(cfg.KafkaBrokers, ","))
	cfg.NotifyMode = strings.ToLower(strings.TrimSpace(cfg.NotifyMode))
	cfg.PaymentProvider = strings.ToLower(strings.TrimSpace(cfg.PaymentProvider))

	if cfg.NotifyTimeoutMS <= 0 {
		return AppConfig{}, fmt.Errorf("NOTIFY_TIMEOUT_MS must be > 0")
	}
	cfg.NotifyTimeout = time.Duration(cfg.NotifyTimeoutMS) * time.Millisecond

	if cfg.NotifyConcurrency <= 0 {
		return AppConfig{}, fmt.Errorf("NOTIFY_CONCURRENCY must be > 0")
	}

	if cfg.GuestOrderRateLimit <= 0 {
		return AppConfig{}, fmt.Errorf("GUEST_ORDER_RATE_LIMIT must be > 0")
	}
	if cfg.GuestOrderRateWindowSec <= 0 {
		return AppConfig{}, fmt.Errorf("GUEST_ORDER_RATE_WINDOW_SEC must be > 0")
	}
	cfg.GuestOrderRateWindow = time.Duration(cfg.GuestOrderRateWindowSec) * time.Second

	if cfg.StatusCacheTTLSec < 0 {
		return AppConfig{}, fmt.Errorf("STATUS_CACHE_TTL_SEC must be >= 0")
	}
	cfg.StatusCacheTTL = time.Duration(cfg.StatusCacheTTLSec) * time.Second

	if strings.TrimSpace(cfg.AuthSecret) == "" {
		return AppConfig{}, fmt.Errorf("AUTH_SECRET must not be empty")
	}
	if cfg.AuthTokenTTLHours <= 0 {
		return AppConfig{}, fmt.Errorf("AUTH_TOKEN_TTL_HOURS must be > 0")
	}
	cfg.AuthTokenTTL = time.Duration(cfg.AuthTokenTTLHours) * time.Hour
	if cfg.ReferencePrefix == "" || strings.ContainsAny(cfg.ReferencePrefix, "-\\.^$()[]{}*+?|") {
		return AppConfig{}, fmt.Errorf("REFERENCE_PREFIX must be a plain tag without '-' or regex metacharacters")
	}

	switch cfg.PaymentProvider {
	case "dana", "midtrans":
	default:
		return AppConfig{}, fmt.Errorf("PAYMENT_PROVIDER must be dana or midtrans, got %q", cfg.PaymentProvider)
	}

	switch cfg.NotifyMode {
	case NotifyModeDirect, NotifyModeNone:
	case NotifyModeOutbox:
		if cfg.RedisAddr == "" {
			return AppConfig{}, fmt.Errorf("NOTIFY_MODE=outbox requires REDIS_ADDR")
		}
		if len(cfg.KafkaBrokers) == 0 {
			return AppConfig{}, fmt.Errorf("KAFKA_BROKERS must not be empty")
		}
		if cfg.KafkaTopic == "" {
			return AppConfig{}, fmt.Errorf("KAFKA_TOPIC must not be empty")
		}
		if cfg.KafkaGroupID == "" {
			return AppConfig{}, fmt.Errorf("KAFKA_GROUP_ID must not be empty")
		}
		if cfg.NotifyStream == "" || cfg.NotifyGroup == "" || cfg.NotifyConsumer == "" {
			return AppConfig{}, fmt.Errorf("NOTIFY_STREAM, NOTIFY_GROUP and NOTIFY_CONSUMER must not be empty")
		}
	default:
		return AppConfig{}, fmt.Errorf("NOTIFY_MODE must be direct, outbox or none, got %q", cfg.NotifyMode)
	}

	return cfg, nil
}

// RedisEnabled 表示是否配置了 Redis。
func (c AppConfig) RedisEnabled() bool { return c.RedisAddr != "" }

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
