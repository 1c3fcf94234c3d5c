package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	rd "github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"topup_service/internal/account"
	"topup_service/internal/config"
	"topup_service/internal/model"
	"topup_service/internal/notify"
	"topup_service/internal/order"
	"topup_service/internal/payment"
	"topup_service/internal/queue"
	"topup_service/internal/router"
	rediskey "topup_service/pkg/redis"
)

// 同一订单发起支付的锁 TTL
const initiationLockTTL = 30 * time.Second

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load", "error", err)
		os.Exit(1)
	}
	log := newLogger(cfg)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. 连接 SQLite，自动建表并写入默认价目
	db, err := gorm.Open(sqlite.Open(cfg.DBPath), &gorm.Config{})
	if err != nil {
		log.Error("db open", "error", err)
		os.Exit(1)
	}
	if err := db.AutoMigrate(model.All()...); err != nil {
		log.Error("db migrate", "error", err)
		os.Exit(1)
	}
	if err := order.SeedProducts(ctx, db); err != nil {
		log.Error("seed products", "error", err)
		os.Exit(1)
	}

	// 2. Redis 可选：限流、状态缓存、下单锁、通知 outbox
	var rdb *rd.Client
	if cfg.RedisEnabled() {
		rdb = rd.NewClient(&rd.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			if cfg.NotifyMode == config.NotifyModeOutbox {
				log.Error("redis ping", "addr", cfg.RedisAddr, "error", err)
				os.Exit(1)
			}
			log.Warn("redis unavailable, continuing without it", "addr", cfg.RedisAddr, "error", err)
			_ = rdb.Close()
			rdb = nil
		} else {
			defer rdb.Close()
		}
	}

	// 3. 支付网关与回调验签
	dana := payment.NewDanaGateway(payment.DanaConfig{
		MerchantID: cfg.DanaMerchantID,
		SecretKey:  cfg.DanaSecretKey,
		BaseURL:    cfg.DanaBaseURL,
	})
	midtrans := payment.NewMidtransGateway(payment.MidtransConfig{
		ServerKey: cfg.MidtransServerKey,
		SnapURL:   cfg.MidtransBaseURL,
		APIURL:    cfg.MidtransAPIBaseURL,
	})
	var gateway payment.Gateway = dana
	if cfg.PaymentProvider == string(payment.VendorMidtrans) {
		gateway = midtrans
	}
	integrations := map[payment.Vendor]payment.Integration{
		payment.VendorMidtrans: {Vendor: payment.VendorMidtrans, Secret: cfg.MidtransServerKey, RequiresSignature: cfg.MidtransVerifySignature},
		payment.VendorDana:     {Vendor: payment.VendorDana, Secret: cfg.DanaSecretKey, RequiresSignature: cfg.DanaVerifySignature},
	}
	for v, integ := range integrations {
		if !integ.RequiresSignature {
			log.Warn("callback signature verification disabled", "vendor", v)
		}
	}

	// 4. 通知
	notifier, bg := setupNotifier(ctx, cfg, rdb, log)

	opts := order.Options{
		References:        payment.NewReferences(cfg.ReferencePrefix),
		Gateway:           gateway,
		Queriers:          map[payment.Vendor]payment.StatusQuerier{payment.VendorMidtrans: midtrans},
		Notifier:          notifier,
		NotifyTimeout:     cfg.NotifyTimeout,
		NotifyConcurrency: cfg.NotifyConcurrency,
		StrictTransitions: cfg.StrictStatusTransitions,
		CallbackURLs: map[payment.Vendor]string{
			payment.VendorMidtrans: strings.TrimRight(cfg.PublicBaseURL, "/") + "/api/payment/webhook",
			payment.VendorDana:     strings.TrimRight(cfg.PublicBaseURL, "/") + "/api/payment/callback",
		},
		RedirectURL: strings.TrimRight(cfg.PublicBaseURL, "/") + "/payment/success",
		Logger:      log,
	}
	if rdb != nil {
		if cfg.StatusCacheTTL > 0 {
			opts.Cache = rediskey.NewStatusCache(rdb, cfg.StatusCacheTTL)
		}
		opts.Locker = rediskey.NewOrderLock(rdb, initiationLockTTL)
	}
	svc := order.NewService(db, opts)

	accounts := account.NewService(db, log)
	if err := accounts.EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminPassword); err != nil {
		log.Error("ensure admin account", "error", err)
		os.Exit(1)
	}

	r := gin.Default()
	router.Setup(r, router.Deps{
		DB:           db,
		Redis:        rdb,
		Service:      svc,
		Accounts:     accounts,
		Integrations: integrations,
		Config:       cfg,
	})

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r}
	go func() {
		log.Info("http server listening", "addr", cfg.HTTPAddr, "provider", cfg.PaymentProvider, "notify_mode", cfg.NotifyMode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", "error", err)
	}
	// 等待在途通知发完再关闭下游
	svc.Flush()
	for _, closeFn := range bg {
		closeFn()
	}
	log.Info("server stopped")
}

// setupNotifier 按 NOTIFY_MODE 组装通知链路，返回需要在退出时关闭的资源。
func setupNotifier(ctx context.Context, cfg config.AppConfig, rdb *rd.Client, log *slog.Logger) (notify.Notifier, []func()) {
	telegram := notify.NewTelegram(cfg.TelegramAPIBase, cfg.TelegramBotToken, cfg.TelegramChatID, cfg.NotifyTimeout)

	switch cfg.NotifyMode {
	case config.NotifyModeNone:
		return notify.Nop{}, nil
	case config.NotifyModeOutbox:
		// API 写 Redis Stream → Relay 转 Kafka → Consumer 投递 Telegram
		producer := queue.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		relay := queue.NewRelay(rdb, producer, cfg.NotifyStream, cfg.NotifyGroup, cfg.NotifyConsumer, log)
		consumer := queue.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID, telegram, cfg.NotifyTimeout, log)
		go relay.Run(ctx)
		go consumer.Run(ctx)
		return notify.NewOutbox(rdb, cfg.NotifyStream), []func(){
			func() { _ = consumer.Close() },
			func() { _ = producer.Close() },
		}
	default:
		if cfg.TelegramBotToken == "" || cfg.TelegramChatID == "" {
			log.Warn("telegram not configured, notifications disabled")
			return notify.Nop{}, nil
		}
		return telegram, nil
	}
}

func newLogger(cfg config.AppConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	hopts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, hopts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, hopts))
}
