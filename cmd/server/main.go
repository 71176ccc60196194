package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ncastellanos/inventory-service/config"
	"github.com/ncastellanos/inventory-service/pkg/broker"
	"github.com/ncastellanos/inventory-service/pkg/cache"
	"github.com/ncastellanos/inventory-service/pkg/database/postgres"
	"github.com/ncastellanos/inventory-service/pkg/logger"

	auditRepoPkg "github.com/ncastellanos/inventory-service/internal/audit/repository"
	invRepoPkg "github.com/ncastellanos/inventory-service/internal/inventory/repository"
	invUCPkg "github.com/ncastellanos/inventory-service/internal/inventory/usecase"
	invcRepoPkg "github.com/ncastellanos/inventory-service/internal/invoice/repository"
	invcUCPkg "github.com/ncastellanos/inventory-service/internal/invoice/usecase"
	"github.com/ncastellanos/inventory-service/internal/payment"
	payGatewayPkg "github.com/ncastellanos/inventory-service/internal/payment/gateway"
	payListenerPkg "github.com/ncastellanos/inventory-service/internal/payment/listener"
	payUCPkg "github.com/ncastellanos/inventory-service/internal/payment/usecase"
	prodRepoPkg "github.com/ncastellanos/inventory-service/internal/product/repository"
)

func main() {
	// 1. Load Configuration
	_ = godotenv.Load() // Load .env file if it exists
	cfg := config.LoadEnv()

	// 2. Initialize Logger
	logConfig := &logger.ZapLoggerConfig{
		IsDevelopment:     false,
		Encoding:          "json",
		Level:             "info",
		DisableCaller:     false,
		DisableStacktrace: false,
	}

	if cfg.Server.AppEnv == "development" || cfg.Server.AppEnv == "dev" {
		logConfig.IsDevelopment = true
		logConfig.Encoding = "console"
		logConfig.Level = "debug"
	}

	appLogger := logger.NewZapLogger(logConfig)
	defer appLogger.Sync()

	// 3. Connect to Database
	db, err := postgres.NewPostgres(&postgres.Config{
		Host:            cfg.Postgres.Host,
		Port:            cfg.Postgres.Port,
		User:            cfg.Postgres.User,
		Password:        cfg.Postgres.Password,
		DBName:          cfg.Postgres.DBName,
		SSLMode:         cfg.Postgres.SSLMode,
		MaxOpenConns:    cfg.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Postgres.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Postgres.ConnMaxLifetime) * time.Second,
		ConnMaxIdleTime: time.Duration(cfg.Postgres.ConnMaxIdleTime) * time.Second,
	})
	if err != nil {
		appLogger.Fatal("could not connect to database", zap.Error(err))
	}
	defer db.Close()
	appLogger.Info("connected to PostgreSQL database", zap.String("db_name", cfg.Postgres.DBName))

	// 4. Initialize Redis
	redisClient, err := cache.NewRedisClient(&cache.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		appLogger.Fatal("could not connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	appLogger.Info("connected to Redis", zap.String("addr", cfg.Redis.Addr))

	// 5. Initialize Kafka Consumer
	kafkaConsumer := broker.NewConsumer(&broker.Config{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.Topic,
		GroupID: cfg.Kafka.GroupID,
	})
	defer kafkaConsumer.Close()
	appLogger.Info("connected to Kafka consumer",
		zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))

	// 6. Initialize Payment Gateway Client
	gatewayCfg := payment.Config{
		APIURL:            cfg.MercadoPago.APIURL,
		AccessToken:       cfg.MercadoPago.AccessToken,
		CollectorID:       cfg.MercadoPago.UserID,
		PosID:             cfg.MercadoPago.PosID,
		QRExpirationHours: cfg.MercadoPago.QRExpirationHours,
	}
	gateway, err := payGatewayPkg.NewMercadoPago(gatewayCfg)
	if err != nil {
		appLogger.Fatal("could not initialize payment gateway client", zap.Error(err))
	}

	// 7. Initialize Repositories
	auditRecorder := auditRepoPkg.NewPGRecorder(db, appLogger)
	prodRepo := prodRepoPkg.NewPGRepository(db)
	invRepo := invRepoPkg.NewPGRepository(db, auditRecorder)
	invcRepo := invcRepoPkg.NewPGRepository(db)

	// 8. Initialize UseCases
	invUC := invUCPkg.NewInventoryUseCase(invRepo, prodRepo, redisClient, auditRecorder, appLogger)
	invcUC := invcUCPkg.NewInvoiceUseCase(invcRepo, auditRecorder, appLogger)
	payUC := payUCPkg.NewPaymentUseCase(gateway, invcUC, invUC, redisClient, gatewayCfg, appLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 9. Start Listener
	payListener := payListenerPkg.NewPaymentListener(kafkaConsumer, payUC, appLogger)
	go payListener.Start(ctx)

	// 10. Background Jobs
	go runTicker(ctx, time.Duration(cfg.Settlement.QRRefreshIntervalMinutes)*time.Minute, func() {
		if result, err := payUC.RefreshExpiredQRs(ctx); err != nil {
			appLogger.Error("QR refresh run failed", zap.Error(err))
		} else if result.Refreshed > 0 || result.Failed > 0 {
			appLogger.Info("QR refresh run finished",
				zap.Int("refreshed", result.Refreshed), zap.Int("failed", result.Failed))
		}
	})
	go runTicker(ctx, time.Duration(cfg.Settlement.ReconcileIntervalMinutes)*time.Minute, func() {
		if _, err := payUC.ReconcileUnappliedStock(ctx); err != nil {
			appLogger.Error("stock reconciliation run failed", zap.Error(err))
		}
	})

	appLogger.Info("inventory service started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("shutting down...")
	cancel()
	appLogger.Info("server stopped")
}

func runTicker(ctx context.Context, interval time.Duration, fn func()) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}
