package main

import (
	"Courier/internal/api/config"
	"Courier/internal/pkg/cron"
	"Courier/internal/pkg/database"
	"Courier/internal/pkg/logger"
	"Courier/internal/pkg/minio"
	"Courier/internal/pkg/mongo"
	"Courier/internal/pkg/redis"
	"Courier/internal/pkg/security"
	"Courier/internal/wire"
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

func main() {
	// 加载配置
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Error("Fatal error: failed to load configuration", "err", err)
		panic(err)
	}

	// 初始化日志
	logger.InitLogger(cfg.Logstash)
	security.Init(cfg.JWT)

	infra := &wire.Infra{}

	// 用户资料库，未配置 DSN 时使用种子资料
	var db *gorm.DB
	if cfg.DB.DSN != "" {
		db, err = database.NewGormDB(&cfg.DB)
		if err != nil {
			log.Error("Fatal error: failed to create database connection", "err", err)
			panic(err)
		}
		infra.DB = db
	}

	// Redis 连接
	if cfg.Storage.Driver == "mongo" || cfg.Realtime.Broker == "redis" {
		if err = redis.InitRedis(cfg.Redis); err != nil {
			log.Error("Fatal error: failed to create redis connection", "err", err)
			panic(err)
		}
		infra.Redis = redis.GetRdbClient()
	}

	// Mongo 连接
	if cfg.Storage.Driver == "mongo" {
		infra.Mongo, err = mongo.InitMongo(cfg.Mongo, cfg.IM.StrictDirectUniqueness)
		if err != nil {
			log.Error("Fatal error: failed to create mongo connection", "err", err)
			panic(err)
		}
	}

	// MinIO 连接
	if cfg.MinIO.InternalEndpoint != "" || cfg.MinIO.ExternalEndpoint != "" {
		if err = minio.Init(cfg.MinIO); err != nil {
			log.Warn("MinIO unavailable, avatar urls use configured endpoint only", "err", err)
		}
	}

	// 依赖注入
	app, err := wire.BuildApplication(infra, cfg)
	if err != nil {
		log.Error("Fatal error: failed to create application", "err", err)
		panic(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	// 定时任务
	if err = cron.InitCron(app.CronMgr); err != nil {
		log.Error("Fatal error: failed to start cron jobs", "err", err)
		panic(err)
	}
	g.Go(func() error {
		<-ctx.Done()
		log.Info("Cron Jobs stopping...")
		app.CronMgr.Stop()
		return nil
	})

	// Kafka 消费者
	if app.KafkaManager != nil {
		g.Go(func() error {
			log.Info("Kafka Consumers starting...")
			return app.KafkaManager.Start(ctx)
		})
	}

	// HTTP 服务器，WebSocket 连接不受写超时限制
	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:     app.Router,
		ReadTimeout: time.Duration(cfg.Server.ReadTimeout) * time.Second,
	}
	g.Go(func() error {
		log.Info("HTTP Server starting...", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// 优雅退出
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case <-ctx.Done():
		case sig := <-quit:
			log.Info("Received signal, shutting down...", "signal", sig)
			cancel()
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP Server shutdown failed", "err", err)
		}
		if err := app.Hub.Close(); err != nil {
			log.Error("Realtime hub close failed", "err", err)
		}
		return nil
	})

	if err = g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("App exited with error", "err", err)
	}

	if infra.Mongo != nil {
		_ = infra.Mongo.Client().Disconnect(context.Background())
	}
	_ = redis.Close()
	_ = database.Close(db)
	log.Info("App exited successfully.")
}
