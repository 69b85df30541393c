package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/xxxkjing/ClassComp-Score/config"
	"github.com/xxxkjing/ClassComp-Score/internal/api/handler"
	"github.com/xxxkjing/ClassComp-Score/internal/api/router"
	"github.com/xxxkjing/ClassComp-Score/internal/model"
	"github.com/xxxkjing/ClassComp-Score/internal/repository"
	"github.com/xxxkjing/ClassComp-Score/internal/service"
	"github.com/xxxkjing/ClassComp-Score/pkg/clock"
	"github.com/xxxkjing/ClassComp-Score/pkg/database"
	"github.com/xxxkjing/ClassComp-Score/pkg/jwt"
	applogger "github.com/xxxkjing/ClassComp-Score/pkg/logger"
	"github.com/xxxkjing/ClassComp-Score/pkg/metrics"
	"github.com/xxxkjing/ClassComp-Score/pkg/redis"
)

func main() {
	configPath := flag.String("config", "", "配置文件路径（默认查找 ./config/config.yaml）")
	flag.Parse()

	// 1. 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("应用启动中...",
		zap.Int("port", cfg.Server.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.String("timezone", cfg.Period.Timezone),
	)

	// 3. 连接数据库并执行迁移
	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}
	if err := database.Migrate(db, cfg.Database.Driver, logger, model.MigrateModels...); err != nil {
		logger.Fatal("数据库迁移失败", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("获取底层 sql.DB 失败", zap.Error(err))
	}

	checks := map[string]router.HealthCheck{
		"db": sqlDB.PingContext,
	}

	// 4. 连接 Redis（可选：未启用或连接失败时仅依赖唯一约束）
	var (
		rdb    *redis.Client
		locker service.SemesterLocker
	)
	if cfg.Redis.Enabled {
		rdb, err = redis.NewClient(&cfg.Redis, logger)
		if err != nil {
			logger.Warn("Redis 连接失败，周期物化将不使用分布式锁", zap.Error(err))
		} else {
			locker = rdb
			checks["redis"] = rdb.Ping
		}
	}

	// 5. 时钟与指标
	clk, err := clock.New(cfg.Period.Timezone)
	if err != nil {
		logger.Fatal("时区配置无效", zap.Error(err))
	}

	var gatherer prometheus.Gatherer
	periodMetrics := metrics.NewPeriodMetrics()
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		periodMetrics.Register(reg)
		gatherer = reg
	}

	// 6. 依赖注入: Repository → Service → Handler
	jwtMgr := jwt.NewManager(&cfg.Auth)
	repo := repository.NewRepository(db)
	svc := service.NewService(cfg, repo, clk, locker, periodMetrics, logger)
	h := handler.NewHandler(svc)

	// 7. 初始化路由
	engine := router.Setup(cfg, h, jwtMgr, router.Options{Gatherer: gatherer, Checks: checks}, logger)

	// 8. 启动 HTTP 服务器（优雅关闭）
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("HTTP 服务器已启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP 服务器异常", zap.Error(err))
		}
	}()

	// 9. 监听系统信号，优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("收到关闭信号，开始优雅关闭...", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("服务器关闭异常", zap.Error(err))
	}

	sqlDB.Close()
	if rdb != nil {
		rdb.Close()
	}

	logger.Info("服务器已关闭")
}
