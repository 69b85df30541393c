// periodctl 评分周期运维命令行：迁移、学期配置、周期解析与回填、签发运维 Token。
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/xxxkjing/ClassComp-Score/config"
	"github.com/xxxkjing/ClassComp-Score/internal/repository"
	"github.com/xxxkjing/ClassComp-Score/internal/service"
	"github.com/xxxkjing/ClassComp-Score/pkg/clock"
	"github.com/xxxkjing/ClassComp-Score/pkg/database"
	applogger "github.com/xxxkjing/ClassComp-Score/pkg/logger"
	"github.com/xxxkjing/ClassComp-Score/pkg/metrics"
	"github.com/xxxkjing/ClassComp-Score/pkg/redis"
)

const programName = "periodctl"

var globalFlags = struct {
	configFile string
	debug      bool
	jsonOutput bool
	today      string
}{}

type ctxKey struct{}

// app 单次命令执行所需的依赖；数据库在首次使用时才连接
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	clock   clock.Clock
	metrics *metrics.PeriodMetrics

	db  *gorm.DB
	rdb *redis.Client
	svc *service.Service
}

func fromContext(ctx context.Context) *app {
	a, _ := ctx.Value(ctxKey{}).(*app)
	return a
}

// service 连接数据库并组装 Service
func (a *app) service() (*service.Service, error) {
	if a.svc != nil {
		return a.svc, nil
	}
	if err := a.openDB(); err != nil {
		return nil, err
	}

	var locker service.SemesterLocker
	if a.cfg.Redis.Enabled {
		rdb, err := redis.NewClient(&a.cfg.Redis, a.logger)
		if err != nil {
			a.logger.Warn("Redis 连接失败，不使用分布式锁", zap.Error(err))
		} else {
			a.rdb = rdb
			locker = rdb
		}
	}

	a.svc = service.NewService(a.cfg, repository.NewRepository(a.db), a.clock, locker, a.metrics, a.logger)
	return a.svc, nil
}

func (a *app) openDB() error {
	if a.db != nil {
		return nil
	}
	db, err := database.NewDB(&a.cfg.Database, a.cfg.Log.Level, a.logger)
	if err != nil {
		return err
	}
	a.db = db
	return nil
}

func (a *app) close() {
	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			sqlDB.Close()
		}
	}
	if a.rdb != nil {
		a.rdb.Close()
	}
	a.logger.Sync()
}

// newRootCommand 返回根命令与释放连接的清理函数
func newRootCommand() (*cobra.Command, func()) {
	var current *app

	rootCmd := &cobra.Command{
		Use:           programName,
		Short:         "ClassComp 评分周期运维工具",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&globalFlags.configFile, "config", "", "配置文件路径")
	rootCmd.PersistentFlags().BoolVarP(&globalFlags.debug, "debug", "D", false, "输出调试日志")
	rootCmd.PersistentFlags().BoolVar(&globalFlags.jsonOutput, "json", false, "以 JSON 输出结果")
	rootCmd.PersistentFlags().StringVar(&globalFlags.today, "today", "", "固定当前日期 YYYY-MM-DD（回放与测试用）")
	_ = rootCmd.PersistentFlags().MarkHidden("today")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(globalFlags.configFile)
		if err != nil {
			return err
		}

		// 命令行工具日志写 stderr，stdout 只输出结果
		logCfg := cfg.Log
		logCfg.Format = "console"
		logCfg.OutputPaths = []string{"stderr"}
		if globalFlags.debug {
			logCfg.Level = "debug"
		} else if logCfg.Level == "info" {
			logCfg.Level = "warn"
		}
		logger, err := applogger.NewLogger(&logCfg)
		if err != nil {
			return err
		}

		clk, err := newClock(cfg.Period.Timezone, globalFlags.today)
		if err != nil {
			return err
		}

		current = &app{cfg: cfg, logger: logger, clock: clk, metrics: metrics.NewPeriodMetrics()}
		cmd.SetContext(context.WithValue(cmd.Context(), ctxKey{}, current))
		return nil
	}

	rootCmd.AddCommand(migrateCommand())
	rootCmd.AddCommand(semesterCommand())
	rootCmd.AddCommand(periodCommand())
	rootCmd.AddCommand(tokenCommand())

	cleanup := func() {
		if current != nil {
			current.close()
		}
	}
	return rootCmd, cleanup
}

// newClock today 非空时返回固定在该日正午（配置时区）的时钟
func newClock(timezone, today string) (clock.Clock, error) {
	clk, err := clock.New(timezone)
	if err != nil || today == "" {
		return clk, err
	}
	d, err := clock.ParseDate(today)
	if err != nil {
		return nil, fmt.Errorf("--today 格式应为 YYYY-MM-DD: %w", err)
	}
	loc := clk.Location()
	return clock.NewFixed(time.Date(d.Year(), d.Month(), d.Day(), 12, 0, 0, 0, loc), loc), nil
}

func main() {
	rootCmd, cleanup := newRootCommand()
	err := rootCmd.ExecuteContext(context.Background())
	cleanup()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", programName, err)
		os.Exit(1)
	}
}
