package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/xxxkjing/ClassComp-Score/config"
	"github.com/xxxkjing/ClassComp-Score/internal/repository"
	"github.com/xxxkjing/ClassComp-Score/pkg/clock"
	"github.com/xxxkjing/ClassComp-Score/pkg/metrics"
)

// SemesterLocker 按学期串行化周期物化（多实例部署时由 Redis 提供）
type SemesterLocker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// Service 所有 Service 的聚合入口
type Service struct {
	Semester SemesterService
	Period   PeriodService
	Export   ExportService
}

// NewService 创建 Service 聚合
// locker 可为 nil（单实例部署，仅依赖唯一约束）
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	clk clock.Clock,
	locker SemesterLocker,
	m *metrics.PeriodMetrics,
	logger *zap.Logger,
) *Service {
	period := NewPeriodService(&cfg.Period, repo, clk, locker, m, logger)
	return &Service{
		Semester: NewSemesterService(&cfg.Period, repo, clk, logger),
		Period:   period,
		Export:   NewExportService(repo, clk, logger),
	}
}
