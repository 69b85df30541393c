package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/xxxkjing/ClassComp-Score/config"
	"github.com/xxxkjing/ClassComp-Score/internal/dto"
	"github.com/xxxkjing/ClassComp-Score/internal/model"
	"github.com/xxxkjing/ClassComp-Score/internal/repository"
	"github.com/xxxkjing/ClassComp-Score/pkg/clock"
	pkgerrors "github.com/xxxkjing/ClassComp-Score/pkg/errors"
	"github.com/xxxkjing/ClassComp-Score/pkg/metrics"
)

const defaultMaxMaterializeIterations = 100

// PeriodService 评分周期解析与管理
//
// 所有涉及 semesterID 的方法在其为空时使用当前活动学期。
type PeriodService interface {
	// Resolve 返回覆盖 target 的周期，必要时按当前周期类型依次物化；target 为零值时取今天。
	// 物化超过迭代上限时回退到 CalculateLegacy，返回 Estimated=true 的周期且 error 为 nil。
	Resolve(ctx context.Context, semesterID string, target time.Time) (*model.Period, error)
	// MaterializeNext 写入下一个周期（编号 = 最大编号 + 1，无周期时为 0）
	MaterializeNext(ctx context.Context, semesterID string) (*model.Period, error)
	// ChangePeriodType 变更后续周期的类型；失败原因见 ChangeResult.Err
	ChangePeriodType(ctx context.Context, in ChangePeriodTypeInput) *ChangeResult

	GetPeriodInfo(ctx context.Context, semesterID, date string) (*dto.PeriodInfoResponse, error)
	ListPeriods(ctx context.Context, semesterID string) (*dto.PeriodListResponse, error)
	ConfigHistory(ctx context.Context, semesterID string) ([]dto.PeriodTypeChangeResponse, error)

	SetPeriodActive(ctx context.Context, semesterID string, number int, active bool, actor string) error
	ResetPeriods(ctx context.Context, semesterID, actor string) (*dto.ResetPeriodsResponse, error)
	BackfillLegacy(ctx context.Context, semesterID string, through time.Time) (*dto.BackfillResponse, error)
	VerifyContinuity(ctx context.Context, semesterID string) (*dto.ContinuityReport, error)
}

type periodService struct {
	repo    *repository.Repository
	clock   clock.Clock
	locker  SemesterLocker
	metrics *metrics.PeriodMetrics
	logger  *zap.Logger

	maxIterations int
	lockTTL       time.Duration
}

// NewPeriodService 创建 PeriodService 实例
func NewPeriodService(
	cfg *config.PeriodConfig,
	repo *repository.Repository,
	clk clock.Clock,
	locker SemesterLocker,
	m *metrics.PeriodMetrics,
	logger *zap.Logger,
) PeriodService {
	maxIter := cfg.MaxMaterializeIterations
	if maxIter <= 0 {
		maxIter = defaultMaxMaterializeIterations
	}
	return &periodService{
		repo:          repo,
		clock:         clk,
		locker:        locker,
		metrics:       m,
		logger:        logger,
		maxIterations: maxIter,
		lockTTL:       cfg.LockTTL,
	}
}

// errAlreadyCovered 物化前发现最后一个周期已覆盖目标日期（被其他请求抢先）
var errAlreadyCovered = errors.New("目标日期已被已有周期覆盖")

// ═══════════════════════════════════════════════════════════
// Resolve：日期 → 周期
// ═══════════════════════════════════════════════════════════

func (s *periodService) Resolve(ctx context.Context, semesterID string, target time.Time) (*model.Period, error) {
	semester, err := s.loadSemester(ctx, semesterID)
	if err != nil {
		return nil, err
	}
	if target.IsZero() {
		target = s.clock.Today()
	}
	return s.resolve(ctx, semester, clock.Normalize(target))
}

func (s *periodService) resolve(ctx context.Context, semester *model.SemesterConfig, target time.Time) (*model.Period, error) {
	// 早于学期开始的日期归入第 0 周期
	lookup := target
	if start := clock.Normalize(semester.StartDate); lookup.Before(start) {
		lookup = start
	}

	// 1. 快速路径
	period, err := s.repo.Period.FindContaining(ctx, semester.ID, lookup)
	if err != nil {
		s.logger.Error("查询周期失败", zap.String("semester_id", semester.ID), zap.Error(err))
		return nil, err
	}
	if period != nil {
		s.metrics.IncResolveHit()
		return period, nil
	}
	s.metrics.IncResolveMiss()

	// 2. 目标日期不晚于最后周期却未命中：覆盖它的周期已停用
	last, err := s.repo.Period.GetLast(ctx, semester.ID)
	if err != nil {
		return nil, err
	}
	if last != nil && !lookup.After(clock.Normalize(last.EndDate)) {
		s.logger.Warn("目标日期所在周期已停用，回退到无状态计算",
			zap.String("semester_id", semester.ID),
			zap.String("date", clock.FormatDate(target)),
			zap.Int("last_period", last.PeriodNumber),
		)
		return s.fallback(semester, target), nil
	}

	// 3. 依次物化直到覆盖目标日期
	unlock := s.lock(ctx, semester.ID)
	defer unlock()

	created := 0
	defer func() { s.metrics.ObserveBatch(created) }()

	for i := 0; i < s.maxIterations; i++ {
		period, err := s.materializeNext(ctx, semester.ID, lookup)
		switch {
		case errors.Is(err, ErrConcurrentMaterialization), errors.Is(err, errAlreadyCovered):
			if errors.Is(err, ErrConcurrentMaterialization) {
				s.metrics.IncConflict()
				s.logger.Debug("并发物化冲突，重新查询", zap.String("semester_id", semester.ID), zap.Error(err))
			}
			found, ferr := s.repo.Period.FindContaining(ctx, semester.ID, lookup)
			if ferr != nil {
				return nil, ferr
			}
			if found != nil {
				return found, nil
			}
			if errors.Is(err, errAlreadyCovered) {
				return s.fallback(semester, target), nil
			}
			continue
		case err != nil:
			return nil, err
		}

		created++
		if period.Contains(lookup) {
			return period, nil
		}
		if period.StartDate.After(lookup) {
			s.logger.Warn("新周期越过目标日期，周期序列存在间隙，回退到无状态计算",
				zap.String("semester_id", semester.ID),
				zap.String("date", clock.FormatDate(target)),
				zap.Int("period_number", period.PeriodNumber),
			)
			return s.fallback(semester, target), nil
		}
	}

	resErr := fmt.Errorf("%w: 学期 %s 在 %d 次物化后仍未覆盖 %s",
		ErrPeriodResolution, semester.ID, s.maxIterations, clock.FormatDate(target))
	s.logger.Warn("周期解析失败，回退到无状态计算",
		zap.String("semester_id", semester.ID),
		zap.String("date", clock.FormatDate(target)),
		zap.Error(resErr),
	)
	return s.fallback(semester, target), nil
}

// fallback 使用旧版 14 天算法估算
func (s *periodService) fallback(semester *model.SemesterConfig, target time.Time) *model.Period {
	s.metrics.IncLegacyFallback()
	est := CalculateLegacy(target, semester.StartDate, semester.FirstPeriodEndDate)
	return est.Period(semester.ID)
}

// lock 获取学期级物化锁；失败时记录告警并继续（唯一约束兜底）
func (s *periodService) lock(ctx context.Context, semesterID string) func() {
	if s.locker == nil || s.lockTTL <= 0 {
		return func() {}
	}
	unlock, err := s.locker.Lock(ctx, "period:"+semesterID, s.lockTTL)
	if err != nil {
		s.logger.Warn("获取物化锁失败，依赖唯一约束处理并发",
			zap.String("semester_id", semesterID), zap.Error(err))
		return func() {}
	}
	return unlock
}

// ═══════════════════════════════════════════════════════════
// MaterializeNext：写入下一个周期
// ═══════════════════════════════════════════════════════════

func (s *periodService) MaterializeNext(ctx context.Context, semesterID string) (*model.Period, error) {
	semester, err := s.loadSemester(ctx, semesterID)
	if err != nil {
		return nil, err
	}
	period, err := s.materializeNext(ctx, semester.ID, time.Time{})
	if err != nil {
		if errors.Is(err, ErrConcurrentMaterialization) {
			s.metrics.IncConflict()
		}
		return nil, err
	}
	s.metrics.ObserveBatch(1)
	return period, nil
}

// materializeNext 在事务内读取学期当前类型与最后周期并写入下一个周期。
// until 非零时，若最后周期已覆盖 until 则返回 errAlreadyCovered 而不写入。
func (s *periodService) materializeNext(ctx context.Context, semesterID string, until time.Time) (*model.Period, error) {
	var created *model.Period

	err := s.repo.InTx(ctx, func(tx *repository.Repository) error {
		semester, err := tx.Semester.GetByID(ctx, semesterID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSemesterNotFound
			}
			return err
		}

		last, err := tx.Period.GetLast(ctx, semesterID)
		if err != nil {
			return err
		}
		if !until.IsZero() && last != nil && !clock.Normalize(last.EndDate).Before(until) {
			return errAlreadyCovered
		}

		next := nextPeriod(semester, last, s.clock.Now())
		if err := tx.Period.Insert(ctx, next); err != nil {
			if errors.Is(err, pkgerrors.ErrDuplicatePeriod) {
				return fmt.Errorf("%w: 学期 %s 第 %d 周期", ErrConcurrentMaterialization, semesterID, next.PeriodNumber)
			}
			return err
		}
		created = next
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrConcurrentMaterialization) && !errors.Is(err, errAlreadyCovered) && !errors.Is(err, ErrSemesterNotFound) {
			s.logger.Error("物化周期失败", zap.String("semester_id", semesterID), zap.Error(err))
		}
		return nil, err
	}

	s.metrics.IncMaterialized()
	s.logger.Info("周期已物化",
		zap.String("semester_id", semesterID),
		zap.Int("period_number", created.PeriodNumber),
		zap.String("period_type", string(created.PeriodType)),
		zap.String("start", clock.FormatDate(created.StartDate)),
		zap.String("end", clock.FormatDate(created.EndDate)),
	)
	return created, nil
}

// nextPeriod 计算 last 之后的周期；第 0 周期固定为 [start_date, first_period_end_date]
func nextPeriod(semester *model.SemesterConfig, last *model.Period, now time.Time) *model.Period {
	p := &model.Period{
		SemesterID: semester.ID,
		PeriodType: semester.CurrentPeriodType,
		IsActive:   true,
		CreatedAt:  now,
		CreatedBy:  model.CreatedBySystem,
	}
	if !p.PeriodType.Valid() {
		p.PeriodType = model.PeriodTypeBiweekly
	}

	if last == nil {
		p.PeriodNumber = 0
		p.StartDate = clock.Normalize(semester.StartDate)
		p.EndDate = clock.Normalize(semester.FirstPeriodEndDate)
		return p
	}

	p.PeriodNumber = last.PeriodNumber + 1
	p.StartDate = clock.AddDays(clock.Normalize(last.EndDate), 1)
	p.EndDate = clock.AddDays(p.StartDate, p.PeriodType.Days()-1)
	return p
}

// ═══════════════════════════════════════════════════════════
// 查询
// ═══════════════════════════════════════════════════════════

// GetPeriodInfo date 为空时取今天
func (s *periodService) GetPeriodInfo(ctx context.Context, semesterID, date string) (*dto.PeriodInfoResponse, error) {
	var target time.Time
	if date != "" {
		d, err := clock.ParseDate(date)
		if err != nil {
			return nil, ErrInvalidDate
		}
		target = d
	}

	period, err := s.Resolve(ctx, semesterID, target)
	if err != nil {
		return nil, err
	}
	return &dto.PeriodInfoResponse{
		SemesterID:   period.SemesterID,
		PeriodNumber: period.PeriodNumber,
		PeriodType:   string(period.PeriodType),
		PeriodStart:  clock.FormatDate(period.StartDate),
		PeriodEnd:    clock.FormatDate(period.EndDate),
		DisplayName:  DisplayName(period),
		Estimated:    period.Estimated,
	}, nil
}

func (s *periodService) ListPeriods(ctx context.Context, semesterID string) (*dto.PeriodListResponse, error) {
	semester, err := s.loadSemester(ctx, semesterID)
	if err != nil {
		return nil, err
	}

	// 解析今天（可能触发物化），用于标记 is_current
	current, err := s.resolve(ctx, semester, s.clock.Today())
	if err != nil {
		return nil, err
	}

	periods, err := s.repo.Period.ListBySemester(ctx, semester.ID, false)
	if err != nil {
		s.logger.Error("查询周期列表失败", zap.String("semester_id", semester.ID), zap.Error(err))
		return nil, err
	}

	resp := &dto.PeriodListResponse{
		SemesterID:        semester.ID,
		CurrentPeriodType: string(semester.CurrentPeriodType),
		Periods:           make([]dto.PeriodItem, 0, len(periods)),
	}
	if !current.Estimated {
		n := current.PeriodNumber
		resp.CurrentPeriodNumber = &n
	}
	for i := range periods {
		p := &periods[i]
		resp.Periods = append(resp.Periods, dto.PeriodItem{
			PeriodNumber: p.PeriodNumber,
			PeriodType:   string(p.PeriodType),
			TypeLabel:    p.PeriodType.Label(),
			StartDate:    clock.FormatDate(p.StartDate),
			EndDate:      clock.FormatDate(p.EndDate),
			DisplayName:  DisplayName(p),
			IsActive:     p.IsActive,
			IsCurrent:    resp.CurrentPeriodNumber != nil && p.PeriodNumber == *resp.CurrentPeriodNumber,
			CreatedBy:    p.CreatedBy,
		})
	}
	return resp, nil
}

func (s *periodService) ConfigHistory(ctx context.Context, semesterID string) ([]dto.PeriodTypeChangeResponse, error) {
	semester, err := s.loadSemester(ctx, semesterID)
	if err != nil {
		return nil, err
	}

	changes, err := s.repo.PeriodHistory.ListBySemester(ctx, semester.ID)
	if err != nil {
		s.logger.Error("查询周期变更记录失败", zap.String("semester_id", semester.ID), zap.Error(err))
		return nil, err
	}

	result := make([]dto.PeriodTypeChangeResponse, 0, len(changes))
	for _, c := range changes {
		result = append(result, dto.PeriodTypeChangeResponse{
			ID:                  c.ID,
			OldType:             string(c.OldType),
			NewType:             string(c.NewType),
			EffectiveFromPeriod: c.EffectiveFromPeriod,
			EffectiveFromDate:   clock.FormatDate(c.EffectiveFromDate),
			ChangedAt:           c.ChangedAt.In(s.clock.Location()).Format("2006-01-02 15:04:05"),
			ChangedBy:           c.ChangedBy,
			Reason:              c.Reason,
		})
	}
	return result, nil
}

// ── 辅助 ──

// DisplayName 周期显示名称，如 "第3周期 (双周)"
func DisplayName(p *model.Period) string {
	return fmt.Sprintf("第%d周期 (%s)", p.PeriodNumber+1, p.PeriodType.Label())
}

// loadSemester semesterID 为空时取活动学期
func (s *periodService) loadSemester(ctx context.Context, semesterID string) (*model.SemesterConfig, error) {
	var (
		semester *model.SemesterConfig
		err      error
	)
	if semesterID == "" {
		semester, err = s.repo.Semester.GetActive(ctx)
	} else {
		semester, err = s.repo.Semester.GetByID(ctx, semesterID)
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSemesterNotFound
		}
		s.logger.Error("查询学期失败", zap.String("semester_id", semesterID), zap.Error(err))
		return nil, err
	}
	return semester, nil
}
