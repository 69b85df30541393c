package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/xxxkjing/ClassComp-Score/internal/dto"
	"github.com/xxxkjing/ClassComp-Score/internal/model"
	"github.com/xxxkjing/ClassComp-Score/internal/repository"
	"github.com/xxxkjing/ClassComp-Score/pkg/clock"
	pkgerrors "github.com/xxxkjing/ClassComp-Score/pkg/errors"
)

// ── 连续性问题类型 ──

const (
	IssueNumbering       = "numbering"
	IssuePeriod0Mismatch = "period0_mismatch"
	IssueBadLength       = "bad_length"
	IssueGap             = "gap"
	IssueOverlap         = "overlap"
)

// ────────────────────── SetPeriodActive ──────────────────────

// SetPeriodActive 软停用/恢复周期，日期范围不变
func (s *periodService) SetPeriodActive(ctx context.Context, semesterID string, number int, active bool, actor string) error {
	semester, err := s.loadSemester(ctx, semesterID)
	if err != nil {
		return err
	}

	if err := s.repo.Period.SetActive(ctx, semester.ID, number, active); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPeriodNotFound
		}
		s.logger.Error("修改周期状态失败", zap.String("semester_id", semester.ID), zap.Int("period_number", number), zap.Error(err))
		return err
	}

	s.logger.Info("周期状态已修改",
		zap.String("semester_id", semester.ID),
		zap.Int("period_number", number),
		zap.Bool("is_active", active),
		zap.String("actor", actor),
	)
	return nil
}

// ────────────────────── ResetPeriods ──────────────────────

// ResetPeriods 删除学期全部已物化周期，变更记录保留
func (s *periodService) ResetPeriods(ctx context.Context, semesterID, actor string) (*dto.ResetPeriodsResponse, error) {
	semester, err := s.loadSemester(ctx, semesterID)
	if err != nil {
		return nil, err
	}

	unlock := s.lock(ctx, semester.ID)
	defer unlock()

	deleted, err := s.repo.Period.DeleteBySemester(ctx, semester.ID)
	if err != nil {
		s.logger.Error("清空周期失败", zap.String("semester_id", semester.ID), zap.Error(err))
		return nil, err
	}

	s.logger.Warn("学期周期已清空",
		zap.String("semester_id", semester.ID),
		zap.Int64("deleted", deleted),
		zap.String("actor", actor),
	)
	return &dto.ResetPeriodsResponse{SemesterID: semester.ID, Deleted: deleted}, nil
}

// ────────────────────── BackfillLegacy ──────────────────────

// BackfillLegacy 按旧版 14 天算法连续写入周期，直到覆盖 through。
// 已有周期必须与旧版算法一致；整个回填在一个事务内完成。
func (s *periodService) BackfillLegacy(ctx context.Context, semesterID string, through time.Time) (*dto.BackfillResponse, error) {
	semester, err := s.loadSemester(ctx, semesterID)
	if err != nil {
		return nil, err
	}
	through = clock.Normalize(through)

	unlock := s.lock(ctx, semester.ID)
	defer unlock()

	resp := &dto.BackfillResponse{SemesterID: semester.ID}

	err = s.repo.InTx(ctx, func(tx *repository.Repository) error {
		existing, err := tx.Period.ListBySemester(ctx, semester.ID, true)
		if err != nil {
			return err
		}
		for i := range existing {
			p := &existing[i]
			est := CalculateLegacy(p.StartDate, semester.StartDate, semester.FirstPeriodEndDate)
			if est.PeriodNumber != p.PeriodNumber ||
				!est.StartDate.Equal(clock.Normalize(p.StartDate)) ||
				!est.EndDate.Equal(clock.Normalize(p.EndDate)) {
				return fmt.Errorf("%w: 第 %d 周期 %s ~ %s", ErrLegacyMisaligned,
					p.PeriodNumber, clock.FormatDate(p.StartDate), clock.FormatDate(p.EndDate))
			}
		}

		var last *model.Period
		if len(existing) > 0 {
			last = &existing[len(existing)-1]
		}

		for i := 0; last == nil || clock.Normalize(last.EndDate).Before(through); i++ {
			if i >= s.maxIterations {
				return fmt.Errorf("%w: 回填至 %s 超过 %d 个周期", ErrPeriodResolution, clock.FormatDate(through), s.maxIterations)
			}

			next := legacyNextPeriod(semester, last, s.clock.Now())
			if err := tx.Period.Insert(ctx, next); err != nil {
				if errors.Is(err, pkgerrors.ErrDuplicatePeriod) {
					return fmt.Errorf("%w: 第 %d 周期", ErrConcurrentMaterialization, next.PeriodNumber)
				}
				return err
			}

			if resp.FirstPeriod == nil {
				n := next.PeriodNumber
				resp.FirstPeriod = &n
			}
			n := next.PeriodNumber
			resp.LastPeriod = &n
			resp.Created++
			last = next
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrLegacyMisaligned) {
			s.logger.Error("回填旧版周期失败", zap.String("semester_id", semester.ID), zap.Error(err))
		}
		return nil, err
	}

	for i := 0; i < resp.Created; i++ {
		s.metrics.IncMaterialized()
	}
	s.logger.Info("旧版周期回填完成",
		zap.String("semester_id", semester.ID),
		zap.Int("created", resp.Created),
		zap.String("through", clock.FormatDate(through)),
	)
	return resp, nil
}

func legacyNextPeriod(semester *model.SemesterConfig, last *model.Period, now time.Time) *model.Period {
	p := &model.Period{
		SemesterID: semester.ID,
		PeriodType: model.PeriodTypeBiweekly,
		IsActive:   true,
		CreatedAt:  now,
		CreatedBy:  model.CreatedByLegacyBackfill,
	}
	if last == nil {
		p.PeriodNumber = 0
		p.StartDate = clock.Normalize(semester.StartDate)
		p.EndDate = clock.Normalize(semester.FirstPeriodEndDate)
		return p
	}
	p.PeriodNumber = last.PeriodNumber + 1
	p.StartDate = clock.AddDays(clock.Normalize(last.EndDate), 1)
	p.EndDate = clock.AddDays(p.StartDate, legacyPeriodDays-1)
	return p
}

// ────────────────────── VerifyContinuity ──────────────────────

// VerifyContinuity 检查编号连续、第 0 周期边界、周期长度以及首尾相接（含已停用周期）
func (s *periodService) VerifyContinuity(ctx context.Context, semesterID string) (*dto.ContinuityReport, error) {
	semester, err := s.loadSemester(ctx, semesterID)
	if err != nil {
		return nil, err
	}

	periods, err := s.repo.Period.ListBySemester(ctx, semester.ID, true)
	if err != nil {
		s.logger.Error("查询周期列表失败", zap.String("semester_id", semester.ID), zap.Error(err))
		return nil, err
	}

	report := &dto.ContinuityReport{
		SemesterID:  semester.ID,
		PeriodCount: len(periods),
		Issues:      checkContinuity(semester, periods),
	}
	report.OK = len(report.Issues) == 0
	if !report.OK {
		s.logger.Warn("周期连续性校验未通过",
			zap.String("semester_id", semester.ID),
			zap.Int("issues", len(report.Issues)),
		)
	}
	return report, nil
}

// checkContinuity periods 需按 period_number 升序
func checkContinuity(semester *model.SemesterConfig, periods []model.Period) []dto.ContinuityIssue {
	issues := make([]dto.ContinuityIssue, 0)
	start := clock.Normalize(semester.StartDate)
	firstEnd := clock.Normalize(semester.FirstPeriodEndDate)

	for i := range periods {
		p := &periods[i]
		pStart, pEnd := clock.Normalize(p.StartDate), clock.Normalize(p.EndDate)

		if p.PeriodNumber != i {
			issues = append(issues, dto.ContinuityIssue{
				PeriodNumber: p.PeriodNumber,
				Kind:         IssueNumbering,
				Detail:       fmt.Sprintf("期望编号 %d", i),
			})
		}

		if p.PeriodNumber == 0 {
			if !pStart.Equal(start) || !pEnd.Equal(firstEnd) {
				issues = append(issues, dto.ContinuityIssue{
					PeriodNumber: 0,
					Kind:         IssuePeriod0Mismatch,
					Detail: fmt.Sprintf("第 0 周期为 %s ~ %s，学期配置为 %s ~ %s",
						clock.FormatDate(pStart), clock.FormatDate(pEnd), clock.FormatDate(start), clock.FormatDate(firstEnd)),
				})
			}
		} else if days := p.Days(); days != p.PeriodType.Days() {
			issues = append(issues, dto.ContinuityIssue{
				PeriodNumber: p.PeriodNumber,
				Kind:         IssueBadLength,
				Detail:       fmt.Sprintf("%s 周期长度为 %d 天", p.PeriodType, days),
			})
		}

		if i == 0 {
			continue
		}
		expected := clock.AddDays(clock.Normalize(periods[i-1].EndDate), 1)
		switch {
		case pStart.After(expected):
			issues = append(issues, dto.ContinuityIssue{
				PeriodNumber: p.PeriodNumber,
				Kind:         IssueGap,
				Detail:       fmt.Sprintf("期望开始于 %s，实际 %s", clock.FormatDate(expected), clock.FormatDate(pStart)),
			})
		case pStart.Before(expected):
			issues = append(issues, dto.ContinuityIssue{
				PeriodNumber: p.PeriodNumber,
				Kind:         IssueOverlap,
				Detail:       fmt.Sprintf("期望开始于 %s，实际 %s", clock.FormatDate(expected), clock.FormatDate(pStart)),
			})
		}
	}
	return issues
}
