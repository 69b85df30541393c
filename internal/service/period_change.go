package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/xxxkjing/ClassComp-Score/internal/model"
	"github.com/xxxkjing/ClassComp-Score/internal/repository"
	"github.com/xxxkjing/ClassComp-Score/pkg/clock"
)

// ChangePeriodTypeInput 周期类型变更参数
type ChangePeriodTypeInput struct {
	SemesterID    string // 为空时使用活动学期
	NewType       string
	EffectiveDate string // YYYY-MM-DD
	Actor         string
	Reason        *string
}

// ChangeResult 周期类型变更结果；失败时 Err 为对应的业务错误
type ChangeResult struct {
	Success             bool
	Message             string
	EffectiveFromPeriod *int
	Err                 error
}

func changeFailed(err error, msg string) *ChangeResult {
	if msg == "" {
		msg = err.Error()
	}
	return &ChangeResult{Success: false, Message: msg, Err: err}
}

// ═══════════════════════════════════════════════════════════
// ChangePeriodType：前瞻式变更
// ═══════════════════════════════════════════════════════════
//
// 校验顺序：类型 → 日期格式 → 生效日期晚于今天 → 学期存在 → 非空变更。
// 任一校验失败时不写库。成功时在同一事务内更新 current_period_type
// 并追加变更记录；已物化的周期不做任何修改。

func (s *periodService) ChangePeriodType(ctx context.Context, in ChangePeriodTypeInput) *ChangeResult {
	newType, ok := model.ParsePeriodType(in.NewType)
	if !ok {
		return changeFailed(ErrInvalidPeriodType, "")
	}

	effectiveDate, err := clock.ParseDate(in.EffectiveDate)
	if err != nil {
		return changeFailed(ErrInvalidEffectiveDate, "")
	}
	if !effectiveDate.After(s.clock.Today()) {
		return changeFailed(ErrEffectiveDateNotInFuture, "")
	}

	semester, err := s.loadSemester(ctx, in.SemesterID)
	if err != nil {
		if errors.Is(err, ErrSemesterNotFound) {
			return changeFailed(ErrSemesterNotFound, "")
		}
		return changeFailed(err, fmt.Sprintf("变更失败: %v", err))
	}

	if semester.CurrentPeriodType == newType {
		return changeFailed(ErrNoOpChange, noOpMessage(newType))
	}

	// 事务内锁定学期行后重新校验，旧类型与生效周期以锁内读取为准
	var (
		oldType         model.PeriodType
		effectivePeriod int
	)
	err = s.repo.InTx(ctx, func(tx *repository.Repository) error {
		locked, err := tx.Semester.GetByIDForUpdate(ctx, semester.ID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSemesterNotFound
			}
			return err
		}
		oldType = locked.CurrentPeriodType
		if oldType == newType {
			return ErrNoOpChange
		}

		// 生效周期：已物化（含已停用）则取其编号，否则为下一个将被物化的编号
		effectivePeriod, err = prospectivePeriodNumber(ctx, tx, semester.ID, effectiveDate)
		if err != nil {
			return fmt.Errorf("计算生效周期失败: %w", err)
		}

		if err := tx.Semester.UpdateCurrentPeriodType(ctx, semester.ID, newType, in.Actor); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSemesterNotFound
			}
			return err
		}
		return tx.PeriodHistory.Append(ctx, &model.PeriodTypeChange{
			SemesterID:          semester.ID,
			OldType:             oldType,
			NewType:             newType,
			EffectiveFromPeriod: effectivePeriod,
			EffectiveFromDate:   effectiveDate,
			ChangedAt:           s.clock.Now().UTC(),
			ChangedBy:           in.Actor,
			Reason:              in.Reason,
		})
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrSemesterNotFound):
			return changeFailed(ErrSemesterNotFound, "")
		case errors.Is(err, ErrNoOpChange):
			return changeFailed(ErrNoOpChange, noOpMessage(newType))
		}
		s.logger.Error("周期类型变更失败",
			zap.String("semester_id", semester.ID),
			zap.String("new_type", string(newType)),
			zap.Error(err),
		)
		return changeFailed(err, fmt.Sprintf("变更失败: %v", err))
	}

	s.metrics.IncTypeChange()
	s.logger.Info("周期类型已变更",
		zap.String("semester_id", semester.ID),
		zap.String("old_type", string(oldType)),
		zap.String("new_type", string(newType)),
		zap.Int("effective_from_period", effectivePeriod),
		zap.String("effective_from_date", clock.FormatDate(effectiveDate)),
		zap.String("actor", in.Actor),
	)

	return &ChangeResult{
		Success: true,
		Message: fmt.Sprintf("周期类型已变更为 %s，将从第 %d 周期（%s）开始生效",
			typeLabelWithDays(newType), effectivePeriod+1, clock.FormatDate(effectiveDate)),
		EffectiveFromPeriod: &effectivePeriod,
	}
}

// prospectivePeriodNumber 不触发物化
func prospectivePeriodNumber(ctx context.Context, repo *repository.Repository, semesterID string, date time.Time) (int, error) {
	period, err := repo.Period.FindCovering(ctx, semesterID, date)
	if err != nil {
		return 0, err
	}
	if period != nil {
		return period.PeriodNumber, nil
	}

	max, ok, err := repo.Period.GetMaxPeriodNumber(ctx, semesterID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return max + 1, nil
}

func noOpMessage(t model.PeriodType) string {
	return fmt.Sprintf("当前周期类型已经是 %s，无需变更", t)
}

func typeLabelWithDays(t model.PeriodType) string {
	return fmt.Sprintf("%s (%d天)", t.Label(), t.Days())
}
