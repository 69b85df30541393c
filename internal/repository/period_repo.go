package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/xxxkjing/ClassComp-Score/internal/model"
	pkgerrors "github.com/xxxkjing/ClassComp-Score/pkg/errors"
)

// PeriodRepository 周期元数据数据访问接口
//
// 日期参数均为 UTC 零点表示的日历日期。
type PeriodRepository interface {
	// FindContaining 查找覆盖 date 的活动周期；不存在时返回 (nil, nil)
	FindContaining(ctx context.Context, semesterID string, date time.Time) (*model.Period, error)
	// FindCovering 同 FindContaining，但包含已停用周期
	FindCovering(ctx context.Context, semesterID string, date time.Time) (*model.Period, error)
	// Insert 写入周期；(semester_id, period_number) 冲突时返回 pkgerrors.ErrDuplicatePeriod
	Insert(ctx context.Context, period *model.Period) error
	// GetMaxPeriodNumber 返回最大周期编号；ok=false 表示尚无周期
	GetMaxPeriodNumber(ctx context.Context, semesterID string) (max int, ok bool, err error)
	// GetLast 返回编号最大的周期（含已停用）；不存在时返回 (nil, nil)
	GetLast(ctx context.Context, semesterID string) (*model.Period, error)
	GetByNumber(ctx context.Context, semesterID string, number int) (*model.Period, error)
	ListBySemester(ctx context.Context, semesterID string, includeInactive bool) ([]model.Period, error)
	SetActive(ctx context.Context, semesterID string, number int, active bool) error
	DeleteBySemester(ctx context.Context, semesterID string) (int64, error)
}

type periodRepo struct {
	db *gorm.DB
}

// NewPeriodRepo 创建 PeriodRepository 实例
func NewPeriodRepo(db *gorm.DB) PeriodRepository {
	return &periodRepo{db: db}
}

func (r *periodRepo) FindContaining(ctx context.Context, semesterID string, date time.Time) (*model.Period, error) {
	return r.findCovering(ctx, semesterID, date, false)
}

func (r *periodRepo) FindCovering(ctx context.Context, semesterID string, date time.Time) (*model.Period, error) {
	return r.findCovering(ctx, semesterID, date, true)
}

func (r *periodRepo) findCovering(ctx context.Context, semesterID string, date time.Time, includeInactive bool) (*model.Period, error) {
	q := r.db.WithContext(ctx).Where("semester_id = ?", semesterID)
	if !includeInactive {
		q = q.Where("is_active = ?", true)
	}
	var period model.Period
	err := q.
		Where("start_date <= ? AND end_date >= ?", date, date).
		Order("period_number ASC").
		First(&period).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &period, nil
}

func (r *periodRepo) Insert(ctx context.Context, period *model.Period) error {
	err := r.db.WithContext(ctx).Create(period).Error
	if pkgerrors.IsUniqueViolation(err) {
		return pkgerrors.ErrDuplicatePeriod
	}
	return err
}

func (r *periodRepo) GetMaxPeriodNumber(ctx context.Context, semesterID string) (int, bool, error) {
	var max sql.NullInt64
	err := r.db.WithContext(ctx).
		Model(&model.Period{}).
		Where("semester_id = ?", semesterID).
		Select("MAX(period_number)").
		Scan(&max).Error
	if err != nil {
		return 0, false, err
	}
	if !max.Valid {
		return 0, false, nil
	}
	return int(max.Int64), true, nil
}

func (r *periodRepo) GetLast(ctx context.Context, semesterID string) (*model.Period, error) {
	var period model.Period
	err := r.db.WithContext(ctx).
		Where("semester_id = ?", semesterID).
		Order("period_number DESC").
		First(&period).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &period, nil
}

func (r *periodRepo) GetByNumber(ctx context.Context, semesterID string, number int) (*model.Period, error) {
	var period model.Period
	err := r.db.WithContext(ctx).
		Where("semester_id = ? AND period_number = ?", semesterID, number).
		First(&period).Error
	if err != nil {
		return nil, err
	}
	return &period, nil
}

func (r *periodRepo) ListBySemester(ctx context.Context, semesterID string, includeInactive bool) ([]model.Period, error) {
	var periods []model.Period
	q := r.db.WithContext(ctx).Where("semester_id = ?", semesterID)
	if !includeInactive {
		q = q.Where("is_active = ?", true)
	}
	err := q.Order("period_number ASC").Find(&periods).Error
	return periods, err
}

// SetActive 仅修改 is_active，周期日期保持不变
func (r *periodRepo) SetActive(ctx context.Context, semesterID string, number int, active bool) error {
	res := r.db.WithContext(ctx).
		Model(&model.Period{}).
		Where("semester_id = ? AND period_number = ?", semesterID, number).
		Update("is_active", active)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteBySemester 管理员回滚：删除学期的全部周期，返回删除行数
func (r *periodRepo) DeleteBySemester(ctx context.Context, semesterID string) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("semester_id = ?", semesterID).
		Delete(&model.Period{})
	return res.RowsAffected, res.Error
}
