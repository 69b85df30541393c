package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/xxxkjing/ClassComp-Score/internal/model"
)

// PeriodHistoryRepository 周期类型变更记录（只追加）
type PeriodHistoryRepository interface {
	Append(ctx context.Context, change *model.PeriodTypeChange) error
	// ListBySemester 按变更时间倒序
	ListBySemester(ctx context.Context, semesterID string) ([]model.PeriodTypeChange, error)
}

type periodHistoryRepo struct {
	db *gorm.DB
}

// NewPeriodHistoryRepo 创建 PeriodHistoryRepository 实例
func NewPeriodHistoryRepo(db *gorm.DB) PeriodHistoryRepository {
	return &periodHistoryRepo{db: db}
}

func (r *periodHistoryRepo) Append(ctx context.Context, change *model.PeriodTypeChange) error {
	return r.db.WithContext(ctx).Create(change).Error
}

func (r *periodHistoryRepo) ListBySemester(ctx context.Context, semesterID string) ([]model.PeriodTypeChange, error) {
	var changes []model.PeriodTypeChange
	err := r.db.WithContext(ctx).
		Where("semester_id = ?", semesterID).
		Order("changed_at DESC").
		Order("id DESC").
		Find(&changes).Error
	return changes, err
}
