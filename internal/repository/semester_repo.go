package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/xxxkjing/ClassComp-Score/internal/model"
)

// SemesterRepository 学期配置数据访问接口
type SemesterRepository interface {
	Create(ctx context.Context, semester *model.SemesterConfig) error
	GetByID(ctx context.Context, id string) (*model.SemesterConfig, error)
	// GetByIDForUpdate 在事务内读取并锁定学期行（SQLite 依赖库级写锁）
	GetByIDForUpdate(ctx context.Context, id string) (*model.SemesterConfig, error)
	GetActive(ctx context.Context) (*model.SemesterConfig, error)
	List(ctx context.Context) ([]model.SemesterConfig, error)
	// MarkActive 只改写 is_active 及审计字段
	MarkActive(ctx context.Context, id string, updatedBy string, at time.Time) error
	UpdateCurrentPeriodType(ctx context.Context, id string, periodType model.PeriodType, updatedBy string) error
	ClearActive(ctx context.Context) error
}

type semesterRepo struct {
	db *gorm.DB
}

// NewSemesterRepo 创建 SemesterRepository 实例
func NewSemesterRepo(db *gorm.DB) SemesterRepository {
	return &semesterRepo{db: db}
}

func (r *semesterRepo) Create(ctx context.Context, semester *model.SemesterConfig) error {
	return r.db.WithContext(ctx).Create(semester).Error
}

func (r *semesterRepo) GetByID(ctx context.Context, id string) (*model.SemesterConfig, error) {
	var semester model.SemesterConfig
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&semester).Error
	if err != nil {
		return nil, err
	}
	return &semester, nil
}

func (r *semesterRepo) GetByIDForUpdate(ctx context.Context, id string) (*model.SemesterConfig, error) {
	q := r.db.WithContext(ctx)
	if r.db.Dialector.Name() != "sqlite" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var semester model.SemesterConfig
	if err := q.Where("id = ?", id).First(&semester).Error; err != nil {
		return nil, err
	}
	return &semester, nil
}

// GetActive 返回当前活动学期；不存在时返回 gorm.ErrRecordNotFound
func (r *semesterRepo) GetActive(ctx context.Context) (*model.SemesterConfig, error) {
	var semester model.SemesterConfig
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("start_date DESC").
		First(&semester).Error
	if err != nil {
		return nil, err
	}
	return &semester, nil
}

func (r *semesterRepo) List(ctx context.Context) ([]model.SemesterConfig, error) {
	var semesters []model.SemesterConfig
	err := r.db.WithContext(ctx).
		Order("start_date DESC").
		Find(&semesters).Error
	return semesters, err
}

func (r *semesterRepo) MarkActive(ctx context.Context, id string, updatedBy string, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&model.SemesterConfig{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_active":  true,
			"updated_by": updatedBy,
			"updated_at": at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpdateCurrentPeriodType 只改写 current_period_type 及审计字段
func (r *semesterRepo) UpdateCurrentPeriodType(ctx context.Context, id string, periodType model.PeriodType, updatedBy string) error {
	res := r.db.WithContext(ctx).
		Model(&model.SemesterConfig{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"current_period_type": periodType,
			"updated_by":          updatedBy,
			"updated_at":          time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ClearActive 将所有学期的 is_active 设为 false
func (r *semesterRepo) ClearActive(ctx context.Context) error {
	return r.db.WithContext(ctx).
		Model(&model.SemesterConfig{}).
		Where("is_active = ?", true).
		Update("is_active", false).Error
}
