package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/xxxkjing/ClassComp-Score/config"
	"github.com/xxxkjing/ClassComp-Score/internal/dto"
	"github.com/xxxkjing/ClassComp-Score/internal/model"
	"github.com/xxxkjing/ClassComp-Score/internal/repository"
	"github.com/xxxkjing/ClassComp-Score/pkg/clock"
)

// SemesterService 学期配置业务接口
type SemesterService interface {
	Create(ctx context.Context, req *dto.CreateSemesterRequest, callerID string) (*dto.SemesterResponse, error)
	GetByID(ctx context.Context, id string) (*dto.SemesterResponse, error)
	GetActive(ctx context.Context) (*dto.SemesterResponse, error)
	List(ctx context.Context) ([]dto.SemesterResponse, error)
	Activate(ctx context.Context, id string, callerID string) error
}

type semesterService struct {
	cfg    *config.PeriodConfig
	repo   *repository.Repository
	clock  clock.Clock
	logger *zap.Logger
}

// NewSemesterService 创建 SemesterService 实例
func NewSemesterService(cfg *config.PeriodConfig, repo *repository.Repository, clk clock.Clock, logger *zap.Logger) SemesterService {
	return &semesterService{cfg: cfg, repo: repo, clock: clk, logger: logger}
}

// ────────────────────── Create ──────────────────────

func (s *semesterService) Create(ctx context.Context, req *dto.CreateSemesterRequest, callerID string) (*dto.SemesterResponse, error) {
	startDate, err := clock.ParseDate(req.StartDate)
	if err != nil {
		return nil, ErrSemesterDateInvalid
	}
	firstEnd, err := clock.ParseDate(req.FirstPeriodEndDate)
	if err != nil {
		return nil, ErrSemesterDateInvalid
	}
	if firstEnd.Before(startDate) {
		return nil, ErrSemesterDateInvalid
	}

	var endDate *time.Time
	if req.EndDate != nil && *req.EndDate != "" {
		d, err := clock.ParseDate(*req.EndDate)
		if err != nil || d.Before(firstEnd) {
			return nil, ErrSemesterDateInvalid
		}
		endDate = &d
	}

	typeStr := req.DefaultPeriodType
	if typeStr == "" {
		typeStr = s.cfg.DefaultType
	}
	periodType, ok := model.ParsePeriodType(typeStr)
	if !ok {
		return nil, ErrInvalidPeriodType
	}

	semester := &model.SemesterConfig{
		Name:               req.Name,
		StartDate:          startDate,
		EndDate:            endDate,
		FirstPeriodEndDate: firstEnd,
		DefaultPeriodType:  periodType,
		CurrentPeriodType:  periodType,
		IsActive:           req.Activate,
	}
	semester.CreatedBy = &callerID
	semester.UpdatedBy = &callerID

	// 创建并激活时需先清除其他活动学期
	err = s.repo.InTx(ctx, func(tx *repository.Repository) error {
		if req.Activate {
			if err := tx.Semester.ClearActive(ctx); err != nil {
				return err
			}
		}
		return tx.Semester.Create(ctx, semester)
	})
	if err != nil {
		s.logger.Error("创建学期失败", zap.Error(err))
		return nil, err
	}

	s.logger.Info("学期已创建",
		zap.String("semester_id", semester.ID),
		zap.String("period_type", string(periodType)),
		zap.Bool("active", semester.IsActive),
	)
	return toSemesterResponse(semester), nil
}

// ────────────────────── GetByID ──────────────────────

func (s *semesterService) GetByID(ctx context.Context, id string) (*dto.SemesterResponse, error) {
	semester, err := s.repo.Semester.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSemesterNotFound
		}
		s.logger.Error("查询学期失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return toSemesterResponse(semester), nil
}

// ────────────────────── GetActive ──────────────────────

func (s *semesterService) GetActive(ctx context.Context) (*dto.SemesterResponse, error) {
	semester, err := s.repo.Semester.GetActive(ctx)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSemesterNotFound
		}
		s.logger.Error("查询活动学期失败", zap.Error(err))
		return nil, err
	}
	return toSemesterResponse(semester), nil
}

// ────────────────────── List ──────────────────────

func (s *semesterService) List(ctx context.Context) ([]dto.SemesterResponse, error) {
	semesters, err := s.repo.Semester.List(ctx)
	if err != nil {
		s.logger.Error("查询学期列表失败", zap.Error(err))
		return nil, err
	}

	result := make([]dto.SemesterResponse, 0, len(semesters))
	for i := range semesters {
		result = append(result, *toSemesterResponse(&semesters[i]))
	}
	return result, nil
}

// ────────────────────── Activate ──────────────────────

// Activate 激活指定学期，同一时刻只有一个活动学期
func (s *semesterService) Activate(ctx context.Context, id string, callerID string) error {
	// ClearActive + MarkActive 需原子执行；只改写激活相关列
	err := s.repo.InTx(ctx, func(tx *repository.Repository) error {
		if _, err := tx.Semester.GetByIDForUpdate(ctx, id); err != nil {
			return err
		}
		if err := tx.Semester.ClearActive(ctx); err != nil {
			return err
		}
		return tx.Semester.MarkActive(ctx, id, callerID, s.clock.Now())
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSemesterNotFound
		}
		s.logger.Error("激活学期失败", zap.String("id", id), zap.Error(err))
		return err
	}
	return nil
}

// ── 辅助 ──

func toSemesterResponse(s *model.SemesterConfig) *dto.SemesterResponse {
	resp := &dto.SemesterResponse{
		ID:                 s.ID,
		Name:               s.Name,
		StartDate:          clock.FormatDate(s.StartDate),
		FirstPeriodEndDate: clock.FormatDate(s.FirstPeriodEndDate),
		DefaultPeriodType:  string(s.DefaultPeriodType),
		CurrentPeriodType:  string(s.CurrentPeriodType),
		CurrentPeriodLabel: s.CurrentPeriodType.Label(),
		IsActive:           s.IsActive,
		CreatedAt:          s.CreatedAt.Format(time.RFC3339),
		UpdatedAt:          s.UpdatedAt.Format(time.RFC3339),
	}
	if s.EndDate != nil {
		resp.EndDate = clock.FormatDate(*s.EndDate)
	}
	return resp
}
