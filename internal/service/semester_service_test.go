package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/xxxkjing/ClassComp-Score/config"
	"github.com/xxxkjing/ClassComp-Score/internal/dto"
	"github.com/xxxkjing/ClassComp-Score/internal/model"
	"github.com/xxxkjing/ClassComp-Score/pkg/clock"
)

// ── 测试辅助 ──

func setupTestSemesterService() (SemesterService, *mockRepos) {
	repo, repos := newMockRepository()
	clk := clock.NewFixed(time.Date(2025, 8, 20, 9, 0, 0, 0, cst), cst)
	svc := NewSemesterService(&config.PeriodConfig{DefaultType: "biweekly"}, repo, clk, zap.NewNop())
	return svc, repos
}

func strPtr(s string) *string { return &s }

// ── Create 测试 ──

func TestSemesterService_Create_Success(t *testing.T) {
	svc, _ := setupTestSemesterService()

	req := &dto.CreateSemesterRequest{
		Name:               "2025-2026学年第一学期",
		StartDate:          "2025-09-01",
		EndDate:            strPtr("2026-01-16"),
		FirstPeriodEndDate: "2025-09-14",
	}

	result, err := svc.Create(context.Background(), req, "admin")
	if err != nil {
		t.Fatalf("Create 应成功: %v", err)
	}
	if result.DefaultPeriodType != "biweekly" || result.CurrentPeriodType != "biweekly" {
		t.Errorf("期望默认类型 biweekly，实际 %+v", result)
	}
	if result.CurrentPeriodLabel != "双周" {
		t.Errorf("期望标签 双周，实际 %s", result.CurrentPeriodLabel)
	}
	if result.IsActive {
		t.Error("未指定 activate 时不应激活")
	}
	if result.EndDate != "2026-01-16" {
		t.Errorf("期望 end_date=2026-01-16，实际 %s", result.EndDate)
	}
}

func TestSemesterService_Create_WeeklyAndActivate(t *testing.T) {
	svc, repos := setupTestSemesterService()
	ctx := context.Background()

	_, _ = svc.Create(ctx, &dto.CreateSemesterRequest{
		Name: "旧学期", StartDate: "2025-02-20", FirstPeriodEndDate: "2025-03-02", Activate: true,
	}, "admin")

	result, err := svc.Create(ctx, &dto.CreateSemesterRequest{
		Name:               "新学期",
		StartDate:          "2025-09-01",
		FirstPeriodEndDate: "2025-09-07",
		DefaultPeriodType:  "weekly",
		Activate:           true,
	}, "admin")
	if err != nil {
		t.Fatalf("Create 应成功: %v", err)
	}
	if result.CurrentPeriodType != "weekly" || !result.IsActive {
		t.Errorf("期望 weekly 且激活，实际 %+v", result)
	}

	active, _ := repos.semester.GetActive(ctx)
	if active.ID != result.ID {
		t.Error("新学期应成为唯一活动学期")
	}
}

func TestSemesterService_Create_InvalidDates(t *testing.T) {
	svc, _ := setupTestSemesterService()

	cases := []*dto.CreateSemesterRequest{
		{Name: "第一周期早于开始", StartDate: "2025-09-10", FirstPeriodEndDate: "2025-09-01"},
		{Name: "格式错误", StartDate: "2025/09/01", FirstPeriodEndDate: "2025-09-14"},
		{Name: "结束早于第一周期", StartDate: "2025-09-01", FirstPeriodEndDate: "2025-09-14", EndDate: strPtr("2025-09-10")},
	}
	for _, req := range cases {
		if _, err := svc.Create(context.Background(), req, "admin"); !errors.Is(err, ErrSemesterDateInvalid) {
			t.Errorf("%s: 期望 ErrSemesterDateInvalid，实际 %v", req.Name, err)
		}
	}
}

// ── 查询 / 激活 ──

func TestSemesterService_GetActive_None(t *testing.T) {
	svc, _ := setupTestSemesterService()

	if _, err := svc.GetActive(context.Background()); !errors.Is(err, ErrSemesterNotFound) {
		t.Errorf("期望 ErrSemesterNotFound，实际 %v", err)
	}
}

func TestSemesterService_GetByID_NotFound(t *testing.T) {
	svc, _ := setupTestSemesterService()

	if _, err := svc.GetByID(context.Background(), "missing"); !errors.Is(err, ErrSemesterNotFound) {
		t.Errorf("期望 ErrSemesterNotFound，实际 %v", err)
	}
}

func TestSemesterService_Activate(t *testing.T) {
	svc, _ := setupTestSemesterService()
	ctx := context.Background()

	a, _ := svc.Create(ctx, &dto.CreateSemesterRequest{Name: "学期A", StartDate: "2025-02-20", FirstPeriodEndDate: "2025-03-02", Activate: true}, "admin")
	b, _ := svc.Create(ctx, &dto.CreateSemesterRequest{Name: "学期B", StartDate: "2025-09-01", FirstPeriodEndDate: "2025-09-14"}, "admin")

	if err := svc.Activate(ctx, b.ID, "admin"); err != nil {
		t.Fatalf("Activate 失败: %v", err)
	}

	list, _ := svc.List(ctx)
	activeCount := 0
	for _, s := range list {
		if s.IsActive {
			activeCount++
			if s.ID != b.ID {
				t.Errorf("期望活动学期为 %s，实际 %s", b.ID, s.ID)
			}
		}
	}
	if activeCount != 1 {
		t.Errorf("期望恰好 1 个活动学期，实际 %d", activeCount)
	}
	_ = a

	if err := svc.Activate(ctx, "missing", "admin"); !errors.Is(err, ErrSemesterNotFound) {
		t.Errorf("期望 ErrSemesterNotFound，实际 %v", err)
	}
}

func TestSemesterService_Activate_PreservesCurrentPeriodType(t *testing.T) {
	svc, repos := setupTestSemesterService()
	ctx := context.Background()

	b, _ := svc.Create(ctx, &dto.CreateSemesterRequest{Name: "学期B", StartDate: "2025-09-01", FirstPeriodEndDate: "2025-09-14"}, "admin")

	// 激活过程中周期类型被并发改为 weekly
	repos.semester.beforeLockedRead = func() {
		_ = repos.semester.UpdateCurrentPeriodType(ctx, b.ID, model.PeriodTypeWeekly, "other")
	}
	if err := svc.Activate(ctx, b.ID, "ops"); err != nil {
		t.Fatalf("Activate 失败: %v", err)
	}

	got, err := svc.GetByID(ctx, b.ID)
	if err != nil {
		t.Fatalf("GetByID 失败: %v", err)
	}
	if !got.IsActive {
		t.Error("期望学期被激活")
	}
	if got.CurrentPeriodType != string(model.PeriodTypeWeekly) {
		t.Errorf("激活不应回写 current_period_type，实际 %s", got.CurrentPeriodType)
	}
}
