//go:build integration

package repository_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/xxxkjing/ClassComp-Score/internal/model"
	"github.com/xxxkjing/ClassComp-Score/internal/repository"
	"github.com/xxxkjing/ClassComp-Score/pkg/database"
	pkgerrors "github.com/xxxkjing/ClassComp-Score/pkg/errors"
)

// ═══════════════════════════════════════════════════════════
// Test Setup（PostgreSQL，需要 TEST_DATABASE_DSN）
// ═══════════════════════════════════════════════════════════

var testDB *gorm.DB

func TestMain(m *testing.M) {
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		dsn = "host=localhost port=5433 user=classcomp password=classcomp_password dbname=classcomp_test sslmode=disable TimeZone=Asia/Shanghai"
	}

	var err error
	testDB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "无法连接测试数据库: %v\n", err)
		os.Exit(1)
	}

	sqlDB, err := testDB.DB()
	if err != nil {
		fmt.Fprintf(os.Stderr, "获取 sql.DB 失败: %v\n", err)
		os.Exit(1)
	}
	if err := database.RunMigrations(sqlDB, zap.NewNop()); err != nil {
		fmt.Fprintf(os.Stderr, "迁移失败: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()
	os.Exit(code)
}

// setupSemester 创建测试学期并返回清理函数
func setupSemester(t *testing.T) (*model.SemesterConfig, func()) {
	t.Helper()
	ctx := context.Background()

	semester := &model.SemesterConfig{
		Name:               fmt.Sprintf("测试学期-%d", time.Now().UnixNano()),
		StartDate:          time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
		FirstPeriodEndDate: time.Date(2025, 9, 14, 0, 0, 0, 0, time.UTC),
		DefaultPeriodType:  model.PeriodTypeBiweekly,
		CurrentPeriodType:  model.PeriodTypeBiweekly,
	}
	if err := testDB.WithContext(ctx).Create(semester).Error; err != nil {
		t.Fatalf("创建学期失败: %v", err)
	}

	cleanup := func() {
		testDB.Where("semester_id = ?", semester.ID).Delete(&model.Period{})
		testDB.Where("semester_id = ?", semester.ID).Delete(&model.PeriodTypeChange{})
		testDB.Where("id = ?", semester.ID).Delete(&model.SemesterConfig{})
	}
	return semester, cleanup
}

// ═══════════════════════════════════════════════════════════
// Test: 唯一约束
// ═══════════════════════════════════════════════════════════

func TestPeriodInsert_UniqueConstraint(t *testing.T) {
	semester, cleanup := setupSemester(t)
	defer cleanup()

	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	// 并发写入同一编号，只能有一个成功
	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = repo.Period.Insert(ctx, &model.Period{
				SemesterID:   semester.ID,
				PeriodNumber: 0,
				PeriodType:   model.PeriodTypeBiweekly,
				StartDate:    semester.StartDate,
				EndDate:      semester.FirstPeriodEndDate,
				IsActive:     true,
				CreatedBy:    model.CreatedBySystem,
			})
		}(i)
	}
	wg.Wait()

	ok, dup := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, pkgerrors.ErrDuplicatePeriod):
			dup++
		default:
			t.Errorf("意外错误: %v", err)
		}
	}
	if ok != 1 || dup != len(errs)-1 {
		t.Errorf("期望 1 成功 %d 冲突，实际 %d 成功 %d 冲突", len(errs)-1, ok, dup)
	}
}

// ═══════════════════════════════════════════════════════════
// Test: 事务
// ═══════════════════════════════════════════════════════════

func TestTransaction_Rollback(t *testing.T) {
	semester, cleanup := setupSemester(t)
	defer cleanup()

	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	err := repo.InTx(ctx, func(tx *repository.Repository) error {
		if err := tx.Semester.UpdateCurrentPeriodType(ctx, semester.ID, model.PeriodTypeWeekly, "admin"); err != nil {
			return err
		}
		return tx.PeriodHistory.Append(ctx, &model.PeriodTypeChange{
			SemesterID: semester.ID,
			OldType:    model.PeriodTypeBiweekly,
			NewType:    "monthly", // 违反 CHECK 约束
			ChangedAt:  time.Now(),
		})
	})
	if err == nil {
		t.Fatal("期望 CHECK 约束导致失败")
	}

	got, err := repo.Semester.GetByID(ctx, semester.ID)
	if err != nil {
		t.Fatalf("查询学期失败: %v", err)
	}
	if got.CurrentPeriodType != model.PeriodTypeBiweekly {
		t.Error("回滚后 current_period_type 不应改变")
	}
}

func TestTransaction_Commit(t *testing.T) {
	semester, cleanup := setupSemester(t)
	defer cleanup()

	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	err := repo.InTx(ctx, func(tx *repository.Repository) error {
		if err := tx.Semester.UpdateCurrentPeriodType(ctx, semester.ID, model.PeriodTypeWeekly, "admin"); err != nil {
			return err
		}
		return tx.PeriodHistory.Append(ctx, &model.PeriodTypeChange{
			SemesterID:          semester.ID,
			OldType:             model.PeriodTypeBiweekly,
			NewType:             model.PeriodTypeWeekly,
			EffectiveFromPeriod: 2,
			EffectiveFromDate:   time.Date(2025, 10, 13, 0, 0, 0, 0, time.UTC),
			ChangedAt:           time.Now(),
			ChangedBy:           "admin",
		})
	})
	if err != nil {
		t.Fatalf("InTx 失败: %v", err)
	}

	history, err := repo.PeriodHistory.ListBySemester(ctx, semester.ID)
	if err != nil || len(history) != 1 {
		t.Fatalf("期望 1 条变更记录，实际 %d (%v)", len(history), err)
	}
}
