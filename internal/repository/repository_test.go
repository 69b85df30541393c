package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/xxxkjing/ClassComp-Score/internal/model"
	pkgerrors "github.com/xxxkjing/ClassComp-Score/pkg/errors"
)

// ═══════════════════════════════════════════════════════════
// Test Setup（内存 SQLite）
// ═══════════════════════════════════════════════════════════

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?_pragma=foreign_keys(1)"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("打开内存数据库失败: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("获取 sql.DB 失败: %v", err)
	}
	// 内存库按连接隔离，固定单连接
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := db.AutoMigrate(model.MigrateModels...); err != nil {
		t.Fatalf("AutoMigrate 失败: %v", err)
	}
	return db
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func createSemester(t *testing.T, repo *Repository) *model.SemesterConfig {
	t.Helper()
	s := &model.SemesterConfig{
		Name:               "2025 秋季学期",
		StartDate:          day(2025, 9, 1),
		FirstPeriodEndDate: day(2025, 9, 14),
		DefaultPeriodType:  model.PeriodTypeBiweekly,
		CurrentPeriodType:  model.PeriodTypeBiweekly,
		IsActive:           true,
	}
	if err := repo.Semester.Create(context.Background(), s); err != nil {
		t.Fatalf("创建学期失败: %v", err)
	}
	return s
}

func insertPeriod(t *testing.T, repo *Repository, semesterID string, n int, start, end time.Time) *model.Period {
	t.Helper()
	p := &model.Period{
		SemesterID:   semesterID,
		PeriodNumber: n,
		PeriodType:   model.PeriodTypeBiweekly,
		StartDate:    start,
		EndDate:      end,
		IsActive:     true,
		CreatedBy:    model.CreatedBySystem,
	}
	if err := repo.Period.Insert(context.Background(), p); err != nil {
		t.Fatalf("写入周期 %d 失败: %v", n, err)
	}
	return p
}

// ═══════════════════════════════════════════════════════════
// Semester
// ═══════════════════════════════════════════════════════════

func TestSemesterRepo_CreateAndGetActive(t *testing.T) {
	repo := NewRepository(newTestDB(t))
	ctx := context.Background()
	s := createSemester(t, repo)

	if s.ID == "" {
		t.Fatal("期望 BeforeCreate 生成 ID")
	}

	active, err := repo.Semester.GetActive(ctx)
	if err != nil {
		t.Fatalf("GetActive 失败: %v", err)
	}
	if active.ID != s.ID {
		t.Errorf("期望活动学期 %s，实际 %s", s.ID, active.ID)
	}
	if !active.StartDate.Equal(day(2025, 9, 1)) {
		t.Errorf("start_date 读回不一致: %v", active.StartDate)
	}
}

func TestSemesterRepo_GetActive_None(t *testing.T) {
	repo := NewRepository(newTestDB(t))

	_, err := repo.Semester.GetActive(context.Background())
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("期望 ErrRecordNotFound，实际 %v", err)
	}
}

func TestSemesterRepo_UpdateCurrentPeriodType(t *testing.T) {
	repo := NewRepository(newTestDB(t))
	ctx := context.Background()
	s := createSemester(t, repo)

	if err := repo.Semester.UpdateCurrentPeriodType(ctx, s.ID, model.PeriodTypeWeekly, "admin"); err != nil {
		t.Fatalf("更新失败: %v", err)
	}
	got, _ := repo.Semester.GetByID(ctx, s.ID)
	if got.CurrentPeriodType != model.PeriodTypeWeekly {
		t.Errorf("期望 weekly，实际 %s", got.CurrentPeriodType)
	}
	if got.DefaultPeriodType != model.PeriodTypeBiweekly {
		t.Error("default_period_type 不应被修改")
	}

	err := repo.Semester.UpdateCurrentPeriodType(ctx, "missing", model.PeriodTypeWeekly, "admin")
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Errorf("不存在的学期应返回 ErrRecordNotFound，实际 %v", err)
	}
}

func TestSemesterRepo_MarkActive_KeepsCurrentType(t *testing.T) {
	repo := NewRepository(newTestDB(t))
	ctx := context.Background()
	s := createSemester(t, repo)

	// 调用方持有的旧快照仍为 biweekly
	stale, _ := repo.Semester.GetByID(ctx, s.ID)
	if err := repo.Semester.UpdateCurrentPeriodType(ctx, s.ID, model.PeriodTypeWeekly, "admin"); err != nil {
		t.Fatalf("更新失败: %v", err)
	}
	if err := repo.Semester.ClearActive(ctx); err != nil {
		t.Fatalf("ClearActive 失败: %v", err)
	}
	if err := repo.Semester.MarkActive(ctx, stale.ID, "ops", time.Now()); err != nil {
		t.Fatalf("MarkActive 失败: %v", err)
	}

	got, _ := repo.Semester.GetByID(ctx, s.ID)
	if !got.IsActive {
		t.Error("期望学期被激活")
	}
	if got.CurrentPeriodType != model.PeriodTypeWeekly {
		t.Errorf("current_period_type 被覆盖为 %s", got.CurrentPeriodType)
	}
	if got.UpdatedBy == nil || *got.UpdatedBy != "ops" {
		t.Errorf("updated_by 未写入: %v", got.UpdatedBy)
	}

	err := repo.Semester.MarkActive(ctx, "missing", "ops", time.Now())
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Errorf("不存在的学期应返回 ErrRecordNotFound，实际 %v", err)
	}
}

func TestSemesterRepo_GetByIDForUpdate(t *testing.T) {
	repo := NewRepository(newTestDB(t))
	ctx := context.Background()
	s := createSemester(t, repo)

	err := repo.InTx(ctx, func(tx *Repository) error {
		got, err := tx.Semester.GetByIDForUpdate(ctx, s.ID)
		if err != nil {
			return err
		}
		if got.ID != s.ID {
			t.Errorf("期望 %s，实际 %s", s.ID, got.ID)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("事务内读取失败: %v", err)
	}

	_, err = repo.Semester.GetByIDForUpdate(ctx, "missing")
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Errorf("期望 ErrRecordNotFound，实际 %v", err)
	}
}

// ═══════════════════════════════════════════════════════════
// Period
// ═══════════════════════════════════════════════════════════

func TestPeriodRepo_FindContaining(t *testing.T) {
	repo := NewRepository(newTestDB(t))
	ctx := context.Background()
	s := createSemester(t, repo)
	insertPeriod(t, repo, s.ID, 0, day(2025, 9, 1), day(2025, 9, 14))
	insertPeriod(t, repo, s.ID, 1, day(2025, 9, 15), day(2025, 9, 28))

	cases := []struct {
		date time.Time
		want int
	}{
		{day(2025, 9, 1), 0},
		{day(2025, 9, 14), 0},
		{day(2025, 9, 15), 1},
		{day(2025, 9, 28), 1},
	}
	for _, c := range cases {
		p, err := repo.Period.FindContaining(ctx, s.ID, c.date)
		if err != nil {
			t.Fatalf("FindContaining 失败: %v", err)
		}
		if p == nil || p.PeriodNumber != c.want {
			t.Errorf("%s: 期望周期 %d，实际 %+v", c.date.Format("2006-01-02"), c.want, p)
		}
	}

	p, err := repo.Period.FindContaining(ctx, s.ID, day(2025, 9, 29))
	if err != nil || p != nil {
		t.Errorf("超出范围应返回 (nil, nil)，实际 (%v, %v)", p, err)
	}
}

func TestPeriodRepo_FindContaining_SkipsInactive(t *testing.T) {
	repo := NewRepository(newTestDB(t))
	ctx := context.Background()
	s := createSemester(t, repo)
	insertPeriod(t, repo, s.ID, 0, day(2025, 9, 1), day(2025, 9, 14))

	if err := repo.Period.SetActive(ctx, s.ID, 0, false); err != nil {
		t.Fatalf("SetActive 失败: %v", err)
	}
	p, err := repo.Period.FindContaining(ctx, s.ID, day(2025, 9, 3))
	if err != nil || p != nil {
		t.Errorf("停用周期不应被命中，实际 (%v, %v)", p, err)
	}

	all, _ := repo.Period.ListBySemester(ctx, s.ID, true)
	active, _ := repo.Period.ListBySemester(ctx, s.ID, false)
	if len(all) != 1 || len(active) != 0 {
		t.Errorf("期望 all=1 active=0，实际 all=%d active=%d", len(all), len(active))
	}

	covering, err := repo.Period.FindCovering(ctx, s.ID, day(2025, 9, 3))
	if err != nil {
		t.Fatalf("FindCovering 失败: %v", err)
	}
	if covering == nil || covering.PeriodNumber != 0 || covering.IsActive {
		t.Errorf("FindCovering 应命中停用周期 0，实际 %+v", covering)
	}
	miss, err := repo.Period.FindCovering(ctx, s.ID, day(2025, 9, 20))
	if err != nil || miss != nil {
		t.Errorf("超出范围应返回 (nil, nil)，实际 (%v, %v)", miss, err)
	}
}

func TestPeriodRepo_Insert_Duplicate(t *testing.T) {
	repo := NewRepository(newTestDB(t))
	s := createSemester(t, repo)
	insertPeriod(t, repo, s.ID, 0, day(2025, 9, 1), day(2025, 9, 14))

	dup := &model.Period{
		SemesterID:   s.ID,
		PeriodNumber: 0,
		PeriodType:   model.PeriodTypeWeekly,
		StartDate:    day(2025, 9, 1),
		EndDate:      day(2025, 9, 7),
		IsActive:     true,
	}
	err := repo.Period.Insert(context.Background(), dup)
	if !errors.Is(err, pkgerrors.ErrDuplicatePeriod) {
		t.Fatalf("期望 ErrDuplicatePeriod，实际 %v", err)
	}
}

func TestPeriodRepo_MaxAndLast(t *testing.T) {
	repo := NewRepository(newTestDB(t))
	ctx := context.Background()
	s := createSemester(t, repo)

	_, ok, err := repo.Period.GetMaxPeriodNumber(ctx, s.ID)
	if err != nil || ok {
		t.Fatalf("空学期期望 ok=false，实际 ok=%v err=%v", ok, err)
	}
	last, err := repo.Period.GetLast(ctx, s.ID)
	if err != nil || last != nil {
		t.Fatalf("空学期 GetLast 期望 (nil, nil)，实际 (%v, %v)", last, err)
	}

	insertPeriod(t, repo, s.ID, 0, day(2025, 9, 1), day(2025, 9, 14))
	insertPeriod(t, repo, s.ID, 1, day(2025, 9, 15), day(2025, 9, 28))

	max, ok, err := repo.Period.GetMaxPeriodNumber(ctx, s.ID)
	if err != nil || !ok || max != 1 {
		t.Errorf("期望 max=1，实际 max=%d ok=%v err=%v", max, ok, err)
	}
	last, _ = repo.Period.GetLast(ctx, s.ID)
	if last == nil || !last.EndDate.Equal(day(2025, 9, 28)) {
		t.Errorf("GetLast 期望结束于 2025-09-28，实际 %+v", last)
	}
}

func TestPeriodRepo_DeleteBySemester(t *testing.T) {
	repo := NewRepository(newTestDB(t))
	ctx := context.Background()
	s := createSemester(t, repo)
	insertPeriod(t, repo, s.ID, 0, day(2025, 9, 1), day(2025, 9, 14))
	insertPeriod(t, repo, s.ID, 1, day(2025, 9, 15), day(2025, 9, 28))

	n, err := repo.Period.DeleteBySemester(ctx, s.ID)
	if err != nil || n != 2 {
		t.Fatalf("期望删除 2 行，实际 %d (%v)", n, err)
	}
	if _, ok, _ := repo.Period.GetMaxPeriodNumber(ctx, s.ID); ok {
		t.Error("删除后不应再有周期")
	}
}

// ═══════════════════════════════════════════════════════════
// History + Transaction
// ═══════════════════════════════════════════════════════════

func TestPeriodHistoryRepo_NewestFirst(t *testing.T) {
	repo := NewRepository(newTestDB(t))
	ctx := context.Background()
	s := createSemester(t, repo)

	base := time.Date(2025, 10, 1, 8, 0, 0, 0, time.UTC)
	for i, nt := range []model.PeriodType{model.PeriodTypeWeekly, model.PeriodTypeBiweekly} {
		old := model.PeriodTypeBiweekly
		if nt == model.PeriodTypeBiweekly {
			old = model.PeriodTypeWeekly
		}
		err := repo.PeriodHistory.Append(ctx, &model.PeriodTypeChange{
			SemesterID:          s.ID,
			OldType:             old,
			NewType:             nt,
			EffectiveFromPeriod: 3 + i,
			EffectiveFromDate:   day(2025, 10, 20+i),
			ChangedAt:           base.Add(time.Duration(i) * time.Hour),
			ChangedBy:           "admin",
		})
		if err != nil {
			t.Fatalf("Append 失败: %v", err)
		}
	}

	list, err := repo.PeriodHistory.ListBySemester(ctx, s.ID)
	if err != nil {
		t.Fatalf("ListBySemester 失败: %v", err)
	}
	if len(list) != 2 || list[0].NewType != model.PeriodTypeBiweekly {
		t.Errorf("期望最新记录在前，实际 %+v", list)
	}
}

func TestRepository_InTx_Rollback(t *testing.T) {
	repo := NewRepository(newTestDB(t))
	ctx := context.Background()
	s := createSemester(t, repo)

	sentinel := errors.New("boom")
	err := repo.InTx(ctx, func(tx *Repository) error {
		if err := tx.Semester.UpdateCurrentPeriodType(ctx, s.ID, model.PeriodTypeWeekly, "admin"); err != nil {
			return err
		}
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("期望返回 fn 的错误，实际 %v", err)
	}

	got, _ := repo.Semester.GetByID(ctx, s.ID)
	if got.CurrentPeriodType != model.PeriodTypeBiweekly {
		t.Error("回滚后 current_period_type 不应改变")
	}
}

func TestRepository_InTx_Commit(t *testing.T) {
	repo := NewRepository(newTestDB(t))
	ctx := context.Background()
	s := createSemester(t, repo)

	err := repo.InTx(ctx, func(tx *Repository) error {
		return tx.Semester.UpdateCurrentPeriodType(ctx, s.ID, model.PeriodTypeWeekly, "admin")
	})
	if err != nil {
		t.Fatalf("InTx 失败: %v", err)
	}
	got, _ := repo.Semester.GetByID(ctx, s.ID)
	if got.CurrentPeriodType != model.PeriodTypeWeekly {
		t.Error("提交后应为 weekly")
	}
}

func TestRepository_InTx_NilDB(t *testing.T) {
	repo := &Repository{}
	called := false
	err := repo.InTx(context.Background(), func(tx *Repository) error {
		called = tx == repo
		return nil
	})
	if err != nil || !called {
		t.Errorf("无数据库时应直接以自身调用 fn，err=%v called=%v", err, called)
	}
}
