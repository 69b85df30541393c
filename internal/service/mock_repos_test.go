package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/xxxkjing/ClassComp-Score/internal/model"
	"github.com/xxxkjing/ClassComp-Score/internal/repository"
	pkgerrors "github.com/xxxkjing/ClassComp-Score/pkg/errors"
)

// ── Mock SemesterRepository ──

type mockSemesterRepo struct {
	mu        sync.Mutex
	semesters map[string]*model.SemesterConfig
	updates   int

	// beforeLockedRead 在下一次 GetByIDForUpdate 前执行一次，用于模拟并发变更
	beforeLockedRead func()
}

func newMockSemesterRepo() *mockSemesterRepo {
	return &mockSemesterRepo{semesters: make(map[string]*model.SemesterConfig)}
}

func (m *mockSemesterRepo) Create(_ context.Context, semester *model.SemesterConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if semester.ID == "" {
		semester.ID = "sem-" + semester.Name
	}
	cp := *semester
	m.semesters[semester.ID] = &cp
	return nil
}

func (m *mockSemesterRepo) GetByID(_ context.Context, id string) (*model.SemesterConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.semesters[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockSemesterRepo) GetActive(_ context.Context) (*model.SemesterConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.semesters {
		if s.IsActive {
			cp := *s
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockSemesterRepo) List(_ context.Context) ([]model.SemesterConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.SemesterConfig
	for _, s := range m.semesters {
		result = append(result, *s)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StartDate.After(result[j].StartDate) })
	return result, nil
}

func (m *mockSemesterRepo) GetByIDForUpdate(ctx context.Context, id string) (*model.SemesterConfig, error) {
	if hook := m.beforeLockedRead; hook != nil {
		m.beforeLockedRead = nil
		hook()
	}
	return m.GetByID(ctx, id)
}

func (m *mockSemesterRepo) MarkActive(_ context.Context, id string, updatedBy string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.semesters[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	s.IsActive = true
	s.UpdatedBy = &updatedBy
	s.UpdatedAt = at
	m.updates++
	return nil
}

func (m *mockSemesterRepo) UpdateCurrentPeriodType(_ context.Context, id string, periodType model.PeriodType, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.semesters[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	s.CurrentPeriodType = periodType
	m.updates++
	return nil
}

func (m *mockSemesterRepo) ClearActive(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.semesters {
		s.IsActive = false
	}
	return nil
}

// ── Mock PeriodRepository ──

type mockPeriodRepo struct {
	mu      sync.Mutex
	periods map[string][]model.Period // semesterID → 按编号升序
	inserts int

	// beforeInsert 在下一次 Insert 前执行一次，用于模拟并发写入者
	beforeInsert func(p *model.Period)
}

func newMockPeriodRepo() *mockPeriodRepo {
	return &mockPeriodRepo{periods: make(map[string][]model.Period)}
}

// put 直接写入（不计入 inserts，不检查唯一性）
func (m *mockPeriodRepo) put(p model.Period) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := append(m.periods[p.SemesterID], p)
	sort.Slice(list, func(i, j int) bool { return list[i].PeriodNumber < list[j].PeriodNumber })
	m.periods[p.SemesterID] = list
}

func (m *mockPeriodRepo) FindContaining(_ context.Context, semesterID string, date time.Time) (*model.Period, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.periods[semesterID] {
		if p.IsActive && p.Contains(date) {
			cp := p
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockPeriodRepo) FindCovering(_ context.Context, semesterID string, date time.Time) (*model.Period, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.periods[semesterID] {
		if p.Contains(date) {
			cp := p
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockPeriodRepo) Insert(_ context.Context, period *model.Period) error {
	if hook := m.beforeInsert; hook != nil {
		m.beforeInsert = nil
		hook(period)
	}

	m.mu.Lock()
	for _, p := range m.periods[period.SemesterID] {
		if p.PeriodNumber == period.PeriodNumber {
			m.mu.Unlock()
			return pkgerrors.ErrDuplicatePeriod
		}
	}
	if period.ID == "" {
		period.ID = fmt.Sprintf("period-%s-%d", period.SemesterID, period.PeriodNumber)
	}
	m.inserts++
	m.mu.Unlock()

	m.put(*period)
	return nil
}

func (m *mockPeriodRepo) GetMaxPeriodNumber(_ context.Context, semesterID string) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.periods[semesterID]
	if len(list) == 0 {
		return 0, false, nil
	}
	return list[len(list)-1].PeriodNumber, true, nil
}

func (m *mockPeriodRepo) GetLast(_ context.Context, semesterID string) (*model.Period, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.periods[semesterID]
	if len(list) == 0 {
		return nil, nil
	}
	cp := list[len(list)-1]
	return &cp, nil
}

func (m *mockPeriodRepo) GetByNumber(_ context.Context, semesterID string, number int) (*model.Period, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.periods[semesterID] {
		if p.PeriodNumber == number {
			cp := p
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockPeriodRepo) ListBySemester(_ context.Context, semesterID string, includeInactive bool) ([]model.Period, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.Period
	for _, p := range m.periods[semesterID] {
		if includeInactive || p.IsActive {
			result = append(result, p)
		}
	}
	return result, nil
}

func (m *mockPeriodRepo) SetActive(_ context.Context, semesterID string, number int, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.periods[semesterID]
	for i := range list {
		if list[i].PeriodNumber == number {
			list[i].IsActive = active
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (m *mockPeriodRepo) DeleteBySemester(_ context.Context, semesterID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := int64(len(m.periods[semesterID]))
	delete(m.periods, semesterID)
	return n, nil
}

// ── Mock PeriodHistoryRepository ──

type mockPeriodHistoryRepo struct {
	mu      sync.Mutex
	changes []model.PeriodTypeChange
}

func newMockPeriodHistoryRepo() *mockPeriodHistoryRepo {
	return &mockPeriodHistoryRepo{}
}

func (m *mockPeriodHistoryRepo) Append(_ context.Context, change *model.PeriodTypeChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if change.ID == "" {
		change.ID = "change-" + change.ChangedAt.Format(time.RFC3339Nano)
	}
	m.changes = append(m.changes, *change)
	return nil
}

func (m *mockPeriodHistoryRepo) ListBySemester(_ context.Context, semesterID string) ([]model.PeriodTypeChange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.PeriodTypeChange
	for _, c := range m.changes {
		if c.SemesterID == semesterID {
			result = append(result, c)
		}
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].ChangedAt.After(result[j].ChangedAt) })
	return result, nil
}

// ── 聚合 ──

type mockRepos struct {
	semester *mockSemesterRepo
	period   *mockPeriodRepo
	history  *mockPeriodHistoryRepo
}

// newMockRepository 未绑定数据库，InTx 直接执行回调
func newMockRepository() (*repository.Repository, *mockRepos) {
	m := &mockRepos{
		semester: newMockSemesterRepo(),
		period:   newMockPeriodRepo(),
		history:  newMockPeriodHistoryRepo(),
	}
	return &repository.Repository{
		Semester:      m.semester,
		Period:        m.period,
		PeriodHistory: m.history,
	}, m
}
