package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	ics "github.com/arran4/golang-ical"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/xxxkjing/ClassComp-Score/internal/model"
	"github.com/xxxkjing/ClassComp-Score/internal/repository"
	"github.com/xxxkjing/ClassComp-Score/pkg/clock"
)

// ── 导出模块业务错误 ──

var (
	ErrExportNoPeriods    = errors.New("该学期暂无已物化的周期")
	ErrExportGenerateFail = errors.New("生成导出文件失败")
)

// ExportService 周期台账导出
//
//   - Excel：Sheet "周期"（全部周期，含已停用）+ Sheet "变更记录"
//   - ICS：每个活动周期一个全天事件，供日历订阅
//
// 两者都只读取已物化数据，不触发物化。
type ExportService interface {
	ExportPeriods(ctx context.Context, semesterID string) (*bytes.Buffer, string, error)
	PeriodCalendar(ctx context.Context, semesterID string) ([]byte, string, error)
}

type exportService struct {
	repo   *repository.Repository
	clock  clock.Clock
	logger *zap.Logger
}

// NewExportService 创建 ExportService 实例
func NewExportService(repo *repository.Repository, clk clock.Clock, logger *zap.Logger) ExportService {
	return &exportService{repo: repo, clock: clk, logger: logger}
}

const (
	sheetPeriods = "周期"
	sheetHistory = "变更记录"
)

// ═══════════════════════════════════════════════════════════
// ExportPeriods：Excel 台账
// ═══════════════════════════════════════════════════════════

func (s *exportService) ExportPeriods(ctx context.Context, semesterID string) (*bytes.Buffer, string, error) {
	semester, err := s.loadSemester(ctx, semesterID)
	if err != nil {
		return nil, "", err
	}

	periods, err := s.repo.Period.ListBySemester(ctx, semester.ID, true)
	if err != nil {
		s.logger.Error("查询周期失败", zap.Error(err))
		return nil, "", err
	}
	if len(periods) == 0 {
		return nil, "", ErrExportNoPeriods
	}

	history, err := s.repo.PeriodHistory.ListBySemester(ctx, semester.ID)
	if err != nil {
		s.logger.Error("查询变更记录失败", zap.Error(err))
		return nil, "", err
	}

	f := excelize.NewFile()
	defer f.Close()

	idx, _ := f.NewSheet(sheetPeriods)
	f.SetActiveSheet(idx)
	f.NewSheet(sheetHistory)
	// 删除默认 Sheet1
	f.DeleteSheet("Sheet1")

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	// ── Sheet 周期 ──
	f.SetSheetRow(sheetPeriods, "A1", &[]interface{}{"周期", "编号", "类型", "开始日期", "结束日期", "天数", "状态", "创建者"})
	f.SetCellStyle(sheetPeriods, "A1", "H1", headerStyle)
	f.SetColWidth(sheetPeriods, "A", "A", 18)
	f.SetColWidth(sheetPeriods, "D", "E", 14)

	for i := range periods {
		p := &periods[i]
		status := "启用"
		if !p.IsActive {
			status = "停用"
		}
		row := []interface{}{
			DisplayName(p),
			p.PeriodNumber,
			p.PeriodType.Label(),
			clock.FormatDate(p.StartDate),
			clock.FormatDate(p.EndDate),
			p.Days(),
			status,
			p.CreatedBy,
		}
		f.SetSheetRow(sheetPeriods, cell("A", i+2), &row)
	}

	// ── Sheet 变更记录 ──
	f.SetSheetRow(sheetHistory, "A1", &[]interface{}{"变更时间", "原类型", "新类型", "生效周期", "生效日期", "操作人", "原因"})
	f.SetCellStyle(sheetHistory, "A1", "G1", headerStyle)
	f.SetColWidth(sheetHistory, "A", "A", 20)

	for i, c := range history {
		reason := ""
		if c.Reason != nil {
			reason = *c.Reason
		}
		row := []interface{}{
			c.ChangedAt.In(s.clock.Location()).Format("2006-01-02 15:04:05"),
			c.OldType.Label(),
			c.NewType.Label(),
			c.EffectiveFromPeriod + 1,
			clock.FormatDate(c.EffectiveFromDate),
			c.ChangedBy,
			reason,
		}
		f.SetSheetRow(sheetHistory, cell("A", i+2), &row)
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	filename := fmt.Sprintf("评分周期_%s.xlsx", semester.Name)
	return buf, filename, nil
}

// ═══════════════════════════════════════════════════════════
// PeriodCalendar：ICS 日历
// ═══════════════════════════════════════════════════════════

func (s *exportService) PeriodCalendar(ctx context.Context, semesterID string) ([]byte, string, error) {
	semester, err := s.loadSemester(ctx, semesterID)
	if err != nil {
		return nil, "", err
	}

	periods, err := s.repo.Period.ListBySemester(ctx, semester.ID, false)
	if err != nil {
		s.logger.Error("查询周期失败", zap.Error(err))
		return nil, "", err
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//ClassComp//Scoring Periods//ZH")
	cal.SetXWRCalName(fmt.Sprintf("%s 评分周期", semester.Name))
	cal.SetXWRTimezone(s.clock.Location().String())

	stamp := s.clock.Now().UTC()
	for i := range periods {
		p := &periods[i]
		evt := cal.AddEvent(fmt.Sprintf("period-%s-%d@classcomp", semester.ID, p.PeriodNumber))
		evt.SetDtStampTime(stamp)
		evt.SetSummary(DisplayName(p))
		evt.SetDescription(fmt.Sprintf("%s ~ %s，%d 天", clock.FormatDate(p.StartDate), clock.FormatDate(p.EndDate), p.Days()))
		evt.SetAllDayStartAt(p.StartDate)
		// DTEND 为开区间
		evt.SetAllDayEndAt(clock.AddDays(p.EndDate, 1))
	}

	filename := fmt.Sprintf("periods_%s.ics", semester.ID)
	return []byte(cal.Serialize()), filename, nil
}

// ── 辅助 ──

func (s *exportService) loadSemester(ctx context.Context, semesterID string) (*model.SemesterConfig, error) {
	var (
		semester *model.SemesterConfig
		err      error
	)
	if semesterID == "" {
		semester, err = s.repo.Semester.GetActive(ctx)
	} else {
		semester, err = s.repo.Semester.GetByID(ctx, semesterID)
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSemesterNotFound
		}
		s.logger.Error("查询学期失败", zap.Error(err))
		return nil, err
	}
	return semester, nil
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
