package service

import (
	"time"

	"github.com/xxxkjing/ClassComp-Score/internal/model"
	"github.com/xxxkjing/ClassComp-Score/pkg/clock"
)

// legacyPeriodDays 旧版固定周期长度
const legacyPeriodDays = 14

// PeriodEstimate 无状态计算的周期估算（不落库）
type PeriodEstimate struct {
	PeriodNumber int
	StartDate    time.Time
	EndDate      time.Time
}

// CalculateLegacy 旧版固定 14 天周期算法
//
// 第 0 周期为 [semesterStart, firstPeriodEnd]；其后每 14 天一个周期。
// 早于学期开始的日期归入第 0 周期。
func CalculateLegacy(target, semesterStart, firstPeriodEnd time.Time) PeriodEstimate {
	target = clock.Normalize(target)
	semesterStart = clock.Normalize(semesterStart)
	firstPeriodEnd = clock.Normalize(firstPeriodEnd)

	daysAfter := clock.DaysBetween(firstPeriodEnd, target)
	if daysAfter <= 0 {
		return PeriodEstimate{
			PeriodNumber: 0,
			StartDate:    semesterStart,
			EndDate:      firstPeriodEnd,
		}
	}

	index := (daysAfter - 1) / legacyPeriodDays
	start := clock.AddDays(firstPeriodEnd, 1+index*legacyPeriodDays)
	return PeriodEstimate{
		PeriodNumber: index + 1,
		StartDate:    start,
		EndDate:      clock.AddDays(start, legacyPeriodDays-1),
	}
}

// LegacyDefaultBounds 无学期配置时的默认边界：当年 1 月 1 日起，第一周期 14 天
func LegacyDefaultBounds(today time.Time) (start, firstPeriodEnd time.Time) {
	start = clock.Date(today.Year(), time.January, 1)
	return start, clock.AddDays(start, legacyPeriodDays-1)
}

// Period 转换为未持久化的周期（Estimated=true，类型固定为双周）
func (e PeriodEstimate) Period(semesterID string) *model.Period {
	return &model.Period{
		SemesterID:   semesterID,
		PeriodNumber: e.PeriodNumber,
		PeriodType:   model.PeriodTypeBiweekly,
		StartDate:    e.StartDate,
		EndDate:      e.EndDate,
		IsActive:     true,
		Estimated:    true,
	}
}
