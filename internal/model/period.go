package model

import (
	"time"

	"gorm.io/gorm"
)

// PeriodType 周期类型
type PeriodType string

const (
	PeriodTypeWeekly   PeriodType = "weekly"   // 单周（7天）
	PeriodTypeBiweekly PeriodType = "biweekly" // 双周（14天）
)

// ParsePeriodType 解析周期类型字符串
func ParsePeriodType(s string) (PeriodType, bool) {
	t := PeriodType(s)
	return t, t.Valid()
}

// Valid 是否为受支持的类型
func (t PeriodType) Valid() bool {
	return t == PeriodTypeWeekly || t == PeriodTypeBiweekly
}

// Days 周期天数；未知类型按双周处理
func (t PeriodType) Days() int {
	if t == PeriodTypeWeekly {
		return 7
	}
	return 14
}

// Label 中文标签
func (t PeriodType) Label() string {
	if t == PeriodTypeWeekly {
		return "单周"
	}
	return "双周"
}

// 周期记录的创建者标记
const (
	CreatedBySystem         = "system"
	CreatedByLegacyBackfill = "legacy_backfill"
)

// Period 评分周期元数据：对应 period_metadata
//
// 同一学期内按 period_number 连续排列、首尾相接；写入后日期范围不可变，
// 只有 is_active 可以调整（软停用）。
type Period struct {
	ID           string     `gorm:"type:varchar(36);primaryKey"                                                      json:"id"`
	SemesterID   string     `gorm:"type:varchar(36);not null;uniqueIndex:uk_period_semester_number,priority:1;index:idx_period_metadata_dates,priority:1" json:"semester_id"`
	PeriodNumber int        `gorm:"not null;uniqueIndex:uk_period_semester_number,priority:2"                         json:"period_number"`
	PeriodType   PeriodType `gorm:"type:varchar(20);not null"                                                        json:"period_type"`
	StartDate    time.Time  `gorm:"type:date;not null;index:idx_period_metadata_dates,priority:2"                     json:"start_date"`
	EndDate      time.Time  `gorm:"type:date;not null;index:idx_period_metadata_dates,priority:3"                     json:"end_date"`
	IsActive     bool       `gorm:"not null;default:true"                                                            json:"is_active"`
	CreatedAt    time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP"                                               json:"created_at"`
	CreatedBy    string     `gorm:"type:varchar(100)"                                                                json:"created_by"`

	// Estimated 为 true 表示由无状态计算得出、未持久化
	Estimated bool `gorm:"-" json:"estimated"`
}

// TableName 指定表名
func (Period) TableName() string { return "period_metadata" }

// BeforeCreate 生成主键
func (p *Period) BeforeCreate(_ *gorm.DB) error {
	if p.ID == "" {
		p.ID = newID()
	}
	return nil
}

// Contains 日期是否落在 [StartDate, EndDate] 内
func (p *Period) Contains(d time.Time) bool {
	return !d.Before(p.StartDate) && !d.After(p.EndDate)
}

// Days 周期实际天数（含首尾）
func (p *Period) Days() int {
	return int(p.EndDate.Sub(p.StartDate).Hours()/24) + 1
}
