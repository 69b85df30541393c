package model

import (
	"time"

	"gorm.io/gorm"
)

// SemesterConfig 学期配置表：对应 semester_config
// current_period_type 只能通过周期类型变更流程修改
type SemesterConfig struct {
	ID                 string     `gorm:"type:varchar(36);primaryKey"                   json:"id"`
	Name               string     `gorm:"type:varchar(255);not null"                    json:"name"`
	StartDate          time.Time  `gorm:"type:date;not null"                            json:"start_date"`
	EndDate            *time.Time `gorm:"type:date"                                     json:"end_date,omitempty"`
	FirstPeriodEndDate time.Time  `gorm:"type:date;not null"                            json:"first_period_end_date"`
	DefaultPeriodType  PeriodType `gorm:"type:varchar(20);not null;default:'biweekly'" json:"default_period_type"`
	CurrentPeriodType  PeriodType `gorm:"type:varchar(20);not null;default:'biweekly'" json:"current_period_type"`
	IsActive           bool       `gorm:"not null;default:false"                        json:"is_active"`
	BaseModel
}

// TableName 指定表名
func (SemesterConfig) TableName() string { return "semester_config" }

// BeforeCreate 生成主键
func (s *SemesterConfig) BeforeCreate(_ *gorm.DB) error {
	if s.ID == "" {
		s.ID = newID()
	}
	return nil
}
