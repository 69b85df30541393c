package model

import (
	"time"

	"gorm.io/gorm"
)

// PeriodTypeChange 周期类型变更审计记录：对应 period_config_history（只追加）
type PeriodTypeChange struct {
	ID                  string     `gorm:"type:varchar(36);primaryKey"                      json:"id"`
	SemesterID          string     `gorm:"type:varchar(36);not null;index:idx_period_config_semester,priority:1" json:"semester_id"`
	OldType             PeriodType `gorm:"type:varchar(20);not null"                        json:"old_type"`
	NewType             PeriodType `gorm:"type:varchar(20);not null"                        json:"new_type"`
	EffectiveFromPeriod int        `gorm:"not null"                                         json:"effective_from_period"`
	EffectiveFromDate   time.Time  `gorm:"type:date;not null"                               json:"effective_from_date"`
	ChangedAt           time.Time  `gorm:"not null;index:idx_period_config_semester,priority:2" json:"changed_at"`
	ChangedBy           string     `gorm:"type:varchar(100)"                                json:"changed_by"`
	Reason              *string    `gorm:"type:text"                                        json:"reason,omitempty"`
}

// TableName 指定表名
func (PeriodTypeChange) TableName() string { return "period_config_history" }

// BeforeCreate 生成主键
func (c *PeriodTypeChange) BeforeCreate(_ *gorm.DB) error {
	if c.ID == "" {
		c.ID = newID()
	}
	return nil
}
