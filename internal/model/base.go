package model

import (
	"time"

	"github.com/google/uuid"
)

// BaseModel 通用审计字段
type BaseModel struct {
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	CreatedBy *string   `gorm:"type:varchar(100)"                  json:"created_by,omitempty"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
	UpdatedBy *string   `gorm:"type:varchar(100)"                  json:"updated_by,omitempty"`
}

// newID 生成主键；在应用侧生成以兼容 SQLite（无 gen_random_uuid）
func newID() string {
	return uuid.NewString()
}

// MigrateModels SQLite 下 AutoMigrate 的模型列表（顺序即建表顺序）
var MigrateModels = []interface{}{
	&SemesterConfig{},
	&Period{},
	&PeriodTypeChange{},
}
