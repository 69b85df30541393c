package dto

// ── 学期模块 DTO ──

// CreateSemesterRequest 创建学期请求
type CreateSemesterRequest struct {
	Name               string  `json:"name"                  binding:"required,min=2,max=100"`
	StartDate          string  `json:"start_date"            binding:"required"` // "2025-09-01"
	EndDate            *string `json:"end_date"`                                 // 可选
	FirstPeriodEndDate string  `json:"first_period_end_date" binding:"required"` // "2025-09-14"
	DefaultPeriodType  string  `json:"default_period_type"   binding:"omitempty,oneof=weekly biweekly"`
	Activate           bool    `json:"activate"`
}

// SemesterResponse 学期信息响应
type SemesterResponse struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	StartDate          string `json:"start_date"`
	EndDate            string `json:"end_date,omitempty"`
	FirstPeriodEndDate string `json:"first_period_end_date"`
	DefaultPeriodType  string `json:"default_period_type"`
	CurrentPeriodType  string `json:"current_period_type"`
	CurrentPeriodLabel string `json:"current_period_label"`
	IsActive           bool   `json:"is_active"`
	CreatedAt          string `json:"created_at"`
	UpdatedAt          string `json:"updated_at"`
}
