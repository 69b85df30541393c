package dto

// ── 周期模块 DTO ──

// PeriodInfoQuery GET /periods/info 查询参数
type PeriodInfoQuery struct {
	Date       string `form:"date"`        // 缺省为今天
	SemesterID string `form:"semester_id"` // 缺省为活动学期
}

// PeriodInfoResponse 某日期所属周期
type PeriodInfoResponse struct {
	SemesterID   string `json:"semester_id"`
	PeriodNumber int    `json:"period_number"`
	PeriodType   string `json:"period_type"`
	PeriodStart  string `json:"period_start"`
	PeriodEnd    string `json:"period_end"`
	DisplayName  string `json:"display_name"`
	Estimated    bool   `json:"estimated"` // true 表示无状态估算结果，未持久化
}

// PeriodItem 周期列表项
type PeriodItem struct {
	PeriodNumber int    `json:"period_number"`
	PeriodType   string `json:"period_type"`
	TypeLabel    string `json:"type_label"`
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date"`
	DisplayName  string `json:"display_name"`
	IsActive     bool   `json:"is_active"`
	IsCurrent    bool   `json:"is_current"`
	CreatedBy    string `json:"created_by"`
}

// PeriodListResponse 学期的已物化周期
type PeriodListResponse struct {
	SemesterID          string       `json:"semester_id"`
	CurrentPeriodType   string       `json:"current_period_type"`
	CurrentPeriodNumber *int         `json:"current_period_number"`
	Periods             []PeriodItem `json:"periods"`
}

// PeriodTypeChangeResponse 变更记录
type PeriodTypeChangeResponse struct {
	ID                  string  `json:"id"`
	OldType             string  `json:"old_type"`
	NewType             string  `json:"new_type"`
	EffectiveFromPeriod int     `json:"effective_from_period"`
	EffectiveFromDate   string  `json:"effective_from_date"`
	ChangedAt           string  `json:"changed_at"`
	ChangedBy           string  `json:"changed_by"`
	Reason              *string `json:"reason,omitempty"`
}

// ChangePeriodTypeRequest 变更周期类型请求
// new_type 的取值由业务层校验，以返回专用错误码
type ChangePeriodTypeRequest struct {
	NewType       string  `json:"new_type"       binding:"required"`
	EffectiveDate string  `json:"effective_date" binding:"required"` // "2025-10-20"
	Reason        *string `json:"reason"         binding:"omitempty,max=500"`
	SemesterID    string  `json:"semester_id"`
}

// ChangePeriodTypeResponse 变更结果（成功与失败同构）
type ChangePeriodTypeResponse struct {
	Success               bool   `json:"success"`
	Message               string `json:"message"`
	EffectivePeriodNumber *int   `json:"effective_period_number"`
}

// SetPeriodActiveRequest 启用/停用周期
type SetPeriodActiveRequest struct {
	IsActive   *bool  `json:"is_active"   binding:"required"`
	SemesterID string `json:"semester_id"`
}

// ResetPeriodsRequest 清空学期周期（管理员回滚）
type ResetPeriodsRequest struct {
	SemesterID string `json:"semester_id"`
	Confirm    bool   `json:"confirm"`
}

// ResetPeriodsResponse 清空结果
type ResetPeriodsResponse struct {
	SemesterID string `json:"semester_id"`
	Deleted    int64  `json:"deleted"`
}

// BackfillResponse 历史数据回填结果
type BackfillResponse struct {
	SemesterID  string `json:"semester_id"`
	Created     int    `json:"created"`
	FirstPeriod *int   `json:"first_period,omitempty"`
	LastPeriod  *int   `json:"last_period,omitempty"`
}

// ContinuityIssue 周期连续性问题
type ContinuityIssue struct {
	PeriodNumber int    `json:"period_number"`
	Kind         string `json:"kind"` // gap | overlap | period0_mismatch | bad_length | numbering
	Detail       string `json:"detail"`
}

// ContinuityReport 连续性校验报告
type ContinuityReport struct {
	SemesterID  string            `json:"semester_id"`
	PeriodCount int               `json:"period_count"`
	OK          bool              `json:"ok"`
	Issues      []ContinuityIssue `json:"issues"`
}
