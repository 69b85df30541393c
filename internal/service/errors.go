package service

import "errors"

// ── 学期模块业务错误 ──

var (
	ErrSemesterNotFound    = errors.New("学期不存在")
	ErrSemesterDateInvalid = errors.New("学期日期无效：第一周期结束日期不能早于开始日期")
)

// ── 周期模块业务错误 ──

var (
	ErrInvalidPeriodType         = errors.New("无效的周期类型，必须是 'weekly' 或 'biweekly'")
	ErrInvalidEffectiveDate      = errors.New("生效日期格式无效，应为 YYYY-MM-DD")
	ErrEffectiveDateNotInFuture  = errors.New("生效日期必须是未来日期")
	ErrNoOpChange                = errors.New("目标周期类型与当前类型相同，无需变更")
	ErrPeriodResolution          = errors.New("周期物化超过迭代上限")
	ErrConcurrentMaterialization = errors.New("周期已被并发请求物化")
	ErrPeriodNotFound            = errors.New("周期不存在")
	ErrInvalidDate               = errors.New("日期格式无效，应为 YYYY-MM-DD")
	ErrLegacyMisaligned          = errors.New("已有周期与旧版 14 天周期不一致，无法回填")
)
