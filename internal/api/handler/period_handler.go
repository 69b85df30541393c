package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/xxxkjing/ClassComp-Score/internal/dto"
	"github.com/xxxkjing/ClassComp-Score/internal/service"
	"github.com/xxxkjing/ClassComp-Score/pkg/response"
)

// PeriodHandler 评分周期模块 HTTP 处理器
type PeriodHandler struct {
	periodSvc service.PeriodService
}

// NewPeriodHandler 创建 PeriodHandler
func NewPeriodHandler(periodSvc service.PeriodService) *PeriodHandler {
	return &PeriodHandler{periodSvc: periodSvc}
}

// GetPeriodInfo 查询日期所属周期（必要时物化）
// GET /api/v1/periods/info?date=2025-10-20&semester_id=xxx
func (h *PeriodHandler) GetPeriodInfo(c *gin.Context) {
	var q dto.PeriodInfoQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	info, err := h.periodSvc.GetPeriodInfo(c.Request.Context(), q.SemesterID, q.Date)
	if err != nil {
		h.handlePeriodError(c, err)
		return
	}
	response.OK(c, info)
}

// ListPeriods 学期已物化周期
// GET /api/v1/periods?semester_id=xxx
func (h *PeriodHandler) ListPeriods(c *gin.Context) {
	list, err := h.periodSvc.ListPeriods(c.Request.Context(), c.Query("semester_id"))
	if err != nil {
		h.handlePeriodError(c, err)
		return
	}
	response.OK(c, list)
}

// ConfigHistory 周期类型变更记录（最新在前）
// GET /api/v1/periods/history?semester_id=xxx
func (h *PeriodHandler) ConfigHistory(c *gin.Context) {
	history, err := h.periodSvc.ConfigHistory(c.Request.Context(), c.Query("semester_id"))
	if err != nil {
		h.handlePeriodError(c, err)
		return
	}
	response.OK(c, history)
}

// ChangePeriodType 变更后续周期的类型
// POST /api/v1/periods/change-type
// 成功与失败均返回 {success, message, effective_period_number}
func (h *PeriodHandler) ChangePeriodType(c *gin.Context) {
	var req dto.ChangePeriodTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	result := h.periodSvc.ChangePeriodType(c.Request.Context(), service.ChangePeriodTypeInput{
		SemesterID:    req.SemesterID,
		NewType:       req.NewType,
		EffectiveDate: req.EffectiveDate,
		Actor:         actor,
		Reason:        req.Reason,
	})

	body := dto.ChangePeriodTypeResponse{
		Success:               result.Success,
		Message:               result.Message,
		EffectivePeriodNumber: result.EffectiveFromPeriod,
	}
	if result.Success {
		response.OK(c, body)
		return
	}

	status, code := changeErrorCode(result.Err)
	response.ErrorWithData(c, status, code, result.Message, body)
}

// changeErrorCode 周期类型变更失败时的 HTTP 状态码与业务码
func changeErrorCode(err error) (int, int) {
	switch {
	case errors.Is(err, service.ErrInvalidPeriodType):
		return http.StatusBadRequest, 17001
	case errors.Is(err, service.ErrInvalidEffectiveDate):
		return http.StatusBadRequest, 17002
	case errors.Is(err, service.ErrEffectiveDateNotInFuture):
		return http.StatusBadRequest, 17003
	case errors.Is(err, service.ErrNoOpChange):
		return http.StatusBadRequest, 17004
	case errors.Is(err, service.ErrSemesterNotFound):
		return http.StatusNotFound, 14001
	default:
		return http.StatusInternalServerError, 50000
	}
}

// SetPeriodActive 启用/停用周期
// PUT /api/v1/periods/:number/active
func (h *PeriodHandler) SetPeriodActive(c *gin.Context) {
	number, err := strconv.Atoi(c.Param("number"))
	if err != nil || number < 0 {
		response.BadRequest(c, 10001, "周期编号无效")
		return
	}

	var req dto.SetPeriodActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	if err := h.periodSvc.SetPeriodActive(c.Request.Context(), req.SemesterID, number, *req.IsActive, actor); err != nil {
		h.handlePeriodError(c, err)
		return
	}
	response.OK(c, nil)
}

// ResetPeriods 清空学期全部已物化周期（需 confirm=true）
// POST /api/v1/periods/reset
func (h *PeriodHandler) ResetPeriods(c *gin.Context) {
	var req dto.ResetPeriodsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}
	if !req.Confirm {
		response.BadRequest(c, 17009, "清空周期需确认 confirm=true")
		return
	}

	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	result, err := h.periodSvc.ResetPeriods(c.Request.Context(), req.SemesterID, actor)
	if err != nil {
		h.handlePeriodError(c, err)
		return
	}
	response.OK(c, result)
}

// VerifyContinuity 校验周期连续性
// GET /api/v1/periods/verify?semester_id=xxx
func (h *PeriodHandler) VerifyContinuity(c *gin.Context) {
	report, err := h.periodSvc.VerifyContinuity(c.Request.Context(), c.Query("semester_id"))
	if err != nil {
		h.handlePeriodError(c, err)
		return
	}
	response.OK(c, report)
}

// handlePeriodError 统一处理周期模块业务错误
func (h *PeriodHandler) handlePeriodError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrSemesterNotFound):
		response.NotFound(c, 14001, "学期不存在")
	case errors.Is(err, service.ErrInvalidDate):
		response.BadRequest(c, 17006, "日期格式无效，应为 YYYY-MM-DD")
	case errors.Is(err, service.ErrPeriodNotFound):
		response.NotFound(c, 17005, "周期不存在")
	case errors.Is(err, service.ErrConcurrentMaterialization):
		response.Conflict(c, 17007, "周期正在被并发物化，请重试")
	case errors.Is(err, service.ErrLegacyMisaligned):
		response.Conflict(c, 17008, "已有周期与旧版周期不一致")
	default:
		response.InternalError(c)
	}
}
