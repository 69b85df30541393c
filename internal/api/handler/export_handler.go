package handler

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/xxxkjing/ClassComp-Score/internal/service"
	"github.com/xxxkjing/ClassComp-Score/pkg/response"
)

const (
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypeICS  = "text/calendar; charset=utf-8"
)

// ExportHandler 导出模块 HTTP 处理器
type ExportHandler struct {
	exportSvc service.ExportService
}

// NewExportHandler 创建 ExportHandler
func NewExportHandler(exportSvc service.ExportService) *ExportHandler {
	return &ExportHandler{exportSvc: exportSvc}
}

// ExportPeriods 导出周期表与变更记录
// GET /api/v1/periods/export?semester_id=xxx
func (h *ExportHandler) ExportPeriods(c *gin.Context) {
	buf, filename, err := h.exportSvc.ExportPeriods(c.Request.Context(), c.Query("semester_id"))
	if err != nil {
		h.handleExportError(c, err)
		return
	}

	setAttachment(c, filename)
	c.Data(http.StatusOK, contentTypeXLSX, buf.Bytes())
}

// PeriodCalendar 周期日历订阅（iCalendar，全天事件）
// GET /api/v1/periods/calendar.ics?semester_id=xxx
func (h *ExportHandler) PeriodCalendar(c *gin.Context) {
	data, filename, err := h.exportSvc.PeriodCalendar(c.Request.Context(), c.Query("semester_id"))
	if err != nil {
		h.handleExportError(c, err)
		return
	}

	setAttachment(c, filename)
	c.Data(http.StatusOK, contentTypeICS, data)
}

// setAttachment 设置下载响应头
func setAttachment(c *gin.Context, filename string) {
	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+url.QueryEscape(filename))
}

func (h *ExportHandler) handleExportError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrSemesterNotFound):
		response.NotFound(c, 14001, "学期不存在")
	case errors.Is(err, service.ErrExportNoPeriods):
		response.NotFound(c, 16101, "该学期暂无已物化的周期")
	default:
		response.InternalError(c)
	}
}
