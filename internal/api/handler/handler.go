package handler

import "github.com/xxxkjing/ClassComp-Score/internal/service"

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Semester *SemesterHandler
	Period   *PeriodHandler
	Export   *ExportHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		Semester: NewSemesterHandler(svc.Semester),
		Period:   NewPeriodHandler(svc.Period),
		Export:   NewExportHandler(svc.Export),
	}
}
