package handler

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hexafab/forge/internal/planning/service"
)

// CapacityHandler 产能日历与利用率接口
type CapacityHandler struct {
	capacitySvc *service.CapacityService
}

func NewCapacityHandler(capacitySvc *service.CapacityService) *CapacityHandler {
	return &CapacityHandler{capacitySvc: capacitySvc}
}

// Upsert POST /capacity-schedules
func (h *CapacityHandler) Upsert(c *gin.Context) {
	var req service.UpsertScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	cs, err := h.capacitySvc.UpsertSchedule(c.Request.Context(), &req)
	if err != nil {
		InternalError(c, err.Error())
		return
	}
	Success(c, cs)
}

func parseDateRange(c *gin.Context) (from, to time.Time, err error) {
	const layout = "2006-01-02"
	fromStr := c.DefaultQuery("from", time.Now().Format(layout))
	toStr := c.DefaultQuery("to", time.Now().AddDate(0, 0, 30).Format(layout))
	if from, err = time.Parse(layout, fromStr); err != nil {
		return
	}
	to, err = time.Parse(layout, toStr)
	return
}

// Utilization GET /capacity-schedules/utilization?work_center_id=&from=&to=
func (h *CapacityHandler) Utilization(c *gin.Context) {
	from, to, err := parseDateRange(c)
	if err != nil {
		BadRequest(c, "invalid date range")
		return
	}

	rows, err := h.capacitySvc.Utilization(c.Request.Context(), c.Query("work_center_id"), from, to)
	if err != nil {
		InternalError(c, err.Error())
		return
	}
	Success(c, rows)
}

// ExportUtilization GET /capacity-schedules/utilization/export
func (h *CapacityHandler) ExportUtilization(c *gin.Context) {
	from, to, err := parseDateRange(c)
	if err != nil {
		BadRequest(c, "invalid date range")
		return
	}

	f, err := h.capacitySvc.ExportUtilization(c.Request.Context(), c.Query("work_center_id"), from, to)
	if err != nil {
		InternalError(c, err.Error())
		return
	}

	filename := fmt.Sprintf("utilization_%s_%s.xlsx", from.Format("20060102"), to.Format("20060102"))
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if err := f.Write(c.Writer); err != nil {
		InternalError(c, err.Error())
	}
}
