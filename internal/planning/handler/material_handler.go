package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/hexafab/forge/internal/planning/service"
)

// MaterialHandler 物料消耗与报废接口
type MaterialHandler struct {
	materialSvc *service.MaterialService
	orderSvc    *service.OrderService
}

func NewMaterialHandler(materialSvc *service.MaterialService, orderSvc *service.OrderService) *MaterialHandler {
	return &MaterialHandler{materialSvc: materialSvc, orderSvc: orderSvc}
}

// RecordConsumption POST /production-orders/:id/consumptions
func (h *MaterialHandler) RecordConsumption(c *gin.Context) {
	orderID := c.Param("id")
	if _, err := h.orderSvc.GetWithOperations(c.Request.Context(), orderID); err != nil {
		if errors.Is(err, service.ErrOrderNotFound) {
			NotFound(c, "production order not found")
			return
		}
		InternalError(c, err.Error())
		return
	}

	var req service.ConsumptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	record, err := h.materialSvc.RecordConsumption(c.Request.Context(), orderID, &req, GetUserID(c))
	if err != nil {
		InternalError(c, err.Error())
		return
	}
	Created(c, record)
}

// ListConsumptions GET /production-orders/:id/consumptions
func (h *MaterialHandler) ListConsumptions(c *gin.Context) {
	records, err := h.materialSvc.Consumptions(c.Request.Context(), c.Param("id"))
	if err != nil {
		InternalError(c, err.Error())
		return
	}
	Success(c, records)
}

// RecordScrap POST /production-orders/:id/scrap
func (h *MaterialHandler) RecordScrap(c *gin.Context) {
	orderID := c.Param("id")
	if _, err := h.orderSvc.GetWithOperations(c.Request.Context(), orderID); err != nil {
		if errors.Is(err, service.ErrOrderNotFound) {
			NotFound(c, "production order not found")
			return
		}
		InternalError(c, err.Error())
		return
	}

	var req service.ScrapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	record, err := h.materialSvc.RecordScrap(c.Request.Context(), orderID, &req, GetUserID(c))
	if err != nil {
		InternalError(c, err.Error())
		return
	}
	Created(c, record)
}

// ListScrap GET /production-orders/:id/scrap
func (h *MaterialHandler) ListScrap(c *gin.Context) {
	records, err := h.materialSvc.ScrapRecords(c.Request.Context(), c.Param("id"))
	if err != nil {
		InternalError(c, err.Error())
		return
	}
	Success(c, records)
}
