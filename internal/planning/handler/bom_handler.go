package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/hexafab/forge/internal/planning/service"
)

// BOMHandler BOM结构接口
type BOMHandler struct {
	bomSvc *service.BOMService
}

func NewBOMHandler(bomSvc *service.BOMService) *BOMHandler {
	return &BOMHandler{bomSvc: bomSvc}
}

// Create POST /boms
func (h *BOMHandler) Create(c *gin.Context) {
	var req service.CreateBOMRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	bom, err := h.bomSvc.CreateBOM(c.Request.Context(), GetUserID(c), &req)
	if err != nil {
		var unknown *service.UnknownInventoryItemError
		switch {
		case errors.Is(err, service.ErrDuplicateRevision):
			Conflict(c, err.Error())
		case errors.Is(err, service.ErrCyclicBOM):
			Unprocessable(c, err.Error())
		case errors.As(err, &unknown):
			Unprocessable(c, err.Error())
		default:
			InternalError(c, err.Error())
		}
		return
	}
	Created(c, bom)
}

// Get GET /boms/:id  平表重建后的行项树
func (h *BOMHandler) Get(c *gin.Context) {
	bom, err := h.bomSvc.GetBOMWithItems(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrBOMNotFound) {
			NotFound(c, "BOM not found")
			return
		}
		InternalError(c, err.Error())
		return
	}
	Success(c, bom)
}

// Approve POST /boms/:id/approve
func (h *BOMHandler) Approve(c *gin.Context) {
	bom, err := h.bomSvc.ApproveBOM(c.Request.Context(), c.Param("id"), GetUserID(c))
	if err != nil {
		if errors.Is(err, service.ErrBOMNotFound) {
			NotFound(c, "BOM not found")
			return
		}
		Unprocessable(c, err.Error())
		return
	}
	Success(c, bom)
}

// Revisions GET /products/:id/boms
func (h *BOMHandler) Revisions(c *gin.Context) {
	boms, err := h.bomSvc.ListRevisions(c.Request.Context(), c.Param("id"))
	if err != nil {
		InternalError(c, err.Error())
		return
	}
	Success(c, boms)
}

// Current GET /products/:id/boms/current
func (h *BOMHandler) Current(c *gin.Context) {
	bom, err := h.bomSvc.CurrentApproved(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrBOMNotFound) {
			NotFound(c, "no approved BOM for product")
			return
		}
		InternalError(c, err.Error())
		return
	}
	Success(c, bom)
}

// Cost GET /boms/:id/cost?quantity=N
func (h *BOMHandler) Cost(c *gin.Context) {
	quantity := 1.0
	if q := c.Query("quantity"); q != "" {
		v, err := strconv.ParseFloat(q, 64)
		if err != nil || v <= 0 {
			BadRequest(c, "invalid quantity")
			return
		}
		quantity = v
	}

	result, err := h.bomSvc.CalculateBOMCost(c.Request.Context(), c.Param("id"), quantity)
	if err != nil {
		if errors.Is(err, service.ErrBOMNotFound) {
			NotFound(c, "BOM not found")
			return
		}
		InternalError(c, err.Error())
		return
	}
	Success(c, result)
}
