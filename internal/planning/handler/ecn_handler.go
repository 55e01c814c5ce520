package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/hexafab/forge/internal/planning/service"
)

// ECNHandler 工程变更接口
type ECNHandler struct {
	ecnSvc *service.ECNService
}

func NewECNHandler(ecnSvc *service.ECNService) *ECNHandler {
	return &ECNHandler{ecnSvc: ecnSvc}
}

// Create POST /engineering-changes
func (h *ECNHandler) Create(c *gin.Context) {
	var req service.EngineeringChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	ec, err := h.ecnSvc.UpdateBOMWithEngineeringChange(c.Request.Context(), GetUserID(c), &req)
	if err != nil {
		var unknown *service.UnknownInventoryItemError
		switch {
		case errors.Is(err, service.ErrBOMNotFound):
			NotFound(c, "BOM not found")
		case errors.Is(err, service.ErrBOMNotApproved):
			Unprocessable(c, err.Error())
		case errors.Is(err, service.ErrDuplicateRevision):
			Conflict(c, err.Error())
		case errors.As(err, &unknown):
			Unprocessable(c, err.Error())
		default:
			InternalError(c, err.Error())
		}
		return
	}
	Created(c, ec)
}

// Get GET /engineering-changes/:id
func (h *ECNHandler) Get(c *gin.Context) {
	ec, err := h.ecnSvc.GetChange(c.Request.Context(), c.Param("id"))
	if err != nil {
		NotFound(c, "engineering change not found")
		return
	}
	Success(c, ec)
}

// List GET /engineering-changes
func (h *ECNHandler) List(c *gin.Context) {
	page, size := GetPagination(c)
	ecs, total, err := h.ecnSvc.ListChanges(c.Request.Context(), page, size)
	if err != nil {
		InternalError(c, err.Error())
		return
	}
	Success(c, ListResponse{Items: ecs, Pagination: NewPagination(page, size, total)})
}

// Propagate POST /engineering-changes/:id/propagate
func (h *ECNHandler) Propagate(c *gin.Context) {
	ec, err := h.ecnSvc.PropagateBOMChanges(c.Request.Context(), c.Param("id"))
	if err != nil {
		InternalError(c, err.Error())
		return
	}
	Success(c, ec)
}

// History GET /products/:id/engineering-changes
func (h *ECNHandler) History(c *gin.Context) {
	ecs, err := h.ecnSvc.ChangeHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		InternalError(c, err.Error())
		return
	}
	Success(c, ecs)
}
