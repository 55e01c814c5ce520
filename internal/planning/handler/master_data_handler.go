package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/hexafab/forge/internal/planning/service"
)

// MasterDataHandler 主数据接口
type MasterDataHandler struct {
	masterSvc *service.MasterDataService
}

func NewMasterDataHandler(masterSvc *service.MasterDataService) *MasterDataHandler {
	return &MasterDataHandler{masterSvc: masterSvc}
}

// CreateProduct POST /products
func (h *MasterDataHandler) CreateProduct(c *gin.Context) {
	var req service.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	product, err := h.masterSvc.CreateProduct(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, service.ErrDuplicateCode) {
			Conflict(c, "product code already exists")
			return
		}
		InternalError(c, err.Error())
		return
	}
	Created(c, product)
}

// ListProducts GET /products
func (h *MasterDataHandler) ListProducts(c *gin.Context) {
	page, size := GetPagination(c)
	products, total, err := h.masterSvc.ListProducts(c.Request.Context(), page, size)
	if err != nil {
		InternalError(c, err.Error())
		return
	}
	Success(c, ListResponse{Items: products, Pagination: NewPagination(page, size, total)})
}

// CreateInventoryItem POST /inventory-items
func (h *MasterDataHandler) CreateInventoryItem(c *gin.Context) {
	var req service.CreateInventoryItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	item, err := h.masterSvc.CreateInventoryItem(c.Request.Context(), &req)
	if err != nil {
		InternalError(c, err.Error())
		return
	}
	Created(c, item)
}

// GetInventoryItem GET /inventory-items/:id
func (h *MasterDataHandler) GetInventoryItem(c *gin.Context) {
	item, err := h.masterSvc.GetInventoryItem(c.Request.Context(), c.Param("id"))
	if err != nil {
		NotFound(c, "inventory item not found")
		return
	}
	Success(c, item)
}

// ListInventoryItems GET /inventory-items
func (h *MasterDataHandler) ListInventoryItems(c *gin.Context) {
	page, size := GetPagination(c)
	items, total, err := h.masterSvc.ListInventoryItems(c.Request.Context(), c.Query("keyword"), page, size)
	if err != nil {
		InternalError(c, err.Error())
		return
	}
	Success(c, ListResponse{Items: items, Pagination: NewPagination(page, size, total)})
}

// ListStockTransactions GET /inventory-items/:id/transactions
func (h *MasterDataHandler) ListStockTransactions(c *gin.Context) {
	page, size := GetPagination(c)
	txs, total, err := h.masterSvc.StockTransactions(c.Request.Context(), c.Param("id"), page, size)
	if err != nil {
		InternalError(c, err.Error())
		return
	}
	Success(c, ListResponse{Items: txs, Pagination: NewPagination(page, size, total)})
}

// CreateWorkCenter POST /work-centers
func (h *MasterDataHandler) CreateWorkCenter(c *gin.Context) {
	var req service.CreateWorkCenterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	wc, err := h.masterSvc.CreateWorkCenter(c.Request.Context(), &req)
	if err != nil {
		InternalError(c, err.Error())
		return
	}
	Created(c, wc)
}

// ListWorkCenters GET /work-centers
func (h *MasterDataHandler) ListWorkCenters(c *gin.Context) {
	wcs, err := h.masterSvc.ListWorkCenters(c.Request.Context())
	if err != nil {
		InternalError(c, err.Error())
		return
	}
	Success(c, wcs)
}

// CreateOperation POST /operations
func (h *MasterDataHandler) CreateOperation(c *gin.Context) {
	var req service.CreateOperationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	op, err := h.masterSvc.CreateOperation(c.Request.Context(), &req)
	if err != nil {
		InternalError(c, err.Error())
		return
	}
	Created(c, op)
}

// GetOperation GET /operations/:id
func (h *MasterDataHandler) GetOperation(c *gin.Context) {
	op, err := h.masterSvc.GetOperation(c.Request.Context(), c.Param("id"))
	if err != nil {
		NotFound(c, "operation not found")
		return
	}
	Success(c, op)
}

// ListOperations GET /operations?work_center_id=
func (h *MasterDataHandler) ListOperations(c *gin.Context) {
	ops, err := h.masterSvc.ListOperations(c.Request.Context(), c.Query("work_center_id"))
	if err != nil {
		InternalError(c, err.Error())
		return
	}
	Success(c, ops)
}
