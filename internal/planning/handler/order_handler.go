package handler

import (
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hexafab/forge/internal/planning/repository"
	"github.com/hexafab/forge/internal/planning/service"
)

// OrderHandler 生产订单接口
type OrderHandler struct {
	orderSvc *service.OrderService
}

func NewOrderHandler(orderSvc *service.OrderService) *OrderHandler {
	return &OrderHandler{orderSvc: orderSvc}
}

// Create POST /production-orders
func (h *OrderHandler) Create(c *gin.Context) {
	var req service.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	order, err := h.orderSvc.CreateProductionOrder(c.Request.Context(), GetUserID(c), &req)
	if err != nil {
		respondOrderError(c, err)
		return
	}
	Created(c, order)
}

func respondOrderError(c *gin.Context, err error) {
	var insufficient *service.InsufficientMaterialError
	var noCapacity *service.NoCapacityError
	switch {
	case errors.Is(err, service.ErrBOMNotFound):
		NotFound(c, "BOM not found")
	case errors.Is(err, service.ErrOrderNotFound):
		NotFound(c, "production order not found")
	case errors.Is(err, service.ErrBOMNotApproved):
		Unprocessable(c, err.Error())
	case errors.As(err, &insufficient):
		Unprocessable(c, err.Error())
	case errors.As(err, &noCapacity):
		Unprocessable(c, err.Error())
	case errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrOrderNotReschedulable),
		errors.Is(err, service.ErrOperationCountChanged):
		Conflict(c, err.Error())
	default:
		InternalError(c, err.Error())
	}
}

// Get GET /production-orders/:id
func (h *OrderHandler) Get(c *gin.Context) {
	order, err := h.orderSvc.GetWithOperations(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondOrderError(c, err)
		return
	}
	Success(c, order)
}

// List GET /production-orders
func (h *OrderHandler) List(c *gin.Context) {
	page, size := GetPagination(c)
	params := repository.OrderListParams{
		Status:   c.Query("status"),
		BOMID:    c.Query("bom_id"),
		BranchID: c.Query("branch_id"),
		Keyword:  c.Query("keyword"),
		Page:     page,
		Size:     size,
	}
	orders, total, err := h.orderSvc.List(c.Request.Context(), params)
	if err != nil {
		InternalError(c, err.Error())
		return
	}
	Success(c, ListResponse{Items: orders, Pagination: NewPagination(page, size, total)})
}

// Reschedule POST /production-orders/:id/reschedule
func (h *OrderHandler) Reschedule(c *gin.Context) {
	var req service.RescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	order, err := h.orderSvc.Reschedule(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		respondOrderError(c, err)
		return
	}
	Success(c, order)
}

// CalculateRouting GET /boms/:id/routing-plan?quantity=N&start=YYYY-MM-DD&buffer_days=N
func (h *OrderHandler) CalculateRouting(c *gin.Context) {
	quantity := 1.0
	if q := c.Query("quantity"); q != "" {
		v, err := strconv.ParseFloat(q, 64)
		if err != nil || v <= 0 {
			BadRequest(c, "invalid quantity")
			return
		}
		quantity = v
	}
	start := time.Now()
	if s := c.Query("start"); s != "" {
		v, err := time.Parse("2006-01-02", s)
		if err != nil {
			BadRequest(c, "invalid start date")
			return
		}
		start = v
	}
	bufferDays := 0
	if b := c.Query("buffer_days"); b != "" {
		v, err := strconv.Atoi(b)
		if err != nil || v < 0 {
			BadRequest(c, "invalid buffer_days")
			return
		}
		bufferDays = v
	}

	plan, err := h.orderSvc.CalculateRouting(c.Request.Context(), c.Param("id"), quantity, start, bufferDays)
	if err != nil {
		respondOrderError(c, err)
		return
	}
	Success(c, plan)
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateStatus PUT /production-orders/:id/status
func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	order, err := h.orderSvc.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status, GetUserID(c))
	if err != nil {
		respondOrderError(c, err)
		return
	}
	Success(c, order)
}

// Gantt GET /production-orders/:id/gantt
func (h *OrderHandler) Gantt(c *gin.Context) {
	rows, err := h.orderSvc.GanttRows(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondOrderError(c, err)
		return
	}
	Success(c, rows)
}

// EstimateDelivery GET /boms/:id/delivery-estimate?quantity=N&buffer_days=N
func (h *OrderHandler) EstimateDelivery(c *gin.Context) {
	quantity := 1.0
	if q := c.Query("quantity"); q != "" {
		v, err := strconv.ParseFloat(q, 64)
		if err != nil || v <= 0 {
			BadRequest(c, "invalid quantity")
			return
		}
		quantity = v
	}
	bufferDays := 0
	if b := c.Query("buffer_days"); b != "" {
		v, err := strconv.Atoi(b)
		if err != nil || v < 0 {
			BadRequest(c, "invalid buffer_days")
			return
		}
		bufferDays = v
	}

	estimate, err := h.orderSvc.EstimateDelivery(c.Request.Context(), c.Param("id"), quantity, bufferDays)
	if err != nil {
		respondOrderError(c, err)
		return
	}
	Success(c, estimate)
}
