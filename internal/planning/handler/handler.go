package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/hexafab/forge/internal/planning/service"
)

// Handlers 排产处理器集合
type Handlers struct {
	MasterData *MasterDataHandler
	BOM        *BOMHandler
	Capacity   *CapacityHandler
	Material   *MaterialHandler
	Order      *OrderHandler
	ECN        *ECNHandler
}

// NewHandlers 创建排产处理器集合
func NewHandlers(services *service.Services) *Handlers {
	return &Handlers{
		MasterData: NewMasterDataHandler(services.MasterData),
		BOM:        NewBOMHandler(services.BOM),
		Capacity:   NewCapacityHandler(services.Capacity),
		Material:   NewMaterialHandler(services.Material, services.Order),
		Order:      NewOrderHandler(services.Order),
		ECN:        NewECNHandler(services.ECN),
	}
}

// === 响应辅助函数 ===

type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type ListResponse struct {
	Items      interface{} `json:"items"`
	Pagination *Pagination `json:"pagination"`
}

type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

func NewPagination(page, size int, total int64) *Pagination {
	pages := int(total) / size
	if int(total)%size > 0 {
		pages++
	}
	return &Pagination{
		Page:       page,
		PageSize:   size,
		Total:      int(total),
		TotalPages: pages,
	}
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(200, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(201, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	statusCode := code / 100
	if statusCode < 100 || statusCode > 599 {
		statusCode = 500
	}
	c.JSON(statusCode, Response{
		Code:    code,
		Message: message,
	})
}

func BadRequest(c *gin.Context, message string) {
	Error(c, 40000, message)
}

func NotFound(c *gin.Context, message string) {
	Error(c, 40400, message)
}

func Conflict(c *gin.Context, message string) {
	Error(c, 40900, message)
}

func Unprocessable(c *gin.Context, message string) {
	Error(c, 42200, message)
}

func InternalError(c *gin.Context, message string) {
	Error(c, 50000, message)
}

func GetUserID(c *gin.Context) string {
	userID, _ := c.Get("user_id")
	if id, ok := userID.(string); ok {
		return id
	}
	return ""
}

func GetPagination(c *gin.Context) (page, pageSize int) {
	page = 1
	pageSize = 20

	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}

	if ps := c.Query("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
			pageSize = v
		}
	}

	return page, pageSize
}
