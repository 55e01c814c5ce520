package handler

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hexafab/forge/internal/planning/repository"
	"github.com/hexafab/forge/internal/planning/service"
	"github.com/hexafab/forge/internal/planning/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupBOMRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	services := service.NewServices(db, repos, nil, zap.NewNop())
	handlers := NewHandlers(services)

	r := testutil.SetupRouter()
	api := testutil.AuthGroup(r, "/api/v1/planning")
	{
		api.POST("/products", handlers.MasterData.CreateProduct)
		api.POST("/boms", handlers.BOM.Create)
		api.GET("/boms/:id", handlers.BOM.Get)
		api.POST("/boms/:id/approve", handlers.BOM.Approve)
		api.GET("/boms/:id/cost", handlers.BOM.Cost)
		api.GET("/products/:id/boms/current", handlers.BOM.Current)
	}
	return r, db
}

func TestBOMLifecycleOverHTTP(t *testing.T) {
	r, db := setupBOMRouter(t)
	token := testutil.DefaultTestToken()

	testutil.SeedInventoryItem(t, db, "steel", "STEEL", 50, 100, 5)
	testutil.SeedInventoryItem(t, db, "bolt", "BOLT", 0.5, 500, 1)

	// 创建产品
	w := testutil.DoRequest(r, "POST", "/api/v1/planning/products", map[string]interface{}{
		"code": "FRAME",
		"name": "Frame",
	}, token)
	require.Equal(t, http.StatusCreated, w.Code)
	productID := testutil.ParseResponse(w)["data"].(map[string]interface{})["id"].(string)

	// 创建嵌套BOM: steel为根，bolt挂在steel下
	parentIdx := 0
	w = testutil.DoRequest(r, "POST", "/api/v1/planning/boms", map[string]interface{}{
		"product_id":     productID,
		"revision":       "A",
		"effective_date": time.Now().Format(time.RFC3339),
		"items": []map[string]interface{}{
			{"inventory_item_id": "steel", "quantity": 2, "scrap_percentage": 10},
			{"inventory_item_id": "bolt", "quantity": 4, "parent_index": parentIdx},
		},
	}, token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	bomID := testutil.ParseResponse(w)["data"].(map[string]interface{})["id"].(string)

	// 重复版本号冲突
	w = testutil.DoRequest(r, "POST", "/api/v1/planning/boms", map[string]interface{}{
		"product_id":     productID,
		"revision":       "A",
		"effective_date": time.Now().Format(time.RFC3339),
		"items": []map[string]interface{}{
			{"inventory_item_id": "steel", "quantity": 1},
		},
	}, token)
	assert.Equal(t, http.StatusConflict, w.Code)

	// 审批前没有当前版本
	w = testutil.DoRequest(r, "GET", "/api/v1/planning/products/"+productID+"/boms/current", nil, token)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// 审批
	w = testutil.DoRequest(r, "POST", "/api/v1/planning/boms/"+bomID+"/approve", nil, token)
	require.Equal(t, http.StatusOK, w.Code)

	// 审批后可查当前版本
	w = testutil.DoRequest(r, "GET", "/api/v1/planning/products/"+productID+"/boms/current", nil, token)
	require.Equal(t, http.StatusOK, w.Code)

	// 行项树重建: 根steel下挂bolt
	w = testutil.DoRequest(r, "GET", "/api/v1/planning/boms/"+bomID, nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	data := testutil.ParseResponse(w)["data"].(map[string]interface{})
	items := data["items"].([]interface{})
	require.Len(t, items, 1)
	root := items[0].(map[string]interface{})
	assert.Equal(t, "steel", root["inventory_item_id"])
	children := root["children"].([]interface{})
	require.Len(t, children, 1)
	assert.Equal(t, "bolt", children[0].(map[string]interface{})["inventory_item_id"])

	// 成本滚算: steel 2×5×50=500 + 10%损耗50, bolt 4×5×0.5=10 → 560
	w = testutil.DoRequest(r, "GET", "/api/v1/planning/boms/"+bomID+"/cost?quantity=5", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	cost := testutil.ParseResponse(w)["data"].(map[string]interface{})
	assert.Equal(t, "560", cost["grand_total"])
}

func TestCreateBOMUnknownMaterialOverHTTP(t *testing.T) {
	r, db := setupBOMRouter(t)
	token := testutil.DefaultTestToken()
	testutil.SeedInventoryItem(t, db, "steel", "STEEL", 50, 100, 5)

	w := testutil.DoRequest(r, "POST", "/api/v1/planning/products", map[string]interface{}{
		"code": "FRAME", "name": "Frame",
	}, token)
	require.Equal(t, http.StatusCreated, w.Code)
	productID := testutil.ParseResponse(w)["data"].(map[string]interface{})["id"].(string)

	w = testutil.DoRequest(r, "POST", "/api/v1/planning/boms", map[string]interface{}{
		"product_id":     productID,
		"revision":       "A",
		"effective_date": time.Now().Format(time.RFC3339),
		"items": []map[string]interface{}{
			{"inventory_item_id": "ghost", "quantity": 1},
		},
	}, token)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	resp := testutil.ParseResponse(w)
	assert.Contains(t, resp["message"], "ghost")
}

func TestBOMEndpointsRequireAuth(t *testing.T) {
	r, _ := setupBOMRouter(t)

	w := testutil.DoRequest(r, "GET", "/api/v1/planning/boms/any", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
