package handler

import (
	"net/http"
	"testing"

	"github.com/bitfantasy/nimo-eam/internal/eam/entity"
	"github.com/bitfantasy/nimo-eam/internal/eam/repository"
	"github.com/bitfantasy/nimo-eam/internal/eam/service"
	"github.com/bitfantasy/nimo-eam/internal/eam/testutil"
)

func setupItemHandlerTest(t *testing.T) (*testutil.TestEnv, *repository.Repositories) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	router := testutil.SetupRouter()

	repos := repository.NewRepositories(db)
	ledgerSvc := service.NewLedgerService(db, repos.Item, repos.Assignment, repos.Room)
	provisioningSvc := service.NewProvisioningService(db, repos.Order, repos.Item, repos.Model, repos.Room)
	h := NewItemHandler(ledgerSvc, provisioningSvc)

	api := testutil.AuthGroup(router, "/api/v1")
	api.GET("/items", h.List)
	api.GET("/items/:id", h.Get)
	api.POST("/items/:id/transfer", h.Transfer)
	api.POST("/items/:id/assign", h.Assign)
	api.GET("/items/:id/transfers", h.ListTransfers)

	return &testutil.TestEnv{DB: db, Router: router, T: t}, repos
}

func TestItemTransferEndpoint(t *testing.T) {
	env, _ := setupItemHandlerTest(t)
	token := testutil.GenerateTestToken("mgr-1", "Asset Manager", "mgr@test.com",
		[]string{entity.RoleAssetManager}, nil)

	model := testutil.SeedTestModel(t, env.DB, "Laptop", entity.ItemKindAsset)
	roomA := testutil.SeedTestRoom(t, env.DB, "Room A")
	roomB := testutil.SeedTestRoom(t, env.DB, "Room B")
	item := testutil.SeedTestItem(t, env.DB, model.ID, entity.ItemKindAsset, entity.ItemStatusInStock, &roomA.ID)

	w := testutil.DoRequest(env.Router, "POST", "/api/v1/items/"+item.ID+"/transfer",
		map[string]interface{}{
			"expected_room_id": roomA.ID,
			"to_room_id":       roomB.ID,
			"note":             "relocation",
		}, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	// Replaying the same transfer hits a stale room precondition
	w2 := testutil.DoRequest(env.Router, "POST", "/api/v1/items/"+item.ID+"/transfer",
		map[string]interface{}{
			"expected_room_id": roomA.ID,
			"to_room_id":       roomB.ID,
		}, token)
	if w2.Code != http.StatusConflict {
		t.Fatalf("Expected 409, got %d: %s", w2.Code, w2.Body.String())
	}
	resp := testutil.ParseResponse(w2)
	if resp["code"].(float64) != 40900 {
		t.Errorf("Expected code 40900, got %v", resp["code"])
	}

	// History shows the single successful move
	w3 := testutil.DoRequest(env.Router, "GET", "/api/v1/items/"+item.ID+"/transfers", nil, token)
	if w3.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w3.Code)
	}
	data := testutil.ParseResponse(w3)["data"].(map[string]interface{})
	items := data["items"].([]interface{})
	if len(items) != 1 {
		t.Errorf("Expected 1 transfer record, got %d", len(items))
	}
}

func TestItemTransferForbiddenForWrongRole(t *testing.T) {
	env, _ := setupItemHandlerTest(t)
	token := testutil.GenerateTestToken("tech-1", "Technician", "tech@test.com",
		[]string{entity.RoleTechnician}, nil)

	model := testutil.SeedTestModel(t, env.DB, "Laptop", entity.ItemKindAsset)
	roomA := testutil.SeedTestRoom(t, env.DB, "Room A")
	roomB := testutil.SeedTestRoom(t, env.DB, "Room B")
	item := testutil.SeedTestItem(t, env.DB, model.ID, entity.ItemKindAsset, entity.ItemStatusInStock, &roomA.ID)

	w := testutil.DoRequest(env.Router, "POST", "/api/v1/items/"+item.ID+"/transfer",
		map[string]interface{}{
			"expected_room_id": roomA.ID,
			"to_room_id":       roomB.ID,
		}, token)
	if w.Code != http.StatusForbidden {
		t.Fatalf("Expected 403, got %d: %s", w.Code, w.Body.String())
	}
}

func TestItemListFilters(t *testing.T) {
	env, _ := setupItemHandlerTest(t)
	token := testutil.DefaultTestToken()

	assetMdl := testutil.SeedTestModel(t, env.DB, "Desk", entity.ItemKindAsset)
	stockMdl := testutil.SeedTestModel(t, env.DB, "Mouse", entity.ItemKindStockItem)
	room := testutil.SeedTestRoom(t, env.DB, "Room A")
	testutil.SeedTestItem(t, env.DB, assetMdl.ID, entity.ItemKindAsset, entity.ItemStatusInStock, &room.ID)
	testutil.SeedTestItem(t, env.DB, stockMdl.ID, entity.ItemKindStockItem, entity.ItemStatusInStock, &room.ID)

	w := testutil.DoRequest(env.Router, "GET", "/api/v1/items?kind=asset", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	data := testutil.ParseResponse(w)["data"].(map[string]interface{})
	items := data["items"].([]interface{})
	if len(items) != 1 {
		t.Fatalf("Expected 1 asset, got %d", len(items))
	}
	pagination := data["pagination"].(map[string]interface{})
	if pagination["total"].(float64) != 1 {
		t.Errorf("Expected total 1, got %v", pagination["total"])
	}
}

func TestItemGetNotFound(t *testing.T) {
	env, _ := setupItemHandlerTest(t)
	token := testutil.DefaultTestToken()

	w := testutil.DoRequest(env.Router, "GET", "/api/v1/items/does-not-exist", nil, token)
	if w.Code != http.StatusNotFound {
		t.Fatalf("Expected 404, got %d", w.Code)
	}
}

func TestItemEndpointsRequireAuth(t *testing.T) {
	env, _ := setupItemHandlerTest(t)

	w := testutil.DoRequest(env.Router, "GET", "/api/v1/items", nil, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401, got %d", w.Code)
	}
}
