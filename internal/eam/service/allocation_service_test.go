package service

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"

	"github.com/bitfantasy/nimo-eam/internal/eam/entity"
	"github.com/bitfantasy/nimo-eam/internal/eam/repository"
	"github.com/bitfantasy/nimo-eam/internal/eam/testutil"
	"gorm.io/gorm"
)

type allocationFixture struct {
	svc       *AllocationService
	db        *gorm.DB
	repos     *repository.Repositories
	model     *entity.ItemModel
	stockRoom *entity.Room
	workRoom  *entity.Room
}

func setupAllocationTest(t *testing.T) *allocationFixture {
	t.Helper()
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	// Fixed seed keeps random selection deterministic in tests
	svc := NewAllocationService(db, repos.Request, repos.Item, rand.New(rand.NewSource(1)))

	model := testutil.SeedTestModel(t, db, "RAM 16GB", entity.ItemKindStockItem)
	stockRoom := testutil.SeedTestRoom(t, db, "Stock Room")
	workRoom := testutil.SeedTestRoom(t, db, "Workshop")

	return &allocationFixture{svc: svc, db: db, repos: repos, model: model, stockRoom: stockRoom, workRoom: workRoom}
}

func stockManager() Actor {
	return Actor{ID: "stock-mgr", Roles: []string{entity.RoleStockManager}}
}

func technician() Actor {
	return Actor{ID: "tech-1", Roles: []string{entity.RoleTechnician}}
}

func TestAllocationFulfill(t *testing.T) {
	f := setupAllocationTest(t)
	ctx := context.Background()

	unit := testutil.SeedTestItem(t, f.db, f.model.ID, entity.ItemKindStockItem, entity.ItemStatusInStock, &f.stockRoom.ID)

	req, err := f.svc.Create(ctx, technician(), CreateInput{
		Type:    entity.RequestTypeStockItem,
		ModelID: f.model.ID,
		StepID:  "step-1",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if req.Status != entity.RequestStatusPending {
		t.Fatalf("Expected pending, got %s", req.Status)
	}

	eligible, err := f.svc.ListEligible(ctx, req.ID)
	if err != nil {
		t.Fatalf("ListEligible failed: %v", err)
	}
	if len(eligible) != 1 || eligible[0].ID != unit.ID {
		t.Fatalf("Expected the seeded unit to be eligible")
	}

	err = f.svc.Fulfill(ctx, stockManager(), FulfillInput{
		RequestID:    req.ID,
		UnitID:       unit.ID,
		SourceRoomID: f.stockRoom.ID,
		ToRoomID:     f.workRoom.ID,
		Note:         "delivered",
	})
	if err != nil {
		t.Fatalf("Fulfill failed: %v", err)
	}

	got, _ := f.svc.Get(ctx, req.ID)
	if got.Status != entity.RequestStatusFulfilled {
		t.Errorf("Expected fulfilled, got %s", got.Status)
	}
	if got.ResolvedUnitID == nil || *got.ResolvedUnitID != unit.ID {
		t.Errorf("Resolved unit not recorded")
	}
	if got.ResolvedBy == nil || *got.ResolvedBy != "stock-mgr" {
		t.Errorf("Resolver not recorded")
	}

	// Delivery relocates the unit but keeps its status
	item, _ := f.repos.Item.FindByID(ctx, unit.ID)
	if item.CurrentRoomID == nil || *item.CurrentRoomID != f.workRoom.ID {
		t.Errorf("Unit should be in the workshop, got %v", item.CurrentRoomID)
	}
	if item.Status != entity.ItemStatusInStock {
		t.Errorf("Unit status should stay in_stock, got %s", item.Status)
	}

	// The unit is no longer eligible for anyone else
	items, _ := f.repos.Item.ListEligibleUnits(ctx, f.model.ID)
	if len(items) != 0 {
		t.Errorf("Fulfilled unit must not appear eligible, got %d units", len(items))
	}
}

func TestAllocationRequestDecidedOnlyOnce(t *testing.T) {
	f := setupAllocationTest(t)
	ctx := context.Background()

	unitA := testutil.SeedTestItem(t, f.db, f.model.ID, entity.ItemKindStockItem, entity.ItemStatusInStock, &f.stockRoom.ID)
	unitB := testutil.SeedTestItem(t, f.db, f.model.ID, entity.ItemKindStockItem, entity.ItemStatusInStock, &f.stockRoom.ID)

	req, _ := f.svc.Create(ctx, technician(), CreateInput{
		Type: entity.RequestTypeStockItem, ModelID: f.model.ID, StepID: "step-1",
	})

	if err := f.svc.Fulfill(ctx, stockManager(), FulfillInput{
		RequestID: req.ID, UnitID: unitA.ID, SourceRoomID: f.stockRoom.ID, ToRoomID: f.workRoom.ID,
	}); err != nil {
		t.Fatalf("First fulfill failed: %v", err)
	}

	// Second decision on the same request loses, regardless of unit
	err := f.svc.Fulfill(ctx, stockManager(), FulfillInput{
		RequestID: req.ID, UnitID: unitB.ID, SourceRoomID: f.stockRoom.ID, ToRoomID: f.workRoom.ID,
	})
	if !errors.Is(err, ErrAllocationConflict) {
		t.Fatalf("Expected ErrAllocationConflict, got %v", err)
	}
	err = f.svc.Reject(ctx, stockManager(), req.ID, "changed my mind")
	if !errors.Is(err, ErrStateConflict) {
		t.Fatalf("Expected ErrStateConflict on reject after fulfill, got %v", err)
	}
}

func TestAllocationSameUnitClaimedTwice(t *testing.T) {
	f := setupAllocationTest(t)
	ctx := context.Background()

	unit := testutil.SeedTestItem(t, f.db, f.model.ID, entity.ItemKindStockItem, entity.ItemStatusInStock, &f.stockRoom.ID)

	reqA, _ := f.svc.Create(ctx, technician(), CreateInput{
		Type: entity.RequestTypeStockItem, ModelID: f.model.ID, StepID: "step-1",
	})
	reqB, _ := f.svc.Create(ctx, technician(), CreateInput{
		Type: entity.RequestTypeStockItem, ModelID: f.model.ID, StepID: "step-2",
	})

	if err := f.svc.Fulfill(ctx, stockManager(), FulfillInput{
		RequestID: reqA.ID, UnitID: unit.ID, SourceRoomID: f.stockRoom.ID, ToRoomID: f.workRoom.ID,
	}); err != nil {
		t.Fatalf("First fulfill failed: %v", err)
	}

	err := f.svc.Fulfill(ctx, stockManager(), FulfillInput{
		RequestID: reqB.ID, UnitID: unit.ID, SourceRoomID: f.stockRoom.ID, ToRoomID: f.workRoom.ID,
	})
	if !errors.Is(err, ErrAllocationConflict) {
		t.Fatalf("Expected ErrAllocationConflict for double-claimed unit, got %v", err)
	}

	// The losing request stays pending and can be decided again
	got, _ := f.svc.Get(ctx, reqB.ID)
	if got.Status != entity.RequestStatusPending {
		t.Errorf("Losing request should stay pending, got %s", got.Status)
	}
}

func TestAllocationConcurrentFulfillSameUnit(t *testing.T) {
	f := setupAllocationTest(t)
	ctx := context.Background()

	unit := testutil.SeedTestItem(t, f.db, f.model.ID, entity.ItemKindStockItem, entity.ItemStatusInStock, &f.stockRoom.ID)

	reqA, _ := f.svc.Create(ctx, technician(), CreateInput{
		Type: entity.RequestTypeStockItem, ModelID: f.model.ID, StepID: "step-1",
	})
	reqB, _ := f.svc.Create(ctx, technician(), CreateInput{
		Type: entity.RequestTypeStockItem, ModelID: f.model.ID, StepID: "step-2",
	})

	// Deliver into the room the unit is already in, so the transfer CAS
	// alone cannot tell the two claims apart. The row lock taken at the
	// start of the fulfill transaction must serialize them.
	var wg sync.WaitGroup
	results := make([]error, 2)
	for i, id := range []string{reqA.ID, reqB.ID} {
		wg.Add(1)
		go func(i int, requestID string) {
			defer wg.Done()
			results[i] = f.svc.Fulfill(ctx, stockManager(), FulfillInput{
				RequestID:    requestID,
				UnitID:       unit.ID,
				SourceRoomID: f.stockRoom.ID,
				ToRoomID:     f.stockRoom.ID,
			})
		}(i, id)
	}
	wg.Wait()

	var okCount, conflictCount int
	for _, err := range results {
		switch {
		case err == nil:
			okCount++
		case errors.Is(err, ErrAllocationConflict):
			conflictCount++
		default:
			t.Fatalf("Unexpected fulfill error: %v", err)
		}
	}
	if okCount != 1 || conflictCount != 1 {
		t.Fatalf("Expected exactly one winner, got %d ok / %d conflict", okCount, conflictCount)
	}

	var fulfilled int64
	f.db.Model(&entity.ItemRequest{}).
		Where("resolved_unit_id = ?", unit.ID).
		Count(&fulfilled)
	if fulfilled != 1 {
		t.Errorf("Unit should be resolved by exactly one request, got %d", fulfilled)
	}
}

func TestAllocationFulfillStaleSourceRoomRejected(t *testing.T) {
	f := setupAllocationTest(t)
	ctx := context.Background()

	unit := testutil.SeedTestItem(t, f.db, f.model.ID, entity.ItemKindStockItem, entity.ItemStatusInStock, &f.stockRoom.ID)

	req, _ := f.svc.Create(ctx, technician(), CreateInput{
		Type: entity.RequestTypeStockItem, ModelID: f.model.ID, StepID: "step-1",
	})

	// The caller picked the unit while it was still in the stock room,
	// but it has been moved to the workshop in the meantime.
	if err := f.repos.Item.TransferTx(f.db, unit.ID, &f.stockRoom.ID, f.workRoom.ID, "someone", ""); err != nil {
		t.Fatalf("Setup transfer failed: %v", err)
	}

	err := f.svc.Fulfill(ctx, stockManager(), FulfillInput{
		RequestID:    req.ID,
		UnitID:       unit.ID,
		SourceRoomID: f.stockRoom.ID,
		ToRoomID:     f.workRoom.ID,
	})
	if !errors.Is(err, ErrAllocationConflict) {
		t.Fatalf("Expected ErrAllocationConflict for stale source room, got %v", err)
	}

	got, _ := f.svc.Get(ctx, req.ID)
	if got.Status != entity.RequestStatusPending {
		t.Errorf("Request should stay pending after a stale fulfill, got %s", got.Status)
	}
}

func TestAllocationRejectIsTerminal(t *testing.T) {
	f := setupAllocationTest(t)
	ctx := context.Background()

	unit := testutil.SeedTestItem(t, f.db, f.model.ID, entity.ItemKindStockItem, entity.ItemStatusInStock, &f.stockRoom.ID)
	req, _ := f.svc.Create(ctx, technician(), CreateInput{
		Type: entity.RequestTypeStockItem, ModelID: f.model.ID, StepID: "step-1",
	})

	if err := f.svc.Reject(ctx, stockManager(), req.ID, "out of budget"); err != nil {
		t.Fatalf("Reject failed: %v", err)
	}
	got, _ := f.svc.Get(ctx, req.ID)
	if got.Status != entity.RequestStatusRejected {
		t.Fatalf("Expected rejected, got %s", got.Status)
	}
	if got.ResolutionNote != "out of budget" {
		t.Errorf("Resolution note not recorded")
	}

	err := f.svc.Fulfill(ctx, stockManager(), FulfillInput{
		RequestID: req.ID, UnitID: unit.ID, SourceRoomID: f.stockRoom.ID, ToRoomID: f.workRoom.ID,
	})
	if !errors.Is(err, ErrAllocationConflict) {
		t.Fatalf("Expected ErrAllocationConflict after reject, got %v", err)
	}
}

func TestAllocationSelectRandom(t *testing.T) {
	f := setupAllocationTest(t)
	ctx := context.Background()

	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		item := testutil.SeedTestItem(t, f.db, f.model.ID, entity.ItemKindStockItem, entity.ItemStatusInStock, &f.stockRoom.ID)
		seen[item.ID] = true
	}
	req, _ := f.svc.Create(ctx, technician(), CreateInput{
		Type: entity.RequestTypeStockItem, ModelID: f.model.ID, StepID: "step-1",
	})

	picked, err := f.svc.SelectRandom(ctx, req.ID)
	if err != nil {
		t.Fatalf("SelectRandom failed: %v", err)
	}
	if !seen[picked.ID] {
		t.Errorf("Picked unit %s is not one of the eligible units", picked.ID)
	}
}

func TestAllocationFulfillRequiresMatchingRole(t *testing.T) {
	f := setupAllocationTest(t)
	ctx := context.Background()

	unit := testutil.SeedTestItem(t, f.db, f.model.ID, entity.ItemKindStockItem, entity.ItemStatusInStock, &f.stockRoom.ID)
	req, _ := f.svc.Create(ctx, technician(), CreateInput{
		Type: entity.RequestTypeStockItem, ModelID: f.model.ID, StepID: "step-1",
	})

	// Consumable manager cannot decide stock item requests
	wrongMgr := Actor{ID: "cons-mgr", Roles: []string{entity.RoleConsumableManager}}
	err := f.svc.Fulfill(ctx, wrongMgr, FulfillInput{
		RequestID: req.ID, UnitID: unit.ID, SourceRoomID: f.stockRoom.ID, ToRoomID: f.workRoom.ID,
	})
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("Expected ErrPermissionDenied, got %v", err)
	}
}
