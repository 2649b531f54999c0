package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/bitfantasy/nimo-eam/internal/eam/entity"
	"github.com/bitfantasy/nimo-eam/internal/eam/testutil"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func TestTransferTxMovesItemAndAppendsHistory(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewItemRepository(db)

	model := testutil.SeedTestModel(t, db, "ThinkPad X1", entity.ItemKindAsset)
	roomA := testutil.SeedTestRoom(t, db, "Room A")
	roomB := testutil.SeedTestRoom(t, db, "Room B")
	item := testutil.SeedTestItem(t, db, model.ID, entity.ItemKindAsset, entity.ItemStatusInStock, &roomA.ID)

	err := db.Transaction(func(tx *gorm.DB) error {
		return repo.TransferTx(tx, item.ID, &roomA.ID, roomB.ID, "actor-1", "moved for testing")
	})
	if err != nil {
		t.Fatalf("TransferTx failed: %v", err)
	}

	got, err := repo.FindByID(context.Background(), item.ID)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if got.CurrentRoomID == nil || *got.CurrentRoomID != roomB.ID {
		t.Errorf("Expected item in room B, got %v", got.CurrentRoomID)
	}
	if got.Version != item.Version+1 {
		t.Errorf("Expected version bump to %d, got %d", item.Version+1, got.Version)
	}

	transfers, total, err := repo.ListTransfers(context.Background(), TransferListParams{ItemID: item.ID})
	if err != nil {
		t.Fatalf("ListTransfers failed: %v", err)
	}
	if total != 1 {
		t.Fatalf("Expected 1 transfer record, got %d", total)
	}
	tr := transfers[0]
	if tr.FromRoomID == nil || *tr.FromRoomID != roomA.ID || tr.ToRoomID != roomB.ID {
		t.Errorf("Unexpected transfer rooms: from=%v to=%s", tr.FromRoomID, tr.ToRoomID)
	}
	if tr.ActorID != "actor-1" {
		t.Errorf("Expected actor-1, got %s", tr.ActorID)
	}
}

func TestTransferTxStaleRoomReturnsConflict(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewItemRepository(db)

	model := testutil.SeedTestModel(t, db, "Monitor", entity.ItemKindAsset)
	roomA := testutil.SeedTestRoom(t, db, "Room A")
	roomB := testutil.SeedTestRoom(t, db, "Room B")
	roomC := testutil.SeedTestRoom(t, db, "Room C")
	item := testutil.SeedTestItem(t, db, model.ID, entity.ItemKindAsset, entity.ItemStatusInStock, &roomA.ID)

	// The item is in room A, but the caller believes it is in room C
	err := db.Transaction(func(tx *gorm.DB) error {
		return repo.TransferTx(tx, item.ID, &roomC.ID, roomB.ID, "actor-1", "")
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("Expected ErrConflict, got %v", err)
	}

	// The failed transfer must leave no trace
	got, _ := repo.FindByID(context.Background(), item.ID)
	if got.CurrentRoomID == nil || *got.CurrentRoomID != roomA.ID {
		t.Errorf("Item should still be in room A, got %v", got.CurrentRoomID)
	}
	_, total, _ := repo.ListTransfers(context.Background(), TransferListParams{ItemID: item.ID})
	if total != 0 {
		t.Errorf("Expected no transfer records, got %d", total)
	}
}

func TestTransferTxMissingItemReturnsNotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewItemRepository(db)
	roomB := testutil.SeedTestRoom(t, db, "Room B")

	err := db.Transaction(func(tx *gorm.DB) error {
		return repo.TransferTx(tx, uuid.New().String()[:32], nil, roomB.ID, "actor-1", "")
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestUpdateStatusTxRejectsWrongPrecondition(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewItemRepository(db)

	model := testutil.SeedTestModel(t, db, "Printer", entity.ItemKindAsset)
	room := testutil.SeedTestRoom(t, db, "Room A")
	item := testutil.SeedTestItem(t, db, model.ID, entity.ItemKindAsset, entity.ItemStatusRetired, &room.ID)

	err := db.Transaction(func(tx *gorm.DB) error {
		return repo.UpdateStatusTx(tx, item.ID,
			[]string{entity.ItemStatusInStock}, entity.ItemStatusInMaintenance)
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("Expected ErrConflict for retired item, got %v", err)
	}

	got, _ := repo.FindByID(context.Background(), item.ID)
	if got.Status != entity.ItemStatusRetired {
		t.Errorf("Status should be unchanged, got %s", got.Status)
	}
}

func TestListEligibleUnitsExcludesClaimedAndOffStatus(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewItemRepository(db)

	model := testutil.SeedTestModel(t, db, "SSD 1TB", entity.ItemKindStockItem)
	room := testutil.SeedTestRoom(t, db, "Stock Room")

	free := testutil.SeedTestItem(t, db, model.ID, entity.ItemKindStockItem, entity.ItemStatusInStock, &room.ID)
	claimed := testutil.SeedTestItem(t, db, model.ID, entity.ItemKindStockItem, entity.ItemStatusInStock, &room.ID)
	testutil.SeedTestItem(t, db, model.ID, entity.ItemKindStockItem, entity.ItemStatusRetired, &room.ID)

	// Bind the claimed unit to a fulfilled request
	req := &entity.ItemRequest{
		ID:             uuid.New().String()[:32],
		Type:           entity.RequestTypeStockItem,
		ModelID:        model.ID,
		StepID:         "step-1",
		Status:         entity.RequestStatusFulfilled,
		ResolvedUnitID: &claimed.ID,
		RequestedBy:    "user-1",
	}
	if err := db.Create(req).Error; err != nil {
		t.Fatalf("Failed to seed request: %v", err)
	}

	items, err := repo.ListEligibleUnits(context.Background(), model.ID)
	if err != nil {
		t.Fatalf("ListEligibleUnits failed: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("Expected exactly 1 eligible unit, got %d", len(items))
	}
	if items[0].ID != free.ID {
		t.Errorf("Expected the unclaimed unit %s, got %s", free.ID, items[0].ID)
	}
}
