package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bitfantasy/nimo-eam/internal/eam/entity"
	"github.com/bitfantasy/nimo-eam/internal/eam/repository"
	"github.com/bitfantasy/nimo-eam/internal/eam/testutil"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type handoffFixture struct {
	svc      *HandoffService
	db       *gorm.DB
	repos    *repository.Repositories
	record   *entity.ExternalMaintenanceRecord
	item     *entity.Item
	provider *entity.Provider
	homeRoom *entity.Room
	provRoom *entity.Room
}

func setupHandoffTest(t *testing.T) *handoffFixture {
	t.Helper()
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	svc := NewHandoffService(db, repos.Maintenance, repos.Item, repos.Provider, repos.Room)

	model := testutil.SeedTestModel(t, db, "Oscilloscope", entity.ItemKindAsset)
	homeRoom := testutil.SeedTestRoom(t, db, "Lab 1")
	provRoom := testutil.SeedTestRoom(t, db, "Provider Inbound")
	item := testutil.SeedTestItem(t, db, model.ID, entity.ItemKindAsset, entity.ItemStatusInMaintenance, &homeRoom.ID)

	provider := &entity.Provider{
		ID:     uuid.New().String()[:32],
		Name:   "FixIt Co " + uuid.New().String()[:8],
		RoomID: &provRoom.ID,
		Status: "active",
	}
	if err := db.Create(provider).Error; err != nil {
		t.Fatalf("Failed to seed provider: %v", err)
	}

	maintenance := &entity.Maintenance{
		ID:        uuid.New().String()[:32],
		Code:      "MNT-TEST-" + uuid.New().String()[:8],
		ItemID:    item.ID,
		Title:     "Broken screen",
		Status:    entity.MaintenanceStatusExternal,
		CreatedBy: "user-1",
	}
	if err := db.Create(maintenance).Error; err != nil {
		t.Fatalf("Failed to seed maintenance: %v", err)
	}

	record := &entity.ExternalMaintenanceRecord{
		ID:            uuid.New().String()[:32],
		MaintenanceID: maintenance.ID,
		ItemID:        item.ID,
	}
	if err := db.Create(record).Error; err != nil {
		t.Fatalf("Failed to seed handoff record: %v", err)
	}

	return &handoffFixture{
		svc: svc, db: db, repos: repos,
		record: record, item: item, provider: provider,
		homeRoom: homeRoom, provRoom: provRoom,
	}
}

func assetManager() Actor {
	return Actor{ID: "mgr-1", Roles: []string{entity.RoleAssetManager}}
}

func TestHandoffFullWalk(t *testing.T) {
	f := setupHandoffTest(t)
	ctx := context.Background()
	actor := assetManager()

	// Stage 1: send out, item moves to the provider room
	if err := f.svc.SendToProvider(ctx, actor, f.record.ID, f.provider.ID, "out for repair"); err != nil {
		t.Fatalf("SendToProvider failed: %v", err)
	}
	rec, _ := f.svc.GetRecord(ctx, f.record.ID)
	if rec.Stage() != entity.HandoffStageSentToProvider {
		t.Fatalf("Expected stage sent_to_provider, got %s", rec.Stage())
	}
	if rec.ProviderID == nil || *rec.ProviderID != f.provider.ID {
		t.Errorf("Provider not bound to record")
	}
	item, _ := f.repos.Item.FindByID(ctx, f.item.ID)
	if item.CurrentRoomID == nil || *item.CurrentRoomID != f.provRoom.ID {
		t.Errorf("Item should be in provider room, got %v", item.CurrentRoomID)
	}

	// Stage 2 and 3
	if err := f.svc.ConfirmReceivedByProvider(ctx, actor, f.record.ID); err != nil {
		t.Fatalf("ConfirmReceivedByProvider failed: %v", err)
	}
	if err := f.svc.ConfirmSentToCompany(ctx, actor, f.record.ID); err != nil {
		t.Fatalf("ConfirmSentToCompany failed: %v", err)
	}

	// Stage 4: receive back, item returns home
	if err := f.svc.ConfirmReceivedByCompany(ctx, actor, f.record.ID, f.homeRoom.ID, "back"); err != nil {
		t.Fatalf("ConfirmReceivedByCompany failed: %v", err)
	}
	rec, _ = f.svc.GetRecord(ctx, f.record.ID)
	if rec.Stage() != entity.HandoffStageReceivedByCompany {
		t.Fatalf("Expected stage received_by_company, got %s", rec.Stage())
	}
	item, _ = f.repos.Item.FindByID(ctx, f.item.ID)
	if item.CurrentRoomID == nil || *item.CurrentRoomID != f.homeRoom.ID {
		t.Errorf("Item should be back in home room, got %v", item.CurrentRoomID)
	}

	// Timestamps must be a non-decreasing sequence
	stamps := []*time.Time{rec.SentToProvider, rec.ReceivedByProvider, rec.SentToCompany, rec.ReceivedByCompany}
	for i, s := range stamps {
		if s == nil {
			t.Fatalf("Stamp %d is nil after full walk", i)
		}
		if i > 0 && s.Before(*stamps[i-1]) {
			t.Errorf("Stamp %d is before stamp %d", i, i-1)
		}
	}

	// Two transfer records: out and back
	_, total, _ := f.repos.Item.ListTransfers(ctx, repository.TransferListParams{ItemID: f.item.ID})
	if total != 2 {
		t.Errorf("Expected 2 transfer records, got %d", total)
	}
}

func TestHandoffRepeatedStageRejected(t *testing.T) {
	f := setupHandoffTest(t)
	ctx := context.Background()
	actor := assetManager()

	if err := f.svc.SendToProvider(ctx, actor, f.record.ID, f.provider.ID, ""); err != nil {
		t.Fatalf("SendToProvider failed: %v", err)
	}
	err := f.svc.SendToProvider(ctx, actor, f.record.ID, f.provider.ID, "")
	if !errors.Is(err, ErrStateConflict) {
		t.Fatalf("Expected ErrStateConflict on repeated send, got %v", err)
	}

	if err := f.svc.ConfirmReceivedByProvider(ctx, actor, f.record.ID); err != nil {
		t.Fatalf("ConfirmReceivedByProvider failed: %v", err)
	}
	err = f.svc.ConfirmReceivedByProvider(ctx, actor, f.record.ID)
	if !errors.Is(err, ErrStateConflict) {
		t.Fatalf("Expected ErrStateConflict on repeated confirm, got %v", err)
	}
}

func TestHandoffSkippedStageRejected(t *testing.T) {
	f := setupHandoffTest(t)
	ctx := context.Background()
	actor := assetManager()

	// Record has not been sent out yet, stage 2 must fail
	err := f.svc.ConfirmReceivedByProvider(ctx, actor, f.record.ID)
	if !errors.Is(err, ErrStateConflict) {
		t.Fatalf("Expected ErrStateConflict when skipping stage 1, got %v", err)
	}

	// Stage 4 without stage 3 must fail too
	if err := f.svc.SendToProvider(ctx, actor, f.record.ID, f.provider.ID, ""); err != nil {
		t.Fatalf("SendToProvider failed: %v", err)
	}
	err = f.svc.ConfirmReceivedByCompany(ctx, actor, f.record.ID, f.homeRoom.ID, "")
	if !errors.Is(err, ErrStateConflict) {
		t.Fatalf("Expected ErrStateConflict when skipping stages, got %v", err)
	}
	// Failed stage 4 must not move the item
	item, _ := f.repos.Item.FindByID(ctx, f.item.ID)
	if item.CurrentRoomID == nil || *item.CurrentRoomID != f.provRoom.ID {
		t.Errorf("Item should still be in provider room, got %v", item.CurrentRoomID)
	}
}

func TestHandoffRequiresAssetManager(t *testing.T) {
	f := setupHandoffTest(t)
	ctx := context.Background()
	tech := Actor{ID: "tech-1", Roles: []string{entity.RoleTechnician}}

	err := f.svc.SendToProvider(ctx, tech, f.record.ID, f.provider.ID, "")
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("Expected ErrPermissionDenied, got %v", err)
	}

	// Admin passes every role gate
	admin := Actor{ID: "root", Roles: []string{entity.RoleAdmin}}
	if err := f.svc.SendToProvider(ctx, admin, f.record.ID, f.provider.ID, ""); err != nil {
		t.Fatalf("Admin should pass the role gate: %v", err)
	}
}
