package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/bitfantasy/nimo-eam/internal/eam/entity"
	"github.com/bitfantasy/nimo-eam/internal/eam/repository"
	"github.com/bitfantasy/nimo-eam/internal/eam/testutil"
	"gorm.io/gorm"
)

type maintenanceFixture struct {
	svc   *MaintenanceService
	db    *gorm.DB
	repos *repository.Repositories
	item  *entity.Item
}

func setupMaintenanceTest(t *testing.T) *maintenanceFixture {
	t.Helper()
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	svc := NewMaintenanceService(db, repos.Maintenance, repos.Item)

	model := testutil.SeedTestModel(t, db, "Projector", entity.ItemKindAsset)
	room := testutil.SeedTestRoom(t, db, "Meeting Room")
	item := testutil.SeedTestItem(t, db, model.ID, entity.ItemKindAsset, entity.ItemStatusInStock, &room.ID)

	return &maintenanceFixture{svc: svc, db: db, repos: repos, item: item}
}

func chief() Actor {
	return Actor{ID: "chief-1", Roles: []string{entity.RoleChief}}
}

func TestMaintenanceCreateAndClose(t *testing.T) {
	f := setupMaintenanceTest(t)
	ctx := context.Background()

	m, err := f.svc.Create(ctx, chief(), CreateMaintenanceInput{
		ItemID: f.item.ID,
		Title:  "No image output",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if !strings.HasPrefix(m.Code, "MNT-") {
		t.Errorf("Unexpected maintenance code %s", m.Code)
	}

	// The item is pulled out of circulation
	item, _ := f.repos.Item.FindByID(ctx, f.item.ID)
	if item.Status != entity.ItemStatusInMaintenance {
		t.Fatalf("Expected in_maintenance, got %s", item.Status)
	}

	// A second report on the same item hits the status precondition
	_, err = f.svc.Create(ctx, chief(), CreateMaintenanceInput{
		ItemID: f.item.ID,
		Title:  "Still broken",
	})
	if !errors.Is(err, ErrStateConflict) {
		t.Fatalf("Expected ErrStateConflict, got %v", err)
	}

	if err := f.svc.Close(ctx, chief(), m.ID); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	got, _ := f.svc.Get(ctx, m.ID)
	if got.Status != entity.MaintenanceStatusClosed {
		t.Errorf("Expected closed, got %s", got.Status)
	}
	if got.ClosedAt == nil {
		t.Errorf("ClosedAt not set")
	}
	item, _ = f.repos.Item.FindByID(ctx, f.item.ID)
	if item.Status != entity.ItemStatusInStock {
		t.Errorf("Item should be back in stock, got %s", item.Status)
	}

	if err := f.svc.Close(ctx, chief(), m.ID); !errors.Is(err, ErrStateConflict) {
		t.Errorf("Expected ErrStateConflict on double close, got %v", err)
	}
}

func TestMaintenanceStepResultOnlyByAssignee(t *testing.T) {
	f := setupMaintenanceTest(t)
	ctx := context.Background()

	m, err := f.svc.Create(ctx, chief(), CreateMaintenanceInput{ItemID: f.item.ID, Title: "Lamp dead"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	typical, err := f.svc.CreateTypicalStep(ctx, chief(), "Diagnose", "", 1)
	if err != nil {
		t.Fatalf("CreateTypicalStep failed: %v", err)
	}
	step, err := f.svc.AddStep(ctx, chief(), AddStepInput{
		MaintenanceID: m.ID,
		TypicalStepID: typical.ID,
		AssigneeID:    "tech-1",
	})
	if err != nil {
		t.Fatalf("AddStep failed: %v", err)
	}

	// Someone else cannot write the result
	other := Actor{ID: "tech-2", Roles: []string{entity.RoleTechnician}}
	if err := f.svc.CompleteStep(ctx, other, step.ID, true, ""); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("Expected ErrPermissionDenied, got %v", err)
	}

	assignee := Actor{ID: "tech-1", Roles: []string{entity.RoleTechnician}}
	if err := f.svc.CompleteStep(ctx, assignee, step.ID, true, "replaced lamp"); err != nil {
		t.Fatalf("CompleteStep failed: %v", err)
	}

	// Completed steps cannot be rewritten or reassigned
	if err := f.svc.CompleteStep(ctx, assignee, step.ID, false, ""); !errors.Is(err, ErrStateConflict) {
		t.Errorf("Expected ErrStateConflict on rewrite, got %v", err)
	}
	if err := f.svc.ReassignStep(ctx, chief(), step.ID, "tech-2"); !errors.Is(err, ErrStateConflict) {
		t.Errorf("Expected ErrStateConflict on reassign, got %v", err)
	}
}

func TestMaintenanceStepReassignOnlyByChief(t *testing.T) {
	f := setupMaintenanceTest(t)
	ctx := context.Background()

	m, _ := f.svc.Create(ctx, chief(), CreateMaintenanceInput{ItemID: f.item.ID, Title: "Noise"})
	typical, _ := f.svc.CreateTypicalStep(ctx, chief(), "Inspect", "", 1)
	step, _ := f.svc.AddStep(ctx, chief(), AddStepInput{
		MaintenanceID: m.ID, TypicalStepID: typical.ID, AssigneeID: "tech-1",
	})

	tech := Actor{ID: "tech-1", Roles: []string{entity.RoleTechnician}}
	if err := f.svc.ReassignStep(ctx, tech, step.ID, "tech-2"); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("Expected ErrPermissionDenied, got %v", err)
	}

	if err := f.svc.ReassignStep(ctx, chief(), step.ID, "tech-2"); err != nil {
		t.Fatalf("ReassignStep failed: %v", err)
	}
	got, _ := f.repos.Maintenance.FindStepByID(ctx, step.ID)
	if got.AssigneeID != "tech-2" {
		t.Errorf("Expected tech-2, got %s", got.AssigneeID)
	}
}

func TestMaintenanceSendExternal(t *testing.T) {
	f := setupMaintenanceTest(t)
	ctx := context.Background()
	mgr := assetManager()

	m, _ := f.svc.Create(ctx, chief(), CreateMaintenanceInput{ItemID: f.item.ID, Title: "Dead pixel"})

	rec, err := f.svc.SendExternal(ctx, mgr, m.ID)
	if err != nil {
		t.Fatalf("SendExternal failed: %v", err)
	}
	if rec.Stage() != entity.HandoffStageCreated {
		t.Errorf("Fresh record should be at created stage, got %s", rec.Stage())
	}
	got, _ := f.svc.Get(ctx, m.ID)
	if got.Status != entity.MaintenanceStatusExternal {
		t.Errorf("Expected external, got %s", got.Status)
	}

	// Already external, cannot send again
	if _, err := f.svc.SendExternal(ctx, mgr, m.ID); !errors.Is(err, ErrStateConflict) {
		t.Errorf("Expected ErrStateConflict, got %v", err)
	}
}
