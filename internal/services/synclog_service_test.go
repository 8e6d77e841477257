package services

import (
	"context"
	"testing"
	"time"

	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/models"
	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/testutil"
)

func TestSyncLogService_StartFinish(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := NewSyncLogService(db, func() time.Time { return now })
	ctx := context.Background()

	entry := &models.SyncLog{Kind: models.SyncKindPrice, SyncType: "all", TriggeredBy: models.TriggerCron}
	testutil.AssertNoError(t, svc.Start(ctx, entry))
	if entry.ID == "" || entry.Status != models.SyncStatusRunning {
		t.Fatalf("unexpected started entry %+v", entry)
	}

	now = now.Add(1500 * time.Millisecond)
	entry.Status = models.SyncStatusCompleted
	entry.TotalRecords = 3
	entry.Successful = 3
	testutil.AssertNoError(t, svc.Finish(ctx, entry))

	var stored models.SyncLog
	testutil.AssertNoError(t, db.First(&stored, "id = ?", entry.ID).Error)
	if stored.Status != models.SyncStatusCompleted || stored.DurationMs != 1500 || stored.CompletedAt == nil {
		t.Errorf("unexpected stored log %+v", stored)
	}
}

func TestSyncLogService_LastCompleted(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := NewSyncLogService(db, func() time.Time { return now })
	ctx := context.Background()

	got, err := svc.LastCompleted(ctx, models.SyncKindTicker, "BIST")
	testutil.AssertNoError(t, err)
	if got != nil {
		t.Fatalf("expected no completed sync, got %+v", got)
	}

	record := func(syncType string, status models.SyncStatus) *models.SyncLog {
		entry := &models.SyncLog{Kind: models.SyncKindTicker, SyncType: syncType, TriggeredBy: models.TriggerManual}
		testutil.AssertNoError(t, svc.Start(ctx, entry))
		entry.Status = status
		testutil.AssertNoError(t, svc.Finish(ctx, entry))
		now = now.Add(time.Minute)
		return entry
	}

	completed := record("BIST", models.SyncStatusCompleted)
	record("BIST", models.SyncStatusPartial)
	record("TEFAS", models.SyncStatusCompleted)

	got, err = svc.LastCompleted(ctx, models.SyncKindTicker, "BIST")
	testutil.AssertNoError(t, err)
	if got == nil || got.ID != completed.ID {
		t.Errorf("expected the completed BIST run, got %+v", got)
	}
}

func TestSyncLogService_Recent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := NewSyncLogService(db, func() time.Time { return now })
	ctx := context.Background()
	user := testutil.CreateTestUser(t, db)
	other := testutil.CreateTestUser(t, db)

	start := func(userID *string, triggeredBy string) {
		entry := &models.SyncLog{Kind: models.SyncKindPrice, SyncType: "all", TriggeredBy: triggeredBy, UserID: userID}
		testutil.AssertNoError(t, svc.Start(ctx, entry))
		now = now.Add(time.Minute)
	}
	start(&user.ID, models.TriggerManual)
	start(&other.ID, models.TriggerManual)
	start(nil, models.TriggerCron)

	all, err := svc.Recent(ctx, models.SyncKindPrice, 0)
	testutil.AssertNoError(t, err)
	if len(all) != 3 || all[0].TriggeredBy != models.TriggerCron {
		t.Errorf("expected 3 logs newest first, got %+v", all)
	}

	mine, err := svc.RecentForUser(ctx, models.SyncKindPrice, user.ID, 10)
	testutil.AssertNoError(t, err)
	if len(mine) != 2 {
		t.Errorf("expected own and scheduled runs, got %d", len(mine))
	}

	limited, err := svc.Recent(ctx, models.SyncKindPrice, 1)
	testutil.AssertNoError(t, err)
	if len(limited) != 1 {
		t.Errorf("expected 1 log, got %d", len(limited))
	}
}
