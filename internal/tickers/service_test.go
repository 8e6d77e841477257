package tickers

import (
	"context"
	"sync"
	"testing"
	"time"

	apperrors "github.com/stvowns/portfolio-tracker-starter-sub001/internal/errors"
	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/models"
	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/testutil"
)

var serviceNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeFeed struct {
	name    string
	entries []Entry
	err     error
	calls   int
}

func (f *fakeFeed) Name() string { return f.name }

func (f *fakeFeed) List(ctx context.Context) ([]Entry, error) {
	f.calls++
	return f.entries, f.err
}

// memoryLogs is an in-memory LogRecorder.
type memoryLogs struct {
	mu        sync.Mutex
	rows      []*models.SyncLog
	completed map[string]*models.SyncLog
}

func newMemoryLogs() *memoryLogs {
	return &memoryLogs{completed: make(map[string]*models.SyncLog)}
}

func (m *memoryLogs) Start(ctx context.Context, entry *models.SyncLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry.ID = "log-" + entry.SyncType
	entry.Status = models.SyncStatusRunning
	entry.StartedAt = serviceNow
	m.rows = append(m.rows, entry)
	return nil
}

func (m *memoryLogs) Finish(ctx context.Context, entry *models.SyncLog) error {
	return nil
}

func (m *memoryLogs) LastCompleted(ctx context.Context, kind models.SyncKind, syncType string) (*models.SyncLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.completed[syncType], nil
}

func (m *memoryLogs) Recent(ctx context.Context, kind models.SyncKind, limit int) ([]models.SyncLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.SyncLog
	for i := len(m.rows) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, *m.rows[i])
	}
	return out, nil
}

var _ LogRecorder = (*memoryLogs)(nil)

func newTestService(t *testing.T, stock, fund Feed, logs *memoryLogs, minInterval time.Duration) (*Service, *Store) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.TeardownTestDB(t, db) })

	store := NewStore(db, func() time.Time { return serviceNow })
	svc := NewService(store, logs, ServiceConfig{
		Feeds: map[models.AssetType]Feed{
			models.AssetTypeStock: stock,
			models.AssetTypeFund:  fund,
		},
		MinInterval: minInterval,
		Clock:       func() time.Time { return serviceNow },
	})
	return svc, store
}

func TestService_Sync_Full(t *testing.T) {
	stock := &fakeFeed{name: SourceKAP, entries: []Entry{
		{Symbol: "GARAN", Name: "GARANTI BANKASI", City: "ISTANBUL"},
		{Symbol: "THYAO", Name: "TURK HAVA YOLLARI", City: "ISTANBUL"},
	}}
	fund := &fakeFeed{name: "tefas", entries: fundEntries("AAK")}
	logs := newMemoryLogs()
	svc, store := newTestService(t, stock, fund, logs, 0)

	report, err := svc.Sync(context.Background(), SyncRequest{Type: SyncTypeFull, TriggeredBy: models.TriggerCron})
	testutil.AssertNoError(t, err)

	if len(report.Results) != 2 {
		t.Fatalf("expected 2 category results, got %d", len(report.Results))
	}
	if r := report.Results[0]; r.Type != models.AssetTypeStock || r.Status != models.SyncStatusCompleted || r.Successful != 2 {
		t.Errorf("unexpected stock result %+v", r)
	}
	if r := report.Results[1]; r.Type != models.AssetTypeFund || r.Status != models.SyncStatusCompleted || r.TotalRecords != 1 {
		t.Errorf("unexpected fund result %+v", r)
	}

	if len(logs.rows) != 2 {
		t.Fatalf("expected 2 sync logs, got %d", len(logs.rows))
	}
	if logs.rows[0].Status != models.SyncStatusCompleted || logs.rows[0].TriggeredBy != models.TriggerCron {
		t.Errorf("unexpected log row %+v", logs.rows[0])
	}

	counts, err := store.CountByType(context.Background())
	testutil.AssertNoError(t, err)
	if counts[models.AssetTypeStock] != 2 || counts[models.AssetTypeFund] != 1 {
		t.Errorf("unexpected counts %v", counts)
	}
}

func TestService_Sync_PartialFailure(t *testing.T) {
	stock := &fakeFeed{name: SourceKAP, entries: []Entry{
		{Symbol: "GARAN", Name: "GARANTI BANKASI"},
		{Symbol: "NONAME"},
	}}
	logs := newMemoryLogs()
	svc, _ := newTestService(t, stock, &fakeFeed{}, logs, 0)

	report, err := svc.Sync(context.Background(), SyncRequest{Type: SyncTypeBIST})
	testutil.AssertNoError(t, err)

	r := report.Results[0]
	if r.Status != models.SyncStatusPartial || r.Successful != 1 || r.Failed != 1 {
		t.Errorf("unexpected result %+v", r)
	}
	if len(logs.rows[0].ErrorDetails) == 0 {
		t.Error("expected row errors recorded on the sync log")
	}
}

func TestService_Sync_FeedFailureKeepsEntries(t *testing.T) {
	fund := &fakeFeed{name: "tefas", entries: fundEntries("AAK", "AEF")}
	logs := newMemoryLogs()
	svc, store := newTestService(t, &fakeFeed{}, fund, logs, 0)
	ctx := context.Background()

	_, err := svc.Sync(ctx, SyncRequest{Type: SyncTypeTEFAS})
	testutil.AssertNoError(t, err)

	fund.entries = nil
	fund.err = apperrors.WithMessage(apperrors.ErrProviderUnreachable, "both TEFAS official and fallback APIs failed")
	report, err := svc.Sync(ctx, SyncRequest{Type: SyncTypeTEFAS})
	testutil.AssertNoError(t, err)

	r := report.Results[0]
	if r.Status != models.SyncStatusFailed || r.Error == "" {
		t.Errorf("expected failed result with message, got %+v", r)
	}
	counts, err := store.CountByType(ctx)
	testutil.AssertNoError(t, err)
	if counts[models.AssetTypeFund] != 2 {
		t.Errorf("expected previous fund rows kept, got %d", counts[models.AssetTypeFund])
	}
}

func TestService_Sync_EmptyFeedFails(t *testing.T) {
	svc, _ := newTestService(t, &fakeFeed{name: SourceKAP}, &fakeFeed{}, newMemoryLogs(), 0)

	report, err := svc.Sync(context.Background(), SyncRequest{Type: SyncTypeBIST})
	testutil.AssertNoError(t, err)
	if report.Results[0].Status != models.SyncStatusFailed {
		t.Errorf("expected failed status, got %s", report.Results[0].Status)
	}
}

func TestService_Sync_SkipsFreshCategory(t *testing.T) {
	stock := &fakeFeed{name: SourceKAP, entries: []Entry{{Symbol: "GARAN", Name: "GARANTI BANKASI"}}}
	logs := newMemoryLogs()
	logs.completed[string(SyncTypeBIST)] = &models.SyncLog{
		ID:        "previous",
		Status:    models.SyncStatusCompleted,
		StartedAt: serviceNow.Add(-time.Hour),
	}
	svc, _ := newTestService(t, stock, &fakeFeed{}, logs, 24*time.Hour)
	ctx := context.Background()

	report, err := svc.Sync(ctx, SyncRequest{Type: SyncTypeBIST})
	testutil.AssertNoError(t, err)
	if report.Results[0].Status != models.SyncStatusSkipped {
		t.Errorf("expected skipped, got %s", report.Results[0].Status)
	}
	if stock.calls != 0 {
		t.Errorf("expected feed not to be called, got %d calls", stock.calls)
	}

	report, err = svc.Sync(ctx, SyncRequest{Type: SyncTypeBIST, Force: true})
	testutil.AssertNoError(t, err)
	if report.Results[0].Status != models.SyncStatusCompleted {
		t.Errorf("expected forced sync to complete, got %s", report.Results[0].Status)
	}
	if stock.calls != 1 {
		t.Errorf("expected 1 feed call, got %d", stock.calls)
	}
}

func TestService_Sync_InvalidType(t *testing.T) {
	svc, _ := newTestService(t, &fakeFeed{}, &fakeFeed{}, newMemoryLogs(), 0)

	_, err := svc.Sync(context.Background(), SyncRequest{Type: "CRYPTO"})
	testutil.AssertKind(t, err, apperrors.KindValidation)
}

func TestService_Stats(t *testing.T) {
	stock := &fakeFeed{name: SourceKAP, entries: []Entry{
		{Symbol: "GARAN", Name: "GARANTI BANKASI"},
		{Symbol: "THYAO", Name: "TURK HAVA YOLLARI"},
	}}
	svc, _ := newTestService(t, stock, &fakeFeed{}, newMemoryLogs(), 0)
	ctx := context.Background()

	_, err := svc.Sync(ctx, SyncRequest{Type: SyncTypeBIST})
	testutil.AssertNoError(t, err)

	stats, err := svc.Stats(ctx)
	testutil.AssertNoError(t, err)
	if stats.Total != 2 || stats.Counts[models.AssetTypeStock] != 2 {
		t.Errorf("unexpected stats %+v", stats)
	}
	if stats.LastSync == nil || stats.LastSync.SyncType != string(SyncTypeBIST) {
		t.Errorf("expected last sync to be the BIST run, got %+v", stats.LastSync)
	}
}

func TestParseSyncType(t *testing.T) {
	for _, in := range []string{"bist", "TEFAS", " full "} {
		if _, ok := ParseSyncType(in); !ok {
			t.Errorf("expected %q to parse", in)
		}
	}
	if _, ok := ParseSyncType("crypto"); ok {
		t.Error("expected crypto to be rejected")
	}
}

func TestService_Sync_UnconfiguredFeed(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewService(NewStore(db, nil), nil, ServiceConfig{})

	report, err := svc.Sync(context.Background(), SyncRequest{Type: SyncTypeBIST})
	testutil.AssertNoError(t, err)
	if report.Results[0].Status != models.SyncStatusFailed {
		t.Errorf("expected failed status, got %s", report.Results[0].Status)
	}
}
