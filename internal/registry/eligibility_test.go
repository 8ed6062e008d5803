package registry_test

import (
	"context"
	"testing"

	"radreport/internal/registry"
	"radreport/internal/testsupport"
)

const testInterval = 365

func sessionIDs(sessions []*registry.ImagingSession) []int64 {
	ids := make([]int64, 0, len(sessions))
	for _, s := range sessions {
		ids = append(ids, s.ID)
	}
	return ids
}

func TestReportingQueueOrdersByPriorityThenScanDate(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	testsupport.NewSession(t, store, testsupport.SessionSeed{
		ID: 1, ProjectCode: "MRH001", SubjectCode: "001",
		ScanDate: "2024-02-01", Priority: registry.PriorityLow,
	})
	testsupport.NewSession(t, store, testsupport.SessionSeed{
		ID: 2, ProjectCode: "MRH001", SubjectCode: "002",
		ScanDate: "2024-03-01", Priority: registry.PriorityHigh,
	})
	testsupport.NewSession(t, store, testsupport.SessionSeed{
		ID: 3, ProjectCode: "MRH001", SubjectCode: "003",
		ScanDate: "2024-01-01", Priority: registry.PriorityHigh,
	})

	queue, err := store.SessionsRequiringReport(context.Background(), testInterval)
	if err != nil {
		t.Fatalf("SessionsRequiringReport failed: %v", err)
	}
	got := sessionIDs(queue)
	want := []int64{3, 2, 1}
	if len(got) != len(want) {
		t.Fatalf("queue = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("queue = %v, want %v", got, want)
		}
	}
}

func TestReportingQueueSkipsTerminalStatuses(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	testsupport.NewSession(t, store, testsupport.SessionSeed{
		ID: 1, ProjectCode: "MRH001", SubjectCode: "001",
		ScanDate: "2024-02-01", Status: registry.StatusNotScanned,
	})
	testsupport.NewSession(t, store, testsupport.SessionSeed{
		ID: 2, ProjectCode: "MRH001", SubjectCode: "002",
		ScanDate: "2024-02-01", Status: registry.StatusExcluded,
	})
	testsupport.NewSession(t, store, testsupport.SessionSeed{
		ID: 3, ProjectCode: "MRH001", SubjectCode: "003",
		ScanDate: "2024-02-01", Status: registry.StatusNotFound,
	})

	queue, err := store.SessionsRequiringReport(context.Background(), testInterval)
	if err != nil {
		t.Fatalf("SessionsRequiringReport failed: %v", err)
	}
	if len(queue) != 1 || queue[0].ID != 3 {
		t.Fatalf("expected only the not_found session, got %v", sessionIDs(queue))
	}
}

func TestNewerSessionSupersedesOlderForSameSubject(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	testsupport.NewSession(t, store, testsupport.SessionSeed{
		ID: 1, ProjectCode: "MRH001", SubjectCode: "001",
		VisitID: "MR01", ScanDate: "2024-01-10",
	})
	testsupport.NewSession(t, store, testsupport.SessionSeed{
		ID: 2, ProjectCode: "MRH001", SubjectCode: "001",
		VisitID: "MR02", ScanDate: "2024-06-01",
	})

	queue, err := store.SessionsRequiringReport(context.Background(), testInterval)
	if err != nil {
		t.Fatalf("SessionsRequiringReport failed: %v", err)
	}
	if len(queue) != 1 || queue[0].ID != 2 {
		t.Fatalf("expected only the newest session, got %v", sessionIDs(queue))
	}
}

func TestNewerTerminalSessionDoesNotSupersede(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	testsupport.NewSession(t, store, testsupport.SessionSeed{
		ID: 1, ProjectCode: "MRH001", SubjectCode: "001",
		VisitID: "MR01", ScanDate: "2024-01-10",
	})
	testsupport.NewSession(t, store, testsupport.SessionSeed{
		ID: 2, ProjectCode: "MRH001", SubjectCode: "001",
		VisitID: "MR02", ScanDate: "2024-06-01", Status: registry.StatusExcluded,
	})

	queue, err := store.SessionsRequiringReport(context.Background(), testInterval)
	if err != nil {
		t.Fatalf("SessionsRequiringReport failed: %v", err)
	}
	if len(queue) != 1 || queue[0].ID != 1 {
		t.Fatalf("expected the older usable session, got %v", sessionIDs(queue))
	}
}

func TestReportWithinIntervalSuppressesSubject(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	older := testsupport.NewSession(t, store, testsupport.SessionSeed{
		ID: 1, ProjectCode: "MRH001", SubjectCode: "001",
		VisitID: "MR01", ScanDate: "2024-01-10",
	})
	testsupport.NewSession(t, store, testsupport.SessionSeed{
		ID: 2, ProjectCode: "MRH001", SubjectCode: "001",
		VisitID: "MR02", ScanDate: "2024-06-01",
	})
	reporter := testsupport.NewReporter(t, store, "reporter@example.org")

	// Reporting the older session covers the newer one: the scan dates are
	// 143 days apart, inside the 365-day window.
	testsupport.NewReport(t, store, older.ID, reporter.ID, registry.ConclusionNone)

	queue, err := store.SessionsRequiringReport(ctx, testInterval)
	if err != nil {
		t.Fatalf("SessionsRequiringReport failed: %v", err)
	}
	if len(queue) != 0 {
		t.Fatalf("expected empty queue, got %v", sessionIDs(queue))
	}

	// With a short window the newer session needs its own report again.
	queue, err = store.SessionsRequiringReport(ctx, 30)
	if err != nil {
		t.Fatalf("SessionsRequiringReport failed: %v", err)
	}
	if len(queue) != 1 || queue[0].ID != 2 {
		t.Fatalf("expected newer session back in queue, got %v", sessionIDs(queue))
	}
}

func TestReportIntervalComparesScanDates(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	older := testsupport.NewSession(t, store, testsupport.SessionSeed{
		ID: 1, ProjectCode: "MRH001", SubjectCode: "001",
		VisitID: "MR01", ScanDate: "2022-01-10",
	})
	testsupport.NewSession(t, store, testsupport.SessionSeed{
		ID: 2, ProjectCode: "MRH001", SubjectCode: "001",
		VisitID: "MR02", ScanDate: "2024-06-01",
	})
	reporter := testsupport.NewReporter(t, store, "reporter@example.org")

	// The report is filed today, but the window is measured between the scan
	// dates, which are well over a year apart.
	testsupport.NewReport(t, store, older.ID, reporter.ID, registry.ConclusionNone)

	queue, err := store.SessionsRequiringReport(ctx, testInterval)
	if err != nil {
		t.Fatalf("SessionsRequiringReport failed: %v", err)
	}
	if len(queue) != 1 || queue[0].ID != 2 {
		t.Fatalf("expected newer session to require a report, got %v", sessionIDs(queue))
	}
}

func TestExportQueueRequiresPresentAndConfirmedTypes(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	ready := testsupport.NewSession(t, store, testsupport.SessionSeed{
		ID: 1, ProjectCode: "MRH001", SubjectCode: "001", ScanDate: "2024-02-01",
		Scans: []registry.ScanSeed{{ArchiveID: "2", TypeName: "t1_mprage_sag", ClinicalHint: true}},
	})
	blocked := testsupport.NewSession(t, store, testsupport.SessionSeed{
		ID: 2, ProjectCode: "MRH001", SubjectCode: "002", ScanDate: "2024-02-01",
		Scans: []registry.ScanSeed{{ArchiveID: "2", TypeName: "mystery_seq"}},
	})
	testsupport.NewSession(t, store, testsupport.SessionSeed{
		ID: 3, ProjectCode: "MRH001", SubjectCode: "003", ScanDate: "2024-02-01",
		Status: registry.StatusNotChecked,
	})

	st, err := store.ScanTypeByName(ctx, "t1_mprage_sag")
	if err != nil || st == nil {
		t.Fatalf("ScanTypeByName: %v %v", st, err)
	}
	if _, err := store.ConfirmScanTypes(ctx, []int64{st.ID}, nil); err != nil {
		t.Fatalf("ConfirmScanTypes failed: %v", err)
	}

	exports, err := store.SessionsReadyForExport(ctx, testInterval)
	if err != nil {
		t.Fatalf("SessionsReadyForExport failed: %v", err)
	}
	if len(exports) != 1 || exports[0].ID != ready.ID {
		t.Fatalf("expected only the confirmed present session, got %v", sessionIDs(exports))
	}

	// The blocked session still requires a report even though it cannot be
	// staged yet.
	queue, err := store.SessionsRequiringReport(ctx, testInterval)
	if err != nil {
		t.Fatalf("SessionsRequiringReport failed: %v", err)
	}
	found := false
	for _, s := range queue {
		if s.ID == blocked.ID {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected session %d in reporting queue, got %v", blocked.ID, sessionIDs(queue))
	}
}

func TestRepairQueueOrdersBySeverity(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	testsupport.NewSession(t, store, testsupport.SessionSeed{
		ID: 1, ProjectCode: "MRH001", SubjectCode: "001",
		ScanDate: "2024-02-01", Status: registry.StatusFixRequired,
	})
	testsupport.NewSession(t, store, testsupport.SessionSeed{
		ID: 2, ProjectCode: "MRH001", SubjectCode: "002",
		ScanDate: "2024-02-01", Status: registry.StatusInvalidLabel,
	})
	testsupport.NewSession(t, store, testsupport.SessionSeed{
		ID: 3, ProjectCode: "MRH001", SubjectCode: "003",
		ScanDate: "2024-02-01", Status: registry.StatusNotFound,
	})
	testsupport.NewSession(t, store, testsupport.SessionSeed{
		ID: 4, ProjectCode: "MRH001", SubjectCode: "004",
		ScanDate: "2024-02-01", Status: registry.StatusPresent,
	})

	queue, err := store.SessionsNeedingRepair(context.Background())
	if err != nil {
		t.Fatalf("SessionsNeedingRepair failed: %v", err)
	}
	got := sessionIDs(queue)
	want := []int64{2, 3, 1}
	if len(got) != len(want) {
		t.Fatalf("repair queue = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("repair queue = %v, want %v", got, want)
		}
	}
}
