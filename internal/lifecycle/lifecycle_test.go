package lifecycle_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"radreport/internal/lifecycle"
	"radreport/internal/registry"
	"radreport/internal/services"
	"radreport/internal/services/xnat"
	"radreport/internal/testsupport"
)

type stubArchive struct {
	experiments map[string]*xnat.Experiment
	scans       map[string][]xnat.Scan
}

func (s *stubArchive) Experiment(_ context.Context, _, label string) (*xnat.Experiment, error) {
	exp, ok := s.experiments[label]
	if !ok {
		return nil, services.Wrap(services.ErrNotFound, "xnat", "experiment", label, nil)
	}
	return exp, nil
}

func (s *stubArchive) Scans(_ context.Context, experimentID string) ([]xnat.Scan, error) {
	return s.scans[experimentID], nil
}

func (s *stubArchive) ScanFiles(context.Context, string, string) ([]xnat.File, error) {
	return nil, nil
}
func (s *stubArchive) DownloadFile(context.Context, string, io.Writer) error { return nil }
func (s *stubArchive) EnsureSubject(context.Context, string, string) error   { return nil }
func (s *stubArchive) EnsureExperiment(context.Context, string, string, string) error {
	return nil
}
func (s *stubArchive) EnsureScan(context.Context, string, string, string, string, string) error {
	return nil
}
func (s *stubArchive) UploadScanFile(context.Context, string, string, string, string, string, io.Reader) error {
	return nil
}
func (s *stubArchive) PullDataFromHeaders(context.Context, string, string, string) error {
	return nil
}

func TestApplyRepairRejectsNonFixStatuses(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.NewSession(t, store, testsupport.SessionSeed{
		ID: 1, ProjectCode: "MRH017", SubjectCode: "100",
		ScanDate: "2024-02-01", Status: registry.StatusNotFound,
	})

	mgr := lifecycle.New(store, &stubArchive{}, nil)
	_, err := mgr.ApplyRepair(context.Background(), lifecycle.Repair{
		SessionID: 1,
		Status:    registry.StatusNotChecked,
	})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestApplyRepairToPresentRequiresResolvableIdentifier(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.NewSession(t, store, testsupport.SessionSeed{
		ID: 1, ProjectCode: "MRH017", SubjectCode: "100",
		VisitID: "MR01", ScanDate: "2024-02-01", Status: registry.StatusNotFound,
	})

	mgr := lifecycle.New(store, &stubArchive{}, nil)
	_, err := mgr.ApplyRepair(context.Background(), lifecycle.Repair{
		SessionID: 1,
		Status:    registry.StatusPresent,
		SubjectID: "100",
		VisitID:   "MR01",
	})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if err == nil || !strings.Contains(err.Error(), "MRH017_100_MR01") {
		t.Fatalf("error must name the unresolvable identifier, got %v", err)
	}

	sess, getErr := store.SessionByID(context.Background(), 1)
	if getErr != nil {
		t.Fatalf("SessionByID failed: %v", getErr)
	}
	if sess.DataStatus != registry.StatusNotFound {
		t.Fatalf("rejected repair must not commit, status = %s", sess.DataStatus)
	}
}

func TestApplyRepairToPresentSyncsAndSettlesStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.NewSession(t, store, testsupport.SessionSeed{
		ID: 1, ProjectCode: "MRH017", SubjectCode: "100",
		VisitID: "MR01", ScanDate: "2024-02-01", Status: registry.StatusInvalidLabel,
	})

	archive := &stubArchive{
		experiments: map[string]*xnat.Experiment{
			"MRH017_101_MR01": {ID: "EXP100"},
		},
		scans: map[string][]xnat.Scan{
			"EXP100": {{ID: "2", Type: "t1_mprage_sag"}},
		},
	}
	mgr := lifecycle.New(store, archive, nil)

	sess, err := mgr.ApplyRepair(context.Background(), lifecycle.Repair{
		SessionID: 1,
		Status:    registry.StatusPresent,
		SubjectID: "101",
		VisitID:   "MR01",
	})
	if err != nil {
		t.Fatalf("ApplyRepair failed: %v", err)
	}
	if sess.DataStatus != registry.StatusPresent {
		t.Fatalf("status = %s, want present", sess.DataStatus)
	}
	if sess.ArchiveSubjectID != "101" {
		t.Fatalf("archive subject = %q, want 101", sess.ArchiveSubjectID)
	}

	scans, err := store.ScansBySession(context.Background(), 1)
	if err != nil {
		t.Fatalf("ScansBySession failed: %v", err)
	}
	if len(scans) != 1 || scans[0].TypeName != "t1_mprage_sag" {
		t.Fatalf("expected synced scan, got %#v", scans)
	}
}

func TestApplyRepairToPresentDerivesFoundNoClinical(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.NewSession(t, store, testsupport.SessionSeed{
		ID: 1, ProjectCode: "MRH017", SubjectCode: "100",
		VisitID: "MR01", ScanDate: "2024-02-01", Status: registry.StatusNotFound,
	})

	archive := &stubArchive{
		experiments: map[string]*xnat.Experiment{
			"MRH017_100_MR01": {ID: "EXP100"},
		},
		scans: map[string][]xnat.Scan{
			"EXP100": {{ID: "1", Type: "localizer"}},
		},
	}
	mgr := lifecycle.New(store, archive, nil)
	ctx := context.Background()

	// First pass leaves the session Present while the type awaits
	// confirmation.
	sess, err := mgr.ApplyRepair(ctx, lifecycle.Repair{
		SessionID: 1, Status: registry.StatusPresent,
	})
	if err != nil {
		t.Fatalf("ApplyRepair failed: %v", err)
	}
	if sess.DataStatus != registry.StatusPresent {
		t.Fatalf("status = %s, want present", sess.DataStatus)
	}

	st, err := store.ScanTypeByName(ctx, "localizer")
	if err != nil || st == nil {
		t.Fatalf("ScanTypeByName: %v %v", st, err)
	}
	if _, err := store.ConfirmScanTypes(ctx, nil, []int64{st.ID}); err != nil {
		t.Fatalf("ConfirmScanTypes failed: %v", err)
	}

	// With every type confirmed non-clinical the repair settles on
	// found_no_clinical instead of Present.
	sess, err = mgr.ApplyRepair(ctx, lifecycle.Repair{
		SessionID: 1, Status: registry.StatusPresent,
	})
	if err != nil {
		t.Fatalf("ApplyRepair failed: %v", err)
	}
	if sess.DataStatus != registry.StatusFoundNoClinical {
		t.Fatalf("status = %s, want found_no_clinical", sess.DataStatus)
	}
}

func TestRecheckSettlesNotFound(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.NewSession(t, store, testsupport.SessionSeed{
		ID: 1, ProjectCode: "MRH017", SubjectCode: "100",
		VisitID: "MR01", ScanDate: "2024-02-01", Status: registry.StatusPresent,
	})

	mgr := lifecycle.New(store, &stubArchive{}, nil)
	sess, err := mgr.Recheck(context.Background(), 1)
	if err != nil {
		t.Fatalf("Recheck failed: %v", err)
	}
	if sess.DataStatus != registry.StatusNotFound {
		t.Fatalf("status = %s, want not_found", sess.DataStatus)
	}
}

func TestRecheckUnknownSession(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	mgr := lifecycle.New(store, &stubArchive{}, nil)
	_, err := mgr.Recheck(context.Background(), 404)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}
