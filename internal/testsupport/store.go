package testsupport

import (
	"context"
	"testing"
	"time"

	"radreport/internal/config"
	"radreport/internal/registry"
)

// MustOpenStore opens a registry.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *registry.Store {
	t.Helper()

	store, err := registry.Open(cfg)
	if err != nil {
		t.Fatalf("registry.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// SessionSeed describes a session to create for a test.
type SessionSeed struct {
	ID          int64
	ProjectCode string
	SubjectCode string
	VisitID     string
	ScanDate    string
	Priority    registry.Priority
	Status      registry.DataStatus
	Scans       []registry.ScanSeed
}

// NewSession creates a project, subject, and session for tests. ScanDate uses
// the 2006-01-02 layout.
func NewSession(t testing.TB, store *registry.Store, seed SessionSeed) *registry.ImagingSession {
	t.Helper()

	ctx := context.Background()
	project, err := store.GetOrCreateProject(ctx, seed.ProjectCode, seed.ProjectCode)
	if err != nil {
		t.Fatalf("GetOrCreateProject: %v", err)
	}
	subject, err := store.GetOrCreateSubject(ctx, &registry.Subject{Code: seed.SubjectCode})
	if err != nil {
		t.Fatalf("GetOrCreateSubject: %v", err)
	}

	scanDate, err := time.Parse("2006-01-02", seed.ScanDate)
	if err != nil {
		t.Fatalf("parse scan date %q: %v", seed.ScanDate, err)
	}
	priority := seed.Priority
	if priority == 0 {
		priority = registry.PriorityLow
	}
	status := seed.Status
	if status == "" {
		status = registry.StatusPresent
	}
	visit := seed.VisitID
	if visit == "" {
		visit = "MR01"
	}

	sess := &registry.ImagingSession{
		ID:               seed.ID,
		ProjectID:        project.ID,
		SubjectID:        subject.ID,
		ProjectCode:      project.Code,
		SubjectCode:      subject.Code,
		ArchiveSubjectID: seed.SubjectCode,
		ArchiveVisitID:   visit,
		ScanDate:         scanDate,
		Priority:         priority,
		DataStatus:       status,
	}
	if err := store.CreateSessionWithScans(ctx, sess, seed.Scans, nil); err != nil {
		t.Fatalf("CreateSessionWithScans: %v", err)
	}
	return sess
}

// NewReporter registers an active user holding the reporter role.
func NewReporter(t testing.TB, store *registry.Store, email string) *registry.User {
	t.Helper()

	user := &registry.User{
		FirstName: "Test",
		LastName:  email,
		Email:     email,
		Active:    true,
		Roles:     []int{registry.RoleReporter},
	}
	if err := store.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return user
}

// NewReport files a non-dummy report against the session's scans.
func NewReport(t testing.TB, store *registry.Store, sessionID, reporterID int64, conclusion registry.Conclusion) *registry.Report {
	t.Helper()

	report := &registry.Report{
		SessionID:  sessionID,
		ReporterID: reporterID,
		Date:       time.Now().UTC(),
		Findings:   "no remarkable findings",
		Conclusion: conclusion,
		Modality:   registry.ModalityMR,
	}
	if err := store.CreateReport(context.Background(), report); err != nil {
		t.Fatalf("CreateReport: %v", err)
	}
	return report
}
