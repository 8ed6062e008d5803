package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"radreport/internal/classify"
	"radreport/internal/logging"
	"radreport/internal/registry"
	"radreport/internal/services"
	"radreport/internal/services/xnat"
)

// Manager drives data-status transitions against the registry and the source
// archive.
type Manager struct {
	store  *registry.Store
	source xnat.Archive
	logger *slog.Logger
}

// New constructs a Manager.
func New(store *registry.Store, source xnat.Archive, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:  store,
		source: source,
		logger: logging.WithComponent(logger, "lifecycle"),
	}
}

// Repair is an admin correction to a broken session. SubjectID and VisitID
// replace the session's archive coordinates when set; left empty, the current
// coordinates are kept.
type Repair struct {
	SessionID int64
	Status    registry.DataStatus
	SubjectID string
	VisitID   string
}

// ApplyRepair validates and commits one repair. Setting Present or
// FixRequired requires a resolvable archive identifier: the triple is looked
// up on the source archive first, and an unresolvable identifier rejects the
// whole repair with nothing committed. Repair to Present re-derives the final
// status, so a session whose confirmed types are all non-clinical lands on
// FoundNoClinical instead.
func (m *Manager) ApplyRepair(ctx context.Context, repair Repair) (*registry.ImagingSession, error) {
	if !repair.Status.IsFixOption() {
		return nil, services.Wrap(services.ErrValidation, "lifecycle", "repair",
			fmt.Sprintf("status %q is not a permitted fix", repair.Status), nil)
	}
	sess, err := m.store.SessionByID(ctx, repair.SessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, services.Wrap(services.ErrNotFound, "lifecycle", "repair",
			fmt.Sprintf("session %d", repair.SessionID), nil)
	}

	subjectID := strings.TrimSpace(repair.SubjectID)
	visitID := strings.TrimSpace(repair.VisitID)
	if subjectID == "" {
		subjectID = sess.ArchiveSubjectID
	}
	if visitID == "" {
		visitID = sess.ArchiveVisitID
	}

	status := repair.Status
	if status == registry.StatusPresent || status == registry.StatusFixRequired {
		candidate := *sess
		candidate.ArchiveSubjectID = subjectID
		candidate.ArchiveVisitID = visitID
		archiveID := candidate.ArchiveID()

		exp, err := m.source.Experiment(ctx, sess.ProjectCode, archiveID)
		if errors.Is(err, services.ErrNotFound) {
			return nil, services.Wrap(services.ErrValidation, "lifecycle", "repair",
				fmt.Sprintf("archive id %s could not be resolved on the source archive", archiveID), nil)
		}
		if err != nil {
			return nil, err
		}

		if status == registry.StatusPresent {
			if err := m.syncScans(ctx, sess.ID, exp.ID); err != nil {
				return nil, err
			}
			status, err = m.derivePresent(ctx, sess.ID)
			if err != nil {
				return nil, err
			}
		}
	}

	if err := m.store.SetSessionCoordinates(ctx, sess.ID, subjectID, visitID, status); err != nil {
		return nil, err
	}
	m.logger.Info("session repaired",
		"session", sess.ID,
		"from", string(sess.DataStatus),
		"to", string(status))
	return m.store.SessionByID(ctx, sess.ID)
}

// Recheck looks the session up on the source archive and settles its status:
// Present (or FoundNoClinical) when found, NotFound otherwise. Newly seen
// scans are recorded with a heuristic classification.
func (m *Manager) Recheck(ctx context.Context, sessionID int64) (*registry.ImagingSession, error) {
	sess, err := m.store.SessionByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, services.Wrap(services.ErrNotFound, "lifecycle", "recheck",
			fmt.Sprintf("session %d", sessionID), nil)
	}

	exp, err := m.source.Experiment(ctx, sess.ProjectCode, sess.ArchiveID())
	if errors.Is(err, services.ErrNotFound) {
		if err := m.store.UpdateSessionStatus(ctx, sess.ID, registry.StatusNotFound); err != nil {
			return nil, err
		}
		m.logger.Info("session not found on archive", "session", sess.ID, "archive_id", sess.ArchiveID())
		return m.store.SessionByID(ctx, sess.ID)
	}
	if err != nil {
		return nil, err
	}

	if err := m.syncScans(ctx, sess.ID, exp.ID); err != nil {
		return nil, err
	}
	status, err := m.derivePresent(ctx, sess.ID)
	if err != nil {
		return nil, err
	}
	if err := m.store.UpdateSessionStatus(ctx, sess.ID, status); err != nil {
		return nil, err
	}
	m.logger.Info("session rechecked", "session", sess.ID, "status", string(status))
	return m.store.SessionByID(ctx, sess.ID)
}

func (m *Manager) syncScans(ctx context.Context, sessionID int64, experimentID string) error {
	scans, err := m.source.Scans(ctx, experimentID)
	if err != nil {
		return err
	}
	seeds := make([]registry.ScanSeed, 0, len(scans))
	for _, scan := range scans {
		seeds = append(seeds, registry.ScanSeed{
			ArchiveID:    scan.ID,
			TypeName:     scan.Type,
			ClinicalHint: classify.LikelyClinical(scan.Type),
		})
	}
	created, err := m.store.SyncScans(ctx, sessionID, seeds)
	if err != nil {
		return err
	}
	if created > 0 {
		m.logger.Info("scans synchronized", "session", sessionID, "created", created)
	}
	return nil
}

// derivePresent applies the clinical-scan rule: a session whose types are all
// confirmed non-clinical is FoundNoClinical, anything else stays Present.
func (m *Manager) derivePresent(ctx context.Context, sessionID int64) (registry.DataStatus, error) {
	hasUnconfirmed, hasClinical, err := m.store.SessionClinicalState(ctx, sessionID)
	if err != nil {
		return registry.StatusUnknown, err
	}
	if !hasUnconfirmed && !hasClinical {
		return registry.StatusFoundNoClinical, nil
	}
	return registry.StatusPresent, nil
}
