package exporter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"radreport/internal/config"
	"radreport/internal/logging"
	"radreport/internal/registry"
	"radreport/internal/services"
	"radreport/internal/services/xnat"
)

// lockFileName guards against concurrent export runs on the same registry.
const lockFileName = "export.lock"

// Exporter transfers confirmed clinical scans from the source archive to the
// destination archive, verifying digests before marking progress.
type Exporter struct {
	store       *registry.Store
	source      xnat.Archive
	destination xnat.Archive
	cfg         *config.Config
	logger      *slog.Logger
}

// New constructs an Exporter.
func New(store *registry.Store, source, destination xnat.Archive, cfg *config.Config, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{
		store:       store,
		source:      source,
		destination: destination,
		cfg:         cfg,
		logger:      logging.WithComponent(logger, "exporter"),
	}
}

// SessionFailure records one session whose export aborted.
type SessionFailure struct {
	SessionID int64
	Err       error
}

// Summary tallies one export run.
type Summary struct {
	RunID         string
	Reclassified  int64
	Sessions      int
	ScansExported int
	Failures      []SessionFailure
}

// Run performs one export pass. Concurrent runs are serialized by a file
// lock; a second invocation fails fast instead of queueing. Connectivity
// failures abort the run, checksum mismatches and missing source scans abort
// only the affected session, with its scratch files retained for inspection.
func (e *Exporter) Run(ctx context.Context) (*Summary, error) {
	runLock := flock.New(filepath.Join(e.cfg.Paths.DataDir, lockFileName))
	locked, err := runLock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire export lock: %w", err)
	}
	if !locked {
		return nil, services.Wrap(services.ErrConflict, "exporter", "run",
			"another export run holds the lock", nil)
	}
	defer runLock.Unlock()

	summary := &Summary{RunID: uuid.NewString()}
	e.logger.Info("export run starting", "run_id", summary.RunID)

	// Settle sessions whose confirmed types turned out all non-clinical
	// before computing the queue.
	summary.Reclassified, err = e.store.ReclassifyFoundNoClinical(ctx)
	if err != nil {
		return summary, err
	}
	if summary.Reclassified > 0 {
		e.logger.Info("sessions reclassified as found-no-clinical", "count", summary.Reclassified)
	}

	sessions, err := e.store.SessionsReadyForExport(ctx, e.cfg.Reporting.ReportIntervalDays)
	if err != nil {
		return summary, err
	}

	scratchRoot := filepath.Join(e.cfg.Paths.StagingDir, summary.RunID)
	for _, sess := range sessions {
		exported, err := e.exportSession(ctx, sess, scratchRoot)
		summary.ScansExported += exported
		if err != nil {
			if errors.Is(err, services.ErrConnectivity) {
				e.logger.Error("archive unreachable, aborting run",
					"run_id", summary.RunID, "session", sess.ID, "error", err)
				return summary, err
			}
			e.logger.Error("session export failed",
				"session", sess.ID, "error", err)
			summary.Failures = append(summary.Failures, SessionFailure{SessionID: sess.ID, Err: err})
			continue
		}
		summary.Sessions++
	}

	// The scratch root only holds retained evidence of failed transfers by
	// now; a clean run removes it entirely.
	if len(summary.Failures) == 0 {
		if err := os.RemoveAll(scratchRoot); err != nil {
			e.logger.Warn("could not remove scratch directory", "path", scratchRoot, "error", err)
		}
	}

	e.logger.Info("export run finished",
		"run_id", summary.RunID,
		"sessions", summary.Sessions,
		"scans", summary.ScansExported,
		"failed", len(summary.Failures))
	return summary, nil
}

// exportSession transfers every confirmed clinical, unexported scan of one
// session. Progress is committed per scan, so a retried run resumes where
// this one stopped.
func (e *Exporter) exportSession(ctx context.Context, sess *registry.ImagingSession, scratchRoot string) (int, error) {
	scans, err := e.store.ClinicalUnexportedScans(ctx, sess.ID)
	if err != nil {
		return 0, err
	}
	if len(scans) == 0 {
		return 0, nil
	}

	srcExp, err := e.source.Experiment(ctx, sess.ProjectCode, sess.ArchiveID())
	if err != nil {
		return 0, err
	}

	destProject := e.cfg.Destination.Project
	destSubject := sess.SubjectCode
	destLabel := strconv.FormatInt(sess.ID, 10)
	if err := e.destination.EnsureSubject(ctx, destProject, destSubject); err != nil {
		return 0, err
	}
	if err := e.destination.EnsureExperiment(ctx, destProject, destSubject, destLabel); err != nil {
		return 0, err
	}

	exported := 0
	for _, scan := range scans {
		if err := e.exportScan(ctx, sess, srcExp.ID, scan, destProject, destSubject, destLabel, scratchRoot); err != nil {
			return exported, err
		}
		exported++
	}

	// Header re-extraction is best effort: a failure is logged and left for
	// the operator, never retried within the run.
	if err := e.destination.PullDataFromHeaders(ctx, destProject, destSubject, destLabel); err != nil {
		if errors.Is(err, services.ErrConnectivity) {
			return exported, err
		}
		e.logger.Warn("header re-extraction failed",
			"session", sess.ID, "error", err)
	}
	e.logger.Info("session exported", "session", sess.ID, "scans", exported)
	return exported, nil
}

func (e *Exporter) exportScan(ctx context.Context, sess *registry.ImagingSession, srcExpID string, scan *registry.Scan, destProject, destSubject, destLabel, scratchRoot string) error {
	srcFiles, err := e.source.ScanFiles(ctx, srcExpID, scan.ArchiveID)
	if err != nil {
		return err
	}
	if len(srcFiles) == 0 {
		return services.Wrap(services.ErrNotFound, "exporter", "export",
			fmt.Sprintf("scan %s of session %d has no files on the source archive", scan.ArchiveID, sess.ID), nil)
	}

	scratch := filepath.Join(scratchRoot, strconv.FormatInt(sess.ID, 10), scan.ArchiveID)
	if err := os.MkdirAll(scratch, 0o755); err != nil {
		return fmt.Errorf("create scratch directory: %w", err)
	}

	if err := e.destination.EnsureScan(ctx, destProject, destSubject, destLabel, scan.ArchiveID, scan.TypeName); err != nil {
		return err
	}

	for _, file := range srcFiles {
		localPath := filepath.Join(scratch, file.Name)
		if err := e.downloadTo(ctx, file.URI, localPath); err != nil {
			return err
		}
		if err := e.uploadFrom(ctx, destProject, destSubject, destLabel, scan.ArchiveID, file.Name, localPath); err != nil {
			return err
		}
	}

	if err := e.verifyDigests(ctx, scan, srcFiles, destProject, destLabel); err != nil {
		// Scratch files stay behind for inspection.
		return err
	}

	if err := e.store.MarkScanExported(ctx, scan.ID); err != nil {
		return err
	}
	if err := os.RemoveAll(scratch); err != nil {
		e.logger.Warn("could not remove scan scratch", "path", scratch, "error", err)
	}
	e.logger.Info("scan exported",
		"session", sess.ID, "scan", scan.ArchiveID, "type", scan.TypeName, "files", len(srcFiles))
	return nil
}

func (e *Exporter) downloadTo(ctx context.Context, uri, localPath string) error {
	out, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("create scratch file: %w", err)
	}
	if err := e.source.DownloadFile(ctx, uri, out); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func (e *Exporter) uploadFrom(ctx context.Context, project, subject, label, scanID, name, localPath string) error {
	in, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open scratch file: %w", err)
	}
	defer in.Close()
	return e.destination.UploadScanFile(ctx, project, subject, label, scanID, name, in)
}

// verifyDigests compares the per-file checksums catalogued by both archives.
// Any missing or differing digest fails the scan with a checksum mismatch.
func (e *Exporter) verifyDigests(ctx context.Context, scan *registry.Scan, srcFiles []xnat.File, destProject, destLabel string) error {
	destExp, err := e.destination.Experiment(ctx, destProject, destLabel)
	if err != nil {
		return err
	}
	destFiles, err := e.destination.ScanFiles(ctx, destExp.ID, scan.ArchiveID)
	if err != nil {
		return err
	}
	destDigests := make(map[string]string, len(destFiles))
	for _, file := range destFiles {
		destDigests[file.Name] = strings.ToLower(file.Digest)
	}

	for _, file := range srcFiles {
		got, ok := destDigests[file.Name]
		if !ok {
			return services.Wrap(services.ErrChecksumMismatch, "exporter", "verify",
				fmt.Sprintf("file %s of scan %s missing on destination", file.Name, scan.ArchiveID), nil)
		}
		if got != strings.ToLower(file.Digest) {
			return services.Wrap(services.ErrChecksumMismatch, "exporter", "verify",
				fmt.Sprintf("file %s of scan %s: source %s, destination %s",
					file.Name, scan.ArchiveID, file.Digest, got), nil)
		}
	}
	return nil
}
