package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"radreport/internal/classify"
	"radreport/internal/logging"
	"radreport/internal/registry"
	"radreport/internal/services"
	"radreport/internal/services/xnat"
)

// darisIDRe decomposes the legacy hierarchical identifier
// 1008.2.<project>.<subject>[.1.<visit>].
var darisIDRe = regexp.MustCompile(`^1008\.2\.(\d+)\.(\d+)(?:\.1\.(\d+))?`)

// visitNumberRe splits a raw visit identifier into its numeral and an
// optional suffix.
var visitNumberRe = regexp.MustCompile(`^(\d+)(.*)$`)

// legacyElsewherePrefix marks identifiers from the superseded university
// archive; their data never reaches the source archive.
const legacyElsewherePrefix = "1.5."

// projectWhitelist holds the project code prefixes the feed may contain.
var projectWhitelist = map[string]struct{}{
	"MRH": {},
	"MMH": {},
	"CLF": {},
}

// petCapablePrefix marks projects whose sessions acquire PET alongside MR.
const petCapablePrefix = "MMH"

// Summary tallies one import run by study identifier.
type Summary struct {
	Imported []string
	Previous []string
	Skipped  []string
}

// Importer ingests legacy feed rows into the registry, consulting the source
// archive for the scans of each new session.
type Importer struct {
	store  *registry.Store
	source xnat.Archive
	logger *slog.Logger

	titleCaser cases.Caser
	reporterID int64
}

// New constructs an Importer.
func New(store *registry.Store, source xnat.Archive, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{
		store:      store,
		source:     source,
		logger:     logging.WithComponent(logger, "importer"),
		titleCaser: cases.Title(language.Und),
	}
}

// Run imports every candidate row. Rows already in the registry count as
// Previous, rows outside the project whitelist as Skipped. Malformed dates
// abort the run so a corrupt feed is fixed rather than half-ingested, and
// source connectivity failures abort it too.
func (imp *Importer) Run(ctx context.Context, rows []CandidateRow) (*Summary, error) {
	summary := &Summary{}
	for _, row := range rows {
		outcome, err := imp.importRow(ctx, row)
		if err != nil {
			return summary, err
		}
		switch outcome {
		case outcomeImported:
			summary.Imported = append(summary.Imported, row.StudyID)
			imp.logger.Info("session imported", "study_id", row.StudyID, "project", row.ProjectID)
		case outcomePrevious:
			summary.Previous = append(summary.Previous, row.StudyID)
		case outcomeSkipped:
			summary.Skipped = append(summary.Skipped, row.StudyID)
			imp.logger.Info("session skipped", "study_id", row.StudyID, "project", row.ProjectID)
		}
	}
	imp.logger.Info("import finished",
		"imported", len(summary.Imported),
		"previous", len(summary.Previous),
		"skipped", len(summary.Skipped))
	return summary, nil
}

type importOutcome int

const (
	outcomeImported importOutcome = iota
	outcomePrevious
	outcomeSkipped
)

func (imp *Importer) importRow(ctx context.Context, row CandidateRow) (importOutcome, error) {
	status := registry.StatusPresent

	projectCode := strings.TrimSpace(row.ProjectID)
	if projectCode == "" {
		status = registry.StatusInvalidLabel
	} else if len(projectCode) < 3 {
		return outcomeSkipped, nil
	} else if _, ok := projectWhitelist[projectCode[:3]]; !ok {
		return outcomeSkipped, nil
	}

	studyID, err := strconv.ParseInt(strings.TrimSpace(row.StudyID), 10, 64)
	if err != nil {
		return 0, services.Wrap(services.ErrValidation, "importer", "parse",
			fmt.Sprintf("study id %q is not numeric", row.StudyID), nil)
	}

	existing, err := imp.store.SessionByID(ctx, studyID)
	if err != nil {
		return 0, err
	}
	if existing != nil {
		return outcomePrevious, nil
	}

	scanDate, err := parseFeedDate(row.ScanDate)
	if err != nil {
		return 0, services.Wrap(services.ErrValidation, "importer", "parse",
			fmt.Sprintf("scan date of study %d", studyID), err)
	}
	var dob time.Time
	if row.DOB != "" {
		dob, err = parseFeedDate(row.DOB)
		if err != nil {
			return 0, services.Wrap(services.ErrValidation, "importer", "parse",
				fmt.Sprintf("date of birth of study %d", studyID), err)
		}
	}

	project, err := imp.store.GetOrCreateProject(ctx, projectCode, projectCode)
	if err != nil {
		return 0, err
	}
	subject, err := imp.store.GetOrCreateSubject(ctx, &registry.Subject{
		Code:      strings.TrimSpace(row.SubjectID),
		FirstName: imp.titleCaser.String(strings.ToLower(row.FirstName)),
		LastName:  imp.titleCaser.String(strings.ToLower(row.LastName)),
		DOB:       dob,
	})
	if err != nil {
		return 0, err
	}

	archiveSubject, archiveVisit, status := decomposeIdentifiers(row, status)
	archiveSubject = zeroPadSubject(archiveSubject)

	allReportsFiled := row.MRReport != ""
	visitPrefix := "MR"
	if strings.HasPrefix(projectCode, petCapablePrefix) {
		visitPrefix = "MRPT"
		allReportsFiled = allReportsFiled && row.PETReport != ""
	}
	archiveVisit, status = formatVisit(archiveVisit, visitPrefix, status)

	sess := &registry.ImagingSession{
		ID:               studyID,
		ProjectID:        project.ID,
		SubjectID:        subject.ID,
		ProjectCode:      project.Code,
		SubjectCode:      subject.Code,
		ArchiveSubjectID: archiveSubject,
		ArchiveVisitID:   archiveVisit,
		LegacyCode:       row.DarisID,
		ScanDate:         scanDate,
		Priority:         registry.PriorityLow,
	}

	var seeds []registry.ScanSeed
	switch {
	case allReportsFiled:
		// Every legacy report is filed, so the archive is never consulted.
		status = registry.StatusNotChecked
	case status == registry.StatusInvalidLabel || status == registry.StatusArchivedElsewhere:
		// Unresolvable identifiers go straight to the repair queue.
	default:
		seeds, status, err = imp.lookupScans(ctx, sess, status)
		if err != nil {
			return 0, err
		}
	}
	sess.DataStatus = status

	reports, err := imp.dummyReports(ctx, row, studyID, scanDate)
	if err != nil {
		return 0, err
	}

	if err := imp.store.CreateSessionWithScans(ctx, sess, seeds, reports); err != nil {
		return 0, err
	}
	return outcomeImported, nil
}

// lookupScans resolves the session in the source archive and seeds its scans,
// classifying each type on first sight.
func (imp *Importer) lookupScans(ctx context.Context, sess *registry.ImagingSession, status registry.DataStatus) ([]registry.ScanSeed, registry.DataStatus, error) {
	exp, err := imp.source.Experiment(ctx, sess.ProjectCode, sess.ArchiveID())
	if errors.Is(err, services.ErrNotFound) {
		return nil, registry.StatusNotFound, nil
	}
	if err != nil {
		return nil, status, err
	}

	scans, err := imp.source.Scans(ctx, exp.ID)
	if err != nil {
		return nil, status, err
	}
	seeds := make([]registry.ScanSeed, 0, len(scans))
	for _, scan := range scans {
		seeds = append(seeds, registry.ScanSeed{
			ArchiveID:    scan.ID,
			TypeName:     scan.Type,
			ClinicalHint: classify.LikelyClinical(scan.Type),
		})
	}
	return seeds, status, nil
}

// dummyReports back-fills placeholder reports for sessions whose legacy
// reports were filed outside the registry.
func (imp *Importer) dummyReports(ctx context.Context, row CandidateRow, studyID int64, scanDate time.Time) ([]*registry.Report, error) {
	if row.MRReport == "" && row.PETReport == "" {
		return nil, nil
	}
	if imp.reporterID == 0 {
		reporter, err := imp.store.SystemReporter(ctx)
		if err != nil {
			return nil, err
		}
		imp.reporterID = reporter.ID
	}

	var reports []*registry.Report
	if row.MRReport != "" {
		reports = append(reports, &registry.Report{
			SessionID:  studyID,
			ReporterID: imp.reporterID,
			Date:       scanDate,
			Conclusion: registry.ConclusionNotRecorded,
			Modality:   registry.ModalityMR,
			Dummy:      true,
		})
	}
	if row.PETReport != "" {
		reports = append(reports, &registry.Report{
			SessionID:  studyID,
			ReporterID: imp.reporterID,
			Date:       scanDate,
			Conclusion: registry.ConclusionNotRecorded,
			Modality:   registry.ModalityPET,
			Dummy:      true,
		})
	}
	return reports, nil
}

// decomposeIdentifiers derives the archive subject and visit identifiers
// from the legacy hierarchical code, falling back to the explicit feed
// columns when no code is present.
func decomposeIdentifiers(row CandidateRow, status registry.DataStatus) (subject, visit string, _ registry.DataStatus) {
	if row.DarisID != "" {
		match := darisIDRe.FindStringSubmatch(row.DarisID)
		if match == nil {
			if strings.HasPrefix(row.DarisID, legacyElsewherePrefix) {
				return "", "", registry.StatusArchivedElsewhere
			}
			return "", "", registry.StatusInvalidLabel
		}
		visit = match[3]
		if visit == "" {
			visit = "1"
		}
		return match[2], visit, status
	}
	if row.ArchiveSubjectID == "" || row.ArchiveVisitID == "" {
		return row.ArchiveSubjectID, row.ArchiveVisitID, registry.StatusInvalidLabel
	}
	return row.ArchiveSubjectID, row.ArchiveVisitID, status
}

// zeroPadSubject normalizes numeric subject identifiers to three digits.
func zeroPadSubject(subject string) string {
	if n, err := strconv.Atoi(subject); err == nil {
		return fmt.Sprintf("%03d", n)
	}
	return subject
}

// formatVisit renders the archive visit label, e.g. MR02 or MRPT02, keeping
// any non-numeric suffix.
func formatVisit(visit, prefix string, status registry.DataStatus) (string, registry.DataStatus) {
	if status == registry.StatusInvalidLabel || status == registry.StatusArchivedElsewhere {
		return visit, status
	}
	match := visitNumberRe.FindStringSubmatch(visit)
	if match == nil {
		return visit, registry.StatusInvalidLabel
	}
	numeral, err := strconv.Atoi(match[1])
	if err != nil {
		return visit, registry.StatusInvalidLabel
	}
	return fmt.Sprintf("%s%02d%s", prefix, numeral, match[2]), status
}

// parseFeedDate accepts the feed's d/m/Y dates, with "." tolerated as the
// separator.
func parseFeedDate(value string) (time.Time, error) {
	normalized := strings.ReplaceAll(strings.TrimSpace(value), ".", "/")
	return time.Parse("2/1/2006", normalized)
}
