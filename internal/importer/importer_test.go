package importer_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"radreport/internal/importer"
	"radreport/internal/registry"
	"radreport/internal/services"
	"radreport/internal/services/xnat"
	"radreport/internal/testsupport"
)

// stubArchive serves canned experiments and scans keyed by session label.
type stubArchive struct {
	experiments map[string]*xnat.Experiment
	scans       map[string][]xnat.Scan
	err         error
}

func (s *stubArchive) Experiment(_ context.Context, _, label string) (*xnat.Experiment, error) {
	if s.err != nil {
		return nil, s.err
	}
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
func (s *stubArchive) DownloadFile(context.Context, string, io.Writer) error  { return nil }
func (s *stubArchive) EnsureSubject(context.Context, string, string) error    { return nil }
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

const feedHeader = "StudyID,ProjectID,SubjectID,FirstName,LastName,DOB,ScanDate,DarisID,XnatSubjectID,XnatVisitID,MrReport,PetReport\n"

func TestReadFeedKeysByHeader(t *testing.T) {
	feed := "ProjectID,StudyID,ScanDate,Extra\nMRH001,1231,10/04/2017,ignored\n"
	rows, err := importer.ReadFeed(strings.NewReader(feed))
	if err != nil {
		t.Fatalf("ReadFeed failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0].StudyID != "1231" || rows[0].ProjectID != "MRH001" || rows[0].ScanDate != "10/04/2017" {
		t.Fatalf("unexpected row: %#v", rows[0])
	}
}

func TestImportCreatesSessionWithClassifiedScans(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	archive := &stubArchive{
		experiments: map[string]*xnat.Experiment{
			"MRH001_042_MR01": {ID: "EXP001", Label: "MRH001_042_MR01"},
		},
		scans: map[string][]xnat.Scan{
			"EXP001": {
				{ID: "2", Type: "t1_mprage_sag"},
				{ID: "5", Type: "localizer"},
			},
		},
	}

	rows, err := importer.ReadFeed(strings.NewReader(feedHeader +
		"1231,MRH001,MBI042,jane,DOE,1.1.1980,10/04/2017,1008.2.1.42.1.1,,,,\n"))
	if err != nil {
		t.Fatalf("ReadFeed failed: %v", err)
	}

	imp := importer.New(store, archive, nil)
	summary, err := imp.Run(context.Background(), rows)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(summary.Imported) != 1 {
		t.Fatalf("expected 1 imported, got %#v", summary)
	}

	sess, err := store.SessionByID(context.Background(), 1231)
	if err != nil || sess == nil {
		t.Fatalf("SessionByID: %v %v", sess, err)
	}
	if sess.DataStatus != registry.StatusPresent {
		t.Fatalf("expected present, got %s", sess.DataStatus)
	}
	if got := sess.ArchiveID(); got != "MRH001_042_MR01" {
		t.Fatalf("ArchiveID = %q", got)
	}
	if sess.ScanDate.Format("2006-01-02") != "2017-04-10" {
		t.Fatalf("unexpected scan date %v", sess.ScanDate)
	}

	scans, err := store.ScansBySession(context.Background(), 1231)
	if err != nil {
		t.Fatalf("ScansBySession failed: %v", err)
	}
	if len(scans) != 2 {
		t.Fatalf("expected 2 scans, got %d", len(scans))
	}
	byType := map[string]bool{}
	for _, sc := range scans {
		byType[sc.TypeName] = sc.Clinical
	}
	if !byType["t1_mprage_sag"] || byType["localizer"] {
		t.Fatalf("unexpected classification hints: %v", byType)
	}

	subject, err := store.SubjectByCode(context.Background(), "MBI042")
	if err != nil || subject == nil {
		t.Fatalf("SubjectByCode: %v %v", subject, err)
	}
	if subject.FirstName != "Jane" || subject.LastName != "Doe" {
		t.Fatalf("expected title-cased names, got %q %q", subject.FirstName, subject.LastName)
	}
}

func TestImportIsIdempotentByStudyID(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	archive := &stubArchive{
		experiments: map[string]*xnat.Experiment{
			"MRH001_042_MR01": {ID: "EXP001"},
		},
	}

	rows, err := importer.ReadFeed(strings.NewReader(feedHeader +
		"1231,MRH001,MBI042,Jane,Doe,,10/04/2017,1008.2.1.42.1.1,,,,\n"))
	if err != nil {
		t.Fatalf("ReadFeed failed: %v", err)
	}

	imp := importer.New(store, archive, nil)
	if _, err := imp.Run(context.Background(), rows); err != nil {
		t.Fatalf("first Run failed: %v", err)
	}
	summary, err := imp.Run(context.Background(), rows)
	if err != nil {
		t.Fatalf("second Run failed: %v", err)
	}
	if len(summary.Previous) != 1 || len(summary.Imported) != 0 {
		t.Fatalf("expected 1 previous, got %#v", summary)
	}
}

func TestImportSkipsUnlistedProjects(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	rows, err := importer.ReadFeed(strings.NewReader(feedHeader +
		"1300,QAP001,MBI050,Jo,Blow,,10/04/2017,1008.2.1.50.1.1,,,,\n"))
	if err != nil {
		t.Fatalf("ReadFeed failed: %v", err)
	}

	imp := importer.New(store, &stubArchive{}, nil)
	summary, err := imp.Run(context.Background(), rows)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(summary.Skipped) != 1 {
		t.Fatalf("expected 1 skipped, got %#v", summary)
	}
	sess, err := store.SessionByID(context.Background(), 1300)
	if err != nil {
		t.Fatalf("SessionByID failed: %v", err)
	}
	if sess != nil {
		t.Fatal("skipped row must not create a session")
	}
}

func TestImportStatusClassification(t *testing.T) {
	cases := []struct {
		name string
		row  string
		want registry.DataStatus
	}{
		{
			name: "missing in archive",
			row:  "1301,MRH001,MBI051,Jo,Blow,,10/04/2017,1008.2.1.51.1.1,,,,",
			want: registry.StatusNotFound,
		},
		{
			name: "legacy elsewhere prefix",
			row:  "1302,MRH001,MBI052,Jo,Blow,,10/04/2017,1.5.1.51,,,,",
			want: registry.StatusArchivedElsewhere,
		},
		{
			name: "garbled identifier",
			row:  "1303,MRH001,MBI053,Jo,Blow,,10/04/2017,gibberish,,,,",
			want: registry.StatusInvalidLabel,
		},
		{
			name: "no identifiers at all",
			row:  "1304,MRH001,MBI054,Jo,Blow,,10/04/2017,,,,,",
			want: registry.StatusInvalidLabel,
		},
		{
			name: "all legacy reports filed",
			row:  "1305,MRH001,MBI055,Jo,Blow,,10/04/2017,1008.2.1.55.1.1,,,reported,",
			want: registry.StatusNotChecked,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testsupport.NewConfig(t)
			store := testsupport.MustOpenStore(t, cfg)

			rows, err := importer.ReadFeed(strings.NewReader(feedHeader + tc.row + "\n"))
			if err != nil {
				t.Fatalf("ReadFeed failed: %v", err)
			}
			imp := importer.New(store, &stubArchive{}, nil)
			summary, err := imp.Run(context.Background(), rows)
			if err != nil {
				t.Fatalf("Run failed: %v", err)
			}
			if len(summary.Imported) != 1 {
				t.Fatalf("expected 1 imported, got %#v", summary)
			}
			sess, err := store.SessionByID(context.Background(), mustStudyID(t, tc.row))
			if err != nil || sess == nil {
				t.Fatalf("SessionByID: %v %v", sess, err)
			}
			if sess.DataStatus != tc.want {
				t.Fatalf("status = %s, want %s", sess.DataStatus, tc.want)
			}
		})
	}
}

func mustStudyID(t *testing.T, row string) int64 {
	t.Helper()
	var id int64
	for i := 0; i < len(row) && row[i] >= '0' && row[i] <= '9'; i++ {
		id = id*10 + int64(row[i]-'0')
	}
	if id == 0 {
		t.Fatalf("no study id in row %q", row)
	}
	return id
}

func TestImportPETProjectsUseCombinedVisitPrefix(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	archive := &stubArchive{experiments: map[string]*xnat.Experiment{}}

	// MR report filed but PET outstanding: a PET-capable project still needs
	// checking, and its visit label carries the combined prefix.
	rows, err := importer.ReadFeed(strings.NewReader(feedHeader +
		"1400,MMH010,MBI060,Jo,Blow,,10/04/2017,1008.2.10.60.1.2,,,reported,\n"))
	if err != nil {
		t.Fatalf("ReadFeed failed: %v", err)
	}

	imp := importer.New(store, archive, nil)
	if _, err := imp.Run(context.Background(), rows); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	sess, err := store.SessionByID(context.Background(), 1400)
	if err != nil || sess == nil {
		t.Fatalf("SessionByID: %v %v", sess, err)
	}
	if got := sess.ArchiveID(); got != "MMH010_060_MRPT02" {
		t.Fatalf("ArchiveID = %q, want MMH010_060_MRPT02", got)
	}
	if sess.DataStatus != registry.StatusNotFound {
		t.Fatalf("status = %s, want not_found", sess.DataStatus)
	}
}

func TestImportBackfillsDummyReports(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	rows, err := importer.ReadFeed(strings.NewReader(feedHeader +
		"1500,MMH010,MBI061,Jo,Blow,,10/04/2017,1008.2.10.61.1.1,,,reported,reported\n"))
	if err != nil {
		t.Fatalf("ReadFeed failed: %v", err)
	}

	imp := importer.New(store, &stubArchive{}, nil)
	if _, err := imp.Run(context.Background(), rows); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	reports, err := store.ReportsBySession(context.Background(), 1500)
	if err != nil {
		t.Fatalf("ReportsBySession failed: %v", err)
	}
	if len(reports) != 2 {
		t.Fatalf("expected MR and PET dummy reports, got %d", len(reports))
	}
	modalities := map[registry.Modality]bool{}
	for _, r := range reports {
		if !r.Dummy || r.Conclusion != registry.ConclusionNotRecorded {
			t.Fatalf("unexpected dummy report: %#v", r)
		}
		modalities[r.Modality] = true
	}
	if !modalities[registry.ModalityMR] || !modalities[registry.ModalityPET] {
		t.Fatalf("expected both modalities, got %v", modalities)
	}
}

func TestImportAbortsOnConnectivityFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	archive := &stubArchive{
		err: services.Wrap(services.ErrConnectivity, "xnat", "get", "refused", nil),
	}

	rows, err := importer.ReadFeed(strings.NewReader(feedHeader +
		"1600,MRH001,MBI070,Jo,Blow,,10/04/2017,1008.2.1.70.1.1,,,,\n"))
	if err != nil {
		t.Fatalf("ReadFeed failed: %v", err)
	}

	imp := importer.New(store, archive, nil)
	_, err = imp.Run(context.Background(), rows)
	if !errors.Is(err, services.ErrConnectivity) {
		t.Fatalf("expected connectivity error, got %v", err)
	}
}
