package registry

import (
	"strings"
	"time"
)

// DataStatus represents the archive availability/validity lifecycle of an
// imaging session.
type DataStatus string

const (
	StatusUnknown           DataStatus = "unknown"
	StatusPresent           DataStatus = "present"
	StatusNotFound          DataStatus = "not_found"
	StatusNotScanned        DataStatus = "not_scanned"
	StatusInvalidLabel      DataStatus = "invalid_label"
	StatusNotChecked        DataStatus = "not_checked"
	StatusArchivedElsewhere DataStatus = "archived_elsewhere"
	StatusExcluded          DataStatus = "excluded"
	StatusFixRequired       DataStatus = "fix_required"
	StatusFoundNoClinical   DataStatus = "found_no_clinical"
	StatusNotRequired       DataStatus = "not_required"
)

var allStatuses = []DataStatus{
	StatusUnknown,
	StatusPresent,
	StatusNotFound,
	StatusNotScanned,
	StatusInvalidLabel,
	StatusNotChecked,
	StatusArchivedElsewhere,
	StatusExcluded,
	StatusFixRequired,
	StatusFoundNoClinical,
	StatusNotRequired,
}

var statusSet = func() map[DataStatus]struct{} {
	set := make(map[DataStatus]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var statusLabels = map[DataStatus]string{
	StatusUnknown:           "Unknown",
	StatusPresent:           "Present",
	StatusNotFound:          "Not found on archive",
	StatusNotScanned:        "Cancelled/interrupted",
	StatusInvalidLabel:      "Invalid ID(s)",
	StatusNotChecked:        "Not checked",
	StatusArchivedElsewhere: "Stored on legacy archive",
	StatusExcluded:          "Excluded",
	StatusFixRequired:       "Fix on archive",
	StatusFoundNoClinical:   "Found no clinical",
	StatusNotRequired:       "Not required",
}

// terminalStatuses are sessions that will never be reported.
var terminalStatuses = map[DataStatus]struct{}{
	StatusNotScanned: {},
	StatusExcluded:   {},
}

// brokenSeverity orders the repair queue; lower means more severe.
var brokenSeverity = map[DataStatus]int{
	StatusInvalidLabel:      1,
	StatusNotFound:          2,
	StatusArchivedElsewhere: 3,
	StatusFixRequired:       4,
	StatusFoundNoClinical:   5,
}

// fixOptions are the statuses an admin repair action may set.
var fixOptions = map[DataStatus]struct{}{
	StatusPresent:           {},
	StatusNotScanned:        {},
	StatusFixRequired:       {},
	StatusNotRequired:       {},
	StatusExcluded:          {},
	StatusArchivedElsewhere: {},
}

// AllStatuses returns the ordered list of known data statuses.
func AllStatuses() []DataStatus {
	cp := make([]DataStatus, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseDataStatus converts a string into a known DataStatus.
func ParseDataStatus(value string) (DataStatus, bool) {
	normalized := DataStatus(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// Label returns the human-readable form of a status.
func (s DataStatus) Label() string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return string(s)
}

// IsTerminal reports whether a session in this status will never be reported.
func (s DataStatus) IsTerminal() bool {
	_, ok := terminalStatuses[s]
	return ok
}

// IsBroken reports whether a session in this status belongs in the repair
// queue.
func (s DataStatus) IsBroken() bool {
	_, ok := brokenSeverity[s]
	return ok
}

// Severity ranks broken statuses for the repair queue, most severe first.
// Non-broken statuses rank last.
func (s DataStatus) Severity() int {
	if rank, ok := brokenSeverity[s]; ok {
		return rank
	}
	return len(brokenSeverity) + 1
}

// IsFixOption reports whether an admin repair action may set this status.
func (s DataStatus) IsFixOption() bool {
	_, ok := fixOptions[s]
	return ok
}

// FixOptions returns the statuses a repair action may target, in display
// order.
func FixOptions() []DataStatus {
	return []DataStatus{
		StatusPresent,
		StatusNotScanned,
		StatusFixRequired,
		StatusNotRequired,
		StatusExcluded,
		StatusArchivedElsewhere,
	}
}

// Priority is the clinical urgency of a session.
type Priority int

const (
	PriorityLow    Priority = 1
	PriorityMedium Priority = 2
	PriorityHigh   Priority = 3
)

// String renders the priority the way reviewers see it. The top two levels
// read "High" and "Urgent".
func (p Priority) String() string {
	switch p {
	case PriorityMedium:
		return "High"
	case PriorityHigh:
		return "Urgent"
	default:
		return "Low"
	}
}

// Conclusion is the severity code of a report.
type Conclusion int

const (
	ConclusionNotRecorded Conclusion = -1
	ConclusionNone        Conclusion = 0
	ConclusionNonUrgent   Conclusion = 1
	ConclusionCritical    Conclusion = 2
)

var conclusionTitles = map[Conclusion]string{
	ConclusionNotRecorded: "Not recorded",
	ConclusionNone:        "No pathology",
	ConclusionNonUrgent:   "Non-urgent pathology",
	ConclusionCritical:    "Critical pathology",
}

// IsPathology reports whether the conclusion requires findings text.
func (c Conclusion) IsPathology() bool {
	return c == ConclusionNonUrgent || c == ConclusionCritical
}

// String returns the display title of the conclusion.
func (c Conclusion) String() string {
	if title, ok := conclusionTitles[c]; ok {
		return title
	}
	return "Unknown"
}

// Modality identifies the imaging modality of a report.
type Modality int

const (
	ModalityMR Modality = iota
	ModalityPET
)

func (m Modality) String() string {
	if m == ModalityPET {
		return "PET"
	}
	return "MR"
}

// Subject genders.
const (
	GenderUnknown = 0
	GenderFemale  = 1
	GenderMale    = 2
)

// User roles.
const (
	RoleAdmin    = 1
	RoleReporter = 2
)

// Project is the imaging project a session was acquired under.
type Project struct {
	ID    int64
	Code  string
	Title string
}

// Subject is the person scanned in one or more imaging sessions. It is kept
// separate from the session so repeat scans within the report interval can be
// collapsed to the most recent one.
type Subject struct {
	ID         int64
	Code       string
	FirstName  string
	MiddleName string
	LastName   string
	Gender     int
	DOB        time.Time
}

// Name returns the subject's display name.
func (s *Subject) Name() string {
	return strings.TrimSpace(s.FirstName + " " + s.LastName)
}

// ImagingSession is one scanning visit. Its primary key is the external
// study identifier from the legacy feed.
type ImagingSession struct {
	ID               int64
	ProjectID        int64
	SubjectID        int64
	ProjectCode      string
	SubjectCode      string
	ArchiveSubjectID string
	ArchiveVisitID   string
	LegacyCode       string
	ScanDate         time.Time
	Priority         Priority
	DataStatus       DataStatus
	Height           float64
	Weight           float64
	Notes            string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ArchiveID computes the canonical archive session label from the project
// code and the subject/visit pair.
func (s *ImagingSession) ArchiveID() string {
	return strings.ToUpper(strings.Join(
		[]string{s.ProjectCode, s.ArchiveSubjectID, s.ArchiveVisitID}, "_"))
}

// Scan is one acquired sequence within a session. Type fields are joined in
// from the scan-type catalogue.
type Scan struct {
	ID        int64
	SessionID int64
	TypeID    int64
	ArchiveID string
	Exported  bool
	TypeName  string
	Clinical  bool
	Confirmed bool
}

// ScanType is the catalogued sequence protocol name shared by every scan with
// that name. Mutating clinical/confirmed affects all of them.
type ScanType struct {
	ID        int64
	Name      string
	Clinical  bool
	Confirmed bool
}

// Report is a radiologist's findings and conclusion for a session. Dummy
// reports are back-filled from the legacy system without full detail.
type Report struct {
	ID         int64
	SessionID  int64
	ReporterID int64
	Date       time.Time
	Findings   string
	Conclusion Conclusion
	Modality   Modality
	Exported   bool
	Dummy      bool
	ScanIDs    []int64
}

// User is a reporter or administrator.
type User struct {
	ID         int64
	Title      string
	FirstName  string
	MiddleName string
	LastName   string
	Suffixes   string
	Email      string
	Active     bool
	Roles      []int
}

// Name returns the user's display name.
func (u *User) Name() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// HasRole checks whether the user holds the given role.
func (u *User) HasRole(role int) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}
