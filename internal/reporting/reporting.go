package reporting

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"radreport/internal/logging"
	"radreport/internal/registry"
	"radreport/internal/services"
)

// Service implements the reviewer-facing operations. Every call takes the
// acting user explicitly; there is no ambient current-user state.
type Service struct {
	store    *registry.Store
	logger   *slog.Logger
	pageSize int
}

// New constructs a Service. pageSize bounds the scan-type confirmation pages.
func New(store *registry.Store, logger *slog.Logger, pageSize int) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	return &Service{
		store:    store,
		logger:   logging.WithComponent(logger, "reporting"),
		pageSize: pageSize,
	}
}

// ReportInput is one submitted radiology report.
type ReportInput struct {
	SessionID  int64
	Findings   string
	Conclusion registry.Conclusion
	Modality   registry.Modality
	ScanIDs    []int64
}

// SubmitReport validates and files a report. Pathological conclusions need
// findings, and every evidence scan must belong to the reported session.
// Nothing is committed on a rejected submission.
func (s *Service) SubmitReport(ctx context.Context, actor *registry.User, input ReportInput) (*registry.Report, error) {
	if err := requireRole(actor, registry.RoleReporter); err != nil {
		return nil, err
	}

	sess, err := s.store.SessionByID(ctx, input.SessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, services.Wrap(services.ErrNotFound, "reporting", "submit",
			fmt.Sprintf("session %d", input.SessionID), nil)
	}

	findings := strings.TrimSpace(input.Findings)
	if input.Conclusion.IsPathology() && findings == "" {
		return nil, services.Wrap(services.ErrValidation, "reporting", "submit",
			"findings are required for a pathological conclusion", nil)
	}

	if len(input.ScanIDs) > 0 {
		owned, err := s.store.ScansBySession(ctx, input.SessionID)
		if err != nil {
			return nil, err
		}
		ownedIDs := make(map[int64]struct{}, len(owned))
		for _, scan := range owned {
			ownedIDs[scan.ID] = struct{}{}
		}
		for _, id := range input.ScanIDs {
			if _, ok := ownedIDs[id]; !ok {
				return nil, services.Wrap(services.ErrValidation, "reporting", "submit",
					fmt.Sprintf("scan %d does not belong to session %d", id, input.SessionID), nil)
			}
		}
	}

	report := &registry.Report{
		SessionID:  input.SessionID,
		ReporterID: actor.ID,
		Date:       time.Now().UTC(),
		Findings:   findings,
		Conclusion: input.Conclusion,
		Modality:   input.Modality,
		ScanIDs:    input.ScanIDs,
	}
	if err := s.store.CreateReport(ctx, report); err != nil {
		return nil, err
	}
	s.logger.Info("report submitted",
		"session", input.SessionID,
		"reporter", actor.ID,
		"conclusion", input.Conclusion.String())
	return report, nil
}

// ScanTypePage is one batch of the confirmation workflow.
type ScanTypePage struct {
	Types     []*registry.ScanType
	Remaining int
}

// NextUnconfirmedPage returns the next alphabetical batch of unconfirmed
// scan types together with the total still outstanding.
func (s *Service) NextUnconfirmedPage(ctx context.Context) (*ScanTypePage, error) {
	types, err := s.store.UnconfirmedScanTypes(ctx, s.pageSize)
	if err != nil {
		return nil, err
	}
	remaining, err := s.store.CountUnconfirmedScanTypes(ctx)
	if err != nil {
		return nil, err
	}
	return &ScanTypePage{Types: types, Remaining: remaining}, nil
}

// Confirmation is one reviewer decision from a confirmation page.
type Confirmation struct {
	ScanTypeID int64
	Clinical   bool
}

// ConfirmScanTypes commits a submitted page: every listed type is marked
// confirmed with its clinical flag set per decision. Entries confirmed by an
// earlier page are never re-opened. Returns how many types were confirmed.
func (s *Service) ConfirmScanTypes(ctx context.Context, actor *registry.User, decisions []Confirmation) (int64, error) {
	if err := requireRole(actor, registry.RoleAdmin); err != nil {
		return 0, err
	}

	var clinical, nonClinical []int64
	for _, d := range decisions {
		if d.Clinical {
			clinical = append(clinical, d.ScanTypeID)
		} else {
			nonClinical = append(nonClinical, d.ScanTypeID)
		}
	}
	confirmed, err := s.store.ConfirmScanTypes(ctx, clinical, nonClinical)
	if err != nil {
		return 0, err
	}
	if confirmed > 0 {
		s.logger.Info("scan types confirmed",
			"confirmed", confirmed,
			"clinical", len(clinical),
			"non_clinical", len(nonClinical))
	}
	return confirmed, nil
}

// Registration is a new reviewer account request.
type Registration struct {
	Title      string
	FirstName  string
	MiddleName string
	LastName   string
	Suffixes   string
	Email      string
	Roles      []int
}

// RegisterUser creates an inactive account pending activation. Duplicate
// emails and names surface as user-facing conflicts.
func (s *Service) RegisterUser(ctx context.Context, reg Registration) (*registry.User, error) {
	firstName := strings.TrimSpace(reg.FirstName)
	lastName := strings.TrimSpace(reg.LastName)
	email := strings.TrimSpace(reg.Email)
	if firstName == "" || lastName == "" {
		return nil, services.Wrap(services.ErrValidation, "reporting", "register",
			"first and last name are required", nil)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, services.Wrap(services.ErrValidation, "reporting", "register",
			fmt.Sprintf("%q is not a usable email address", email), nil)
	}
	roles := reg.Roles
	if len(roles) == 0 {
		roles = []int{registry.RoleReporter}
	}

	user := &registry.User{
		Title:      strings.TrimSpace(reg.Title),
		FirstName:  firstName,
		MiddleName: strings.TrimSpace(reg.MiddleName),
		LastName:   lastName,
		Suffixes:   strings.TrimSpace(reg.Suffixes),
		Email:      email,
		Active:     false,
		Roles:      roles,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Info("user registered", "user", user.ID, "email", email)
	return user, nil
}

func requireRole(actor *registry.User, role int) error {
	if actor == nil {
		return services.Wrap(services.ErrForbidden, "reporting", "authorize",
			"no acting user supplied", nil)
	}
	if !actor.Active || !actor.HasRole(role) {
		return services.Wrap(services.ErrForbidden, "reporting", "authorize",
			fmt.Sprintf("user %s lacks the required role", actor.Email), nil)
	}
	return nil
}
