package course

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/kozi/core"
	"github.com/trezcool/kozi/core/user"
)

var (
	// errors
	ErrCohortNotFound     = errors.New("cohort not found")
	ErrEnrollmentNotFound = errors.New("enrollment not found")
)

type (
	Repository interface {
		GetCohort(ctx context.Context, id string) (Cohort, error)
		QueryCohorts(ctx context.Context) ([]Cohort, error)
		QueryLessons(ctx context.Context, visibleOnly bool) ([]Lesson, error)
		// QueryAnnouncements returns announcements for the given cohorts,
		// newest first, capped at limit (0 = no cap).
		QueryAnnouncements(ctx context.Context, cohortIDs []string, limit int) ([]Announcement, error)
		// UpsertEnrollment inserts or updates the row keyed by (user, cohort).
		UpsertEnrollment(ctx context.Context, enr Enrollment) (Enrollment, error)
		GetEnrollment(ctx context.Context, userID, cohortID string) (Enrollment, error)
		QueryEnrollmentsByUser(ctx context.Context, userID string) ([]Enrollment, error)
		QueryAllEnrollments(ctx context.Context) ([]Enrollment, error)
		CreateLead(ctx context.Context, lead Lead) (Lead, error)
	}

	Service struct {
		repo    Repository
		usrRepo user.Repository
		logger  core.Logger
	}
)

func NewService(repo Repository, usrRepo user.Repository, logger core.Logger) *Service {
	return &Service{repo: repo, usrRepo: usrRepo, logger: logger}
}

// EnrollPaid records a verified payment: exactly one `paid` enrollment row
// per (user, cohort), idempotent under re-verification of the same reference.
func (svc *Service) EnrollPaid(ctx context.Context, userID, cohortID, paymentRef string) (Enrollment, error) {
	enr := Enrollment{
		ID:            uuid.NewString(),
		UserID:        userID,
		CohortID:      cohortID,
		PaymentStatus: PaymentPaid,
		PaymentID:     paymentRef,
		EnrolledAt:    time.Now().UTC(),
	}
	return svc.repo.UpsertEnrollment(ctx, enr)
}

// CaptureLead stores a marketing-site contact form submission.
func (svc *Service) CaptureLead(ctx context.Context, li LeadInput) (Lead, error) {
	lead := Lead{
		ID:        uuid.NewString(),
		Name:      li.Name,
		Email:     li.Email,
		Note:      li.Note,
		Source:    li.Source,
		CreatedAt: time.Now().UTC(),
	}
	return svc.repo.CreateLead(ctx, lead)
}

type (
	// CohortProgress is the released-content progress of one enrollment.
	CohortProgress struct {
		Enrollment Enrollment `json:"enrollment"`
		CohortName string     `json:"cohort_name"`
		// Percent of lessons released so far (visible / total).
		Percent int `json:"percent"`
	}

	DashboardStats struct {
		EnrolledCohorts  int `json:"enrolled_cohorts"`
		LessonsReleased  int `json:"lessons_released"`
		LessonsTotal     int `json:"lessons_total"`
		NewAnnouncements int `json:"new_announcements"`
	}

	// Dashboard is the student landing aggregation: read-only, no writes.
	Dashboard struct {
		Profile       user.User        `json:"profile"`
		Stats         DashboardStats   `json:"stats"`
		Progress      []CohortProgress `json:"progress"`
		RecentLessons []Lesson         `json:"recent_lessons"`
		Announcements []Announcement   `json:"announcements"`
	}
)

const (
	recentLessonsLimit = 5
	announcementsLimit = 5
)

// Dashboard aggregates the signed-in student's view.
func (svc *Service) Dashboard(ctx context.Context, usr user.User) (Dashboard, error) {
	enrs, err := svc.repo.QueryEnrollmentsByUser(ctx, usr.ID)
	if err != nil {
		return Dashboard{}, errors.Wrap(err, "querying enrollments")
	}

	lessons, err := svc.repo.QueryLessons(ctx, false)
	if err != nil {
		return Dashboard{}, errors.Wrap(err, "querying lessons")
	}
	var released []Lesson
	for _, l := range lessons {
		if l.Visible {
			released = append(released, l)
		}
	}
	var percent int
	if len(lessons) > 0 {
		percent = len(released) * 100 / len(lessons)
	}

	progress := make([]CohortProgress, 0, len(enrs))
	cohortIDs := make([]string, 0, len(enrs))
	for _, enr := range enrs {
		name := enr.CohortID
		if cohort, err := svc.repo.GetCohort(ctx, enr.CohortID); err == nil {
			name = cohort.Name
		}
		progress = append(progress, CohortProgress{Enrollment: enr, CohortName: name, Percent: percent})
		cohortIDs = append(cohortIDs, enr.CohortID)
	}

	anns, err := svc.repo.QueryAnnouncements(ctx, cohortIDs, announcementsLimit)
	if err != nil {
		return Dashboard{}, errors.Wrap(err, "querying announcements")
	}

	recent := released
	if len(recent) > recentLessonsLimit {
		recent = recent[len(recent)-recentLessonsLimit:]
	}

	return Dashboard{
		Profile: usr,
		Stats: DashboardStats{
			EnrolledCohorts:  len(enrs),
			LessonsReleased:  len(released),
			LessonsTotal:     len(lessons),
			NewAnnouncements: len(anns),
		},
		Progress:      progress,
		RecentLessons: recent,
		Announcements: anns,
	}, nil
}

type (
	SystemHealth struct {
		Database bool `json:"database"`
		Razorpay bool `json:"razorpay"`
		Stripe   bool `json:"stripe"`
		Email    bool `json:"email"`
	}

	EnrollmentCounts struct {
		Total   int `json:"total"`
		Pending int `json:"pending"`
		Paid    int `json:"paid"`
		Failed  int `json:"failed"`
	}

	// AdminOverview is the admin landing aggregation over users, content,
	// payments and system state.
	AdminOverview struct {
		TotalUsers        int              `json:"total_users"`
		ActiveUsers       int              `json:"active_users"`
		AdminUsers        int              `json:"admin_users"`
		TotalCohorts      int              `json:"total_cohorts"`
		TotalLessons      int              `json:"total_lessons"`
		VisibleLessons    int              `json:"visible_lessons"`
		Enrollments       EnrollmentCounts `json:"enrollments"`
		RecentEnrollments []Enrollment     `json:"recent_enrollments"`
		Health            SystemHealth     `json:"health"`
	}
)

const recentEnrollmentsLimit = 10

// AdminOverview aggregates the admin dashboard cards.
func (svc *Service) AdminOverview(ctx context.Context) (AdminOverview, error) {
	var ov AdminOverview

	users, err := svc.usrRepo.FilterUsers(ctx, user.QueryFilter{})
	if err != nil {
		return ov, errors.Wrap(err, "querying users")
	}
	ov.TotalUsers = len(users)
	for _, u := range users {
		if u.IsActive {
			ov.ActiveUsers++
		}
		if u.IsAdmin() {
			ov.AdminUsers++
		}
	}

	cohorts, err := svc.repo.QueryCohorts(ctx)
	if err != nil {
		return ov, errors.Wrap(err, "querying cohorts")
	}
	ov.TotalCohorts = len(cohorts)

	lessons, err := svc.repo.QueryLessons(ctx, false)
	if err != nil {
		return ov, errors.Wrap(err, "querying lessons")
	}
	ov.TotalLessons = len(lessons)
	for _, l := range lessons {
		if l.Visible {
			ov.VisibleLessons++
		}
	}

	enrs, err := svc.repo.QueryAllEnrollments(ctx)
	if err != nil {
		return ov, errors.Wrap(err, "querying enrollments")
	}
	ov.Enrollments.Total = len(enrs)
	for _, enr := range enrs {
		switch enr.PaymentStatus {
		case PaymentPending:
			ov.Enrollments.Pending++
		case PaymentPaid:
			ov.Enrollments.Paid++
		case PaymentFailed:
			ov.Enrollments.Failed++
		}
	}
	if len(enrs) > recentEnrollmentsLimit {
		enrs = enrs[:recentEnrollmentsLimit]
	}
	ov.RecentEnrollments = enrs

	ov.Health = SystemHealth{
		Database: core.Conf.DatabaseConfigured(),
		Razorpay: core.Conf.RazorpayConfigured(),
		Stripe:   core.Conf.StripeConfigured(),
		Email:    core.Conf.SendgridConfigured(),
	}
	return ov, nil
}
