package course

import (
	"time"

	"github.com/trezcool/kozi/core"
)

// PaymentStatus is the persisted state of an enrollment's payment.
// `paid` is the canonical settled name; it only ever moves pending -> paid or
// pending -> failed, and only a server-side verification drives it.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

type (
	// Cohort is a scheduled run of the course that users enroll into.
	Cohort struct {
		ID        string     `json:"id" db:"id"`
		Name      string     `json:"name" db:"name"`
		StartDate *time.Time `json:"start_date,omitempty" db:"start_date"`
		EndDate   *time.Time `json:"end_date,omitempty" db:"end_date"`
		IsActive  bool       `json:"is_active" db:"is_active"`
	}

	Lesson struct {
		ID      string `json:"id" db:"id"`
		Slug    string `json:"slug" db:"slug"`
		Title   string `json:"title" db:"title"`
		Summary string `json:"summary,omitempty" db:"summary"`
		Week    int    `json:"week" db:"week"`
		Visible bool   `json:"visible" db:"visible"`
	}

	Announcement struct {
		ID        string    `json:"id" db:"id"`
		CohortID  string    `json:"cohort_id" db:"cohort_id"`
		Title     string    `json:"title" db:"title"`
		Body      string    `json:"body" db:"body"`
		CreatedAt time.Time `json:"created_at" db:"created_at"`
	}

	// Enrollment links a user to a paid cohort. Unique per (user, cohort);
	// writes are idempotent upserts.
	Enrollment struct {
		ID            string        `json:"id" db:"id"`
		UserID        string        `json:"user_id" db:"user_id"`
		CohortID      string        `json:"cohort_id" db:"cohort_id"`
		PaymentStatus PaymentStatus `json:"payment_status" db:"payment_status"`
		PaymentID     string        `json:"payment_id,omitempty" db:"payment_id"`
		EnrolledAt    time.Time     `json:"enrolled_at" db:"enrolled_at"`
	}

	// Lead is a marketing-site contact capture.
	Lead struct {
		ID        string    `json:"id" db:"id"`
		Name      string    `json:"name" db:"name"`
		Email     string    `json:"email" db:"email"`
		Note      string    `json:"note,omitempty" db:"note"`
		Source    string    `json:"source,omitempty" db:"source"`
		CreatedAt time.Time `json:"created_at" db:"created_at"`
	}
)

// LeadInput captures a marketing-site contact form submission.
type LeadInput struct {
	Name   string `json:"name" validate:"required"`
	Email  string `json:"email" validate:"required,email"`
	Note   string `json:"note"`
	Source string `json:"source"`
}

func (li *LeadInput) Validate() error {
	li.Name = core.CleanString(li.Name)
	li.Email = core.CleanString(li.Email, true /* lower */)
	li.Note = core.CleanString(li.Note)
	li.Source = core.CleanString(li.Source)
	return core.Validate.Struct(li)
}
