package pgrepos

import (
	"context"
	"database/sql"
	"strconv"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/kozi/core/course"
)

type courseRepository struct {
	db *sqlx.DB
}

var _ course.Repository = (*courseRepository)(nil)

func NewCourseRepository(db *sqlx.DB) *courseRepository {
	return &courseRepository{db: db}
}

func (repo courseRepository) GetCohort(ctx context.Context, id string) (course.Cohort, error) {
	var cohort course.Cohort
	if err := repo.db.GetContext(ctx, &cohort, `SELECT * FROM cohorts WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return course.Cohort{}, course.ErrCohortNotFound
		}
		return course.Cohort{}, errors.Wrap(err, "getting cohort")
	}
	return cohort, nil
}

func (repo courseRepository) QueryCohorts(ctx context.Context) ([]course.Cohort, error) {
	cohorts := make([]course.Cohort, 0)
	if err := repo.db.SelectContext(ctx, &cohorts, `SELECT * FROM cohorts ORDER BY start_date`); err != nil {
		return nil, errors.Wrap(err, "querying cohorts")
	}
	return cohorts, nil
}

func (repo courseRepository) QueryLessons(ctx context.Context, visibleOnly bool) ([]course.Lesson, error) {
	q := `SELECT * FROM lessons`
	if visibleOnly {
		q += ` WHERE visible`
	}
	q += ` ORDER BY week, slug`

	lessons := make([]course.Lesson, 0)
	if err := repo.db.SelectContext(ctx, &lessons, q); err != nil {
		return nil, errors.Wrap(err, "querying lessons")
	}
	return lessons, nil
}

func (repo courseRepository) QueryAnnouncements(ctx context.Context, cohortIDs []string, limit int) ([]course.Announcement, error) {
	anns := make([]course.Announcement, 0)
	if len(cohortIDs) == 0 {
		return anns, nil
	}

	q, args, err := sqlx.In(`SELECT * FROM announcements WHERE cohort_id IN (?) ORDER BY created_at DESC`, cohortIDs)
	if err != nil {
		return nil, errors.Wrap(err, "building announcements query")
	}
	if limit > 0 {
		q += ` LIMIT ` + strconv.Itoa(limit)
	}
	if err = repo.db.SelectContext(ctx, &anns, repo.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "querying announcements")
	}
	return anns, nil
}

func (repo courseRepository) UpsertEnrollment(ctx context.Context, enr course.Enrollment) (course.Enrollment, error) {
	q := `
INSERT INTO enrollments (id, user_id, cohort_id, payment_status, payment_id, enrolled_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (user_id, cohort_id)
DO UPDATE SET payment_status = EXCLUDED.payment_status, payment_id = EXCLUDED.payment_id
RETURNING *`
	var saved course.Enrollment
	err := repo.db.GetContext(ctx, &saved, q, enr.ID, enr.UserID, enr.CohortID, enr.PaymentStatus, enr.PaymentID, enr.EnrolledAt)
	if err != nil {
		return course.Enrollment{}, errors.Wrap(err, "upserting enrollment")
	}
	return saved, nil
}

func (repo courseRepository) GetEnrollment(ctx context.Context, userID, cohortID string) (course.Enrollment, error) {
	var enr course.Enrollment
	q := `SELECT * FROM enrollments WHERE user_id = $1 AND cohort_id = $2`
	if err := repo.db.GetContext(ctx, &enr, q, userID, cohortID); err != nil {
		if err == sql.ErrNoRows {
			return course.Enrollment{}, course.ErrEnrollmentNotFound
		}
		return course.Enrollment{}, errors.Wrap(err, "getting enrollment")
	}
	return enr, nil
}

func (repo courseRepository) QueryEnrollmentsByUser(ctx context.Context, userID string) ([]course.Enrollment, error) {
	enrs := make([]course.Enrollment, 0)
	q := `SELECT * FROM enrollments WHERE user_id = $1 ORDER BY enrolled_at DESC`
	if err := repo.db.SelectContext(ctx, &enrs, q, userID); err != nil {
		return nil, errors.Wrap(err, "querying enrollments by user")
	}
	return enrs, nil
}

func (repo courseRepository) QueryAllEnrollments(ctx context.Context) ([]course.Enrollment, error) {
	enrs := make([]course.Enrollment, 0)
	if err := repo.db.SelectContext(ctx, &enrs, `SELECT * FROM enrollments ORDER BY enrolled_at DESC`); err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}
	return enrs, nil
}

func (repo courseRepository) CreateLead(ctx context.Context, lead course.Lead) (course.Lead, error) {
	q := `
INSERT INTO leads (id, name, email, note, source, created_at)
VALUES (:id, :name, :email, :note, :source, :created_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, lead); err != nil {
		return course.Lead{}, errors.Wrap(err, "inserting lead")
	}
	return lead, nil
}
