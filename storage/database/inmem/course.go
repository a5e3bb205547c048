package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/kozi/core/course"
)

type courseRepository struct {
	db *DB
}

var _ course.Repository = (*courseRepository)(nil)

func NewCourseRepository(db *DB) *courseRepository {
	return &courseRepository{db: db}
}

func (r *courseRepository) GetCohort(_ context.Context, id string) (course.Cohort, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	if cohort, ok := r.db.cohorts[id]; ok {
		return *cohort, nil
	}
	return course.Cohort{}, course.ErrCohortNotFound
}

func (r *courseRepository) QueryCohorts(_ context.Context) ([]course.Cohort, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	res := make([]course.Cohort, 0, len(r.db.cohorts))
	for _, cohort := range r.db.cohorts {
		res = append(res, *cohort)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Name < res[j].Name })
	return res, nil
}

func (r *courseRepository) QueryLessons(_ context.Context, visibleOnly bool) ([]course.Lesson, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	res := make([]course.Lesson, 0, len(r.db.lessons))
	for _, lsn := range r.db.lessons {
		if visibleOnly && !lsn.Visible {
			continue
		}
		res = append(res, *lsn)
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].Week != res[j].Week {
			return res[i].Week < res[j].Week
		}
		return res[i].Slug < res[j].Slug
	})
	return res, nil
}

func (r *courseRepository) QueryAnnouncements(_ context.Context, cohortIDs []string, limit int) ([]course.Announcement, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	wanted := make(map[string]bool, len(cohortIDs))
	for _, id := range cohortIDs {
		wanted[id] = true
	}

	res := make([]course.Announcement, 0)
	for _, ann := range r.db.announcements {
		if wanted[ann.CohortID] {
			res = append(res, *ann)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	if limit > 0 && len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

func (r *courseRepository) UpsertEnrollment(_ context.Context, enr course.Enrollment) (course.Enrollment, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	key := enr.UserID + "|" + enr.CohortID
	if orig, ok := r.db.enrollments[key]; ok {
		orig.PaymentStatus = enr.PaymentStatus
		orig.PaymentID = enr.PaymentID
		return *orig, nil
	}
	r.db.enrollments[key] = &enr
	return enr, nil
}

func (r *courseRepository) GetEnrollment(_ context.Context, userID, cohortID string) (course.Enrollment, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	if enr, ok := r.db.enrollments[userID+"|"+cohortID]; ok {
		return *enr, nil
	}
	return course.Enrollment{}, course.ErrEnrollmentNotFound
}

func (r *courseRepository) QueryEnrollmentsByUser(_ context.Context, userID string) ([]course.Enrollment, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	res := make([]course.Enrollment, 0)
	for _, enr := range r.db.enrollments {
		if enr.UserID == userID {
			res = append(res, *enr)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].EnrolledAt.After(res[j].EnrolledAt) })
	return res, nil
}

func (r *courseRepository) QueryAllEnrollments(_ context.Context) ([]course.Enrollment, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	res := make([]course.Enrollment, 0, len(r.db.enrollments))
	for _, enr := range r.db.enrollments {
		res = append(res, *enr)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].EnrolledAt.After(res[j].EnrolledAt) })
	return res, nil
}

func (r *courseRepository) CreateLead(_ context.Context, lead course.Lead) (course.Lead, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	r.db.leads[lead.ID] = &lead
	return lead, nil
}
