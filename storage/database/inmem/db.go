// Package inmemdb is the demo store: an explicit in-memory variant selected
// at startup when no database is configured. Data does not survive restarts.
package inmemdb

import (
	"sync"

	"github.com/trezcool/kozi/core/course"
	"github.com/trezcool/kozi/core/user"
)

type DB struct {
	mu sync.RWMutex

	users         map[string]*user.User
	cohorts       map[string]*course.Cohort
	lessons       map[string]*course.Lesson
	announcements map[string]*course.Announcement
	enrollments   map[string]*course.Enrollment // keyed user_id|cohort_id
	leads         map[string]*course.Lead
}

func Open() *DB {
	return &DB{
		users:         make(map[string]*user.User),
		cohorts:       make(map[string]*course.Cohort),
		lessons:       make(map[string]*course.Lesson),
		announcements: make(map[string]*course.Announcement),
		enrollments:   make(map[string]*course.Enrollment),
		leads:         make(map[string]*course.Lead),
	}
}

// Seed loads demo content so the app is browsable out of the box.
func (db *DB) Seed(cohorts []course.Cohort, lessons []course.Lesson, anns []course.Announcement) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for i := range cohorts {
		db.cohorts[cohorts[i].ID] = &cohorts[i]
	}
	for i := range lessons {
		db.lessons[lessons[i].ID] = &lessons[i]
	}
	for i := range anns {
		db.announcements[anns[i].ID] = &anns[i]
	}
}
