package tests

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/kozi/core/course"
	"github.com/trezcool/kozi/core/user"
)

func Test_courseAPI_captureLead(t *testing.T) {
	env := setup(t)

	tests := []httpTest{
		{
			name: "missing fields", method: http.MethodPost, path: "/v1/leads",
			body:     []byte(`{"note":"call me"}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"name":  "this field is required",
				"email": "this field is required",
			}),
		},
		{
			name: "bad email", method: http.MethodPost, path: "/v1/leads",
			body:     []byte(`{"name":"Prosper","email":"nope"}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"email": "email must be a valid email address"}),
		},
		{
			name: "captured", method: http.MethodPost, path: "/v1/leads",
			body:     []byte(`{"name":"Prosper","email":"prosper@test.cm","note":"call me","source":"landing-page"}`),
			wantCode: http.StatusCreated,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(tt.method, tt.path, tt.body)
			env.app.ServeHTTP(rec, req)

			if tt.wantData != nil {
				checkCodeAndData(t, tt, rec)
				return
			}
			if rec.Code != tt.wantCode {
				t.Fatalf("code = %v; body %s", rec.Code, rec.Body.String())
			}
			var lead course.Lead
			if err := json.Unmarshal(rec.Body.Bytes(), &lead); err != nil {
				t.Fatalf("unmarshalling response failed: %v", err)
			}
			if lead.ID == "" || lead.Email != "prosper@test.cm" || lead.Source != "landing-page" {
				t.Errorf("lead = %+v", lead)
			}
		})
	}
}

func Test_courseAPI_dashboard(t *testing.T) {
	env := setup(t)
	usr := createUser(t, env.usrRepo, "Jane", "jane@test.cm", "s3cr3t!pwd", user.RoleStudent, true)

	lessons := []course.Lesson{
		{ID: uuid.NewString(), Slug: "welcome", Title: "Welcome", Week: 1, Visible: true},
		{ID: uuid.NewString(), Slug: "setup", Title: "Getting set up", Week: 1, Visible: true},
		{ID: uuid.NewString(), Slug: "first-project", Title: "First project", Week: 2, Visible: false},
	}
	now := time.Now().UTC()
	anns := []course.Announcement{
		{ID: uuid.NewString(), Title: "Kickoff", Body: "We start Monday.", CreatedAt: now.Add(-time.Hour)},
		{ID: uuid.NewString(), Title: "Office hours", Body: "Fridays at 5pm.", CreatedAt: now},
	}
	cohort := env.seedCohort("August Cohort", lessons, anns)

	if _, err := env.crsSvc.EnrollPaid(context.Background(), usr.ID, cohort.ID, "pay_1"); err != nil {
		t.Fatalf("EnrollPaid() failed: %v", err)
	}

	// requires a session
	req, rec := newRequest(http.MethodGet, "/v1/dashboard")
	env.app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)}, rec)

	req, rec = newAuthRequest(http.MethodGet, "/v1/dashboard", getToken(t, usr))
	env.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %v; body %s", rec.Code, rec.Body.String())
	}
	var dash course.Dashboard
	if err := json.Unmarshal(rec.Body.Bytes(), &dash); err != nil {
		t.Fatalf("unmarshalling response failed: %v", err)
	}

	if dash.Profile.ID != usr.ID {
		t.Errorf("Profile.ID = %q; want %q", dash.Profile.ID, usr.ID)
	}
	wantStats := course.DashboardStats{EnrolledCohorts: 1, LessonsReleased: 2, LessonsTotal: 3, NewAnnouncements: 2}
	if dash.Stats != wantStats {
		t.Errorf("Stats = %+v; want %+v", dash.Stats, wantStats)
	}
	if len(dash.Progress) != 1 {
		t.Fatalf("Progress = %+v", dash.Progress)
	}
	prog := dash.Progress[0]
	if prog.CohortName != cohort.Name || prog.Percent != 66 || prog.Enrollment.PaymentStatus != course.PaymentPaid {
		t.Errorf("Progress[0] = %+v", prog)
	}
	if len(dash.RecentLessons) != 2 {
		t.Errorf("RecentLessons = %+v; expected only released lessons", dash.RecentLessons)
	}
	if len(dash.Announcements) != 2 || dash.Announcements[0].Title != "Office hours" {
		t.Errorf("Announcements = %+v; expected newest first", dash.Announcements)
	}
}

func Test_courseAPI_adminOverview(t *testing.T) {
	env := setup(t)
	admin := createUser(t, env.usrRepo, "Admin", "admin@test.cm", "s3cr3t!pwd", user.RoleAdmin, true)
	jane := createUser(t, env.usrRepo, "Jane", "jane@test.cm", "s3cr3t!pwd", user.RoleStudent, true)
	createUser(t, env.usrRepo, "Joe", "joe@test.cm", "s3cr3t!pwd", user.RoleStudent, false)

	lessons := []course.Lesson{
		{ID: uuid.NewString(), Slug: "welcome", Title: "Welcome", Week: 1, Visible: true},
		{ID: uuid.NewString(), Slug: "first-project", Title: "First project", Week: 2, Visible: false},
	}
	cohort := env.seedCohort("August Cohort", lessons, nil)
	if _, err := env.crsSvc.EnrollPaid(context.Background(), jane.ID, cohort.ID, "pay_1"); err != nil {
		t.Fatalf("EnrollPaid() failed: %v", err)
	}

	// admin only
	req, rec := newAuthRequest(http.MethodGet, "/v1/admin/overview", getToken(t, jane))
	env.app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"})}, rec)

	req, rec = newAuthRequest(http.MethodGet, "/v1/admin/overview", getToken(t, admin))
	env.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %v; body %s", rec.Code, rec.Body.String())
	}
	var ov course.AdminOverview
	if err := json.Unmarshal(rec.Body.Bytes(), &ov); err != nil {
		t.Fatalf("unmarshalling response failed: %v", err)
	}

	if ov.TotalUsers != 3 || ov.ActiveUsers != 2 || ov.AdminUsers != 1 {
		t.Errorf("user counts = %d/%d/%d", ov.TotalUsers, ov.ActiveUsers, ov.AdminUsers)
	}
	if ov.TotalCohorts != 1 || ov.TotalLessons != 2 || ov.VisibleLessons != 1 {
		t.Errorf("content counts = %d/%d/%d", ov.TotalCohorts, ov.TotalLessons, ov.VisibleLessons)
	}
	wantEnrs := course.EnrollmentCounts{Total: 1, Paid: 1}
	if ov.Enrollments != wantEnrs {
		t.Errorf("Enrollments = %+v; want %+v", ov.Enrollments, wantEnrs)
	}
	if len(ov.RecentEnrollments) != 1 || ov.RecentEnrollments[0].UserID != jane.ID {
		t.Errorf("RecentEnrollments = %+v", ov.RecentEnrollments)
	}
}
