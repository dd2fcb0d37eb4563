package tests

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/darasahq/darasa/core/enrollment"
	"github.com/darasahq/darasa/core/notification"
	emailsvc "github.com/darasahq/darasa/services/email"
	testutil "github.com/darasahq/darasa/tests"
)

func Test_enrollmentApi_enroll(t *testing.T) {
	resetDB(t)

	owner := createTeacher(t, "teacher1")
	learner := createStudent(t, "student1")
	open := testutil.CreateCourse(t, courseRepo, owner.ID, "Algebra", "Math", "")
	locked := testutil.CreateCourse(t, courseRepo, owner.ID, "Chem", "Science", "AB12")
	learnerToken := getToken(t, learner)

	tests := []httpTest{
		{
			name:     "unknown course",
			path:     "/v1/courses/who-dis/enroll",
			token:    learnerToken,
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, errNotFound),
		},
		{
			name:     "owners cannot enroll",
			path:     "/v1/courses/" + open.ID + "/enroll",
			token:    getToken(t, owner),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "course owners cannot enroll in their own course"}),
		},
		{
			name:     "open course",
			path:     "/v1/courses/" + open.ID + "/enroll",
			token:    learnerToken,
			wantCode: http.StatusCreated,
		},
		{
			name:     "twice is a conflict",
			path:     "/v1/courses/" + open.ID + "/enroll",
			token:    learnerToken,
			wantCode: http.StatusConflict,
			wantData: marchallObj(t, httpErr{Error: "already enrolled in this course"}),
		},
		{
			name:     "protected course needs a code",
			path:     "/v1/courses/" + locked.ID + "/enroll",
			token:    learnerToken,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"access_code": "this course requires an access code"}),
		},
		{
			name:     "wrong code",
			path:     "/v1/courses/" + locked.ID + "/enroll",
			body:     []byte(`{"access_code": "XY99"}`),
			token:    learnerToken,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "invalid access code"}),
		},
		{
			name:     "right code",
			path:     "/v1/courses/" + locked.ID + "/enroll",
			body:     []byte(`{"access_code": "AB12"}`),
			token:    learnerToken,
			wantCode: http.StatusCreated,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			if tt.wantCode == http.StatusCreated {
				var enr enrollment.Enrollment
				if err := json.Unmarshal(rec.Body.Bytes(), &enr); err != nil {
					t.Fatalf("unmarshalling response: %v", err)
				}
				if enr.UserID != learner.ID || enr.EnrolledAt.IsZero() {
					t.Errorf("enrollment = %+v", enr)
				}
			}
		})
	}

	// the owner heard about both enrollments, and the learner got mail
	ownerNotifs, err := notifSvc.QueryByUser(bgCtx, owner.ID, false)
	if err != nil {
		t.Fatalf("QueryByUser() failed: %v", err)
	}
	var enrollments int
	for _, n := range ownerNotifs {
		if n.Kind == notification.KindNewEnrollment {
			enrollments++
		}
	}
	if enrollments != 2 {
		t.Errorf("owner new-enrollment notifications = %d, want 2", enrollments)
	}
	if len(emailsvc.SentMessages) != 2 {
		t.Errorf("sent emails = %d, want 2", len(emailsvc.SentMessages))
	}
}

func Test_enrollmentApi_cancel(t *testing.T) {
	resetDB(t)

	owner := createTeacher(t, "teacher1")
	learner := createStudent(t, "student1")
	crs := testutil.CreateCourse(t, courseRepo, owner.ID, "Algebra", "Math", "")
	testutil.Enroll(t, enrollRepo, crs.ID, learner.ID)
	token := getToken(t, learner)

	tests := []httpTest{
		{
			name:     "unenroll",
			wantCode: http.StatusNoContent,
		},
		{
			name:     "twice is terminal",
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, errNotFound),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, "/v1/courses/"+crs.ID+"/unenroll", token)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_enrollmentApi_queryMine(t *testing.T) {
	resetDB(t)

	owner := createTeacher(t, "teacher1")
	learner := createStudent(t, "student1")
	crs1 := testutil.CreateCourse(t, courseRepo, owner.ID, "Algebra", "Math", "")
	crs2 := testutil.CreateCourse(t, courseRepo, owner.ID, "Chem", "Science", "")
	enr1 := testutil.Enroll(t, enrollRepo, crs1.ID, learner.ID)
	enr2 := testutil.Enroll(t, enrollRepo, crs2.ID, learner.ID)

	tests := []httpTest{
		{
			name:     "mine",
			token:    getToken(t, learner),
			wantCode: http.StatusOK,
			wantData: marchallList(t, enr1, enr2),
		},
		{
			name:     "none is an empty list",
			token:    getToken(t, owner),
			wantCode: http.StatusOK,
			wantData: []byte(`[]`),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, "/v1/enrollments", tt.token)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_enrollmentApi_roster(t *testing.T) {
	resetDB(t)

	owner := createTeacher(t, "teacher1")
	admin := createAdmin(t, "admin001")
	learner := createStudent(t, "student1")
	crs := testutil.CreateCourse(t, courseRepo, owner.ID, "Algebra", "Math", "")
	enr := testutil.Enroll(t, enrollRepo, crs.ID, learner.ID)

	tests := []httpTest{
		{
			name:     "learners cannot peek",
			token:    getToken(t, learner),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errPermDenied),
		},
		{
			name:     "owner",
			token:    getToken(t, owner),
			wantCode: http.StatusOK,
			wantData: marchallList(t, enr),
		},
		{
			name:     "admin",
			token:    getToken(t, admin),
			wantCode: http.StatusOK,
			wantData: marchallList(t, enr),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, "/v1/courses/"+crs.ID+"/roster", tt.token)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}
