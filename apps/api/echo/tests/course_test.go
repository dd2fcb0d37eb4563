package tests

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/volatiletech/null/v8"

	"github.com/darasahq/darasa/core/course"
	"github.com/darasahq/darasa/core/notification"
	"github.com/darasahq/darasa/core/user"
	testutil "github.com/darasahq/darasa/tests"
)

var bgCtx = context.Background()

var errEnrollToView = httpErr{Error: "enroll in this course to view its content"}

func Test_courseApi_create(t *testing.T) {
	resetDB(t)

	teacher := createTeacher(t, "teacher1")
	stud := createStudent(t, "student1")

	tests := []httpTest{
		{
			name:     "auth required",
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		},
		{
			name:     "students cannot teach",
			body:     []byte(`{"title": "Algebra I"}`),
			token:    getToken(t, stud),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errPermDenied),
		},
		{
			name:     "title required",
			body:     []byte(`{"subject": "Math"}`),
			token:    getToken(t, teacher),
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "bad access code",
			body:     []byte(`{"title": "Algebra I", "access_code": "a"}`),
			token:    getToken(t, teacher),
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "created",
			body:     []byte(`{"title": "Algebra I", "subject": "Math", "access_code": "AB12"}`),
			token:    getToken(t, teacher),
			wantCode: http.StatusCreated,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, "/v1/courses", tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			if tt.wantCode == http.StatusCreated {
				var crs course.Course
				if err := json.Unmarshal(rec.Body.Bytes(), &crs); err != nil {
					t.Fatalf("unmarshalling response: %v", err)
				}
				if crs.ID == "" || crs.Title != "Algebra I" || crs.OwnerID != teacher.ID {
					t.Errorf("course = %+v", crs)
				}
			}
		})
	}
}

func Test_courseApi_retrieve(t *testing.T) {
	resetDB(t)

	owner := createTeacher(t, "teacher1")
	admin := createAdmin(t, "admin001")
	learner := createStudent(t, "student1")
	guest := createStudent(t, "student2")
	crs := testutil.CreateCourse(t, courseRepo, owner.ID, "Algebra", "Math", "")
	testutil.Enroll(t, enrollRepo, crs.ID, learner.ID)

	relTests := []struct {
		name    string
		actor   user.User
		wantRel string
	}{
		{name: "owner", actor: owner, wantRel: "owner"},
		{name: "admin", actor: admin, wantRel: "admin"},
		{name: "enrolled", actor: learner, wantRel: "enrolled"},
	}
	for _, tt := range relTests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, "/v1/courses/"+crs.ID, getToken(t, tt.actor))
			app.ServeHTTP(rec, req)
			if rec.Code != http.StatusOK {
				t.Fatalf("code = %v, want %v; body %v", rec.Code, http.StatusOK, rec.Body.String())
			}
			var resp struct {
				Course       course.Course `json:"course"`
				Relationship string        `json:"relationship"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("unmarshalling response: %v", err)
			}
			if resp.Course.ID != crs.ID || resp.Relationship != tt.wantRel {
				t.Errorf("course = %v, relationship = %q; want %v, %q", resp.Course.ID, resp.Relationship, crs.ID, tt.wantRel)
			}
		})
	}

	tests := []httpTest{
		{
			name:     "guests are told to enroll",
			path:     "/v1/courses/" + crs.ID,
			token:    getToken(t, guest),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errEnrollToView),
		},
		{
			name:     "unknown course",
			path:     "/v1/courses/who-dis",
			token:    getToken(t, owner),
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, errNotFound),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, tt.path, tt.token)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_courseApi_query(t *testing.T) {
	resetDB(t)

	owner := createTeacher(t, "teacher1")
	testutil.CreateCourse(t, courseRepo, owner.ID, "Algebra", "Math", "")
	testutil.CreateCourse(t, courseRepo, owner.ID, "Zoology", "Science", "")

	t.Run("search", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/courses?search=alg", getToken(t, owner))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; body %v", rec.Code, rec.Body.String())
		}
		var courses []course.Course
		if err := json.Unmarshal(rec.Body.Bytes(), &courses); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if len(courses) != 1 || courses[0].Title != "Algebra" {
			t.Errorf("courses = %+v, want just Algebra", courses)
		}
	})

	t.Run("ordered listing", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/courses?ordering=title", getToken(t, owner))
		app.ServeHTTP(rec, req)
		var courses []course.Course
		if err := json.Unmarshal(rec.Body.Bytes(), &courses); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if len(courses) != 2 || courses[0].Title != "Algebra" || courses[1].Title != "Zoology" {
			t.Errorf("courses = %+v, want alphabetical", courses)
		}
	})
}

func Test_courseApi_update(t *testing.T) {
	resetDB(t)

	owner := createTeacher(t, "teacher1")
	learner := createStudent(t, "student1")
	crs := testutil.CreateCourse(t, courseRepo, owner.ID, "Algebra", "Math", "AB12")
	testutil.Enroll(t, enrollRepo, crs.ID, learner.ID)

	tests := []httpTest{
		{
			name:     "enrolled is not enough",
			body:     []byte(`{"title": "Hijacked"}`),
			token:    getToken(t, learner),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errPermDenied),
		},
		{
			name:     "owner updates",
			body:     []byte(`{"title": "Algebra II", "access_code": ""}`),
			token:    getToken(t, owner),
			wantCode: http.StatusOK,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPut, "/v1/courses/"+crs.ID, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	// the empty access code opened the course up
	got, err := courseRepo.GetCourseByID(bgCtx, crs.ID)
	if err != nil {
		t.Fatalf("GetCourseByID() failed: %v", err)
	}
	if got.Title != "Algebra II" || got.Subject != "Math" {
		t.Errorf("course = %+v", got)
	}
	if got.Protected() {
		t.Error("course is still protected")
	}
}

func Test_courseApi_destroy(t *testing.T) {
	resetDB(t)

	owner := createTeacher(t, "teacher1")
	learner := createStudent(t, "student1")
	crs := testutil.CreateCourse(t, courseRepo, owner.ID, "Algebra", "Math", "")
	testutil.Enroll(t, enrollRepo, crs.ID, learner.ID)

	tests := []httpTest{
		{
			name:     "enrolled is not enough",
			token:    getToken(t, learner),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errPermDenied),
		},
		{
			name:     "owner deletes",
			token:    getToken(t, owner),
			wantCode: http.StatusNoContent,
		},
		{
			name:     "gone",
			token:    getToken(t, owner),
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, errNotFound),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodDelete, "/v1/courses/"+crs.ID, tt.token)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_courseApi_content(t *testing.T) {
	resetDB(t)

	owner := createTeacher(t, "teacher1")
	learner := createStudent(t, "student1")
	guest := createStudent(t, "student2")
	crs := testutil.CreateCourse(t, courseRepo, owner.ID, "Algebra", "Math", "")
	testutil.Enroll(t, enrollRepo, crs.ID, learner.ID)
	lst := testutil.CreateList(t, courseRepo, crs.ID, "Week 1")
	testutil.CreateLesson(t, courseRepo, crs.ID, null.StringFrom(lst.ID), "Intro")
	testutil.CreateLesson(t, courseRepo, crs.ID, null.String{}, "Extra")

	t.Run("guests are told to enroll", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/courses/"+crs.ID+"/content", getToken(t, guest))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, errEnrollToView)}, rec)
	})

	t.Run("enrolled sees the mural", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/courses/"+crs.ID+"/content", getToken(t, learner))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; body %v", rec.Code, rec.Body.String())
		}
		var resp struct {
			Lists []course.List        `json:"lists"`
			Items []course.ContentItem `json:"items"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if len(resp.Lists) != 1 || len(resp.Items) != 2 {
			t.Errorf("lists = %d, items = %d; want 1, 2", len(resp.Lists), len(resp.Items))
		}
	})
}

func Test_courseApi_lists(t *testing.T) {
	resetDB(t)

	owner := createTeacher(t, "teacher1")
	crs := testutil.CreateCourse(t, courseRepo, owner.ID, "Algebra", "Math", "")
	token := getToken(t, owner)

	var lst course.List
	t.Run("add", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/courses/"+crs.ID+"/lists", token, []byte(`{"title": "Week 1"}`))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("code = %v; body %v", rec.Code, rec.Body.String())
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &lst); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if lst.Title != "Week 1" || lst.Position != 1 {
			t.Errorf("list = %+v", lst)
		}
	})

	t.Run("update", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, "/v1/courses/"+crs.ID+"/lists/"+lst.ID, token, []byte(`{"title": "Week One"}`))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; body %v", rec.Code, rec.Body.String())
		}
	})

	t.Run("remove detaches items", func(t *testing.T) {
		it := testutil.CreateLesson(t, courseRepo, crs.ID, null.StringFrom(lst.ID), "Intro")

		req, rec := newAuthRequest(http.MethodDelete, "/v1/courses/"+crs.ID+"/lists/"+lst.ID, token)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusNoContent}, rec)

		got, err := courseRepo.GetItemByID(bgCtx, it.ID)
		if err != nil {
			t.Fatalf("GetItemByID() failed: %v", err)
		}
		if got.ListID.Valid {
			t.Errorf("item still attached to %v", got.ListID)
		}
	})

	t.Run("unknown list", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/v1/courses/"+crs.ID+"/lists/who-dis", token)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound)}, rec)
	})
}

func Test_courseApi_items(t *testing.T) {
	resetDB(t)

	owner := createTeacher(t, "teacher1")
	learner := createStudent(t, "student1")
	crs := testutil.CreateCourse(t, courseRepo, owner.ID, "Algebra", "Math", "")
	testutil.Enroll(t, enrollRepo, crs.ID, learner.ID)
	token := getToken(t, owner)

	var lesson course.ContentItem
	t.Run("lesson requires a video", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/courses/"+crs.ID+"/items", token,
			[]byte(`{"kind": "lesson", "title": "Intro"}`))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"video": "a lesson requires a video"}),
		}, rec)
	})

	t.Run("add lesson", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/courses/"+crs.ID+"/items", token,
			[]byte(`{"kind": "lesson", "title": "Intro", "video": "https://vid.test/intro"}`))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("code = %v; body %v", rec.Code, rec.Body.String())
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &lesson); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if lesson.Kind != course.KindLesson || lesson.Position != 1 || lesson.CreatorID != owner.ID {
			t.Errorf("item = %+v", lesson)
		}

		// the learner heard about it
		notifs, err := notifSvc.QueryByUser(bgCtx, learner.ID, true)
		if err != nil {
			t.Fatalf("QueryByUser() failed: %v", err)
		}
		if len(notifs) != 1 || notifs[0].Kind != notification.KindNewContent {
			t.Errorf("notifications = %+v, want one new-content", notifs)
		}
	})

	t.Run("activity requires questions", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/courses/"+crs.ID+"/items", token,
			[]byte(`{"kind": "activity", "title": "Quiz"}`))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"questions": "an activity requires at least one question"}),
		}, rec)
	})

	t.Run("update", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, "/v1/courses/"+crs.ID+"/items/"+lesson.ID, token,
			[]byte(`{"title": "Introduction"}`))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; body %v", rec.Code, rec.Body.String())
		}
		var it course.ContentItem
		if err := json.Unmarshal(rec.Body.Bytes(), &it); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if it.Title != "Introduction" || it.Video != lesson.Video {
			t.Errorf("item = %+v", it)
		}
	})

	t.Run("enrolled cannot publish", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/courses/"+crs.ID+"/items", getToken(t, learner),
			[]byte(`{"kind": "lesson", "title": "Mine", "video": "https://vid.test/mine"}`))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, errPermDenied)}, rec)
	})

	t.Run("remove", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/v1/courses/"+crs.ID+"/items/"+lesson.ID, token)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusNoContent}, rec)

		req, rec = newAuthRequest(http.MethodDelete, "/v1/courses/"+crs.ID+"/items/"+lesson.ID, token)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound)}, rec)
	})
}

func Test_courseApi_reorder(t *testing.T) {
	resetDB(t)

	owner := createTeacher(t, "teacher1")
	crs := testutil.CreateCourse(t, courseRepo, owner.ID, "Algebra", "Math", "")
	lst := testutil.CreateList(t, courseRepo, crs.ID, "Week 1")
	a := testutil.CreateLesson(t, courseRepo, crs.ID, null.StringFrom(lst.ID), "a")
	b := testutil.CreateLesson(t, courseRepo, crs.ID, null.StringFrom(lst.ID), "b")
	c := testutil.CreateLesson(t, courseRepo, crs.ID, null.StringFrom(lst.ID), "c")
	loose := testutil.CreateLesson(t, courseRepo, crs.ID, null.String{}, "loose")
	token := getToken(t, owner)

	t.Run("reorder a list", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, "/v1/courses/"+crs.ID+"/lists/"+lst.ID+"/order", token,
			marchallObj(t, course.Reorder{OrderedIDs: []string{c.ID, a.ID, b.ID}}))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusNoContent}, rec)

		got, _ := courseRepo.GetItemByID(bgCtx, c.ID)
		if got.Position != 1 {
			t.Errorf("position = %d, want 1", got.Position)
		}
	})

	t.Run("incomplete order is rejected", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, "/v1/courses/"+crs.ID+"/lists/"+lst.ID+"/order", token,
			marchallObj(t, course.Reorder{OrderedIDs: []string{c.ID, a.ID}}))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("code = %v; body %v", rec.Code, rec.Body.String())
		}
		var fldErrs map[string]string
		if err := json.Unmarshal(rec.Body.Bytes(), &fldErrs); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if _, ok := fldErrs["ordered_ids"]; !ok {
			t.Errorf("field errors = %v, want ordered_ids", fldErrs)
		}
	})

	t.Run("reorder the no-list bucket", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, "/v1/courses/"+crs.ID+"/items/order", token,
			marchallObj(t, course.Reorder{OrderedIDs: []string{loose.ID}}))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusNoContent}, rec)
	})
}
