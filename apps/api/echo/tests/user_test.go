package tests

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/darasahq/darasa/core/user"
	testutil "github.com/darasahq/darasa/tests"
)

func Test_userApi_login(t *testing.T) {
	resetDB(t)

	testutil.CreateUser(t, usrRepo, "Jon Snow", "awesome-user", "jon@test.cd", "LeSecret", nil, true)
	testutil.CreateUser(t, usrRepo, "Sleeper", "sleeping-user", "zzz@test.cd", "LeSecret", nil, false)

	tests := []httpTest{
		{
			name:     "empty credentials",
			body:     []byte(`{}`),
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "unknown user",
			body:     []byte(`{"username": "who-dis", "password": "LeSecret"}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name:     "wrong password",
			body:     []byte(`{"username": "awesome-user", "password": "oops"}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name:     "deactivated account",
			body:     []byte(`{"username": "sleeping-user", "password": "LeSecret"}`),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
		{
			name:     "by username",
			body:     []byte(`{"username": "awesome-user", "password": "LeSecret"}`),
			wantCode: http.StatusOK,
		},
		{
			name:     "by email",
			body:     []byte(`{"username": "jon@test.cd", "password": "LeSecret"}`),
			wantCode: http.StatusOK,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/v1/users/login", tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			// a successful login carries a usable token
			if tt.wantCode == http.StatusOK {
				var resp struct {
					Token string `json:"token"`
				}
				if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
					t.Fatalf("unmarshalling response: %v", err)
				}
				if resp.Token == "" {
					t.Error("token is empty")
				}
			}
		})
	}
}

func Test_userApi_refreshToken(t *testing.T) {
	resetDB(t)
	usr := createStudent(t, "student1")

	req, rec := newAuthRequest(http.MethodPost, "/v1/users/token-refresh", getToken(t, usr))
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %v, want %v; body %v", rec.Code, http.StatusOK, rec.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshalling response: %v", err)
	}
	if resp.Token == "" {
		t.Error("token is empty")
	}
}

func Test_userApi_query(t *testing.T) {
	resetDB(t)

	admin := createAdmin(t, "admin001")
	stud := createStudent(t, "student1")

	tests := []httpTest{
		{
			name:     "auth required",
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		},
		{
			name:     "admin required",
			token:    getToken(t, stud),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errPermDenied),
		},
		{
			name:     "all users",
			token:    getToken(t, admin),
			wantCode: http.StatusOK,
			wantData: marchallList(t, admin, stud),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, "/v1/users", tt.token)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_retrieve(t *testing.T) {
	resetDB(t)

	admin := createAdmin(t, "admin001")
	stud := createStudent(t, "student1")
	other := createStudent(t, "student2")

	tests := []httpTest{
		{
			name:     "own profile",
			path:     "/v1/users/" + stud.ID,
			token:    getToken(t, stud),
			wantCode: http.StatusOK,
			wantData: marchallObj(t, stud),
		},
		{
			name:     "someone else's profile is invisible",
			path:     "/v1/users/" + other.ID,
			token:    getToken(t, stud),
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, errNotFound),
		},
		{
			name:     "admin sees anyone",
			path:     "/v1/users/" + other.ID,
			token:    getToken(t, admin),
			wantCode: http.StatusOK,
			wantData: marchallObj(t, other),
		},
		{
			name:     "admin sees nobody that does not exist",
			path:     "/v1/users/who-dis",
			token:    getToken(t, admin),
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

func Test_userApi_update(t *testing.T) {
	resetDB(t)

	admin := createAdmin(t, "admin001")
	stud := createStudent(t, "student1")

	tests := []httpTest{
		{
			name:     "non-admin cannot touch roles",
			path:     "/v1/users/" + stud.ID,
			body:     marchallObj(t, map[string]interface{}{"roles": user.AllRoles}),
			token:    getToken(t, stud),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errPermDenied),
		},
		{
			name:     "non-admin cannot deactivate",
			path:     "/v1/users/" + stud.ID,
			body:     []byte(`{"is_active": false}`),
			token:    getToken(t, stud),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errPermDenied),
		},
		{
			name:     "rename self",
			path:     "/v1/users/" + stud.ID,
			body:     []byte(`{"name": "New Name"}`),
			token:    getToken(t, stud),
			wantCode: http.StatusOK,
			extra:    "New Name",
		},
		{
			name:     "admin promotes",
			path:     "/v1/users/" + stud.ID,
			body:     marchallObj(t, map[string]interface{}{"roles": []string{user.RoleTeacher}}),
			token:    getToken(t, admin),
			wantCode: http.StatusOK,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPut, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			if wantName, ok := tt.extra.(string); ok {
				var usr user.User
				if err := json.Unmarshal(rec.Body.Bytes(), &usr); err != nil {
					t.Fatalf("unmarshalling response: %v", err)
				}
				if usr.Name != wantName {
					t.Errorf("Name = %q, want %q", usr.Name, wantName)
				}
			}
		})
	}
}

func Test_userApi_destroy(t *testing.T) {
	resetDB(t)

	admin := createAdmin(t, "admin001")
	stud := createStudent(t, "student1")
	adminToken := getToken(t, admin)

	tests := []httpTest{
		{
			name:     "admin required",
			path:     "/v1/users/" + stud.ID,
			token:    getToken(t, stud),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errPermDenied),
		},
		{
			name:     "no self-deletion",
			path:     "/v1/users/" + admin.ID,
			token:    adminToken,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errPermDenied),
		},
		{
			name:     "admin deletes",
			path:     "/v1/users/" + stud.ID,
			token:    adminToken,
			wantCode: http.StatusNoContent,
		},
		{
			name:     "gone",
			path:     "/v1/users/" + stud.ID,
			token:    adminToken,
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, errNotFound),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := http.MethodDelete
			if tt.name == "gone" {
				method = http.MethodGet
			}
			req, rec := newAuthRequest(method, tt.path, tt.token)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_destroyMultiple(t *testing.T) {
	resetDB(t)

	admin := createAdmin(t, "admin001")
	stud1 := createStudent(t, "student1")
	stud2 := createStudent(t, "student2")
	adminToken := getToken(t, admin)

	t.Run("no self-deletion", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/v1/users?id="+stud1.ID+"&id="+admin.ID, adminToken)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, errPermDenied)}, rec)
	})

	t.Run("bulk delete", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/v1/users?id="+stud1.ID+"&id="+stud2.ID, adminToken)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusNoContent}, rec)

		req, rec = newAuthRequest(http.MethodGet, "/v1/users", adminToken)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallList(t, admin)}, rec)
	})
}

func Test_userApi_queryRoles(t *testing.T) {
	resetDB(t)
	admin := createAdmin(t, "admin001")

	req, rec := newAuthRequest(http.MethodGet, "/v1/users/roles", getToken(t, admin))
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, user.Roles)}, rec)
}
