package tests

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/darasahq/darasa/core/notification"
)

func notify(t *testing.T, userID, title string) notification.Notification {
	t.Helper()
	tpl := notification.Template{Kind: notification.KindGeneric, Title: title, Message: "hello"}
	if err := notifSvc.NotifyUser(bgCtx, userID, tpl); err != nil {
		t.Fatalf("NotifyUser() failed: %v", err)
	}
	notifs, err := notifSvc.QueryByUser(bgCtx, userID, false)
	if err != nil {
		t.Fatalf("QueryByUser() failed: %v", err)
	}
	return notifs[0] // newest first
}

func Test_notificationApi_query(t *testing.T) {
	resetDB(t)

	usr := createStudent(t, "student1")
	other := createStudent(t, "student2")
	mine := notify(t, usr.ID, "mine")
	notify(t, other.ID, "not mine")
	token := getToken(t, usr)

	t.Run("only mine", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/notifications", token)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallList(t, mine)}, rec)
	})

	t.Run("unread filter", func(t *testing.T) {
		if _, err := notifSvc.MarkRead(bgCtx, mine.ID, usr.ID); err != nil {
			t.Fatalf("MarkRead() failed: %v", err)
		}
		req, rec := newAuthRequest(http.MethodGet, "/v1/notifications?unread=true", token)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: []byte(`[]`)}, rec)
	})
}

func Test_notificationApi_markRead(t *testing.T) {
	resetDB(t)

	usr := createStudent(t, "student1")
	other := createStudent(t, "student2")
	notif := notify(t, usr.ID, "mine")

	t.Run("someone else's is invisible", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/notifications/"+notif.ID+"/read", getToken(t, other))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound)}, rec)
	})

	t.Run("mark read", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/notifications/"+notif.ID+"/read", getToken(t, usr))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; body %v", rec.Code, rec.Body.String())
		}
		var got notification.Notification
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if !got.Read {
			t.Error("Read = false")
		}
	})
}

func Test_notificationApi_markAllRead(t *testing.T) {
	resetDB(t)

	usr := createStudent(t, "student1")
	notify(t, usr.ID, "one")
	notify(t, usr.ID, "two")
	token := getToken(t, usr)

	req, rec := newAuthRequest(http.MethodPost, "/v1/notifications/read-all", token)
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusNoContent}, rec)

	req, rec = newAuthRequest(http.MethodGet, "/v1/notifications?unread=true", token)
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: []byte(`[]`)}, rec)
}

func Test_notificationApi_purgeRead(t *testing.T) {
	resetDB(t)

	usr := createStudent(t, "student1")
	read := notify(t, usr.ID, "read me")
	unread := notify(t, usr.ID, "keep me")
	if _, err := notifSvc.MarkRead(bgCtx, read.ID, usr.ID); err != nil {
		t.Fatalf("MarkRead() failed: %v", err)
	}
	token := getToken(t, usr)

	req, rec := newAuthRequest(http.MethodDelete, "/v1/notifications/read", token)
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusNoContent}, rec)

	req, rec = newAuthRequest(http.MethodGet, "/v1/notifications", token)
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallList(t, unread)}, rec)
}

func Test_notificationApi_destroy(t *testing.T) {
	resetDB(t)

	usr := createStudent(t, "student1")
	other := createStudent(t, "student2")
	notif := notify(t, usr.ID, "bye")

	t.Run("someone else's is invisible", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/v1/notifications/"+notif.ID, getToken(t, other))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound)}, rec)
	})

	t.Run("delete", func(t *testing.T) {
		token := getToken(t, usr)
		req, rec := newAuthRequest(http.MethodDelete, "/v1/notifications/"+notif.ID, token)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusNoContent}, rec)

		req, rec = newAuthRequest(http.MethodGet, "/v1/notifications", token)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: []byte(`[]`)}, rec)
	})
}
