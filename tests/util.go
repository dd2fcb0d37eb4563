package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/course"
	"github.com/darasahq/darasa/core/enrollment"
	"github.com/darasahq/darasa/core/user"
)

// NewValidator returns a fully initialized validator and its translator.
func NewValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	return validate, translator
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	usr.SetActive(isActive)
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateCourse(
	t *testing.T,
	repo course.Repository,
	ownerID, title, subject, accessCode string,
) course.Course {
	now := time.Now().UTC()
	crs, err := repo.CreateCourse(context.Background(), course.Course{
		Title:      title,
		Subject:    subject,
		OwnerID:    ownerID,
		AccessCode: null.NewString(accessCode, accessCode != ""),
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		t.Fatalf("CreateCourse() failed: %v", err)
	}
	return crs
}

func CreateList(t *testing.T, repo course.Repository, courseID, title string) course.List {
	lst, err := repo.CreateList(context.Background(), course.List{CourseID: courseID, Title: title})
	if err != nil {
		t.Fatalf("CreateList() failed: %v", err)
	}
	return lst
}

func CreateLesson(t *testing.T, repo course.Repository, courseID string, listID null.String, title string) course.ContentItem {
	return createItem(t, repo, course.ContentItem{
		CourseID: courseID,
		ListID:   listID,
		Kind:     course.KindLesson,
		Title:    title,
		Video:    "https://videos.test.cd/" + title,
	})
}

func CreateActivity(
	t *testing.T,
	repo course.Repository,
	courseID string,
	listID null.String,
	title string,
	questions []course.Question,
) course.ContentItem {
	return createItem(t, repo, course.ContentItem{
		CourseID:  courseID,
		ListID:    listID,
		Kind:      course.KindActivity,
		Title:     title,
		Questions: questions,
	})
}

func CreateMaterial(t *testing.T, repo course.Repository, courseID string, listID null.String, title string) course.ContentItem {
	return createItem(t, repo, course.ContentItem{
		CourseID: courseID,
		ListID:   listID,
		Kind:     course.KindMaterial,
		Title:    title,
		FilePath: "uploads/" + title + ".pdf",
	})
}

func createItem(t *testing.T, repo course.Repository, it course.ContentItem) course.ContentItem {
	now := time.Now().UTC()
	it.CreatedAt = now
	it.UpdatedAt = now
	it, err := repo.CreateItem(context.Background(), it)
	if err != nil {
		t.Fatalf("createItem() failed: %v", err)
	}
	return it
}

func Enroll(t *testing.T, repo enrollment.Repository, courseID, userID string) enrollment.Enrollment {
	enr, err := repo.CreateEnrollment(context.Background(), enrollment.Enrollment{
		CourseID:   courseID,
		UserID:     userID,
		EnrolledAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("Enroll() failed: %v", err)
	}
	return enr
}
