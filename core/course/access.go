package course

import (
	"context"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/user"
)

// Relationship classifies a caller's standing towards a course.
// Precedence: Owner > Admin > Enrolled > Guest.
type Relationship int

const (
	Guest Relationship = iota
	Enrolled
	Admin
	Owner
)

func (r Relationship) String() string {
	switch r {
	case Owner:
		return "owner"
	case Admin:
		return "admin"
	case Enrolled:
		return "enrolled"
	}
	return "guest"
}

// CanView reports whether the course's content listing may be read.
func (r Relationship) CanView() bool { return r > Guest }

// CanManage reports whether the course's structure (lists, content items)
// may be mutated. Course ownership is the binding permission; authorship of
// an individual item is not.
func (r Relationship) CanManage() bool { return r >= Admin }

// EnrollmentChecker reports whether a user holds an active enrollment in a
// course. Implemented by the enrollment repository.
type EnrollmentChecker interface {
	IsEnrolled(ctx context.Context, courseID, userID string) (bool, error)
}

// ClassifyRelationship is the single place where the owner/admin/enrolled
// precedence is decided.
func ClassifyRelationship(usr user.User, crs Course, enrolled bool) Relationship {
	switch {
	case usr.ID == crs.OwnerID:
		return Owner
	case usr.IsAdmin():
		return Admin
	case enrolled:
		return Enrolled
	}
	return Guest
}

var (
	errEnrollToView     = core.NewPermissionError("enroll in this course to view its content")
	errPermissionDenied = core.NewPermissionError("permission denied")
)

// classify resolves the caller's relationship, checking enrollment only when
// needed.
func (svc *Service) classify(ctx context.Context, usr user.User, crs Course) (Relationship, error) {
	if usr.ID == crs.OwnerID || usr.IsAdmin() {
		return ClassifyRelationship(usr, crs, false), nil
	}
	enrolled, err := svc.enrolled.IsEnrolled(ctx, crs.ID, usr.ID)
	if err != nil {
		return Guest, err
	}
	return ClassifyRelationship(usr, crs, enrolled), nil
}
