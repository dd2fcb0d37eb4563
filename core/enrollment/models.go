package enrollment

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/darasahq/darasa/core"
)

// Enrollment grants one learner access to one course's content.
// Unique per (UserID, CourseID); enforced at the storage layer.
type Enrollment struct {
	ID         string    `json:"id"`
	CourseID   string    `json:"course_id"`
	UserID     string    `json:"user_id"`
	EnrolledAt time.Time `json:"enrolled_at"` // UTC
}

// EnrollRequest carries the optional access code supplied by the learner.
type EnrollRequest struct {
	AccessCode string `json:"access_code"`
}

func (er *EnrollRequest) Validate(validate *validator.Validate) error {
	er.AccessCode = core.CleanString(er.AccessCode)
	return validate.Struct(er)
}
