package notification

import (
	"time"

	"github.com/volatiletech/null/v8"
)

// Kind is the closed set of notification kinds.
type Kind string

const (
	KindNewContent       Kind = "new-content"
	KindNewEnrollment    Kind = "new-enrollment"
	KindMembershipChange Kind = "membership-change"
	KindMilestone        Kind = "milestone"
	KindGeneric          Kind = "generic"
)

// Notification targets exactly one recipient. Only the read flag is ever
// mutated after creation.
type Notification struct {
	ID        string      `json:"id"`
	UserID    string      `json:"-"`
	Kind      Kind        `json:"kind"`
	Title     string      `json:"title"`
	Message   string      `json:"message"`
	Link      null.String `json:"link"`
	CourseID  null.String `json:"course_id"`
	Read      bool        `json:"read"`
	CreatedAt time.Time   `json:"created_at"` // UTC
}

// Template is the recipient-independent content of a notification; fanout
// stamps one Notification per recipient from it.
type Template struct {
	Kind     Kind
	Title    string
	Message  string
	Link     null.String
	CourseID null.String
}

// For materializes the template for one recipient.
func (t Template) For(userID string) Notification {
	return Notification{
		UserID:    userID,
		Kind:      t.Kind,
		Title:     t.Title,
		Message:   t.Message,
		Link:      t.Link,
		CourseID:  t.CourseID,
		CreatedAt: time.Now().UTC(),
	}
}
