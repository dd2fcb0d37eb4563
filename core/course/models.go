package course

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/darasahq/darasa/core"
)

// ContentKind discriminates the content item variants.
type ContentKind string

const (
	KindLesson   ContentKind = "lesson"
	KindActivity ContentKind = "activity"
	KindMaterial ContentKind = "material"
)

type Course struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Subject     string      `json:"subject"`
	Description string      `json:"description"`
	OwnerID     string      `json:"owner_id"`
	AccessCode  null.String `json:"-"` // classroom key; never serialized
	CreatedAt   time.Time   `json:"created_at"` // UTC
	UpdatedAt   time.Time   `json:"updated_at"` // UTC
}

// Protected reports whether enrolling requires an access code.
func (c Course) Protected() bool {
	return c.AccessCode.Valid && c.AccessCode.String != ""
}

// List is a named, ordered grouping of content items within a course.
type List struct {
	ID       string `json:"id"`
	CourseID string `json:"course_id"`
	Title    string `json:"title"`
	Position int    `json:"position"`
}

// Question belongs to an activity's ordered question set.
type Question struct {
	Prompt        string   `json:"prompt"`
	Options       []string `json:"options"`
	CorrectOption int      `json:"correct_option"` // index into Options
}

// ContentItem is a lesson, activity or material.
// Position is unique within its list (or within the course's no-list bucket).
type ContentItem struct {
	ID         string      `json:"id"`
	CourseID   string      `json:"course_id"`
	ListID     null.String `json:"list_id"`
	Kind       ContentKind `json:"kind"`
	Title      string      `json:"title"`
	Position   int         `json:"position"`
	DueDate    null.Time   `json:"due_date"`
	CreatorID  string      `json:"creator_id"`
	Video      string      `json:"video,omitempty"`       // lessons
	CoverImage string      `json:"cover_image,omitempty"` // lessons
	Questions  []Question  `json:"questions,omitempty"`   // activities
	FilePath   string      `json:"file_path,omitempty"`   // materials
	CreatedAt  time.Time   `json:"created_at"`            // UTC
	UpdatedAt  time.Time   `json:"updated_at"`            // UTC
}

// Trackable reports whether completing the item counts towards course progress.
// Materials are downloadables; they are never tracked.
func (it ContentItem) Trackable() bool {
	return it.Kind == KindLesson || it.Kind == KindActivity
}

// NewCourse contains information needed to create a new Course.
type NewCourse struct {
	Title       string `json:"title" validate:"required"`
	Subject     string `json:"subject"`
	Description string `json:"description"`
	AccessCode  string `json:"access_code" validate:"omitempty,accesscode"`
}

func (nc *NewCourse) Validate(validate *validator.Validate) error {
	nc.Title = core.CleanString(nc.Title)
	nc.Subject = core.CleanString(nc.Subject)
	nc.AccessCode = core.CleanString(nc.AccessCode)
	return validate.Struct(nc)
}

// UpdateCourse defines what information may be provided to modify an existing Course.
type UpdateCourse struct {
	Title       string  `json:"title"`
	Subject     string  `json:"subject"`
	Description string  `json:"description"`
	AccessCode  *string `json:"access_code" validate:"omitempty,accesscode"` // "" clears the code
}

func (uc *UpdateCourse) Validate(validate *validator.Validate, orig Course) error {
	if title := core.CleanString(uc.Title); title != "" {
		uc.Title = title
	} else {
		uc.Title = orig.Title
	}
	if uc.Subject == "" {
		uc.Subject = orig.Subject
	}
	if uc.Description == "" {
		uc.Description = orig.Description
	}
	if uc.AccessCode != nil {
		code := core.CleanString(*uc.AccessCode)
		uc.AccessCode = &code // "" clears the code and opens the course
		if code != "" {
			return validate.Struct(uc)
		}
	}
	return validate.StructExcept(uc, "AccessCode")
}

// NewList contains information needed to create a new List.
type NewList struct {
	Title string `json:"title" validate:"required"`
}

func (nl *NewList) Validate(validate *validator.Validate) error {
	nl.Title = core.CleanString(nl.Title)
	return validate.Struct(nl)
}

// NewContentItem contains information needed to create a new ContentItem.
// Kind-specific payload is validated in Validate.
type NewContentItem struct {
	Kind       ContentKind `json:"kind" validate:"required,oneof=lesson activity material"`
	ListID     string      `json:"list_id"`
	Title      string      `json:"title" validate:"required"`
	DueDate    null.Time   `json:"due_date"`
	Video      string      `json:"video"`
	CoverImage string      `json:"cover_image"`
	Questions  []Question  `json:"questions"`
	FilePath   string      `json:"file_path"`
}

func (ni *NewContentItem) Validate(validate *validator.Validate) error {
	ni.Title = core.CleanString(ni.Title)
	ni.Video = core.CleanString(ni.Video)
	ni.FilePath = core.CleanString(ni.FilePath)

	if err := validate.Struct(ni); err != nil {
		return err
	}

	switch ni.Kind {
	case KindLesson:
		if ni.Video == "" {
			return core.NewValidationError(nil, core.FieldError{Field: "video", Error: "a lesson requires a video"})
		}
	case KindActivity:
		if len(ni.Questions) == 0 {
			return core.NewValidationError(nil, core.FieldError{Field: "questions", Error: "an activity requires at least one question"})
		}
		for _, q := range ni.Questions {
			if q.Prompt == "" || len(q.Options) == 0 || q.CorrectOption < 0 || q.CorrectOption >= len(q.Options) {
				return core.NewValidationError(nil, core.FieldError{Field: "questions", Error: "malformed question"})
			}
		}
	case KindMaterial:
		if ni.FilePath == "" {
			return core.NewValidationError(nil, core.FieldError{Field: "file_path", Error: "a material requires a file"})
		}
	}
	return nil
}

// UpdateContentItem defines what information may be provided to modify an existing ContentItem.
// The item's kind is immutable.
type UpdateContentItem struct {
	Title      string     `json:"title"`
	DueDate    null.Time  `json:"due_date"`
	Video      string     `json:"video"`
	CoverImage string     `json:"cover_image"`
	Questions  []Question `json:"questions"`
	FilePath   string     `json:"file_path"`
}

func (ui *UpdateContentItem) Validate(validate *validator.Validate, orig ContentItem) error {
	if title := core.CleanString(ui.Title); title != "" {
		ui.Title = title
	} else {
		ui.Title = orig.Title
	}
	if orig.Kind == KindActivity && ui.Questions != nil && len(ui.Questions) == 0 {
		return core.NewValidationError(errors.New("an activity requires at least one question"))
	}
	return validate.Struct(ui)
}

// Reorder is an explicit full ordering of the items of one scope.
type Reorder struct {
	OrderedIDs []string `json:"ordered_ids" validate:"required,min=1"`
}

func (r *Reorder) Validate(validate *validator.Validate) error {
	return validate.Struct(r)
}

// QueryFilter filters course listings.
type QueryFilter struct {
	Search  string `query:"search"`
	OwnerID string `query:"owner"`
	Subject string `query:"subject"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.OwnerID == "" && qf.Subject == ""
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Subject = core.CleanString(qf.Subject)
}
