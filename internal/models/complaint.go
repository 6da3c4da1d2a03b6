package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Complaint statuses. Transitions between them are not constrained.
const (
	ComplaintStatusNew        = "new"
	ComplaintStatusInProgress = "in_progress"
	ComplaintStatusResolved   = "resolved"
)

// Complaint categories.
const (
	CategoryMentorUnresponsive = "mentor_unresponsive"
	CategoryDoubtNotCleared    = "doubt_not_cleared"
	CategoryFeedbackDelay      = "feedback_delay"
	CategoryPlatformBug        = "platform_bug"
	CategoryOther              = "other"
)

// ComplaintStatuses lists every valid status in lifecycle order.
var ComplaintStatuses = []string{ComplaintStatusNew, ComplaintStatusInProgress, ComplaintStatusResolved}

// ComplaintCategories lists every valid category in display order.
var ComplaintCategories = []string{
	CategoryMentorUnresponsive,
	CategoryDoubtNotCleared,
	CategoryFeedbackDelay,
	CategoryPlatformBug,
	CategoryOther,
}

var categoryLabels = map[string]string{
	CategoryMentorUnresponsive: "Mentor Unresponsive",
	CategoryDoubtNotCleared:    "Doubt Not Cleared",
	CategoryFeedbackDelay:      "Project Feedback Delay",
	CategoryPlatformBug:        "Platform Bug",
	CategoryOther:              "Other",
}

// Complaint is a student-raised ticket tracked through new, in_progress and resolved.
type Complaint struct {
	ID                   string     `gorm:"primaryKey;size:36" json:"id"`
	TicketID             string     `gorm:"size:16;uniqueIndex;not null" json:"ticket_id"`
	UserID               string     `gorm:"size:36;index;not null" json:"user_id"`
	StudentName          *string    `gorm:"size:255" json:"student_name"`
	Title                string     `gorm:"size:200;not null" json:"title"`
	Category             string     `gorm:"size:32;index;not null" json:"category"`
	Description          string     `gorm:"type:text;not null" json:"description"`
	Status               string     `gorm:"size:32;index;not null;default:new" json:"status"`
	ScreenshotURL        *string    `gorm:"size:512" json:"screenshot_url"`
	IsAnonymous          bool       `gorm:"not null;default:false" json:"is_anonymous"`
	ExpectedResolutionAt *time.Time `json:"expected_resolution_at"`
	ResolutionNote       *string    `gorm:"type:text" json:"resolution_note"`
	InternalNotes        *string    `gorm:"type:text" json:"internal_notes"`
	CreatedAt            time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// IsResolved reports whether the complaint reached the resolved status.
func (c Complaint) IsResolved() bool {
	return c.Status == ComplaintStatusResolved
}

// ResolutionHours returns the hours elapsed between creation and the last update.
func (c Complaint) ResolutionHours() float64 {
	if c.UpdatedAt.Before(c.CreatedAt) {
		return 0
	}
	return c.UpdatedAt.Sub(c.CreatedAt).Hours()
}

// IsValidComplaintStatus reports whether status is one of the known statuses.
func IsValidComplaintStatus(status string) bool {
	for _, candidate := range ComplaintStatuses {
		if candidate == status {
			return true
		}
	}
	return false
}

// IsValidComplaintCategory reports whether category is one of the known categories.
func IsValidComplaintCategory(category string) bool {
	_, ok := categoryLabels[category]
	return ok
}

// CategoryLabel returns the human readable label of a category.
func CategoryLabel(category string) string {
	if label, ok := categoryLabels[category]; ok {
		return label
	}
	return category
}

// CategoryFromLabel maps a human readable label back to its category key.
func CategoryFromLabel(label string) (string, bool) {
	for key, value := range categoryLabels {
		if value == label {
			return key, true
		}
	}
	return "", false
}

// BeforeCreate assigns an opaque identifier when none is set.
func (c *Complaint) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}
