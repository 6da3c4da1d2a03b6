package models

import "time"

// Notification types.
const (
	NotificationTypeComplaintCreated = "complaint_created"
	NotificationTypeStatusChanged    = "status_changed"
	NotificationTypeResolutionAdded  = "resolution_added"
)

// Notification represents an in-app message targeted to a specific user.
type Notification struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      string    `gorm:"size:36;index" json:"user_id"`
	Type        string    `gorm:"size:64" json:"type"`
	Message     string    `gorm:"type:text" json:"message"`
	ComplaintID string    `gorm:"size:36;index" json:"complaint_id"`
	Read        bool      `gorm:"not null;default:false" json:"read"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Mail delivery outcomes.
const (
	MailDeliverySent   = "sent"
	MailDeliveryFailed = "failed"
)

// MailDelivery records one attempt to email a complaint update.
type MailDelivery struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ComplaintID string    `gorm:"size:36;index" json:"complaint_id"`
	Recipient   string    `gorm:"size:255" json:"recipient"`
	Subject     string    `gorm:"size:255" json:"subject"`
	Provider    string    `gorm:"size:32" json:"provider"`
	ProviderRef string    `gorm:"size:128" json:"provider_ref"`
	Status      string    `gorm:"size:16;index" json:"status"`
	Error       string    `gorm:"type:text" json:"error"`
	CreatedAt   time.Time `json:"created_at"`
}
