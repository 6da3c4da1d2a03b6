package dto

import (
	"time"

	"github.com/noah-isme/brovoice-api/internal/models"
)

// NotificationCreateRequest defines the payload to publish an in-app notification.
type NotificationCreateRequest struct {
	UserID      string `json:"user_id" validate:"required,max=64"`
	Type        string `json:"type" validate:"required,max=64"`
	Message     string `json:"message" validate:"required,min=1,max=2000"`
	ComplaintID string `json:"complaint_id" validate:"omitempty,max=64"`
}

// NotificationResponse represents notification data returned to clients.
type NotificationResponse struct {
	ID          uint      `json:"id"`
	UserID      string    `json:"user_id"`
	Type        string    `json:"type"`
	Message     string    `json:"message"`
	ComplaintID string    `json:"complaint_id,omitempty"`
	Read        bool      `json:"read"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewNotificationResponse maps the notification model.
func NewNotificationResponse(n models.Notification) NotificationResponse {
	return NotificationResponse{
		ID:          n.ID,
		UserID:      n.UserID,
		Type:        n.Type,
		Message:     n.Message,
		ComplaintID: n.ComplaintID,
		Read:        n.Read,
		CreatedAt:   n.CreatedAt,
		UpdatedAt:   n.UpdatedAt,
	}
}

// NewNotificationResponseSlice maps a slice of notifications.
func NewNotificationResponseSlice(items []models.Notification) []NotificationResponse {
	responses := make([]NotificationResponse, 0, len(items))
	for _, item := range items {
		responses = append(responses, NewNotificationResponse(item))
	}
	return responses
}

// NotificationListResponse wraps a notification page with the unread counter.
type NotificationListResponse struct {
	Items  []NotificationResponse `json:"items"`
	Unread int64                  `json:"unread"`
}

// ComplaintMailRequest is the body of the complaint email endpoint.
type ComplaintMailRequest struct {
	To             string `json:"to" validate:"required,email"`
	Subject        string `json:"subject" validate:"required,max=255"`
	ComplaintTitle string `json:"complaintTitle" validate:"required,max=200"`
	ComplaintID    string `json:"complaintId" validate:"required,max=64"`
	Status         string `json:"status" validate:"omitempty,max=32"`
	Message        string `json:"message" validate:"required,max=5000"`
}

// ComplaintMailResponse carries the provider message id.
type ComplaintMailResponse struct {
	ID string `json:"id"`
}

// MailDeliveryResponse describes one recorded email attempt. Recipients are stored masked.
type MailDeliveryResponse struct {
	ID          uint      `json:"id"`
	Recipient   string    `json:"recipient"`
	Subject     string    `json:"subject"`
	Provider    string    `json:"provider"`
	ProviderRef string    `json:"provider_ref,omitempty"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewMailDeliveryResponses maps stored delivery rows.
func NewMailDeliveryResponses(items []models.MailDelivery) []MailDeliveryResponse {
	out := make([]MailDeliveryResponse, 0, len(items))
	for _, item := range items {
		out = append(out, MailDeliveryResponse{
			ID:          item.ID,
			Recipient:   item.Recipient,
			Subject:     item.Subject,
			Provider:    item.Provider,
			ProviderRef: item.ProviderRef,
			Status:      item.Status,
			Error:       item.Error,
			CreatedAt:   item.CreatedAt,
		})
	}
	return out
}
