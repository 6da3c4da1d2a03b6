package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/brovoice-api/internal/models"
)

// MailDeliveryRepository records outcomes of complaint emails.
type MailDeliveryRepository interface {
	Create(ctx context.Context, delivery *models.MailDelivery) error
	ListByComplaint(ctx context.Context, complaintID string) ([]models.MailDelivery, error)
}

type mailDeliveryRepository struct {
	db *gorm.DB
}

// NewMailDeliveryRepository constructs the mail delivery log repository.
func NewMailDeliveryRepository(db *gorm.DB) MailDeliveryRepository {
	return &mailDeliveryRepository{db: db}
}

func (r *mailDeliveryRepository) Create(ctx context.Context, delivery *models.MailDelivery) error {
	return r.db.WithContext(ctx).Create(delivery).Error
}

func (r *mailDeliveryRepository) ListByComplaint(ctx context.Context, complaintID string) ([]models.MailDelivery, error) {
	var deliveries []models.MailDelivery
	err := r.db.WithContext(ctx).
		Where("complaint_id = ?", complaintID).
		Order("created_at DESC").
		Find(&deliveries).Error
	return deliveries, err
}
