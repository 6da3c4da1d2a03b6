package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/brovoice-api/internal/models"
	"github.com/noah-isme/brovoice-api/internal/session"
)

// ComplaintFilter narrows complaint listings at the storage level.
type ComplaintFilter struct {
	Statuses []string
	Category string
	Since    *time.Time
	Page     int
	PageSize int
}

// ComplaintChanges carries the independently settable fields of a staff update.
type ComplaintChanges struct {
	Status               *string
	InternalNotes        *string
	ResolutionNote       *string
	ExpectedResolutionAt *time.Time
}

// Empty reports whether no field is set.
func (c ComplaintChanges) Empty() bool {
	return c.Status == nil && c.InternalNotes == nil && c.ResolutionNote == nil && c.ExpectedResolutionAt == nil
}

// ComplaintRepository provides role-scoped access to complaint records.
type ComplaintRepository interface {
	List(ctx context.Context, sess session.Session, filter ComplaintFilter) ([]models.Complaint, int64, error)
	GetByID(ctx context.Context, sess session.Session, id string) (models.Complaint, error)
	TicketExists(ctx context.Context, ticketID string) (bool, error)
	OwnerOf(ctx context.Context, id string) (string, error)
	Create(ctx context.Context, sess session.Session, complaint *models.Complaint) error
	Update(ctx context.Context, sess session.Session, id string, changes ComplaintChanges) (models.Complaint, error)
	ImportBatch(ctx context.Context, complaints []models.Complaint) (int64, error)
}

type complaintRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewComplaintRepository instantiates a GORM-backed complaint repository.
func NewComplaintRepository(db *gorm.DB) ComplaintRepository {
	return &complaintRepository{db: db, now: time.Now}
}

func (r *complaintRepository) scoped(ctx context.Context, sess session.Session) (*gorm.DB, error) {
	if err := sess.Require(); err != nil {
		return nil, err
	}

	query := r.db.WithContext(ctx).Model(&models.Complaint{})
	if !sess.IsStaff() {
		query = query.Where("user_id = ?", sess.UserID)
	}
	return query, nil
}

func (r *complaintRepository) List(ctx context.Context, sess session.Session, filter ComplaintFilter) ([]models.Complaint, int64, error) {
	query, err := r.scoped(ctx, sess)
	if err != nil {
		return nil, 0, err
	}

	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", filter.Statuses)
	}
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.Since != nil {
		query = query.Where("created_at >= ?", *filter.Since)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = query.Scopes(pageScope(filter.Page, filter.PageSize))

	var complaints []models.Complaint
	if err := query.Order("created_at DESC").Find(&complaints).Error; err != nil {
		return nil, 0, err
	}

	for i := range complaints {
		complaints[i] = Redact(sess, complaints[i])
	}

	return complaints, total, nil
}

func (r *complaintRepository) GetByID(ctx context.Context, sess session.Session, id string) (models.Complaint, error) {
	query, err := r.scoped(ctx, sess)
	if err != nil {
		return models.Complaint{}, err
	}

	var complaint models.Complaint
	if err := query.Where("id = ?", id).First(&complaint).Error; err != nil {
		return models.Complaint{}, err
	}

	return Redact(sess, complaint), nil
}

func (r *complaintRepository) TicketExists(ctx context.Context, ticketID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Complaint{}).
		Where("ticket_id = ?", ticketID).
		Count(&count).Error
	return count > 0, err
}

// OwnerOf returns the submitter of a complaint for notification routing. It bypasses redaction and must
// never feed a response.
func (r *complaintRepository) OwnerOf(ctx context.Context, id string) (string, error) {
	var owners []string
	err := r.db.WithContext(ctx).
		Model(&models.Complaint{}).
		Where("id = ?", id).
		Limit(1).
		Pluck("user_id", &owners).Error
	if err != nil {
		return "", err
	}
	if len(owners) == 0 {
		return "", gorm.ErrRecordNotFound
	}
	return owners[0], nil
}

func (r *complaintRepository) Create(ctx context.Context, sess session.Session, complaint *models.Complaint) error {
	if err := sess.Require(); err != nil {
		return err
	}

	complaint.UserID = sess.UserID
	if complaint.Status == "" {
		complaint.Status = models.ComplaintStatusNew
	}
	now := r.now()
	complaint.CreatedAt = now
	complaint.UpdatedAt = now

	if err := r.db.WithContext(ctx).Create(complaint).Error; err != nil {
		return err
	}

	*complaint = Redact(sess, *complaint)
	return nil
}

func (r *complaintRepository) Update(ctx context.Context, sess session.Session, id string, changes ComplaintChanges) (models.Complaint, error) {
	if err := sess.RequireStaff(); err != nil {
		return models.Complaint{}, err
	}

	var complaint models.Complaint
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&complaint).Error; err != nil {
			return err
		}

		updatedAt := r.now()
		if updatedAt.Before(complaint.CreatedAt) {
			updatedAt = complaint.CreatedAt
		}

		updates := map[string]interface{}{"updated_at": updatedAt}
		if changes.Status != nil {
			updates["status"] = *changes.Status
		}
		if changes.InternalNotes != nil {
			updates["internal_notes"] = *changes.InternalNotes
		}
		if changes.ResolutionNote != nil {
			updates["resolution_note"] = *changes.ResolutionNote
		}
		if changes.ExpectedResolutionAt != nil {
			updates["expected_resolution_at"] = *changes.ExpectedResolutionAt
		}

		if err := tx.Model(&models.Complaint{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return err
		}

		return tx.Where("id = ?", id).First(&complaint).Error
	})
	if err != nil {
		return models.Complaint{}, err
	}

	return Redact(sess, complaint), nil
}

const importBatchSize = 100

// ImportBatch inserts complaints as given, keeping their timestamps. Existing ticket codes are skipped.
func (r *complaintRepository) ImportBatch(ctx context.Context, complaints []models.Complaint) (int64, error) {
	if len(complaints) == 0 {
		return 0, nil
	}

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "ticket_id"}}, DoNothing: true}).
		CreateInBatches(&complaints, importBatchSize)
	return result.RowsAffected, result.Error
}

// Redact strips fields the viewer may not see. Anonymous complaints lose the student name and the owner id
// for anyone but the owner; students never see internal notes.
func Redact(sess session.Session, complaint models.Complaint) models.Complaint {
	if complaint.IsAnonymous && complaint.UserID != sess.UserID {
		complaint.StudentName = nil
		complaint.UserID = ""
	}
	if !sess.IsStaff() {
		complaint.InternalNotes = nil
	}
	return complaint
}
