package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/noah-isme/brovoice-api/internal/models"
)

// UserFilter defines filters for the admin user listing.
type UserFilter struct {
	Search   string
	Role     string
	Page     int
	PageSize int
}

// UserRepository persists profiles together with their single role.
type UserRepository interface {
	Create(ctx context.Context, profile *models.Profile, role string) error
	GetByID(ctx context.Context, id string) (models.Profile, error)
	FindByEmail(ctx context.Context, email string) (models.Profile, error)
	List(ctx context.Context, filter UserFilter) ([]models.Profile, int64, error)
	UpdateRole(ctx context.Context, id string, role string) (models.Profile, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository constructs the profile/role repository.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, profile *models.Profile, role string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Role").Create(profile).Error; err != nil {
			return err
		}

		userRole := models.UserRole{UserID: profile.ID, Role: role}
		if err := tx.Create(&userRole).Error; err != nil {
			return err
		}

		profile.Role = userRole
		return nil
	})
}

func (r *userRepository) GetByID(ctx context.Context, id string) (models.Profile, error) {
	var profile models.Profile
	if err := r.db.WithContext(ctx).Preload("Role").Where("id = ?", id).First(&profile).Error; err != nil {
		return models.Profile{}, err
	}
	return profile, nil
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (models.Profile, error) {
	var profile models.Profile
	normalized := strings.ToLower(strings.TrimSpace(email))
	if err := r.db.WithContext(ctx).Preload("Role").Where("email = ?", normalized).First(&profile).Error; err != nil {
		return models.Profile{}, err
	}
	return profile, nil
}

func (r *userRepository) List(ctx context.Context, filter UserFilter) ([]models.Profile, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Profile{})

	if filter.Search != "" {
		like := "%" + strings.ToLower(strings.TrimSpace(filter.Search)) + "%"
		query = query.Where("LOWER(full_name) LIKE ? OR LOWER(email) LIKE ?", like, like)
	}

	if filter.Role != "" {
		query = query.Where("id IN (?)", r.db.Model(&models.UserRole{}).Select("user_id").Where("role = ?", filter.Role))
	}

	countQuery := query.Session(&gorm.Session{})
	var total int64
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = query.Scopes(pageScope(filter.Page, filter.PageSize))

	var profiles []models.Profile
	if err := query.Preload("Role").Order("created_at DESC").Find(&profiles).Error; err != nil {
		return nil, 0, err
	}

	return profiles, total, nil
}

func (r *userRepository) UpdateRole(ctx context.Context, id string, role string) (models.Profile, error) {
	var profile models.Profile
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&profile).Error; err != nil {
			return err
		}

		result := tx.Model(&models.UserRole{}).Where("user_id = ?", id).Update("role", role)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			if err := tx.Create(&models.UserRole{UserID: id, Role: role}).Error; err != nil {
				return err
			}
		}

		return tx.Preload("Role").Where("id = ?", id).First(&profile).Error
	})
	if err != nil {
		return models.Profile{}, err
	}
	return profile, nil
}
