package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/geoattend-api/internal/models"
)

// UserRepository reads accounts created by the signup flow.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (models.User, error)
	UpdateProfile(ctx context.Context, id uint, name, gender string) error
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository constructs a GORM-backed user repository.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (r *userRepository) UpdateProfile(ctx context.Context, id uint, name, gender string) error {
	result := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).
		Updates(map[string]interface{}{"name": name, "gender": gender})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
