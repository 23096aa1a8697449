package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/geoattend-api/internal/models"
)

// RosterRepository provides the enrolled students of a class.
type RosterRepository interface {
	Enroll(ctx context.Context, classID, userID uint) error
	Unenroll(ctx context.Context, classID, userID uint) error
	ListStudents(ctx context.Context, classID uint) ([]models.User, error)
}

type rosterRepository struct {
	db *gorm.DB
}

// NewRosterRepository constructs a GORM-backed roster repository.
func NewRosterRepository(db *gorm.DB) RosterRepository {
	return &rosterRepository{db: db}
}

func (r *rosterRepository) Enroll(ctx context.Context, classID, userID uint) error {
	enrollment := models.Enrollment{ClassID: classID, UserID: userID}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "class_id"}},
			DoNothing: true,
		}).
		Create(&enrollment).Error
}

func (r *rosterRepository) Unenroll(ctx context.Context, classID, userID uint) error {
	result := r.db.WithContext(ctx).
		Where("class_id = ? AND user_id = ?", classID, userID).
		Delete(&models.Enrollment{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *rosterRepository) ListStudents(ctx context.Context, classID uint) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Select("users.*").
		Joins("JOIN enrollments ON enrollments.user_id = users.id").
		Where("enrollments.class_id = ?", classID).
		Order("users.name ASC, users.id ASC").
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}
