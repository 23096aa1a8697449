package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/noah-isme/geoattend-api/internal/models"
)

// ClassFilter narrows class listings.
type ClassFilter struct {
	Search    string
	DayOfWeek string
}

// ClassRepository persists class sessions.
type ClassRepository interface {
	List(ctx context.Context, filter ClassFilter) ([]models.ClassSession, error)
	GetByID(ctx context.Context, id uint) (models.ClassSession, error)
	Create(ctx context.Context, class *models.ClassSession) error
	Update(ctx context.Context, class *models.ClassSession) error
	UpdateStatus(ctx context.Context, id uint, status models.ClassStatus, reschedule models.Reschedule) error
	Delete(ctx context.Context, id uint) error
}

type classRepository struct {
	db *gorm.DB
}

// NewClassRepository constructs a GORM-backed class repository.
func NewClassRepository(db *gorm.DB) ClassRepository {
	return &classRepository{db: db}
}

func (r *classRepository) List(ctx context.Context, filter ClassFilter) ([]models.ClassSession, error) {
	query := r.db.WithContext(ctx).Model(&models.ClassSession{})

	if search := strings.ToLower(strings.TrimSpace(filter.Search)); search != "" {
		pattern := "%" + search + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(code) LIKE ?", pattern, pattern)
	}
	if day := strings.TrimSpace(filter.DayOfWeek); day != "" {
		query = query.Where("LOWER(schedule_day_of_week) = ?", strings.ToLower(day))
	}

	var classes []models.ClassSession
	if err := query.Order("name ASC, id ASC").Find(&classes).Error; err != nil {
		return nil, err
	}
	return classes, nil
}

func (r *classRepository) GetByID(ctx context.Context, id uint) (models.ClassSession, error) {
	var class models.ClassSession
	if err := r.db.WithContext(ctx).First(&class, id).Error; err != nil {
		return models.ClassSession{}, err
	}
	return class, nil
}

func (r *classRepository) Create(ctx context.Context, class *models.ClassSession) error {
	return classifyWriteError(r.db.WithContext(ctx).Create(class).Error)
}

func (r *classRepository) Update(ctx context.Context, class *models.ClassSession) error {
	return classifyWriteError(r.db.WithContext(ctx).Save(class).Error)
}

func (r *classRepository) UpdateStatus(ctx context.Context, id uint, status models.ClassStatus, reschedule models.Reschedule) error {
	result := r.db.WithContext(ctx).
		Model(&models.ClassSession{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":                status,
			"reschedule_date":       reschedule.Date,
			"reschedule_start_time": reschedule.StartTime,
			"reschedule_end_time":   reschedule.EndTime,
			"reschedule_room":       reschedule.Room,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *classRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("class_id = ?", id).Delete(&models.Enrollment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("class_id = ?", id).Delete(&models.AttendanceRecord{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&models.ClassSession{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}
