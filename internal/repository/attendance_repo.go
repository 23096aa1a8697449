package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/noah-isme/geoattend-api/internal/models"
)

// ErrDuplicate indicates a write violated a unique constraint.
var ErrDuplicate = errors.New("duplicate record")

const pgUniqueViolation = "23505"

// AttendanceRepository is the ledger storage port. Create must reject a second record
// for the same user, class and day atomically with ErrDuplicate.
type AttendanceRepository interface {
	Create(ctx context.Context, record *models.AttendanceRecord) error
	FindByKey(ctx context.Context, userID, classID uint, date string) (models.AttendanceRecord, error)
	Exists(ctx context.Context, userID, classID uint, date string) (bool, error)
	CountFingerprintUsers(ctx context.Context, classID uint, date, fingerprint string, excludeUserID uint) (int64, error)
	ListByClass(ctx context.Context, classID uint, fromDate, toDate string) ([]models.AttendanceRecord, error)
}

type attendanceRepository struct {
	db *gorm.DB
}

// NewAttendanceRepository constructs a GORM-backed attendance ledger.
func NewAttendanceRepository(db *gorm.DB) AttendanceRepository {
	return &attendanceRepository{db: db}
}

func (r *attendanceRepository) Create(ctx context.Context, record *models.AttendanceRecord) error {
	return classifyWriteError(r.db.WithContext(ctx).Create(record).Error)
}

func (r *attendanceRepository) FindByKey(ctx context.Context, userID, classID uint, date string) (models.AttendanceRecord, error) {
	var record models.AttendanceRecord
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND class_id = ? AND attendance_date = ?", userID, classID, date).
		First(&record).Error
	if err != nil {
		return models.AttendanceRecord{}, err
	}
	return record, nil
}

func (r *attendanceRepository) Exists(ctx context.Context, userID, classID uint, date string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.AttendanceRecord{}).
		Where("user_id = ? AND class_id = ? AND attendance_date = ?", userID, classID, date).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *attendanceRepository) CountFingerprintUsers(ctx context.Context, classID uint, date, fingerprint string, excludeUserID uint) (int64, error) {
	if strings.TrimSpace(fingerprint) == "" {
		return 0, nil
	}
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.AttendanceRecord{}).
		Where("class_id = ? AND attendance_date = ? AND device_fingerprint = ? AND user_id <> ?", classID, date, fingerprint, excludeUserID).
		Count(&count).Error
	return count, err
}

func (r *attendanceRepository) ListByClass(ctx context.Context, classID uint, fromDate, toDate string) ([]models.AttendanceRecord, error) {
	var records []models.AttendanceRecord
	err := r.db.WithContext(ctx).
		Where("class_id = ? AND attendance_date >= ? AND attendance_date <= ?", classID, fromDate, toDate).
		Order("attendance_date ASC, user_id ASC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

// classifyWriteError maps unique violations from any driver onto ErrDuplicate.
func classifyWriteError(err error) error {
	if err == nil {
		return nil
	}
	if isUniqueViolation(err) {
		return errors.Join(ErrDuplicate, err)
	}
	return err
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, pgUniqueViolation)
}
