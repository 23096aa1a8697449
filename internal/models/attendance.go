package models

import (
	"time"

	"gorm.io/datatypes"
)

// AttendanceDateLayout is the calendar-day format of AttendanceRecord.AttendanceDate.
const AttendanceDateLayout = "2006-01-02"

// AttendanceRecord is one successful check-in. The composite unique index enforces
// at most one record per user, class and calendar day.
type AttendanceRecord struct {
	ID                uint              `gorm:"primaryKey" json:"id"`
	ReferenceID       string            `gorm:"size:36;uniqueIndex;not null" json:"reference_id"`
	UserID            uint              `gorm:"not null;uniqueIndex:idx_attendance_user_class_day,priority:1" json:"user_id"`
	ClassID           uint              `gorm:"not null;uniqueIndex:idx_attendance_user_class_day,priority:2;index:idx_attendance_class_day,priority:1" json:"class_id"`
	AttendanceDate    string            `gorm:"size:10;not null;uniqueIndex:idx_attendance_user_class_day,priority:3;index:idx_attendance_class_day,priority:2" json:"attendance_date"`
	MarkedAt          time.Time         `gorm:"not null" json:"marked_at"`
	Latitude          *float64          `json:"latitude,omitempty"`
	Longitude         *float64          `json:"longitude,omitempty"`
	DistanceMeters    *float64          `json:"distance_meters,omitempty"`
	DeviceFingerprint string            `gorm:"size:512" json:"device_fingerprint"`
	DeviceInfo        datatypes.JSONMap `gorm:"type:json" json:"device_info"`
	SharedDevice      bool              `gorm:"not null;default:false" json:"shared_device"`
	CreatedAt         time.Time         `json:"created_at"`
}
