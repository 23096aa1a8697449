package dto

import (
	"time"

	"github.com/noah-isme/geoattend-api/internal/models"
)

// MarkAttendanceRequest is submitted by a student checking in. Coordinates are absent
// when the device could not provide a position.
type MarkAttendanceRequest struct {
	ClassID    uint     `json:"class_id"`
	Latitude   *float64 `json:"latitude"`
	Longitude  *float64 `json:"longitude"`
	DeviceInfo string   `json:"device_info" validate:"max=512"`
}

// AttendanceRecordResponse serialises a stored check-in.
type AttendanceRecordResponse struct {
	ReferenceID      string    `json:"reference_id"`
	UserID           uint      `json:"user_id"`
	ClassID          uint      `json:"class_id"`
	AttendanceDate   string    `json:"attendance_date"`
	MarkedAt         time.Time `json:"marked_at"`
	Latitude         *float64  `json:"latitude,omitempty"`
	Longitude        *float64  `json:"longitude,omitempty"`
	DistanceMeters   *float64  `json:"distance_meters,omitempty"`
	GeofenceEnforced bool      `json:"geofence_enforced"`
	SharedDevice     bool      `json:"shared_device"`
}

// NewAttendanceRecordResponse maps a ledger record to its API shape.
func NewAttendanceRecordResponse(record models.AttendanceRecord) AttendanceRecordResponse {
	return AttendanceRecordResponse{
		ReferenceID:      record.ReferenceID,
		UserID:           record.UserID,
		ClassID:          record.ClassID,
		AttendanceDate:   record.AttendanceDate,
		MarkedAt:         record.MarkedAt,
		Latitude:         record.Latitude,
		Longitude:        record.Longitude,
		DistanceMeters:   record.DistanceMeters,
		GeofenceEnforced: record.DistanceMeters != nil,
		SharedDevice:     record.SharedDevice,
	}
}

// AttendanceStatusResponse reports whether the user is marked present today.
type AttendanceStatusResponse struct {
	ClassID   uint   `json:"class_id"`
	Date      string `json:"date"`
	IsPresent bool   `json:"is_present"`
}

// AttendanceEvent is broadcast to live subscribers after a successful mark.
type AttendanceEvent struct {
	Type           string    `json:"type"`
	ClassID        uint      `json:"class_id"`
	UserID         uint      `json:"user_id"`
	ReferenceID    string    `json:"reference_id"`
	AttendanceDate string    `json:"attendance_date"`
	MarkedAt       time.Time `json:"marked_at"`
	DistanceMeters *float64  `json:"distance_meters,omitempty"`
	SharedDevice   bool      `json:"shared_device"`
}

// NewAttendanceEvent builds the marked event for a stored record.
func NewAttendanceEvent(record models.AttendanceRecord) AttendanceEvent {
	return AttendanceEvent{
		Type:           "attendance.marked",
		ClassID:        record.ClassID,
		UserID:         record.UserID,
		ReferenceID:    record.ReferenceID,
		AttendanceDate: record.AttendanceDate,
		MarkedAt:       record.MarkedAt,
		DistanceMeters: record.DistanceMeters,
		SharedDevice:   record.SharedDevice,
	}
}
