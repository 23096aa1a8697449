package service

import (
	"errors"

	"github.com/noah-isme/geoattend-api/internal/schedule"
)

// Attendance failure kinds. Every kind maps to a distinct user-facing message.
var (
	// ErrClassNotFound indicates the class does not exist.
	ErrClassNotFound = errors.New("class not found")
	// ErrOutsideWindow indicates the mark happened outside the class time window.
	ErrOutsideWindow = schedule.ErrOutsideWindow
	// ErrClassCancelled indicates the class is cancelled. It matches ErrOutsideWindow.
	ErrClassCancelled = schedule.ErrClassCancelled
	// ErrOutsideGeofence indicates the student is too far from the classroom.
	ErrOutsideGeofence = errors.New("outside classroom geofence")
	// ErrAlreadyMarked indicates a record exists for the user, class and day.
	ErrAlreadyMarked = errors.New("attendance already marked")
	// ErrGeolocationUnavailable indicates the device did not supply usable coordinates.
	ErrGeolocationUnavailable = errors.New("geolocation unavailable")
	// ErrPersistenceFailure indicates the store failed or timed out.
	ErrPersistenceFailure = errors.New("persistence failure")
	// ErrUnauthorized indicates the caller identity or role does not permit the operation.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidDateRange indicates a malformed or oversized report range.
	ErrInvalidDateRange = errors.New("invalid date range")
	// ErrInvalidClass indicates class data that violates the class invariants.
	ErrInvalidClass = errors.New("invalid class")
	// ErrClassCodeTaken indicates another class already uses the code.
	ErrClassCodeTaken = errors.New("class code already in use")
	// ErrStudentNotFound indicates the user to enrol does not exist.
	ErrStudentNotFound = errors.New("student not found")
	// ErrNotEnrolled indicates the student is not on the class roster.
	ErrNotEnrolled = errors.New("student not enrolled")
	// ErrUserNotFound indicates the authenticated account no longer exists.
	ErrUserNotFound = errors.New("user not found")
)
