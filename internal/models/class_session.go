package models

import "time"

// ClassStatus describes whether a class runs as scheduled.
type ClassStatus string

const (
	ClassStatusOnTime      ClassStatus = "On Time"
	ClassStatusCancelled   ClassStatus = "Cancelled"
	ClassStatusRescheduled ClassStatus = "Rescheduled"
)

// Valid reports whether the status is one of the known values.
func (s ClassStatus) Valid() bool {
	switch s {
	case ClassStatusOnTime, ClassStatusCancelled, ClassStatusRescheduled:
		return true
	default:
		return false
	}
}

// Schedule is the weekly slot of a class. Times are "HH:MM" in the school time zone.
type Schedule struct {
	DayOfWeek string `gorm:"size:16;not null" json:"day_of_week"`
	StartTime string `gorm:"size:5;not null" json:"start_time"`
	EndTime   string `gorm:"size:5;not null" json:"end_time"`
	Room      string `gorm:"size:64" json:"room"`
}

// Reschedule holds the one-off replacement occurrence of a rescheduled class.
// Date is empty when no replacement slot is stored.
type Reschedule struct {
	Date      string `gorm:"size:10" json:"date"`
	StartTime string `gorm:"size:5" json:"start_time"`
	EndTime   string `gorm:"size:5" json:"end_time"`
	Room      string `gorm:"size:64" json:"room"`
}

// IsSet reports whether a replacement slot is stored.
func (r Reschedule) IsSet() bool {
	return r.Date != ""
}

// ClassSession is a recurring class offering students mark attendance for.
type ClassSession struct {
	ID            uint        `gorm:"primaryKey" json:"id"`
	Name          string      `gorm:"size:255;not null" json:"name"`
	Code          string      `gorm:"size:64;uniqueIndex;not null" json:"code"`
	Schedule      Schedule    `gorm:"embedded;embeddedPrefix:schedule_" json:"schedule"`
	Latitude      *float64    `gorm:"column:location_latitude" json:"latitude,omitempty"`
	Longitude     *float64    `gorm:"column:location_longitude" json:"longitude,omitempty"`
	AllowedRadius float64     `gorm:"not null" json:"allowed_radius"`
	Status        ClassStatus `gorm:"size:32;not null" json:"status"`
	Reschedule    Reschedule  `gorm:"embedded;embeddedPrefix:reschedule_" json:"reschedule"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// HasLocation reports whether the class carries classroom coordinates.
func (c ClassSession) HasLocation() bool {
	return c.Latitude != nil && c.Longitude != nil
}
