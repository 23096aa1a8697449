package dto

import (
	"time"

	"github.com/noah-isme/geoattend-api/internal/models"
)

// ScheduleRequest captures the weekly slot of a class.
type ScheduleRequest struct {
	DayOfWeek string `json:"day_of_week" validate:"required"`
	StartTime string `json:"start_time" validate:"required,datetime=15:04"`
	EndTime   string `json:"end_time" validate:"required,datetime=15:04"`
	Room      string `json:"room" validate:"max=64"`
}

// LocationRequest captures classroom coordinates in decimal degrees.
type LocationRequest struct {
	Latitude  float64 `json:"latitude" validate:"latitude"`
	Longitude float64 `json:"longitude" validate:"longitude"`
}

// ClassRequest creates or replaces a class.
type ClassRequest struct {
	Name          string           `json:"name" validate:"required,min=2,max=255"`
	Code          string           `json:"code" validate:"required,max=64"`
	Schedule      ScheduleRequest  `json:"schedule"`
	Location      *LocationRequest `json:"location" validate:"omitempty"`
	AllowedRadius *float64         `json:"allowed_radius"`
}

// RescheduleRequest is the replacement slot of a rescheduled class.
type RescheduleRequest struct {
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime string `json:"start_time" validate:"omitempty,datetime=15:04"`
	EndTime   string `json:"end_time" validate:"omitempty,datetime=15:04"`
	Room      string `json:"room" validate:"max=64"`
}

// ClassStatusRequest changes the status of a class.
type ClassStatusRequest struct {
	Status     string             `json:"status" validate:"required"`
	Reschedule *RescheduleRequest `json:"reschedule" validate:"omitempty"`
}

// LocationResponse serialises classroom coordinates.
type LocationResponse struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// ClassResponse serialises a class.
type ClassResponse struct {
	ID            uint               `json:"id"`
	Name          string             `json:"name"`
	Code          string             `json:"code"`
	Schedule      models.Schedule    `json:"schedule"`
	Location      *LocationResponse  `json:"location"`
	AllowedRadius float64            `json:"allowed_radius"`
	Status        string             `json:"status"`
	Reschedule    *models.Reschedule `json:"reschedule,omitempty"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// NewClassResponse maps a class model to its API shape.
func NewClassResponse(class models.ClassSession) ClassResponse {
	resp := ClassResponse{
		ID:            class.ID,
		Name:          class.Name,
		Code:          class.Code,
		Schedule:      class.Schedule,
		AllowedRadius: class.AllowedRadius,
		Status:        string(class.Status),
		UpdatedAt:     class.UpdatedAt,
	}
	if class.HasLocation() {
		resp.Location = &LocationResponse{Latitude: *class.Latitude, Longitude: *class.Longitude}
	}
	if class.Reschedule.IsSet() {
		reschedule := class.Reschedule
		resp.Reschedule = &reschedule
	}
	return resp
}

// NewClassResponseSlice maps a list of classes.
func NewClassResponseSlice(classes []models.ClassSession) []ClassResponse {
	items := make([]ClassResponse, 0, len(classes))
	for _, class := range classes {
		items = append(items, NewClassResponse(class))
	}
	return items
}

// RosterEntry is one enrolled student.
type RosterEntry struct {
	UserID uint   `json:"user_id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
}
