package models

import "time"

// User roles.
const (
	RoleStudent = "student"
	RoleCR      = "cr"
)

// User is an account that can mark attendance. Credentials are owned by the auth provider.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"size:255" json:"name"`
	Email        string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Gender       string    `gorm:"size:32" json:"gender"`
	PasswordHash string    `gorm:"size:255" json:"-"`
	Role         string    `gorm:"size:16;not null;default:student" json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Enrollment links a student to a class roster.
type Enrollment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_enrollment_user_class,priority:1" json:"user_id"`
	ClassID   uint      `gorm:"not null;uniqueIndex:idx_enrollment_user_class,priority:2;index" json:"class_id"`
	CreatedAt time.Time `json:"created_at"`
}
