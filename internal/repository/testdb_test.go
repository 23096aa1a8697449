package repository

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/noah-isme/geoattend-api/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true, Logger: logger.Discard})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&models.User{}, &models.ClassSession{}, &models.Enrollment{}, &models.AttendanceRecord{}))
	return db
}

func seedUser(t *testing.T, db *gorm.DB, name string) models.User {
	t.Helper()
	user := models.User{Name: name, Email: strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@example.com", Role: models.RoleStudent}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func seedClass(t *testing.T, db *gorm.DB, code string) models.ClassSession {
	t.Helper()
	class := models.ClassSession{
		Name:          "Class " + code,
		Code:          code,
		Schedule:      models.Schedule{DayOfWeek: "Monday", StartTime: "09:00", EndTime: "10:00"},
		AllowedRadius: 30,
		Status:        models.ClassStatusOnTime,
	}
	require.NoError(t, db.Create(&class).Error)
	return class
}
