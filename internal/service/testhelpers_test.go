package service

import (
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/noah-isme/geoattend-api/internal/models"
	"github.com/noah-isme/geoattend-api/internal/schedule"
)

// monday0930 is inside the Monday 09:00-10:00 slot used by the fixtures.
var monday0930 = time.Date(2026, time.October, 12, 9, 30, 0, 0, time.UTC)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func testWindow() schedule.Validator {
	return schedule.Validator{
		GraceBefore: 10 * time.Minute,
		GraceAfter:  10 * time.Minute,
		Location:    time.UTC,
		Rescheduled: schedule.UseReschedule,
	}
}

func setupServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true, Logger: logger.Discard})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&models.User{}, &models.ClassSession{}, &models.Enrollment{}, &models.AttendanceRecord{}))
	return db
}

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	server, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(server.Close)

	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return server, client
}

func createStudent(t *testing.T, db *gorm.DB, name string) models.User {
	t.Helper()
	user := models.User{
		Name:  name,
		Email: strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@example.com",
		Role:  models.RoleStudent,
	}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func createClass(t *testing.T, db *gorm.DB, mutate func(*models.ClassSession)) models.ClassSession {
	t.Helper()
	lat, lon := 31.5204, 74.3587
	class := models.ClassSession{
		Name:          "Data Structures",
		Code:          "CS-201",
		Schedule:      models.Schedule{DayOfWeek: "Monday", StartTime: "09:00", EndTime: "10:00", Room: "B-12"},
		Latitude:      &lat,
		Longitude:     &lon,
		AllowedRadius: 30,
		Status:        models.ClassStatusOnTime,
	}
	if mutate != nil {
		mutate(&class)
	}
	require.NoError(t, db.Create(&class).Error)
	return class
}

func enroll(t *testing.T, db *gorm.DB, class models.ClassSession, users ...models.User) {
	t.Helper()
	for _, user := range users {
		require.NoError(t, db.Create(&models.Enrollment{UserID: user.ID, ClassID: class.ID}).Error)
	}
}

func newValidator() *validator.Validate {
	return validator.New()
}

func float(v float64) *float64 {
	return &v
}
