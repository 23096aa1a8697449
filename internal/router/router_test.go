package router_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/noah-isme/geoattend-api/internal/config"
	"github.com/noah-isme/geoattend-api/internal/handler"
	"github.com/noah-isme/geoattend-api/internal/middleware"
	"github.com/noah-isme/geoattend-api/internal/models"
	"github.com/noah-isme/geoattend-api/internal/repository"
	"github.com/noah-isme/geoattend-api/internal/router"
	"github.com/noah-isme/geoattend-api/internal/schedule"
	"github.com/noah-isme/geoattend-api/internal/service"
)

const jwtSecret = "router-secret"

func setupApp(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:router_%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true, Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.ClassSession{}, &models.Enrollment{}, &models.AttendanceRecord{}))

	cfg := config.Config{
		AppName:        "Attendance API",
		AppEnv:         "test",
		JWTSecret:      jwtSecret,
		MarkRateLimit:  5,
		MarkRateWindow: time.Minute,
	}
	validate := validator.New()
	log := zerolog.New(io.Discard)
	window := schedule.Validator{GraceBefore: 10 * time.Minute, GraceAfter: 10 * time.Minute, Location: time.UTC, Rescheduled: schedule.UseReschedule}

	classRepo := repository.NewClassRepository(db)
	rosterRepo := repository.NewRosterRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	hub := service.NewAttendanceEventHub(nil, "", nil, log)

	attendanceService := service.NewAttendanceService(classRepo, attendanceRepo, hub, nil, validate, service.AttendanceOptions{Window: window, StoreTimeout: time.Second}, log)
	reportService := service.NewReportService(classRepo, rosterRepo, attendanceRepo, nil, service.ReportOptions{Window: window}, log)
	userRepo := repository.NewUserRepository(db)
	classService := service.NewClassService(classRepo, rosterRepo, userRepo, nil, validate, 30, log)
	profileService := service.NewProfileService(userRepo, validate, time.Second, log)

	app := fiber.New()
	middleware.Register(app, middleware.Config{Logger: &log})
	router.Register(app, cfg, router.Dependencies{
		AttendanceHandler: handler.NewAttendanceHandler(attendanceService, log),
		ReportHandler:     handler.NewReportHandler(reportService, log),
		ClassHandler:      handler.NewClassHandler(classService, log),
		LiveHandler:       handler.NewLiveHandler(hub, classService, log),
		ProfileHandler:    handler.NewProfileHandler(profileService, log),
	})
	return app, db
}

func bearer(t *testing.T, userID uint, role string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  fmt.Sprint(userID),
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(jwtSecret))
	require.NoError(t, err)
	return "Bearer " + token
}

func call(t *testing.T, app *fiber.App, method, path, auth string, payload interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(encoded)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	decoded := map[string]interface{}{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &decoded))
	}
	return resp, decoded
}

func TestAttendanceFlowEndToEnd(t *testing.T) {
	app, db := setupApp(t)

	cr := models.User{Name: "Class Rep", Email: "cr@example.com", Role: models.RoleCR}
	student := models.User{Name: "Ali Raza", Email: "ali@example.com", Role: models.RoleStudent}
	require.NoError(t, db.Create(&cr).Error)
	require.NoError(t, db.Create(&student).Error)

	crAuth := bearer(t, cr.ID, "cr")
	studentAuth := bearer(t, student.ID, "student")
	today := time.Now().UTC()

	resp, body := call(t, app, http.MethodPost, "/api/v1/classes", crAuth, map[string]interface{}{
		"name":     "Data Structures",
		"code":     "CS-201",
		"schedule": map[string]string{"day_of_week": today.Weekday().String(), "start_time": "00:00", "end_time": "23:59", "room": "B-12"},
		"location": map[string]float64{"latitude": 31.5204, "longitude": 74.3587},
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, body)
	classID := uint(body["data"].(map[string]interface{})["id"].(float64))

	resp, _ = call(t, app, http.MethodPost, fmt.Sprintf("/api/v1/classes/%d/roster/%d", classID, student.ID), crAuth, nil)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp, _ = call(t, app, http.MethodPost, "/api/v1/classes", studentAuth, map[string]interface{}{"name": "Nope", "code": "X"})
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp, _ = call(t, app, http.MethodGet, fmt.Sprintf("/api/v1/attendance/status?class_id=%d", classID), "", nil)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp, body = call(t, app, http.MethodPost, "/api/v1/attendance/mark", studentAuth, map[string]interface{}{
		"class_id": classID, "latitude": 31.5300, "longitude": 74.3700,
	})
	require.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
	require.Equal(t, "outside_geofence", body["error_kind"])

	mark := map[string]interface{}{"class_id": classID, "latitude": 31.5205, "longitude": 74.3588, "device_info": "Mozilla/5.0|en-US|390|844|iPhone"}
	resp, body = call(t, app, http.MethodPost, "/api/v1/attendance/mark", studentAuth, mark)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, body)

	resp, body = call(t, app, http.MethodPost, "/api/v1/attendance/mark", studentAuth, mark)
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)
	require.Equal(t, "already_marked", body["error_kind"])

	resp, body = call(t, app, http.MethodGet, fmt.Sprintf("/api/v1/attendance/status?class_id=%d", classID), studentAuth, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, true, body["data"].(map[string]interface{})["is_present"])

	date := today.Format("2006-01-02")
	resp, body = call(t, app, http.MethodGet, fmt.Sprintf("/api/v1/classes/%d/report?from=%s&to=%s", classID, date, date), crAuth, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	rows := body["data"].(map[string]interface{})["rows"].([]interface{})
	require.Len(t, rows, 1)
	require.Equal(t, true, rows[0].(map[string]interface{})["present"])

	resp, _ = call(t, app, http.MethodGet, fmt.Sprintf("/api/v1/classes/%d/report?from=%s&to=%s", classID, date, date), studentAuth, nil)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestHealthAndMetricsArePublic(t *testing.T) {
	app, _ := setupApp(t)

	resp, body := call(t, app, http.MethodGet, "/api/v1/health", "", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, true, body["success"])
	require.Equal(t, "Attendance API", resp.Header.Get("X-Application"))

	resp, _ = call(t, app, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestProfileRoutes(t *testing.T) {
	app, db := setupApp(t)

	student := models.User{Name: "Ali Raza", Email: "ali@example.com", Gender: "male", Role: models.RoleStudent}
	require.NoError(t, db.Create(&student).Error)
	auth := bearer(t, student.ID, "student")

	resp, body := call(t, app, http.MethodGet, "/api/v1/users/me", auth, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, body)
	profile := body["data"].(map[string]interface{})
	require.Equal(t, "ali@example.com", profile["email"])
	require.Equal(t, "student", profile["role"])
	require.NotContains(t, profile, "password_hash")

	resp, body = call(t, app, http.MethodPut, "/api/v1/users/me", auth, map[string]string{"name": "Ali Hassan Raza", "gender": "male"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode, body)
	require.Equal(t, "Ali Hassan Raza", body["data"].(map[string]interface{})["name"])

	resp, _ = call(t, app, http.MethodGet, "/api/v1/users/me", "", nil)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
