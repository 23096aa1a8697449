package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/geoattend-api/internal/dto"
	"github.com/noah-isme/geoattend-api/internal/handler"
	"github.com/noah-isme/geoattend-api/internal/repository"
	"github.com/noah-isme/geoattend-api/internal/service"
)

type stubClassService struct {
	classes  map[uint]dto.ClassResponse
	created  *dto.ClassRequest
	err      error
	enrolled [][2]uint
	filter   repository.ClassFilter
}

func (s *stubClassService) List(_ context.Context, filter repository.ClassFilter) ([]dto.ClassResponse, error) {
	s.filter = filter
	items := make([]dto.ClassResponse, 0, len(s.classes))
	for _, class := range s.classes {
		items = append(items, class)
	}
	return items, s.err
}

func (s *stubClassService) Get(_ context.Context, id uint) (dto.ClassResponse, error) {
	class, ok := s.classes[id]
	if !ok {
		return dto.ClassResponse{}, service.ErrClassNotFound
	}
	return class, nil
}

func (s *stubClassService) Create(_ context.Context, req dto.ClassRequest) (dto.ClassResponse, error) {
	if s.err != nil {
		return dto.ClassResponse{}, s.err
	}
	s.created = &req
	return dto.ClassResponse{ID: 10, Name: req.Name, Code: req.Code, Status: "On Time"}, nil
}

func (s *stubClassService) Update(_ context.Context, id uint, req dto.ClassRequest) (dto.ClassResponse, error) {
	if _, ok := s.classes[id]; !ok {
		return dto.ClassResponse{}, service.ErrClassNotFound
	}
	return dto.ClassResponse{ID: id, Name: req.Name, Code: req.Code}, s.err
}

func (s *stubClassService) UpdateStatus(_ context.Context, id uint, req dto.ClassStatusRequest) (dto.ClassResponse, error) {
	if s.err != nil {
		return dto.ClassResponse{}, s.err
	}
	class := s.classes[id]
	class.Status = req.Status
	return class, nil
}

func (s *stubClassService) Delete(_ context.Context, id uint) error {
	if _, ok := s.classes[id]; !ok {
		return service.ErrClassNotFound
	}
	delete(s.classes, id)
	return nil
}

func (s *stubClassService) Roster(_ context.Context, id uint) ([]dto.RosterEntry, error) {
	if _, ok := s.classes[id]; !ok {
		return nil, service.ErrClassNotFound
	}
	return []dto.RosterEntry{{UserID: 2, Name: "Ali Raza", Email: "ali@example.com"}}, nil
}

func (s *stubClassService) Enroll(_ context.Context, classID, userID uint) error {
	if s.err != nil {
		return s.err
	}
	s.enrolled = append(s.enrolled, [2]uint{classID, userID})
	return nil
}

func (s *stubClassService) Unenroll(_ context.Context, classID, userID uint) error {
	return service.ErrNotEnrolled
}

func newClassApp(svc service.ClassService, role string) *fiber.App {
	app := fiber.New()
	group := app.Group("/api/v1/classes", authenticated(1, role))
	handler.NewClassHandler(svc, zerolog.Nop()).Register(group)
	return app
}

func seededClasses() *stubClassService {
	return &stubClassService{classes: map[uint]dto.ClassResponse{
		3: {ID: 3, Name: "Data Structures", Code: "CS-201", Status: "On Time"},
	}}
}

func TestClassHandler_CreateRequiresCR(t *testing.T) {
	payload := map[string]interface{}{
		"name":     "Operating Systems",
		"code":     "CS-310",
		"schedule": map[string]string{"day_of_week": "Wednesday", "start_time": "11:00", "end_time": "12:30"},
	}

	svc := seededClasses()
	resp := postJSON(t, newClassApp(svc, "student"), "/api/v1/classes", payload)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	require.Nil(t, svc.created)

	resp = postJSON(t, newClassApp(svc, "cr"), "/api/v1/classes", payload)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	require.NotNil(t, svc.created)
	require.Equal(t, "Wednesday", svc.created.Schedule.DayOfWeek)
}

func TestClassHandler_CreateConflicts(t *testing.T) {
	svc := seededClasses()
	svc.err = service.ErrClassCodeTaken

	resp := postJSON(t, newClassApp(svc, "cr"), "/api/v1/classes", map[string]interface{}{"name": "Dup", "code": "CS-201"})
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)

	svc.err = service.ErrInvalidClass
	resp = postJSON(t, newClassApp(svc, "cr"), "/api/v1/classes", map[string]interface{}{"name": "Bad"})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestClassHandler_ReadRoutes(t *testing.T) {
	app := newClassApp(seededClasses(), "student")

	for path, status := range map[string]int{
		"/api/v1/classes":             fiber.StatusOK,
		"/api/v1/classes/3":           fiber.StatusOK,
		"/api/v1/classes/9":           fiber.StatusNotFound,
		"/api/v1/classes/zero":        fiber.StatusBadRequest,
		"/api/v1/classes/3/roster":    fiber.StatusOK,
		"/api/v1/classes/9/roster":    fiber.StatusNotFound,
		"/api/v1/classes?day=monday":  fiber.StatusOK,
		"/api/v1/classes?search=data": fiber.StatusOK,
	} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		require.Equal(t, status, resp.StatusCode, path)
	}
}

func TestClassHandler_RosterMutations(t *testing.T) {
	svc := seededClasses()
	app := newClassApp(svc, "cr")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/classes/3/roster/2", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	require.Equal(t, [][2]uint{{3, 2}}, svc.enrolled)

	req = httptest.NewRequest(http.MethodDelete, "/api/v1/classes/3/roster/2", nil)
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	req = httptest.NewRequest(http.MethodDelete, "/api/v1/classes/3", nil)
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestClassHandler_UpdateStatus(t *testing.T) {
	app := newClassApp(seededClasses(), "cr")

	body := `{"status":"Cancelled"}`
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/classes/3/status", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var payload struct {
		Data dto.ClassResponse `json:"data"`
	}
	decodeResponse(t, resp, &payload)
	require.Equal(t, "Cancelled", payload.Data.Status)
}
