package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/geoattend-api/internal/dto"
	"github.com/noah-isme/geoattend-api/internal/models"
	"github.com/noah-isme/geoattend-api/internal/repository"
	"github.com/noah-isme/geoattend-api/internal/schedule"
)

const defaultAllowedRadius = 30.0

// ClassService manages classes and their rosters on behalf of class representatives.
type ClassService interface {
	List(ctx context.Context, filter repository.ClassFilter) ([]dto.ClassResponse, error)
	Get(ctx context.Context, id uint) (dto.ClassResponse, error)
	Create(ctx context.Context, req dto.ClassRequest) (dto.ClassResponse, error)
	Update(ctx context.Context, id uint, req dto.ClassRequest) (dto.ClassResponse, error)
	UpdateStatus(ctx context.Context, id uint, req dto.ClassStatusRequest) (dto.ClassResponse, error)
	Delete(ctx context.Context, id uint) error
	Roster(ctx context.Context, id uint) ([]dto.RosterEntry, error)
	Enroll(ctx context.Context, classID, userID uint) error
	Unenroll(ctx context.Context, classID, userID uint) error
}

type classService struct {
	classes   repository.ClassRepository
	roster    repository.RosterRepository
	users     repository.UserRepository
	cache     *redis.Client
	validator *validator.Validate
	policy    *bluemonday.Policy
	radius    float64
	logger    zerolog.Logger
}

// NewClassService constructs the class management service. cache may be nil.
func NewClassService(classes repository.ClassRepository, roster repository.RosterRepository, users repository.UserRepository, cache *redis.Client, validate *validator.Validate, defaultRadius float64, logger zerolog.Logger) ClassService {
	if defaultRadius <= 0 {
		defaultRadius = defaultAllowedRadius
	}
	return &classService{
		classes:   classes,
		roster:    roster,
		users:     users,
		cache:     cache,
		validator: validate,
		policy:    bluemonday.StrictPolicy(),
		radius:    defaultRadius,
		logger:    logger.With().Str("component", "class_service").Logger(),
	}
}

func (s *classService) List(ctx context.Context, filter repository.ClassFilter) ([]dto.ClassResponse, error) {
	classes, err := s.classes.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return dto.NewClassResponseSlice(classes), nil
}

func (s *classService) Get(ctx context.Context, id uint) (dto.ClassResponse, error) {
	class, err := s.load(ctx, id)
	if err != nil {
		return dto.ClassResponse{}, err
	}
	return dto.NewClassResponse(class), nil
}

func (s *classService) Create(ctx context.Context, req dto.ClassRequest) (dto.ClassResponse, error) {
	class := models.ClassSession{Status: models.ClassStatusOnTime}
	if err := s.apply(&class, req); err != nil {
		return dto.ClassResponse{}, err
	}

	if err := s.classes.Create(ctx, &class); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return dto.ClassResponse{}, ErrClassCodeTaken
		}
		return dto.ClassResponse{}, err
	}

	s.logger.Info().Uint("class_id", class.ID).Str("code", class.Code).Msg("class created")
	return dto.NewClassResponse(class), nil
}

func (s *classService) Update(ctx context.Context, id uint, req dto.ClassRequest) (dto.ClassResponse, error) {
	class, err := s.load(ctx, id)
	if err != nil {
		return dto.ClassResponse{}, err
	}
	if err := s.apply(&class, req); err != nil {
		return dto.ClassResponse{}, err
	}

	if err := s.classes.Update(ctx, &class); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return dto.ClassResponse{}, ErrClassCodeTaken
		}
		return dto.ClassResponse{}, err
	}

	bumpReportVersion(ctx, s.cache, class.ID, s.logger)
	s.logger.Info().Uint("class_id", class.ID).Msg("class updated")
	return dto.NewClassResponse(class), nil
}

func (s *classService) UpdateStatus(ctx context.Context, id uint, req dto.ClassStatusRequest) (dto.ClassResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.ClassResponse{}, err
	}

	status := models.ClassStatus(strings.TrimSpace(req.Status))
	if !status.Valid() {
		return dto.ClassResponse{}, fmt.Errorf("%w: unknown status %q", ErrInvalidClass, req.Status)
	}

	var reschedule models.Reschedule
	if status == models.ClassStatusRescheduled && req.Reschedule != nil {
		reschedule = models.Reschedule{
			Date:      strings.TrimSpace(req.Reschedule.Date),
			StartTime: strings.TrimSpace(req.Reschedule.StartTime),
			EndTime:   strings.TrimSpace(req.Reschedule.EndTime),
			Room:      s.clean(req.Reschedule.Room),
		}
		if (reschedule.StartTime == "") != (reschedule.EndTime == "") {
			return dto.ClassResponse{}, fmt.Errorf("%w: reschedule needs both start and end time", ErrInvalidClass)
		}
	}

	class, err := s.load(ctx, id)
	if err != nil {
		return dto.ClassResponse{}, err
	}

	if reschedule.StartTime != "" {
		slot := models.Schedule{DayOfWeek: class.Schedule.DayOfWeek, StartTime: reschedule.StartTime, EndTime: reschedule.EndTime}
		if err := schedule.ValidateSchedule(slot); err != nil {
			return dto.ClassResponse{}, fmt.Errorf("%w: %v", ErrInvalidClass, err)
		}
	}

	if err := s.classes.UpdateStatus(ctx, id, status, reschedule); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ClassResponse{}, ErrClassNotFound
		}
		return dto.ClassResponse{}, err
	}

	class.Status = status
	class.Reschedule = reschedule
	bumpReportVersion(ctx, s.cache, id, s.logger)

	s.logger.Info().Uint("class_id", id).Str("status", string(status)).Msg("class status changed")
	return dto.NewClassResponse(class), nil
}

func (s *classService) Delete(ctx context.Context, id uint) error {
	if err := s.classes.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrClassNotFound
		}
		return err
	}
	bumpReportVersion(ctx, s.cache, id, s.logger)
	s.logger.Info().Uint("class_id", id).Msg("class deleted")
	return nil
}

func (s *classService) Roster(ctx context.Context, id uint) ([]dto.RosterEntry, error) {
	if _, err := s.load(ctx, id); err != nil {
		return nil, err
	}

	students, err := s.roster.ListStudents(ctx, id)
	if err != nil {
		return nil, err
	}

	entries := make([]dto.RosterEntry, 0, len(students))
	for _, student := range students {
		entries = append(entries, dto.RosterEntry{UserID: student.ID, Name: student.Name, Email: student.Email})
	}
	return entries, nil
}

func (s *classService) Enroll(ctx context.Context, classID, userID uint) error {
	if _, err := s.load(ctx, classID); err != nil {
		return err
	}
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrStudentNotFound
		}
		return err
	}

	if err := s.roster.Enroll(ctx, classID, userID); err != nil {
		return err
	}
	bumpReportVersion(ctx, s.cache, classID, s.logger)
	return nil
}

func (s *classService) Unenroll(ctx context.Context, classID, userID uint) error {
	if err := s.roster.Unenroll(ctx, classID, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotEnrolled
		}
		return err
	}
	bumpReportVersion(ctx, s.cache, classID, s.logger)
	return nil
}

func (s *classService) load(ctx context.Context, id uint) (models.ClassSession, error) {
	class, err := s.classes.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.ClassSession{}, ErrClassNotFound
		}
		return models.ClassSession{}, err
	}
	return class, nil
}

// apply validates req and copies it onto class. A class with a location always ends up
// with a positive radius.
func (s *classService) apply(class *models.ClassSession, req dto.ClassRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return err
	}

	name := s.clean(req.Name)
	code := strings.ToUpper(s.clean(req.Code))
	if name == "" || code == "" {
		return fmt.Errorf("%w: name and code are required", ErrInvalidClass)
	}

	slot := models.Schedule{
		DayOfWeek: strings.TrimSpace(req.Schedule.DayOfWeek),
		StartTime: strings.TrimSpace(req.Schedule.StartTime),
		EndTime:   strings.TrimSpace(req.Schedule.EndTime),
		Room:      s.clean(req.Schedule.Room),
	}
	day, err := schedule.ParseWeekday(slot.DayOfWeek)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidClass, err)
	}
	slot.DayOfWeek = day.String()
	if err := schedule.ValidateSchedule(slot); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidClass, err)
	}

	radius := s.radius
	if req.AllowedRadius != nil {
		if *req.AllowedRadius <= 0 {
			return fmt.Errorf("%w: allowed radius must be positive", ErrInvalidClass)
		}
		radius = *req.AllowedRadius
	}

	class.Name = name
	class.Code = code
	class.Schedule = slot
	class.Latitude = nil
	class.Longitude = nil
	class.AllowedRadius = radius

	if req.Location != nil {
		lat, lon := req.Location.Latitude, req.Location.Longitude
		class.Latitude = &lat
		class.Longitude = &lon
	}
	return nil
}

func (s *classService) clean(value string) string {
	return strings.TrimSpace(s.policy.Sanitize(value))
}
