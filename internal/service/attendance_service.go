package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/geoattend-api/internal/dto"
	"github.com/noah-isme/geoattend-api/internal/geofence"
	"github.com/noah-isme/geoattend-api/internal/models"
	"github.com/noah-isme/geoattend-api/internal/observability"
	"github.com/noah-isme/geoattend-api/internal/repository"
	"github.com/noah-isme/geoattend-api/internal/schedule"
)

// AttendanceService records and reports student check-ins.
type AttendanceService interface {
	MarkPresent(ctx context.Context, userID uint, req dto.MarkAttendanceRequest) (dto.AttendanceRecordResponse, error)
	GetStatus(ctx context.Context, userID, classID uint) (dto.AttendanceStatusResponse, error)
}

// AttendanceOptions tunes the ledger.
type AttendanceOptions struct {
	Window        schedule.Validator
	StoreTimeout  time.Duration
	DefaultRadius float64
}

type attendanceService struct {
	classes      repository.ClassRepository
	ledger       repository.AttendanceRepository
	events       AttendanceEventHub
	cache        *redis.Client
	validator    *validator.Validate
	window       schedule.Validator
	storeTimeout time.Duration
	radius       float64
	logger       zerolog.Logger
	tracer       trace.Tracer
	now          func() time.Time
	newRef       func() string
}

// NewAttendanceService constructs the attendance ledger. events and cache may be nil.
func NewAttendanceService(classes repository.ClassRepository, ledger repository.AttendanceRepository, events AttendanceEventHub, cache *redis.Client, validate *validator.Validate, opts AttendanceOptions, logger zerolog.Logger) AttendanceService {
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = 3 * time.Second
	}
	if opts.DefaultRadius <= 0 {
		opts.DefaultRadius = defaultAllowedRadius
	}

	return &attendanceService{
		classes:      classes,
		ledger:       ledger,
		events:       events,
		cache:        cache,
		validator:    validate,
		window:       opts.Window,
		storeTimeout: opts.StoreTimeout,
		radius:       opts.DefaultRadius,
		logger:       logger.With().Str("component", "attendance_service").Logger(),
		tracer:       otel.Tracer("github.com/noah-isme/geoattend-api/internal/service/attendance"),
		now:          time.Now,
		newRef:       uuid.NewString,
	}
}

func (s *attendanceService) MarkPresent(ctx context.Context, userID uint, req dto.MarkAttendanceRequest) (dto.AttendanceRecordResponse, error) {
	ctx, span := s.tracer.Start(ctx, "attendance.mark", trace.WithAttributes(
		attribute.Int64("attendance.user_id", int64(userID)),
		attribute.Int64("attendance.class_id", int64(req.ClassID)),
	))
	defer span.End()

	record, err := s.markPresent(ctx, userID, req)
	outcome := markOutcome(err)
	observability.AttendanceMarks().WithLabelValues(outcome).Inc()
	span.SetAttributes(attribute.String("attendance.outcome", outcome))

	if err != nil {
		if outcome == "persistence_failure" {
			span.RecordError(err)
			span.SetStatus(codes.Error, "attendance persistence failed")
			s.logger.Error().Err(err).Uint("user_id", userID).Uint("class_id", req.ClassID).Msg("attendance not recorded")
		} else {
			s.logger.Info().Uint("user_id", userID).Uint("class_id", req.ClassID).Str("outcome", outcome).Msg("attendance rejected")
		}
		return dto.AttendanceRecordResponse{}, err
	}

	s.logger.Info().
		Uint("user_id", userID).
		Uint("class_id", record.ClassID).
		Str("reference_id", record.ReferenceID).
		Str("date", record.AttendanceDate).
		Bool("geofence_enforced", record.DistanceMeters != nil).
		Msg("attendance marked")

	return dto.NewAttendanceRecordResponse(record), nil
}

func (s *attendanceService) markPresent(ctx context.Context, userID uint, req dto.MarkAttendanceRequest) (models.AttendanceRecord, error) {
	if userID == 0 {
		return models.AttendanceRecord{}, ErrUnauthorized
	}
	if s.validator != nil {
		if err := s.validator.Struct(req); err != nil {
			return models.AttendanceRecord{}, err
		}
	}

	class, err := s.loadClass(ctx, req.ClassID)
	if err != nil {
		return models.AttendanceRecord{}, err
	}

	now := s.now()
	if err := s.window.Check(class, now); err != nil {
		return models.AttendanceRecord{}, err
	}

	result, point, err := s.evaluateLocation(class, req)
	if err != nil {
		return models.AttendanceRecord{}, err
	}

	fingerprint := normalizeFingerprint(req.DeviceInfo)
	record := models.AttendanceRecord{
		ReferenceID:       s.newRef(),
		UserID:            userID,
		ClassID:           class.ID,
		AttendanceDate:    s.window.DateOf(now),
		MarkedAt:          now.UTC(),
		DeviceFingerprint: fingerprint,
		DeviceInfo:        parseDeviceInfo(fingerprint),
	}
	if point != nil {
		lat, lon := point.Latitude, point.Longitude
		record.Latitude = &lat
		record.Longitude = &lon
	}
	if result.Enforced {
		distance := result.Distance
		record.DistanceMeters = &distance
	} else {
		s.logger.Debug().Uint("class_id", class.ID).Msg("class has no location, geofence bypassed")
	}

	// the write must finish or roll back even if the client goes away
	writeCtx := context.WithoutCancel(ctx)

	record.SharedDevice = s.sharedDevice(writeCtx, record)

	if err := s.insert(writeCtx, &record); err != nil {
		return models.AttendanceRecord{}, err
	}

	s.afterMark(writeCtx, record)
	return record, nil
}

func (s *attendanceService) GetStatus(ctx context.Context, userID, classID uint) (dto.AttendanceStatusResponse, error) {
	if userID == 0 {
		return dto.AttendanceStatusResponse{}, ErrUnauthorized
	}
	if classID == 0 {
		return dto.AttendanceStatusResponse{}, ErrClassNotFound
	}

	ctx, span := s.tracer.Start(ctx, "attendance.status", trace.WithAttributes(
		attribute.Int64("attendance.user_id", int64(userID)),
		attribute.Int64("attendance.class_id", int64(classID)),
	))
	defer span.End()

	date := s.window.DateOf(s.now())

	opCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	present, err := s.ledger.Exists(opCtx, userID, classID, date)
	if err != nil {
		span.RecordError(err)
		return dto.AttendanceStatusResponse{}, fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}

	return dto.AttendanceStatusResponse{ClassID: classID, Date: date, IsPresent: present}, nil
}

func (s *attendanceService) loadClass(ctx context.Context, classID uint) (models.ClassSession, error) {
	if classID == 0 {
		return models.ClassSession{}, ErrClassNotFound
	}

	opCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	class, err := s.classes.GetByID(opCtx, classID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.ClassSession{}, ErrClassNotFound
		}
		return models.ClassSession{}, fmt.Errorf("%w: load class: %v", ErrPersistenceFailure, err)
	}
	return class, nil
}

func (s *attendanceService) evaluateLocation(class models.ClassSession, req dto.MarkAttendanceRequest) (geofence.Result, *geofence.Point, error) {
	var point *geofence.Point
	if req.Latitude != nil && req.Longitude != nil {
		candidate := geofence.Point{Latitude: *req.Latitude, Longitude: *req.Longitude}
		if candidate.Valid() {
			point = &candidate
		}
	}

	if !class.HasLocation() {
		return geofence.Evaluate(nil, point, 0), point, nil
	}
	if point == nil {
		return geofence.Result{}, nil, ErrGeolocationUnavailable
	}

	radius := class.AllowedRadius
	if radius <= 0 {
		radius = s.radius
	}
	center := geofence.Point{Latitude: *class.Latitude, Longitude: *class.Longitude}
	result := geofence.Evaluate(&center, point, radius)
	if !result.Inside {
		return result, point, fmt.Errorf("%w: %.1fm from classroom, allowed %.1fm", ErrOutsideGeofence, result.Distance, radius)
	}
	return result, point, nil
}

func (s *attendanceService) sharedDevice(ctx context.Context, record models.AttendanceRecord) bool {
	if record.DeviceFingerprint == "" {
		return false
	}

	opCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	others, err := s.ledger.CountFingerprintUsers(opCtx, record.ClassID, record.AttendanceDate, record.DeviceFingerprint, record.UserID)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to check device fingerprint")
		return false
	}
	if others == 0 {
		return false
	}

	observability.SharedDevices().Inc()
	s.logger.Warn().
		Uint("user_id", record.UserID).
		Uint("class_id", record.ClassID).
		Int64("other_users", others).
		Msg("device already used by another student today")
	return true
}

// insert writes the record, retrying once on a store failure. A unique violation on the
// retry whose stored reference id matches means the first attempt committed.
func (s *attendanceService) insert(ctx context.Context, record *models.AttendanceRecord) error {
	err := s.create(ctx, record)
	if err == nil {
		return nil
	}
	if errors.Is(err, repository.ErrDuplicate) {
		return ErrAlreadyMarked
	}

	observability.LedgerRetries().Inc()
	s.logger.Warn().Err(err).Str("reference_id", record.ReferenceID).Msg("attendance insert failed, retrying")

	record.ID = 0
	retryErr := s.create(ctx, record)
	if retryErr == nil {
		return nil
	}
	if !errors.Is(retryErr, repository.ErrDuplicate) {
		return fmt.Errorf("%w: %v", ErrPersistenceFailure, retryErr)
	}

	opCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	stored, findErr := s.ledger.FindByKey(opCtx, record.UserID, record.ClassID, record.AttendanceDate)
	if findErr != nil {
		return fmt.Errorf("%w: %v", ErrPersistenceFailure, findErr)
	}
	if stored.ReferenceID != record.ReferenceID {
		return ErrAlreadyMarked
	}

	*record = stored
	return nil
}

func (s *attendanceService) create(ctx context.Context, record *models.AttendanceRecord) error {
	opCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	return s.ledger.Create(opCtx, record)
}

func (s *attendanceService) afterMark(ctx context.Context, record models.AttendanceRecord) {
	bumpReportVersion(ctx, s.cache, record.ClassID, s.logger)

	if s.events != nil {
		s.events.Publish(ctx, dto.NewAttendanceEvent(record))
	}
}

func markOutcome(err error) string {
	var validationErrors validator.ValidationErrors
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrClassNotFound):
		return "class_not_found"
	case errors.Is(err, ErrClassCancelled):
		return "class_cancelled"
	case errors.Is(err, ErrOutsideWindow):
		return "outside_window"
	case errors.Is(err, ErrOutsideGeofence):
		return "outside_geofence"
	case errors.Is(err, ErrAlreadyMarked):
		return "already_marked"
	case errors.Is(err, ErrGeolocationUnavailable):
		return "geolocation_unavailable"
	case errors.Is(err, ErrPersistenceFailure):
		return "persistence_failure"
	case errors.As(err, &validationErrors), errors.Is(err, ErrUnauthorized):
		return "invalid"
	default:
		return "persistence_failure"
	}
}
