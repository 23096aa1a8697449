package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/geoattend-api/internal/dto"
	"github.com/noah-isme/geoattend-api/internal/models"
	"github.com/noah-isme/geoattend-api/internal/observability"
	"github.com/noah-isme/geoattend-api/internal/repository"
	"github.com/noah-isme/geoattend-api/internal/schedule"
)

// ReportService aggregates attendance for a class over a range of days.
type ReportService interface {
	BuildReport(ctx context.Context, req dto.AttendanceReportRequest) (dto.AttendanceReportResponse, error)
}

// ReportOptions tunes report generation.
type ReportOptions struct {
	Window       schedule.Validator
	CacheTTL     time.Duration
	MaxDays      int
	StoreTimeout time.Duration
}

type reportService struct {
	classes      repository.ClassRepository
	roster       repository.RosterRepository
	ledger       repository.AttendanceRepository
	cache        *redis.Client
	window       schedule.Validator
	cacheTTL     time.Duration
	maxDays      int
	storeTimeout time.Duration
	logger       zerolog.Logger
	tracer       trace.Tracer
}

// NewReportService constructs the report aggregator. cache may be nil.
func NewReportService(classes repository.ClassRepository, roster repository.RosterRepository, ledger repository.AttendanceRepository, cache *redis.Client, opts ReportOptions, logger zerolog.Logger) ReportService {
	if opts.MaxDays <= 0 {
		opts.MaxDays = 366
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = 3 * time.Second
	}

	return &reportService{
		classes:      classes,
		roster:       roster,
		ledger:       ledger,
		cache:        cache,
		window:       opts.Window,
		cacheTTL:     opts.CacheTTL,
		maxDays:      opts.MaxDays,
		storeTimeout: opts.StoreTimeout,
		logger:       logger.With().Str("component", "report_service").Logger(),
		tracer:       otel.Tracer("github.com/noah-isme/geoattend-api/internal/service/report"),
	}
}

func (s *reportService) BuildReport(ctx context.Context, req dto.AttendanceReportRequest) (dto.AttendanceReportResponse, error) {
	ctx, span := s.tracer.Start(ctx, "attendance.report", trace.WithAttributes(
		attribute.Int64("report.class_id", int64(req.ClassID)),
		attribute.String("report.from", req.From),
		attribute.String("report.to", req.To),
	))
	defer span.End()

	from, to, err := s.parseRange(req)
	if err != nil {
		return dto.AttendanceReportResponse{}, err
	}

	class, err := s.loadClass(ctx, req.ClassID)
	if err != nil {
		if !errors.Is(err, ErrClassNotFound) {
			span.RecordError(err)
		}
		return dto.AttendanceReportResponse{}, err
	}

	cacheKey := s.cacheKey(ctx, req)
	if cached, ok := s.readCache(ctx, cacheKey); ok {
		observability.ReportBuilds().WithLabelValues("hit").Inc()
		span.SetAttributes(attribute.Bool("report.cache_hit", true))
		return cached, nil
	}

	occurrences, err := s.window.Occurrences(class, from, to)
	if err != nil {
		// a class whose schedule cannot be parsed has no scheduled days
		s.logger.Warn().Err(err).Uint("class_id", class.ID).Msg("class schedule unreadable, report has no occurrences")
		occurrences = nil
	}

	students, records, err := s.loadAttendance(ctx, class.ID, req.From, req.To)
	if err != nil {
		span.RecordError(err)
		return dto.AttendanceReportResponse{}, err
	}

	response := dto.AttendanceReportResponse{
		ClassID:     class.ID,
		ClassName:   class.Name,
		ClassCode:   class.Code,
		From:        req.From,
		To:          req.To,
		Occurrences: occurrences,
		Students:    len(students),
		Rows:        buildReportRows(occurrences, students, records),
	}
	if response.Occurrences == nil {
		response.Occurrences = []string{}
	}

	s.writeCache(ctx, cacheKey, response)
	observability.ReportBuilds().WithLabelValues("miss").Inc()
	span.SetAttributes(attribute.Int("report.rows", len(response.Rows)))

	return response, nil
}

func (s *reportService) loadClass(ctx context.Context, classID uint) (models.ClassSession, error) {
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

func (s *reportService) loadAttendance(ctx context.Context, classID uint, from, to string) ([]models.User, []models.AttendanceRecord, error) {
	rosterCtx, cancelRoster := context.WithTimeout(ctx, s.storeTimeout)
	defer cancelRoster()

	students, err := s.roster.ListStudents(rosterCtx, classID)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: list roster: %v", ErrPersistenceFailure, err)
	}

	ledgerCtx, cancelLedger := context.WithTimeout(ctx, s.storeTimeout)
	defer cancelLedger()

	records, err := s.ledger.ListByClass(ledgerCtx, classID, from, to)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: list attendance: %v", ErrPersistenceFailure, err)
	}
	return students, records, nil
}

func (s *reportService) parseRange(req dto.AttendanceReportRequest) (time.Time, time.Time, error) {
	if req.ClassID == 0 {
		return time.Time{}, time.Time{}, ErrClassNotFound
	}

	from, err := s.window.ParseDate(req.From)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: bad from date %q", ErrInvalidDateRange, req.From)
	}
	to, err := s.window.ParseDate(req.To)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: bad to date %q", ErrInvalidDateRange, req.To)
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: from is after to", ErrInvalidDateRange)
	}

	days := int(math.Round(to.Sub(from).Hours()/24)) + 1
	if days > s.maxDays {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %d days exceeds the %d day limit", ErrInvalidDateRange, days, s.maxDays)
	}
	return from, to, nil
}

// buildReportRows produces one row per student per occurrence, ordered by date, then
// student name, then student id.
func buildReportRows(occurrences []string, students []models.User, records []models.AttendanceRecord) []dto.ReportRow {
	type key struct {
		userID uint
		date   string
	}

	byKey := make(map[key]models.AttendanceRecord, len(records))
	for _, record := range records {
		byKey[key{userID: record.UserID, date: record.AttendanceDate}] = record
	}

	ordered := make([]models.User, len(students))
	copy(ordered, students)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Name != ordered[j].Name {
			return ordered[i].Name < ordered[j].Name
		}
		return ordered[i].ID < ordered[j].ID
	})

	dates := make([]string, len(occurrences))
	copy(dates, occurrences)
	sort.Strings(dates)

	rows := make([]dto.ReportRow, 0, len(dates)*len(ordered))
	for _, date := range dates {
		for _, student := range ordered {
			row := dto.ReportRow{
				StudentID:    student.ID,
				StudentName:  student.Name,
				StudentEmail: student.Email,
				Date:         date,
			}
			if record, ok := byKey[key{userID: student.ID, date: date}]; ok {
				markedAt := record.MarkedAt
				row.Present = true
				row.Timestamp = &markedAt
				row.DistanceMeters = record.DistanceMeters
				row.SharedDevice = record.SharedDevice
			}
			rows = append(rows, row)
		}
	}
	return rows
}

func (s *reportService) cacheKey(ctx context.Context, req dto.AttendanceReportRequest) string {
	if s.cache == nil || s.cacheTTL <= 0 {
		return ""
	}

	version, err := s.cache.Get(ctx, reportVersionKey(req.ClassID)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		s.logger.Warn().Err(err).Msg("failed to read report version")
		return ""
	}
	return fmt.Sprintf("report:class:%d:v%d:%s:%s", req.ClassID, version, req.From, req.To)
}

func (s *reportService) readCache(ctx context.Context, key string) (dto.AttendanceReportResponse, bool) {
	if key == "" {
		return dto.AttendanceReportResponse{}, false
	}

	cached, err := s.cache.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Msg("failed to read report cache")
		}
		return dto.AttendanceReportResponse{}, false
	}

	var response dto.AttendanceReportResponse
	if err := json.Unmarshal([]byte(cached), &response); err != nil {
		s.logger.Warn().Err(err).Msg("discarding unreadable report cache entry")
		return dto.AttendanceReportResponse{}, false
	}
	return response, true
}

func (s *reportService) writeCache(ctx context.Context, key string, response dto.AttendanceReportResponse) {
	if key == "" {
		return
	}

	payload, err := json.Marshal(response)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, payload, s.cacheTTL).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to store report cache")
	}
}

func reportVersionKey(classID uint) string {
	return fmt.Sprintf("report:class:%d:version", classID)
}

// bumpReportVersion invalidates every cached report of the class.
func bumpReportVersion(ctx context.Context, cache *redis.Client, classID uint, logger zerolog.Logger) {
	if cache == nil {
		return
	}
	if err := cache.Incr(ctx, reportVersionKey(classID)).Err(); err != nil {
		logger.Warn().Err(err).Uint("class_id", classID).Msg("failed to bump report version")
	}
}
