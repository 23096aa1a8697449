package service

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/geoattend-api/internal/dto"
	"github.com/noah-isme/geoattend-api/internal/models"
	"github.com/noah-isme/geoattend-api/internal/repository"
)

func newTestReportService(db *gorm.DB, cache *redis.Client) ReportService {
	return NewReportService(
		repository.NewClassRepository(db),
		repository.NewRosterRepository(db),
		repository.NewAttendanceRepository(db),
		cache,
		ReportOptions{Window: testWindow(), CacheTTL: time.Minute, MaxDays: 31},
		testLogger(),
	)
}

func seedRecord(t *testing.T, db *gorm.DB, user models.User, class models.ClassSession, date string, marked time.Time) {
	t.Helper()
	record := models.AttendanceRecord{
		ReferenceID:    date + "-" + user.Name,
		UserID:         user.ID,
		ClassID:        class.ID,
		AttendanceDate: date,
		MarkedAt:       marked,
		DistanceMeters: float(12.5),
	}
	require.NoError(t, db.Create(&record).Error)
}

func TestBuildReportRowsAreStudentsTimesOccurrences(t *testing.T) {
	db := setupServiceDB(t)
	class := createClass(t, db, nil)
	zara := createStudent(t, db, "Zara Malik")
	ali := createStudent(t, db, "Ali Raza")
	bilal := createStudent(t, db, "Bilal Ahmed")
	outsider := createStudent(t, db, "Omar Farooq")
	enroll(t, db, class, zara, ali, bilal)

	seedRecord(t, db, ali, class, "2026-10-12", monday0930)
	seedRecord(t, db, zara, class, "2026-10-05", monday0930.AddDate(0, 0, -7))
	seedRecord(t, db, outsider, class, "2026-10-12", monday0930)

	svc := newTestReportService(db, nil)
	report, err := svc.BuildReport(context.Background(), dto.AttendanceReportRequest{ClassID: class.ID, From: "2026-10-01", To: "2026-10-14"})
	require.NoError(t, err)

	require.Equal(t, []string{"2026-10-05", "2026-10-12"}, report.Occurrences)
	require.Equal(t, 3, report.Students)
	require.Len(t, report.Rows, 6)

	type cell struct {
		date    string
		name    string
		present bool
	}
	got := make([]cell, 0, len(report.Rows))
	for _, row := range report.Rows {
		got = append(got, cell{date: row.Date, name: row.StudentName, present: row.Present})
	}
	require.Equal(t, []cell{
		{"2026-10-05", "Ali Raza", false},
		{"2026-10-05", "Bilal Ahmed", false},
		{"2026-10-05", "Zara Malik", true},
		{"2026-10-12", "Ali Raza", true},
		{"2026-10-12", "Bilal Ahmed", false},
		{"2026-10-12", "Zara Malik", false},
	}, got)

	present := report.Rows[3]
	require.NotNil(t, present.Timestamp)
	require.NotNil(t, present.DistanceMeters)
	require.Nil(t, report.Rows[4].Timestamp)
}

func TestBuildReportReplacesMeetingWithRescheduledDay(t *testing.T) {
	db := setupServiceDB(t)
	class := createClass(t, db, func(c *models.ClassSession) {
		c.Status = models.ClassStatusRescheduled
		c.Reschedule = models.Reschedule{Date: "2026-10-14", StartTime: "14:00", EndTime: "15:00"}
	})
	enroll(t, db, class, createStudent(t, db, "Ali Raza"))

	svc := newTestReportService(db, nil)
	report, err := svc.BuildReport(context.Background(), dto.AttendanceReportRequest{ClassID: class.ID, From: "2026-10-12", To: "2026-10-18"})
	require.NoError(t, err)
	require.Equal(t, []string{"2026-10-14"}, report.Occurrences)
	require.Len(t, report.Rows, 1)
	require.Equal(t, "2026-10-14", report.Rows[0].Date)
}

func TestBuildReportValidation(t *testing.T) {
	db := setupServiceDB(t)
	class := createClass(t, db, nil)
	svc := newTestReportService(db, nil)

	_, err := svc.BuildReport(context.Background(), dto.AttendanceReportRequest{ClassID: class.ID, From: "2026-10-14", To: "2026-10-01"})
	require.ErrorIs(t, err, ErrInvalidDateRange)

	_, err = svc.BuildReport(context.Background(), dto.AttendanceReportRequest{ClassID: class.ID, From: "2026-01-01", To: "2026-10-01"})
	require.ErrorIs(t, err, ErrInvalidDateRange)

	_, err = svc.BuildReport(context.Background(), dto.AttendanceReportRequest{ClassID: class.ID, From: "yesterday", To: "2026-10-01"})
	require.ErrorIs(t, err, ErrInvalidDateRange)

	_, err = svc.BuildReport(context.Background(), dto.AttendanceReportRequest{ClassID: 404, From: "2026-10-01", To: "2026-10-14"})
	require.ErrorIs(t, err, ErrClassNotFound)
}

func TestBuildReportEmptyRoster(t *testing.T) {
	db := setupServiceDB(t)
	class := createClass(t, db, nil)
	svc := newTestReportService(db, nil)

	report, err := svc.BuildReport(context.Background(), dto.AttendanceReportRequest{ClassID: class.ID, From: "2026-10-01", To: "2026-10-31"})
	require.NoError(t, err)
	require.Len(t, report.Occurrences, 4)
	require.Empty(t, report.Rows)
}

func TestBuildReportCacheInvalidatedByMark(t *testing.T) {
	db := setupServiceDB(t)
	class := createClass(t, db, nil)
	student := createStudent(t, db, "Ali Raza")
	enroll(t, db, class, student)
	_, cache := setupRedis(t)

	reports := newTestReportService(db, cache)
	req := dto.AttendanceReportRequest{ClassID: class.ID, From: "2026-10-12", To: "2026-10-12"}

	first, err := reports.BuildReport(context.Background(), req)
	require.NoError(t, err)
	require.False(t, first.Rows[0].Present)

	// a record written behind the service's back is hidden by the cache
	seedRecord(t, db, student, class, "2026-10-12", monday0930)
	cached, err := reports.BuildReport(context.Background(), req)
	require.NoError(t, err)
	require.False(t, cached.Rows[0].Present)

	bumpReportVersion(context.Background(), cache, class.ID, testLogger())
	fresh, err := reports.BuildReport(context.Background(), req)
	require.NoError(t, err)
	require.True(t, fresh.Rows[0].Present)
}

func TestBuildReportDegradesWhenCacheIsDown(t *testing.T) {
	db := setupServiceDB(t)
	class := createClass(t, db, nil)
	enroll(t, db, class, createStudent(t, db, "Ali Raza"))
	cache := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	defer cache.Close()

	svc := newTestReportService(db, cache)
	report, err := svc.BuildReport(context.Background(), dto.AttendanceReportRequest{ClassID: class.ID, From: "2026-10-12", To: "2026-10-12"})
	require.NoError(t, err)
	require.Len(t, report.Rows, 1)
}

type stalledRoster struct {
	repository.RosterRepository
}

func (stalledRoster) ListStudents(ctx context.Context, _ uint) ([]models.User, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestBuildReportStoreTimeoutIsPersistenceFailure(t *testing.T) {
	db := setupServiceDB(t)
	class := createClass(t, db, nil)

	svc := NewReportService(
		repository.NewClassRepository(db),
		stalledRoster{},
		repository.NewAttendanceRepository(db),
		nil,
		ReportOptions{Window: testWindow(), MaxDays: 31, StoreTimeout: 50 * time.Millisecond},
		testLogger(),
	)

	done := make(chan error, 1)
	go func() {
		_, err := svc.BuildReport(context.Background(), dto.AttendanceReportRequest{ClassID: class.ID, From: "2026-10-01", To: "2026-10-14"})
		done <- err
	}()

	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrPersistenceFailure)
	case <-time.After(2 * time.Second):
		t.Fatal("report did not give up on a stalled roster store")
	}
}
