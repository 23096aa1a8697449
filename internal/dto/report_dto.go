package dto

import "time"

// AttendanceReportRequest selects a class and an inclusive day range.
type AttendanceReportRequest struct {
	ClassID uint   `validate:"required"`
	From    string `validate:"required,datetime=2006-01-02"`
	To      string `validate:"required,datetime=2006-01-02"`
}

// ReportRow is one student on one scheduled day. Timestamp and distance are empty when absent.
type ReportRow struct {
	StudentID      uint       `json:"student_id"`
	StudentName    string     `json:"student_name"`
	StudentEmail   string     `json:"student_email"`
	Date           string     `json:"date"`
	Present        bool       `json:"present"`
	Timestamp      *time.Time `json:"timestamp,omitempty"`
	DistanceMeters *float64   `json:"distance_meters,omitempty"`
	SharedDevice   bool       `json:"shared_device"`
}

// AttendanceReportResponse is the flat ordered row sequence consumed by exporters.
type AttendanceReportResponse struct {
	ClassID     uint        `json:"class_id"`
	ClassName   string      `json:"class_name"`
	ClassCode   string      `json:"class_code"`
	From        string      `json:"from"`
	To          string      `json:"to"`
	Occurrences []string    `json:"occurrences"`
	Students    int         `json:"students"`
	Rows        []ReportRow `json:"rows"`
}
