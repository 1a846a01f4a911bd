package handler

import (
	"strings"
	"time"

	"presente/internal/rollcall/models"
	id "presente/pkg/domain"
	dErrors "presente/pkg/domain-errors"
)

// OpenSessionRequest is the body for opening a roll call. Period is optional;
// empty means "current", resolved at the handler from the request clock.
type OpenSessionRequest struct {
	Topic  string `json:"topic"`
	Period string `json:"period,omitempty"`

	parsedPeriod id.Period
}

func (r *OpenSessionRequest) Prepare() error {
	r.Topic = strings.TrimSpace(r.Topic)
	if r.Topic == "" {
		return dErrors.New(dErrors.CodeValidation, "topic cannot be empty")
	}
	if r.Period != "" {
		period, err := id.ParsePeriod(r.Period)
		if err != nil {
			return err
		}
		r.parsedPeriod = period
	}
	return nil
}

func (r *OpenSessionRequest) ParsedPeriod() id.Period { return r.parsedPeriod }

// CheckInRequest is the body for a student self check-in. Coordinates are
// optional; when present both must be set so the campus gate can run.
type CheckInRequest struct {
	Lat *float64 `json:"lat,omitempty"`
	Lon *float64 `json:"lon,omitempty"`
}

func (r *CheckInRequest) Prepare() error {
	if (r.Lat == nil) != (r.Lon == nil) {
		return dErrors.New(dErrors.CodeValidation, "lat and lon must be sent together")
	}
	return nil
}

// Coordinates returns the client location, or nil when none was sent.
func (r *CheckInRequest) Coordinates() (lat, lon float64, ok bool) {
	if r.Lat == nil {
		return 0, 0, false
	}
	return *r.Lat, *r.Lon, true
}

// ToggleRequest is the body for the manual attendance correction. Date is
// optional and defaults to today; it lets a teacher fix a past session.
type ToggleRequest struct {
	StudentID string `json:"student_id"`
	Date      string `json:"date,omitempty"`

	parsedStudentID id.StudentID
}

func (r *ToggleRequest) Prepare() error {
	studentID, err := id.ParseStudentID(r.StudentID)
	if err != nil {
		return err
	}
	if r.Date != "" {
		if _, err := time.Parse(models.DateLayout, r.Date); err != nil {
			return dErrors.Newf(dErrors.CodeValidation, "date %q must look like %s", r.Date, models.DateLayout)
		}
	}
	r.parsedStudentID = studentID
	return nil
}

func (r *ToggleRequest) ParsedStudentID() id.StudentID { return r.parsedStudentID }
