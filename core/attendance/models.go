package attendance

import (
	"time"

	"github.com/trezcool/shule/core"
)

// Attendance statuses.
const (
	StatusPresent = "present"
	StatusAbsent  = "absent"
	StatusLate    = "late"
)

// Record is one student's attendance for one calendar day.
// StudentID/StudentName are a point-in-time copy taken when the record is
// first written; renaming the student does not rewrite history.
type Record struct {
	ID          string    `json:"id"`
	StudentRef  string    `json:"student_ref"`  // owning Student row ID
	StudentID   string    `json:"student_id"`   // snapshot
	StudentName string    `json:"student_name"` // snapshot
	Date        time.Time `json:"date"`         // day granularity, UTC
	Status      string    `json:"status"`       // present|absent|late
	Remarks     string    `json:"remarks"`
	MarkedBy    string    `json:"marked_by"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

// MarkAttendance contains information needed to upsert a Record.
type MarkAttendance struct {
	StudentRef string `json:"student_ref" validate:"required"`
	Date       string `json:"date" validate:"required,dateonly"`
	Status     string `json:"status" validate:"required,oneof=present absent late"`
	Remarks    string `json:"remarks"`
}

func (ma *MarkAttendance) Validate() error {
	return core.Validate.Struct(ma)
}

// BulkItem is one entry of a bulk mark request.
type BulkItem struct {
	StudentRef string `json:"student_ref" validate:"required"`
	Status     string `json:"status" validate:"required,oneof=present absent late"`
	Remarks    string `json:"remarks"`
}

// BulkAttendance marks a whole group for one day.
type BulkAttendance struct {
	Date    string     `json:"date" validate:"required,dateonly"`
	Records []BulkItem `json:"records" validate:"required,min=1,dive"`
}

func (ba *BulkAttendance) Validate() error {
	return core.Validate.Struct(ba)
}

// BulkFailure reports why one bulk item was skipped.
type BulkFailure struct {
	StudentRef string `json:"student_ref"`
	Reason     string `json:"reason"`
}

// BulkResult reports the per-item outcome of a bulk mark; partial success is
// the expected case.
type BulkResult struct {
	Succeeded []Record      `json:"succeeded"`
	Failed    []BulkFailure `json:"failed"`
}

// Statistics summarizes one student's ledger.
type Statistics struct {
	TotalDays         int     `json:"total_days"`
	PresentDays       int     `json:"present_days"`
	AbsentDays        int     `json:"absent_days"`
	LateDays          int     `json:"late_days"`
	PresentPercentage float64 `json:"present_percentage"`
}

// StudentAttendance is the per-student report: statistics + raw records.
type StudentAttendance struct {
	Statistics Statistics `json:"statistics"`
	Records    []Record   `json:"records"`
}

// ReportEntry is the per-student fold of a ranged report.
type ReportEntry struct {
	StudentID         string  `json:"student_id"`
	StudentName       string  `json:"student_name"`
	Present           int     `json:"present"`
	Absent            int     `json:"absent"`
	Late              int     `json:"late"`
	Total             int     `json:"total"`
	PresentPercentage float64 `json:"present_percentage"`
}

// Report is the ranged report: per-student stats + the flat record list.
type Report struct {
	StartDate    time.Time     `json:"start_date"`
	EndDate      time.Time     `json:"end_date"`
	TotalRecords int           `json:"total_records"`
	StudentStats []ReportEntry `json:"student_stats"`
	Records      []Record      `json:"records"`
}

// GetFilter selects a single Record: by ID, or by the (StudentRef, Date)
// natural key.
type GetFilter struct {
	ID         string
	StudentRef string
	Date       time.Time
}

// QueryFilter narrows record list queries; all set fields are ANDed.
type QueryFilter struct {
	StudentRef string
	Date       time.Time // exact day
	DateFrom   time.Time // inclusive
	DateTo     time.Time // inclusive
}
