package student

import (
	"time"

	"github.com/trezcool/shule/core"
)

// Payment statuses cached on the student record.
const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
)

// Student is the anchor entity; ledger rows reference it by ID and carry a
// point-in-time copy of StudentID/Name.
type Student struct {
	ID              string    `json:"id"`
	StudentID       string    `json:"student_id"` // externally assigned business key
	Name            string    `json:"name"`
	Address         string    `json:"address"`
	Phone           string    `json:"phone_no"`
	DateOfBirth     time.Time `json:"date_of_birth"`
	Gender          string    `json:"gender"`
	Email           string    `json:"email,omitempty"`
	AttendanceCount int       `json:"attendance_count"` // cached; ledger is the source of truth
	PaymentStatus   string    `json:"payment_status"`   // cached; pending|completed
	CreatedAt       time.Time `json:"created_at"`       // UTC
	UpdatedAt       time.Time `json:"updated_at"`       // UTC
}

// NewStudent contains information needed to register a new Student.
type NewStudent struct {
	StudentID   string `json:"student_id" validate:"required"`
	Name        string `json:"name" validate:"required"`
	Address     string `json:"address" validate:"required"`
	Phone       string `json:"phone_no" validate:"required"`
	DateOfBirth string `json:"date_of_birth" validate:"required,dateonly"`
	Gender      string `json:"gender" validate:"required"`
	Email       string `json:"email" validate:"omitempty,email"`
}

func (ns *NewStudent) Validate(svc *Service) error {
	ns.StudentID = core.CleanString(ns.StudentID)
	ns.Name = core.CleanString(ns.Name)
	ns.Email = core.CleanString(ns.Email, true /* lower */)

	if err := core.Validate.Struct(ns); err != nil {
		return err
	}
	return svc.CheckUniqueness(ns.StudentID)
}

// UpdateStudent defines what information may be provided to modify an
// existing Student. Absent fields are left untouched.
type UpdateStudent struct {
	Name            string `json:"name"`
	Address         string `json:"address"`
	Phone           string `json:"phone_no"`
	DateOfBirth     string `json:"date_of_birth" validate:"omitempty,dateonly"`
	Gender          string `json:"gender"`
	Email           *string `json:"email" validate:"omitempty,email"`
	AttendanceCount *int    `json:"attendance_count" validate:"omitempty,gte=0"`
	PaymentStatus   string  `json:"payment_status" validate:"omitempty,oneof=pending completed"`
}

func (us *UpdateStudent) Validate() error {
	us.Name = core.CleanString(us.Name)
	if us.Email != nil {
		email := core.CleanString(*us.Email, true /* lower */)
		us.Email = &email
	}
	return core.Validate.Struct(us)
}

// GetFilter selects a single Student; exactly one field should be set.
type GetFilter struct {
	ID        string
	StudentID string
}

// QueryFilter narrows student list queries.
type QueryFilter struct {
	// Search does a case-insensitive substring match on one of
	// Name, StudentID, Phone or Address.
	Search        string `query:"query"`
	PaymentStatus string `query:"payment_status"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.PaymentStatus == ""
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}
