package payment

import (
	"time"

	"github.com/trezcool/shule/core"
)

// Payment methods.
const (
	MethodCash         = "cash"
	MethodCard         = "card"
	MethodBankTransfer = "bank_transfer"
	MethodOnline       = "online"
)

// Payment types.
const (
	TypeMonthlyFee   = "monthly_fee"
	TypeRegistration = "registration"
	TypeExamFee      = "exam_fee"
	TypeOther        = "other"
)

// Payment statuses.
const (
	StatusCompleted = "completed"
	StatusPending   = "pending"
	StatusRefunded  = "refunded"
)

// Payment is one ledger entry. StudentID/StudentName are a point-in-time
// copy taken at write time.
type Payment struct {
	ID            string    `json:"id"`
	StudentRef    string    `json:"student_ref"`  // owning Student row ID
	StudentID     string    `json:"student_id"`   // snapshot
	StudentName   string    `json:"student_name"` // snapshot
	Amount        float64   `json:"amount"`
	Method        string    `json:"payment_method"`
	Type          string    `json:"payment_type"`
	PaymentDate   time.Time `json:"payment_date"`
	Month         string    `json:"month,omitempty"` // YYYY-MM; meaningful for monthly_fee only
	ReceiptNumber string    `json:"receipt_number"`
	Remarks       string    `json:"remarks"`
	CollectedBy   string    `json:"collected_by"`
	Status        string    `json:"status"` // completed|pending|refunded
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NewPayment contains information needed to record a Payment.
type NewPayment struct {
	StudentRef string  `json:"student_ref" validate:"required"`
	Amount     float64 `json:"amount" validate:"required,gt=0"`
	Method     string  `json:"payment_method" validate:"required,oneof=cash card bank_transfer online"`
	Type       string  `json:"payment_type" validate:"required,oneof=monthly_fee registration exam_fee other"`
	Month      string  `json:"month" validate:"omitempty,yearmonth"`
	Remarks    string  `json:"remarks"`
}

func (np *NewPayment) Validate() error {
	np.Month = core.CleanString(np.Month)
	return core.Validate.Struct(np)
}

// UpdatePayment carries a partial update; nil/zero fields are left untouched.
type UpdatePayment struct {
	Amount  *float64 `json:"amount" validate:"omitempty,gt=0"`
	Method  string   `json:"payment_method" validate:"omitempty,oneof=cash card bank_transfer online"`
	Type    string   `json:"payment_type" validate:"omitempty,oneof=monthly_fee registration exam_fee other"`
	Remarks *string  `json:"remarks"`
	Status  string   `json:"status" validate:"omitempty,oneof=completed pending refunded"`
}

func (up *UpdatePayment) Validate() error {
	return core.Validate.Struct(up)
}

// Statistics is the global payments fold over completed payments.
type Statistics struct {
	TotalAmount    float64            `json:"total_amount"`
	TotalPayments  int                `json:"total_payments"`
	UniqueStudents int                `json:"unique_students"`
	ByMethod       map[string]float64 `json:"by_method"`
	ByType         map[string]float64 `json:"by_type"`
	AveragePayment float64            `json:"average_payment"`
}

// GetFilter selects a single Payment; ID, ReceiptNumber, or the
// (StudentRef, Month, Type) natural key.
type GetFilter struct {
	ID            string
	ReceiptNumber string
	StudentRef    string
	Month         string
	Type          string
}

// QueryFilter narrows payment list queries; all set fields are ANDed.
// Date bounds apply to PaymentDate and are inclusive.
type QueryFilter struct {
	StudentRef string
	Month      string
	Type       string
	Status     string
	DateFrom   time.Time
	DateTo     time.Time
}
