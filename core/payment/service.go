package payment

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/student"
)

var (
	// errors
	ErrNotFound      = errors.New("payment not found")
	ErrMonthPaid     = errors.New("payment for this month already exists")
	ErrReceiptExists = errors.New("a payment with this receipt number already exists")
)

type (
	Repository interface {
		CreatePayment(ctx context.Context, pmt Payment) (Payment, error)
		GetPayment(ctx context.Context, filter GetFilter) (Payment, error)
		QueryPayments(ctx context.Context, filter *QueryFilter, ordering ...core.DBOrdering) ([]Payment, error)
		CountPayments(ctx context.Context) (int, error)
		UpdatePayment(ctx context.Context, pmt Payment) (Payment, error)
		DeletePayment(ctx context.Context, id string) error
	}

	Service struct {
		repo     Repository
		students *student.Service
		receipts *ReceiptAllocator
		mailSvc  core.EmailService
		conf     *core.Config
	}
)

func NewService(repo Repository, students *student.Service, mailSvc core.EmailService, conf *core.Config) *Service {
	return &Service{
		repo:     repo,
		students: students,
		receipts: NewReceiptAllocator(repo),
		mailSvc:  mailSvc,
		conf:     conf,
	}
}

// Add records a payment: resolves the student, rejects a duplicate
// monthly_fee for the same month, allocates a receipt number, persists with
// status completed, then flips the student's cached payment status to
// completed. The status write is find-then-save after the payment insert
// (no transaction); see DESIGN.md for the documented gap.
func (svc *Service) Add(ctx context.Context, np NewPayment, collectedBy string) (Payment, error) {
	std, err := svc.students.GetByID(ctx, np.StudentRef)
	if err != nil {
		return Payment{}, err
	}

	if np.Type == TypeMonthlyFee {
		// pre-write check; the partial unique index is the backstop
		_, err := svc.repo.GetPayment(ctx, GetFilter{
			StudentRef: std.ID,
			Month:      np.Month,
			Type:       TypeMonthlyFee,
		})
		switch errors.Cause(err) {
		case nil:
			return Payment{}, core.NewConflictError(fmt.Errorf("payment for %s already exists", np.Month))
		case ErrNotFound:
		default:
			return Payment{}, err
		}
	}

	receipt, err := svc.receipts.Allocate(ctx)
	if err != nil {
		return Payment{}, err
	}

	now := time.Now().UTC()
	pmt := Payment{
		StudentRef:    std.ID,
		StudentID:     std.StudentID,
		StudentName:   std.Name,
		Amount:        np.Amount,
		Method:        np.Method,
		Type:          np.Type,
		PaymentDate:   now,
		Month:         np.Month,
		ReceiptNumber: receipt,
		Remarks:       np.Remarks,
		CollectedBy:   collectedBy,
		Status:        StatusCompleted,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	pmt, err = svc.repo.CreatePayment(ctx, pmt)
	if err != nil {
		if errors.Cause(err) == ErrMonthPaid {
			return Payment{}, core.NewConflictError(fmt.Errorf("payment for %s already exists", np.Month))
		}
		return Payment{}, err
	}

	if _, err := svc.students.SetPaymentStatus(ctx, std.ID, student.PaymentStatusCompleted); err != nil {
		return Payment{}, errors.Wrap(err, "updating student payment status")
	}

	svc.sendReceipt(std, pmt)
	return pmt, nil
}

// sendReceipt emails a plain-text receipt when the student has an email on file.
func (svc *Service) sendReceipt(std student.Student, pmt Payment) {
	if svc.mailSvc == nil || std.Email == "" {
		return
	}
	body := fmt.Sprintf(
		"Receipt %s\n\nStudent: %s (%s)\nAmount: %.2f\nMethod: %s\nType: %s\nDate: %s\n",
		pmt.ReceiptNumber, pmt.StudentName, pmt.StudentID,
		pmt.Amount, pmt.Method, pmt.Type, pmt.PaymentDate.Format(core.DateFormat),
	)
	if pmt.Month != "" {
		body += fmt.Sprintf("Month: %s\n", pmt.Month)
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Name: std.Name, Address: std.Email}},
		Subject: "Payment received - " + pmt.ReceiptNumber,
		Body:    body,
	})
}

// All lists every payment, newest first.
func (svc *Service) All(ctx context.Context) ([]Payment, error) {
	return svc.repo.QueryPayments(ctx, nil, core.DBOrdering{Field: "payment_date"})
}

// ForStudent lists one student's payments, newest first.
func (svc *Service) ForStudent(ctx context.Context, studentRef string) ([]Payment, error) {
	return svc.repo.QueryPayments(ctx,
		&QueryFilter{StudentRef: studentRef},
		core.DBOrdering{Field: "payment_date"},
	)
}

// TotalPaid sums the completed payments of a list.
func TotalPaid(pmts []Payment) float64 {
	var total float64
	for _, p := range pmts {
		if p.Status == StatusCompleted {
			total += p.Amount
		}
	}
	return total
}

// TotalAmount sums all payments of a list regardless of status.
func TotalAmount(pmts []Payment) float64 {
	var total float64
	for _, p := range pmts {
		total += p.Amount
	}
	return total
}

func (svc *Service) ByReceipt(ctx context.Context, receiptNumber string) (Payment, error) {
	return svc.repo.GetPayment(ctx, GetFilter{ReceiptNumber: core.CleanString(receiptNumber)})
}

// ByMonth lists a month's monthly_fee payments, student name ascending.
func (svc *Service) ByMonth(ctx context.Context, month string) ([]Payment, error) {
	return svc.repo.QueryPayments(ctx,
		&QueryFilter{Month: core.CleanString(month), Type: TypeMonthlyFee},
		core.DBOrdering{Field: "student_name", Ascending: true},
	)
}

// Stats folds completed payments (optionally bounded by payment date) into
// global statistics. All figures degrade to 0 on an empty set.
func (svc *Service) Stats(ctx context.Context, from, to time.Time) (Statistics, error) {
	filter := QueryFilter{Status: StatusCompleted}
	if !from.IsZero() && !to.IsZero() {
		filter.DateFrom = from
		filter.DateTo = to
	}
	pmts, err := svc.repo.QueryPayments(ctx, &filter)
	if err != nil {
		return Statistics{}, err
	}

	stats := Statistics{
		TotalPayments: len(pmts),
		ByMethod:      make(map[string]float64),
		ByType:        make(map[string]float64),
	}
	seen := make(map[string]struct{})
	for _, p := range pmts {
		stats.TotalAmount += p.Amount
		stats.ByMethod[p.Method] += p.Amount
		stats.ByType[p.Type] += p.Amount
		seen[p.StudentRef] = struct{}{}
	}
	stats.UniqueStudents = len(seen)
	if stats.TotalPayments > 0 {
		stats.AveragePayment = core.Round2(stats.TotalAmount / float64(stats.TotalPayments))
	}
	return stats, nil
}

// Update applies a partial update; month uniqueness and the student's cached
// status are NOT re-evaluated here (inherited behavior).
func (svc *Service) Update(ctx context.Context, id string, up UpdatePayment) (Payment, error) {
	pmt, err := svc.repo.GetPayment(ctx, GetFilter{ID: id})
	if err != nil {
		return Payment{}, err
	}

	if up.Amount != nil {
		pmt.Amount = *up.Amount
	}
	if up.Method != "" {
		pmt.Method = up.Method
	}
	if up.Type != "" {
		pmt.Type = up.Type
	}
	if up.Remarks != nil {
		pmt.Remarks = *up.Remarks
	}
	if up.Status != "" {
		pmt.Status = up.Status
	}
	pmt.UpdatedAt = time.Now().UTC()

	return svc.repo.UpdatePayment(ctx, pmt)
}

// Delete removes a payment, then re-scans the student's remaining completed
// payments; none left means the cached status goes back to pending. The
// re-scan trades a query for correctness over an incremental counter.
func (svc *Service) Delete(ctx context.Context, id string) error {
	pmt, err := svc.repo.GetPayment(ctx, GetFilter{ID: id})
	if err != nil {
		return err
	}
	if err := svc.repo.DeletePayment(ctx, id); err != nil {
		return err
	}

	remaining, err := svc.repo.QueryPayments(ctx, &QueryFilter{
		StudentRef: pmt.StudentRef,
		Status:     StatusCompleted,
	})
	if err != nil {
		return errors.Wrap(err, "querying remaining payments")
	}
	if len(remaining) == 0 {
		_, err := svc.students.SetPaymentStatus(ctx, pmt.StudentRef, student.PaymentStatusPending)
		switch errors.Cause(err) {
		case nil, student.ErrNotFound: // student may have been deleted; fine
		default:
			return errors.Wrap(err, "resetting student payment status")
		}
	}
	return nil
}
