package database

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/payment"
)

type paymentRow struct {
	ID            string      `db:"id"`
	StudentRef    string      `db:"student_ref"`
	StudentID     string      `db:"student_id"`
	StudentName   string      `db:"student_name"`
	Amount        float64     `db:"amount"`
	Method        string      `db:"payment_method"`
	Type          string      `db:"payment_type"`
	PaymentDate   time.Time   `db:"payment_date"`
	Month         null.String `db:"month"`
	ReceiptNumber string      `db:"receipt_number"`
	Remarks       null.String `db:"remarks"`
	CollectedBy   null.String `db:"collected_by"`
	Status        string      `db:"status"`
	CreatedAt     time.Time   `db:"created_at"`
	UpdatedAt     time.Time   `db:"updated_at"`
}

func newPaymentRow(pmt payment.Payment) paymentRow {
	return paymentRow{
		ID:            pmt.ID,
		StudentRef:    pmt.StudentRef,
		StudentID:     pmt.StudentID,
		StudentName:   pmt.StudentName,
		Amount:        pmt.Amount,
		Method:        pmt.Method,
		Type:          pmt.Type,
		PaymentDate:   pmt.PaymentDate.UTC(),
		Month:         null.NewString(pmt.Month, pmt.Month != ""),
		ReceiptNumber: pmt.ReceiptNumber,
		Remarks:       null.NewString(pmt.Remarks, pmt.Remarks != ""),
		CollectedBy:   null.NewString(pmt.CollectedBy, pmt.CollectedBy != ""),
		Status:        pmt.Status,
		CreatedAt:     pmt.CreatedAt.UTC(),
		UpdatedAt:     pmt.UpdatedAt.UTC(),
	}
}

func (r paymentRow) domain() payment.Payment {
	return payment.Payment{
		ID:            r.ID,
		StudentRef:    r.StudentRef,
		StudentID:     r.StudentID,
		StudentName:   r.StudentName,
		Amount:        r.Amount,
		Method:        r.Method,
		Type:          r.Type,
		PaymentDate:   r.PaymentDate,
		Month:         r.Month.String,
		ReceiptNumber: r.ReceiptNumber,
		Remarks:       r.Remarks.String,
		CollectedBy:   r.CollectedBy.String,
		Status:        r.Status,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

type paymentRepository struct {
	db *sqlx.DB
}

var _ payment.Repository = (*paymentRepository)(nil) // interface compliance check

func NewPaymentRepository(db *sqlx.DB) *paymentRepository {
	return &paymentRepository{db: db}
}

func (repo paymentRepository) CreatePayment(ctx context.Context, pmt payment.Payment) (payment.Payment, error) {
	pmt.ID = uuid.New().String()
	row := newPaymentRow(pmt)
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO payment (id, student_ref, student_id, student_name, amount, payment_method, payment_type, payment_date, month, receipt_number, remarks, collected_by, status, created_at, updated_at)
		VALUES (:id, :student_ref, :student_id, :student_name, :amount, :payment_method, :payment_type, :payment_date, :month, :receipt_number, :remarks, :collected_by, :status, :created_at, :updated_at)`,
		row,
	)
	if err != nil {
		if isUniqueViolation(err, "payment_receipt_number_key") {
			return payment.Payment{}, payment.ErrReceiptExists
		}
		if isUniqueViolation(err, "payment_student_ref_month_key") {
			return payment.Payment{}, payment.ErrMonthPaid
		}
		return payment.Payment{}, errors.Wrap(err, "inserting payment")
	}
	return row.domain(), nil
}

func (repo paymentRepository) GetPayment(ctx context.Context, filter payment.GetFilter) (payment.Payment, error) {
	var row paymentRow

	switch {
	case filter.ID != "":
		if _, err := uuid.Parse(filter.ID); err != nil {
			return payment.Payment{}, payment.ErrNotFound
		}
		if err := repo.db.GetContext(ctx, &row, `SELECT * FROM payment WHERE id = $1`, filter.ID); err != nil {
			return payment.Payment{}, trapNoRowsErr(err, payment.ErrNotFound, "finding payment by ID")
		}
	case filter.ReceiptNumber != "":
		if err := repo.db.GetContext(ctx, &row, `SELECT * FROM payment WHERE receipt_number = $1`, filter.ReceiptNumber); err != nil {
			return payment.Payment{}, trapNoRowsErr(err, payment.ErrNotFound, "finding payment by receipt")
		}
	default:
		err := repo.db.GetContext(ctx, &row,
			`SELECT * FROM payment WHERE student_ref = $1 AND month = $2 AND payment_type = $3`,
			filter.StudentRef, filter.Month, filter.Type,
		)
		if err != nil {
			return payment.Payment{}, trapNoRowsErr(err, payment.ErrNotFound, "finding payment")
		}
	}
	return row.domain(), nil
}

func (repo paymentRepository) QueryPayments(ctx context.Context, filter *payment.QueryFilter, ordering ...core.DBOrdering) ([]payment.Payment, error) {
	query := `SELECT * FROM payment`
	var conds []string
	var args []interface{}

	if filter != nil {
		if filter.StudentRef != "" {
			conds = append(conds, `student_ref = ?`)
			args = append(args, filter.StudentRef)
		}
		if filter.Month != "" {
			conds = append(conds, `month = ?`)
			args = append(args, filter.Month)
		}
		if filter.Type != "" {
			conds = append(conds, `payment_type = ?`)
			args = append(args, filter.Type)
		}
		if filter.Status != "" {
			conds = append(conds, `status = ?`)
			args = append(args, filter.Status)
		}
		if !filter.DateFrom.IsZero() {
			conds = append(conds, `payment_date >= ?`)
			args = append(args, filter.DateFrom.UTC())
		}
		if !filter.DateTo.IsZero() {
			conds = append(conds, `payment_date <= ?`)
			args = append(args, filter.DateTo.UTC())
		}
	}
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, ` AND `)
	}
	if len(ordering) > 0 {
		orderList := make([]string, 0, len(ordering))
		for _, ord := range ordering {
			orderList = append(orderList, ord.String())
		}
		query += ` ORDER BY ` + strings.Join(orderList, `, `)
	}

	var rows []paymentRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "querying payments")
	}

	pmts := make([]payment.Payment, 0, len(rows))
	for _, row := range rows {
		pmts = append(pmts, row.domain())
	}
	return pmts, nil
}

func (repo paymentRepository) CountPayments(ctx context.Context) (int, error) {
	var count int
	if err := repo.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM payment`); err != nil {
		return 0, errors.Wrap(err, "counting payments")
	}
	return count, nil
}

func (repo paymentRepository) UpdatePayment(ctx context.Context, pmt payment.Payment) (payment.Payment, error) {
	row := newPaymentRow(pmt)
	res, err := repo.db.NamedExecContext(ctx, `
		UPDATE payment
		SET amount = :amount, payment_method = :payment_method, payment_type = :payment_type,
			month = :month, remarks = :remarks, status = :status, updated_at = :updated_at
		WHERE id = :id`,
		row,
	)
	if err != nil {
		return payment.Payment{}, errors.Wrap(err, "updating payment")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return payment.Payment{}, payment.ErrNotFound
	}
	return row.domain(), nil
}

func (repo paymentRepository) DeletePayment(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM payment WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting payment")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return payment.ErrNotFound
	}
	return nil
}
