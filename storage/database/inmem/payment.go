package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/payment"
)

type paymentRepository struct {
	db *paymentTable
}

func NewPaymentRepository(db *DB) payment.Repository {
	return &paymentRepository{db: db.payment}
}

func (repo *paymentRepository) query() []payment.Payment {
	pmts := make([]payment.Payment, 0, len(repo.db.table))
	for _, pmt := range repo.db.table {
		pmts = append(pmts, *pmt)
	}
	return pmts
}

func (repo *paymentRepository) CreatePayment(ctx context.Context, pmt payment.Payment) (payment.Payment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, existing := range repo.query() {
		if existing.ReceiptNumber == pmt.ReceiptNumber {
			return payment.Payment{}, payment.ErrReceiptExists
		}
		if pmt.Type == payment.TypeMonthlyFee &&
			existing.Type == payment.TypeMonthlyFee &&
			existing.StudentRef == pmt.StudentRef &&
			existing.Month == pmt.Month {
			return payment.Payment{}, payment.ErrMonthPaid
		}
	}

	pmt.ID = uuid.New().String()
	repo.db.table[pmt.ID] = &pmt
	return pmt, nil
}

func (repo *paymentRepository) GetPayment(ctx context.Context, filter payment.GetFilter) (payment.Payment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	switch {
	case filter.ID != "":
		if pmt, ok := repo.db.table[filter.ID]; ok {
			return *pmt, nil
		}
	case filter.ReceiptNumber != "":
		for _, pmt := range repo.query() {
			if pmt.ReceiptNumber == filter.ReceiptNumber {
				return pmt, nil
			}
		}
	default:
		for _, pmt := range repo.query() {
			if pmt.StudentRef == filter.StudentRef && pmt.Month == filter.Month && pmt.Type == filter.Type {
				return pmt, nil
			}
		}
	}
	return payment.Payment{}, payment.ErrNotFound
}

func (repo *paymentRepository) QueryPayments(ctx context.Context, filter *payment.QueryFilter, ordering ...core.DBOrdering) ([]payment.Payment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	match := func(pmt payment.Payment) bool {
		if filter == nil {
			return true
		}
		if filter.StudentRef != "" && pmt.StudentRef != filter.StudentRef {
			return false
		}
		if filter.Month != "" && pmt.Month != filter.Month {
			return false
		}
		if filter.Type != "" && pmt.Type != filter.Type {
			return false
		}
		if filter.Status != "" && pmt.Status != filter.Status {
			return false
		}
		if !filter.DateFrom.IsZero() && pmt.PaymentDate.Before(filter.DateFrom) {
			return false
		}
		if !filter.DateTo.IsZero() && pmt.PaymentDate.After(filter.DateTo) {
			return false
		}
		return true
	}

	pmts := make([]payment.Payment, 0, len(repo.db.table))
	for _, pmt := range repo.query() {
		if match(pmt) {
			pmts = append(pmts, pmt)
		}
	}

	sort.SliceStable(pmts, func(i, j int) bool {
		for _, ord := range ordering {
			var cmp int
			switch ord.Field {
			case "payment_date":
				cmp = compareTimes(pmts[i].PaymentDate, pmts[j].PaymentDate)
			case "student_name":
				cmp = compareStrings(pmts[i].StudentName, pmts[j].StudentName)
			case "created_at":
				cmp = compareTimes(pmts[i].CreatedAt, pmts[j].CreatedAt)
			}
			if !ord.Ascending {
				cmp = -cmp
			}
			if cmp != 0 {
				return cmp < 0
			}
		}
		return false
	})
	return pmts, nil
}

func (repo *paymentRepository) CountPayments(ctx context.Context) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return len(repo.db.table), nil
}

func (repo *paymentRepository) UpdatePayment(ctx context.Context, pmt payment.Payment) (payment.Payment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[pmt.ID]; !ok {
		return payment.Payment{}, payment.ErrNotFound
	}
	repo.db.table[pmt.ID] = &pmt
	return pmt, nil
}

func (repo *paymentRepository) DeletePayment(ctx context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[id]; !ok {
		return payment.ErrNotFound
	}
	delete(repo.db.table, id)
	return nil
}
