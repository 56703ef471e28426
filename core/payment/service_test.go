package payment_test

import (
	"context"
	"fmt"
	"net/mail"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/payment"
	"github.com/trezcool/shule/core/student"
	emailsvc "github.com/trezcool/shule/services/email"
	inmemdb "github.com/trezcool/shule/storage/database/inmem"
)

func setup(t *testing.T) (*payment.Service, *student.Service, payment.Repository) {
	t.Helper()

	db, err := inmemdb.Open()
	require.NoError(t, err)

	conf := &core.Config{
		TestMode:         true,
		AppName:          "Shule",
		DefaultFromEmail: mail.Address{Name: "Shule", Address: "noreply@localhost"},
	}
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	emailsvc.ClearSentMessages()

	pmtRepo := inmemdb.NewPaymentRepository(db)
	stdSvc := student.NewService(inmemdb.NewStudentRepository(db))
	pmtSvc := payment.NewService(pmtRepo, stdSvc, mailSvc, conf)
	return pmtSvc, stdSvc, pmtRepo
}

func newStudent(t *testing.T, stdSvc *student.Service, studentID, name, email string) student.Student {
	t.Helper()

	std, err := stdSvc.Create(context.Background(), student.NewStudent{
		StudentID:   studentID,
		Name:        name,
		Address:     "12 Main St",
		Phone:       "+243900000001",
		DateOfBirth: "2010-05-17",
		Gender:      "female",
		Email:       email,
	})
	require.NoError(t, err)
	return std
}

func TestReceiptAllocator_format(t *testing.T) {
	_, _, pmtRepo := setup(t)

	frozen := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)
	payment.NowFunc = func() time.Time { return frozen }
	defer func() { payment.NowFunc = time.Now }()

	alloc := payment.NewReceiptAllocator(pmtRepo)
	receipt, err := alloc.Allocate(context.Background())
	require.NoError(t, err)

	millis := frozen.UnixNano() / int64(time.Millisecond)
	assert.Equal(t, fmt.Sprintf("REC%d-1", millis), receipt)
}

func TestService_Add(t *testing.T) {
	pmtSvc, stdSvc, _ := setup(t)
	ctx := context.Background()

	std := newStudent(t, stdSvc, "STD001", "Alice Kalala", "alice@test.cd")

	pmt, err := pmtSvc.Add(ctx, payment.NewPayment{
		StudentRef: std.ID,
		Amount:     150.5,
		Method:     payment.MethodCash,
		Type:       payment.TypeMonthlyFee,
		Month:      "2024-01",
	}, "awe")
	require.NoError(t, err)
	assert.Equal(t, std.StudentID, pmt.StudentID)
	assert.Equal(t, std.Name, pmt.StudentName)
	assert.Equal(t, payment.StatusCompleted, pmt.Status)
	assert.Equal(t, "awe", pmt.CollectedBy)
	assert.Regexp(t, `^REC\d+-\d+$`, pmt.ReceiptNumber)

	// the cached student status flips to completed
	refreshed, err := stdSvc.GetByID(ctx, std.ID)
	require.NoError(t, err)
	assert.Equal(t, student.PaymentStatusCompleted, refreshed.PaymentStatus)

	// a receipt email goes out to the student
	require.Len(t, emailsvc.SentMessages, 1)
	msg := emailsvc.SentMessages[0]
	assert.Equal(t, mail.Address{Name: std.Name, Address: std.Email}, msg.To[0])
	assert.Contains(t, msg.Body, pmt.ReceiptNumber)

	// a second monthly fee for the same month conflicts
	_, err = pmtSvc.Add(ctx, payment.NewPayment{
		StudentRef: std.ID,
		Amount:     150.5,
		Method:     payment.MethodCard,
		Type:       payment.TypeMonthlyFee,
		Month:      "2024-01",
	}, "awe")
	assert.True(t, core.IsConflict(err))

	// another month is fine
	_, err = pmtSvc.Add(ctx, payment.NewPayment{
		StudentRef: std.ID,
		Amount:     150.5,
		Method:     payment.MethodCash,
		Type:       payment.TypeMonthlyFee,
		Month:      "2024-02",
	}, "awe")
	assert.NoError(t, err)
}

func TestService_Add_unknownStudent(t *testing.T) {
	pmtSvc, _, _ := setup(t)

	_, err := pmtSvc.Add(context.Background(), payment.NewPayment{
		StudentRef: "lol",
		Amount:     100,
		Method:     payment.MethodCash,
		Type:       payment.TypeRegistration,
	}, "awe")
	assert.Equal(t, student.ErrNotFound, err)
}

func TestService_Add_noEmailNoReceiptMail(t *testing.T) {
	pmtSvc, stdSvc, _ := setup(t)

	std := newStudent(t, stdSvc, "STD001", "Alice Kalala", "")
	_, err := pmtSvc.Add(context.Background(), payment.NewPayment{
		StudentRef: std.ID,
		Amount:     100,
		Method:     payment.MethodCash,
		Type:       payment.TypeRegistration,
	}, "awe")
	require.NoError(t, err)
	assert.Empty(t, emailsvc.SentMessages)
}

func TestService_Stats(t *testing.T) {
	pmtSvc, stdSvc, pmtRepo := setup(t)
	ctx := context.Background()

	// empty set degrades to zeros
	stats, err := pmtSvc.Stats(ctx, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 0.0, stats.TotalAmount)
	assert.Equal(t, 0.0, stats.AveragePayment)
	assert.Equal(t, 0, stats.UniqueStudents)

	std1 := newStudent(t, stdSvc, "STD001", "Alice Kalala", "")
	std2 := newStudent(t, stdSvc, "STD002", "Bob Ilunga", "")

	seed := func(std student.Student, amount float64, method, ptype string, date time.Time, status string) {
		t.Helper()
		_, err := pmtRepo.CreatePayment(ctx, payment.Payment{
			StudentRef:    std.ID,
			StudentID:     std.StudentID,
			StudentName:   std.Name,
			Amount:        amount,
			Method:        method,
			Type:          ptype,
			PaymentDate:   date,
			ReceiptNumber: fmt.Sprintf("REC-%s-%s", std.StudentID, date.Format(core.DateFormat)),
			Status:        status,
			CreatedAt:     date,
			UpdatedAt:     date,
		})
		require.NoError(t, err)
	}
	jan := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)
	seed(std1, 100, payment.MethodCash, payment.TypeMonthlyFee, jan, payment.StatusCompleted)
	seed(std1, 50, payment.MethodCard, payment.TypeExamFee, feb, payment.StatusCompleted)
	seed(std2, 100, payment.MethodCash, payment.TypeMonthlyFee, feb, payment.StatusCompleted)
	seed(std2, 75, payment.MethodOnline, payment.TypeOther, feb, payment.StatusRefunded) // excluded

	stats, err = pmtSvc.Stats(ctx, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, payment.Statistics{
		TotalAmount:    250,
		TotalPayments:  3,
		UniqueStudents: 2,
		ByMethod:       map[string]float64{payment.MethodCash: 200, payment.MethodCard: 50},
		ByType:         map[string]float64{payment.TypeMonthlyFee: 200, payment.TypeExamFee: 50},
		AveragePayment: 83.33,
	}, stats)

	// bounded by payment date
	stats, err = pmtSvc.Stats(ctx,
		time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 2, 28, 0, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)
	assert.Equal(t, 150.0, stats.TotalAmount)
	assert.Equal(t, 2, stats.TotalPayments)
	assert.Equal(t, 75.0, stats.AveragePayment)
}

func TestService_totals(t *testing.T) {
	pmts := []payment.Payment{
		{Amount: 100, Status: payment.StatusCompleted},
		{Amount: 50, Status: payment.StatusPending},
		{Amount: 25, Status: payment.StatusRefunded},
	}
	assert.Equal(t, 100.0, payment.TotalPaid(pmts))
	assert.Equal(t, 175.0, payment.TotalAmount(pmts))
}

func TestService_Delete_resetsStudentStatus(t *testing.T) {
	pmtSvc, stdSvc, _ := setup(t)
	ctx := context.Background()

	std := newStudent(t, stdSvc, "STD001", "Alice Kalala", "")
	pmt1, err := pmtSvc.Add(ctx, payment.NewPayment{
		StudentRef: std.ID, Amount: 100, Method: payment.MethodCash, Type: payment.TypeMonthlyFee, Month: "2024-01",
	}, "awe")
	require.NoError(t, err)
	pmt2, err := pmtSvc.Add(ctx, payment.NewPayment{
		StudentRef: std.ID, Amount: 100, Method: payment.MethodCash, Type: payment.TypeMonthlyFee, Month: "2024-02",
	}, "awe")
	require.NoError(t, err)

	status := func() string {
		refreshed, err := stdSvc.GetByID(ctx, std.ID)
		require.NoError(t, err)
		return refreshed.PaymentStatus
	}
	require.Equal(t, student.PaymentStatusCompleted, status())

	// completed payments remain; the cached status holds
	require.NoError(t, pmtSvc.Delete(ctx, pmt1.ID))
	assert.Equal(t, student.PaymentStatusCompleted, status())

	// the last one goes; the cached status falls back to pending
	require.NoError(t, pmtSvc.Delete(ctx, pmt2.ID))
	assert.Equal(t, student.PaymentStatusPending, status())

	assert.Equal(t, payment.ErrNotFound, pmtSvc.Delete(ctx, "lol"))
}

func TestService_Delete_studentGone(t *testing.T) {
	pmtSvc, stdSvc, _ := setup(t)
	ctx := context.Background()

	std := newStudent(t, stdSvc, "STD001", "Alice Kalala", "")
	pmt, err := pmtSvc.Add(ctx, payment.NewPayment{
		StudentRef: std.ID, Amount: 100, Method: payment.MethodCash, Type: payment.TypeRegistration,
	}, "awe")
	require.NoError(t, err)

	// the ledger row still goes away after the student is deleted
	_, err = stdSvc.Delete(ctx, std.ID)
	require.NoError(t, err)
	require.NoError(t, pmtSvc.Delete(ctx, pmt.ID))
}
