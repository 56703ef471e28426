package tests

import (
	"context"
	"net/http"
	"regexp"
	"testing"

	"github.com/trezcool/shule/core/payment"
	"github.com/trezcool/shule/core/student"
	emailsvc "github.com/trezcool/shule/services/email"
)

var receiptRegex = regexp.MustCompile(`^REC\d+-\d+$`)

func addPayment(t *testing.T, std student.Student, amount float64, method, ptype, month string) payment.Payment {
	t.Helper()

	pmt, err := pmtSvc.Add(context.Background(), payment.NewPayment{
		StudentRef: std.ID,
		Amount:     amount,
		Method:     method,
		Type:       ptype,
		Month:      month,
	}, "awe")
	if err != nil {
		t.Fatalf("Add(): %v", err)
	}
	return pmt
}

func Test_paymentApi_add(t *testing.T) {
	app := setup(t)

	admin := createUser(t, "Awe Mbenza", "awe", "awe@test.cd", "LolC@t123", true)
	adminToken := getToken(t, admin)

	std := createStudent(t, "STD001", "Alice Kalala")
	email := "alice@test.cd"
	if _, err := stdSvc.Update(context.Background(), std.ID, student.UpdateStudent{Email: &email}); err != nil {
		t.Fatalf("Update(): %v", err)
	}

	reqMsg := "this field is required"
	tests := []httpTest{
		{name: "auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "required fields", token: adminToken, body: emptyBody, wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, errResp{Message: "invalid input", Errors: map[string]string{
				"student_ref":    reqMsg,
				"amount":         reqMsg,
				"payment_method": reqMsg,
				"payment_type":   reqMsg,
			}}),
		},
		{
			name: "monthly fee needs a month", token: adminToken, wantCode: http.StatusBadRequest,
			body: marchallObj(t, payment.NewPayment{StudentRef: std.ID, Amount: 100, Method: payment.MethodCash, Type: payment.TypeMonthlyFee}),
			wantData: marchallObj(t, errResp{Message: "invalid input", Errors: map[string]string{
				"month": "month is required for monthly fee payments",
			}}),
		},
		{
			name: "invalid month", token: adminToken, wantCode: http.StatusBadRequest,
			body: marchallObj(t, payment.NewPayment{StudentRef: std.ID, Amount: 100, Method: payment.MethodCash, Type: payment.TypeMonthlyFee, Month: "01-2024"}),
			wantData: marchallObj(t, errResp{Message: "invalid input", Errors: map[string]string{
				"month": "must be a month in YYYY-MM format",
			}}),
		},
		{
			name: "unknown student", token: adminToken, wantCode: http.StatusNotFound,
			body:     marchallObj(t, payment.NewPayment{StudentRef: "lol", Amount: 100, Method: payment.MethodCash, Type: payment.TypeRegistration}),
			wantData: marchallObj(t, errResp{Message: student.ErrNotFound.Error()}),
		},
		{
			name: "payment recorded", token: adminToken, wantCode: http.StatusCreated,
			body: marchallObj(t, payment.NewPayment{StudentRef: std.ID, Amount: 150.5, Method: payment.MethodCash, Type: payment.TypeMonthlyFee, Month: "2024-01"}),
		},
		{
			name: "duplicate month", token: adminToken, wantCode: http.StatusConflict,
			body:     marchallObj(t, payment.NewPayment{StudentRef: std.ID, Amount: 150.5, Method: payment.MethodCard, Type: payment.TypeMonthlyFee, Month: "2024-01"}),
			wantData: marchallObj(t, errResp{Message: "payment for 2024-01 already exists"}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/payments/add"

		t.Run(tt.name, func(t *testing.T) {
			emailsvc.ClearSentMessages()

			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)

			if tt.wantCode == http.StatusCreated {
				if rec.Code != tt.wantCode {
					t.Fatalf("code = %v; want %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
				}
				body := unmarshalBody(t, rec)
				if body["message"] != "payment recorded successfully" {
					t.Errorf("message = %v", body["message"])
				}
				pmt, ok := body["payment"].(map[string]interface{})
				if !ok {
					t.Fatalf("payment missing in body %s", rec.Body.String())
				}
				receipt, _ := pmt["receipt_number"].(string)
				if !receiptRegex.MatchString(receipt) {
					t.Errorf("receipt_number = %s; want REC<millis>-<n>", receipt)
				}
				if pmt["status"] != payment.StatusCompleted {
					t.Errorf("status = %v; want completed", pmt["status"])
				}
				if pmt["collected_by"] != admin.Username {
					t.Errorf("collected_by = %v; want %s", pmt["collected_by"], admin.Username)
				}

				// cached student status flips
				refreshed, err := stdSvc.GetByID(context.Background(), std.ID)
				if err != nil {
					t.Fatalf("GetByID(): %v", err)
				}
				if refreshed.PaymentStatus != student.PaymentStatusCompleted {
					t.Errorf("payment status = %s; want completed", refreshed.PaymentStatus)
				}

				// receipt email goes out when the student has an email on file
				if len(emailsvc.SentMessages) != 1 {
					t.Fatalf("len(SentMessages) = %d; want 1", len(emailsvc.SentMessages))
				}
				if to := emailsvc.SentMessages[0].To[0].Address; to != email {
					t.Errorf("To = %s; want %s", to, email)
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_paymentApi_queryAndPending(t *testing.T) {
	app := setup(t)

	admin := createUser(t, "Awe Mbenza", "awe", "awe@test.cd", "LolC@t123", true)
	adminToken := getToken(t, admin)

	std1 := createStudent(t, "STD001", "Alice Kalala")
	std2 := createStudent(t, "STD002", "Bob Ilunga")
	broke := createStudent(t, "STD003", "Carla Tshala")

	addPayment(t, std1, 100, payment.MethodCash, payment.TypeMonthlyFee, "2024-01")
	addPayment(t, std1, 25.5, payment.MethodCard, payment.TypeExamFee, "")
	addPayment(t, std2, 100, payment.MethodOnline, payment.TypeMonthlyFee, "2024-01")

	t.Run("all payments", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/payments/all", adminToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		body := unmarshalBody(t, rec)
		if count := body["count"].(float64); count != 3 {
			t.Errorf("count = %v; want 3", count)
		}
		if total := body["totalAmount"].(float64); total != 225.5 {
			t.Errorf("totalAmount = %v; want 225.5", total)
		}
	})

	t.Run("pending students", func(t *testing.T) {
		tt := httpTest{
			wantCode: http.StatusOK,
			wantData: marchallObj(t, map[string]interface{}{
				"success":  true,
				"count":    1,
				"students": []student.Student{broke},
			}),
		}
		req, rec := newAuthRequest(http.MethodGet, "/v1/payments/pending", adminToken)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})
}

func Test_paymentApi_stats(t *testing.T) {
	app := setup(t)

	admin := createUser(t, "Awe Mbenza", "awe", "awe@test.cd", "LolC@t123", true)
	adminToken := getToken(t, admin)

	std1 := createStudent(t, "STD001", "Alice Kalala")
	std2 := createStudent(t, "STD002", "Bob Ilunga")

	// controlled payment dates; seeded straight into storage
	seed := func(std student.Student, amount float64, method, ptype, date string, status string) {
		t.Helper()
		day := mustDate(t, date)
		_, err := pmtRepo.CreatePayment(context.Background(), payment.Payment{
			StudentRef:    std.ID,
			StudentID:     std.StudentID,
			StudentName:   std.Name,
			Amount:        amount,
			Method:        method,
			Type:          ptype,
			PaymentDate:   day,
			ReceiptNumber: "REC" + date + std.ID, // unique per seed
			Status:        status,
			CreatedAt:     day,
			UpdatedAt:     day,
		})
		if err != nil {
			t.Fatalf("CreatePayment(): %v", err)
		}
	}
	seed(std1, 100, payment.MethodCash, payment.TypeMonthlyFee, "2024-01-05", payment.StatusCompleted)
	seed(std1, 50, payment.MethodCard, payment.TypeExamFee, "2024-02-10", payment.StatusCompleted)
	seed(std2, 100, payment.MethodCash, payment.TypeMonthlyFee, "2024-02-15", payment.StatusCompleted)
	seed(std2, 75, payment.MethodOnline, payment.TypeOther, "2024-03-01", payment.StatusRefunded) // excluded

	t.Run("invalid range", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/payments/stats?startDate=lol&endDate=2024-02-28", adminToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusBadRequest, rec.Body.String())
		}
	})

	t.Run("all time", func(t *testing.T) {
		tt := httpTest{
			wantCode: http.StatusOK,
			wantData: marchallObj(t, map[string]interface{}{
				"success": true,
				"statistics": payment.Statistics{
					TotalAmount:    250,
					TotalPayments:  3,
					UniqueStudents: 2,
					ByMethod:       map[string]float64{payment.MethodCash: 200, payment.MethodCard: 50},
					ByType:         map[string]float64{payment.TypeMonthlyFee: 200, payment.TypeExamFee: 50},
					AveragePayment: 83.33,
				},
			}),
		}
		req, rec := newAuthRequest(http.MethodGet, "/v1/payments/stats", adminToken)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("ranged", func(t *testing.T) {
		tt := httpTest{
			wantCode: http.StatusOK,
			wantData: marchallObj(t, map[string]interface{}{
				"success": true,
				"statistics": payment.Statistics{
					TotalAmount:    150,
					TotalPayments:  2,
					UniqueStudents: 2,
					ByMethod:       map[string]float64{payment.MethodCash: 100, payment.MethodCard: 50},
					ByType:         map[string]float64{payment.TypeMonthlyFee: 100, payment.TypeExamFee: 50},
					AveragePayment: 75,
				},
			}),
		}
		req, rec := newAuthRequest(http.MethodGet, "/v1/payments/stats?startDate=2024-02-01&endDate=2024-02-28", adminToken)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})
}

func Test_paymentApi_forStudentReceiptMonth(t *testing.T) {
	app := setup(t)

	admin := createUser(t, "Awe Mbenza", "awe", "awe@test.cd", "LolC@t123", true)
	adminToken := getToken(t, admin)

	std1 := createStudent(t, "STD001", "Alice Kalala")
	std2 := createStudent(t, "STD002", "Bob Ilunga")

	pmt1 := addPayment(t, std1, 100, payment.MethodCash, payment.TypeMonthlyFee, "2024-01")
	addPayment(t, std1, 30, payment.MethodCard, payment.TypeExamFee, "")
	addPayment(t, std2, 100, payment.MethodCash, payment.TypeMonthlyFee, "2024-02")

	// refunds are excluded from totalPaid
	refunded := payment.StatusRefunded
	if _, err := pmtSvc.Update(context.Background(), pmt1.ID, payment.UpdatePayment{Status: refunded}); err != nil {
		t.Fatalf("Update(): %v", err)
	}

	t.Run("for student", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/payments/student/"+std1.ID, adminToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		body := unmarshalBody(t, rec)
		if count := body["count"].(float64); count != 2 {
			t.Errorf("count = %v; want 2", count)
		}
		if total := body["totalPaid"].(float64); total != 30 {
			t.Errorf("totalPaid = %v; want 30", total)
		}
	})

	t.Run("unknown receipt", func(t *testing.T) {
		tt := httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, errResp{Message: payment.ErrNotFound.Error()})}
		req, rec := newAuthRequest(http.MethodGet, "/v1/payments/receipt/lol", adminToken)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("by receipt", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/payments/receipt/"+pmt1.ReceiptNumber, adminToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		body := unmarshalBody(t, rec)
		pmt, _ := body["payment"].(map[string]interface{})
		if pmt["id"] != pmt1.ID {
			t.Errorf("payment.id = %v; want %s", pmt["id"], pmt1.ID)
		}
	})

	t.Run("invalid month", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/payments/month/lol", adminToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusBadRequest, rec.Body.String())
		}
		body := unmarshalBody(t, rec)
		fldErrs, _ := body["errors"].(map[string]interface{})
		if fldErrs["month"] != "must be a valid month in YYYY-MM format" {
			t.Errorf("errors = %v", body["errors"])
		}
	})

	t.Run("by month", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/payments/month/2024-01", adminToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		body := unmarshalBody(t, rec)
		if count := body["count"].(float64); count != 1 {
			t.Errorf("count = %v; want 1", count)
		}
		if total := body["total"].(float64); total != 100 {
			t.Errorf("total = %v; want 100", total)
		}
	})
}

func Test_paymentApi_updateDestroy(t *testing.T) {
	app := setup(t)

	admin := createUser(t, "Awe Mbenza", "awe", "awe@test.cd", "LolC@t123", true)
	adminToken := getToken(t, admin)

	std := createStudent(t, "STD001", "Alice Kalala")
	pmt1 := addPayment(t, std, 100, payment.MethodCash, payment.TypeMonthlyFee, "2024-01")
	pmt2 := addPayment(t, std, 100, payment.MethodCash, payment.TypeMonthlyFee, "2024-02")

	assertStatus := func(t *testing.T, want string) {
		t.Helper()
		refreshed, err := stdSvc.GetByID(context.Background(), std.ID)
		if err != nil {
			t.Fatalf("GetByID(): %v", err)
		}
		if refreshed.PaymentStatus != want {
			t.Errorf("payment status = %s; want %s", refreshed.PaymentStatus, want)
		}
	}
	assertStatus(t, student.PaymentStatusCompleted)

	t.Run("invalid update", func(t *testing.T) {
		tt := httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, errResp{Message: "invalid input", Errors: map[string]string{
				"status": "status must be one of [completed pending refunded]",
			}}),
		}
		body := marchallObj(t, payment.UpdatePayment{Status: "lol"})
		req, rec := newAuthRequest(http.MethodPut, "/v1/payments/update/"+pmt1.ID, adminToken, body)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("unknown payment", func(t *testing.T) {
		tt := httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, errResp{Message: payment.ErrNotFound.Error()})}
		body := marchallObj(t, payment.UpdatePayment{Method: payment.MethodCard})
		req, rec := newAuthRequest(http.MethodPut, "/v1/payments/update/lol", adminToken, body)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("partial update", func(t *testing.T) {
		amount := 120.0
		body := marchallObj(t, payment.UpdatePayment{Amount: &amount, Method: payment.MethodBankTransfer})
		req, rec := newAuthRequest(http.MethodPut, "/v1/payments/update/"+pmt1.ID, adminToken, body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		refreshed, err := pmtSvc.ByReceipt(context.Background(), pmt1.ReceiptNumber)
		if err != nil {
			t.Fatalf("ByReceipt(): %v", err)
		}
		if refreshed.Amount != 120 || refreshed.Method != payment.MethodBankTransfer {
			t.Errorf("payment = %+v; want amount 120, method bank_transfer", refreshed)
		}
		// untouched fields survive
		if refreshed.Type != pmt1.Type || refreshed.Month != pmt1.Month {
			t.Error("unrelated fields were overwritten")
		}
	})

	t.Run("delete keeps status while payments remain", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/v1/payments/delete/"+pmt2.ID, adminToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		assertStatus(t, student.PaymentStatusCompleted)
	})

	t.Run("deleting the last completed payment resets status", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/v1/payments/delete/"+pmt1.ID, adminToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		assertStatus(t, student.PaymentStatusPending)
	})
}
