package student

import (
	"context"
	"errors"
	"time"

	"github.com/trezcool/shule/core"
)

var (
	// errors
	ErrNotFound        = errors.New("student not found")
	ErrStudentIDExists = errors.New("a student with this ID already exists")
)

type (
	Repository interface {
		CheckStudentIDUniqueness(ctx context.Context, studentID string, excluded ...Student) error
		CreateStudent(ctx context.Context, std Student) (Student, error)
		QueryStudents(ctx context.Context, filter *QueryFilter, ordering ...core.DBOrdering) ([]Student, error)
		GetStudent(ctx context.Context, filter GetFilter) (Student, error)
		UpdateStudent(ctx context.Context, std Student) (Student, error)
		DeleteStudent(ctx context.Context, id string) error
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) CheckUniqueness(studentID string, excluded ...Student) error {
	if err := svc.repo.CheckStudentIDUniqueness(context.Background(), studentID, excluded...); err != nil {
		if err == ErrStudentIDExists {
			return core.NewConflictError(err)
		}
		return err
	}
	return nil
}

func (svc *Service) Create(ctx context.Context, ns NewStudent) (Student, error) {
	dob, err := time.Parse(core.DateFormat, ns.DateOfBirth)
	if err != nil {
		return Student{}, core.NewValidationError(err, core.FieldError{Field: "date_of_birth", Error: err.Error()})
	}

	now := time.Now().UTC()
	std := Student{
		StudentID:       ns.StudentID,
		Name:            ns.Name,
		Address:         ns.Address,
		Phone:           ns.Phone,
		DateOfBirth:     dob,
		Gender:          ns.Gender,
		Email:           ns.Email,
		AttendanceCount: 0,
		PaymentStatus:   PaymentStatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	return svc.repo.CreateStudent(ctx, std)
}

func (svc *Service) QueryAll(ctx context.Context) ([]Student, error) {
	return svc.repo.QueryStudents(ctx, nil, core.DBOrdering{Field: "created_at"})
}

func (svc *Service) GetByID(ctx context.Context, id string) (Student, error) {
	return svc.repo.GetStudent(ctx, GetFilter{ID: id})
}

func (svc *Service) GetByStudentID(ctx context.Context, studentID string) (Student, error) {
	return svc.repo.GetStudent(ctx, GetFilter{StudentID: core.CleanString(studentID)})
}

func (svc *Service) Filter(ctx context.Context, filter QueryFilter) ([]Student, error) {
	filter.Clean()
	return svc.repo.QueryStudents(ctx, &filter, core.DBOrdering{Field: "name", Ascending: true})
}

// PendingPayments lists students whose cached payment status is still pending.
func (svc *Service) PendingPayments(ctx context.Context) ([]Student, error) {
	return svc.repo.QueryStudents(ctx,
		&QueryFilter{PaymentStatus: PaymentStatusPending},
		core.DBOrdering{Field: "name", Ascending: true},
	)
}

func (svc *Service) Update(ctx context.Context, id string, us UpdateStudent) (Student, error) {
	std, err := svc.repo.GetStudent(ctx, GetFilter{ID: id})
	if err != nil {
		return Student{}, err
	}

	// only overwrite supplied fields
	if us.Name != "" {
		std.Name = us.Name
	}
	if us.Address != "" {
		std.Address = us.Address
	}
	if us.Phone != "" {
		std.Phone = us.Phone
	}
	if us.DateOfBirth != "" {
		dob, err := time.Parse(core.DateFormat, us.DateOfBirth)
		if err != nil {
			return Student{}, core.NewValidationError(err, core.FieldError{Field: "date_of_birth", Error: err.Error()})
		}
		std.DateOfBirth = dob
	}
	if us.Gender != "" {
		std.Gender = us.Gender
	}
	if us.Email != nil {
		std.Email = *us.Email
	}
	if us.AttendanceCount != nil {
		std.AttendanceCount = *us.AttendanceCount
	}
	if us.PaymentStatus != "" {
		std.PaymentStatus = us.PaymentStatus
	}
	std.UpdatedAt = time.Now().UTC()

	return svc.repo.UpdateStudent(ctx, std)
}

// SetPaymentStatus overwrites the cached payment status flag.
func (svc *Service) SetPaymentStatus(ctx context.Context, id, status string) (Student, error) {
	std, err := svc.repo.GetStudent(ctx, GetFilter{ID: id})
	if err != nil {
		return Student{}, err
	}
	std.PaymentStatus = status
	std.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateStudent(ctx, std)
}

// SetAttendanceCount overwrites the cached attendance counter, floored at 0.
func (svc *Service) SetAttendanceCount(ctx context.Context, id string, count int) (Student, error) {
	std, err := svc.repo.GetStudent(ctx, GetFilter{ID: id})
	if err != nil {
		return Student{}, err
	}
	if count < 0 {
		count = 0
	}
	std.AttendanceCount = count
	std.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateStudent(ctx, std)
}

// Delete removes the student record. Historical ledger rows are kept; they
// hold their own snapshot of the student's identification.
func (svc *Service) Delete(ctx context.Context, id string) (Student, error) {
	std, err := svc.repo.GetStudent(ctx, GetFilter{ID: id})
	if err != nil {
		return Student{}, err
	}
	if err := svc.repo.DeleteStudent(ctx, id); err != nil {
		return Student{}, err
	}
	return std, nil
}
