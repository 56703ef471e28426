package database

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/student"
)

type studentRow struct {
	ID              string      `db:"id"`
	StudentID       string      `db:"student_id"`
	Name            string      `db:"name"`
	Address         null.String `db:"address"`
	Phone           null.String `db:"phone_no"`
	DateOfBirth     time.Time   `db:"date_of_birth"`
	Gender          string      `db:"gender"`
	Email           null.String `db:"email"`
	AttendanceCount int         `db:"attendance_count"`
	PaymentStatus   string      `db:"payment_status"`
	CreatedAt       time.Time   `db:"created_at"`
	UpdatedAt       time.Time   `db:"updated_at"`
}

func newStudentRow(std student.Student) studentRow {
	return studentRow{
		ID:              std.ID,
		StudentID:       std.StudentID,
		Name:            std.Name,
		Address:         null.NewString(std.Address, std.Address != ""),
		Phone:           null.NewString(std.Phone, std.Phone != ""),
		DateOfBirth:     std.DateOfBirth.UTC(),
		Gender:          std.Gender,
		Email:           null.NewString(std.Email, std.Email != ""),
		AttendanceCount: std.AttendanceCount,
		PaymentStatus:   std.PaymentStatus,
		CreatedAt:       std.CreatedAt.UTC(),
		UpdatedAt:       std.UpdatedAt.UTC(),
	}
}

func (r studentRow) domain() student.Student {
	return student.Student{
		ID:              r.ID,
		StudentID:       r.StudentID,
		Name:            r.Name,
		Address:         r.Address.String,
		Phone:           r.Phone.String,
		DateOfBirth:     r.DateOfBirth,
		Gender:          r.Gender,
		Email:           r.Email.String,
		AttendanceCount: r.AttendanceCount,
		PaymentStatus:   r.PaymentStatus,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

type studentRepository struct {
	db *sqlx.DB
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *sqlx.DB) *studentRepository {
	return &studentRepository{db: db}
}

func (repo studentRepository) CheckStudentIDUniqueness(ctx context.Context, studentID string, excluded ...student.Student) error {
	query := `SELECT EXISTS (SELECT 1 FROM student WHERE student_id = ?`
	args := []interface{}{studentID}
	if len(excluded) > 0 {
		ids := make([]string, 0, len(excluded))
		for _, std := range excluded {
			ids = append(ids, std.ID)
		}
		q, inArgs, err := sqlx.In(` AND id NOT IN (?)`, ids)
		if err != nil {
			return errors.Wrap(err, "checking student ID uniqueness")
		}
		query += q
		args = append(args, inArgs...)
	}
	query += `)`

	var exists bool
	if err := repo.db.GetContext(ctx, &exists, repo.db.Rebind(query), args...); err != nil {
		return errors.Wrap(err, "checking student ID uniqueness")
	}
	if exists {
		return student.ErrStudentIDExists
	}
	return nil
}

func (repo studentRepository) CreateStudent(ctx context.Context, std student.Student) (student.Student, error) {
	std.ID = uuid.New().String()
	row := newStudentRow(std)
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO student (id, student_id, name, address, phone_no, date_of_birth, gender, email, attendance_count, payment_status, created_at, updated_at)
		VALUES (:id, :student_id, :name, :address, :phone_no, :date_of_birth, :gender, :email, :attendance_count, :payment_status, :created_at, :updated_at)`,
		row,
	)
	if err != nil {
		if isUniqueViolation(err, "student_student_id_key") {
			return student.Student{}, student.ErrStudentIDExists
		}
		return student.Student{}, errors.Wrap(err, "inserting student")
	}
	return row.domain(), nil
}

func (repo studentRepository) QueryStudents(ctx context.Context, filter *student.QueryFilter, ordering ...core.DBOrdering) ([]student.Student, error) {
	query := `SELECT * FROM student`
	var conds []string
	var args []interface{}

	if filter != nil {
		// students with Name, StudentID, Phone or Address matching the search keyword
		if filter.Search != "" {
			val := "%" + filter.Search + "%"
			conds = append(conds, `(name ILIKE ? OR student_id ILIKE ? OR phone_no ILIKE ? OR address ILIKE ?)`)
			args = append(args, val, val, val, val)
		}
		if filter.PaymentStatus != "" {
			conds = append(conds, `payment_status = ?`)
			args = append(args, filter.PaymentStatus)
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

	var rows []studentRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "querying students")
	}

	students := make([]student.Student, 0, len(rows))
	for _, row := range rows {
		students = append(students, row.domain())
	}
	return students, nil
}

func (repo studentRepository) GetStudent(ctx context.Context, filter student.GetFilter) (student.Student, error) {
	var row studentRow

	if filter.ID != "" {
		if _, err := uuid.Parse(filter.ID); err != nil {
			return student.Student{}, student.ErrNotFound
		}
		if err := repo.db.GetContext(ctx, &row, `SELECT * FROM student WHERE id = $1`, filter.ID); err != nil {
			return student.Student{}, trapNoRowsErr(err, student.ErrNotFound, "finding student by ID")
		}
	} else {
		if err := repo.db.GetContext(ctx, &row, `SELECT * FROM student WHERE student_id = $1`, filter.StudentID); err != nil {
			return student.Student{}, trapNoRowsErr(err, student.ErrNotFound, "finding student")
		}
	}
	return row.domain(), nil
}

func (repo studentRepository) UpdateStudent(ctx context.Context, std student.Student) (student.Student, error) {
	row := newStudentRow(std)
	res, err := repo.db.NamedExecContext(ctx, `
		UPDATE student
		SET student_id = :student_id, name = :name, address = :address, phone_no = :phone_no,
			date_of_birth = :date_of_birth, gender = :gender, email = :email,
			attendance_count = :attendance_count, payment_status = :payment_status, updated_at = :updated_at
		WHERE id = :id`,
		row,
	)
	if err != nil {
		return student.Student{}, errors.Wrap(err, "updating student")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return student.Student{}, student.ErrNotFound
	}
	return row.domain(), nil
}

func (repo studentRepository) DeleteStudent(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM student WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting student")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return student.ErrNotFound
	}
	return nil
}

// trapNoRowsErr maps psql "no rows" err to the domain's not found err
func trapNoRowsErr(err, notFound error, msg string) error {
	if err == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}
