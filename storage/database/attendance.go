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
	"github.com/trezcool/shule/core/attendance"
)

type attendanceRow struct {
	ID          string      `db:"id"`
	StudentRef  string      `db:"student_ref"`
	StudentID   string      `db:"student_id"`
	StudentName string      `db:"student_name"`
	Date        time.Time   `db:"date"`
	Status      string      `db:"status"`
	Remarks     null.String `db:"remarks"`
	MarkedBy    null.String `db:"marked_by"`
	CreatedAt   time.Time   `db:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at"`
}

func newAttendanceRow(rec attendance.Record) attendanceRow {
	return attendanceRow{
		ID:          rec.ID,
		StudentRef:  rec.StudentRef,
		StudentID:   rec.StudentID,
		StudentName: rec.StudentName,
		Date:        rec.Date.UTC(),
		Status:      rec.Status,
		Remarks:     null.NewString(rec.Remarks, rec.Remarks != ""),
		MarkedBy:    null.NewString(rec.MarkedBy, rec.MarkedBy != ""),
		CreatedAt:   rec.CreatedAt.UTC(),
		UpdatedAt:   rec.UpdatedAt.UTC(),
	}
}

func (r attendanceRow) domain() attendance.Record {
	return attendance.Record{
		ID:          r.ID,
		StudentRef:  r.StudentRef,
		StudentID:   r.StudentID,
		StudentName: r.StudentName,
		Date:        r.Date,
		Status:      r.Status,
		Remarks:     r.Remarks.String,
		MarkedBy:    r.MarkedBy.String,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

type attendanceRepository struct {
	db *sqlx.DB
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(db *sqlx.DB) *attendanceRepository {
	return &attendanceRepository{db: db}
}

func (repo attendanceRepository) CreateRecord(ctx context.Context, rec attendance.Record) (attendance.Record, error) {
	rec.ID = uuid.New().String()
	row := newAttendanceRow(rec)
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO attendance_record (id, student_ref, student_id, student_name, date, status, remarks, marked_by, created_at, updated_at)
		VALUES (:id, :student_ref, :student_id, :student_name, :date, :status, :remarks, :marked_by, :created_at, :updated_at)`,
		row,
	)
	if err != nil {
		if isUniqueViolation(err, "attendance_record_student_ref_date_key") {
			return attendance.Record{}, attendance.ErrRecordExists
		}
		return attendance.Record{}, errors.Wrap(err, "inserting attendance record")
	}
	return row.domain(), nil
}

func (repo attendanceRepository) GetRecord(ctx context.Context, filter attendance.GetFilter) (attendance.Record, error) {
	var row attendanceRow

	if filter.ID != "" {
		if _, err := uuid.Parse(filter.ID); err != nil {
			return attendance.Record{}, attendance.ErrNotFound
		}
		if err := repo.db.GetContext(ctx, &row, `SELECT * FROM attendance_record WHERE id = $1`, filter.ID); err != nil {
			return attendance.Record{}, trapNoRowsErr(err, attendance.ErrNotFound, "finding attendance record by ID")
		}
	} else {
		err := repo.db.GetContext(ctx, &row,
			`SELECT * FROM attendance_record WHERE student_ref = $1 AND date = $2`,
			filter.StudentRef, filter.Date.UTC(),
		)
		if err != nil {
			return attendance.Record{}, trapNoRowsErr(err, attendance.ErrNotFound, "finding attendance record")
		}
	}
	return row.domain(), nil
}

func (repo attendanceRepository) QueryRecords(ctx context.Context, filter *attendance.QueryFilter, ordering ...core.DBOrdering) ([]attendance.Record, error) {
	query := `SELECT * FROM attendance_record`
	var conds []string
	var args []interface{}

	if filter != nil {
		if filter.StudentRef != "" {
			conds = append(conds, `student_ref = ?`)
			args = append(args, filter.StudentRef)
		}
		if !filter.Date.IsZero() {
			conds = append(conds, `date = ?`)
			args = append(args, filter.Date.UTC())
		}
		if !filter.DateFrom.IsZero() {
			conds = append(conds, `date >= ?`)
			args = append(args, filter.DateFrom.UTC())
		}
		if !filter.DateTo.IsZero() {
			conds = append(conds, `date <= ?`)
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

	var rows []attendanceRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "querying attendance records")
	}

	recs := make([]attendance.Record, 0, len(rows))
	for _, row := range rows {
		recs = append(recs, row.domain())
	}
	return recs, nil
}

func (repo attendanceRepository) UpdateRecord(ctx context.Context, rec attendance.Record) (attendance.Record, error) {
	row := newAttendanceRow(rec)
	res, err := repo.db.NamedExecContext(ctx, `
		UPDATE attendance_record
		SET status = :status, remarks = :remarks, marked_by = :marked_by, updated_at = :updated_at
		WHERE id = :id`,
		row,
	)
	if err != nil {
		return attendance.Record{}, errors.Wrap(err, "updating attendance record")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return attendance.Record{}, attendance.ErrNotFound
	}
	return row.domain(), nil
}

func (repo attendanceRepository) DeleteRecord(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM attendance_record WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting attendance record")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return attendance.ErrNotFound
	}
	return nil
}
