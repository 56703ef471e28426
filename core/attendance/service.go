package attendance

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/student"
)

var (
	// errors
	ErrNotFound     = errors.New("attendance record not found")
	ErrRecordExists = errors.New("attendance already marked for this date")
)

type (
	Repository interface {
		CreateRecord(ctx context.Context, rec Record) (Record, error)
		GetRecord(ctx context.Context, filter GetFilter) (Record, error)
		QueryRecords(ctx context.Context, filter *QueryFilter, ordering ...core.DBOrdering) ([]Record, error)
		UpdateRecord(ctx context.Context, rec Record) (Record, error)
		DeleteRecord(ctx context.Context, id string) error
	}

	Service struct {
		repo     Repository
		students *student.Service
	}
)

func NewService(repo Repository, students *student.Service) *Service {
	return &Service{repo: repo, students: students}
}

// Mark upserts the record for (student, day). The returned bool is true when
// a new record was created, false when an existing one was overwritten.
//
// On update only status/remarks/markedBy change: the cached attendance
// counter is NOT reconciled even when the status flips to or from `present`.
// Counter writes are find-then-save with no transaction around the record
// write, so a crash in between leaves the counter stale; both quirks are
// inherited behavior, kept deliberately visible here.
func (svc *Service) Mark(ctx context.Context, ma MarkAttendance, markedBy string) (Record, bool, error) {
	std, err := svc.students.GetByID(ctx, ma.StudentRef)
	if err != nil {
		return Record{}, false, err
	}

	date, err := time.Parse(core.DateFormat, ma.Date)
	if err != nil {
		return Record{}, false, core.NewValidationError(err, core.FieldError{Field: "date", Error: err.Error()})
	}
	day := core.Day(date)

	now := time.Now().UTC()

	rec, err := svc.repo.GetRecord(ctx, GetFilter{StudentRef: std.ID, Date: day})
	switch errors.Cause(err) {
	case nil:
		// update in place
		rec.Status = ma.Status
		rec.Remarks = ma.Remarks
		rec.MarkedBy = markedBy
		rec.UpdatedAt = now
		rec, err = svc.repo.UpdateRecord(ctx, rec)
		return rec, false, err
	case ErrNotFound:
	default:
		return Record{}, false, err
	}

	rec = Record{
		StudentRef:  std.ID,
		StudentID:   std.StudentID,
		StudentName: std.Name,
		Date:        day,
		Status:      ma.Status,
		Remarks:     ma.Remarks,
		MarkedBy:    markedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	rec, err = svc.repo.CreateRecord(ctx, rec)
	if err != nil {
		if errors.Cause(err) == ErrRecordExists {
			return Record{}, false, core.NewConflictError(ErrRecordExists)
		}
		return Record{}, false, err
	}

	if ma.Status == StatusPresent {
		if _, err := svc.students.SetAttendanceCount(ctx, std.ID, std.AttendanceCount+1); err != nil {
			return Record{}, false, errors.Wrap(err, "incrementing attendance count")
		}
	}
	return rec, true, nil
}

// MarkBulk marks every item for the given day with per-item isolation: one
// item's failure is captured in the result and never aborts its siblings.
func (svc *Service) MarkBulk(ctx context.Context, ba BulkAttendance, markedBy string) (BulkResult, error) {
	res := BulkResult{
		Succeeded: make([]Record, 0, len(ba.Records)),
		Failed:    make([]BulkFailure, 0),
	}
	for _, item := range ba.Records {
		ma := MarkAttendance{
			StudentRef: item.StudentRef,
			Date:       ba.Date,
			Status:     item.Status,
			Remarks:    item.Remarks,
		}
		rec, _, err := svc.Mark(ctx, ma, markedBy)
		if err != nil {
			reason := err.Error()
			if errors.Cause(err) == student.ErrNotFound {
				reason = student.ErrNotFound.Error()
			}
			res.Failed = append(res.Failed, BulkFailure{StudentRef: item.StudentRef, Reason: reason})
			continue
		}
		res.Succeeded = append(res.Succeeded, rec)
	}
	return res, nil
}

// ByDate lists the records of one calendar day, student name ascending.
func (svc *Service) ByDate(ctx context.Context, date time.Time) ([]Record, error) {
	return svc.repo.QueryRecords(ctx,
		&QueryFilter{Date: core.Day(date)},
		core.DBOrdering{Field: "student_name", Ascending: true},
	)
}

// ForStudent returns a student's full ledger, date descending, with folded
// statistics. A student with no records gets all-zero statistics.
func (svc *Service) ForStudent(ctx context.Context, studentRef string) (StudentAttendance, error) {
	recs, err := svc.repo.QueryRecords(ctx,
		&QueryFilter{StudentRef: studentRef},
		core.DBOrdering{Field: "date"},
	)
	if err != nil {
		return StudentAttendance{}, err
	}
	return StudentAttendance{Statistics: foldStatistics(recs), Records: recs}, nil
}

// Report folds all records with date in [start, end] (inclusive) into
// per-student totals, ordered date descending then student name ascending.
func (svc *Service) Report(ctx context.Context, start, end time.Time) (Report, error) {
	recs, err := svc.repo.QueryRecords(ctx,
		&QueryFilter{DateFrom: core.Day(start), DateTo: core.Day(end)},
		core.DBOrdering{Field: "date"},
		core.DBOrdering{Field: "student_name", Ascending: true},
	)
	if err != nil {
		return Report{}, err
	}

	byRef := make(map[string]*ReportEntry)
	order := make([]string, 0)
	for _, rec := range recs {
		entry, ok := byRef[rec.StudentRef]
		if !ok {
			entry = &ReportEntry{StudentID: rec.StudentID, StudentName: rec.StudentName}
			byRef[rec.StudentRef] = entry
			order = append(order, rec.StudentRef)
		}
		entry.Total++
		switch rec.Status {
		case StatusPresent:
			entry.Present++
		case StatusAbsent:
			entry.Absent++
		case StatusLate:
			entry.Late++
		}
	}

	stats := make([]ReportEntry, 0, len(order))
	for _, ref := range order {
		entry := byRef[ref]
		if entry.Total > 0 {
			entry.PresentPercentage = core.Round2(float64(entry.Present) / float64(entry.Total) * 100)
		}
		stats = append(stats, *entry)
	}

	return Report{
		StartDate:    core.Day(start),
		EndDate:      core.Day(end),
		TotalRecords: len(recs),
		StudentStats: stats,
		Records:      recs,
	}, nil
}

// Delete removes a record; when the record was `present`, the owning
// student's cached counter is decremented, floored at 0. A student that was
// deleted in the meantime is not an error: the ledger row still goes away.
func (svc *Service) Delete(ctx context.Context, id string) error {
	rec, err := svc.repo.GetRecord(ctx, GetFilter{ID: id})
	if err != nil {
		return err
	}

	if rec.Status == StatusPresent {
		std, err := svc.students.GetByID(ctx, rec.StudentRef)
		switch errors.Cause(err) {
		case nil:
			if std.AttendanceCount > 0 {
				if _, err := svc.students.SetAttendanceCount(ctx, std.ID, std.AttendanceCount-1); err != nil {
					return errors.Wrap(err, "decrementing attendance count")
				}
			}
		case student.ErrNotFound:
		default:
			return err
		}
	}

	return svc.repo.DeleteRecord(ctx, id)
}

func foldStatistics(recs []Record) Statistics {
	var stats Statistics
	stats.TotalDays = len(recs)
	for _, rec := range recs {
		switch rec.Status {
		case StatusPresent:
			stats.PresentDays++
		case StatusAbsent:
			stats.AbsentDays++
		case StatusLate:
			stats.LateDays++
		}
	}
	// 0, not NaN, on an empty ledger
	if stats.TotalDays > 0 {
		stats.PresentPercentage = core.Round2(float64(stats.PresentDays) / float64(stats.TotalDays) * 100)
	}
	return stats
}
