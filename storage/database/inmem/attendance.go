package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/attendance"
)

type attendanceRepository struct {
	db *attendanceTable
}

func NewAttendanceRepository(db *DB) attendance.Repository {
	return &attendanceRepository{db: db.attendance}
}

func (repo *attendanceRepository) query() []attendance.Record {
	recs := make([]attendance.Record, 0, len(repo.db.table))
	for _, rec := range repo.db.table {
		recs = append(recs, *rec)
	}
	return recs
}

func (repo *attendanceRepository) CreateRecord(ctx context.Context, rec attendance.Record) (attendance.Record, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, existing := range repo.query() {
		if existing.StudentRef == rec.StudentRef && existing.Date.Equal(rec.Date) {
			return attendance.Record{}, attendance.ErrRecordExists
		}
	}

	rec.ID = uuid.New().String()
	repo.db.table[rec.ID] = &rec
	return rec, nil
}

func (repo *attendanceRepository) GetRecord(ctx context.Context, filter attendance.GetFilter) (attendance.Record, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if filter.ID != "" {
		if rec, ok := repo.db.table[filter.ID]; ok {
			return *rec, nil
		}
		return attendance.Record{}, attendance.ErrNotFound
	}
	for _, rec := range repo.query() {
		if rec.StudentRef == filter.StudentRef && rec.Date.Equal(filter.Date) {
			return rec, nil
		}
	}
	return attendance.Record{}, attendance.ErrNotFound
}

func (repo *attendanceRepository) QueryRecords(ctx context.Context, filter *attendance.QueryFilter, ordering ...core.DBOrdering) ([]attendance.Record, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	match := func(rec attendance.Record) bool {
		if filter == nil {
			return true
		}
		if filter.StudentRef != "" && rec.StudentRef != filter.StudentRef {
			return false
		}
		if !filter.Date.IsZero() && !rec.Date.Equal(filter.Date) {
			return false
		}
		if !filter.DateFrom.IsZero() && rec.Date.Before(filter.DateFrom) {
			return false
		}
		if !filter.DateTo.IsZero() && rec.Date.After(filter.DateTo) {
			return false
		}
		return true
	}

	recs := make([]attendance.Record, 0, len(repo.db.table))
	for _, rec := range repo.query() {
		if match(rec) {
			recs = append(recs, rec)
		}
	}

	sort.SliceStable(recs, func(i, j int) bool {
		for _, ord := range ordering {
			var cmp int
			switch ord.Field {
			case "date":
				cmp = compareTimes(recs[i].Date, recs[j].Date)
			case "student_name":
				cmp = compareStrings(recs[i].StudentName, recs[j].StudentName)
			case "created_at":
				cmp = compareTimes(recs[i].CreatedAt, recs[j].CreatedAt)
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
	return recs, nil
}

func (repo *attendanceRepository) UpdateRecord(ctx context.Context, rec attendance.Record) (attendance.Record, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[rec.ID]; !ok {
		return attendance.Record{}, attendance.ErrNotFound
	}
	repo.db.table[rec.ID] = &rec
	return rec, nil
}

func (repo *attendanceRepository) DeleteRecord(ctx context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[id]; !ok {
		return attendance.ErrNotFound
	}
	delete(repo.db.table, id)
	return nil
}
