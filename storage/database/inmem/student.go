package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/student"
)

type studentRepository struct {
	db *studentTable
}

func NewStudentRepository(db *DB) student.Repository {
	return &studentRepository{db: db.student}
}

func (repo *studentRepository) query() []student.Student {
	students := make([]student.Student, 0, len(repo.db.table))
	for _, std := range repo.db.table {
		students = append(students, *std)
	}
	return students
}

func (repo *studentRepository) CheckStudentIDUniqueness(ctx context.Context, studentID string, excluded ...student.Student) error {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, std := range repo.query() {
		if std.StudentID != studentID {
			continue
		}
		isExcluded := false
		for _, excl := range excluded {
			if excl.ID == std.ID {
				isExcluded = true
				break
			}
		}
		if !isExcluded {
			return student.ErrStudentIDExists
		}
	}
	return nil
}

func (repo *studentRepository) CreateStudent(ctx context.Context, std student.Student) (student.Student, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	std.ID = uuid.New().String()
	repo.db.table[std.ID] = &std
	return std, nil
}

func (repo *studentRepository) QueryStudents(ctx context.Context, filter *student.QueryFilter, ordering ...core.DBOrdering) ([]student.Student, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	match := func(std student.Student) bool {
		if filter == nil {
			return true
		}
		if filter.Search != "" {
			key := strings.ToLower(filter.Search)
			if !(strings.Contains(strings.ToLower(std.Name), key) ||
				strings.Contains(strings.ToLower(std.StudentID), key) ||
				strings.Contains(strings.ToLower(std.Phone), key) ||
				strings.Contains(strings.ToLower(std.Address), key)) {
				return false
			}
		}
		if filter.PaymentStatus != "" && std.PaymentStatus != filter.PaymentStatus {
			return false
		}
		return true
	}

	students := make([]student.Student, 0, len(repo.db.table))
	for _, std := range repo.query() {
		if match(std) {
			students = append(students, std)
		}
	}

	sort.SliceStable(students, func(i, j int) bool {
		for _, ord := range ordering {
			var cmp int
			switch ord.Field {
			case "name":
				cmp = compareStrings(students[i].Name, students[j].Name)
			case "student_id":
				cmp = compareStrings(students[i].StudentID, students[j].StudentID)
			case "created_at":
				cmp = compareTimes(students[i].CreatedAt, students[j].CreatedAt)
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
	return students, nil
}

func (repo *studentRepository) GetStudent(ctx context.Context, filter student.GetFilter) (student.Student, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if filter.ID != "" {
		if std, ok := repo.db.table[filter.ID]; ok {
			return *std, nil
		}
		return student.Student{}, student.ErrNotFound
	}
	for _, std := range repo.query() {
		if std.StudentID == filter.StudentID {
			return std, nil
		}
	}
	return student.Student{}, student.ErrNotFound
}

func (repo *studentRepository) UpdateStudent(ctx context.Context, std student.Student) (student.Student, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[std.ID]; !ok {
		return student.Student{}, student.ErrNotFound
	}
	repo.db.table[std.ID] = &std
	return std, nil
}

func (repo *studentRepository) DeleteStudent(ctx context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[id]; !ok {
		return student.ErrNotFound
	}
	delete(repo.db.table, id)
	return nil
}
