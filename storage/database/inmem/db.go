package inmemdb

import (
	"sync"
	"time"

	"github.com/trezcool/shule/core/attendance"
	"github.com/trezcool/shule/core/payment"
	"github.com/trezcool/shule/core/student"
	"github.com/trezcool/shule/core/user"
)

type (
	DB struct {
		student    *studentTable
		attendance *attendanceTable
		payment    *paymentTable
		user       *userTable
	}

	studentTable struct {
		sync.RWMutex
		table map[string]*student.Student
	}

	attendanceTable struct {
		sync.RWMutex
		table map[string]*attendance.Record
	}

	paymentTable struct {
		sync.RWMutex
		table map[string]*payment.Payment
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}
)

func Open() (*DB, error) {
	db := &DB{
		student:    &studentTable{table: make(map[string]*student.Student)},
		attendance: &attendanceTable{table: make(map[string]*attendance.Record)},
		payment:    &paymentTable{table: make(map[string]*payment.Payment)},
		user:       &userTable{table: make(map[string]*user.User)},
	}
	return db, nil
}

func compareTimes(t1, t2 time.Time) int {
	switch {
	case t1.Before(t2):
		return -1
	case t1.After(t2):
		return 1
	}
	return 0
}

func compareStrings(s1, s2 string) int {
	switch {
	case s1 < s2:
		return -1
	case s1 > s2:
		return 1
	}
	return 0
}
