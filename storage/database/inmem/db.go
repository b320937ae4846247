package inmemdb

import (
	"sync"

	"github.com/trezcool/shule/core/announcement"
	"github.com/trezcool/shule/core/attendance"
	"github.com/trezcool/shule/core/user"
	"github.com/trezcool/shule/core/workshop"
)

type (
	userTable struct {
		mutex sync.RWMutex
		table map[string]*user.User
	}

	// one Entry per (date, context) composite key; batch writes hold the
	// table lock for the whole check-then-write.
	attendanceTable struct {
		mutex sync.RWMutex
		table map[string]*attendance.Entry
	}

	workshopTable struct {
		mutex sync.RWMutex
		table map[string]*workshop.Workshop
	}

	announcementTable struct {
		mutex sync.RWMutex
		table map[string]*announcement.Announcement
	}

	DB struct {
		user         *userTable
		attendance   *attendanceTable
		workshop     *workshopTable
		announcement *announcementTable
	}
)

func Open() (*DB, error) {
	db := &DB{
		user:         &userTable{table: make(map[string]*user.User)},
		attendance:   &attendanceTable{table: make(map[string]*attendance.Entry)},
		workshop:     &workshopTable{table: make(map[string]*workshop.Workshop)},
		announcement: &announcementTable{table: make(map[string]*announcement.Announcement)},
	}
	return db, nil
}
