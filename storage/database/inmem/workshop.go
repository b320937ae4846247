package inmemdb

import (
	"context"
	"strings"

	"github.com/trezcool/shule/core/workshop"
)

type workshopRepository struct {
	db *workshopTable
}

var _ workshop.Repository = (*workshopRepository)(nil)

func NewWorkshopRepository(db *DB) workshop.Repository {
	return &workshopRepository{db: db.workshop}
}

func (repo *workshopRepository) query() []workshop.Workshop {
	workshops := make([]workshop.Workshop, 0, len(repo.db.table))
	for _, ws := range repo.db.table {
		workshops = append(workshops, *ws)
	}
	return workshops
}

func (repo *workshopRepository) CreateWorkshop(_ context.Context, ws workshop.Workshop) (workshop.Workshop, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.table[ws.ID] = &ws
	return ws, nil
}

func (repo *workshopRepository) GetWorkshopByID(_ context.Context, id string) (workshop.Workshop, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if id != "" {
		if ws, ok := repo.db.table[id]; ok {
			return *ws, nil
		}
	}
	return workshop.Workshop{}, workshop.ErrNotFound
}

func (repo *workshopRepository) QueryAllWorkshops(_ context.Context) ([]workshop.Workshop, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.query(), nil
}

func (repo *workshopRepository) FilterWorkshops(_ context.Context, filter workshop.QueryFilter) ([]workshop.Workshop, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	workshops := make([]workshop.Workshop, 0)
	for _, ws := range repo.query() {
		if filter.Search != "" && !strings.Contains(strings.ToLower(ws.Title), strings.ToLower(filter.Search)) {
			continue
		}
		if filter.TeacherID != "" && ws.TeacherID != filter.TeacherID {
			continue
		}
		if filter.Status != "" && ws.Status != filter.Status {
			continue
		}
		workshops = append(workshops, ws)
	}
	return workshops, nil
}

func (repo *workshopRepository) UpdateWorkshop(_ context.Context, ws workshop.Workshop) (workshop.Workshop, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	origWs, ok := repo.db.table[ws.ID]
	if !ok {
		return workshop.Workshop{}, workshop.ErrNotFound
	}
	// the roster is only mutated via EnrollStudent/UnenrollStudent
	ws.Participants = origWs.Participants
	repo.db.table[ws.ID] = &ws
	return ws, nil
}

func (repo *workshopRepository) DeleteWorkshopsByID(_ context.Context, ids ...string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	for _, id := range ids {
		delete(repo.db.table, id)
	}
	return nil
}

// EnrollStudent holds the table lock for the whole check-then-append so the
// capacity invariant holds under concurrent enrollments.
func (repo *workshopRepository) EnrollStudent(_ context.Context, workshopID, studentID string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	ws, ok := repo.db.table[workshopID]
	if !ok {
		return workshop.ErrNotFound
	}
	if ws.HasParticipant(studentID) {
		return workshop.ErrAlreadyEnrolled
	}
	if ws.IsFull() {
		return workshop.ErrCapacityExceeded
	}
	ws.Participants = append(ws.Participants, studentID)
	return nil
}

func (repo *workshopRepository) UnenrollStudent(_ context.Context, workshopID, studentID string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	ws, ok := repo.db.table[workshopID]
	if !ok {
		return workshop.ErrNotFound
	}
	if !ws.HasParticipant(studentID) {
		return workshop.ErrNotEnrolled
	}
	participants := make([]string, 0, len(ws.Participants)-1)
	for _, id := range ws.Participants {
		if id != studentID {
			participants = append(participants, id)
		}
	}
	ws.Participants = participants
	return nil
}
