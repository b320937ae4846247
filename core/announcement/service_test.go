package announcement_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/shule/core/announcement"
	"github.com/trezcool/shule/core/user"
	inmemdb "github.com/trezcool/shule/storage/database/inmem"
)

func setup(t *testing.T) *announcement.Service {
	t.Helper()

	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("inmemdb.Open() failed: %v", err)
	}
	return announcement.NewService(inmemdb.NewAnnouncementRepository(db))
}

func create(t *testing.T, svc *announcement.Service, title, audience string) announcement.Announcement {
	t.Helper()

	ann, err := svc.Create(context.Background(), announcement.NewAnnouncement{
		Title:          title,
		Message:        "msg",
		TargetAudience: audience,
	})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	return ann
}

func titles(anns []announcement.Announcement) []string {
	out := make([]string, 0, len(anns))
	for _, a := range anns {
		out = append(out, a.Title)
	}
	return out
}

func TestAudienceFor(t *testing.T) {
	assert.Equal(t, announcement.AudienceStudents, announcement.AudienceFor(user.RoleStudent))
	assert.Equal(t, announcement.AudienceParents, announcement.AudienceFor(user.RoleParent))
	assert.Equal(t, announcement.AudienceTeachers, announcement.AudienceFor(user.RoleTeacher))
	// admins read the teachers bucket
	assert.Equal(t, announcement.AudienceTeachers, announcement.AudienceFor(user.RoleAdmin))
}

func TestService_RelevantFor(t *testing.T) {
	svc := setup(t)
	ctx := context.Background()

	create(t, svc, "for everyone", announcement.AudienceAll)
	create(t, svc, "for students", announcement.AudienceStudents)
	create(t, svc, "for parents", announcement.AudienceParents)
	create(t, svc, "for teachers", announcement.AudienceTeachers)

	tests := []struct {
		role string
		want []string
	}{
		{role: user.RoleStudent, want: []string{"for everyone", "for students"}},
		{role: user.RoleParent, want: []string{"for everyone", "for parents"}},
		{role: user.RoleTeacher, want: []string{"for everyone", "for teachers"}},
		{role: user.RoleAdmin, want: []string{"for everyone", "for teachers"}},
	}
	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			anns, err := svc.RelevantFor(ctx, tt.role)
			assert.NoError(t, err)
			assert.ElementsMatch(t, tt.want, titles(anns))
		})
	}
}

func TestService_Deactivate(t *testing.T) {
	svc := setup(t)
	ctx := context.Background()

	keep := create(t, svc, "keep", announcement.AudienceAll)
	drop := create(t, svc, "drop", announcement.AudienceAll)

	_, err := svc.Deactivate(ctx, drop.ID)
	assert.NoError(t, err)

	// deactivated announcements disappear from every feed but stay stored
	anns, err := svc.RelevantFor(ctx, user.RoleStudent)
	assert.NoError(t, err)
	assert.Equal(t, []string{keep.Title}, titles(anns))

	all, err := svc.QueryAll(ctx)
	assert.NoError(t, err)
	assert.Len(t, all, 2)

	count, err := svc.UnreadCount(ctx, user.RoleStudent)
	assert.NoError(t, err)
	assert.Equal(t, 1, count)

	_, err = svc.Deactivate(ctx, "nope")
	assert.Equal(t, announcement.ErrNotFound, err)
}

func TestService_Delete(t *testing.T) {
	svc := setup(t)
	ctx := context.Background()

	a1 := create(t, svc, "one", announcement.AudienceAll)
	a2 := create(t, svc, "two", announcement.AudienceAll)

	assert.NoError(t, svc.Delete(ctx, a1.ID, a2.ID))

	all, err := svc.QueryAll(ctx)
	assert.NoError(t, err)
	assert.Empty(t, all)
}
