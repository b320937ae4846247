package announcement

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// errors
	ErrNotFound = errors.New("announcement not found")
)

type (
	Repository interface {
		CreateAnnouncement(ctx context.Context, ann Announcement) (Announcement, error)
		GetAnnouncementByID(ctx context.Context, id string) (Announcement, error)
		// QueryAnnouncementsByAudience returns announcements whose audience
		// is one of the provided buckets, most recent first.
		QueryAnnouncementsByAudience(ctx context.Context, audiences ...string) ([]Announcement, error)
		QueryAllAnnouncements(ctx context.Context) ([]Announcement, error)
		UpdateAnnouncement(ctx context.Context, ann Announcement) (Announcement, error)
		DeleteAnnouncementsByID(ctx context.Context, ids ...string) error
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) Create(ctx context.Context, na NewAnnouncement) (Announcement, error) {
	active := true
	ann := Announcement{
		ID:             uuid.New().String(),
		Title:          na.Title,
		Message:        na.Message,
		Type:           na.Type,
		TargetAudience: na.TargetAudience,
		Active:         &active,
		CreatedAt:      time.Now().UTC(),
	}
	return svc.repo.CreateAnnouncement(ctx, ann)
}

// RelevantFor returns the active announcements visible to a role, most
// recent first: the role's own bucket plus the shared "all" bucket.
func (svc *Service) RelevantFor(ctx context.Context, role string) ([]Announcement, error) {
	anns, err := svc.repo.QueryAnnouncementsByAudience(ctx, AudienceAll, AudienceFor(role))
	if err != nil {
		return nil, err
	}
	relevant := make([]Announcement, 0, len(anns))
	for _, a := range anns {
		if a.IsActive() {
			relevant = append(relevant, a)
		}
	}
	return relevant, nil
}

// UnreadCount equals the number of relevant active announcements; no
// per-user read state is tracked.
func (svc *Service) UnreadCount(ctx context.Context, role string) (int, error) {
	anns, err := svc.RelevantFor(ctx, role)
	if err != nil {
		return 0, err
	}
	return len(anns), nil
}

func (svc *Service) QueryAll(ctx context.Context) ([]Announcement, error) {
	return svc.repo.QueryAllAnnouncements(ctx)
}

func (svc *Service) Deactivate(ctx context.Context, id string) (Announcement, error) {
	ann, err := svc.repo.GetAnnouncementByID(ctx, id)
	if err != nil {
		return Announcement{}, err
	}
	active := false
	ann.Active = &active
	return svc.repo.UpdateAnnouncement(ctx, ann)
}

func (svc *Service) Delete(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteAnnouncementsByID(ctx, ids...)
}
