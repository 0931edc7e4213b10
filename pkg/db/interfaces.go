package db

import "context"

// DefaultPageSize is the number of missions returned per page
const DefaultPageSize = 10

// MissionQuery describes a paginated mission listing
type MissionQuery struct {
	Status        MissionStatus
	DateFrom      string
	DateTo        string
	Category      string
	DurationMax   int
	Search        string
	AssociationID string
	Page          int
	PageSize      int
}

// Normalize fills defaults: published missions, DefaultPageSize, page >= 0
func (q MissionQuery) Normalize() MissionQuery {
	if q.Status == "" {
		q.Status = MissionPublished
	}
	if q.PageSize <= 0 {
		q.PageSize = DefaultPageSize
	}
	if q.Page < 0 {
		q.Page = 0
	}
	return q
}

// Offset returns the row offset of the requested page
func (q MissionQuery) Offset() int {
	return q.Page * q.PageSize
}

// NearbyQuery describes a geospatial mission search
type NearbyQuery struct {
	Lat         float64
	Lon         float64
	DistanceKm  float64
	Category    string
	DateFrom    string
	DateTo      string
	DurationMax int
	Language    string
}

// MissionStore defines the mission read/write operations
type MissionStore interface {
	ListMissions(ctx context.Context, q MissionQuery) ([]Mission, error)
	GetMission(ctx context.Context, id string) (*Mission, error)
	SearchNearbyMissions(ctx context.Context, q NearbyQuery) ([]Mission, error)
	InsertMission(ctx context.Context, mission *Mission) error
	SetMissionStatus(ctx context.Context, id string, status MissionStatus) error
}

// RegistrationStore defines the registration transitions and listings.
// Each transition is a single backend call; the backend owns validity checks.
type RegistrationStore interface {
	RegisterForMission(ctx context.Context, missionID, userID string) (*MissionRegistration, error)
	CancelRegistration(ctx context.Context, missionID, userID, reason string) (*MissionRegistration, error)
	ConfirmVolunteer(ctx context.Context, missionID, userID string) (*MissionRegistration, error)
	CompleteMission(ctx context.Context, missionID string) ([]MissionRegistration, error)
	LeaveFeedback(ctx context.Context, missionID, userID, feedback string, rating int) (*MissionRegistration, error)
	ListMissionRegistrations(ctx context.Context, missionID string) ([]MissionRegistration, error)
	ListUserRegistrations(ctx context.Context, userID string) ([]MissionRegistration, error)
}

// ProfileStore defines profile and association operations
type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (*Profile, error)
	UpdateProfile(ctx context.Context, profile *Profile) error
	GetAssociation(ctx context.Context, id string) (*Association, error)
}

// NotificationStore defines notification reads and read-state toggles
type NotificationStore interface {
	ListNotifications(ctx context.Context, userID string) ([]Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error
	MarkAllNotificationsRead(ctx context.Context, userID string) error
}

// NotificationSubscriber delivers notification row changes for one user until ctx is done
type NotificationSubscriber interface {
	SubscribeNotifications(ctx context.Context, userID string, handle func(Notification)) error
}

// Backend defines every operation the application issues against the data backend.
// Both the PostgREST client and postgres.DB implement this interface.
type Backend interface {
	MissionStore
	RegistrationStore
	ProfileStore
	NotificationStore
	NotificationSubscriber
	Close()
}
