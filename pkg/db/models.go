package db

import (
	"fmt"
	"time"
)

// Date and time layouts used by the backend columns
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// MissionStatus is the publication state of a mission
type MissionStatus string

const (
	MissionDraft     MissionStatus = "draft"
	MissionPublished MissionStatus = "published"
	MissionCompleted MissionStatus = "completed"
	MissionCancelled MissionStatus = "cancelled"
)

// RegistrationStatus is the state of a volunteer's registration to a mission
type RegistrationStatus string

const (
	RegistrationPending   RegistrationStatus = "pending"
	RegistrationConfirmed RegistrationStatus = "confirmed"
	RegistrationCompleted RegistrationStatus = "completed"
	RegistrationCancelled RegistrationStatus = "cancelled"
)

// Roles carried in the session's user metadata
const (
	RoleVolunteer   = "benevole"
	RoleAssociation = "association"
)

// AssociationSummary is the public part of an association embedded in mission rows
type AssociationSummary struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Verified bool   `json:"verified"`
	LogoURL  string `json:"logo_url,omitempty"`
}

// Mission represents a micro-volunteering mission posted by an association
type Mission struct {
	ID                string        `json:"id"`
	AssociationID     string        `json:"association_id" validate:"required"`
	Title             string        `json:"title" validate:"required,max=120"`
	Description       string        `json:"description" validate:"required"`
	ShortDescription  string        `json:"short_description,omitempty" validate:"max=280"`
	Category          string        `json:"category" validate:"required"`
	Date              string        `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime         string        `json:"start_time" validate:"required,datetime=15:04"`
	EndTime           string        `json:"end_time,omitempty" validate:"omitempty,datetime=15:04"`
	Duration          int           `json:"duration" validate:"required,min=1"`
	SpotsAvailable    int           `json:"spots_available" validate:"required,min=1"`
	SpotsTaken        int           `json:"spots_taken" validate:"min=0,ltefield=SpotsAvailable"`
	Address           string        `json:"address,omitempty"`
	City              string        `json:"city,omitempty"`
	PostalCode        string        `json:"postal_code,omitempty"`
	Latitude          *float64      `json:"latitude,omitempty" validate:"omitempty,latitude"`
	Longitude         *float64      `json:"longitude,omitempty" validate:"omitempty,longitude"`
	Status            MissionStatus `json:"status" validate:"required,oneof=draft published completed cancelled"`
	Requirements      string        `json:"requirements,omitempty"`
	SkillsNeeded      []string      `json:"skills_needed,omitempty"`
	LanguagesNeeded   []string      `json:"languages_needed,omitempty"`
	MaterialsProvided []string      `json:"materials_provided,omitempty"`
	MaterialsToBring  []string      `json:"materials_to_bring,omitempty"`

	// Association is the embedded public association record (nil when not joined)
	Association *AssociationSummary `json:"association,omitempty"`

	// Distance in km from the viewer, derived client-side (nil when unknown)
	Distance *float64 `json:"distance,omitempty"`
}

// AssociationName returns the name of the posting association, or "" if not loaded
func (m *Mission) AssociationName() string {
	if m.Association == nil {
		return ""
	}
	return m.Association.Name
}

// SpotsLeft returns the number of open spots (never negative)
func (m *Mission) SpotsLeft() int {
	if m.SpotsTaken >= m.SpotsAvailable {
		return 0
	}
	return m.SpotsAvailable - m.SpotsTaken
}

// IsFull reports whether every spot has been taken
func (m *Mission) IsFull() bool {
	return m.SpotsTaken >= m.SpotsAvailable
}

// StartsAt combines Date and StartTime in the given location
func (m *Mission) StartsAt(loc *time.Location) (time.Time, error) {
	return combine(m.Date, m.StartTime, loc)
}

// EndsAt combines Date and EndTime in the given location.
// Missions without an end time end Duration minutes after they start.
func (m *Mission) EndsAt(loc *time.Location) (time.Time, error) {
	if m.EndTime == "" {
		start, err := m.StartsAt(loc)
		if err != nil {
			return time.Time{}, err
		}
		return start.Add(time.Duration(m.Duration) * time.Minute), nil
	}
	return combine(m.Date, m.EndTime, loc)
}

func combine(date, clock string, loc *time.Location) (time.Time, error) {
	if clock == "" {
		clock = "00:00"
	}
	// Postgres TIME columns come back as HH:MM:SS
	if len(clock) > len(TimeLayout) {
		clock = clock[:len(TimeLayout)]
	}
	t, err := time.ParseInLocation(DateLayout+" "+TimeLayout, date+" "+clock, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid mission schedule %q %q: %w", date, clock, err)
	}
	return t, nil
}

// MissionRegistration links a volunteer to a mission
type MissionRegistration struct {
	ID               string             `json:"id"`
	MissionID        string             `json:"mission_id"`
	UserID           string             `json:"user_id"`
	Status           RegistrationStatus `json:"status"`
	RegistrationDate time.Time          `json:"registration_date"`
	ConfirmationDate *time.Time         `json:"confirmation_date,omitempty"`
	CompletionDate   *time.Time         `json:"completion_date,omitempty"`
	CancellationDate *time.Time         `json:"cancellation_date,omitempty"`
	CancelReason     string             `json:"cancellation_reason,omitempty"`
	Feedback         string             `json:"feedback,omitempty"`
	Rating           *int               `json:"rating,omitempty"`
}

// AvailabilitySlot is one day/time-slot a volunteer declared as free
type AvailabilitySlot struct {
	Day  string `json:"day" validate:"required,oneof=monday tuesday wednesday thursday friday saturday sunday"`
	Slot string `json:"slot" validate:"required,oneof=morning afternoon evening"`
}

// Profile represents a volunteer profile
type Profile struct {
	ID                    string             `json:"id"`
	FirstName             string             `json:"first_name" validate:"required"`
	LastName              string             `json:"last_name" validate:"required"`
	Email                 string             `json:"email" validate:"required,email"`
	Address               string             `json:"address,omitempty"`
	City                  string             `json:"city,omitempty"`
	PostalCode            string             `json:"postal_code,omitempty" validate:"omitempty,numeric,len=5"`
	Latitude              *float64           `json:"latitude,omitempty" validate:"omitempty,latitude"`
	Longitude             *float64           `json:"longitude,omitempty" validate:"omitempty,longitude"`
	MaxDistance           int                `json:"max_distance" validate:"min=0"`
	Availability          []AvailabilitySlot `json:"availability,omitempty" validate:"dive"`
	Interests             []string           `json:"interests,omitempty"`
	Skills                []string           `json:"skills,omitempty"`
	Languages             []string           `json:"languages,omitempty"`
	ImpactScore           int                `json:"impact_score"`
	TotalMissionsComplete int                `json:"total_missions_completed"`
	TotalHoursVolunteered float64            `json:"total_hours_volunteered"`
}

// DisplayName returns "First Last"
func (p *Profile) DisplayName() string {
	return p.FirstName + " " + p.LastName
}

// NotificationPreferences controls how an association is notified
type NotificationPreferences struct {
	Email           bool `json:"email"`
	NewRegistration bool `json:"new_registration"`
	Cancellation    bool `json:"cancellation"`
}

// Association represents an association account
type Association struct {
	ID                     string                  `json:"id"`
	Name                   string                  `json:"name"`
	Categories             []string                `json:"categories,omitempty"`
	Verified               bool                    `json:"verified"`
	ImpactScore            int                     `json:"impact_score"`
	TotalMissionsCreated   int                     `json:"total_missions_created"`
	TotalVolunteersEngaged int                     `json:"total_volunteers_engaged"`
	NotificationPrefs      NotificationPreferences `json:"notification_preferences"`
}

// Notification is a message addressed to a single user
type Notification struct {
	ID                string    `json:"id"`
	UserID            string    `json:"user_id"`
	Title             string    `json:"title"`
	Message           string    `json:"message"`
	Type              string    `json:"type"`
	RelatedEntityType string    `json:"related_entity_type,omitempty"`
	RelatedEntityID   string    `json:"related_entity_id,omitempty"`
	IsRead            bool      `json:"is_read"`
	CreatedAt         time.Time `json:"created_at"`
}

// Notification types emitted by the backend
const (
	NotificationRegistration = "registration"
	NotificationConfirmation = "confirmation"
	NotificationCancellation = "cancellation"
	NotificationCompletion   = "completion"
)
