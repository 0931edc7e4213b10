package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/voisinsolidaire/voisin/internal/config"
	"github.com/voisinsolidaire/voisin/pkg/core/registration"
	"github.com/voisinsolidaire/voisin/pkg/db"
)

func TestRegisterVolunteer(t *testing.T) {
	backend := newMockBackend()
	backend.missions["m1"] = publishedMission("m1")

	mission, reg, err := RegisterVolunteer(context.Background(), backend, zap.NewNop(), "m1", "alice")

	require.NoError(t, err)
	assert.Equal(t, db.RegistrationPending, reg.Status)
	assert.Equal(t, 1, mission.SpotsTaken)
}

func TestRegisterVolunteer_FullMission(t *testing.T) {
	backend := newMockBackend()
	full := publishedMission("m1")
	full.SpotsTaken = full.SpotsAvailable
	backend.missions["m1"] = full

	mission, reg, err := RegisterVolunteer(context.Background(), backend, zap.NewNop(), "m1", "alice")

	assert.Nil(t, reg)
	assert.True(t, errors.Is(err, db.ErrMissionFull))
	assert.Equal(t, full.SpotsAvailable, mission.SpotsTaken)
	assert.Empty(t, backend.registrations)
	assert.Equal(t, "Cette mission est complète.", UserMessage(err))
}

func TestRegisterVolunteer_AlreadyRegistered(t *testing.T) {
	backend := newMockBackend()
	backend.missions["m1"] = publishedMission("m1")
	backend.registrations = []db.MissionRegistration{{MissionID: "m1", UserID: "alice", Status: db.RegistrationPending}}

	mission, _, err := RegisterVolunteer(context.Background(), backend, zap.NewNop(), "m1", "alice")

	assert.True(t, errors.Is(err, db.ErrAlreadyRegistered))
	assert.Equal(t, 0, mission.SpotsTaken)
	assert.Equal(t, "already_registered", ErrorCode(err))
}

func TestRegisterVolunteer_ClosedMission(t *testing.T) {
	backend := newMockBackend()
	m := publishedMission("m1")
	m.Status = db.MissionCompleted
	backend.missions["m1"] = m

	_, _, err := RegisterVolunteer(context.Background(), backend, zap.NewNop(), "m1", "alice")

	assert.True(t, errors.Is(err, db.ErrMissionClosed))
	assert.Empty(t, backend.registrations)
}

func TestCancelRegistration(t *testing.T) {
	backend := newMockBackend()
	m := publishedMission("m1")
	m.SpotsTaken = 2
	backend.missions["m1"] = m
	backend.registrations = []db.MissionRegistration{
		{MissionID: "m1", UserID: "alice", Status: db.RegistrationConfirmed},
		{MissionID: "m1", UserID: "bob", Status: db.RegistrationCompleted},
	}

	mission, reg, err := CancelRegistration(context.Background(), backend, zap.NewNop(), "m1", "alice", "malade")
	require.NoError(t, err)
	assert.Equal(t, db.RegistrationCancelled, reg.Status)
	assert.Equal(t, 1, mission.SpotsTaken)

	_, _, err = CancelRegistration(context.Background(), backend, zap.NewNop(), "m1", "bob", "")
	assert.True(t, errors.Is(err, db.ErrInvalidTransition))

	_, _, err = CancelRegistration(context.Background(), backend, zap.NewNop(), "m1", "carol", "")
	assert.True(t, errors.Is(err, db.ErrNotFound))
}

func TestConfirmVolunteers_CollectsFailures(t *testing.T) {
	backend := newMockBackend()
	backend.missions["m1"] = publishedMission("m1")
	backend.registrations = []db.MissionRegistration{
		{MissionID: "m1", UserID: "alice", Status: db.RegistrationPending},
		{MissionID: "m1", UserID: "bob", Status: db.RegistrationPending},
		{MissionID: "m1", UserID: "carol", Status: db.RegistrationCancelled},
		{MissionID: "m1", UserID: "dave", Status: db.RegistrationPending},
	}
	backend.confirmErrs["dave"] = &db.BackendError{Status: 400, Code: db.CodeInvalidTransition, Message: "invalid", Kind: db.ErrInvalidTransition}
	backend.profiles["alice"] = &db.Profile{ID: "alice", FirstName: "Alice", LastName: "Martin", Email: "alice@example.fr"}
	backend.profiles["bob"] = &db.Profile{ID: "bob", FirstName: "Bob", LastName: "Durand", Email: "bob@example.fr"}
	mailer := &mockMailer{failFor: map[string]bool{"bob@example.fr": true}}

	result, err := ConfirmVolunteers(context.Background(), backend, backend, mailer, zap.NewNop(), "m1",
		[]string{"alice", "bob", "carol", "dave", "eve"})

	require.NoError(t, err)
	require.Len(t, result.Confirmed, 2)
	assert.Equal(t, "alice", result.Confirmed[0].UserID)
	assert.Equal(t, "bob", result.Confirmed[1].UserID)

	failed := map[string]error{}
	for _, f := range result.Failed {
		failed[f.UserID] = f.Error
	}
	assert.True(t, errors.Is(failed["carol"], db.ErrInvalidTransition))
	assert.True(t, errors.Is(failed["dave"], db.ErrInvalidTransition))
	assert.True(t, errors.Is(failed["eve"], db.ErrNotFound))

	require.NotNil(t, result.Emails)
	assert.Equal(t, []string{"alice@example.fr"}, mailer.sent)
	require.Len(t, result.Emails.Failed, 1)
	assert.Equal(t, "bob", result.Emails.Failed[0].UserID)
}

func TestConfirmVolunteers_NoMailer(t *testing.T) {
	backend := newMockBackend()
	backend.missions["m1"] = publishedMission("m1")
	backend.registrations = []db.MissionRegistration{{MissionID: "m1", UserID: "alice", Status: db.RegistrationPending}}

	result, err := ConfirmVolunteers(context.Background(), backend, backend, nil, zap.NewNop(), "m1", []string{"alice"})

	require.NoError(t, err)
	assert.Len(t, result.Confirmed, 1)
	assert.Nil(t, result.Emails)
}

func TestCompleteMission(t *testing.T) {
	backend := newMockBackend()
	backend.missions["m1"] = publishedMission("m1")
	backend.registrations = []db.MissionRegistration{
		{MissionID: "m1", UserID: "alice", Status: db.RegistrationConfirmed},
		{MissionID: "m1", UserID: "bob", Status: db.RegistrationPending},
	}

	mission, regs, err := CompleteMission(context.Background(), backend, zap.NewNop(), "m1")

	require.NoError(t, err)
	assert.Equal(t, db.MissionCompleted, mission.Status)
	require.Len(t, regs, 1)
	assert.Equal(t, "alice", regs[0].UserID)

	draft := publishedMission("m2")
	draft.Status = db.MissionDraft
	backend.missions["m2"] = draft
	_, _, err = CompleteMission(context.Background(), backend, zap.NewNop(), "m2")
	assert.True(t, errors.Is(err, db.ErrInvalidTransition))
}

func TestLeaveFeedback(t *testing.T) {
	backend := newMockBackend()
	backend.registrations = []db.MissionRegistration{
		{MissionID: "m1", UserID: "alice", Status: db.RegistrationCompleted},
		{MissionID: "m2", UserID: "alice", Status: db.RegistrationConfirmed},
	}

	reg, err := LeaveFeedback(context.Background(), backend, zap.NewNop(), "m1", "alice", Feedback{Comment: "Très bien", Rating: 5})
	require.NoError(t, err)
	require.NotNil(t, reg.Rating)
	assert.Equal(t, 5, *reg.Rating)

	_, err = LeaveFeedback(context.Background(), backend, zap.NewNop(), "m1", "alice", Feedback{Rating: 6})
	assert.True(t, errors.Is(err, db.ErrValidation))
	assert.Contains(t, FieldMessages(err), "Rating")

	_, err = LeaveFeedback(context.Background(), backend, zap.NewNop(), "m2", "alice", Feedback{Rating: 4})
	assert.True(t, errors.Is(err, db.ErrInvalidTransition))
}

func TestListUserRegistrations(t *testing.T) {
	backend := newMockBackend()
	backend.missions["m1"] = publishedMission("m1")
	backend.registrations = []db.MissionRegistration{
		{MissionID: "m1", UserID: "alice", Status: db.RegistrationPending},
		{MissionID: "gone", UserID: "alice", Status: db.RegistrationCancelled},
	}

	views, err := ListUserRegistrations(context.Background(), backend, zap.NewNop(), "alice")

	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, "m1", views[0].Mission.ID)
	assert.Equal(t, []registration.Action{registration.ActionConfirm, registration.ActionCancel}, views[0].Actions)
	assert.Nil(t, views[1].Mission)
	assert.Empty(t, views[1].Actions)
}

func TestExportRoster(t *testing.T) {
	backend := newMockBackend()
	backend.missions["m1"] = publishedMission("m1")
	registered := time.Date(2025, 3, 1, 18, 45, 0, 0, time.UTC)
	backend.registrations = []db.MissionRegistration{
		{MissionID: "m1", UserID: "alice", Status: db.RegistrationConfirmed, RegistrationDate: registered},
		{MissionID: "m1", UserID: "bob", Status: db.RegistrationCancelled, RegistrationDate: registered},
		{MissionID: "m1", UserID: "ghost", Status: db.RegistrationPending, RegistrationDate: registered},
	}
	backend.profiles["alice"] = &db.Profile{ID: "alice", FirstName: "Alice", LastName: "Martin", Email: "alice@example.fr"}
	publisher := &mockPublisher{}
	cfg := &config.Config{RosterSheetID: "sheet-1"}

	roster, err := ExportRoster(context.Background(), backend, backend, publisher, cfg, zap.NewNop(), "m1")

	require.NoError(t, err)
	assert.Equal(t, "sheet-1", publisher.sheetID)
	assert.Equal(t, "14:00", roster.StartTime)
	require.Len(t, roster.Rows, 2)
	assert.Equal(t, "Alice Martin", roster.Rows[0].Name)
	assert.Equal(t, "Confirmé", roster.Rows[0].Status)
	assert.Equal(t, "2025-03-01 18:45", roster.Rows[0].RegisteredAt)
	assert.Equal(t, "ghost", roster.Rows[1].Name)
	assert.Equal(t, "En attente", roster.Rows[1].Status)
}

func TestExportRoster_RequiresSheet(t *testing.T) {
	_, err := ExportRoster(context.Background(), newMockBackend(), newMockBackend(), &mockPublisher{}, &config.Config{}, zap.NewNop(), "m1")
	assert.True(t, errors.Is(err, db.ErrValidation))
}

func TestUpdateProfile(t *testing.T) {
	backend := newMockBackend()
	profile := &db.Profile{
		ID: "alice", FirstName: "Alice", LastName: "Martin", Email: "alice@example.fr",
		PostalCode: "75011", MaxDistance: 10,
		Availability: []db.AvailabilitySlot{{Day: "saturday", Slot: "morning"}},
	}
	require.NoError(t, UpdateProfile(context.Background(), backend, zap.NewNop(), profile))
	assert.Same(t, profile, backend.updated)

	bad := *profile
	bad.Email = "pas-un-email"
	bad.Availability = []db.AvailabilitySlot{{Day: "funday", Slot: "morning"}}
	err := UpdateProfile(context.Background(), newMockBackend(), zap.NewNop(), &bad)
	assert.True(t, errors.Is(err, db.ErrValidation))
	fields := FieldMessages(err)
	assert.Equal(t, "Adresse e-mail invalide.", fields["Email"])
	assert.Contains(t, fields, "Day")

	lonely := *profile
	lonely.Latitude = f(48.85)
	err = UpdateProfile(context.Background(), newMockBackend(), zap.NewNop(), &lonely)
	assert.True(t, errors.Is(err, db.ErrValidation))
}
