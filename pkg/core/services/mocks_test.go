package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/voisinsolidaire/voisin/pkg/clients/sheetsclient"
	"github.com/voisinsolidaire/voisin/pkg/db"
)

// mockBackend is an in-memory mission/registration/profile store
type mockBackend struct {
	missions      map[string]*db.Mission
	registrations []db.MissionRegistration
	profiles      map[string]*db.Profile

	listErr     error
	nearby      []db.Mission
	lastQuery   db.MissionQuery
	lastNearby  db.NearbyQuery
	confirmErrs map[string]error
	inserted    []db.Mission
	statusSet   map[string]db.MissionStatus
	updated     *db.Profile
}

func newMockBackend() *mockBackend {
	return &mockBackend{
		missions:    map[string]*db.Mission{},
		profiles:    map[string]*db.Profile{},
		confirmErrs: map[string]error{},
		statusSet:   map[string]db.MissionStatus{},
	}
}

func (m *mockBackend) ListMissions(ctx context.Context, q db.MissionQuery) ([]db.Mission, error) {
	m.lastQuery = q
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []db.Mission
	for _, id := range sortedKeys(m.missions) {
		out = append(out, *m.missions[id])
	}
	return out, nil
}

func (m *mockBackend) GetMission(ctx context.Context, id string) (*db.Mission, error) {
	mission, ok := m.missions[id]
	if !ok {
		return nil, &db.BackendError{Status: 406, Code: db.CodePostgRESTNoRows, Message: "not found", Kind: db.ErrNotFound}
	}
	cp := *mission
	return &cp, nil
}

func (m *mockBackend) SearchNearbyMissions(ctx context.Context, q db.NearbyQuery) ([]db.Mission, error) {
	m.lastNearby = q
	out := make([]db.Mission, len(m.nearby))
	copy(out, m.nearby)
	return out, nil
}

func (m *mockBackend) InsertMission(ctx context.Context, mission *db.Mission) error {
	m.inserted = append(m.inserted, *mission)
	return nil
}

func (m *mockBackend) SetMissionStatus(ctx context.Context, id string, status db.MissionStatus) error {
	m.statusSet[id] = status
	return nil
}

func (m *mockBackend) setStatus(missionID, userID string, status db.RegistrationStatus) (*db.MissionRegistration, error) {
	for i := range m.registrations {
		r := &m.registrations[i]
		if r.MissionID == missionID && r.UserID == userID {
			r.Status = status
			cp := *r
			return &cp, nil
		}
	}
	return nil, &db.BackendError{Code: db.CodeNoDataFound, Message: "registration not found", Kind: db.ErrNotFound}
}

func (m *mockBackend) RegisterForMission(ctx context.Context, missionID, userID string) (*db.MissionRegistration, error) {
	for _, r := range m.registrations {
		if r.MissionID == missionID && r.UserID == userID {
			return nil, &db.BackendError{Status: 409, Code: db.CodeUniqueViolation, Message: "duplicate key", Kind: db.ErrAlreadyRegistered}
		}
	}
	reg := db.MissionRegistration{ID: fmt.Sprintf("reg-%d", len(m.registrations)+1), MissionID: missionID, UserID: userID, Status: db.RegistrationPending}
	m.registrations = append(m.registrations, reg)
	return &reg, nil
}

func (m *mockBackend) CancelRegistration(ctx context.Context, missionID, userID, reason string) (*db.MissionRegistration, error) {
	return m.setStatus(missionID, userID, db.RegistrationCancelled)
}

func (m *mockBackend) ConfirmVolunteer(ctx context.Context, missionID, userID string) (*db.MissionRegistration, error) {
	if err := m.confirmErrs[userID]; err != nil {
		return nil, err
	}
	return m.setStatus(missionID, userID, db.RegistrationConfirmed)
}

func (m *mockBackend) CompleteMission(ctx context.Context, missionID string) ([]db.MissionRegistration, error) {
	var out []db.MissionRegistration
	for i := range m.registrations {
		r := &m.registrations[i]
		if r.MissionID == missionID && r.Status == db.RegistrationConfirmed {
			r.Status = db.RegistrationCompleted
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *mockBackend) LeaveFeedback(ctx context.Context, missionID, userID, feedback string, rating int) (*db.MissionRegistration, error) {
	reg, err := m.setStatus(missionID, userID, db.RegistrationCompleted)
	if err != nil {
		return nil, err
	}
	reg.Feedback = feedback
	reg.Rating = &rating
	return reg, nil
}

func (m *mockBackend) ListMissionRegistrations(ctx context.Context, missionID string) ([]db.MissionRegistration, error) {
	var out []db.MissionRegistration
	for _, r := range m.registrations {
		if r.MissionID == missionID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockBackend) ListUserRegistrations(ctx context.Context, userID string) ([]db.MissionRegistration, error) {
	var out []db.MissionRegistration
	for _, r := range m.registrations {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockBackend) GetProfile(ctx context.Context, userID string) (*db.Profile, error) {
	p, ok := m.profiles[userID]
	if !ok {
		return nil, &db.BackendError{Code: db.CodePostgRESTNoRows, Message: "not found", Kind: db.ErrNotFound}
	}
	return p, nil
}

func (m *mockBackend) UpdateProfile(ctx context.Context, profile *db.Profile) error {
	m.updated = profile
	return nil
}

func (m *mockBackend) GetAssociation(ctx context.Context, id string) (*db.Association, error) {
	return &db.Association{ID: id}, nil
}

func sortedKeys(m map[string]*db.Mission) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// mockMailer records sent emails and fails for listed addresses
type mockMailer struct {
	sent    []string
	failFor map[string]bool
	ctxs    []context.Context
}

func (m *mockMailer) SendEmail(ctx context.Context, to, subject, body string) error {
	m.ctxs = append(m.ctxs, ctx)
	if m.failFor[to] {
		return fmt.Errorf("smtp rejected %s", to)
	}
	m.sent = append(m.sent, to)
	return nil
}

// mockPublisher captures the published roster
type mockPublisher struct {
	sheetID string
	roster  *sheetsclient.Roster
	err     error
}

func (m *mockPublisher) PublishRoster(spreadsheetID string, roster *sheetsclient.Roster) error {
	if m.err != nil {
		return m.err
	}
	m.sheetID = spreadsheetID
	m.roster = roster
	return nil
}
