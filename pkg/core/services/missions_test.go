package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/voisinsolidaire/voisin/pkg/core/discovery"
	"github.com/voisinsolidaire/voisin/pkg/core/schedule"
	"github.com/voisinsolidaire/voisin/pkg/db"
)

func f(v float64) *float64 { return &v }

func publishedMission(id string) *db.Mission {
	return &db.Mission{
		ID:             id,
		AssociationID:  "asso-1",
		Title:          "Mission " + id,
		Description:    "Aide aux voisins",
		Category:       "Solidarité",
		Date:           "2025-03-20",
		StartTime:      "14:00:00",
		Duration:       30,
		SpotsAvailable: 3,
		Status:         db.MissionPublished,
		Association:    &db.AssociationSummary{ID: "asso-1", Name: "Les Restos"},
	}
}

var searchNow = time.Date(2025, 3, 8, 10, 0, 0, 0, time.UTC)

func TestSearchMissions_AnnotatesAndFilters(t *testing.T) {
	backend := newMockBackend()
	// Paris Hôtel de Ville
	viewer := &db.Profile{ID: "alice", Latitude: f(48.8566), Longitude: f(2.3522)}

	near := publishedMission("near")
	near.Latitude, near.Longitude = f(48.8606), f(2.3376) // Louvre
	far := publishedMission("far")
	far.Latitude, far.Longitude = f(45.7640), f(4.8357) // Lyon
	unknown := publishedMission("unknown")
	backend.missions = map[string]*db.Mission{"near": near, "far": far, "unknown": unknown}

	result, err := SearchMissions(context.Background(), backend, zap.NewNop(),
		db.MissionQuery{Page: 2}, discovery.Criteria{DistanceMax: 10}, viewer, searchNow)

	require.NoError(t, err)
	assert.Equal(t, 3, result.Fetched)
	require.Len(t, result.Missions, 1)
	assert.Equal(t, "near", result.Missions[0].ID)
	require.NotNil(t, result.Missions[0].Distance)
	assert.InDelta(t, 1.2, *result.Missions[0].Distance, 0.11)

	assert.Equal(t, db.MissionPublished, backend.lastQuery.Status)
	assert.Equal(t, db.DefaultPageSize, backend.lastQuery.PageSize)
	assert.Equal(t, 2, result.Page)
}

func TestSearchMissions_NoViewerLocation(t *testing.T) {
	backend := newMockBackend()
	m := publishedMission("a")
	m.Latitude, m.Longitude = f(48.86), f(2.33)
	backend.missions = map[string]*db.Mission{"a": m}

	result, err := SearchMissions(context.Background(), backend, zap.NewNop(),
		db.MissionQuery{}, discovery.Criteria{}, nil, searchNow)

	require.NoError(t, err)
	require.Len(t, result.Missions, 1)
	assert.Nil(t, result.Missions[0].Distance)
}

func TestSearchMissions_BackendError(t *testing.T) {
	backend := newMockBackend()
	backend.listErr = errors.New("connection reset")

	_, err := SearchMissions(context.Background(), backend, zap.NewNop(),
		db.MissionQuery{}, discovery.Criteria{}, nil, searchNow)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to fetch missions")
}

func TestNearbyMissions_FillsMissingDistance(t *testing.T) {
	backend := newMockBackend()
	withDistance := *publishedMission("rpc")
	withDistance.Distance = f(3.2)
	withoutDistance := *publishedMission("local")
	withoutDistance.Latitude, withoutDistance.Longitude = f(48.8606), f(2.3376)
	backend.nearby = []db.Mission{withDistance, withoutDistance}

	q := db.NearbyQuery{Lat: 48.8566, Lon: 2.3522, DistanceKm: 5, Category: "Solidarité"}
	missions, err := NearbyMissions(context.Background(), backend, zap.NewNop(), q)

	require.NoError(t, err)
	require.Len(t, missions, 2)
	assert.Equal(t, 3.2, *missions[0].Distance)
	require.NotNil(t, missions[1].Distance)
	assert.Equal(t, q, backend.lastNearby)
}

func TestNearbyMissions_Validation(t *testing.T) {
	tests := []struct {
		name string
		q    db.NearbyQuery
	}{
		{"zero radius", db.NearbyQuery{Lat: 48, Lon: 2}},
		{"radius too large", db.NearbyQuery{Lat: 48, Lon: 2, DistanceKm: 500}},
		{"bad latitude", db.NearbyQuery{Lat: 91, Lon: 2, DistanceKm: 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NearbyMissions(context.Background(), newMockBackend(), zap.NewNop(), tt.q)
			assert.True(t, errors.Is(err, db.ErrValidation))
		})
	}
}

func TestSaveDraft_Validates(t *testing.T) {
	backend := newMockBackend()
	m := publishedMission("draft")
	m.StartTime = "14:00"
	m.SpotsTaken = 2

	require.NoError(t, SaveDraft(context.Background(), backend, zap.NewNop(), m))
	require.Len(t, backend.inserted, 1)
	assert.Equal(t, db.MissionDraft, backend.inserted[0].Status)
	assert.Equal(t, 0, backend.inserted[0].SpotsTaken)

	invalid := publishedMission("invalid")
	invalid.StartTime = "14:00"
	invalid.Title = ""
	invalid.Date = "20/03/2025"
	err := SaveDraft(context.Background(), backend, zap.NewNop(), invalid)

	require.Error(t, err)
	assert.True(t, errors.Is(err, db.ErrValidation))
	fields := FieldMessages(err)
	assert.Contains(t, fields, "Title")
	assert.Contains(t, fields, "Date")
	assert.Len(t, backend.inserted, 1)
}

func TestSetMissionStatus_Transitions(t *testing.T) {
	tests := []struct {
		from    db.MissionStatus
		to      db.MissionStatus
		allowed bool
	}{
		{db.MissionDraft, db.MissionPublished, true},
		{db.MissionDraft, db.MissionCancelled, true},
		{db.MissionPublished, db.MissionCompleted, true},
		{db.MissionPublished, db.MissionCancelled, true},
		{db.MissionPublished, db.MissionDraft, false},
		{db.MissionCompleted, db.MissionPublished, false},
		{db.MissionCancelled, db.MissionPublished, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			backend := newMockBackend()
			m := publishedMission("m")
			m.Status = tt.from
			backend.missions["m"] = m

			updated, err := SetMissionStatus(context.Background(), backend, zap.NewNop(), "m", tt.to)

			if tt.allowed {
				require.NoError(t, err)
				assert.Equal(t, tt.to, updated.Status)
				assert.Equal(t, tt.to, backend.statusSet["m"])
			} else {
				assert.True(t, errors.Is(err, db.ErrInvalidTransition))
				assert.Empty(t, backend.statusSet)
			}
		})
	}
}

func TestPlanSeries(t *testing.T) {
	tpl := schedule.Template{
		Name:        "jardin",
		RRule:       "FREQ=WEEKLY;BYDAY=WE",
		Title:       "Jardin partagé",
		Description: "Entretien du jardin",
		Category:    "Environnement",
		StartTime:   "09:30",
		Duration:    60,
		Spots:       4,
	}
	from := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)

	t.Run("dry run stores nothing", func(t *testing.T) {
		backend := newMockBackend()
		result, err := PlanSeries(context.Background(), backend, zap.NewNop(), tpl, "asso-1", from, 3, true)
		require.NoError(t, err)
		assert.Len(t, result.Missions, 3)
		assert.Empty(t, backend.inserted)
	})

	t.Run("stores drafts", func(t *testing.T) {
		backend := newMockBackend()
		result, err := PlanSeries(context.Background(), backend, zap.NewNop(), tpl, "asso-1", from, 3, false)
		require.NoError(t, err)
		require.Len(t, backend.inserted, 3)
		assert.Equal(t, "2025-03-05", backend.inserted[0].Date)
		assert.Equal(t, "2025-03-19", backend.inserted[2].Date)
		assert.False(t, result.DryRun)
	})
}
