package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voisinsolidaire/voisin/pkg/db"
)

func paris(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Paris")
	require.NoError(t, err)
	return loc
}

func dates(missions []db.Mission) []string {
	out := make([]string, len(missions))
	for i, m := range missions {
		out[i] = m.Date
	}
	return out
}

func template() Template {
	return Template{
		Name:        "maraude",
		RRule:       "FREQ=WEEKLY;BYDAY=SA",
		Title:       "Maraude du samedi",
		Description: "Distribution de repas chauds",
		Category:    "Solidarité",
		StartTime:   "10:00",
		Duration:    45,
		Spots:       6,
		City:        "Paris",
	}
}

func TestOccurrences_Weekly(t *testing.T) {
	// Monday 3 March 2025
	from := time.Date(2025, 3, 3, 10, 0, 0, 0, paris(t))

	got, err := Occurrences("FREQ=WEEKLY;BYDAY=SA", from, 3)

	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "2025-03-08 10:00", got[0].Format("2006-01-02 15:04"))
	assert.Equal(t, "2025-03-15 10:00", got[1].Format("2006-01-02 15:04"))
	assert.Equal(t, "2025-03-22 10:00", got[2].Format("2006-01-02 15:04"))
}

func TestOccurrences_RuleCountStopsEarly(t *testing.T) {
	from := time.Date(2025, 3, 3, 10, 0, 0, 0, time.UTC)

	got, err := Occurrences("RRULE:FREQ=WEEKLY;BYDAY=SA;COUNT=2", from, 5)

	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestOccurrences_Capped(t *testing.T) {
	from := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)

	got, err := Occurrences("FREQ=DAILY", from, 400)

	require.NoError(t, err)
	assert.Len(t, got, MaxOccurrences)
}

func TestOccurrences_Errors(t *testing.T) {
	from := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)

	_, err := Occurrences("NOT_A_RULE", from, 3)
	assert.Error(t, err)

	_, err = Occurrences("FREQ=DAILY", from, 0)
	assert.Error(t, err)
}

func TestPlan_DraftsMissions(t *testing.T) {
	from := time.Date(2025, 3, 3, 18, 30, 0, 0, paris(t))

	missions, err := Plan(template(), "asso-1", from, 2)

	require.NoError(t, err)
	assert.Equal(t, []string{"2025-03-08", "2025-03-15"}, dates(missions))
	for _, m := range missions {
		assert.NotEmpty(t, m.ID)
		assert.Equal(t, "asso-1", m.AssociationID)
		assert.Equal(t, db.MissionDraft, m.Status)
		assert.Equal(t, "10:00", m.StartTime)
		assert.Equal(t, 6, m.SpotsAvailable)
		assert.Equal(t, 0, m.SpotsTaken)
	}
	assert.NotEqual(t, missions[0].ID, missions[1].ID)
}

func TestPlan_IncludesFromDateWhenItMatches(t *testing.T) {
	// Saturday 8 March 2025, later in the day than the template start
	from := time.Date(2025, 3, 8, 20, 0, 0, 0, paris(t))

	missions, err := Plan(template(), "asso-1", from, 1)

	require.NoError(t, err)
	assert.Equal(t, []string{"2025-03-08"}, dates(missions))
}

func TestPlan_InvalidStartTime(t *testing.T) {
	tpl := template()
	tpl.StartTime = "10h"

	_, err := Plan(tpl, "asso-1", time.Now(), 1)

	assert.Error(t, err)
}
