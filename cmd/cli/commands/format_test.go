package commands

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/voisinsolidaire/voisin/pkg/core/registration"
	"github.com/voisinsolidaire/voisin/pkg/db"
)

func TestSpotsLabel(t *testing.T) {
	tests := []struct {
		name     string
		taken    int
		total    int
		expected string
	}{
		{"empty", 0, 4, "4/4 places"},
		{"partly taken", 3, 4, "1/4 places"},
		{"full", 4, 4, "Complet"},
		{"overbooked", 5, 4, "Complet"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &db.Mission{SpotsTaken: tt.taken, SpotsAvailable: tt.total}
			assert.Equal(t, tt.expected, spotsLabel(m))
		})
	}
}

func TestMissionLine(t *testing.T) {
	distance := 1.25
	m := &db.Mission{
		Title:          "Jardin partagé",
		Date:           "2025-03-10",
		StartTime:      "10:00:00",
		Duration:       30,
		SpotsAvailable: 4,
		SpotsTaken:     1,
		Association:    &db.AssociationSummary{Name: "Les Jardiniers"},
		Distance:       &distance,
	}

	assert.Equal(t, "2025-03-10 10:00 · Jardin partagé (Les Jardiniers) · 30 min · 3/4 places · 1.2 km", missionLine(m))

	m.Association = nil
	m.Distance = nil
	assert.Equal(t, "2025-03-10 10:00 · Jardin partagé · 30 min · 3/4 places", missionLine(m))
}

func TestActionsLabel(t *testing.T) {
	assert.Equal(t, "", actionsLabel(nil))
	assert.Equal(t, "[confirm, cancel]", actionsLabel([]registration.Action{registration.ActionConfirm, registration.ActionCancel}))
}

func TestStatusColor(t *testing.T) {
	assert.Equal(t, colorYellow, statusColor(db.RegistrationPending))
	assert.Equal(t, colorGreen, statusColor(db.RegistrationConfirmed))
	assert.Equal(t, colorGreen, statusColor(db.RegistrationCompleted))
	assert.Equal(t, colorDim, statusColor(db.RegistrationCancelled))
}

func TestNotificationLine_MarksUnread(t *testing.T) {
	n := &db.Notification{ID: "n1", Title: "Inscription", Message: "Nouvelle inscription", CreatedAt: time.Now()}

	assert.Contains(t, notificationLine(n), "• ")
	assert.Contains(t, notificationLine(n), "Inscription: Nouvelle inscription")

	n.IsRead = true
	assert.NotContains(t, notificationLine(n), "•")
}
