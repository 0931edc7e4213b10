package commands

import (
	"fmt"
	"strings"

	"github.com/voisinsolidaire/voisin/pkg/core/registration"
	"github.com/voisinsolidaire/voisin/pkg/core/services"
	"github.com/voisinsolidaire/voisin/pkg/db"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorDim    = "\033[2m"
)

// spotsLabel renders the remaining capacity of a mission
func spotsLabel(m *db.Mission) string {
	if m.IsFull() {
		return "Complet"
	}
	return fmt.Sprintf("%d/%d places", m.SpotsLeft(), m.SpotsAvailable)
}

// missionLine renders a mission on one line for listings
func missionLine(m *db.Mission) string {
	parts := []string{
		fmt.Sprintf("%s %s", m.Date, trimClock(m.StartTime)),
		m.Title,
	}
	if name := m.AssociationName(); name != "" {
		parts[1] += " (" + name + ")"
	}
	parts = append(parts, fmt.Sprintf("%d min", m.Duration), spotsLabel(m))
	if m.Distance != nil {
		parts = append(parts, fmt.Sprintf("%.1f km", *m.Distance))
	}
	return strings.Join(parts, " · ")
}

func trimClock(clock string) string {
	if len(clock) > len(db.TimeLayout) {
		return clock[:len(db.TimeLayout)]
	}
	return clock
}

// statusColor picks the color of a registration status
func statusColor(status db.RegistrationStatus) string {
	switch status {
	case db.RegistrationConfirmed, db.RegistrationCompleted:
		return colorGreen
	case db.RegistrationPending:
		return colorYellow
	case db.RegistrationCancelled:
		return colorDim
	}
	return colorReset
}

// actionsLabel lists the follow-up commands a registration allows
func actionsLabel(actions []registration.Action) string {
	if len(actions) == 0 {
		return ""
	}
	names := make([]string, len(actions))
	for i, a := range actions {
		names[i] = string(a)
	}
	return "[" + strings.Join(names, ", ") + "]"
}

// notificationLine renders a notification, marking unread ones
func notificationLine(n *db.Notification) string {
	marker := " "
	if !n.IsRead {
		marker = "•"
	}
	return fmt.Sprintf("%s %s  %s: %s %s(%s)%s",
		marker, n.CreatedAt.Local().Format("02/01 15:04"), n.Title, n.Message, colorDim, n.ID, colorReset)
}

// printFailure prints err as the user-facing message
func printFailure(prefix string, err error) {
	fmt.Printf("%s✗ %s: %s%s\n", colorRed, prefix, services.UserMessage(err), colorReset)
}
