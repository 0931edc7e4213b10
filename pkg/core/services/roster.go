package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/voisinsolidaire/voisin/internal/config"
	"github.com/voisinsolidaire/voisin/pkg/clients/sheetsclient"
	"github.com/voisinsolidaire/voisin/pkg/db"
)

// RosterPublisher writes a mission roster to a spreadsheet
type RosterPublisher interface {
	PublishRoster(spreadsheetID string, roster *sheetsclient.Roster) error
}

var rosterStatusLabels = map[db.RegistrationStatus]string{
	db.RegistrationPending:   "En attente",
	db.RegistrationConfirmed: "Confirmé",
	db.RegistrationCompleted: "Terminé",
}

// ExportRoster writes the active volunteers of a mission to the roster sheet.
// Cancelled registrations are left out.
func ExportRoster(
	ctx context.Context,
	backend RegistrationBackend,
	profiles db.ProfileStore,
	publisher RosterPublisher,
	cfg *config.Config,
	logger *zap.Logger,
	missionID string,
) (*sheetsclient.Roster, error) {
	if cfg.RosterSheetID == "" {
		return nil, fmt.Errorf("rosterSheetID is not configured: %w", db.ErrValidation)
	}

	mission, err := backend.GetMission(ctx, missionID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch mission %s: %w", missionID, err)
	}

	regs, err := backend.ListMissionRegistrations(ctx, missionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list registrations: %w", err)
	}

	roster := &sheetsclient.Roster{
		MissionTitle: mission.Title,
		Date:         mission.Date,
		StartTime:    trimSeconds(mission.StartTime),
	}
	for _, reg := range regs {
		label, ok := rosterStatusLabels[reg.Status]
		if !ok {
			continue
		}

		row := sheetsclient.RosterRow{
			Status:       label,
			RegisteredAt: reg.RegistrationDate.Format("2006-01-02 15:04"),
		}
		profile, err := profiles.GetProfile(ctx, reg.UserID)
		if err != nil {
			logger.Warn("Volunteer profile unavailable, exporting id only", zap.String("user_id", reg.UserID), zap.Error(err))
			row.Name = reg.UserID
		} else {
			row.Name = profile.DisplayName()
			row.Email = profile.Email
		}
		roster.Rows = append(roster.Rows, row)
	}

	logger.Debug("Publishing roster",
		zap.String("mission_id", missionID),
		zap.Int("volunteers", len(roster.Rows)))

	if err := publisher.PublishRoster(cfg.RosterSheetID, roster); err != nil {
		return nil, fmt.Errorf("failed to publish roster: %w", err)
	}

	logger.Info("Roster exported", zap.String("mission_id", missionID), zap.Int("volunteers", len(roster.Rows)))
	return roster, nil
}
