package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/voisinsolidaire/voisin/pkg/core/registration"
	"github.com/voisinsolidaire/voisin/pkg/db"
)

// RegistrationBackend is what the registration use cases need from the backend
type RegistrationBackend interface {
	db.MissionStore
	db.RegistrationStore
}

// RegisterVolunteer signs userID up for a published mission
func RegisterVolunteer(ctx context.Context, backend RegistrationBackend, logger *zap.Logger, missionID, userID string) (*db.Mission, *db.MissionRegistration, error) {
	mission, err := backend.GetMission(ctx, missionID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch mission %s: %w", missionID, err)
	}
	if mission.Status != db.MissionPublished {
		return mission, nil, fmt.Errorf("mission %s is %s: %w", missionID, mission.Status, db.ErrMissionClosed)
	}

	reg, err := registration.NewLifecycle(backend, logger).Register(ctx, mission, userID)
	if err != nil {
		return mission, nil, err
	}
	return mission, reg, nil
}

// findRegistration returns userID's registration for missionID
func findRegistration(ctx context.Context, store db.RegistrationStore, missionID, userID string) (*db.MissionRegistration, error) {
	regs, err := store.ListUserRegistrations(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list registrations: %w", err)
	}
	for i := range regs {
		if regs[i].MissionID == missionID {
			return &regs[i], nil
		}
	}
	return nil, fmt.Errorf("no registration of %s for mission %s: %w", userID, missionID, db.ErrNotFound)
}

// CancelRegistration cancels userID's registration and frees the spot
func CancelRegistration(ctx context.Context, backend RegistrationBackend, logger *zap.Logger, missionID, userID, reason string) (*db.Mission, *db.MissionRegistration, error) {
	mission, err := backend.GetMission(ctx, missionID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch mission %s: %w", missionID, err)
	}

	current, err := findRegistration(ctx, backend, missionID, userID)
	if err != nil {
		return mission, nil, err
	}
	if !registration.CanTransition(current.Status, db.RegistrationCancelled) {
		return mission, current, fmt.Errorf("cannot cancel a %s registration: %w", current.Status, db.ErrInvalidTransition)
	}

	reg, err := registration.NewLifecycle(backend, logger).Cancel(ctx, mission, current, reason)
	if err != nil {
		return mission, nil, err
	}
	return mission, reg, nil
}

// ConfirmResult reports a batch confirmation
type ConfirmResult struct {
	Confirmed []db.MissionRegistration
	Failed    []FailedConfirmation
	Emails    *EmailReport
}

// FailedConfirmation records a volunteer that could not be confirmed
type FailedConfirmation struct {
	UserID string
	Error  error
}

// ConfirmVolunteers confirms each pending volunteer of a mission. Failures
// are collected per volunteer; the batch continues. When mailer is non-nil
// confirmed volunteers receive an email.
func ConfirmVolunteers(
	ctx context.Context,
	backend RegistrationBackend,
	profiles db.ProfileStore,
	mailer EmailSender,
	logger *zap.Logger,
	missionID string,
	userIDs []string,
) (*ConfirmResult, error) {
	mission, err := backend.GetMission(ctx, missionID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch mission %s: %w", missionID, err)
	}

	regs, err := backend.ListMissionRegistrations(ctx, missionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list registrations: %w", err)
	}
	byUser := make(map[string]*db.MissionRegistration, len(regs))
	for i := range regs {
		byUser[regs[i].UserID] = &regs[i]
	}

	lc := registration.NewLifecycle(backend, logger)
	result := &ConfirmResult{}
	for _, userID := range userIDs {
		current, ok := byUser[userID]
		if !ok {
			result.Failed = append(result.Failed, FailedConfirmation{UserID: userID, Error: db.ErrNotFound})
			continue
		}
		if !registration.CanTransition(current.Status, db.RegistrationConfirmed) {
			result.Failed = append(result.Failed, FailedConfirmation{UserID: userID, Error: db.ErrInvalidTransition})
			continue
		}

		reg, err := lc.Confirm(ctx, missionID, current)
		if err != nil {
			logger.Warn("Failed to confirm volunteer", zap.String("user_id", userID), zap.Error(err))
			result.Failed = append(result.Failed, FailedConfirmation{UserID: userID, Error: err})
			continue
		}
		result.Confirmed = append(result.Confirmed, *reg)
	}

	if mailer != nil && len(result.Confirmed) > 0 {
		result.Emails = SendConfirmationEmails(ctx, profiles, mailer, logger, mission, result.Confirmed)
	}

	logger.Info("Volunteers confirmed",
		zap.String("mission_id", missionID),
		zap.Int("confirmed", len(result.Confirmed)),
		zap.Int("failed", len(result.Failed)))
	return result, nil
}

// CompleteMission closes a published mission
func CompleteMission(ctx context.Context, backend RegistrationBackend, logger *zap.Logger, missionID string) (*db.Mission, []db.MissionRegistration, error) {
	mission, err := backend.GetMission(ctx, missionID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch mission %s: %w", missionID, err)
	}
	if mission.Status != db.MissionPublished {
		return mission, nil, fmt.Errorf("mission %s is %s: %w", missionID, mission.Status, db.ErrInvalidTransition)
	}

	regs, err := registration.NewLifecycle(backend, logger).Complete(ctx, mission)
	if err != nil {
		return mission, nil, err
	}
	return mission, regs, nil
}

// Feedback is a volunteer's rating of a completed mission
type Feedback struct {
	Comment string `validate:"max=2000"`
	Rating  int    `validate:"min=1,max=5"`
}

// LeaveFeedback records userID's feedback on a completed registration
func LeaveFeedback(ctx context.Context, store db.RegistrationStore, logger *zap.Logger, missionID, userID string, fb Feedback) (*db.MissionRegistration, error) {
	if err := validate.Struct(fb); err != nil {
		return nil, fmt.Errorf("invalid feedback: %w", validationError(err))
	}

	current, err := findRegistration(ctx, store, missionID, userID)
	if err != nil {
		return nil, err
	}
	if current.Status != db.RegistrationCompleted {
		return nil, fmt.Errorf("feedback requires a completed registration, got %s: %w", current.Status, db.ErrInvalidTransition)
	}

	return registration.NewLifecycle(store, logger).LeaveFeedback(ctx, current, fb.Comment, fb.Rating)
}

// RegistrationView pairs a registration with its mission and the actions it offers
type RegistrationView struct {
	Registration db.MissionRegistration
	Mission      *db.Mission
	Actions      []registration.Action
}

// ListUserRegistrations returns userID's registrations with their missions.
// Missions that can no longer be fetched are left nil.
func ListUserRegistrations(ctx context.Context, backend RegistrationBackend, logger *zap.Logger, userID string) ([]RegistrationView, error) {
	regs, err := backend.ListUserRegistrations(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list registrations: %w", err)
	}

	views := make([]RegistrationView, 0, len(regs))
	for _, reg := range regs {
		mission, err := backend.GetMission(ctx, reg.MissionID)
		if err != nil {
			logger.Debug("Mission unavailable for registration", zap.String("mission_id", reg.MissionID), zap.Error(err))
			mission = nil
		}
		views = append(views, RegistrationView{
			Registration: reg,
			Mission:      mission,
			Actions:      registration.AvailableActions(&reg),
		})
	}
	return views, nil
}
