package registration

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/voisinsolidaire/voisin/pkg/db"
)

// Action is a user-triggerable registration transition
type Action string

const (
	ActionConfirm  Action = "confirm"
	ActionComplete Action = "complete"
	ActionCancel   Action = "cancel"
	ActionFeedback Action = "feedback"
)

var transitions = map[db.RegistrationStatus][]db.RegistrationStatus{
	db.RegistrationPending:   {db.RegistrationConfirmed, db.RegistrationCancelled},
	db.RegistrationConfirmed: {db.RegistrationCompleted, db.RegistrationCancelled},
}

// CanTransition reports whether the status machine allows from -> to
func CanTransition(from, to db.RegistrationStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves status
func IsTerminal(status db.RegistrationStatus) bool {
	return len(transitions[status]) == 0
}

// AvailableActions lists the controls to show for a registration.
// Terminal registrations only offer feedback once completed and not yet rated.
func AvailableActions(reg *db.MissionRegistration) []Action {
	switch reg.Status {
	case db.RegistrationPending:
		return []Action{ActionConfirm, ActionCancel}
	case db.RegistrationConfirmed:
		return []Action{ActionComplete, ActionCancel}
	case db.RegistrationCompleted:
		if reg.Rating == nil {
			return []Action{ActionFeedback}
		}
	}
	return nil
}

// countsTowardSpots reports whether a registration in this status occupies a spot
func countsTowardSpots(status db.RegistrationStatus) bool {
	return status == db.RegistrationPending || status == db.RegistrationConfirmed
}

// Lifecycle drives registration transitions against the backend and keeps the
// locally held mission's spot counter in step with the results
type Lifecycle struct {
	store  db.RegistrationStore
	logger *zap.Logger
}

// NewLifecycle creates a Lifecycle bound to a registration store
func NewLifecycle(store db.RegistrationStore, logger *zap.Logger) *Lifecycle {
	return &Lifecycle{store: store, logger: logger}
}

// Register signs userID up for mission. A full mission is refused without
// calling the backend. On success mission.SpotsTaken is incremented; on
// failure mission is left untouched.
func (l *Lifecycle) Register(ctx context.Context, mission *db.Mission, userID string) (*db.MissionRegistration, error) {
	if mission.IsFull() {
		l.logger.Debug("Refusing registration for full mission",
			zap.String("mission_id", mission.ID),
			zap.Int("spots_taken", mission.SpotsTaken),
			zap.Int("spots_available", mission.SpotsAvailable))
		return nil, fmt.Errorf("failed to register for mission %s: %w", mission.ID, db.ErrMissionFull)
	}

	reg, err := l.store.RegisterForMission(ctx, mission.ID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to register for mission %s: %w", mission.ID, err)
	}

	mission.SpotsTaken++
	l.logger.Info("Registered for mission",
		zap.String("mission_id", mission.ID),
		zap.String("user_id", userID),
		zap.String("status", string(reg.Status)))
	return reg, nil
}

// Cancel cancels userID's registration. current is the registration as held
// locally; when it occupied a spot the mission counter is decremented.
func (l *Lifecycle) Cancel(ctx context.Context, mission *db.Mission, current *db.MissionRegistration, reason string) (*db.MissionRegistration, error) {
	reg, err := l.store.CancelRegistration(ctx, mission.ID, current.UserID, reason)
	if err != nil {
		return nil, fmt.Errorf("failed to cancel registration for mission %s: %w", mission.ID, err)
	}

	if countsTowardSpots(current.Status) && mission.SpotsTaken > 0 {
		mission.SpotsTaken--
	}
	*current = *reg
	l.logger.Info("Cancelled registration",
		zap.String("mission_id", mission.ID),
		zap.String("user_id", reg.UserID),
		zap.String("reason", reason))
	return reg, nil
}

// Confirm accepts a pending volunteer (association action)
func (l *Lifecycle) Confirm(ctx context.Context, missionID string, current *db.MissionRegistration) (*db.MissionRegistration, error) {
	reg, err := l.store.ConfirmVolunteer(ctx, missionID, current.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to confirm volunteer %s: %w", current.UserID, err)
	}

	*current = *reg
	l.logger.Info("Confirmed volunteer", zap.String("mission_id", missionID), zap.String("user_id", reg.UserID))
	return reg, nil
}

// Complete closes the mission: confirmed registrations become completed and
// the mission status is updated locally.
func (l *Lifecycle) Complete(ctx context.Context, mission *db.Mission) ([]db.MissionRegistration, error) {
	regs, err := l.store.CompleteMission(ctx, mission.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to complete mission %s: %w", mission.ID, err)
	}

	mission.Status = db.MissionCompleted
	l.logger.Info("Completed mission", zap.String("mission_id", mission.ID), zap.Int("completed_registrations", len(regs)))
	return regs, nil
}

// LeaveFeedback rates a completed mission (volunteer action)
func (l *Lifecycle) LeaveFeedback(ctx context.Context, current *db.MissionRegistration, feedback string, rating int) (*db.MissionRegistration, error) {
	reg, err := l.store.LeaveFeedback(ctx, current.MissionID, current.UserID, feedback, rating)
	if err != nil {
		return nil, fmt.Errorf("failed to leave feedback for mission %s: %w", current.MissionID, err)
	}

	*current = *reg
	l.logger.Debug("Feedback recorded", zap.String("mission_id", reg.MissionID), zap.Int("rating", rating))
	return reg, nil
}
