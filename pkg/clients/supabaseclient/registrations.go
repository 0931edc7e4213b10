package supabaseclient

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/supabase-community/postgrest-go"

	"github.com/voisinsolidaire/voisin/pkg/db"
)

const registrationsTable = "mission_registrations"

func decodeRegistration(data []byte) (*db.MissionRegistration, error) {
	var reg db.MissionRegistration
	if err := decodeOne(data, &reg); err != nil {
		return nil, err
	}
	return &reg, nil
}

func decodeRegistrations(data []byte) ([]db.MissionRegistration, error) {
	var regs []db.MissionRegistration
	if err := json.Unmarshal(data, &regs); err != nil {
		return nil, fmt.Errorf("failed to decode registrations: %w", err)
	}
	return regs, nil
}

// RegisterForMission calls register_for_mission. The backend registers the
// user the access token belongs to, so userID only documents intent.
func (c *Client) RegisterForMission(ctx context.Context, missionID, userID string) (*db.MissionRegistration, error) {
	data, err := c.rpc(ctx, "register_for_mission", map[string]any{"mission_id": missionID})
	if err != nil {
		return nil, err
	}
	return decodeRegistration(data)
}

// CancelRegistration calls cancel_mission_registration for the token's user
func (c *Client) CancelRegistration(ctx context.Context, missionID, userID, reason string) (*db.MissionRegistration, error) {
	args := map[string]any{"mission_id": missionID}
	if reason != "" {
		args["reason"] = reason
	}

	data, err := c.rpc(ctx, "cancel_mission_registration", args)
	if err != nil {
		return nil, err
	}
	return decodeRegistration(data)
}

// ConfirmVolunteer calls confirm_volunteer
func (c *Client) ConfirmVolunteer(ctx context.Context, missionID, userID string) (*db.MissionRegistration, error) {
	data, err := c.rpc(ctx, "confirm_volunteer", map[string]any{
		"mission_id": missionID,
		"user_id":    userID,
	})
	if err != nil {
		return nil, err
	}
	return decodeRegistration(data)
}

// CompleteMission calls complete_mission and returns the completed registrations
func (c *Client) CompleteMission(ctx context.Context, missionID string) ([]db.MissionRegistration, error) {
	data, err := c.rpc(ctx, "complete_mission", map[string]any{"mission_id": missionID})
	if err != nil {
		return nil, err
	}
	return decodeRegistrations(data)
}

// LeaveFeedback calls leave_mission_feedback for the token's user
func (c *Client) LeaveFeedback(ctx context.Context, missionID, userID, feedback string, rating int) (*db.MissionRegistration, error) {
	data, err := c.rpc(ctx, "leave_mission_feedback", map[string]any{
		"mission_id": missionID,
		"feedback":   feedback,
		"rating":     rating,
	})
	if err != nil {
		return nil, err
	}
	return decodeRegistration(data)
}

// ListMissionRegistrations returns every registration of a mission, oldest first
func (c *Client) ListMissionRegistrations(ctx context.Context, missionID string) ([]db.MissionRegistration, error) {
	query := c.from(registrationsTable).Select("*", "", false).
		Eq("mission_id", missionID).
		Order("registration_date", &postgrest.OrderOpts{Ascending: true})

	data, err := c.execute(ctx, registrationsTable, query)
	if err != nil {
		return nil, err
	}
	return decodeRegistrations(data)
}

// ListUserRegistrations returns every registration of a volunteer, newest first
func (c *Client) ListUserRegistrations(ctx context.Context, userID string) ([]db.MissionRegistration, error) {
	query := c.from(registrationsTable).Select("*", "", false).
		Eq("user_id", userID).
		Order("registration_date", &postgrest.OrderOpts{Ascending: false})

	data, err := c.execute(ctx, registrationsTable, query)
	if err != nil {
		return nil, err
	}
	return decodeRegistrations(data)
}
