package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/voisinsolidaire/voisin/pkg/db"
)

const registrationColumns = `
	id::text, mission_id::text, user_id::text, status, registration_date,
	confirmation_date, completion_date, cancellation_date, cancellation_reason, feedback, rating`

func scanRegistration(row pgx.Row) (db.MissionRegistration, error) {
	var r db.MissionRegistration
	var status string
	err := row.Scan(
		&r.ID, &r.MissionID, &r.UserID, &status, &r.RegistrationDate,
		&r.ConfirmationDate, &r.CompletionDate, &r.CancellationDate, &r.CancelReason, &r.Feedback, &r.Rating,
	)
	r.Status = db.RegistrationStatus(status)
	return r, err
}

func collectRegistrations(rows pgx.Rows) ([]db.MissionRegistration, error) {
	defer rows.Close()

	var regs []db.MissionRegistration
	for rows.Next() {
		r, err := scanRegistration(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan registration: %w", err)
		}
		regs = append(regs, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating registrations: %w", err)
	}

	return regs, nil
}

// inTx runs fn in a transaction, committing when it returns nil
func (d *DB) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		tx.Rollback(ctx)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return backendError("commit transaction", err)
	}
	return nil
}

// lockedMission is the part of a mission row read under FOR UPDATE
type lockedMission struct {
	associationID  string
	title          string
	status         db.MissionStatus
	duration       int
	spotsAvailable int
	spotsTaken     int
}

func lockMission(ctx context.Context, tx pgx.Tx, missionID string) (*lockedMission, error) {
	var m lockedMission
	var status string
	err := tx.QueryRow(ctx, `
		SELECT association_id::text, title, status, duration, spots_available, spots_taken
		FROM missions WHERE id = $1
		FOR UPDATE
	`, missionID).Scan(&m.associationID, &m.title, &status, &m.duration, &m.spotsAvailable, &m.spotsTaken)
	if err != nil {
		return nil, backendError("lock mission", err)
	}
	m.status = db.MissionStatus(status)
	return &m, nil
}

func lockActiveRegistration(ctx context.Context, tx pgx.Tx, missionID, userID string) (*db.MissionRegistration, error) {
	row := tx.QueryRow(ctx, `
		SELECT`+registrationColumns+`
		FROM mission_registrations
		WHERE mission_id = $1 AND user_id = $2 AND status <> 'cancelled'
		FOR UPDATE
	`, missionID, userID)
	r, err := scanRegistration(row)
	if err != nil {
		return nil, backendError("find registration", err)
	}
	return &r, nil
}

func insertNotification(ctx context.Context, tx pgx.Tx, n db.Notification) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO notifications (id, user_id, title, message, type, related_entity_type, related_entity_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, uuid.New().String(), n.UserID, n.Title, n.Message, n.Type, n.RelatedEntityType, n.RelatedEntityID)
	if err != nil {
		return backendError("insert notification", err)
	}
	return nil
}

func missionNotification(userID, missionID, kind, title, message string) db.Notification {
	return db.Notification{
		UserID:            userID,
		Title:             title,
		Message:           message,
		Type:              kind,
		RelatedEntityType: "mission",
		RelatedEntityID:   missionID,
	}
}

// RegisterForMission inserts a pending registration and takes one spot.
// The mission row is locked for the duration of the transaction so two
// volunteers cannot take the last spot.
func (d *DB) RegisterForMission(ctx context.Context, missionID, userID string) (*db.MissionRegistration, error) {
	var reg db.MissionRegistration
	err := d.inTx(ctx, func(tx pgx.Tx) error {
		mission, err := lockMission(ctx, tx, missionID)
		if err != nil {
			return err
		}
		if mission.status != db.MissionPublished {
			return raise(db.CodeMissionClosed, "mission is not open for registration")
		}
		if mission.spotsTaken >= mission.spotsAvailable {
			return raise(db.CodeMissionFull, "mission is full")
		}

		row := tx.QueryRow(ctx, `
			INSERT INTO mission_registrations (id, mission_id, user_id, status)
			VALUES ($1, $2, $3, 'pending')
			RETURNING`+registrationColumns,
			uuid.New().String(), missionID, userID)
		reg, err = scanRegistration(row)
		if err != nil {
			return backendError("insert registration", err)
		}

		if _, err := tx.Exec(ctx, `UPDATE missions SET spots_taken = spots_taken + 1 WHERE id = $1`, missionID); err != nil {
			return backendError("take spot", err)
		}

		return insertNotification(ctx, tx, missionNotification(
			mission.associationID, missionID, db.NotificationRegistration,
			"Nouvelle inscription",
			fmt.Sprintf("Un bénévole s'est inscrit à la mission « %s ».", mission.title),
		))
	})
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

// CancelRegistration cancels the volunteer's live registration and frees its spot
func (d *DB) CancelRegistration(ctx context.Context, missionID, userID, reason string) (*db.MissionRegistration, error) {
	var reg db.MissionRegistration
	err := d.inTx(ctx, func(tx pgx.Tx) error {
		mission, err := lockMission(ctx, tx, missionID)
		if err != nil {
			return err
		}
		current, err := lockActiveRegistration(ctx, tx, missionID, userID)
		if err != nil {
			return err
		}
		if current.Status != db.RegistrationPending && current.Status != db.RegistrationConfirmed {
			return raise(db.CodeInvalidTransition, fmt.Sprintf("cannot cancel a %s registration", current.Status))
		}

		row := tx.QueryRow(ctx, `
			UPDATE mission_registrations
			SET status = 'cancelled', cancellation_date = $2, cancellation_reason = $3
			WHERE id = $1
			RETURNING`+registrationColumns,
			current.ID, time.Now().UTC(), reason)
		reg, err = scanRegistration(row)
		if err != nil {
			return backendError("cancel registration", err)
		}

		if _, err := tx.Exec(ctx, `UPDATE missions SET spots_taken = GREATEST(spots_taken - 1, 0) WHERE id = $1`, missionID); err != nil {
			return backendError("free spot", err)
		}

		return insertNotification(ctx, tx, missionNotification(
			mission.associationID, missionID, db.NotificationCancellation,
			"Désinscription",
			fmt.Sprintf("Un bénévole s'est désinscrit de la mission « %s ».", mission.title),
		))
	})
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

// ConfirmVolunteer moves a pending registration to confirmed
func (d *DB) ConfirmVolunteer(ctx context.Context, missionID, userID string) (*db.MissionRegistration, error) {
	var reg db.MissionRegistration
	err := d.inTx(ctx, func(tx pgx.Tx) error {
		mission, err := lockMission(ctx, tx, missionID)
		if err != nil {
			return err
		}
		current, err := lockActiveRegistration(ctx, tx, missionID, userID)
		if err != nil {
			return err
		}
		if current.Status != db.RegistrationPending {
			return raise(db.CodeInvalidTransition, fmt.Sprintf("cannot confirm a %s registration", current.Status))
		}

		row := tx.QueryRow(ctx, `
			UPDATE mission_registrations
			SET status = 'confirmed', confirmation_date = $2
			WHERE id = $1
			RETURNING`+registrationColumns,
			current.ID, time.Now().UTC())
		reg, err = scanRegistration(row)
		if err != nil {
			return backendError("confirm registration", err)
		}

		return insertNotification(ctx, tx, missionNotification(
			userID, missionID, db.NotificationConfirmation,
			"Inscription confirmée",
			fmt.Sprintf("Votre participation à « %s » est confirmée.", mission.title),
		))
	})
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

// CompleteMission marks every confirmed registration completed, credits the
// volunteers' stats and closes the mission
func (d *DB) CompleteMission(ctx context.Context, missionID string) ([]db.MissionRegistration, error) {
	var completed []db.MissionRegistration
	err := d.inTx(ctx, func(tx pgx.Tx) error {
		mission, err := lockMission(ctx, tx, missionID)
		if err != nil {
			return err
		}
		if mission.status != db.MissionPublished {
			return raise(db.CodeMissionClosed, fmt.Sprintf("cannot complete a %s mission", mission.status))
		}

		rows, err := tx.Query(ctx, `
			UPDATE mission_registrations
			SET status = 'completed', completion_date = $2
			WHERE mission_id = $1 AND status = 'confirmed'
			RETURNING`+registrationColumns,
			missionID, time.Now().UTC())
		if err != nil {
			return backendError("complete registrations", err)
		}
		completed, err = collectRegistrations(rows)
		if err != nil {
			return err
		}

		hours := float64(mission.duration) / 60
		for _, r := range completed {
			_, err := tx.Exec(ctx, `
				UPDATE profiles
				SET total_missions_completed = total_missions_completed + 1,
					total_hours_volunteered = total_hours_volunteered + $2,
					impact_score = impact_score + $3
				WHERE id = $1
			`, r.UserID, hours, mission.duration)
			if err != nil {
				return backendError("credit volunteer", err)
			}

			if err := insertNotification(ctx, tx, missionNotification(
				r.UserID, missionID, db.NotificationCompletion,
				"Mission terminée",
				fmt.Sprintf("Merci pour votre aide sur « %s » ! Vous pouvez laisser un avis.", mission.title),
			)); err != nil {
				return err
			}
		}

		_, err = tx.Exec(ctx, `
			UPDATE associations
			SET total_volunteers_engaged = total_volunteers_engaged + $2
			WHERE id = $1
		`, mission.associationID, len(completed))
		if err != nil {
			return backendError("update association stats", err)
		}

		_, err = tx.Exec(ctx, `UPDATE missions SET status = 'completed' WHERE id = $1`, missionID)
		if err != nil {
			return backendError("close mission", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return completed, nil
}

// LeaveFeedback stores the volunteer's comment and rating on a completed registration
func (d *DB) LeaveFeedback(ctx context.Context, missionID, userID, feedback string, rating int) (*db.MissionRegistration, error) {
	if rating < 1 || rating > 5 {
		return nil, raise(db.CodeCheckViolation, "rating must be between 1 and 5")
	}

	var reg db.MissionRegistration
	err := d.inTx(ctx, func(tx pgx.Tx) error {
		current, err := lockActiveRegistration(ctx, tx, missionID, userID)
		if err != nil {
			return err
		}
		if current.Status != db.RegistrationCompleted {
			return raise(db.CodeInvalidTransition, "feedback is only accepted on completed registrations")
		}

		row := tx.QueryRow(ctx, `
			UPDATE mission_registrations SET feedback = $2, rating = $3
			WHERE id = $1
			RETURNING`+registrationColumns,
			current.ID, feedback, rating)
		reg, err = scanRegistration(row)
		if err != nil {
			return backendError("save feedback", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

// ListMissionRegistrations returns every registration of a mission, oldest first
func (d *DB) ListMissionRegistrations(ctx context.Context, missionID string) ([]db.MissionRegistration, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT`+registrationColumns+`
		FROM mission_registrations
		WHERE mission_id = $1
		ORDER BY registration_date
	`, missionID)
	if err != nil {
		return nil, backendError("query mission registrations", err)
	}
	return collectRegistrations(rows)
}

// ListUserRegistrations returns every registration of a volunteer, newest first
func (d *DB) ListUserRegistrations(ctx context.Context, userID string) ([]db.MissionRegistration, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT`+registrationColumns+`
		FROM mission_registrations
		WHERE user_id = $1
		ORDER BY registration_date DESC
	`, userID)
	if err != nil {
		return nil, backendError("query user registrations", err)
	}
	return collectRegistrations(rows)
}
