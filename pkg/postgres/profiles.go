package postgres

import (
	"context"

	"github.com/voisinsolidaire/voisin/pkg/db"
)

// GetProfile returns the volunteer profile with the given user id
func (d *DB) GetProfile(ctx context.Context, userID string) (*db.Profile, error) {
	var p db.Profile
	err := d.pool.QueryRow(ctx, `
		SELECT id::text, first_name, last_name, email, address, city, postal_code,
			latitude, longitude, max_distance, availability, interests, skills, languages,
			impact_score, total_missions_completed, total_hours_volunteered
		FROM profiles WHERE id = $1
	`, userID).Scan(
		&p.ID, &p.FirstName, &p.LastName, &p.Email, &p.Address, &p.City, &p.PostalCode,
		&p.Latitude, &p.Longitude, &p.MaxDistance, &p.Availability, &p.Interests, &p.Skills, &p.Languages,
		&p.ImpactScore, &p.TotalMissionsComplete, &p.TotalHoursVolunteered,
	)
	if err != nil {
		return nil, backendError("get profile", err)
	}
	return &p, nil
}

// UpdateProfile writes the editable profile fields. Stats columns are owned by
// CompleteMission and are left untouched.
func (d *DB) UpdateProfile(ctx context.Context, profile *db.Profile) error {
	availability := profile.Availability
	if availability == nil {
		availability = []db.AvailabilitySlot{}
	}

	tag, err := d.pool.Exec(ctx, `
		UPDATE profiles SET
			first_name = $2, last_name = $3, email = $4, address = $5, city = $6, postal_code = $7,
			latitude = $8, longitude = $9, max_distance = $10, availability = $11,
			interests = $12, skills = $13, languages = $14
		WHERE id = $1
	`,
		profile.ID, profile.FirstName, profile.LastName, profile.Email, profile.Address, profile.City,
		profile.PostalCode, profile.Latitude, profile.Longitude, profile.MaxDistance, availability,
		nonNil(profile.Interests), nonNil(profile.Skills), nonNil(profile.Languages),
	)
	if err != nil {
		return backendError("update profile", err)
	}
	if tag.RowsAffected() == 0 {
		return notFound("update profile")
	}
	return nil
}

// GetAssociation returns the association with the given id
func (d *DB) GetAssociation(ctx context.Context, id string) (*db.Association, error) {
	var a db.Association
	err := d.pool.QueryRow(ctx, `
		SELECT id::text, name, categories, verified, impact_score,
			total_missions_created, total_volunteers_engaged, notification_preferences
		FROM associations WHERE id = $1
	`, id).Scan(
		&a.ID, &a.Name, &a.Categories, &a.Verified, &a.ImpactScore,
		&a.TotalMissionsCreated, &a.TotalVolunteersEngaged, &a.NotificationPrefs,
	)
	if err != nil {
		return nil, backendError("get association", err)
	}
	return &a, nil
}
