package supabaseclient

import (
	"context"

	"github.com/voisinsolidaire/voisin/pkg/db"
)

const (
	profilesTable     = "profiles"
	associationsTable = "associations"
)

// GetProfile returns the profile with the given user id
func (c *Client) GetProfile(ctx context.Context, userID string) (*db.Profile, error) {
	data, err := c.execute(ctx, profilesTable, c.from(profilesTable).Select("*", "", false).Eq("id", userID))
	if err != nil {
		return nil, err
	}

	var p db.Profile
	if err := decodeOne(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// profileUpdate is the editable column set of a profile
type profileUpdate struct {
	FirstName    string                `json:"first_name"`
	LastName     string                `json:"last_name"`
	Email        string                `json:"email"`
	Address      string                `json:"address"`
	City         string                `json:"city"`
	PostalCode   string                `json:"postal_code"`
	Latitude     *float64              `json:"latitude"`
	Longitude    *float64              `json:"longitude"`
	MaxDistance  int                   `json:"max_distance"`
	Availability []db.AvailabilitySlot `json:"availability"`
	Interests    []string              `json:"interests"`
	Skills       []string              `json:"skills"`
	Languages    []string              `json:"languages"`
}

// UpdateProfile patches the editable fields of the profile
func (c *Client) UpdateProfile(ctx context.Context, p *db.Profile) error {
	availability := p.Availability
	if availability == nil {
		availability = []db.AvailabilitySlot{}
	}

	update := profileUpdate{
		FirstName:    p.FirstName,
		LastName:     p.LastName,
		Email:        p.Email,
		Address:      p.Address,
		City:         p.City,
		PostalCode:   p.PostalCode,
		Latitude:     p.Latitude,
		Longitude:    p.Longitude,
		MaxDistance:  p.MaxDistance,
		Availability: availability,
		Interests:    orEmpty(p.Interests),
		Skills:       orEmpty(p.Skills),
		Languages:    orEmpty(p.Languages),
	}

	data, err := c.execute(ctx, profilesTable,
		c.from(profilesTable).Update(update, "representation", "").Eq("id", p.ID))
	if err != nil {
		return err
	}

	var updated db.Profile
	return decodeOne(data, &updated)
}

// GetAssociation returns the association with the given id
func (c *Client) GetAssociation(ctx context.Context, id string) (*db.Association, error) {
	data, err := c.execute(ctx, associationsTable, c.from(associationsTable).Select("*", "", false).Eq("id", id))
	if err != nil {
		return nil, err
	}

	var a db.Association
	if err := decodeOne(data, &a); err != nil {
		return nil, err
	}
	return &a, nil
}
