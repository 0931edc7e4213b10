package supabaseclient

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/supabase-community/postgrest-go"

	"github.com/voisinsolidaire/voisin/pkg/db"
)

const (
	missionsTable = "missions"
	// missionDetailsView flattens the association name into each row
	missionDetailsView = "mission_details"
	missionSelect      = "*,association:associations(id,name,verified,logo_url)"
)

// missionRow accepts the three mission shapes the backend produces: table rows
// with an embedded association, view rows with a flat association_name, and
// rows from search_nearby_missions carrying distance_km
type missionRow struct {
	db.Mission
	AssociationName     string   `json:"association_name"`
	AssociationVerified bool     `json:"association_verified"`
	AssociationLogoURL  string   `json:"association_logo_url"`
	DistanceKm          *float64 `json:"distance_km"`
}

func (r missionRow) normalize() db.Mission {
	m := r.Mission
	if m.Association == nil && r.AssociationName != "" {
		m.Association = &db.AssociationSummary{
			ID:       m.AssociationID,
			Name:     r.AssociationName,
			Verified: r.AssociationVerified,
			LogoURL:  r.AssociationLogoURL,
		}
	}
	if r.DistanceKm != nil {
		m.Distance = r.DistanceKm
	}
	m.StartTime = trimClock(m.StartTime)
	m.EndTime = trimClock(m.EndTime)
	return m
}

// trimClock turns HH:MM:SS into HH:MM
func trimClock(clock string) string {
	if len(clock) > len(db.TimeLayout) {
		return clock[:len(db.TimeLayout)]
	}
	return clock
}

func decodeMissions(data []byte) ([]db.Mission, error) {
	var rows []missionRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode missions: %w", err)
	}

	missions := make([]db.Mission, len(rows))
	for i, r := range rows {
		missions[i] = r.normalize()
	}
	return missions, nil
}

// ListMissions returns one page of missions. Text search goes through the
// mission_details view so the association name can be matched.
func (c *Client) ListMissions(ctx context.Context, q db.MissionQuery) ([]db.Mission, error) {
	q = q.Normalize()

	table, columns := missionsTable, missionSelect
	if q.Search != "" {
		table, columns = missionDetailsView, "*"
	}
	query := c.from(table).Select(columns, "", false).
		Eq("status", string(q.Status))

	// Filters are keyed by column, so the upper date bound and the text
	// search share one logic tree
	var tree []string
	if q.Search != "" {
		pattern := "*" + sanitizeSearch(q.Search) + "*"
		tree = append(tree, fmt.Sprintf("or(title.ilike.%[1]s,description.ilike.%[1]s,association_name.ilike.%[1]s)", pattern))
	}
	if q.DateFrom != "" {
		query = query.Gte("date", q.DateFrom)
	}
	if q.DateTo != "" {
		tree = append(tree, "date.lte."+q.DateTo)
	}
	if len(tree) > 0 {
		query = query.Or("and("+strings.Join(tree, ",")+")", "")
	}
	if q.Category != "" {
		query = query.Eq("category", q.Category)
	}
	if q.DurationMax > 0 {
		query = query.Lte("duration", strconv.Itoa(q.DurationMax))
	}
	if q.AssociationID != "" {
		query = query.Eq("association_id", q.AssociationID)
	}
	query = query.
		Order("date", &postgrest.OrderOpts{Ascending: true}).
		Order("start_time", &postgrest.OrderOpts{Ascending: true}).
		Range(q.Offset(), q.Offset()+q.PageSize-1, "")

	data, err := c.execute(ctx, table, query)
	if err != nil {
		return nil, err
	}
	return decodeMissions(data)
}

// sanitizeSearch drops the characters that delimit PostgREST logic trees
func sanitizeSearch(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ',', '(', ')', '*':
			return ' '
		}
		return r
	}, s)
}

// GetMission returns a single mission with its association summary
func (c *Client) GetMission(ctx context.Context, id string) (*db.Mission, error) {
	query := c.from(missionsTable).Select(missionSelect, "", false).Eq("id", id)

	data, err := c.execute(ctx, missionsTable, query)
	if err != nil {
		return nil, err
	}

	var row missionRow
	if err := decodeOne(data, &row); err != nil {
		return nil, err
	}
	m := row.normalize()
	return &m, nil
}

// SearchNearbyMissions calls the search_nearby_missions procedure
func (c *Client) SearchNearbyMissions(ctx context.Context, q db.NearbyQuery) ([]db.Mission, error) {
	args := map[string]any{
		"lat":      q.Lat,
		"lon":      q.Lon,
		"distance": q.DistanceKm,
	}
	if q.Category != "" {
		args["category"] = q.Category
	}
	if q.DateFrom != "" {
		args["date_from"] = q.DateFrom
	}
	if q.DateTo != "" {
		args["date_to"] = q.DateTo
	}
	if q.DurationMax > 0 {
		args["duration_max"] = q.DurationMax
	}
	if q.Language != "" {
		args["language"] = q.Language
	}

	data, err := c.rpc(ctx, "search_nearby_missions", args)
	if err != nil {
		return nil, err
	}
	return decodeMissions(data)
}

// missionInsert is the writable column set of a mission
type missionInsert struct {
	ID                string   `json:"id"`
	AssociationID     string   `json:"association_id"`
	Title             string   `json:"title"`
	Description       string   `json:"description"`
	ShortDescription  string   `json:"short_description"`
	Category          string   `json:"category"`
	Date              string   `json:"date"`
	StartTime         string   `json:"start_time"`
	EndTime           *string  `json:"end_time"`
	Duration          int      `json:"duration"`
	SpotsAvailable    int      `json:"spots_available"`
	SpotsTaken        int      `json:"spots_taken"`
	Address           string   `json:"address"`
	City              string   `json:"city"`
	PostalCode        string   `json:"postal_code"`
	Latitude          *float64 `json:"latitude"`
	Longitude         *float64 `json:"longitude"`
	Status            string   `json:"status"`
	Requirements      string   `json:"requirements"`
	SkillsNeeded      []string `json:"skills_needed"`
	LanguagesNeeded   []string `json:"languages_needed"`
	MaterialsProvided []string `json:"materials_provided"`
	MaterialsToBring  []string `json:"materials_to_bring"`
}

// InsertMission inserts a mission row
func (c *Client) InsertMission(ctx context.Context, m *db.Mission) error {
	row := missionInsert{
		ID:                m.ID,
		AssociationID:     m.AssociationID,
		Title:             m.Title,
		Description:       m.Description,
		ShortDescription:  m.ShortDescription,
		Category:          m.Category,
		Date:              m.Date,
		StartTime:         m.StartTime,
		Duration:          m.Duration,
		SpotsAvailable:    m.SpotsAvailable,
		SpotsTaken:        m.SpotsTaken,
		Address:           m.Address,
		City:              m.City,
		PostalCode:        m.PostalCode,
		Latitude:          m.Latitude,
		Longitude:         m.Longitude,
		Status:            string(m.Status),
		Requirements:      m.Requirements,
		SkillsNeeded:      orEmpty(m.SkillsNeeded),
		LanguagesNeeded:   orEmpty(m.LanguagesNeeded),
		MaterialsProvided: orEmpty(m.MaterialsProvided),
		MaterialsToBring:  orEmpty(m.MaterialsToBring),
	}
	if m.EndTime != "" {
		row.EndTime = &m.EndTime
	}

	_, err := c.execute(ctx, missionsTable, c.from(missionsTable).Insert(row, false, "", "minimal", ""))
	return err
}

// SetMissionStatus updates the status of a mission
func (c *Client) SetMissionStatus(ctx context.Context, id string, status db.MissionStatus) error {
	query := c.from(missionsTable).
		Update(map[string]string{"status": string(status)}, "representation", "").
		Eq("id", id)

	data, err := c.execute(ctx, missionsTable, query)
	if err != nil {
		return err
	}

	var row map[string]any
	return decodeOne(data, &row)
}

func orEmpty(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
