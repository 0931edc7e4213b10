package postgres

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/voisinsolidaire/voisin/pkg/core/geo"
	"github.com/voisinsolidaire/voisin/pkg/db"
)

const missionColumns = `
	m.id::text, m.association_id::text, m.title, m.description, m.short_description,
	m.category, m.date, to_char(m.start_time, 'HH24:MI'), COALESCE(to_char(m.end_time, 'HH24:MI'), ''),
	m.duration, m.spots_available, m.spots_taken, m.address, m.city, m.postal_code,
	m.latitude, m.longitude, m.status, m.requirements, m.skills_needed, m.languages_needed,
	m.materials_provided, m.materials_to_bring,
	a.id::text, a.name, a.verified, a.logo_url`

const missionFrom = `
	FROM missions m
	JOIN associations a ON a.id = m.association_id`

// conditions accumulates WHERE clauses with positional arguments
type conditions struct {
	clauses []string
	args    []any
}

func (c *conditions) add(clause string, arg any) {
	c.args = append(c.args, arg)
	c.clauses = append(c.clauses, fmt.Sprintf(clause, len(c.args)))
}

func (c *conditions) where() string {
	if len(c.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(c.clauses, " AND ")
}

// next returns the placeholder for an extra trailing argument
func (c *conditions) next(arg any) string {
	c.args = append(c.args, arg)
	return fmt.Sprintf("$%d", len(c.args))
}

func scanMission(row pgx.Row) (db.Mission, error) {
	var m db.Mission
	var date time.Time
	var status string
	var assoc db.AssociationSummary
	err := row.Scan(
		&m.ID, &m.AssociationID, &m.Title, &m.Description, &m.ShortDescription,
		&m.Category, &date, &m.StartTime, &m.EndTime,
		&m.Duration, &m.SpotsAvailable, &m.SpotsTaken, &m.Address, &m.City, &m.PostalCode,
		&m.Latitude, &m.Longitude, &status, &m.Requirements, &m.SkillsNeeded, &m.LanguagesNeeded,
		&m.MaterialsProvided, &m.MaterialsToBring,
		&assoc.ID, &assoc.Name, &assoc.Verified, &assoc.LogoURL,
	)
	if err != nil {
		return m, err
	}
	m.Date = date.Format(db.DateLayout)
	m.Status = db.MissionStatus(status)
	m.Association = &assoc
	return m, nil
}

func collectMissions(rows pgx.Rows) ([]db.Mission, error) {
	defer rows.Close()

	var missions []db.Mission
	for rows.Next() {
		m, err := scanMission(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan mission: %w", err)
		}
		missions = append(missions, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating missions: %w", err)
	}

	return missions, nil
}

// ListMissions returns one page of missions ordered by date and start time
func (d *DB) ListMissions(ctx context.Context, q db.MissionQuery) ([]db.Mission, error) {
	q = q.Normalize()

	var c conditions
	c.add("m.status = $%d", string(q.Status))
	if q.DateFrom != "" {
		c.add("m.date >= $%d", q.DateFrom)
	}
	if q.DateTo != "" {
		c.add("m.date <= $%d", q.DateTo)
	}
	if q.Category != "" {
		c.add("m.category = $%d", q.Category)
	}
	if q.DurationMax > 0 {
		c.add("m.duration <= $%d", q.DurationMax)
	}
	if q.AssociationID != "" {
		c.add("m.association_id = $%d", q.AssociationID)
	}
	if q.Search != "" {
		c.add("(m.title ILIKE $%[1]d OR m.description ILIKE $%[1]d OR a.name ILIKE $%[1]d)", "%"+q.Search+"%")
	}

	sql := "SELECT" + missionColumns + missionFrom + c.where() +
		" ORDER BY m.date, m.start_time, m.id" +
		" LIMIT " + c.next(q.PageSize) + " OFFSET " + c.next(q.Offset())

	rows, err := d.pool.Query(ctx, sql, c.args...)
	if err != nil {
		return nil, backendError("query missions", err)
	}

	return collectMissions(rows)
}

// GetMission returns a single mission with its association summary
func (d *DB) GetMission(ctx context.Context, id string) (*db.Mission, error) {
	row := d.pool.QueryRow(ctx, "SELECT"+missionColumns+missionFrom+" WHERE m.id = $1", id)
	m, err := scanMission(row)
	if err != nil {
		return nil, backendError("get mission", err)
	}
	return &m, nil
}

// SearchNearbyMissions returns published missions within q.DistanceKm of the given point,
// nearest first. Rows are prefiltered with a bounding box, then checked with haversine.
func (d *DB) SearchNearbyMissions(ctx context.Context, q db.NearbyQuery) ([]db.Mission, error) {
	center := geo.Point{Lat: q.Lat, Lon: q.Lon}
	minLat, maxLat, minLon, maxLon := geo.BoundingBox(center, q.DistanceKm)

	var c conditions
	c.add("m.status = $%d", string(db.MissionPublished))
	c.add("m.latitude >= $%d", minLat)
	c.add("m.latitude <= $%d", maxLat)
	c.add("m.longitude >= $%d", minLon)
	c.add("m.longitude <= $%d", maxLon)
	if q.DateFrom != "" {
		c.add("m.date >= $%d", q.DateFrom)
	} else {
		c.clauses = append(c.clauses, "m.date >= CURRENT_DATE")
	}
	if q.DateTo != "" {
		c.add("m.date <= $%d", q.DateTo)
	}
	if q.Category != "" {
		c.add("m.category = $%d", q.Category)
	}
	if q.DurationMax > 0 {
		c.add("m.duration <= $%d", q.DurationMax)
	}
	if q.Language != "" {
		c.add("$%d = ANY(m.languages_needed)", q.Language)
	}

	rows, err := d.pool.Query(ctx, "SELECT"+missionColumns+missionFrom+c.where(), c.args...)
	if err != nil {
		return nil, backendError("search nearby missions", err)
	}

	candidates, err := collectMissions(rows)
	if err != nil {
		return nil, err
	}

	return withinRadius(candidates, center, q.DistanceKm), nil
}

// withinRadius keeps missions at most radiusKm from center, sets their Distance
// and sorts them nearest first
func withinRadius(missions []db.Mission, center geo.Point, radiusKm float64) []db.Mission {
	nearby := make([]db.Mission, 0, len(missions))
	for _, m := range geo.Annotate(missions, &center) {
		if m.Distance != nil && *m.Distance <= radiusKm {
			nearby = append(nearby, m)
		}
	}

	sort.SliceStable(nearby, func(i, j int) bool {
		return *nearby[i].Distance < *nearby[j].Distance
	})

	return nearby
}

// execer is the statement surface shared by the pool and a transaction
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// InsertMission inserts a new mission row and counts it on its association,
// both in one transaction
func (d *DB) InsertMission(ctx context.Context, mission *db.Mission) error {
	return d.inTx(ctx, func(tx pgx.Tx) error {
		return insertMission(ctx, tx, mission)
	})
}

func insertMission(ctx context.Context, tx execer, mission *db.Mission) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO missions (
			id, association_id, title, description, short_description, category,
			date, start_time, end_time, duration, spots_available, spots_taken,
			address, city, postal_code, latitude, longitude, status, requirements,
			skills_needed, languages_needed, materials_provided, materials_to_bring
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, $23)
	`,
		mission.ID, mission.AssociationID, mission.Title, mission.Description, mission.ShortDescription,
		mission.Category, mission.Date, mission.StartTime, nullIfEmpty(mission.EndTime),
		mission.Duration, mission.SpotsAvailable, mission.SpotsTaken,
		mission.Address, mission.City, mission.PostalCode, mission.Latitude, mission.Longitude,
		string(mission.Status), mission.Requirements,
		nonNil(mission.SkillsNeeded), nonNil(mission.LanguagesNeeded),
		nonNil(mission.MaterialsProvided), nonNil(mission.MaterialsToBring),
	)
	if err != nil {
		return backendError("insert mission", err)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE associations SET total_missions_created = total_missions_created + 1 WHERE id = $1
	`, mission.AssociationID)
	if err != nil {
		return backendError("update association stats", err)
	}
	if tag.RowsAffected() == 0 {
		return notFound("update association stats")
	}

	return nil
}

// SetMissionStatus updates the status of a mission
func (d *DB) SetMissionStatus(ctx context.Context, id string, status db.MissionStatus) error {
	tag, err := d.pool.Exec(ctx, `UPDATE missions SET status = $2 WHERE id = $1`, id, string(status))
	if err != nil {
		return backendError("set mission status", err)
	}
	if tag.RowsAffected() == 0 {
		return notFound("set mission status")
	}
	return nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// nonNil avoids writing NULL into NOT NULL array columns
func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
