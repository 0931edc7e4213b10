package services

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/voisinsolidaire/voisin/pkg/core/discovery"
	"github.com/voisinsolidaire/voisin/pkg/core/geo"
	"github.com/voisinsolidaire/voisin/pkg/core/schedule"
	"github.com/voisinsolidaire/voisin/pkg/db"
)

var validate = validator.New()

// MaxNearbyRadiusKm bounds geospatial searches
const MaxNearbyRadiusKm = 200

// MissionLister is the read side needed by the explorer
type MissionLister interface {
	ListMissions(ctx context.Context, q db.MissionQuery) ([]db.Mission, error)
}

// SearchResult is a page of explorer results
type SearchResult struct {
	Missions []db.Mission
	// Fetched is the number of rows the backend returned before local filtering
	Fetched int
	Page    int
}

// SearchMissions fetches one page of missions, annotates them with the
// viewer's distance and applies the explorer criteria locally
func SearchMissions(
	ctx context.Context,
	store MissionLister,
	logger *zap.Logger,
	q db.MissionQuery,
	criteria discovery.Criteria,
	viewer *db.Profile,
	now time.Time,
) (*SearchResult, error) {
	q = q.Normalize()
	logger.Debug("Searching missions",
		zap.String("status", string(q.Status)),
		zap.Int("page", q.Page),
		zap.Int("page_size", q.PageSize),
		zap.String("query", criteria.Query))

	missions, err := store.ListMissions(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch missions: %w", err)
	}

	annotated := geo.Annotate(missions, geo.PointOf(viewer))
	filtered := discovery.Filter(annotated, criteria, now)

	logger.Debug("Missions filtered",
		zap.Int("fetched", len(missions)),
		zap.Int("kept", len(filtered)))

	return &SearchResult{Missions: filtered, Fetched: len(missions), Page: q.Page}, nil
}

// NearbyMissions runs a geospatial search around q's point. Rows the backend
// returns without a distance get one computed locally.
func NearbyMissions(ctx context.Context, store db.MissionStore, logger *zap.Logger, q db.NearbyQuery) ([]db.Mission, error) {
	if q.DistanceKm <= 0 || q.DistanceKm > MaxNearbyRadiusKm {
		return nil, fmt.Errorf("search radius must be in (0, %d] km, got %.1f: %w", MaxNearbyRadiusKm, q.DistanceKm, db.ErrValidation)
	}
	if q.Lat < -90 || q.Lat > 90 || q.Lon < -180 || q.Lon > 180 {
		return nil, fmt.Errorf("invalid coordinates %.5f,%.5f: %w", q.Lat, q.Lon, db.ErrValidation)
	}

	logger.Debug("Searching nearby missions",
		zap.Float64("lat", q.Lat),
		zap.Float64("lon", q.Lon),
		zap.Float64("distance_km", q.DistanceKm))

	missions, err := store.SearchNearbyMissions(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to search nearby missions: %w", err)
	}

	lat, lon := q.Lat, q.Lon
	for i := range missions {
		if missions[i].Distance == nil {
			missions[i].Distance = geo.Between(&lat, &lon, missions[i].Latitude, missions[i].Longitude)
		}
	}

	logger.Debug("Nearby missions found", zap.Int("count", len(missions)))
	return missions, nil
}

// SaveDraft validates a mission and stores it as a draft
func SaveDraft(ctx context.Context, store db.MissionStore, logger *zap.Logger, mission *db.Mission) error {
	mission.Status = db.MissionDraft
	mission.SpotsTaken = 0
	if err := validate.Struct(mission); err != nil {
		return fmt.Errorf("invalid mission %q: %w", mission.Title, validationError(err))
	}

	if err := store.InsertMission(ctx, mission); err != nil {
		return fmt.Errorf("failed to insert mission: %w", err)
	}

	logger.Info("Mission draft saved", zap.String("mission_id", mission.ID), zap.String("date", mission.Date))
	return nil
}

var missionTransitions = map[db.MissionStatus][]db.MissionStatus{
	db.MissionDraft:     {db.MissionPublished, db.MissionCancelled},
	db.MissionPublished: {db.MissionCompleted, db.MissionCancelled},
}

// SetMissionStatus moves a mission along draft -> published -> completed|cancelled
func SetMissionStatus(ctx context.Context, store db.MissionStore, logger *zap.Logger, missionID string, status db.MissionStatus) (*db.Mission, error) {
	mission, err := store.GetMission(ctx, missionID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch mission %s: %w", missionID, err)
	}

	allowed := false
	for _, next := range missionTransitions[mission.Status] {
		if next == status {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, fmt.Errorf("cannot move mission %s from %s to %s: %w", missionID, mission.Status, status, db.ErrInvalidTransition)
	}

	if err := store.SetMissionStatus(ctx, missionID, status); err != nil {
		return nil, fmt.Errorf("failed to update mission %s: %w", missionID, err)
	}

	logger.Info("Mission status updated",
		zap.String("mission_id", missionID),
		zap.String("from", string(mission.Status)),
		zap.String("to", string(status)))

	mission.Status = status
	return mission, nil
}

// PublishMission publishes a draft
func PublishMission(ctx context.Context, store db.MissionStore, logger *zap.Logger, missionID string) (*db.Mission, error) {
	return SetMissionStatus(ctx, store, logger, missionID, db.MissionPublished)
}

// PlanSeriesResult lists the drafts created for a template
type PlanSeriesResult struct {
	Template string
	Missions []db.Mission
	DryRun   bool
}

// PlanSeries expands a recurring template into draft missions from the given
// day. With dryRun the drafts are returned without being stored.
func PlanSeries(
	ctx context.Context,
	store db.MissionStore,
	logger *zap.Logger,
	tpl schedule.Template,
	associationID string,
	from time.Time,
	count int,
	dryRun bool,
) (*PlanSeriesResult, error) {
	missions, err := schedule.Plan(tpl, associationID, from, count)
	if err != nil {
		return nil, err
	}

	logger.Debug("Series planned",
		zap.String("template", tpl.Name),
		zap.Int("occurrences", len(missions)),
		zap.Bool("dry_run", dryRun))

	if !dryRun {
		for i := range missions {
			if err := SaveDraft(ctx, store, logger, &missions[i]); err != nil {
				return nil, fmt.Errorf("failed to save occurrence %s: %w", missions[i].Date, err)
			}
		}
	}

	return &PlanSeriesResult{Template: tpl.Name, Missions: missions, DryRun: dryRun}, nil
}
