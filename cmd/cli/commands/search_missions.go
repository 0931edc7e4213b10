package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/voisinsolidaire/voisin/pkg/core/discovery"
	"github.com/voisinsolidaire/voisin/pkg/core/services"
	"github.com/voisinsolidaire/voisin/pkg/db"
)

// SearchMissionsCmd creates the searchMissions command
func SearchMissionsCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "searchMissions [query]",
		Short: "List published missions matching the explorer filters",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			category, _ := flags.GetString("category")
			duration, _ := flags.GetInt("duration")
			urgent, _ := flags.GetBool("urgent")
			distance, _ := flags.GetFloat64("distance")
			availabilityFlag, _ := flags.GetString("availability")
			page, _ := flags.GetInt("page")
			serverSearch, _ := flags.GetBool("server-search")

			availability, err := discovery.ParseAvailability(availabilityFlag)
			if err != nil {
				return err
			}

			criteria := discovery.Criteria{
				Category:     category,
				DurationMax:  duration,
				UrgencyOnly:  urgent,
				DistanceMax:  distance,
				Availability: availability,
			}
			q := db.MissionQuery{Category: category, Page: page, PageSize: app.Cfg.PageSize}
			if len(args) > 0 {
				criteria.Query = args[0]
				if serverSearch {
					q.Search = args[0]
				}
			}

			app.Logger.Debug("searchMissions command",
				zap.String("query", criteria.Query),
				zap.String("availability", string(availability)),
				zap.Int("page", page))

			result, err := services.SearchMissions(app.Ctx, app.Backend, app.Logger, q, criteria,
				viewerProfile(app), time.Now().In(app.Cfg.Location()))
			if err != nil {
				return err
			}

			fmt.Printf("\n%d missions (page %d)\n\n", len(result.Missions), result.Page+1)
			for i := range result.Missions {
				m := &result.Missions[i]
				fmt.Printf("  %s\n  %s%s%s\n\n", missionLine(m), colorDim, m.ID, colorReset)
			}
			if result.Fetched == app.Cfg.PageSize {
				fmt.Printf("More missions available: --page %d\n", page+1)
			}
			return nil
		},
	}

	cmd.Flags().String("category", "", "Only missions of this category")
	cmd.Flags().Int("duration", 0, "Duration bucket in minutes (15, 30 or 60 for longer than an hour)")
	cmd.Flags().Bool("urgent", false, "Only missions starting within 48 hours")
	cmd.Flags().Float64("distance", 0, "Maximum distance in km from your profile location")
	cmd.Flags().String("availability", "all", "all, now, today or week")
	cmd.Flags().Int("page", 0, "Zero-based page number")
	cmd.Flags().Bool("server-search", false, "Also filter the text query on the backend")

	return cmd
}

// viewerProfile loads the acting user's profile for distance annotation
func viewerProfile(app *AppContext) *db.Profile {
	if app.UserID == "" {
		return nil
	}
	profile, err := app.Backend.GetProfile(app.Ctx, app.UserID)
	if err != nil {
		if !errors.Is(err, db.ErrNotFound) {
			app.Logger.Warn("Failed to load profile", zap.Error(err))
		}
		return nil
	}
	return profile
}

// NearbyMissionsCmd creates the nearbyMissions command
func NearbyMissionsCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nearbyMissions <lat> <lon>",
		Short: "List missions within a radius of a point, closest first",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var lat, lon float64
			if _, err := fmt.Sscanf(args[0]+" "+args[1], "%g %g", &lat, &lon); err != nil {
				return fmt.Errorf("lat and lon must be numbers: %w", err)
			}

			flags := cmd.Flags()
			distance, _ := flags.GetFloat64("distance")
			category, _ := flags.GetString("category")
			from, _ := flags.GetString("from")
			to, _ := flags.GetString("to")
			durationMax, _ := flags.GetInt("duration-max")
			language, _ := flags.GetString("language")

			missions, err := services.NearbyMissions(app.Ctx, app.Backend, app.Logger, db.NearbyQuery{
				Lat:         lat,
				Lon:         lon,
				DistanceKm:  distance,
				Category:    category,
				DateFrom:    from,
				DateTo:      to,
				DurationMax: durationMax,
				Language:    language,
			})
			if err != nil {
				return err
			}

			fmt.Printf("\n%d missions within %.0f km\n\n", len(missions), distance)
			for i := range missions {
				fmt.Printf("  %s\n  %s%s%s\n\n", missionLine(&missions[i]), colorDim, missions[i].ID, colorReset)
			}
			return nil
		},
	}

	cmd.Flags().Float64("distance", 10, "Search radius in km")
	cmd.Flags().String("category", "", "Only missions of this category")
	cmd.Flags().String("from", "", "Earliest date (YYYY-MM-DD), defaults to today")
	cmd.Flags().String("to", "", "Latest date (YYYY-MM-DD)")
	cmd.Flags().Int("duration-max", 0, "Maximum duration in minutes")
	cmd.Flags().String("language", "", "Required language")

	return cmd
}
