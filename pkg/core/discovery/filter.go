package discovery

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/voisinsolidaire/voisin/pkg/db"
)

// Availability selects a time window relative to now
type Availability string

const (
	AvailabilityAll   Availability = "all"
	AvailabilityNow   Availability = "now"
	AvailabilityToday Availability = "today"
	AvailabilityWeek  Availability = "week"
)

const (
	// UrgencyWindow is how soon a mission must start to count as urgent
	UrgencyWindow = 48 * time.Hour

	// NowWindow is how soon a mission must start to match the "now" availability
	NowWindow = 2 * time.Hour
)

// Duration buckets offered by the explorer
const (
	DurationQuick = 15
	DurationShort = 30
	DurationLong  = 60
)

// Criteria holds the explorer's filter controls. Zero values are inactive.
type Criteria struct {
	Query        string
	Category     string
	DurationMax  int
	UrgencyOnly  bool
	DistanceMax  float64
	Availability Availability
}

// ParseAvailability validates an availability string ("" means all)
func ParseAvailability(s string) (Availability, error) {
	switch a := Availability(strings.ToLower(strings.TrimSpace(s))); a {
	case "", AvailabilityAll:
		return AvailabilityAll, nil
	case AvailabilityNow, AvailabilityToday, AvailabilityWeek:
		return a, nil
	}
	return "", fmt.Errorf("unknown availability %q (expected all, now, today or week)", s)
}

// Filter returns the missions that satisfy every active criterion.
// It never modifies missions; the returned slice is newly allocated.
func Filter(missions []db.Mission, c Criteria, now time.Time) []db.Mission {
	preds := c.predicates(now)
	result := make([]db.Mission, 0, len(missions))
	for i := range missions {
		if matchesAll(&missions[i], preds) {
			result = append(result, missions[i])
		}
	}
	return result
}

// Matches reports whether a single mission satisfies every active criterion
func (c Criteria) Matches(m *db.Mission, now time.Time) bool {
	return matchesAll(m, c.predicates(now))
}

type predicate func(m *db.Mission) bool

func matchesAll(m *db.Mission, preds []predicate) bool {
	for _, p := range preds {
		if !p(m) {
			return false
		}
	}
	return true
}

// predicates builds the active predicate chain; inactive criteria add nothing
func (c Criteria) predicates(now time.Time) []predicate {
	var preds []predicate

	if q := strings.TrimSpace(c.Query); q != "" {
		preds = append(preds, textPredicate(q))
	}
	if c.Category != "" {
		category := c.Category
		preds = append(preds, func(m *db.Mission) bool { return m.Category == category })
	}
	if c.DurationMax > 0 {
		preds = append(preds, durationPredicate(c.DurationMax))
	}
	if c.UrgencyOnly {
		preds = append(preds, func(m *db.Mission) bool { return isUrgent(m, now) })
	}
	if c.DistanceMax > 0 {
		max := c.DistanceMax
		preds = append(preds, func(m *db.Mission) bool { return m.Distance != nil && *m.Distance <= max })
	}
	if c.Availability != "" && c.Availability != AvailabilityAll {
		preds = append(preds, availabilityPredicate(c.Availability, now))
	}

	return preds
}

func textPredicate(query string) predicate {
	folder := cases.Fold()
	needle := folder.String(query)
	return func(m *db.Mission) bool {
		return strings.Contains(folder.String(m.Title), needle) ||
			strings.Contains(folder.String(m.AssociationName()), needle) ||
			strings.Contains(folder.String(m.Description), needle)
	}
}

// durationPredicate keeps the explorer's bucket semantics: the 60 bucket
// selects missions longer than an hour while the others are upper bounds.
func durationPredicate(bucket int) predicate {
	if bucket == DurationLong {
		return func(m *db.Mission) bool { return m.Duration > DurationLong }
	}
	return func(m *db.Mission) bool { return m.Duration <= bucket }
}

func isUrgent(m *db.Mission, now time.Time) bool {
	start, err := m.StartsAt(now.Location())
	if err != nil {
		return false
	}
	return !start.Before(now) && start.Sub(now) <= UrgencyWindow
}

func availabilityPredicate(a Availability, now time.Time) predicate {
	today := startOfDay(now)
	return func(m *db.Mission) bool {
		day, err := time.ParseInLocation(db.DateLayout, m.Date, now.Location())
		if err != nil {
			return false
		}

		switch a {
		case AvailabilityToday:
			return day.Equal(today)
		case AvailabilityWeek:
			return !day.Before(today) && day.Before(today.AddDate(0, 0, 7))
		case AvailabilityNow:
			if !day.Equal(today) {
				return false
			}
			start, err := m.StartsAt(now.Location())
			if err != nil {
				return false
			}
			end, err := m.EndsAt(now.Location())
			if err != nil {
				return false
			}
			return end.After(now) && start.Sub(now) <= NowWindow
		}
		return true
	}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
