package schedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/teambition/rrule-go"

	"github.com/voisinsolidaire/voisin/pkg/db"
)

// MaxOccurrences caps how many missions a single plan may draft
const MaxOccurrences = 52

// Template describes a recurring mission an association posts on a schedule
type Template struct {
	Name              string   `yaml:"name" validate:"required"`
	RRule             string   `yaml:"rrule" validate:"required"`
	Title             string   `yaml:"title" validate:"required,max=120"`
	Description       string   `yaml:"description" validate:"required"`
	ShortDescription  string   `yaml:"shortDescription,omitempty" validate:"max=280"`
	Category          string   `yaml:"category" validate:"required"`
	StartTime         string   `yaml:"startTime" validate:"required,datetime=15:04"`
	EndTime           string   `yaml:"endTime,omitempty" validate:"omitempty,datetime=15:04"`
	Duration          int      `yaml:"duration" validate:"required,min=1"`
	Spots             int      `yaml:"spots" validate:"required,min=1"`
	Address           string   `yaml:"address,omitempty"`
	City              string   `yaml:"city,omitempty"`
	PostalCode        string   `yaml:"postalCode,omitempty"`
	Latitude          *float64 `yaml:"latitude,omitempty" validate:"omitempty,latitude"`
	Longitude         *float64 `yaml:"longitude,omitempty" validate:"omitempty,longitude"`
	SkillsNeeded      []string `yaml:"skillsNeeded,omitempty"`
	LanguagesNeeded   []string `yaml:"languagesNeeded,omitempty"`
	MaterialsToBring  []string `yaml:"materialsToBring,omitempty"`
	MaterialsProvided []string `yaml:"materialsProvided,omitempty"`
}

// Occurrences returns up to count start times of rule on or after from.
// The rule is anchored at from's date and clock in from's location, so
// occurrences carry the clock time of from.
func Occurrences(rule string, from time.Time, count int) ([]time.Time, error) {
	if count <= 0 {
		return nil, fmt.Errorf("occurrence count must be positive, got %d", count)
	}
	if count > MaxOccurrences {
		count = MaxOccurrences
	}

	r, err := rrule.StrToRRule(strings.TrimPrefix(rule, "RRULE:"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse rrule %q: %w", rule, err)
	}
	r.DTStart(from)

	iter := r.Iterator()
	var out []time.Time
	for len(out) < count {
		next, ok := iter()
		if !ok {
			break
		}
		if next.Before(from) {
			continue
		}
		out = append(out, next)
	}
	return out, nil
}

// Plan drafts one mission per occurrence of t's rule, starting on from's date
// in from's location. Missions are returned as drafts for associationID.
func Plan(t Template, associationID string, from time.Time, count int) ([]db.Mission, error) {
	clock, err := time.Parse(db.TimeLayout, t.StartTime)
	if err != nil {
		return nil, fmt.Errorf("invalid start time %q for template %s: %w", t.StartTime, t.Name, err)
	}

	anchor := time.Date(from.Year(), from.Month(), from.Day(), clock.Hour(), clock.Minute(), 0, 0, from.Location())
	dates, err := Occurrences(t.RRule, anchor, count)
	if err != nil {
		return nil, fmt.Errorf("failed to expand template %s: %w", t.Name, err)
	}

	missions := make([]db.Mission, 0, len(dates))
	for _, d := range dates {
		missions = append(missions, db.Mission{
			ID:                uuid.New().String(),
			AssociationID:     associationID,
			Title:             t.Title,
			Description:       t.Description,
			ShortDescription:  t.ShortDescription,
			Category:          t.Category,
			Date:              d.Format(db.DateLayout),
			StartTime:         t.StartTime,
			EndTime:           t.EndTime,
			Duration:          t.Duration,
			SpotsAvailable:    t.Spots,
			Address:           t.Address,
			City:              t.City,
			PostalCode:        t.PostalCode,
			Latitude:          t.Latitude,
			Longitude:         t.Longitude,
			Status:            db.MissionDraft,
			SkillsNeeded:      t.SkillsNeeded,
			LanguagesNeeded:   t.LanguagesNeeded,
			MaterialsToBring:  t.MaterialsToBring,
			MaterialsProvided: t.MaterialsProvided,
		})
	}
	return missions, nil
}
