package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/voisinsolidaire/voisin/pkg/db"
)

// EmailSender sends a plain-text email. ctx bounds both the wait for a send
// slot and the send itself.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// SentEmail records a delivered email
type SentEmail struct {
	UserID string
	Email  string
}

// FailedEmail records an email that could not be sent
type FailedEmail struct {
	UserID string
	Email  string
	Error  string
}

// EmailReport summarises a batch of emails
type EmailReport struct {
	Sent   []SentEmail
	Failed []FailedEmail
}

// SendConfirmationEmails tells each confirmed volunteer that their spot is
// held. Failures are collected and never abort the batch.
func SendConfirmationEmails(
	ctx context.Context,
	profiles db.ProfileStore,
	mailer EmailSender,
	logger *zap.Logger,
	mission *db.Mission,
	confirmed []db.MissionRegistration,
) *EmailReport {
	report := &EmailReport{}
	subject := fmt.Sprintf("Inscription confirmée : %s", mission.Title)

	for _, reg := range confirmed {
		if err := ctx.Err(); err != nil {
			report.Failed = append(report.Failed, FailedEmail{UserID: reg.UserID, Error: err.Error()})
			continue
		}

		profile, err := profiles.GetProfile(ctx, reg.UserID)
		if err != nil {
			logger.Warn("Failed to fetch volunteer profile", zap.String("user_id", reg.UserID), zap.Error(err))
			report.Failed = append(report.Failed, FailedEmail{UserID: reg.UserID, Error: err.Error()})
			continue
		}
		if profile.Email == "" {
			report.Failed = append(report.Failed, FailedEmail{UserID: reg.UserID, Error: "no email address"})
			continue
		}

		body := confirmationBody(profile, mission)
		if err := mailer.SendEmail(ctx, profile.Email, subject, body); err != nil {
			logger.Warn("Failed to send confirmation email", zap.String("email", profile.Email), zap.Error(err))
			report.Failed = append(report.Failed, FailedEmail{UserID: reg.UserID, Email: profile.Email, Error: err.Error()})
			continue
		}

		logger.Debug("Confirmation email sent", zap.String("email", profile.Email))
		report.Sent = append(report.Sent, SentEmail{UserID: reg.UserID, Email: profile.Email})
	}

	return report
}

func confirmationBody(profile *db.Profile, mission *db.Mission) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Bonjour %s,\n\n", profile.FirstName)
	fmt.Fprintf(&b, "Votre participation à la mission « %s » est confirmée.\n\n", mission.Title)
	fmt.Fprintf(&b, "Date : %s à %s\n", mission.Date, trimSeconds(mission.StartTime))
	fmt.Fprintf(&b, "Durée : %d minutes\n", mission.Duration)
	if place := missionPlace(mission); place != "" {
		fmt.Fprintf(&b, "Lieu : %s\n", place)
	}
	if len(mission.MaterialsToBring) > 0 {
		fmt.Fprintf(&b, "À apporter : %s\n", strings.Join(mission.MaterialsToBring, ", "))
	}
	if name := mission.AssociationName(); name != "" {
		fmt.Fprintf(&b, "\nMerci pour votre engagement auprès de %s !\n", name)
	} else {
		b.WriteString("\nMerci pour votre engagement !\n")
	}
	b.WriteString("\nL'équipe Voisin Solidaire\n")
	return b.String()
}

func missionPlace(m *db.Mission) string {
	var parts []string
	if m.Address != "" {
		parts = append(parts, m.Address)
	}
	city := strings.TrimSpace(m.PostalCode + " " + m.City)
	if city != "" {
		parts = append(parts, city)
	}
	return strings.Join(parts, ", ")
}

func trimSeconds(clock string) string {
	if len(clock) > len(db.TimeLayout) {
		return clock[:len(db.TimeLayout)]
	}
	return clock
}
