package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/voisinsolidaire/voisin/pkg/db"
)

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
		code     string
	}{
		{"nil", nil, "", "internal"},
		{"full", fmt.Errorf("failed to register: %w", db.ErrMissionFull), "Cette mission est complète.", "mission_full"},
		{"backend kind", &db.BackendError{Code: db.CodeUniqueViolation, Message: "duplicate key value", Kind: db.ErrAlreadyRegistered},
			"Vous êtes déjà inscrit(e) à cette mission.", "already_registered"},
		{"expired session", &db.BackendError{Status: 401, Code: db.CodeJWTExpired, Message: "JWT expired", Kind: db.ErrUnauthorized},
			"Votre session a expiré, veuillez vous reconnecter.", "unauthorized"},
		{"unclassified backend message", fmt.Errorf("failed: %w", &db.BackendError{Status: 500, Message: "Erreur du serveur de base"}),
			"Erreur du serveur de base", "internal"},
		{"timeout", fmt.Errorf("failed to fetch: %w", context.DeadlineExceeded),
			"Le serveur met trop de temps à répondre, veuillez réessayer.", "internal"},
		{"plain", errors.New("boom"), genericMessage, "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, UserMessage(tt.err))
			if tt.err != nil {
				assert.Equal(t, tt.code, ErrorCode(tt.err))
			}
		})
	}
}

func TestFieldMessages_NotValidation(t *testing.T) {
	assert.Nil(t, FieldMessages(errors.New("boom")))
	assert.Nil(t, FieldMessages(db.ErrValidation))
}

func TestSendConfirmationEmails(t *testing.T) {
	backend := newMockBackend()
	backend.profiles["alice"] = &db.Profile{ID: "alice", FirstName: "Alice", Email: "alice@example.fr"}
	backend.profiles["nomail"] = &db.Profile{ID: "nomail", FirstName: "Sans"}
	mission := publishedMission("m1")
	mission.Address = "3 rue des Lilas"
	mission.PostalCode = "75020"
	mission.City = "Paris"
	mission.MaterialsToBring = []string{"gants", "gourde"}
	mailer := &capturingMailer{}

	report := SendConfirmationEmails(context.Background(), backend, mailer, zap.NewNop(), mission, []db.MissionRegistration{
		{UserID: "alice"}, {UserID: "nomail"}, {UserID: "unknown"},
	})

	assert.Len(t, report.Sent, 1)
	assert.Len(t, report.Failed, 2)
	assert.Equal(t, "Inscription confirmée : Mission m1", mailer.subject)
	assert.True(t, strings.HasPrefix(mailer.body, "Bonjour Alice,"))
	assert.Contains(t, mailer.body, "Date : 2025-03-20 à 14:00")
	assert.Contains(t, mailer.body, "Lieu : 3 rue des Lilas, 75020 Paris")
	assert.Contains(t, mailer.body, "À apporter : gants, gourde")
	assert.Contains(t, mailer.body, "auprès de Les Restos")
}

func TestSendConfirmationEmails_CancelledContext(t *testing.T) {
	backend := newMockBackend()
	backend.profiles["alice"] = &db.Profile{ID: "alice", Email: "alice@example.fr"}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	mailer := &capturingMailer{}

	report := SendConfirmationEmails(ctx, backend, mailer, zap.NewNop(), publishedMission("m1"), []db.MissionRegistration{{UserID: "alice"}})

	assert.Empty(t, report.Sent)
	assert.Len(t, report.Failed, 1)
	assert.Empty(t, mailer.subject)
}

func TestSendConfirmationEmails_PassesCallerContext(t *testing.T) {
	backend := newMockBackend()
	backend.profiles["alice"] = &db.Profile{ID: "alice", FirstName: "Alice", Email: "alice@example.fr"}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	mailer := &mockMailer{}

	report := SendConfirmationEmails(ctx, backend, mailer, zap.NewNop(), publishedMission("m1"), []db.MissionRegistration{{UserID: "alice"}})

	require.Len(t, report.Sent, 1)
	require.Len(t, mailer.ctxs, 1)
	deadline, ok := mailer.ctxs[0].Deadline()
	require.True(t, ok, "the request deadline must reach the mailer")
	expected, _ := ctx.Deadline()
	assert.Equal(t, expected, deadline)
}

type capturingMailer struct {
	subject string
	body    string
}

func (m *capturingMailer) SendEmail(ctx context.Context, to, subject, body string) error {
	m.subject = subject
	m.body = body
	return nil
}
