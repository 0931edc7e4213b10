package postgres

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voisinsolidaire/voisin/pkg/db"
)

func TestBackendError_MapsSQLState(t *testing.T) {
	tests := []struct {
		code   string
		kind   error
		status int
	}{
		{db.CodeMissionFull, db.ErrMissionFull, http.StatusBadRequest},
		{db.CodeUniqueViolation, db.ErrAlreadyRegistered, http.StatusConflict},
		{db.CodeNoDataFound, db.ErrNotFound, http.StatusNotFound},
		{db.CodeInsufficientPriv, db.ErrUnauthorized, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := backendError("register", &pgconn.PgError{Code: tt.code, Message: "boom", Detail: "detail"})

			var be *db.BackendError
			require.ErrorAs(t, err, &be)
			assert.ErrorIs(t, err, tt.kind)
			assert.Equal(t, tt.status, be.Status)
			assert.Equal(t, "boom", be.Message)
			assert.Equal(t, "detail", be.Details)
		})
	}
}

func TestBackendError_UnknownSQLState(t *testing.T) {
	err := backendError("list missions", &pgconn.PgError{Code: "XX000", Message: "internal"})

	var be *db.BackendError
	require.ErrorAs(t, err, &be)
	assert.Nil(t, be.Kind)
	assert.Equal(t, http.StatusInternalServerError, be.Status)
}

func TestBackendError_NoRows(t *testing.T) {
	err := backendError("get mission", pgx.ErrNoRows)
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestBackendError_PlainError(t *testing.T) {
	assert.Nil(t, backendError("noop", nil))

	err := backendError("list missions", context.Canceled)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Contains(t, err.Error(), "failed to list missions")
}
