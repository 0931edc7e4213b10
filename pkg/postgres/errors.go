package postgres

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/voisinsolidaire/voisin/pkg/db"
)

// backendError converts a pgx error into a *db.BackendError carrying the SQLSTATE kind.
// Errors that are not database errors are wrapped with op and returned as is.
func backendError(op string, err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return &db.BackendError{
			Status:  statusForKind(db.KindForCode(pgErr.Code)),
			Code:    pgErr.Code,
			Message: pgErr.Message,
			Details: pgErr.Detail,
			Hint:    pgErr.Hint,
			Kind:    db.KindForCode(pgErr.Code),
		}
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return notFound(op)
	}

	return fmt.Errorf("failed to %s: %w", op, err)
}

// raise builds the error the mission procedures signal with a custom SQLSTATE
func raise(code, message string) *db.BackendError {
	kind := db.KindForCode(code)
	return &db.BackendError{
		Status:  statusForKind(kind),
		Code:    code,
		Message: message,
		Kind:    kind,
	}
}

func notFound(op string) *db.BackendError {
	return raise(db.CodeNoDataFound, op+": no matching row")
}

func statusForKind(kind error) int {
	switch {
	case kind == nil:
		return http.StatusInternalServerError
	case errors.Is(kind, db.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(kind, db.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(kind, db.ErrAlreadyRegistered):
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}
