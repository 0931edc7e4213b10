package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/voisinsolidaire/voisin/pkg/db"
)

// Messages shown to users, keyed by error kind
var userMessages = []struct {
	kind    error
	message string
}{
	{db.ErrMissionFull, "Cette mission est complète."},
	{db.ErrAlreadyRegistered, "Vous êtes déjà inscrit(e) à cette mission."},
	{db.ErrMissionClosed, "Cette mission n'est plus ouverte aux inscriptions."},
	{db.ErrInvalidTransition, "Cette action n'est plus possible pour cette inscription."},
	{db.ErrValidation, "Certaines informations sont invalides."},
	{db.ErrUnauthorized, "Votre session a expiré, veuillez vous reconnecter."},
	{db.ErrNotFound, "Élément introuvable."},
	{context.DeadlineExceeded, "Le serveur met trop de temps à répondre, veuillez réessayer."},
	{context.Canceled, "Opération annulée."},
}

const genericMessage = "Une erreur est survenue, veuillez réessayer."

// UserMessage renders err as a French sentence for display.
// Unclassified backend errors surface the backend's own message.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	for _, um := range userMessages {
		if errors.Is(err, um.kind) {
			return um.message
		}
	}

	var be *db.BackendError
	if errors.As(err, &be) && be.Message != "" {
		return be.Message
	}
	return genericMessage
}

// ErrorCode returns a stable machine-readable code for err
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, db.ErrMissionFull):
		return "mission_full"
	case errors.Is(err, db.ErrAlreadyRegistered):
		return "already_registered"
	case errors.Is(err, db.ErrMissionClosed):
		return "mission_closed"
	case errors.Is(err, db.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, db.ErrValidation):
		return "validation"
	case errors.Is(err, db.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, db.ErrNotFound):
		return "not_found"
	}
	return "internal"
}

// FieldMessages lists inline messages per invalid field (nil when err holds
// no validation errors)
func FieldMessages(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}

	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		out[fe.Field()] = fieldMessage(fe)
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if":
		return "Ce champ est obligatoire."
	case "email":
		return "Adresse e-mail invalide."
	case "min":
		return fmt.Sprintf("Doit être au moins %s.", fe.Param())
	case "max":
		return fmt.Sprintf("Doit être au plus %s.", fe.Param())
	case "datetime":
		return fmt.Sprintf("Format attendu : %s.", fe.Param())
	case "latitude", "longitude":
		return "Coordonnée invalide."
	case "oneof":
		return fmt.Sprintf("Valeur attendue parmi : %s.", fe.Param())
	case "ltefield":
		return "Dépasse le nombre de places disponibles."
	}
	return "Valeur invalide."
}

// validationError tags validator output with db.ErrValidation, keeping the
// field errors reachable through errors.As
func validationError(err error) error {
	return fmt.Errorf("%w: %w", db.ErrValidation, err)
}
