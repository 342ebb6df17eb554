package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/shop-service/internal/item"
	"github.com/vasiliy-maslov/shop-service/internal/member"
	"github.com/vasiliy-maslov/shop-service/internal/order"
	"github.com/vasiliy-maslov/shop-service/internal/store"
)

type ValidationErrorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details"`
}

// respondWithError writes a JSON error body.
func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Failed to marshal JSON response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(response); err != nil {
		log.Error().Err(err).Msg("Failed to write JSON response")
	}
}

func mapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, member.ErrNotFound),
		errors.Is(err, item.ErrNotFound),
		errors.Is(err, item.ErrCategoryNotFound),
		errors.Is(err, order.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, item.ErrInsufficientStock):
		return http.StatusUnprocessableEntity
	case errors.Is(err, member.ErrDuplicateName),
		errors.Is(err, store.ErrConflict),
		errors.Is(err, store.ErrUniqueViolation),
		errors.Is(err, order.ErrAlreadyDelivered),
		errors.Is(err, order.ErrAlreadyCancelled):
		return http.StatusConflict
	case errors.Is(err, order.ErrMultipleCollectionFetch),
		errors.Is(err, order.ErrPaginatedCollectionJoin),
		errors.Is(err, order.ErrInvalidPage),
		errors.Is(err, order.ErrUnknownStrategy),
		errors.Is(err, order.ErrEmptyOrder),
		errors.Is(err, item.ErrInvalidItem),
		errors.Is(err, item.ErrInvalidQuantity):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondWithServiceError hides internal failures behind fallback; domain errors
// are reported with their own message.
func respondWithServiceError(w http.ResponseWriter, err error, fallback string) {
	code := mapErrorToStatusCode(err)
	if code == http.StatusInternalServerError {
		log.Error().Err(err).Msg(fallback)
		respondWithError(w, code, fallback)
		return
	}
	log.Warn().Err(err).Int("status", code).Msg("Request rejected")
	respondWithError(w, code, err.Error())
}

func formatValidationErrors(errs validator.ValidationErrors) map[string]string {
	details := make(map[string]string, len(errs))
	for _, fe := range errs {
		if fe.Param() != "" {
			details[fe.Field()] = fmt.Sprintf("%s=%s", fe.Tag(), fe.Param())
			continue
		}
		details[fe.Field()] = fe.Tag()
	}
	return details
}

// validateRequest writes the response and returns false when payload is invalid.
func validateRequest(w http.ResponseWriter, validate *validator.Validate, payload any) bool {
	err := validate.Struct(payload)
	if err == nil {
		return true
	}

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		respondWithJSON(w, http.StatusBadRequest, ValidationErrorResponse{
			Error:   "Validation failed",
			Details: formatValidationErrors(validationErrors),
		})
		return false
	}

	log.Error().Err(err).Type("validation_error_type", err).Msg("Unexpected error type during validation")
	respondWithError(w, http.StatusInternalServerError, "Internal validation error")
	return false
}

// decodeRequest decodes a JSON body and validates it.
func decodeRequest(w http.ResponseWriter, r *http.Request, validate *validator.Validate, payload any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(payload); err != nil {
		log.Warn().Err(err).Msg("Failed to decode request body")
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request payload: %v", err))
		return false
	}
	return validateRequest(w, validate, payload)
}

func parseIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	idParam := chi.URLParam(r, "id")
	id, err := uuid.FromString(idParam)
	if err != nil {
		log.Warn().Err(err).Str("id", idParam).Msg("Failed to parse id parameter from URL")
		respondWithError(w, http.StatusBadRequest, "Invalid id parameter")
		return uuid.Nil, false
	}
	return id, true
}
