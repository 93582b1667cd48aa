package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/avolkov/authgate/internal/common"
)

// errorBody is the JSON envelope of every non-2xx response. Detail is either
// a message string or a field-to-message map produced by request validation.
type errorBody struct {
	Detail any `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// respondError translates a service error into a status code and a JSON body.
// Unknown errors become a generic 500 so that internals never leak to clients.
func respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, common.ErrValidation):
		writeJSON(w, http.StatusBadRequest, errorBody{Detail: err.Error()})
	case errors.Is(err, common.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Detail: "not found"})
	case errors.Is(err, common.ErrNoUpdateData):
		writeJSON(w, http.StatusNotFound, errorBody{Detail: "no data to update"})
	case errors.Is(err, common.ErrAlreadyExists):
		writeJSON(w, http.StatusConflict, errorBody{Detail: "already exists"})
	case errors.Is(err, common.ErrInvalidCredentials):
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeJSON(w, http.StatusUnauthorized, errorBody{Detail: "invalid credentials"})
	case errors.Is(err, common.ErrUnauthenticated), errors.Is(err, common.ErrInvalidToken):
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeJSON(w, http.StatusUnauthorized, errorBody{Detail: "not authenticated"})
	case errors.Is(err, common.ErrForbidden):
		writeJSON(w, http.StatusForbidden, errorBody{Detail: "forbidden"})
	default:
		writeJSON(w, http.StatusInternalServerError, errorBody{Detail: "internal server error"})
	}
}

// respondValidation reports a failed request validation. ozzo's error values
// marshal into a field-to-message object, which is passed through as detail.
func respondValidation(w http.ResponseWriter, err error) {
	var detail any = err.Error()
	if _, ok := err.(json.Marshaler); ok {
		detail = err
	}
	writeJSON(w, http.StatusBadRequest, errorBody{Detail: detail})
}
