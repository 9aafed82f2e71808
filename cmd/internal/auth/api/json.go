package authapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"authsidecar/cmd/internal/auth/session"
)

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error apiError `json:"error"`
}

var errEmptyBody = errors.New("empty body")

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: apiError{Code: code, Message: msg}})
}

// WriteInternalError renders the generic internal error body. Middleware uses
// it for recovered panics.
func WriteInternalError(w http.ResponseWriter) {
	writeError(w, http.StatusInternalServerError, session.Code(session.ErrInternal), session.PublicMessage(session.ErrInternal))
}

// StatusFor maps a service error to its HTTP status.
func StatusFor(err error) int {
	switch session.KindOf(err) {
	case session.ErrInvalidInput:
		return http.StatusBadRequest
	case session.ErrAccountExists:
		return http.StatusConflict
	case session.ErrInvalidCredentials, session.ErrUnauthenticated:
		return http.StatusUnauthorized
	case session.ErrStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError renders err using only its kind. The cause never reaches
// the client.
func writeServiceError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", strconv.Itoa(1))
	}
	writeError(w, status, session.Code(err), session.PublicMessage(err))
}

// decodeJSON reads one JSON object. Unknown fields are ignored so clients can
// send extra profile data; trailing data is rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, maxBytes int64, dst any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return errEmptyBody
	}
	defer func() { _ = r.Body.Close() }()

	body := http.MaxBytesReader(w, r.Body, maxBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return err
	}
	// Ensure there is no extra data after the first JSON value.
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("extra data after JSON object")
	}
	return nil
}

// bodyErrorMessage describes a decode failure without echoing input.
func bodyErrorMessage(err error) string {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return "request body too large"
	case errors.Is(err, errEmptyBody):
		return "request body is required"
	default:
		return "invalid request body"
	}
}
