package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

// ValidationError reports a request missing a required field. Reason is
// returned to the caller verbatim.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

// requestError is any other rejection with a fixed status.
type requestError struct {
	status int
	reason string
}

func (e *requestError) Error() string {
	return e.reason
}

var (
	errMissingFields = &ValidationError{Reason: "Missing fields"}
	errMissingSender = &ValidationError{Reason: "Missing senderId"}

	errInvalidBody  = &requestError{status: http.StatusBadRequest, reason: "Invalid request body"}
	errBodyTooLarge = &requestError{status: http.StatusRequestEntityTooLarge, reason: "Request body too large"}
	errRateLimited  = &requestError{status: http.StatusTooManyRequests, reason: "Rate limit exceeded"}
)

func (s *Server) writeError(w http.ResponseWriter, err error) {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: validationErr.Reason})
		return
	}

	var reqErr *requestError
	if errors.As(err, &reqErr) {
		writeJSON(w, reqErr.status, ErrorResponse{Error: reqErr.reason})
		return
	}

	s.logger.Error("Request failed", "error", err)
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Internal server error"})
}

// decodeJSON reads a JSON body of at most limit bytes into dst. An empty
// body leaves dst untouched so the caller's field validation reports it.
func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, dst any) error {
	body := http.MaxBytesReader(w, r.Body, limit)
	defer body.Close()

	if err := json.NewDecoder(body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return errBodyTooLarge
		}
		return errInvalidBody
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
