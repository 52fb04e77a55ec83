package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/retailcore/noos-go/internal/domain/shared"
)

// errorBody is the wire shape for every failed request
type errorBody struct {
	ErrorCode string   `json:"errorCode"`
	Message   string   `json:"message"`
	Details   []string `json:"details,omitempty"`
}

// maxJSONBody bounds JSON request bodies; uploads use their own multipart
// limit
const maxJSONBody = 1 << 20

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode response body")
	}
}

// writeError maps a domain error to the wire error shape. Internal errors
// are logged with their cause but surface only a generic message.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := shared.KindOf(err)
	body := errorBody{ErrorCode: string(kind), Message: err.Error()}

	var de *shared.Error
	if errors.As(err, &de) {
		body.Details = de.Details
	}

	if kind == shared.KindInternal {
		s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
		body.Message = "internal server error"
	}

	s.writeJSON(w, statusForKind(kind), body)
}

func statusForKind(kind shared.Kind) int {
	switch kind {
	case shared.KindValidation:
		return http.StatusBadRequest
	case shared.KindNotFound:
		return http.StatusNotFound
	case shared.KindConflict:
		return http.StatusConflict
	case shared.KindBusy:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads a bounded JSON body into dst
func decodeJSON(r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(nil, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return shared.NewValidationError("request body is not valid JSON")
	}
	return nil
}
