package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/nikhilbhutani/docchat/internal/callable"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Error *callable.Error `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Warn("encode response", "error", err)
	}
}

// writeError writes err with the status of its code. Unclassified errors
// are reported as a generic internal error.
func writeError(w http.ResponseWriter, err error) {
	ce := callable.Wrap(err, "Internal error")
	writeJSON(w, ce.Code.HTTPStatus(), errorBody{Error: ce})
}

// decodeJSON reads a single JSON object from the request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return callable.New(callable.InvalidArgument, "request body is required")
		}
		return callable.New(callable.InvalidArgument, "invalid request body")
	}
	return nil
}
