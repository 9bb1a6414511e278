package server

import (
	"encoding/json"
	"net/http"

	"github.com/regolith-labs/ore-pool-sub000/pool"
)

// statusFor maps the operator error taxonomy onto HTTP status codes. Transient
// and internal failures are both a 500 to the caller; retry semantics stay
// server-side.
func statusFor(kind pool.Kind) int {
	switch kind {
	case pool.KindAuthFailure:
		return http.StatusUnauthorized
	case pool.KindMalformedInput, pool.KindProtocolViolation:
		return http.StatusBadRequest
	case pool.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(pool.ErrKind(err)), errorResponse{Error: err.Error()})
}
