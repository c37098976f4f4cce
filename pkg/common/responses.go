package common

import (
	"encoding/json"
	"net/http"
	"strings"
)

// HeaderDegradedWrite lists the secondary stores a successful write missed
const HeaderDegradedWrite = "X-Degraded-Write"

// DefaultMaxBodyBytes bounds request bodies
const DefaultMaxBodyBytes = 1 << 20

// RespondJSON sends a JSON response
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// RespondNoContent sends an empty 204
func RespondNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// MarkDegraded sets the degraded-write header when stores is non-empty
func MarkDegraded(w http.ResponseWriter, stores []string) {
	if len(stores) == 0 {
		return
	}
	w.Header().Set(HeaderDegradedWrite, strings.Join(stores, ","))
}

// ExtractRequestID extracts the request ID from the request
func ExtractRequestID(r *http.Request) string {
	if id := r.Header.Get("X-Request-ID"); id != "" {
		return id
	}
	if id := r.Header.Get("X-Amzn-Trace-Id"); id != "" {
		return id
	}
	if id, ok := GetRequestID(r.Context()); ok {
		return id
	}
	return ""
}

// ParseJSONBody parses JSON request body with size limit
func ParseJSONBody(w http.ResponseWriter, r *http.Request, v interface{}, maxBytes int64) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	return decoder.Decode(v)
}
