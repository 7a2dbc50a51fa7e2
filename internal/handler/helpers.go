package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/schemafleet/schemafleet/internal/catalog"
	"github.com/schemafleet/schemafleet/internal/executor"
	"github.com/schemafleet/schemafleet/internal/model"
)

// writeJSON serializes v as JSON and writes it to the response with the given
// HTTP status code. The Content-Type header is set to application/json.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a structured error response using the standard error
// envelope. The optional ctx map provides additional context fields.
func writeError(w http.ResponseWriter, code int, message string, ctx ...map[string]interface{}) {
	var ctxMap map[string]interface{}
	if len(ctx) > 0 {
		ctxMap = ctx[0]
	}
	writeJSON(w, code, model.ErrorResponse{
		Error: model.ErrorDetail{
			Code:    code,
			Message: message,
			Context: ctxMap,
		},
	})
}

// readJSON decodes the request body as JSON into v. The body is closed after
// decoding regardless of success or failure.
func readJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// queryInt extracts an integer query parameter, returning defaultVal if the
// parameter is missing or cannot be parsed.
func queryInt(r *http.Request, key string, defaultVal int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

// queryString extracts a string query parameter.
func queryString(r *http.Request, key string) string {
	return r.URL.Query().Get(key)
}

// queryBool extracts a boolean query parameter. Returns false if the
// parameter is missing or not "true"/"1".
func queryBool(r *http.Request, key string) bool {
	val := r.URL.Query().Get(key)
	return val == "true" || val == "1"
}

// errorStatus maps the domain sentinel errors onto HTTP status codes.
// Unrecognized errors fall through to 500.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, model.ErrInvalidDeclaration):
		return http.StatusBadRequest
	case errors.Is(err, catalog.ErrNoSuchSchema),
		errors.Is(err, catalog.ErrNoSuchBaseline):
		return http.StatusNotFound
	case errors.Is(err, catalog.ErrVersionNotMonotonic),
		errors.Is(err, catalog.ErrDefinitionExists),
		errors.Is(err, catalog.ErrLockHeld),
		errors.Is(err, executor.ErrInactiveSchema):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
