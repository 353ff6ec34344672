package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/ternarybob/hunt/internal/models"
)

// WriteJSON writes a JSON response with the specified status code and data.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}

// WriteDetail writes the standard error payload {detail: string}.
func WriteDetail(w http.ResponseWriter, statusCode int, detail string) error {
	return WriteJSON(w, statusCode, map[string]string{"detail": detail})
}

// WriteError maps a core error kind to its HTTP status and writes the
// standard {detail} payload. The kind-to-status mapping lives only here.
func WriteError(w http.ResponseWriter, err error) error {
	status := http.StatusInternalServerError
	switch models.KindOf(err) {
	case models.KindInvalidArgument, models.KindSchemaViolation, models.KindParseError:
		status = http.StatusBadRequest
	case models.KindNotFound:
		status = http.StatusNotFound
	case models.KindConflict, models.KindDuplicate:
		status = http.StatusConflict
	case models.KindRateLimited:
		status = http.StatusTooManyRequests
	}
	return WriteDetail(w, status, err.Error())
}

// GetPaginationParams extracts page (1-indexed) and page_size from the query
// string. Defaults: page 1, page_size 20, max 100.
func GetPaginationParams(r *http.Request) (page, pageSize int) {
	page = 1
	pageSize = 20

	if pageStr := r.URL.Query().Get("page"); pageStr != "" {
		if p, err := strconv.Atoi(pageStr); err == nil && p >= 1 {
			page = p
		}
	}
	if sizeStr := r.URL.Query().Get("page_size"); sizeStr != "" {
		if size, err := strconv.Atoi(sizeStr); err == nil && size > 0 && size <= 100 {
			pageSize = size
		}
	}
	return page, pageSize
}

// QueryInt parses an integer query parameter with a default
func QueryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

// QueryFloat parses a float query parameter with a default
func QueryFloat(r *http.Request, key string, fallback float64) float64 {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return value
}

// DecodeBody decodes a JSON request body into target, tolerating an empty body
func DecodeBody(r *http.Request, target interface{}) error {
	if r.Body == nil {
		return nil
	}
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if err.Error() == "EOF" {
			return nil
		}
		return models.WrapError(models.KindInvalidArgument, "invalid request body", err)
	}
	return nil
}
