package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/tradekit/bandtrack/internal/contracts"
)

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// parseDate parses a YYYY-MM-DD path or body value.
func parseDate(value string) (time.Time, bool) {
	date, err := time.Parse(contracts.DateFormat, value)
	if err != nil {
		return time.Time{}, false
	}
	return date, true
}
