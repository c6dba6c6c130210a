package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nerrad567/mussel-core/internal/telemetry"
)

// maxQueryParamLen rejects absurdly long query values before parsing.
const maxQueryParamLen = 64

// timeFilterLayouts are tried in order by parseTimeFilter. Layouts without
// a zone are read as UTC.
var timeFilterLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// handleData returns samples between from_time and to_time in ascending
// order, keeping the newest limit of them.
func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit, err := parseLimit(q.Get("limit"), telemetry.DefaultRangeLimit, telemetry.MaxRangeLimit)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	query := telemetry.Query{Limit: limit}
	if from, ok := parseTimeFilter(q.Get("from_time")); ok {
		query.From = &from
	}
	if to, ok := parseTimeFilter(q.Get("to_time")); ok {
		query.To = &to
	}

	samples, err := s.telemetry.Range(r.Context(), query)
	if err != nil {
		s.logger.Error("telemetry range query failed", "error", err)
		writeInternalError(w, "failed to load telemetry")
		return
	}
	writeJSON(w, http.StatusOK, samples)
}

// handleLatest returns the newest persisted sample, or 204 when none exist.
func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	sample, err := s.telemetry.Latest(r.Context())
	if errors.Is(err, telemetry.ErrNoSamples) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		s.logger.Error("latest telemetry query failed", "error", err)
		writeInternalError(w, "failed to load latest telemetry")
		return
	}
	writeJSON(w, http.StatusOK, sample)
}

// handleStatus returns the live cache snapshot, or 204 before the first
// status message arrives.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	snapshot, ok := s.cache.Read()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

// parseTimeFilter reads an optional time bound. Empty and malformed values
// both report false, leaving the bound open.
func parseTimeFilter(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || len(raw) > maxQueryParamLen {
		return time.Time{}, false
	}
	for _, layout := range timeFilterLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// parseLimit parses the limit query parameter with bounds enforcement.
func parseLimit(raw string, defaultLimit, maxLimit int) (int, error) {
	if raw == "" {
		return defaultLimit, nil
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, fmt.Errorf("invalid limit")
	}
	if limit > maxLimit {
		return 0, fmt.Errorf("limit exceeds maximum of %d", maxLimit)
	}
	return limit, nil
}
