package api

import "net/http"

const (
	defaultCommandLimit = 50
	maxCommandLimit     = 500
)

// handleListCommands returns the command audit log, newest first.
func (s *Server) handleListCommands(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r.URL.Query().Get("limit"), defaultCommandLimit, maxCommandLimit)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	records, err := s.commands.List(r.Context(), limit)
	if err != nil {
		s.logger.Error("command log query failed", "error", err)
		writeInternalError(w, "failed to load command log")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"commands": records,
		"count":    len(records),
	})
}
