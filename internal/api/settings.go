package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/nerrad567/mussel-core/internal/command"
	"github.com/nerrad567/mussel-core/internal/device"
	"github.com/nerrad567/mussel-core/internal/settings"
)

const settingsUpdatedMessage = "Settings updated successfully"

// SettingsResponse is returned by POST /api/v1/settings.
type SettingsResponse struct {
	Settings settings.State `json:"settings"`
	Changed  settings.Diff  `json:"changed"`
	Message  string         `json:"message"`
	Warning  string         `json:"warning,omitempty"`
}

// handleGetSettings returns the authoritative settings, or the defaults
// when none have been stored.
func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	current, err := s.settings.Current(r.Context())
	if err != nil {
		s.logger.Error("loading settings failed", "error", err)
		writeInternalError(w, "failed to load settings")
		return
	}
	writeJSON(w, http.StatusOK, current)
}

// handleUpdateSettings reconciles a partial settings change and dispatches
// the resulting command.
func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	partial, err := decodePartial(r.Body)
	if err != nil {
		writeValidationError(w, err.Error())
		return
	}

	result, err := s.settings.Apply(r.Context(), partial)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, SettingsResponse{
			Settings: result.Settings,
			Changed:  result.Changed,
			Message:  settingsUpdatedMessage,
		})

	case errors.Is(err, settings.ErrPersistFailed):
		s.logger.Error("settings persistence failed", "error", err)
		writeInternalError(w, "failed to store settings")

	case errors.Is(err, command.ErrPublishFailed):
		// Settings are stored; only the device command was lost.
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"status":   http.StatusBadGateway,
			"code":     ErrCodePublishFailed,
			"message":  "settings stored but the device command could not be published",
			"settings": result.Settings,
			"changed":  result.Changed,
		})

	case errors.Is(err, command.ErrAuditFailed):
		writeJSON(w, http.StatusOK, SettingsResponse{
			Settings: result.Settings,
			Changed:  result.Changed,
			Message:  settingsUpdatedMessage,
			Warning:  "command published but not recorded in the audit log",
		})

	default:
		s.logger.Error("settings dispatch failed", "error", err)
		writeInternalError(w, "failed to dispatch settings")
	}
}

// decodePartial reads a settings change request. Unknown fields, wrong
// types, invalid lamp states and trailing data are rejected.
func decodePartial(body io.Reader) (settings.Partial, error) {
	var partial settings.Partial

	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&partial); err != nil {
		var maxErr *http.MaxBytesError
		var typeErr *json.UnmarshalTypeError
		switch {
		case errors.Is(err, io.EOF):
			return settings.Partial{}, fmt.Errorf("request body is required")
		case errors.As(err, &maxErr):
			return settings.Partial{}, fmt.Errorf("request body too large")
		case errors.Is(err, device.ErrInvalidLampState):
			return settings.Partial{}, fmt.Errorf("lamp_state must be %q or %q", device.LampOn, device.LampOff)
		case errors.As(err, &typeErr) && typeErr.Field == "":
			return settings.Partial{}, fmt.Errorf("request body must be a JSON object")
		case errors.As(err, &typeErr):
			return settings.Partial{}, fmt.Errorf("field %s has the wrong type", typeErr.Field)
		default:
			return settings.Partial{}, fmt.Errorf("invalid JSON body: %w", err)
		}
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return settings.Partial{}, fmt.Errorf("request body must contain a single JSON object")
	}
	return partial, nil
}
