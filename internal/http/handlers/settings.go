package handlers

import (
	"encoding/json"
	"net/http"

	"dinetab-order-services/internal/events"
	"dinetab-order-services/internal/settings"
	"dinetab-order-services/pkg/response"
)

func (h *Handler) SettingsGet(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.loadSettings(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.Success(w, cfg)
}

// SettingsUpdate replaces the whole typed record, guarded by the version
// the caller read. Clients revert their optimistic copy on failure.
func (h *Handler) SettingsUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body settings.Settings
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	updated, err := settings.Update(ctx, h.DB, body)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.publish(ctx, events.SettingsUpdated, map[string]any{"settings": updated})
	response.Success(w, updated)
}
