package httpapi

import (
	"net/http"

	"roadwatch.mg/internal/roads"
)

func (a *API) handleLots(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		lots, err := a.store.ListLots(r.Context())
		if err != nil {
			a.handleStoreError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, lots)
	case http.MethodPost:
		if !requireAdmin(w, r) {
			return
		}
		var in roads.LotInput
		if err := decodeJSON(w, r, &in); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		lot, err := a.store.CreateLot(r.Context(), in)
		if err != nil {
			a.handleStoreError(w, r, err)
			return
		}
		a.record(r, "create_lot", map[string]any{"lot_id": lot.ID, "name": lot.Name})
		writeJSON(w, http.StatusCreated, lot)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

// handleLotResource serves /api/lots/{id} and /api/lots/{id}/meetings.
func (a *API) handleLotResource(w http.ResponseWriter, r *http.Request) {
	parts := segments(r.URL.Path, "/api/lots/")
	if len(parts) == 0 || len(parts) > 2 {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	id, ok := pathID(w, r, parts[0], "lot")
	if !ok {
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if len(parts) == 1 {
		lot, err := a.store.GetLot(r.Context(), id)
		if err != nil {
			a.handleStoreError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, lot)
		return
	}
	if parts[1] != "meetings" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	a.listMeetings(w, r, id)
}

func (a *API) handleTypes(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		types, err := a.store.ListTypes(r.Context())
		if err != nil {
			a.handleStoreError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, types)
	case http.MethodPost:
		if !requireAdmin(w, r) {
			return
		}
		var in roads.TypeInput
		if err := decodeJSON(w, r, &in); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		t, err := a.store.CreateType(r.Context(), in)
		if err != nil {
			a.handleStoreError(w, r, err)
			return
		}
		a.record(r, "create_type", map[string]any{"type_id": t.ID, "name": t.Name})
		writeJSON(w, http.StatusCreated, t)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleTypeResource(w http.ResponseWriter, r *http.Request) {
	parts := segments(r.URL.Path, "/api/types/")
	if len(parts) != 1 {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	id, ok := pathID(w, r, parts[0], "document type")
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodPut:
		if !requireAdmin(w, r) {
			return
		}
		var in roads.TypeInput
		if err := decodeJSON(w, r, &in); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		t, err := a.store.UpdateType(r.Context(), id, in)
		if err != nil {
			a.handleStoreError(w, r, err)
			return
		}
		a.record(r, "update_type", map[string]any{"type_id": t.ID, "name": t.Name})
		writeJSON(w, http.StatusOK, t)
	case http.MethodDelete:
		if !requireAdmin(w, r) {
			return
		}
		if err := a.store.DeleteType(r.Context(), id); err != nil {
			a.handleStoreError(w, r, err)
			return
		}
		a.record(r, "delete_type", map[string]any{"type_id": id})
		writeJSON(w, http.StatusOK, map[string]any{"message": "document type deleted"})
	default:
		methodNotAllowed(w, r, http.MethodPut, http.MethodDelete)
	}
}
