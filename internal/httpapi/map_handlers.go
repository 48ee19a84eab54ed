package httpapi

import (
	"net/http"

	"roadwatch.mg/internal/query"
	"roadwatch.mg/internal/roads"
)

// handleMap routes /api/map/sections[/...] and /api/map/stats.
func (a *API) handleMap(w http.ResponseWriter, r *http.Request) {
	parts := segments(r.URL.Path, "/api/map/")
	switch {
	case len(parts) == 1 && parts[0] == "stats":
		a.mapStats(w, r, false)
	case len(parts) == 3 && parts[0] == "sections" && parts[1] == "stats" && parts[2] == "overview":
		a.mapStats(w, r, true)
	case len(parts) == 1 && parts[0] == "sections":
		switch r.Method {
		case http.MethodGet:
			a.listSections(w, r)
		case http.MethodPost:
			a.createSection(w, r)
		default:
			methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
		}
	case len(parts) >= 2 && parts[0] == "sections":
		id, ok := pathID(w, r, parts[1], "section")
		if !ok {
			return
		}
		a.handleSectionResource(w, r, id, parts[2:])
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) handleSectionResource(w http.ResponseWriter, r *http.Request, id int64, rest []string) {
	switch {
	case len(rest) == 0:
		switch r.Method {
		case http.MethodGet:
			a.getSection(w, r, id)
		case http.MethodPut, http.MethodPatch:
			a.updateSection(w, r, id)
		case http.MethodDelete:
			a.deleteSection(w, r, id)
		default:
			methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodPatch, http.MethodDelete)
		}
	case len(rest) == 1 && rest[0] == "geodata":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		geo, err := a.store.SectionGeodata(r.Context(), id)
		if err != nil {
			a.handleStoreError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, geo)
	case len(rest) == 1 && rest[0] == "inspections":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.addInspection(w, r, id)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) listSections(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := a.store.ListSections(r.Context(), roads.SectionFilterFromQuery(q.Get, query.ParsePage(q)))
	if err != nil {
		a.handleStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (a *API) getSection(w http.ResponseWriter, r *http.Request, id int64) {
	sec, err := a.store.GetSection(r.Context(), id)
	if err != nil {
		a.handleStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sec)
}

func (a *API) createSection(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r) {
		return
	}
	var in roads.SectionInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	in.CreatedBy = caller(r).UserID
	sec, err := a.store.CreateSection(r.Context(), in)
	if err != nil {
		a.handleStoreError(w, r, err)
		return
	}
	a.record(r, "create_section", map[string]any{"section_id": sec.ID, "name": sec.Name})
	writeJSON(w, http.StatusCreated, sec)
}

func (a *API) updateSection(w http.ResponseWriter, r *http.Request, id int64) {
	if !requireAdmin(w, r) {
		return
	}
	var p roads.SectionPatch
	if err := decodeJSON(w, r, &p); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	sec, err := a.store.UpdateSection(r.Context(), id, p)
	if err != nil {
		a.handleStoreError(w, r, err)
		return
	}
	a.record(r, "update_section", map[string]any{"section_id": sec.ID, "name": sec.Name})
	writeJSON(w, http.StatusOK, sec)
}

func (a *API) deleteSection(w http.ResponseWriter, r *http.Request, id int64) {
	if !requireAdmin(w, r) {
		return
	}
	sec, err := a.store.DeleteSection(r.Context(), id)
	if err != nil {
		a.handleStoreError(w, r, err)
		return
	}
	a.record(r, "delete_section", map[string]any{"section_id": sec.ID, "name": sec.Name})
	writeJSON(w, http.StatusOK, map[string]any{"message": "section deleted", "section": sec})
}

func (a *API) addInspection(w http.ResponseWriter, r *http.Request, sectionID int64) {
	if !requireAdmin(w, r) {
		return
	}
	var in roads.InspectionInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	insp, err := a.store.AddInspection(r.Context(), sectionID, in)
	if err != nil {
		a.handleStoreError(w, r, err)
		return
	}
	a.record(r, "add_inspection", map[string]any{"section_id": sectionID, "inspection_id": insp.ID, "type": insp.Type})
	writeJSON(w, http.StatusCreated, insp)
}

func (a *API) mapStats(w http.ResponseWriter, r *http.Request, overviewOnly bool) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	stats, err := a.store.MapStats(r.Context())
	if err != nil {
		a.handleStoreError(w, r, err)
		return
	}
	if overviewOnly {
		writeJSON(w, http.StatusOK, stats.Overview)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
