package httpapi

import (
	"net/http"

	"roadwatch.mg/internal/roads"
)

type minutesRequest struct {
	Content        string `json:"content"`
	Decisions      string `json:"decisions"`
	NextSteps      string `json:"nextSteps"`
	NextStepsSnake string `json:"next_steps"`
}

// handleMeetings routes /api/meetings/{id}[/send-invitations|/pv|/usual-participants].
// The bare {id} is a lot for GET and POST and a meeting for PUT and DELETE.
func (a *API) handleMeetings(w http.ResponseWriter, r *http.Request) {
	parts := segments(r.URL.Path, "/api/meetings/")
	if len(parts) == 0 || len(parts) > 2 {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	id, ok := pathID(w, r, parts[0], "resource")
	if !ok {
		return
	}
	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			a.listMeetings(w, r, id)
		case http.MethodPost:
			a.createMeeting(w, r, id)
		case http.MethodPut, http.MethodPatch:
			a.updateMeeting(w, r, id)
		case http.MethodDelete:
			a.deleteMeeting(w, r, id)
		default:
			methodNotAllowed(w, r, http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete)
		}
		return
	}

	switch parts[1] {
	case "send-invitations":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		m, err := a.store.SendInvitations(r.Context(), id)
		if err != nil {
			a.handleStoreError(w, r, err)
			return
		}
		a.record(r, "send_invitations", map[string]any{"meeting_id": id})
		writeJSON(w, http.StatusOK, map[string]any{"message": "invitations sent", "meeting": m})
	case "pv":
		switch r.Method {
		case http.MethodGet:
			pv, err := a.store.GetMinutes(r.Context(), id)
			if err != nil {
				a.handleStoreError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, pv)
		case http.MethodPost, http.MethodPut:
			a.saveMinutes(w, r, id)
		default:
			methodNotAllowed(w, r, http.MethodGet, http.MethodPost, http.MethodPut)
		}
	case "usual-participants":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		list, err := a.store.UsualParticipants(r.Context(), id)
		if err != nil {
			a.handleStoreError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) listMeetings(w http.ResponseWriter, r *http.Request, lotID int64) {
	meetings, err := a.store.ListMeetings(r.Context(), lotID, r.URL.Query().Get("upcomingOnly") == "true")
	if err != nil {
		a.handleStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, meetings)
}

func (a *API) createMeeting(w http.ResponseWriter, r *http.Request, lotID int64) {
	var in roads.MeetingInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	in.LotID = lotID
	in.CreatedBy = caller(r).UserID
	m, err := a.store.CreateMeeting(r.Context(), in)
	if err != nil {
		a.handleStoreError(w, r, err)
		return
	}
	a.record(r, "create_meeting", map[string]any{"meeting_id": m.ID, "lot_id": lotID, "title": m.Title})
	writeJSON(w, http.StatusCreated, m)
}

// ownsMeeting allows the organiser and admins to change a meeting.
func (a *API) ownsMeeting(w http.ResponseWriter, r *http.Request, id int64) bool {
	m, err := a.store.GetMeeting(r.Context(), id)
	if err != nil {
		a.handleStoreError(w, r, err)
		return false
	}
	who := caller(r)
	if who.IsAdmin() || m.CreatedBy == who.UserID {
		return true
	}
	writeError(w, r, http.StatusForbidden, "only the organiser or an admin can change this meeting")
	return false
}

func (a *API) updateMeeting(w http.ResponseWriter, r *http.Request, id int64) {
	var p roads.MeetingPatch
	if err := decodeJSON(w, r, &p); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if !a.ownsMeeting(w, r, id) {
		return
	}
	m, err := a.store.UpdateMeeting(r.Context(), id, p)
	if err != nil {
		a.handleStoreError(w, r, err)
		return
	}
	a.record(r, "update_meeting", map[string]any{"meeting_id": id, "title": m.Title})
	writeJSON(w, http.StatusOK, m)
}

func (a *API) deleteMeeting(w http.ResponseWriter, r *http.Request, id int64) {
	if !a.ownsMeeting(w, r, id) {
		return
	}
	m, err := a.store.DeleteMeeting(r.Context(), id)
	if err != nil {
		a.handleStoreError(w, r, err)
		return
	}
	a.record(r, "delete_meeting", map[string]any{"meeting_id": id, "title": m.Title})
	writeJSON(w, http.StatusOK, map[string]any{"message": "meeting deleted", "meeting": m})
}

func (a *API) saveMinutes(w http.ResponseWriter, r *http.Request, meetingID int64) {
	var req minutesRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	pv, created, err := a.store.SaveMinutes(r.Context(), meetingID, roads.MinutesInput{
		Content:   req.Content,
		Decisions: req.Decisions,
		NextSteps: firstNonEmpty(req.NextSteps, req.NextStepsSnake),
		Author:    caller(r).UserID,
	})
	if err != nil {
		a.handleStoreError(w, r, err)
		return
	}
	a.record(r, "save_minutes", map[string]any{"meeting_id": meetingID, "created": created})
	code := http.StatusOK
	if created {
		code = http.StatusCreated
	}
	writeJSON(w, code, pv)
}
