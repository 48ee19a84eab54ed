package httpapi

import (
	"net/http"

	"roadwatch.mg/internal/obs"
	"roadwatch.mg/internal/roads"
)

type messageRequest struct {
	RecipientID  int64   `json:"recipientId"`
	RecipientIDs []int64 `json:"recipientIds"`
	Subject      string  `json:"subject"`
	Content      string  `json:"content"`
	Urgency      string  `json:"urgency"`
}

// handleCommunications routes /api/communications/{lotId}/messages,
// /api/communications/{lotId}/notifications and /api/communications/notifications/{id}/read.
func (a *API) handleCommunications(w http.ResponseWriter, r *http.Request) {
	parts := segments(r.URL.Path, "/api/communications/")
	if len(parts) == 3 && parts[0] == "notifications" && parts[2] == "read" {
		id, ok := pathID(w, r, parts[1], "notification")
		if !ok {
			return
		}
		if r.Method != http.MethodPatch && r.Method != http.MethodPut {
			methodNotAllowed(w, r, http.MethodPatch, http.MethodPut)
			return
		}
		n, err := a.store.MarkNotificationRead(r.Context(), id)
		if err != nil {
			a.handleStoreError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, n)
		return
	}
	if len(parts) != 2 {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	lotID, ok := pathID(w, r, parts[0], "lot")
	if !ok {
		return
	}

	switch parts[1] {
	case "messages":
		switch r.Method {
		case http.MethodGet:
			a.listMessages(w, r, lotID)
		case http.MethodPost:
			a.sendMessage(w, r, lotID)
		default:
			methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
		}
	case "notifications":
		switch r.Method {
		case http.MethodGet:
			a.listNotifications(w, r, lotID)
		case http.MethodPost:
			a.createNotification(w, r, lotID)
		default:
			methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
		}
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

// sendMessage fans the message out to every recipient. Partial delivery is
// a success that lists the failed recipients.
func (a *API) sendMessage(w http.ResponseWriter, r *http.Request, lotID int64) {
	var req messageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	recipients := req.RecipientIDs
	if req.RecipientID != 0 {
		recipients = append([]int64{req.RecipientID}, recipients...)
	}
	res, err := roads.FanOut(r.Context(), a.store, roads.MessageInput{
		LotID:        lotID,
		SenderID:     caller(r).UserID,
		RecipientIDs: recipients,
		Subject:      req.Subject,
		Content:      req.Content,
		Urgency:      req.Urgency,
	})
	for range res.Messages {
		obs.MessageSent(true)
	}
	for range res.Failed {
		obs.MessageSent(false)
	}
	if err != nil {
		a.handleStoreError(w, r, err)
		return
	}
	a.record(r, "send_message", map[string]any{
		"lot_id":    lotID,
		"delivered": len(res.Messages),
		"failed":    len(res.Failed),
	})
	writeJSON(w, http.StatusCreated, res)
}

func (a *API) listMessages(w http.ResponseWriter, r *http.Request, lotID int64) {
	userID, err := queryID(r, "userId")
	if err != nil {
		a.handleStoreError(w, r, err)
		return
	}
	msgs, err := a.store.ListMessages(r.Context(), lotID, userID)
	if err != nil {
		a.handleStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (a *API) createNotification(w http.ResponseWriter, r *http.Request, lotID int64) {
	var in roads.NotificationInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	in.LotID = lotID
	n, err := a.store.CreateNotification(r.Context(), in)
	if err != nil {
		a.handleStoreError(w, r, err)
		return
	}
	a.record(r, "create_notification", map[string]any{"lot_id": lotID, "user_id": n.UserID, "type": n.Type})
	writeJSON(w, http.StatusCreated, n)
}

func (a *API) listNotifications(w http.ResponseWriter, r *http.Request, lotID int64) {
	userID, err := queryID(r, "userId")
	if err != nil {
		a.handleStoreError(w, r, err)
		return
	}
	list, err := a.store.ListNotifications(r.Context(), lotID, userID, r.URL.Query().Get("unreadOnly") == "true")
	if err != nil {
		a.handleStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
