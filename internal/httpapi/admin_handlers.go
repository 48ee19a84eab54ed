package httpapi

import (
	"net/http"

	"roadwatch.mg/internal/auth"
	"roadwatch.mg/internal/roads"
)

const dashboardRecentActions = 10

type createUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
	LotID    *int64 `json:"lot_id"`
}

type resetPasswordRequest struct {
	Password string `json:"password"`
}

type dashboardResponse struct {
	Stats         roads.DashboardStats `json:"stats"`
	RecentActions []roads.UserAction   `json:"recentActions"`
}

func (a *API) handleUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if !requireAdmin(w, r) {
		return
	}
	q := r.URL.Query()
	users, err := a.store.ListUsers(r.Context(), roads.UserFilter{Role: q.Get("role"), Search: q.Get("search")})
	if err != nil {
		a.handleStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// handleAdmin serves /api/admin/*; RequireRole has already checked the caller.
func (a *API) handleAdmin(w http.ResponseWriter, r *http.Request) {
	parts := segments(r.URL.Path, "/api/admin/")
	switch {
	case len(parts) == 1 && parts[0] == "dashboard":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		a.dashboard(w, r)
	case len(parts) == 1 && parts[0] == "users":
		switch r.Method {
		case http.MethodGet:
			a.handleUsers(w, r)
		case http.MethodPost:
			a.createUser(w, r)
		default:
			methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
		}
	case len(parts) >= 2 && len(parts) <= 3 && parts[0] == "users":
		id, ok := pathID(w, r, parts[1], "user")
		if !ok {
			return
		}
		if len(parts) == 3 {
			if parts[2] != "reset-password" {
				writeError(w, r, http.StatusNotFound, "resource not found")
				return
			}
			if r.Method != http.MethodPost {
				methodNotAllowed(w, r, http.MethodPost)
				return
			}
			a.resetPassword(w, r, id)
			return
		}
		switch r.Method {
		case http.MethodGet:
			u, err := a.store.GetUser(r.Context(), id)
			if err != nil {
				a.handleStoreError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, u)
		case http.MethodPut, http.MethodPatch:
			a.updateUser(w, r, id)
		case http.MethodDelete:
			a.deleteUser(w, r, id)
		default:
			methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodPatch, http.MethodDelete)
		}
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) dashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := a.store.DashboardStats(r.Context())
	if err != nil {
		a.handleStoreError(w, r, err)
		return
	}
	recent, err := a.store.RecentActions(r.Context(), dashboardRecentActions)
	if err != nil {
		a.handleStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dashboardResponse{Stats: stats, RecentActions: recent})
}

func (a *API) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	username, email, role, err := roads.NormalizeAccount(req.Username, req.Email, req.Role)
	if err != nil {
		a.handleStoreError(w, r, err)
		return
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	u, err := a.store.CreateUser(r.Context(), roads.NewUser{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		LotID:        req.LotID,
	})
	if err != nil {
		a.handleStoreError(w, r, err)
		return
	}
	a.record(r, "create_user", map[string]any{"target_user_id": u.ID, "username": u.Username, "role": u.Role})
	writeJSON(w, http.StatusCreated, u)
}

func (a *API) updateUser(w http.ResponseWriter, r *http.Request, id int64) {
	var p roads.UserPatch
	if err := decodeJSON(w, r, &p); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if id == caller(r).UserID && locksOut(p) {
		writeError(w, r, http.StatusConflict, "admins cannot demote or disable themselves")
		return
	}
	u, err := a.store.UpdateUser(r.Context(), id, p)
	if err != nil {
		a.handleStoreError(w, r, err)
		return
	}
	a.record(r, "update_user", map[string]any{"target_user_id": u.ID, "username": u.Username, "role": u.Role})
	writeJSON(w, http.StatusOK, u)
}

func (a *API) deleteUser(w http.ResponseWriter, r *http.Request, id int64) {
	if id == caller(r).UserID {
		writeError(w, r, http.StatusConflict, "admins cannot delete themselves")
		return
	}
	u, err := a.store.DeleteUser(r.Context(), id)
	if err != nil {
		a.handleStoreError(w, r, err)
		return
	}
	a.record(r, "delete_user", map[string]any{"target_user_id": u.ID, "username": u.Username})
	writeJSON(w, http.StatusOK, map[string]any{"message": "user deleted", "user": u})
}

func (a *API) resetPassword(w http.ResponseWriter, r *http.Request, id int64) {
	var req resetPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.store.SetPassword(r.Context(), id, hash); err != nil {
		a.handleStoreError(w, r, err)
		return
	}
	a.record(r, "reset_password", map[string]any{"target_user_id": id})
	writeJSON(w, http.StatusOK, map[string]any{"message": "password reset"})
}

// locksOut reports whether applying p to the caller's own account would
// remove their admin access.
func locksOut(p roads.UserPatch) bool {
	if p.IsActive != nil && !*p.IsActive {
		return true
	}
	return p.Role != nil && auth.NormalizeRole(*p.Role) != auth.RoleAdmin
}
