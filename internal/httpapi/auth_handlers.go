package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"roadwatch.mg/internal/auth"
	"roadwatch.mg/internal/roads"
)

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	LotID    *int64 `json:"lot_id"`
}

type loginRequest struct {
	Login    string `json:"login"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expires_at"`
	User      roads.User `json:"user"`
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	username, email, role, err := roads.NormalizeAccount(req.Username, req.Email, auth.RoleUser)
	if err != nil {
		a.handleStoreError(w, r, err)
		return
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	user, err := a.store.CreateUser(r.Context(), roads.NewUser{
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
	a.issueToken(w, r, http.StatusCreated, user, "register")
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	login := firstNonEmpty(req.Login, req.Username, req.Email)
	if login == "" || req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "login and password are required")
		return
	}

	user, err := a.store.FindUserByLogin(r.Context(), login)
	if errors.Is(err, roads.ErrNotFound) {
		// same answer as a wrong password
		_ = auth.VerifyPassword("", req.Password)
		writeError(w, r, http.StatusUnauthorized, auth.ErrBadCredentials.Error())
		return
	}
	if err != nil {
		a.handleStoreError(w, r, err)
		return
	}
	if err := auth.VerifyPassword(user.PasswordHash, req.Password); err != nil {
		writeError(w, r, http.StatusUnauthorized, auth.ErrBadCredentials.Error())
		return
	}
	if !user.IsActive {
		writeError(w, r, http.StatusForbidden, "account is disabled")
		return
	}
	a.issueToken(w, r, http.StatusOK, user, "login")
}

func (a *API) issueToken(w http.ResponseWriter, r *http.Request, code int, user roads.User, action string) {
	id := auth.Identity{UserID: user.ID, Username: user.Username, Role: user.Role}
	token, expires, err := a.tokens.Issue(id)
	if err != nil {
		a.handleStoreError(w, r, err)
		return
	}
	ctx := auth.ContextWithIdentity(r.Context(), id)
	a.recorder.Record(ctx, action, map[string]any{"username": user.Username})
	writeJSON(w, code, tokenResponse{Token: token, ExpiresAt: expires, User: user})
}

func (a *API) handleVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	user, err := a.store.GetUser(r.Context(), caller(r).UserID)
	if errors.Is(err, roads.ErrNotFound) {
		writeError(w, r, http.StatusUnauthorized, "account no longer exists")
		return
	}
	if err != nil {
		a.handleStoreError(w, r, err)
		return
	}
	if !user.IsActive {
		writeError(w, r, http.StatusForbidden, "account is disabled")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
