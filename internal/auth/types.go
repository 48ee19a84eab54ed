package auth

import "strings"

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// Identity is the authenticated caller attached to a request.
type Identity struct {
	UserID   int64  `json:"id"`
	Username string `json:"username,omitempty"`
	Role     string `json:"role"`
}

func (i Identity) IsAdmin() bool { return i.Role == RoleAdmin }

// NormalizeRole lower-cases role and returns "" for unknown roles.
func NormalizeRole(role string) string { return normalizeRole(role) }

func normalizeRole(role string) string {
	switch r := strings.ToLower(strings.TrimSpace(role)); r {
	case RoleAdmin, RoleUser:
		return r
	}
	return ""
}
