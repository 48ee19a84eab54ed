package roads

import (
	"net/mail"
	"strings"
	"time"
)

// User is an account of the application.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	LotID        *int64    `json:"lot_id"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewUser is a validated account ready to be stored.
type NewUser struct {
	Username     string
	Email        string
	PasswordHash string
	Role         string
	LotID        *int64
}

// NormalizeAccount validates username, email and role of an account.
func NormalizeAccount(username, email, role string) (string, string, string, error) {
	username = clean(username)
	email = strings.ToLower(clean(email))
	role = strings.ToLower(clean(role))
	if username == "" {
		return "", "", "", Invalid("username is required")
	}
	if len(username) > 64 {
		return "", "", "", Invalid("username is too long")
	}
	if _, err := mail.ParseAddress(email); err != nil || !strings.Contains(email, "@") {
		return "", "", "", Invalid("invalid email")
	}
	if role == "" {
		role = "user"
	}
	if role != "user" && role != "admin" {
		return "", "", "", Invalid("unknown role %q", role)
	}
	return username, email, role, nil
}

type UserPatch struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
	Role     *string `json:"role"`
	LotID    *int64  `json:"lot_id"`
	IsActive *bool   `json:"is_active"`
}

// Apply copies set fields onto u and revalidates the account fields.
func (p UserPatch) Apply(u *User) error {
	username, email, role := u.Username, u.Email, u.Role
	if p.Username != nil {
		username = *p.Username
	}
	if p.Email != nil {
		email = *p.Email
	}
	if p.Role != nil {
		role = *p.Role
		if clean(role) == "" {
			return Invalid("role cannot be empty")
		}
	}
	var err error
	if u.Username, u.Email, u.Role, err = NormalizeAccount(username, email, role); err != nil {
		return err
	}
	if p.LotID != nil {
		lot := *p.LotID
		u.LotID = &lot
	}
	if p.IsActive != nil {
		u.IsActive = *p.IsActive
	}
	return nil
}

// UserFilter narrows the user listing.
type UserFilter struct {
	Role   string
	Search string
}
