package roads

import "time"

// UserAction is an append-only audit entry written by mutating operations.
type UserAction struct {
	ID         int64     `json:"id"`
	UserID     *int64    `json:"user_id"`
	Username   string    `json:"username,omitempty"`
	ActionType string    `json:"action_type"`
	Details    string    `json:"details"`
	CreatedAt  time.Time `json:"created_at"`
}

// DashboardStats are the admin dashboard totals.
type DashboardStats struct {
	TotalUsers     int `json:"totalUsers"`
	ActiveUsers    int `json:"activeUsers"`
	TotalSections  int `json:"totalSections"`
	TotalDocuments int `json:"totalDocuments"`
	TotalLots      int `json:"totalLots"`
	RecentActions  int `json:"recentActions"`
}

// RecentActionWindow bounds the dashboard's recent action count.
const RecentActionWindow = 7 * 24 * time.Hour
