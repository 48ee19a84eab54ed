package pg

import (
	"context"
	"database/sql"

	"roadwatch.mg/internal/roads"
)

func (s *Store) RecordAction(ctx context.Context, a roads.UserAction) error {
	_, err := s.db.ExecContext(ctx, `
		insert into user_actions (user_id, action_type, details) values ($1, $2, $3)`,
		nullID(a.UserID), a.ActionType, a.Details)
	return err
}

func (s *Store) RecentActions(ctx context.Context, limit int) ([]roads.UserAction, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		select a.id, a.user_id, coalesce(u.username, ''), a.action_type, a.details, a.created_at
		from user_actions a
		left join users u on u.id = a.user_id
		order by a.created_at desc, a.id desc
		limit $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []roads.UserAction{}
	for rows.Next() {
		var a roads.UserAction
		var uid sql.NullInt64
		if err := rows.Scan(&a.ID, &uid, &a.Username, &a.ActionType, &a.Details, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.UserID = idPtr(uid)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) DashboardStats(ctx context.Context) (roads.DashboardStats, error) {
	var st roads.DashboardStats
	err := s.db.QueryRowContext(ctx, `
		select
			(select count(*) from users),
			(select count(*) from users where is_active),
			(select count(*) from road_sections),
			(select count(*) from documents),
			(select count(*) from lots),
			(select count(*) from user_actions where created_at >= now() - make_interval(days => $1))`,
		int(roads.RecentActionWindow.Hours()/24)).Scan(
		&st.TotalUsers, &st.ActiveUsers, &st.TotalSections, &st.TotalDocuments, &st.TotalLots, &st.RecentActions)
	return st, err
}
