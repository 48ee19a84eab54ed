package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"roadwatch.mg/internal/roads"
)

const meetingColumns = `
	m.id, m.lot_id, m.title, m.meeting_date, m.meeting_time, m.location, m.participants,
	m.agenda, m.invitations_sent, m.has_minutes, m.created_by, coalesce(u.username, ''), m.created_at`

const meetingFrom = `
	from meetings m
	left join users u on u.id = m.created_by`

func scanMeeting(row interface{ Scan(...any) error }) (roads.Meeting, error) {
	var (
		m            roads.Meeting
		date         sql.NullTime
		participants []byte
	)
	if err := row.Scan(&m.ID, &m.LotID, &m.Title, &date, &m.Time, &m.Location, &participants,
		&m.Agenda, &m.InvitationsSent, &m.HasMinutes, &m.CreatedBy, &m.Creator, &m.CreatedAt); err != nil {
		return roads.Meeting{}, err
	}
	m.Date = dateOf(date)
	m.Participants = []string{}
	if len(participants) > 0 {
		if err := json.Unmarshal(participants, &m.Participants); err != nil {
			return roads.Meeting{}, fmt.Errorf("decode participants: %w", err)
		}
	}
	return m, nil
}

func encodeParticipants(list []string) (string, error) {
	if list == nil {
		list = []string{}
	}
	b, err := json.Marshal(list)
	return string(b), err
}

func (s *Store) getMeeting(ctx context.Context, q queryer, id int64) (roads.Meeting, error) {
	m, err := scanMeeting(q.QueryRowContext(ctx, `select `+meetingColumns+meetingFrom+` where m.id = $1`, id))
	if err != nil {
		return roads.Meeting{}, mapErr(err, "meeting")
	}
	return m, nil
}

func (s *Store) CreateMeeting(ctx context.Context, in roads.MeetingInput) (roads.Meeting, error) {
	if err := in.Normalize(); err != nil {
		return roads.Meeting{}, err
	}
	participants, err := encodeParticipants(in.Participants)
	if err != nil {
		return roads.Meeting{}, err
	}
	var id int64
	err = s.db.QueryRowContext(ctx, `
		insert into meetings
			(lot_id, title, meeting_date, meeting_time, location, participants, agenda, created_by)
		values ($1, $2, $3, $4, $5, $6, $7, $8)
		returning id`,
		in.LotID, in.Title, in.Date.Time, in.Time, in.Location, participants, in.Agenda, in.CreatedBy).Scan(&id)
	if err != nil {
		return roads.Meeting{}, mapErr(err, "meeting")
	}
	return s.getMeeting(ctx, s.db, id)
}

func (s *Store) ListMeetings(ctx context.Context, lotID int64, upcomingOnly bool) ([]roads.Meeting, error) {
	rows, err := s.db.QueryContext(ctx, `select `+meetingColumns+meetingFrom+`
		where m.lot_id = $1 and ($2 = false or m.meeting_date >= current_date)
		order by m.meeting_date, m.meeting_time, m.id`, lotID, upcomingOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []roads.Meeting{}
	for rows.Next() {
		m, err := scanMeeting(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) GetMeeting(ctx context.Context, id int64) (roads.Meeting, error) {
	return s.getMeeting(ctx, s.db, id)
}

func (s *Store) UpdateMeeting(ctx context.Context, id int64, p roads.MeetingPatch) (roads.Meeting, error) {
	if err := p.Normalize(); err != nil {
		return roads.Meeting{}, err
	}
	var participants, date any
	if p.Participants != nil {
		enc, err := encodeParticipants(*p.Participants)
		if err != nil {
			return roads.Meeting{}, err
		}
		participants = enc
	}
	if p.Date != nil {
		date = p.Date.Time
	}
	res, err := s.db.ExecContext(ctx, `
		update meetings set
			title = coalesce($2, title),
			meeting_date = coalesce($3::date, meeting_date),
			meeting_time = coalesce($4, meeting_time),
			location = coalesce($5, location),
			participants = coalesce($6::jsonb, participants),
			agenda = coalesce($7, agenda)
		where id = $1`,
		id, p.Title, date, p.Time, p.Location, participants, p.Agenda)
	if err != nil {
		return roads.Meeting{}, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return roads.Meeting{}, roads.NotFound("meeting")
	}
	return s.getMeeting(ctx, s.db, id)
}

// DeleteMeeting removes the meeting; its minutes cascade.
func (s *Store) DeleteMeeting(ctx context.Context, id int64) (roads.Meeting, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return roads.Meeting{}, err
	}
	defer func() { _ = tx.Rollback() }()
	m, err := s.getMeeting(ctx, tx, id)
	if err != nil {
		return roads.Meeting{}, err
	}
	if _, err := tx.ExecContext(ctx, `delete from meetings where id = $1`, id); err != nil {
		return roads.Meeting{}, err
	}
	if err := tx.Commit(); err != nil {
		return roads.Meeting{}, err
	}
	return m, nil
}

func (s *Store) SendInvitations(ctx context.Context, id int64) (roads.Meeting, error) {
	res, err := s.db.ExecContext(ctx, `update meetings set invitations_sent = true where id = $1`, id)
	if err != nil {
		return roads.Meeting{}, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return roads.Meeting{}, roads.NotFound("meeting")
	}
	return s.getMeeting(ctx, s.db, id)
}

// SaveMinutes upserts the single PV and sets has_minutes in the same
// transaction, so the flag never disagrees with the minutes table.
func (s *Store) SaveMinutes(ctx context.Context, meetingID int64, in roads.MinutesInput) (roads.Minutes, bool, error) {
	if err := in.Normalize(); err != nil {
		return roads.Minutes{}, false, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return roads.Minutes{}, false, err
	}
	defer func() { _ = tx.Rollback() }()

	var locked int64
	if err := tx.QueryRowContext(ctx, `select id from meetings where id = $1 for update`, meetingID).Scan(&locked); err != nil {
		return roads.Minutes{}, false, mapErr(err, "meeting")
	}
	var (
		pv      roads.Minutes
		created bool
	)
	err = tx.QueryRowContext(ctx, `
		insert into meeting_minutes (meeting_id, content, decisions, next_steps, created_by)
		values ($1, $2, $3, $4, $5)
		on conflict (meeting_id) do update set
			content = excluded.content,
			decisions = excluded.decisions,
			next_steps = excluded.next_steps,
			updated_at = now()
		returning id, meeting_id, content, decisions, next_steps, created_by, created_at, updated_at, (xmax = 0)`,
		meetingID, in.Content, in.Decisions, in.NextSteps, in.Author).
		Scan(&pv.ID, &pv.MeetingID, &pv.Content, &pv.Decisions, &pv.NextSteps, &pv.CreatedBy, &pv.CreatedAt, &pv.UpdatedAt, &created)
	if err != nil {
		return roads.Minutes{}, false, mapErr(err, "user")
	}
	if _, err := tx.ExecContext(ctx, `update meetings set has_minutes = true where id = $1`, meetingID); err != nil {
		return roads.Minutes{}, false, err
	}
	if err := tx.Commit(); err != nil {
		return roads.Minutes{}, false, err
	}
	return pv, created, nil
}

func (s *Store) GetMinutes(ctx context.Context, meetingID int64) (roads.Minutes, error) {
	var pv roads.Minutes
	var exists bool
	if err := s.db.QueryRowContext(ctx, `select exists(select 1 from meetings where id = $1)`, meetingID).Scan(&exists); err != nil {
		return roads.Minutes{}, err
	}
	if !exists {
		return roads.Minutes{}, roads.NotFound("meeting")
	}
	err := s.db.QueryRowContext(ctx, `
		select id, meeting_id, content, decisions, next_steps, created_by, created_at, updated_at
		from meeting_minutes where meeting_id = $1`, meetingID).
		Scan(&pv.ID, &pv.MeetingID, &pv.Content, &pv.Decisions, &pv.NextSteps, &pv.CreatedBy, &pv.CreatedAt, &pv.UpdatedAt)
	return pv, mapErr(err, "minutes")
}

func (s *Store) UsualParticipants(ctx context.Context, lotID int64) ([]roads.ParticipantCount, error) {
	meetings, err := s.ListMeetings(ctx, lotID, false)
	if err != nil {
		return nil, err
	}
	return roads.RankParticipants(meetings), nil
}
