package pg

import (
	"context"

	"roadwatch.mg/internal/roads"
)

func (s *Store) InsertMessage(ctx context.Context, lotID, senderID, recipientID int64, subject, content, urgency string) (roads.Message, error) {
	m := roads.Message{
		LotID:       lotID,
		SenderID:    senderID,
		RecipientID: recipientID,
		Subject:     subject,
		Content:     content,
		Urgency:     urgency,
	}
	err := s.db.QueryRowContext(ctx, `
		insert into messages (lot_id, sender_id, recipient_id, subject, content, urgency)
		values ($1, $2, $3, $4, $5, $6)
		returning id, created_at`,
		lotID, senderID, recipientID, subject, content, urgency).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return roads.Message{}, mapErr(err, "message")
	}
	return m, nil
}

// ListMessages returns the lot's messages newest first. A non-zero userID
// keeps only messages the user sent or received.
func (s *Store) ListMessages(ctx context.Context, lotID, userID int64) ([]roads.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		select m.id, m.lot_id, m.sender_id, coalesce(su.username, ''), m.recipient_id, coalesce(ru.username, ''),
			m.subject, m.content, m.urgency, m.created_at
		from messages m
		left join users su on su.id = m.sender_id
		left join users ru on ru.id = m.recipient_id
		where m.lot_id = $1 and ($2::bigint = 0 or m.sender_id = $2 or m.recipient_id = $2)
		order by m.created_at desc, m.id desc`, lotID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []roads.Message{}
	for rows.Next() {
		var m roads.Message
		if err := rows.Scan(&m.ID, &m.LotID, &m.SenderID, &m.SenderName, &m.RecipientID, &m.RecipientName,
			&m.Subject, &m.Content, &m.Urgency, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

const notificationColumns = `
	n.id, n.lot_id, n.user_id, coalesce(u.username, ''), n.type, n.message, n.urgency, n.read, n.created_at`

func scanNotification(row interface{ Scan(...any) error }) (roads.Notification, error) {
	var n roads.Notification
	err := row.Scan(&n.ID, &n.LotID, &n.UserID, &n.UserName, &n.Type, &n.Message, &n.Urgency, &n.Read, &n.CreatedAt)
	return n, err
}

func (s *Store) CreateNotification(ctx context.Context, in roads.NotificationInput) (roads.Notification, error) {
	if err := in.Normalize(); err != nil {
		return roads.Notification{}, err
	}
	n := roads.Notification{LotID: in.LotID, UserID: in.UserID, Type: in.Type, Message: in.Message, Urgency: in.Urgency}
	err := s.db.QueryRowContext(ctx, `
		insert into notifications (lot_id, user_id, type, message, urgency)
		values ($1, $2, $3, $4, $5)
		returning id, read, created_at`,
		in.LotID, in.UserID, in.Type, in.Message, in.Urgency).Scan(&n.ID, &n.Read, &n.CreatedAt)
	if err != nil {
		return roads.Notification{}, mapErr(err, "notification")
	}
	return n, nil
}

func (s *Store) ListNotifications(ctx context.Context, lotID, userID int64, unreadOnly bool) ([]roads.Notification, error) {
	rows, err := s.db.QueryContext(ctx, `select `+notificationColumns+`
		from notifications n
		left join users u on u.id = n.user_id
		where n.lot_id = $1 and ($2::bigint = 0 or n.user_id = $2) and ($3 = false or n.read = false)
		order by n.created_at desc, n.id desc`, lotID, userID, unreadOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []roads.Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkNotificationRead is idempotent: read only moves from false to true.
func (s *Store) MarkNotificationRead(ctx context.Context, id int64) (roads.Notification, error) {
	n, err := scanNotification(s.db.QueryRowContext(ctx, `
		with updated as (
			update notifications set read = true where id = $1 returning *
		)
		select `+notificationColumns+`
		from updated n
		left join users u on u.id = n.user_id`, id))
	if err != nil {
		return roads.Notification{}, mapErr(err, "notification")
	}
	return n, nil
}
