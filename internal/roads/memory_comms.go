package roads

import (
	"context"
	"sort"
)

func (s *InMemory) InsertMessage(ctx context.Context, lotID, senderID, recipientID int64, subject, content, urgency string) (Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lots[lotID]; !ok {
		return Message{}, NotFound("lot")
	}
	if _, ok := s.users[senderID]; !ok {
		return Message{}, NotFound("sender")
	}
	if _, ok := s.users[recipientID]; !ok {
		return Message{}, NotFound("recipient")
	}
	m := Message{
		ID:          s.next("messages"),
		LotID:       lotID,
		SenderID:    senderID,
		RecipientID: recipientID,
		Subject:     subject,
		Content:     content,
		Urgency:     urgency,
		CreatedAt:   s.stamp(),
	}
	s.messages = append(s.messages, m)
	m.SenderName = s.username(senderID)
	m.RecipientName = s.username(recipientID)
	return m, nil
}

// ListMessages returns the lot's messages newest first. A non-zero userID
// keeps only messages the user sent or received.
func (s *InMemory) ListMessages(ctx context.Context, lotID, userID int64) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []Message{}
	for i := len(s.messages) - 1; i >= 0; i-- {
		m := s.messages[i]
		if m.LotID != lotID {
			continue
		}
		if userID != 0 && m.SenderID != userID && m.RecipientID != userID {
			continue
		}
		m.SenderName = s.username(m.SenderID)
		m.RecipientName = s.username(m.RecipientID)
		out = append(out, m)
	}
	return out, nil
}

func (s *InMemory) CreateNotification(ctx context.Context, in NotificationInput) (Notification, error) {
	if err := in.Normalize(); err != nil {
		return Notification{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lots[in.LotID]; !ok {
		return Notification{}, NotFound("lot")
	}
	if _, ok := s.users[in.UserID]; !ok {
		return Notification{}, NotFound("user")
	}
	n := &Notification{
		ID:        s.next("notifications"),
		LotID:     in.LotID,
		UserID:    in.UserID,
		Type:      in.Type,
		Message:   in.Message,
		Urgency:   in.Urgency,
		CreatedAt: s.stamp(),
	}
	s.notifications[n.ID] = n
	out := *n
	out.UserName = s.username(n.UserID)
	return out, nil
}

func (s *InMemory) ListNotifications(ctx context.Context, lotID, userID int64, unreadOnly bool) ([]Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []Notification{}
	for _, n := range s.notifications {
		if n.LotID != lotID || (userID != 0 && n.UserID != userID) || (unreadOnly && n.Read) {
			continue
		}
		v := *n
		v.UserName = s.username(n.UserID)
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

// MarkNotificationRead sets read to true; repeating it is a no-op.
func (s *InMemory) MarkNotificationRead(ctx context.Context, id int64) (Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok {
		return Notification{}, NotFound("notification")
	}
	n.Read = true
	out := *n
	out.UserName = s.username(n.UserID)
	return out, nil
}
