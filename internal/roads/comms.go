package roads

import (
	"context"
	"time"
)

// Message is an immutable, unidirectional message between two users of a lot.
type Message struct {
	ID            int64     `json:"id"`
	LotID         int64     `json:"lot_id"`
	SenderID      int64     `json:"sender_id"`
	SenderName    string    `json:"sender_name,omitempty"`
	RecipientID   int64     `json:"recipient_id"`
	RecipientName string    `json:"recipient_name,omitempty"`
	Subject       string    `json:"subject"`
	Content       string    `json:"content"`
	Urgency       string    `json:"urgency"`
	CreatedAt     time.Time `json:"created_at"`
}

// Notification is a per-user notice; Read only ever goes from false to true.
type Notification struct {
	ID        int64     `json:"id"`
	LotID     int64     `json:"lot_id"`
	UserID    int64     `json:"user_id"`
	UserName  string    `json:"user_name,omitempty"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Urgency   string    `json:"urgency"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// MessageInput addresses one message to one or more recipients.
type MessageInput struct {
	LotID        int64
	SenderID     int64
	RecipientIDs []int64
	Subject      string
	Content      string
	Urgency      string
}

// Normalize validates the input. Repeated recipient ids collapse to one, so
// each recipient gets a single message.
func (in *MessageInput) Normalize() error {
	in.Subject = clean(in.Subject)
	in.Content = clean(in.Content)
	if in.LotID <= 0 {
		return Invalid("lot id is required")
	}
	if in.Content == "" {
		return Invalid("content is required")
	}
	var err error
	if in.Urgency, err = NormalizeUrgency(in.Urgency); err != nil {
		return err
	}
	seen := map[int64]bool{}
	ids := make([]int64, 0, len(in.RecipientIDs))
	for _, id := range in.RecipientIDs {
		if id <= 0 {
			return Invalid("recipient ids must be positive")
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return Invalid("at least one recipient is required")
	}
	in.RecipientIDs = ids
	return nil
}

// DeliveryFailure records a recipient whose message could not be stored.
type DeliveryFailure struct {
	RecipientID int64  `json:"recipient_id"`
	Error       string `json:"error"`
}

// FanOutResult reports a multi-recipient send.
type FanOutResult struct {
	Messages []Message         `json:"messages"`
	Failed   []DeliveryFailure `json:"failed"`
}

// MessageWriter stores a single message row.
type MessageWriter interface {
	InsertMessage(ctx context.Context, lotID, senderID, recipientID int64, subject, content, urgency string) (Message, error)
}

// FanOut sends in to every recipient as independent inserts. A failed
// recipient does not undo the others; FanOut errors only when nothing was sent.
func FanOut(ctx context.Context, w MessageWriter, in MessageInput) (FanOutResult, error) {
	if err := in.Normalize(); err != nil {
		return FanOutResult{}, err
	}
	res := FanOutResult{Messages: []Message{}, Failed: []DeliveryFailure{}}
	var firstErr error
	for _, rid := range in.RecipientIDs {
		msg, err := w.InsertMessage(ctx, in.LotID, in.SenderID, rid, in.Subject, in.Content, in.Urgency)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			res.Failed = append(res.Failed, DeliveryFailure{RecipientID: rid, Error: err.Error()})
			continue
		}
		res.Messages = append(res.Messages, msg)
	}
	if len(res.Messages) == 0 {
		return res, firstErr
	}
	return res, nil
}

type NotificationInput struct {
	LotID   int64  `json:"-"`
	UserID  int64  `json:"userId"`
	Type    string `json:"type"`
	Message string `json:"message"`
	Urgency string `json:"urgency"`
}

func (in *NotificationInput) Normalize() error {
	in.Type = clean(in.Type)
	in.Message = clean(in.Message)
	if in.LotID <= 0 {
		return Invalid("lot id is required")
	}
	if in.UserID <= 0 {
		return Invalid("userId is required")
	}
	if in.Message == "" {
		return Invalid("message is required")
	}
	if in.Type == "" {
		in.Type = "info"
	}
	var err error
	in.Urgency, err = NormalizeUrgency(in.Urgency)
	return err
}
