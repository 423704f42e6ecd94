package services

import (
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"shopfront/internal/errs"
	applog "shopfront/internal/log"
	"shopfront/internal/realtime"
	"shopfront/internal/repos"
	"shopfront/internal/validate"
)

type MessageService struct {
	DB       *sqlx.DB
	Messages *repos.MessageRepo
	Users    *repos.UserRepo
	RT       realtime.Publisher
}

func NewMessageService(db *sqlx.DB, messages *repos.MessageRepo, users *repos.UserRepo, rt realtime.Publisher) *MessageService {
	return &MessageService{DB: db, Messages: messages, Users: users, RT: rt}
}

type SendInput struct {
	RecipientID string  `json:"recipient_id" validate:"required"`
	Subject     string  `json:"subject"`
	Body        string  `json:"body" validate:"required"`
	ParentID    *string `json:"parent_id"`
}

// Send persists a directed message and then pushes a new_message event to
// the recipient's channel. The publish is fire-and-forget; delivery problems
// never fail the send.
func (s *MessageService) Send(senderID string, in SendInput) (repos.MessageRow, error) {
	body, ok := validate.Body(in.Body)
	if !ok {
		return repos.MessageRow{}, errs.Invalid("body", "must be non-empty and at most 10000 characters")
	}
	subject := validate.Subject(in.Subject)

	recipient, err := s.Users.ActiveByID(in.RecipientID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return repos.MessageRow{}, errs.NotFound("recipient", in.RecipientID)
		}
		return repos.MessageRow{}, err
	}
	if recipient.ID == senderID {
		return repos.MessageRow{}, errs.Invalid("recipient_id", "cannot message yourself")
	}

	// A reply may only attach to a thread the sender can see.
	if in.ParentID != nil && *in.ParentID != "" {
		visible, err := s.Messages.ParentVisible(*in.ParentID, senderID)
		if err != nil {
			return repos.MessageRow{}, err
		}
		if !visible {
			return repos.MessageRow{}, errs.NotFound("message", *in.ParentID)
		}
	} else {
		in.ParentID = nil
	}

	sender, err := s.Users.ByID(senderID)
	if err != nil {
		return repos.MessageRow{}, err
	}

	id := uuid.NewString()
	createdAt, err := s.Messages.Insert(id, senderID, recipient.ID, subject, body, in.ParentID)
	if err != nil {
		return repos.MessageRow{}, err
	}

	m := repos.MessageRow{
		ID:            id,
		SenderID:      senderID,
		SenderName:    sender.Name,
		RecipientID:   recipient.ID,
		RecipientName: recipient.Name,
		Subject:       subject,
		Body:          body,
		CreatedAt:     createdAt,
	}
	if in.ParentID != nil {
		m.ParentID = sql.NullString{String: *in.ParentID, Valid: true}
	}

	s.RT.Publish(recipient.ID, realtime.Event{
		Name: "new_message",
		Data: map[string]any{
			"id":          m.ID,
			"sender_id":   m.SenderID,
			"sender_name": m.SenderName,
			"subject":     m.Subject,
			"message":     m.Body,
			"created_at":  m.CreatedAt,
		},
	})

	return m, nil
}

// GetByID returns the message plus its direct replies, oldest first. When the
// requester is the recipient and the message is unread, viewing it marks it
// read in the same transaction (read-on-view). Requesters who are neither
// sender nor recipient get not-found, never the content.
func (s *MessageService) GetByID(id, requesterID string) (repos.MessageRow, []repos.MessageRow, error) {
	var m repos.MessageRow
	var replies []repos.MessageRow

	err := repos.WithTx(s.DB, func(tx *sqlx.Tx) error {
		var err error
		m, err = s.Messages.VisibleByIDTx(tx, id, requesterID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return errs.NotFound("message", id)
			}
			return err
		}
		if m.RecipientID == requesterID && !m.IsRead {
			readAt, changed, err := s.Messages.MarkReadTx(tx, id, requesterID)
			if err != nil {
				return err
			}
			if changed {
				m.IsRead = true
				m.ReadAt = sql.NullString{String: readAt, Valid: true}
			}
		}
		replies, err = s.Messages.RepliesTx(tx, id)
		return err
	})
	if err != nil {
		return repos.MessageRow{}, nil, err
	}
	return m, replies, nil
}

// MarkRead is the explicit single-message variant of read-on-view.
func (s *MessageService) MarkRead(id, requesterID string) error {
	return repos.WithTx(s.DB, func(tx *sqlx.Tx) error {
		m, err := s.Messages.VisibleByIDTx(tx, id, requesterID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return errs.NotFound("message", id)
			}
			return err
		}
		if m.RecipientID != requesterID {
			return errs.NotFound("message", id)
		}
		_, _, err = s.Messages.MarkReadTx(tx, id, requesterID)
		return err
	})
}

func (s *MessageService) Conversations(requesterID string) ([]repos.ConversationRow, error) {
	return s.Messages.Conversations(requesterID)
}

func (s *MessageService) MarkAllRead(requesterID string) (int64, error) {
	n, err := s.Messages.MarkAllRead(requesterID)
	if err == nil && n > 0 {
		applog.Info(nil, "messages.read_all", map[string]any{"user_id": requesterID, "count": n})
	}
	return n, err
}

func (s *MessageService) UnreadCount(requesterID string) (int, error) {
	return s.Messages.UnreadCount(requesterID)
}

// List returns the inbox by default, or sent messages for box == "sent".
func (s *MessageService) List(requesterID, box string) ([]repos.MessageRow, error) {
	if box == "sent" {
		return s.Messages.ListSent(requesterID)
	}
	return s.Messages.ListInbox(requesterID)
}
