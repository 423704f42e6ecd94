package repos

import (
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
)

type MessageRepo struct{ db *sqlx.DB }

func NewMessageRepo(db *sqlx.DB) *MessageRepo { return &MessageRepo{db: db} }

// Fixed-width so string comparison in ORDER BY matches chronological order
// (RFC3339Nano trims trailing zeros and breaks that).
const msgTimeFormat = "2006-01-02T15:04:05.000000000Z07:00"

type MessageRow struct {
	ID            string         `db:"id" json:"id"`
	SenderID      string         `db:"sender_id" json:"sender_id"`
	SenderName    string         `db:"sender_name" json:"sender_name"`
	RecipientID   string         `db:"recipient_id" json:"recipient_id"`
	RecipientName string         `db:"recipient_name" json:"recipient_name"`
	Subject       string         `db:"subject" json:"subject"`
	Body          string         `db:"body" json:"body"`
	ParentID      sql.NullString `db:"parent_id" json:"-"`
	IsRead        bool           `db:"is_read" json:"is_read"`
	ReadAt        sql.NullString `db:"read_at" json:"-"`
	CreatedAt     string         `db:"created_at" json:"created_at"`
}

// ConversationRow is a derived projection, recomputed on read; it has no
// stored identity.
type ConversationRow struct {
	OtherUserID   string `db:"other_id" json:"other_user_id"`
	OtherUserName string `db:"other_name" json:"other_user_name"`
	LastSubject   string `db:"last_subject" json:"last_subject"`
	LastMessage   string `db:"last_body" json:"last_message"`
	LastAt        string `db:"last_at" json:"last_at"`
	UnreadCount   int    `db:"unread_count" json:"unread_count"`
}

const messageCols = `
	m.id, m.sender_id, s.name AS sender_name,
	m.recipient_id, r.name AS recipient_name,
	m.subject, m.body, m.parent_id, m.is_read, m.read_at, m.created_at
`

func (r *MessageRepo) Insert(id, senderID, recipientID, subject, body string, parentID *string) (string, error) {
	createdAt := time.Now().UTC().Format(msgTimeFormat)
	_, err := r.db.Exec(`
	  INSERT INTO messages(id, sender_id, recipient_id, subject, body, parent_id, is_read, created_at)
	  VALUES(?, ?, ?, ?, ?, ?, 0, ?)
	`, id, senderID, recipientID, subject, body, parentID, createdAt)
	return createdAt, err
}

// VisibleByIDTx returns the message only when requester is sender or
// recipient; anything else is sql.ErrNoRows so the caller answers "not
// found" without leaking existence.
func (r *MessageRepo) VisibleByIDTx(tx *sqlx.Tx, id, requesterID string) (MessageRow, error) {
	var m MessageRow
	err := tx.Get(&m, `
	  SELECT `+messageCols+`
	  FROM messages m
	  JOIN users s ON s.id = m.sender_id
	  JOIN users r ON r.id = m.recipient_id
	  WHERE m.id = ? AND (m.sender_id = ? OR m.recipient_id = ?)
	`, id, requesterID, requesterID)
	return m, err
}

// MarkReadTx flips the read flag for the recipient in the same transaction as
// the fetch (read-on-view). Conditional on is_read=0 so a re-read never
// rewrites read_at.
func (r *MessageRepo) MarkReadTx(tx *sqlx.Tx, id, recipientID string) (string, bool, error) {
	readAt := time.Now().UTC().Format(msgTimeFormat)
	res, err := tx.Exec(`
	  UPDATE messages SET is_read = 1, read_at = ?
	  WHERE id = ? AND recipient_id = ? AND is_read = 0
	`, readAt, id, recipientID)
	if err != nil {
		return "", false, err
	}
	n, _ := res.RowsAffected()
	return readAt, n > 0, nil
}

func (r *MessageRepo) RepliesTx(tx *sqlx.Tx, parentID string) ([]MessageRow, error) {
	var out []MessageRow
	err := tx.Select(&out, `
	  SELECT `+messageCols+`
	  FROM messages m
	  JOIN users s ON s.id = m.sender_id
	  JOIN users r ON r.id = m.recipient_id
	  WHERE m.parent_id = ?
	  ORDER BY m.created_at ASC, m.id
	`, parentID)
	return out, err
}

// ParentVisible reports whether parentID names a message the user is part of.
func (r *MessageRepo) ParentVisible(parentID, userID string) (bool, error) {
	var n int
	err := r.db.Get(&n, `
	  SELECT COUNT(*) FROM messages
	  WHERE id = ? AND (sender_id = ? OR recipient_id = ?)
	`, parentID, userID, userID)
	return n > 0, err
}

// Conversations groups every message touching the user by counterpart and
// takes the newest row per group, with a correlated unread count of messages
// the counterpart sent that the user has not read.
func (r *MessageRepo) Conversations(userID string) ([]ConversationRow, error) {
	out := []ConversationRow{}
	err := r.db.Select(&out, `
	  SELECT t.other_id,
	         u.name AS other_name,
	         m.subject AS last_subject,
	         m.body AS last_body,
	         m.created_at AS last_at,
	         (SELECT COUNT(*) FROM messages c
	          WHERE c.sender_id = t.other_id AND c.recipient_id = ? AND c.is_read = 0) AS unread_count
	  FROM (
	    SELECT CASE WHEN sender_id = ? THEN recipient_id ELSE sender_id END AS other_id
	    FROM messages
	    WHERE sender_id = ? OR recipient_id = ?
	    GROUP BY other_id
	  ) t
	  JOIN users u ON u.id = t.other_id
	  JOIN messages m ON m.id = (
	    SELECT id FROM messages
	    WHERE (sender_id = ? AND recipient_id = t.other_id)
	       OR (sender_id = t.other_id AND recipient_id = ?)
	    ORDER BY created_at DESC, id DESC
	    LIMIT 1
	  )
	  ORDER BY m.created_at DESC
	`, userID, userID, userID, userID, userID, userID)
	return out, err
}

// MarkAllRead is idempotent: already-read rows are untouched.
func (r *MessageRepo) MarkAllRead(userID string) (int64, error) {
	readAt := time.Now().UTC().Format(msgTimeFormat)
	res, err := r.db.Exec(`
	  UPDATE messages SET is_read = 1, read_at = ?
	  WHERE recipient_id = ? AND is_read = 0
	`, readAt, userID)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (r *MessageRepo) UnreadCount(userID string) (int, error) {
	var n int
	err := r.db.Get(&n, `SELECT COUNT(*) FROM messages WHERE recipient_id = ? AND is_read = 0`, userID)
	return n, err
}

func (r *MessageRepo) ListInbox(userID string) ([]MessageRow, error) {
	out := []MessageRow{}
	err := r.db.Select(&out, `
	  SELECT `+messageCols+`
	  FROM messages m
	  JOIN users s ON s.id = m.sender_id
	  JOIN users r ON r.id = m.recipient_id
	  WHERE m.recipient_id = ?
	  ORDER BY m.created_at DESC, m.id DESC
	`, userID)
	return out, err
}

func (r *MessageRepo) ListSent(userID string) ([]MessageRow, error) {
	out := []MessageRow{}
	err := r.db.Select(&out, `
	  SELECT `+messageCols+`
	  FROM messages m
	  JOIN users s ON s.id = m.sender_id
	  JOIN users r ON r.id = m.recipient_id
	  WHERE m.sender_id = ?
	  ORDER BY m.created_at DESC, m.id DESC
	`, userID)
	return out, err
}
