package handlers

import (
	"github.com/gofiber/fiber/v2"

	"shopfront/internal/errs"
	applog "shopfront/internal/log"
	"shopfront/internal/repos"
	"shopfront/internal/services"
	"shopfront/internal/validate"
)

type MessageHandler struct {
	Messages *services.MessageService
}

// messageJSON exposes the nullable columns in a JSON-friendly shape.
func messageJSON(m repos.MessageRow) fiber.Map {
	out := fiber.Map{
		"id":             m.ID,
		"sender_id":      m.SenderID,
		"sender_name":    m.SenderName,
		"recipient_id":   m.RecipientID,
		"recipient_name": m.RecipientName,
		"subject":        m.Subject,
		"body":           m.Body,
		"is_read":        m.IsRead,
		"parent_id":      nil,
		"read_at":        nil,
		"created_at":     m.CreatedAt,
	}
	if m.ParentID.Valid {
		out["parent_id"] = m.ParentID.String
	}
	if m.ReadAt.Valid {
		out["read_at"] = m.ReadAt.String
	}
	return out
}

func messagesJSON(rows []repos.MessageRow) []fiber.Map {
	out := make([]fiber.Map, 0, len(rows))
	for _, m := range rows {
		out = append(out, messageJSON(m))
	}
	return out
}

// List serves the inbox by default, or sent mail with ?type=sent.
func (h *MessageHandler) List(c *fiber.Ctx) error {
	u := currentUser(c)
	box := c.Query("type", "inbox")
	if box != "inbox" && box != "sent" {
		return errs.Invalid("type", "must be inbox or sent")
	}
	rows, err := h.Messages.List(u.ID, box)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"messages": messagesJSON(rows)})
}

func (h *MessageHandler) Send(c *fiber.Ctx) error {
	u := currentUser(c)
	var body services.SendInput
	if err := parseBody(c, &body); err != nil {
		return err
	}
	m, err := h.Messages.Send(u.ID, body)
	if err != nil {
		return err
	}
	applog.Audit(c, "message.send", map[string]any{"message_id": m.ID, "recipient_id": m.RecipientID})
	return c.Status(fiber.StatusCreated).JSON(messageJSON(m))
}

func (h *MessageHandler) Get(c *fiber.Ctx) error {
	u := currentUser(c)
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return errs.NotFound("message", c.Params("id"))
	}
	m, replies, err := h.Messages.GetByID(id, u.ID)
	if err != nil {
		return err
	}
	out := messageJSON(m)
	out["replies"] = messagesJSON(replies)
	return c.JSON(out)
}

func (h *MessageHandler) MarkRead(c *fiber.Ctx) error {
	u := currentUser(c)
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return errs.NotFound("message", c.Params("id"))
	}
	if err := h.Messages.MarkRead(id, u.ID); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"ok": true})
}

func (h *MessageHandler) MarkAllRead(c *fiber.Ctx) error {
	u := currentUser(c)
	n, err := h.Messages.MarkAllRead(u.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"ok": true, "updated": n})
}

func (h *MessageHandler) UnreadCount(c *fiber.Ctx) error {
	u := currentUser(c)
	n, err := h.Messages.UnreadCount(u.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"count": n})
}

func (h *MessageHandler) Conversations(c *fiber.Ctx) error {
	u := currentUser(c)
	convs, err := h.Messages.Conversations(u.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"conversations": convs})
}
