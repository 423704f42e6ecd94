package handlers

import (
	"database/sql"
	"errors"

	"github.com/gofiber/fiber/v2"

	"shopfront/internal/domain"
	"shopfront/internal/errs"
	applog "shopfront/internal/log"
	"shopfront/internal/repos"
	"shopfront/internal/services"
	"shopfront/internal/validate"
)

type OrderHandler struct {
	Order *services.OrderService
	Repo  *repos.OrderRepo
}

type createOrderBody struct {
	Items         []services.LineItem `json:"items" validate:"required,min=1,dive"`
	BillingName   string              `json:"billing_name" validate:"required,max=100"`
	BillingEmail  string              `json:"billing_email" validate:"required"`
	ShippingAddr  string              `json:"shipping_address" validate:"max=500"`
	PaymentMethod string              `json:"payment_method" validate:"required"`
}

func (h *OrderHandler) Create(c *fiber.Ctx) error {
	u := currentUser(c)
	var body createOrderBody
	if err := parseBody(c, &body); err != nil {
		return err
	}
	email, ok := validate.Email(body.BillingEmail)
	if !ok {
		return errs.Invalid("billing_email", "must be a valid email address")
	}

	order, items, err := h.Order.Place(u.ID, body.Items, services.CheckoutInfo{
		Name:          body.BillingName,
		Email:         email,
		ShippingAddr:  body.ShippingAddr,
		PaymentMethod: body.PaymentMethod,
	})
	if err != nil {
		return err
	}

	applog.Audit(c, "order.place", map[string]any{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"total":        order.Total,
	})
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"order": order, "items": items})
}

func (h *OrderHandler) Get(c *fiber.Ctx) error {
	oid, ok := validate.ID(c.Params("id"))
	if !ok {
		return errs.NotFound("order", c.Params("id"))
	}
	o, items, err := h.Repo.Get(oid)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errs.NotFound("order", oid)
		}
		return err
	}

	// Owner or admin; a foreign order reads as missing.
	u := currentUser(c)
	if o.UserID != u.ID && !u.IsAdmin() {
		applog.Security(c, "access.denied.order", map[string]any{"order_id": oid})
		return errs.NotFound("order", oid)
	}
	return c.JSON(fiber.Map{"order": o, "items": items})
}

// List returns the requester's order history; admins may pass all=1 for the
// latest orders across users.
func (h *OrderHandler) List(c *fiber.Ctx) error {
	u := currentUser(c)
	if c.Query("all") == "1" && u.IsAdmin() {
		orders, err := h.Repo.ListLatest(100)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"orders": orders})
	}
	orders, err := h.Repo.ListByUser(u.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"orders": orders})
}

type statusBody struct {
	Status        *string `json:"status"`
	PaymentStatus *string `json:"payment_status"`
}

func (h *OrderHandler) UpdateStatus(c *fiber.Ctx) error {
	oid, ok := validate.ID(c.Params("id"))
	if !ok {
		return errs.NotFound("order", c.Params("id"))
	}
	var body statusBody
	if err := parseBody(c, &body); err != nil {
		return err
	}
	if body.Status == nil && body.PaymentStatus == nil {
		return errs.Invalid("status", "nothing to update")
	}
	if body.Status != nil && !domain.ValidOrderStatus(*body.Status) {
		return errs.Invalid("status", "must be one of pending, processing, completed, cancelled")
	}
	if body.PaymentStatus != nil && !domain.ValidPaymentStatus(*body.PaymentStatus) {
		return errs.Invalid("payment_status", "must be one of pending, paid, refunded")
	}

	found, err := h.Repo.UpdateStatus(oid, repos.OrderStatusPatch{
		Status:        body.Status,
		PaymentStatus: body.PaymentStatus,
	})
	if err != nil {
		return err
	}
	if !found {
		return errs.NotFound("order", oid)
	}

	applog.Audit(c, "order.status.update", map[string]any{"order_id": oid})
	o, items, err := h.Repo.Get(oid)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"order": o, "items": items})
}
