package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"shopfront/internal/domain"
	"shopfront/internal/errs"
	applog "shopfront/internal/log"
	"shopfront/internal/repos"
)

// EventPublisher is the best-effort confirmation channel (AMQP in prod).
type EventPublisher interface {
	Publish(ctx context.Context, key string, body []byte) error
}

type LineItem struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,min=1"`
}

type CheckoutInfo struct {
	Name          string
	Email         string
	ShippingAddr  string
	PaymentMethod string
}

var paymentMethods = map[string]bool{
	"card":          true,
	"paypal":        true,
	"bank_transfer": true,
}

type OrderService struct {
	DB       *sqlx.DB
	Products *repos.ProductRepo
	Orders   *repos.OrderRepo
	TaxRate  float64
	Events   EventPublisher
}

func NewOrderService(db *sqlx.DB, products *repos.ProductRepo, orders *repos.OrderRepo, taxRate float64, events EventPublisher) *OrderService {
	return &OrderService{DB: db, Products: products, Orders: orders, TaxRate: taxRate, Events: events}
}

// Place runs the whole order creation as one transaction: per line item it
// reads the live product row, snapshots name/sku/price, and decrements stock
// with an in-statement guard. Any missing product or failed decrement aborts
// the lot; nothing partial is ever visible.
func (s *OrderService) Place(userID string, items []LineItem, info CheckoutInfo) (repos.OrderRow, []repos.OrderItemRow, error) {
	if len(items) == 0 {
		return repos.OrderRow{}, nil, errs.Invalid("items", "at least one line item required")
	}
	for _, it := range items {
		if it.Quantity < 1 {
			return repos.OrderRow{}, nil, errs.Invalid("quantity", "must be at least 1")
		}
	}
	if !paymentMethods[info.PaymentMethod] {
		return repos.OrderRow{}, nil, errs.Invalid("payment_method", "must be one of card, paypal, bank_transfer")
	}

	var order repos.OrderRow
	var lines []repos.OrderItemRow

	err := repos.WithTx(s.DB, func(tx *sqlx.Tx) error {
		orderID := uuid.NewString()
		subtotal := 0.0
		lines = lines[:0]

		for _, it := range items {
			p, err := s.Products.GetTx(tx, it.ProductID)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return errs.NotFound("product", it.ProductID)
				}
				return err
			}
			if p.TrackInventory {
				ok, err := s.Products.DecrementStockTx(tx, p.ID, it.Quantity)
				if err != nil {
					return err
				}
				if !ok {
					return errs.Conflict("insufficient stock for %s (requested %d)", p.ID, it.Quantity)
				}
			}
			subtotal = round2(subtotal + p.Price*float64(it.Quantity))
			lines = append(lines, repos.OrderItemRow{
				ID:          uuid.NewString(),
				OrderID:     orderID,
				ProductID:   p.ID,
				ProductName: p.Name,
				SKU:         p.SKU,
				Price:       p.Price,
				Quantity:    it.Quantity,
				LineTotal:   round2(p.Price * float64(it.Quantity)),
			})
		}

		tax := round2(subtotal * s.TaxRate)
		order = repos.OrderRow{
			ID:            orderID,
			UserID:        userID,
			Status:        domain.OrderPending,
			PaymentStatus: domain.PaymentPending,
			PaymentMethod: info.PaymentMethod,
			BillingName:   info.Name,
			BillingEmail:  info.Email,
			ShippingAddr:  info.ShippingAddr,
			Subtotal:      subtotal,
			Tax:           tax,
			Total:         round2(subtotal + tax),
			CreatedAt:     time.Now().UTC().Format("2006-01-02 15:04:05"),
		}

		if err := s.insertWithFreshNumber(tx, &order); err != nil {
			return err
		}
		for _, ln := range lines {
			if err := s.Orders.InsertItemTx(tx, ln); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return repos.OrderRow{}, nil, err
	}

	// Confirmation is fire-and-forget: a dead broker must not undo a
	// committed order.
	go s.publishPlaced(order, lines)

	return order, lines, nil
}

// insertWithFreshNumber inserts the order header, regenerating the
// timestamp-derived number on a UNIQUE collision. The constraint is the real
// uniqueness guarantee; the retry just rides it out.
func (s *OrderService) insertWithFreshNumber(tx *sqlx.Tx, o *repos.OrderRow) error {
	for attempt := 0; ; attempt++ {
		o.OrderNumber = newOrderNumber()
		err := s.Orders.InsertTx(tx, *o)
		if err == nil {
			return nil
		}
		if attempt < 3 && strings.Contains(err.Error(), "orders.order_number") {
			continue
		}
		return err
	}
}

func newOrderNumber() string {
	return "SF-" + time.Now().UTC().Format("20060102-150405") + "-" + randDigits(4)
}

func randDigits(n int) string {
	const digits = "0123456789"
	b := make([]byte, n)
	for i := range b {
		b[i] = digits[rand.Intn(len(digits))]
	}
	return string(b)
}

func (s *OrderService) publishPlaced(o repos.OrderRow, items []repos.OrderItemRow) {
	if s.Events == nil {
		return
	}
	payload, err := json.Marshal(map[string]any{
		"order_id":      o.ID,
		"order_number":  o.OrderNumber,
		"user_id":       o.UserID,
		"billing_email": o.BillingEmail,
		"total":         o.Total,
		"items":         items,
	})
	if err != nil {
		applog.Error(nil, "order.confirm.encode", err, map[string]any{"order_id": o.ID})
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Events.Publish(ctx, "order.placed", payload); err != nil {
		applog.Error(nil, "order.confirm.publish", err, map[string]any{"order_id": o.ID})
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
