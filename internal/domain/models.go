package domain

// Order lifecycle states. Orders are never hard-deleted; cancellation is a
// status transition.
const (
	OrderPending    = "pending"
	OrderProcessing = "processing"
	OrderCompleted  = "completed"
	OrderCancelled  = "cancelled"
)

const (
	PaymentPending  = "pending"
	PaymentPaid     = "paid"
	PaymentRefunded = "refunded"
)

func ValidOrderStatus(s string) bool {
	switch s {
	case OrderPending, OrderProcessing, OrderCompleted, OrderCancelled:
		return true
	}
	return false
}

func ValidPaymentStatus(s string) bool {
	switch s {
	case PaymentPending, PaymentPaid, PaymentRefunded:
		return true
	}
	return false
}

type Product struct {
	ID             string  `db:"id" json:"id"`
	Name           string  `db:"name" json:"name"`
	SKU            string  `db:"sku" json:"sku"`
	Description    string  `db:"description" json:"description"`
	Price          float64 `db:"price" json:"price"`
	Quantity       int     `db:"quantity" json:"quantity"`
	TrackInventory bool    `db:"track_inventory" json:"track_inventory"`
	Active         bool    `db:"active" json:"active"`
	CreatedAt      string  `db:"created_at" json:"created_at"`
	UpdatedAt      string  `db:"updated_at" json:"updated_at"`
}
