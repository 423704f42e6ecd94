package repos

import "github.com/jmoiron/sqlx"

type OrderRepo struct{ db *sqlx.DB }

func NewOrderRepo(db *sqlx.DB) *OrderRepo { return &OrderRepo{db: db} }

type OrderRow struct {
	ID            string  `db:"id" json:"id"`
	OrderNumber   string  `db:"order_number" json:"order_number"`
	UserID        string  `db:"user_id" json:"user_id"`
	Status        string  `db:"status" json:"status"`
	PaymentStatus string  `db:"payment_status" json:"payment_status"`
	PaymentMethod string  `db:"payment_method" json:"payment_method"`
	BillingName   string  `db:"billing_name" json:"billing_name"`
	BillingEmail  string  `db:"billing_email" json:"billing_email"`
	ShippingAddr  string  `db:"shipping_address" json:"shipping_address"`
	Subtotal      float64 `db:"subtotal" json:"subtotal"`
	Tax           float64 `db:"tax" json:"tax"`
	Total         float64 `db:"total" json:"total"`
	CreatedAt     string  `db:"created_at" json:"created_at"`
}

type OrderItemRow struct {
	ID          string  `db:"id" json:"id"`
	OrderID     string  `db:"order_id" json:"order_id"`
	ProductID   string  `db:"product_id" json:"product_id"`
	ProductName string  `db:"product_name" json:"product_name"`
	SKU         string  `db:"sku" json:"sku"`
	Price       float64 `db:"price" json:"price"`
	Quantity    int     `db:"quantity" json:"quantity"`
	LineTotal   float64 `db:"line_total" json:"line_total"`
}

type OrderSummary struct {
	ID           string  `db:"id" json:"id"`
	OrderNumber  string  `db:"order_number" json:"order_number"`
	BillingName  string  `db:"billing_name" json:"billing_name"`
	BillingEmail string  `db:"billing_email" json:"billing_email"`
	Total        float64 `db:"total" json:"total"`
	Status       string  `db:"status" json:"status"`
	CreatedAt    string  `db:"created_at" json:"created_at"`
}

// OrderStatusPatch lists every updatable order field as an optional value.
// Nil fields are left untouched by a fixed set of COALESCE assignments, so
// the update contract is statically checkable (no dynamic SQL assembly).
type OrderStatusPatch struct {
	Status        *string `json:"status"`
	PaymentStatus *string `json:"payment_status"`
}

// InsertTx inserts the order header inside the creation transaction.
func (r *OrderRepo) InsertTx(tx *sqlx.Tx, o OrderRow) error {
	_, err := tx.Exec(`
	  INSERT INTO orders
	    (id, order_number, user_id, status, payment_status, payment_method,
	     billing_name, billing_email, shipping_address, subtotal, tax, total, created_at)
	  VALUES
	    (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, o.ID, o.OrderNumber, o.UserID, o.Status, o.PaymentStatus, o.PaymentMethod,
		o.BillingName, o.BillingEmail, o.ShippingAddr, o.Subtotal, o.Tax, o.Total, o.CreatedAt)
	return err
}

func (r *OrderRepo) InsertItemTx(tx *sqlx.Tx, it OrderItemRow) error {
	_, err := tx.Exec(`
	  INSERT INTO order_items(id, order_id, product_id, product_name, sku, price, quantity)
	  VALUES(?, ?, ?, ?, ?, ?, ?)
	`, it.ID, it.OrderID, it.ProductID, it.ProductName, it.SKU, it.Price, it.Quantity)
	return err
}

func (r *OrderRepo) Get(orderID string) (OrderRow, []OrderItemRow, error) {
	var o OrderRow
	if err := r.db.Get(&o, `
		SELECT id, order_number, user_id, status, payment_status, payment_method,
		       billing_name, billing_email, COALESCE(shipping_address,'') AS shipping_address,
		       subtotal, tax, total, created_at
		FROM orders
		WHERE id = ?
	`, orderID); err != nil {
		return OrderRow{}, nil, err
	}

	items, err := r.Items(orderID)
	if err != nil {
		return OrderRow{}, nil, err
	}
	return o, items, nil
}

func (r *OrderRepo) Items(orderID string) ([]OrderItemRow, error) {
	var items []OrderItemRow
	err := r.db.Select(&items, `
		SELECT id, order_id, product_id, product_name, sku, price, quantity,
		       (price * quantity) AS line_total
		FROM order_items
		WHERE order_id = ?
		ORDER BY product_name
	`, orderID)
	return items, err
}

func (r *OrderRepo) ListByUser(userID string) ([]OrderSummary, error) {
	var out []OrderSummary
	err := r.db.Select(&out, `
		SELECT id, order_number, billing_name, billing_email, total, status, created_at
		FROM orders
		WHERE user_id = ?
		ORDER BY datetime(created_at) DESC, id
	`, userID)
	return out, err
}

func (r *OrderRepo) ListLatest(limit int) ([]OrderSummary, error) {
	if limit <= 0 {
		limit = 100
	}
	var out []OrderSummary
	err := r.db.Select(&out, `
		SELECT id, order_number, billing_name, billing_email, total, status, created_at
		FROM orders
		ORDER BY datetime(created_at) DESC, id
		LIMIT ?
	`, limit)
	return out, err
}

// UpdateStatus applies a typed patch. Returns false when the order does not
// exist.
func (r *OrderRepo) UpdateStatus(id string, patch OrderStatusPatch) (bool, error) {
	res, err := r.db.Exec(`
		UPDATE orders
		SET status = COALESCE(?, status),
		    payment_status = COALESCE(?, payment_status)
		WHERE id = ?
	`, patch.Status, patch.PaymentStatus, id)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
