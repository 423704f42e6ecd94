package repos

import (
	"github.com/jmoiron/sqlx"

	"shopfront/internal/domain"
)

type ProductRepo struct{ db *sqlx.DB }

func NewProductRepo(db *sqlx.DB) *ProductRepo { return &ProductRepo{db: db} }

func (r *ProductRepo) Get(id string) (domain.Product, error) {
	var p domain.Product
	err := r.db.Get(&p, `
	  SELECT id, name, sku, COALESCE(description,'') AS description, price,
	         quantity, track_inventory, active,
	         created_at, COALESCE(updated_at,'') AS updated_at
	  FROM products
	  WHERE id = ?
	`, id)
	return p, err
}

// GetTx reads a product on the order transaction's connection so the price
// and stock the workflow sees are the ones it decrements against.
func (r *ProductRepo) GetTx(tx *sqlx.Tx, id string) (domain.Product, error) {
	var p domain.Product
	err := tx.Get(&p, `
	  SELECT id, name, sku, COALESCE(description,'') AS description, price,
	         quantity, track_inventory, active,
	         created_at, COALESCE(updated_at,'') AS updated_at
	  FROM products
	  WHERE id = ? AND active = 1
	`, id)
	return p, err
}

// DecrementStockTx subtracts qty only while enough stock remains; zero rows
// affected means the conditional failed and the caller must treat it as a
// conflict. Keeping the guard in the statement closes the oversell race
// between concurrent orders.
func (r *ProductRepo) DecrementStockTx(tx *sqlx.Tx, id string, qty int) (bool, error) {
	res, err := tx.Exec(`
		UPDATE products
		SET quantity = quantity - ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND quantity >= ?
	`, qty, id, qty)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *ProductRepo) Qty(id string) (int, error) {
	var qty int
	err := r.db.Get(&qty, `SELECT quantity FROM products WHERE id = ?`, id)
	return qty, err
}
