package repos_test

import (
	"errors"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // pure-Go SQLite driver

	"shopfront/internal/repos"
)

func memdb(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := repos.OpenDB(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	// One connection makes a leaked checkout show up as a hang in the next
	// test step instead of silently growing the pool.
	db.SetMaxOpenConns(1)
	return db
}

func TestWithTxCommits(t *testing.T) {
	db := memdb(t)

	err := repos.WithTx(db, func(tx *sqlx.Tx) error {
		_, err := tx.Exec(`UPDATE products SET quantity = 7 WHERE id = 'p-mug'`)
		return err
	})
	if err != nil {
		t.Fatalf("WithTx: %v", err)
	}

	var qty int
	if err := db.Get(&qty, `SELECT quantity FROM products WHERE id = 'p-mug'`); err != nil {
		t.Fatal(err)
	}
	if qty != 7 {
		t.Fatalf("want qty=7 after commit, got %d", qty)
	}
}

func TestWithTxRollsBackOnError(t *testing.T) {
	db := memdb(t)

	boom := errors.New("boom")
	err := repos.WithTx(db, func(tx *sqlx.Tx) error {
		if _, err := tx.Exec(`UPDATE products SET quantity = 0 WHERE id = 'p-mug'`); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("want the callback error back, got %v", err)
	}

	var qty int
	if err := db.Get(&qty, `SELECT quantity FROM products WHERE id = 'p-mug'`); err != nil {
		t.Fatal(err)
	}
	if qty != 40 {
		t.Fatalf("update leaked through rollback: qty=%d", qty)
	}
}

func TestWithTxRollsBackOnPanicAndReleases(t *testing.T) {
	db := memdb(t)

	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("panic should propagate")
			}
		}()
		_ = repos.WithTx(db, func(tx *sqlx.Tx) error {
			tx.MustExec(`UPDATE products SET quantity = 0 WHERE id = 'p-mug'`)
			panic("kaboom")
		})
	}()

	// With MaxOpenConns=1 this would hang if the panicking transaction held
	// onto its connection.
	var qty int
	if err := db.Get(&qty, `SELECT quantity FROM products WHERE id = 'p-mug'`); err != nil {
		t.Fatal(err)
	}
	if qty != 40 {
		t.Fatalf("update leaked through panic rollback: qty=%d", qty)
	}
}
