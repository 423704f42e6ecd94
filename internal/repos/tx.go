package repos

import (
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	applog "shopfront/internal/log"
)

// txHoldWarn flags transactions held longer than operational alerting should
// tolerate. Advisory only: the transaction is not killed.
const txHoldWarn = 5 * time.Second

// WithTx runs fn inside a single transaction on one pooled connection.
// COMMIT on success, ROLLBACK on error or panic; the connection is released
// exactly once on every exit path. A rollback failure is logged but never
// masks the error that caused it.
func WithTx(db *sqlx.DB, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := db.Beginx()
	if err != nil {
		return err
	}

	watchdog := time.AfterFunc(txHoldWarn, func() {
		applog.Security(nil, "tx.held_too_long", map[string]any{"threshold": txHoldWarn.String()})
	})
	defer watchdog.Stop()

	defer func() {
		if p := recover(); p != nil {
			rollback(tx)
			panic(p)
		}
	}()

	if err = fn(tx); err != nil {
		rollback(tx)
		return err
	}
	return tx.Commit()
}

func rollback(tx *sqlx.Tx) {
	if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
		applog.Error(nil, "tx.rollback.fail", rbErr, nil)
	}
}
