package capfriends

import (
	"database/sql"
	"fmt"
	"strings"
)

func initDatabase(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := exec(tx, `
		CREATE TABLE IF NOT EXISTS portfolios (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			owner TEXT,
			rebalance_threshold_pct TEXT NOT NULL DEFAULT '5',
			periodic_sip_budget TEXT NOT NULL DEFAULT '0',
			lumpsum_budget TEXT NOT NULL DEFAULT '0',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return err
	}

	if err := exec(tx, `
		CREATE TABLE IF NOT EXISTS funds (
			code TEXT PRIMARY KEY,
			display_name TEXT NOT NULL,
			category TEXT
		)
	`); err != nil {
		return err
	}

	if err := exec(tx, `
		CREATE TABLE IF NOT EXISTS fund_targets (
			portfolio_id TEXT NOT NULL REFERENCES portfolios(id) ON DELETE CASCADE,
			fund_code TEXT NOT NULL,
			target_pct TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (portfolio_id, fund_code)
		)
	`); err != nil {
		return err
	}

	// seq preserves insertion order; id is the public identifier.
	if err := exec(tx, `
		CREATE TABLE IF NOT EXISTS transactions (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			group_id TEXT,
			portfolio_id TEXT NOT NULL REFERENCES portfolios(id),
			fund_code TEXT NOT NULL,
			transaction_date TEXT NOT NULL,
			side TEXT NOT NULL CHECK(side IN ('BUY', 'SELL')),
			subtype TEXT NOT NULL,
			units TEXT NOT NULL,
			price TEXT NOT NULL,
			total_amount TEXT NOT NULL,
			realized_gain_loss TEXT NOT NULL DEFAULT '0',
			notes TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT
		)
	`); err != nil {
		return err
	}
	if err := exec(tx, "CREATE INDEX IF NOT EXISTS idx_transactions_portfolio_fund ON transactions(portfolio_id, fund_code, seq)"); err != nil {
		return err
	}
	if err := exec(tx, "CREATE INDEX IF NOT EXISTS idx_transactions_group ON transactions(group_id)"); err != nil {
		return err
	}

	if err := exec(tx, `
		CREATE TABLE IF NOT EXISTS fund_prices (
			fund_code TEXT NOT NULL,
			price_date TEXT NOT NULL,
			price TEXT NOT NULL,
			source TEXT NOT NULL DEFAULT 'manual',
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (fund_code, price_date)
		)
	`); err != nil {
		return err
	}

	if err := exec(tx, `
		CREATE TABLE IF NOT EXISTS operation_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			operation_type TEXT NOT NULL,
			portfolio_id TEXT,
			fund_code TEXT,
			transaction_id TEXT,
			details TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return err
	}

	// Databases created before owners were tracked lack the column.
	hasOwner, err := tableHasColumn(tx, "portfolios", "owner")
	if err != nil {
		return err
	}
	if !hasOwner {
		if err := exec(tx, "ALTER TABLE portfolios ADD COLUMN owner TEXT"); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func exec(tx *sql.Tx, query string) error {
	if _, err := tx.Exec(query); err != nil {
		return fmt.Errorf("exec %q: %w", firstLine(query), err)
	}
	return nil
}

func firstLine(query string) string {
	trimmed := strings.TrimSpace(query)
	if i := strings.IndexByte(trimmed, '\n'); i >= 0 {
		return strings.TrimSpace(trimmed[:i])
	}
	return trimmed
}

func tableHasColumn(tx *sql.Tx, table, column string) (bool, error) {
	rows, err := tx.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, err
	}
	defer rows.Close()
	for rows.Next() {
		var cid int
		var name, colType string
		var notNull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &pk); err != nil {
			return false, err
		}
		if strings.EqualFold(name, column) {
			return true, nil
		}
	}
	return false, rows.Err()
}
