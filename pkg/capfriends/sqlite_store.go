package capfriends

import (
	"context"
	"database/sql"
	"errors"
	"strings"
)

// SQLiteStore implements LedgerStore, PortfolioConfigStore, FundReference
// and PriceFeed over one SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps an initialized database handle.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

const transactionColumns = `
	id, group_id, portfolio_id, fund_code, transaction_date, side, subtype,
	units, price, total_amount, realized_gain_loss, notes, created_at, updated_at
`

func (s *SQLiteStore) AppendTransactions(ctx context.Context, rows []Transaction) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return insertTransactions(ctx, tx, rows)
	})
}

// AppendTransactionsWithTarget inserts rows and sets the target of fundCode
// in the portfolio of the first row, in one database transaction.
func (s *SQLiteStore) AppendTransactionsWithTarget(ctx context.Context, rows []Transaction, fundCode string, pct Amount) error {
	if len(rows) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := insertTransactions(ctx, tx, rows); err != nil {
			return err
		}
		if err := upsertTarget(ctx, tx, rows[0].PortfolioID, fundCode, pct); err != nil {
			return WrapError(ErrCodeLedgerWriteFailed, "set target allocation", err)
		}
		return nil
	})
}

func insertTransactions(ctx context.Context, tx *sql.Tx, rows []Transaction) error {
	for _, r := range rows {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO transactions (`+transactionColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			r.ID,
			nullString(stringPtr(r.GroupID)),
			r.PortfolioID,
			r.FundCode,
			r.Date,
			r.Side,
			r.Subtype,
			r.Units,
			r.PricePerUnit,
			r.TotalAmount,
			r.RealizedGainLoss,
			nullString(stringPtr(r.Notes)),
			r.CreatedAt,
			nullString(r.UpdatedAt),
		); err != nil {
			return WrapError(ErrCodeLedgerWriteFailed, "insert transaction", err)
		}
	}
	return nil
}

func (s *SQLiteStore) GetTransaction(ctx context.Context, id string) (*Transaction, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+transactionColumns+" FROM transactions WHERE id = ?", id)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, WrapError(ErrCodeDatabase, "get transaction", err)
	}
	return &t, nil
}

func (s *SQLiteStore) ListTransactions(ctx context.Context, portfolioID, fundCode string) ([]Transaction, error) {
	query := strings.Builder{}
	query.WriteString("SELECT " + transactionColumns + " FROM transactions WHERE portfolio_id = ?")
	params := []any{portfolioID}
	if fundCode != "" {
		query.WriteString(" AND fund_code = ?")
		params = append(params, fundCode)
	}
	query.WriteString(" ORDER BY seq")

	rows, err := s.db.QueryContext(ctx, query.String(), params...)
	if err != nil {
		return nil, WrapError(ErrCodeDatabase, "list transactions", err)
	}
	defer rows.Close()

	var results []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, WrapError(ErrCodeDatabase, "scan transaction", err)
		}
		results = append(results, t)
	}
	return results, rows.Err()
}

func (s *SQLiteStore) UpdateTransaction(ctx context.Context, r Transaction) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE transactions SET
			transaction_date = ?, units = ?, price = ?, total_amount = ?,
			realized_gain_loss = ?, notes = ?, updated_at = ?
		WHERE id = ?
	`, r.Date, r.Units, r.PricePerUnit, r.TotalAmount, r.RealizedGainLoss,
		nullString(stringPtr(r.Notes)), nullString(r.UpdatedAt), r.ID)
	if err != nil {
		return WrapError(ErrCodeLedgerWriteFailed, "update transaction", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return WrapError(ErrCodeLedgerWriteFailed, "update transaction", err)
	}
	if affected == 0 {
		return NewErrorf(ErrCodeTransactionNotFound, "transaction %s not found", r.ID)
	}
	return nil
}

func (s *SQLiteStore) DeleteTransactions(ctx context.Context, ids []string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, id := range ids {
			if _, err := tx.ExecContext(ctx, "DELETE FROM transactions WHERE id = ?", id); err != nil {
				return WrapError(ErrCodeLedgerWriteFailed, "delete transaction", err)
			}
		}
		return nil
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (Transaction, error) {
	var t Transaction
	var groupID, notes, updatedAt sql.NullString
	if err := row.Scan(
		&t.ID, &groupID, &t.PortfolioID, &t.FundCode, &t.Date, &t.Side, &t.Subtype,
		&t.Units, &t.PricePerUnit, &t.TotalAmount, &t.RealizedGainLoss, &notes, &t.CreatedAt, &updatedAt,
	); err != nil {
		return Transaction{}, err
	}
	if groupID.Valid {
		t.GroupID = groupID.String
	}
	if notes.Valid {
		t.Notes = notes.String
	}
	if updatedAt.Valid {
		t.UpdatedAt = &updatedAt.String
	}
	return t, nil
}

func (s *SQLiteStore) GetPortfolio(ctx context.Context, id string) (*Portfolio, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, owner, rebalance_threshold_pct, periodic_sip_budget, lumpsum_budget, created_at
		FROM portfolios WHERE id = ?
	`, id)
	p, err := scanPortfolio(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, WrapError(ErrCodeDatabase, "get portfolio", err)
	}
	return &p, nil
}

func (s *SQLiteStore) ListPortfolios(ctx context.Context) ([]Portfolio, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, owner, rebalance_threshold_pct, periodic_sip_budget, lumpsum_budget, created_at
		FROM portfolios ORDER BY id
	`)
	if err != nil {
		return nil, WrapError(ErrCodeDatabase, "list portfolios", err)
	}
	defer rows.Close()
	var out []Portfolio
	for rows.Next() {
		p, err := scanPortfolio(rows)
		if err != nil {
			return nil, WrapError(ErrCodeDatabase, "scan portfolio", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPortfolio(row rowScanner) (Portfolio, error) {
	var p Portfolio
	var threshold Amount
	var owner, createdAt sql.NullString
	if err := row.Scan(&p.ID, &p.Name, &owner, &threshold, &p.PeriodicSIPBudget, &p.LumpsumBudget, &createdAt); err != nil {
		return Portfolio{}, err
	}
	p.RebalanceThresholdPct = &threshold
	if owner.Valid {
		p.Owner = owner.String
	}
	if createdAt.Valid {
		p.CreatedAt = createdAt.String
	}
	return p, nil
}

func (s *SQLiteStore) SavePortfolio(ctx context.Context, p Portfolio) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO portfolios (id, name, owner, rebalance_threshold_pct, periodic_sip_budget, lumpsum_budget)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			owner = excluded.owner,
			rebalance_threshold_pct = excluded.rebalance_threshold_pct,
			periodic_sip_budget = excluded.periodic_sip_budget,
			lumpsum_budget = excluded.lumpsum_budget
	`, p.ID, p.Name, nullString(stringPtr(p.Owner)), p.Threshold(), p.PeriodicSIPBudget, p.LumpsumBudget)
	if err != nil {
		return WrapError(ErrCodeDatabase, "save portfolio", err)
	}
	return nil
}

func (s *SQLiteStore) TargetAllocations(ctx context.Context, portfolioID string) (map[string]Amount, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT fund_code, target_pct FROM fund_targets WHERE portfolio_id = ?", portfolioID)
	if err != nil {
		return nil, WrapError(ErrCodeDatabase, "query targets", err)
	}
	defer rows.Close()
	out := map[string]Amount{}
	for rows.Next() {
		var fund string
		var target Amount
		if err := rows.Scan(&fund, &target); err != nil {
			return nil, WrapError(ErrCodeDatabase, "scan target", err)
		}
		out[fund] = target
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SetTargetAllocation(ctx context.Context, portfolioID, fundCode string, target Amount) error {
	if err := upsertTarget(ctx, s.db, portfolioID, fundCode, target); err != nil {
		return WrapError(ErrCodeDatabase, "set target allocation", err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertTarget(ctx context.Context, db execer, portfolioID, fundCode string, target Amount) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO fund_targets (portfolio_id, fund_code, target_pct, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(portfolio_id, fund_code) DO UPDATE SET
			target_pct = excluded.target_pct,
			updated_at = CURRENT_TIMESTAMP
	`, portfolioID, fundCode, target)
	return err
}

func (s *SQLiteStore) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return WrapError(ErrCodeLedgerWriteFailed, "failed to begin transaction", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return WrapError(ErrCodeLedgerWriteFailed, "failed to commit transaction", err)
	}
	return nil
}

func nullString(value *string) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	if strings.TrimSpace(*value) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}
