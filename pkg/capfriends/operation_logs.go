package capfriends

import (
	"context"
	"database/sql"
)

// OperationLog represents an audit log record.
type OperationLog struct {
	ID            int64   `json:"id"`
	Operation     string  `json:"operation_type"`
	PortfolioID   *string `json:"portfolio_id"`
	FundCode      *string `json:"fund_code"`
	TransactionID *string `json:"transaction_id"`
	Details       *string `json:"details"`
	CreatedAt     *string `json:"created_at"`
}

// operationRecorder is implemented by stores that keep an audit trail.
type operationRecorder interface {
	AddOperationLog(ctx context.Context, log OperationLog) (int64, error)
	GetOperationLogs(ctx context.Context, limit, offset int) ([]OperationLog, error)
}

// AddOperationLog adds a new operation log entry.
func (s *SQLiteStore) AddOperationLog(ctx context.Context, log OperationLog) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO operation_logs (operation_type, portfolio_id, fund_code, transaction_id, details)
		VALUES (?, ?, ?, ?, ?)
	`, log.Operation, nullString(log.PortfolioID), nullString(log.FundCode), nullString(log.TransactionID), nullString(log.Details))
	if err != nil {
		return 0, WrapError(ErrCodeDatabase, "add operation log", err)
	}
	return result.LastInsertId()
}

// GetOperationLogs returns recent operation logs, newest first.
func (s *SQLiteStore) GetOperationLogs(ctx context.Context, limit, offset int) ([]OperationLog, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, operation_type, portfolio_id, fund_code, transaction_id, details, created_at FROM operation_logs ORDER BY id DESC LIMIT ? OFFSET ?",
		limit, offset,
	)
	if err != nil {
		return nil, WrapError(ErrCodeDatabase, "query operation logs", err)
	}
	defer rows.Close()

	var logs []OperationLog
	for rows.Next() {
		var log OperationLog
		var portfolioID, fundCode, transactionID, details, createdAt sql.NullString
		if err := rows.Scan(&log.ID, &log.Operation, &portfolioID, &fundCode, &transactionID, &details, &createdAt); err != nil {
			return nil, WrapError(ErrCodeDatabase, "scan operation log", err)
		}
		log.PortfolioID = validString(portfolioID)
		log.FundCode = validString(fundCode)
		log.TransactionID = validString(transactionID)
		log.Details = validString(details)
		log.CreatedAt = validString(createdAt)
		logs = append(logs, log)
	}
	return logs, rows.Err()
}

func validString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}

// GetOperationLogs returns the audit trail when the ledger store keeps one.
func (c *Core) GetOperationLogs(ctx context.Context, limit, offset int) ([]OperationLog, error) {
	rec, ok := c.ledger.(operationRecorder)
	if !ok {
		return []OperationLog{}, nil
	}
	return rec.GetOperationLogs(ctx, limit, offset)
}

// logOperation records an audit entry. Failures are logged, never returned:
// the ledger write it describes has already committed.
func (c *Core) logOperation(ctx context.Context, log OperationLog) {
	rec, ok := c.ledger.(operationRecorder)
	if !ok {
		return
	}
	if _, err := rec.AddOperationLog(ctx, log); err != nil {
		c.logger.Warn("operation log write failed", "operation", log.Operation, "err", err)
	}
}
