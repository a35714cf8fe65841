package capfriends

import (
	"context"
	"time"
)

// LedgerStore persists ledger rows. AppendTransactions must commit all rows
// or none of them, and must be durable before it returns nil.
type LedgerStore interface {
	AppendTransactions(ctx context.Context, rows []Transaction) error
	GetTransaction(ctx context.Context, id string) (*Transaction, error)
	// ListTransactions returns rows in insertion order. An empty fundCode
	// lists every fund of the portfolio.
	ListTransactions(ctx context.Context, portfolioID, fundCode string) ([]Transaction, error)
	UpdateTransaction(ctx context.Context, row Transaction) error
	DeleteTransactions(ctx context.Context, ids []string) error
}

// PortfolioConfigStore persists portfolio settings and target allocations.
type PortfolioConfigStore interface {
	GetPortfolio(ctx context.Context, id string) (*Portfolio, error)
	ListPortfolios(ctx context.Context) ([]Portfolio, error)
	SavePortfolio(ctx context.Context, p Portfolio) error
	TargetAllocations(ctx context.Context, portfolioID string) (map[string]Amount, error)
	SetTargetAllocation(ctx context.Context, portfolioID, fundCode string, pct Amount) error
}

// TargetedAppender is implemented by stores that hold both the ledger and
// the target allocations. It commits the rows and the target together, or
// neither.
type TargetedAppender interface {
	AppendTransactionsWithTarget(ctx context.Context, rows []Transaction, fundCode string, pct Amount) error
}

// FundReference resolves display labels. It never drives computation.
type FundReference interface {
	LookupFund(ctx context.Context, code string) (FundInfo, bool)
}

// PriceFeed supplies prices as of a point in time. Implementations return an
// error coded ErrCodePriceUnavailable when they have no entry.
type PriceFeed interface {
	CurrentPrice(ctx context.Context, fundCode string, asOf time.Time) (Amount, error)
	HistoricalMax(ctx context.Context, fundCode string, asOf time.Time) (Amount, error)
}
