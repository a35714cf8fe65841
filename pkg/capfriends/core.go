package capfriends

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Options controls Core initialization.
type Options struct {
	DBPath   string
	Logger   *slog.Logger
	CacheTTL time.Duration
	// DefaultThresholdPct is stored on portfolios created without a threshold.
	DefaultThresholdPct Amount
	ATHBands            ATHBands
	Now                 func() time.Time
}

// Deps injects external collaborators into a Core built with New.
// Funds and Prices are optional.
type Deps struct {
	Ledger     LedgerStore
	Portfolios PortfolioConfigStore
	Funds      FundReference
	Prices     PriceFeed
}

// Core is the façade over the ledger, the holdings aggregator and the
// allocation engine.
type Core struct {
	db         *sql.DB
	dbPath     string
	logger     *slog.Logger
	ledger     LedgerStore
	portfolios PortfolioConfigStore
	funds      FundReference
	prices     PriceFeed
	cache      *holdingsCache
	locks      *portfolioLocks
	now        func() time.Time
	bands      ATHBands
	threshold  Amount
}

// Open initializes a SQLite-backed Core using the provided database path.
func Open(dbPath string) (*Core, error) {
	return OpenWithOptions(Options{DBPath: dbPath})
}

// OpenWithOptions initializes a SQLite-backed Core using the provided options.
func OpenWithOptions(opts Options) (*Core, error) {
	if opts.DBPath == "" {
		return nil, errors.New("db path is required")
	}
	cleanPath := filepath.Clean(opts.DBPath)
	if err := os.MkdirAll(filepath.Dir(cleanPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", cleanPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// SQLite performs best with a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logger.Warn("pragma busy_timeout failed", "err", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		logger.Warn("pragma foreign_keys failed", "err", err)
	}

	if err := initDatabase(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init database: %w", err)
	}

	store := NewSQLiteStore(db)
	c := New(Deps{Ledger: store, Portfolios: store, Funds: store, Prices: store}, opts)
	c.db = db
	c.dbPath = cleanPath
	return c, nil
}

// New builds a Core over caller-supplied stores. opts.DBPath is ignored.
func New(deps Deps, opts Options) *Core {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = NowInIndia
	}
	return &Core{
		logger:     logger,
		ledger:     deps.Ledger,
		portfolios: deps.Portfolios,
		funds:      deps.Funds,
		prices:     deps.Prices,
		cache:      newHoldingsCache(defaultDuration(opts.CacheTTL, 30*time.Second), now),
		locks:      newPortfolioLocks(),
		now:        now,
		bands:      opts.ATHBands.orDefault(),
		threshold:  defaultAmount(opts.DefaultThresholdPct, DefaultRebalanceThresholdPct),
	}
}

// Close releases database resources.
func (c *Core) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// DBPath returns the underlying database path, or "" for injected stores.
func (c *Core) DBPath() string {
	return c.dbPath
}

// Logger returns the logger the core writes to.
func (c *Core) Logger() *slog.Logger {
	return c.logger
}

func defaultDuration(v time.Duration, fallback time.Duration) time.Duration {
	if v <= 0 {
		return fallback
	}
	return v
}

// portfolioLocks serializes mutations per portfolio. Different portfolios
// never share a lock.
type portfolioLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newPortfolioLocks() *portfolioLocks {
	return &portfolioLocks{locks: map[string]*sync.Mutex{}}
}

// lock acquires the portfolio's mutex and returns its release func.
func (l *portfolioLocks) lock(portfolioID string) func() {
	l.mu.Lock()
	m, ok := l.locks[portfolioID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[portfolioID] = m
	}
	l.mu.Unlock()
	m.Lock()
	return m.Unlock
}
