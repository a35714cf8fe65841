package capfriends

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-process LedgerStore, PortfolioConfigStore and
// FundReference. It is meant for tests and for embedding callers that keep
// their own durable copy of the ledger.
type MemoryStore struct {
	mu         sync.RWMutex
	rows       []Transaction
	portfolios map[string]Portfolio
	targets    map[string]map[string]Amount
	funds      map[string]FundInfo
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		portfolios: map[string]Portfolio{},
		targets:    map[string]map[string]Amount{},
		funds:      map[string]FundInfo{},
	}
}

func (s *MemoryStore) AppendTransactions(ctx context.Context, rows []Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rows {
		if s.indexOf(r.ID) >= 0 {
			return NewErrorf(ErrCodeDuplicate, "transaction %s already exists", r.ID)
		}
	}
	s.rows = append(s.rows, rows...)
	return nil
}

// AppendTransactionsWithTarget appends rows and sets the target of fundCode
// under one lock.
func (s *MemoryStore) AppendTransactionsWithTarget(ctx context.Context, rows []Transaction, fundCode string, pct Amount) error {
	if len(rows) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rows {
		if s.indexOf(r.ID) >= 0 {
			return NewErrorf(ErrCodeDuplicate, "transaction %s already exists", r.ID)
		}
	}
	s.rows = append(s.rows, rows...)
	portfolioID := rows[0].PortfolioID
	if s.targets[portfolioID] == nil {
		s.targets[portfolioID] = map[string]Amount{}
	}
	s.targets[portfolioID][fundCode] = pct
	return nil
}

func (s *MemoryStore) GetTransaction(ctx context.Context, id string) (*Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.indexOf(id)
	if i < 0 {
		return nil, nil
	}
	t := s.rows[i]
	return &t, nil
}

func (s *MemoryStore) ListTransactions(ctx context.Context, portfolioID, fundCode string) ([]Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Transaction
	for _, r := range s.rows {
		if r.PortfolioID != portfolioID {
			continue
		}
		if fundCode != "" && r.FundCode != fundCode {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *MemoryStore) UpdateTransaction(ctx context.Context, row Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(row.ID)
	if i < 0 {
		return NewErrorf(ErrCodeTransactionNotFound, "transaction %s not found", row.ID)
	}
	s.rows[i] = row
	return nil
}

func (s *MemoryStore) DeleteTransactions(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	drop := map[string]bool{}
	for _, id := range ids {
		drop[id] = true
	}
	kept := s.rows[:0:0]
	for _, r := range s.rows {
		if !drop[r.ID] {
			kept = append(kept, r)
		}
	}
	s.rows = kept
	return nil
}

func (s *MemoryStore) indexOf(id string) int {
	for i := range s.rows {
		if s.rows[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *MemoryStore) GetPortfolio(ctx context.Context, id string) (*Portfolio, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.portfolios[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *MemoryStore) ListPortfolios(ctx context.Context) ([]Portfolio, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Portfolio, 0, len(s.portfolios))
	for _, p := range s.portfolios {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) SavePortfolio(ctx context.Context, p Portfolio) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.portfolios[p.ID] = p
	return nil
}

func (s *MemoryStore) TargetAllocations(ctx context.Context, portfolioID string) (map[string]Amount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := map[string]Amount{}
	for fund, v := range s.targets[portfolioID] {
		out[fund] = v
	}
	return out, nil
}

func (s *MemoryStore) SetTargetAllocation(ctx context.Context, portfolioID, fundCode string, target Amount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.targets[portfolioID] == nil {
		s.targets[portfolioID] = map[string]Amount{}
	}
	s.targets[portfolioID][fundCode] = target
	return nil
}

func (s *MemoryStore) UpsertFund(ctx context.Context, info FundInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.funds[normalizeFundCode(info.Code)] = info
	return nil
}

func (s *MemoryStore) ListFunds(ctx context.Context) ([]FundInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]FundInfo, 0, len(s.funds))
	for _, info := range s.funds {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (s *MemoryStore) LookupFund(ctx context.Context, code string) (FundInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info, ok := s.funds[normalizeFundCode(code)]
	return info, ok
}
