package ledger

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"

	"stock-ledger/models"
)

// memStore is an in-memory Store. Atomic snapshots the state and restores it
// when fn fails, which is enough to observe rollbacks in tests.
type memStore struct {
	users     map[uint]models.User
	stocks    map[uint]models.Stock
	positions map[uint]models.Position
	trades    []models.Trade
	history   []models.StockPrice
	nextID    uint

	savedStocks  []models.Stock
	appendErr    error
	saveStockErr error

	// racing is committed by a competing transaction at the moment this
	// store first inserts a position; that insert then conflicts.
	racing    *models.Position
	committed *models.Position
}

func newMemStore() *memStore {
	return &memStore{
		users:     make(map[uint]models.User),
		stocks:    make(map[uint]models.Stock),
		positions: make(map[uint]models.Position),
	}
}

func (m *memStore) id() uint {
	m.nextID++
	return m.nextID
}

func (m *memStore) addUser(name string) models.User {
	u := models.User{ID: m.id(), Username: name, Role: models.RoleUser}
	m.users[u.ID] = u
	return u
}

// addStock registers a stock; an empty price leaves it unpriced.
func (m *memStore) addStock(symbol, name, price string) models.Stock {
	s := models.Stock{ID: m.id(), Symbol: symbol, Name: name}
	if price != "" {
		s.Price = decimal.NewNullDecimal(decimal.RequireFromString(price))
	}
	m.stocks[s.ID] = s
	return s
}

func (m *memStore) addPosition(p models.Position) models.Position {
	p.ID = m.id()
	m.positions[p.ID] = p
	return p
}

func (m *memStore) UserByID(_ context.Context, id uint) (*models.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, fmt.Errorf("user %d %w", id, ErrNotFound)
	}
	return &u, nil
}

func (m *memStore) StockByID(_ context.Context, id uint) (*models.Stock, error) {
	s, ok := m.stocks[id]
	if !ok {
		return nil, fmt.Errorf("stock %d %w", id, ErrNotFound)
	}
	return &s, nil
}

func (m *memStore) StockBySymbol(_ context.Context, symbol string) (*models.Stock, error) {
	for _, s := range m.stocks {
		if s.Symbol == symbol {
			return &s, nil
		}
	}
	return nil, fmt.Errorf("symbol %s %w", symbol, ErrNotFound)
}

func (m *memStore) ListStocks(context.Context) ([]models.Stock, error) {
	out := make([]models.Stock, 0, len(m.stocks))
	for _, s := range m.stocks {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) SaveStocks(_ context.Context, stocks []models.Stock) error {
	if m.saveStockErr != nil {
		return m.saveStockErr
	}
	for _, s := range stocks {
		m.stocks[s.ID] = s
	}
	m.savedStocks = append(m.savedStocks, stocks...)
	return nil
}

func (m *memStore) FindPosition(_ context.Context, userID, stockID uint) (*models.Position, error) {
	for _, p := range m.positions {
		if p.UserID == userID && p.StockID == stockID {
			return &p, nil
		}
	}
	return nil, nil
}

func (m *memStore) PositionsByUser(_ context.Context, userID uint) ([]models.Position, error) {
	var out []models.Position
	for _, p := range m.positions {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) SavePosition(_ context.Context, p *models.Position) error {
	if p.ID == 0 && m.racing != nil {
		m.committed, m.racing = m.racing, nil
		return fmt.Errorf("position for user %d stock %d: %w", p.UserID, p.StockID, ErrConflict)
	}
	if p.ID == 0 {
		p.ID = m.id()
	}
	m.positions[p.ID] = *p
	return nil
}

func (m *memStore) DeletePosition(_ context.Context, p *models.Position) error {
	delete(m.positions, p.ID)
	return nil
}

func (m *memStore) AppendTrade(_ context.Context, t *models.Trade) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	t.ID = m.id()
	m.trades = append(m.trades, *t)
	return nil
}

func (m *memStore) TradesByUser(_ context.Context, userID uint) ([]models.Trade, error) {
	var out []models.Trade
	for _, t := range m.trades {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memStore) RecordPrices(_ context.Context, prices []models.StockPrice) error {
	for _, p := range prices {
		p.ID = m.id()
		m.history = append(m.history, p)
	}
	return nil
}

func (m *memStore) Atomic(_ context.Context, fn func(Store) error) error {
	positions := make(map[uint]models.Position, len(m.positions))
	for k, v := range m.positions {
		positions[k] = v
	}
	trades := append([]models.Trade(nil), m.trades...)

	if err := fn(m); err != nil {
		m.positions = positions
		m.trades = trades
		if c := m.committed; c != nil {
			m.committed = nil
			c.ID = m.id()
			m.positions[c.ID] = *c
		}
		return err
	}
	return nil
}

// position returns the user's position in the stock, or nil.
func (m *memStore) position(userID, stockID uint) *models.Position {
	p, _ := m.FindPosition(context.Background(), userID, stockID)
	return p
}

type fakeSource struct {
	prices  map[string]decimal.Decimal
	err     error
	calls   int
	symbols []string
}

func (f *fakeSource) Prices(_ context.Context, symbols []string) (map[string]decimal.Decimal, error) {
	f.calls++
	f.symbols = symbols
	if f.err != nil {
		return nil, f.err
	}
	return f.prices, nil
}

var testNow = time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC)

func newTestLedger(t *testing.T, store Store, source PriceSource) *Ledger {
	l := New(store, source, zaptest.NewLogger(t))
	l.now = func() time.Time { return testNow }
	return l
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Truef(t, dec(want).Equal(got), "want %s, got %s", want, got)
}
