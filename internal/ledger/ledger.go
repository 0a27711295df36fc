package ledger

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/hirewire/internal/logger"
	"github.com/spigell/hirewire/internal/metrics"
	"github.com/spigell/hirewire/internal/records"
)

var (
	ErrUnknownTier     = errors.New("unknown product tier")
	ErrInvalidQuantity = errors.New("quantity must be positive")
)

// Purchase is a confirmed checkout of credit units.
type Purchase struct {
	Tier     records.Tier
	Quantity int
	// AmountCents is informational; the ledger never checks it.
	AmountCents int64
}

// Transaction is one entry of the purchase history.
type Transaction struct {
	ID          string
	Tier        records.Tier
	Quantity    int
	AmountCents int64
	At          time.Time
}

// Ledger holds the employer's prepaid units per tier. Units are only ever
// added; nothing in this client consumes them.
type Ledger struct {
	logger *zap.Logger
	now    func() time.Time

	mu       sync.RWMutex
	balances map[records.Tier]int
	history  []Transaction
}

func New(log *zap.Logger) *Ledger {
	return &Ledger{
		logger:   logger.ForComponent(logger.OrNop(log), "ledger"),
		now:      time.Now,
		balances: make(map[records.Tier]int),
	}
}

// Confirm credits p and prepends it to the history. There is no
// deduplication: confirming the same purchase twice counts twice.
func (l *Ledger) Confirm(p Purchase) (Transaction, error) {
	if !p.Tier.Valid() {
		return Transaction{}, fmt.Errorf("%w: %q", ErrUnknownTier, p.Tier)
	}
	if p.Quantity <= 0 {
		return Transaction{}, fmt.Errorf("%w: %d", ErrInvalidQuantity, p.Quantity)
	}

	tx := Transaction{
		ID:          uuid.NewString(),
		Tier:        p.Tier,
		Quantity:    p.Quantity,
		AmountCents: p.AmountCents,
		At:          l.now(),
	}

	l.mu.Lock()
	l.balances[p.Tier] += p.Quantity
	balance := l.balances[p.Tier]
	l.history = append([]Transaction{tx}, l.history...)
	l.mu.Unlock()

	metrics.CreditsPurchased.WithLabelValues(string(p.Tier)).Add(float64(p.Quantity))
	l.logger.Info("credits confirmed",
		zap.String("tier", string(p.Tier)),
		zap.Int("quantity", p.Quantity),
		zap.Int("balance", balance),
	)

	return tx, nil
}

func (l *Ledger) Balance(t records.Tier) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[t]
}

// Balances returns every tier, including empty ones.
func (l *Ledger) Balances() map[records.Tier]int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make(map[records.Tier]int, len(records.Tiers))
	for _, t := range records.Tiers {
		out[t] = l.balances[t]
	}
	return out
}

// History returns transactions newest first.
func (l *Ledger) History() []Transaction {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Transaction(nil), l.history...)
}

// Reset drops every balance and the history.
func (l *Ledger) Reset() {
	l.mu.Lock()
	l.balances = make(map[records.Tier]int)
	l.history = nil
	l.mu.Unlock()

	l.logger.Debug("ledger reset")
}
