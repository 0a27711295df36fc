package ledger

import (
	"errors"
	"testing"

	"github.com/spigell/hirewire/internal/records"
)

func TestConfirmDoubleCounts(t *testing.T) {
	l := New(nil)

	p := Purchase{Tier: records.TierPremium, Quantity: 3, AmountCents: 4500}
	first, err := l.Confirm(p)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	second, err := l.Confirm(p)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}

	if got := l.Balance(records.TierPremium); got != 6 {
		t.Fatalf("balance = %d, want 6", got)
	}
	if first.ID == second.ID {
		t.Fatal("transactions share an id")
	}

	history := l.History()
	if len(history) != 2 || history[0].ID != second.ID {
		t.Fatalf("history not newest first: %+v", history)
	}
}

func TestConfirmRejects(t *testing.T) {
	cases := []struct {
		name     string
		purchase Purchase
		want     error
	}{
		{name: "unknown tier", purchase: Purchase{Tier: "gold", Quantity: 1}, want: ErrUnknownTier},
		{name: "zero quantity", purchase: Purchase{Tier: records.TierStandard}, want: ErrInvalidQuantity},
		{name: "negative quantity", purchase: Purchase{Tier: records.TierStandard, Quantity: -2}, want: ErrInvalidQuantity},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l := New(nil)
			if _, err := l.Confirm(tc.purchase); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if len(l.History()) != 0 {
				t.Fatal("rejected purchase recorded")
			}
		})
	}
}

func TestBalancesListsEveryTier(t *testing.T) {
	l := New(nil)
	if _, err := l.Confirm(Purchase{Tier: records.TierShortlist, Quantity: 1}); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	balances := l.Balances()
	if len(balances) != len(records.Tiers) {
		t.Fatalf("expected %d tiers, got %v", len(records.Tiers), balances)
	}
	if balances[records.TierShortlist] != 1 || balances[records.TierProfessional] != 0 {
		t.Fatalf("unexpected balances %v", balances)
	}
}

func TestReset(t *testing.T) {
	l := New(nil)
	if _, err := l.Confirm(Purchase{Tier: records.TierShortlist, Quantity: 2}); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	l.Reset()

	if got := l.Balance(records.TierShortlist); got != 0 {
		t.Fatalf("balance after reset = %d", got)
	}
	if len(l.History()) != 0 {
		t.Fatal("history kept after reset")
	}
	if _, err := l.Confirm(Purchase{Tier: records.TierShortlist, Quantity: 1}); err != nil {
		t.Fatalf("confirm after reset: %v", err)
	}
	if got := l.Balance(records.TierShortlist); got != 1 {
		t.Fatalf("balance = %d, want 1", got)
	}
}
