package engine

import (
	"math"
	"testing"

	"github.com/efreitasn/tokenswap/internal/domain"
)

func TestCmpProducts_Wide(t *testing.T) {
	// Both products overflow 64 bits.
	if got := cmpProducts(math.MaxUint64, 3, math.MaxUint64, 2); got != 1 {
		t.Errorf("cmpProducts = %d, want 1", got)
	}
	if got := cmpProducts(math.MaxUint64, 2, 2, math.MaxUint64); got != 0 {
		t.Errorf("cmpProducts = %d, want 0", got)
	}
	if got := cmpProducts(1, 1, math.MaxUint64, math.MaxUint64); got != -1 {
		t.Errorf("cmpProducts = %d, want -1", got)
	}
}

func TestMulDiv(t *testing.T) {
	tests := []struct {
		a, b, c uint64
		up      bool
		want    uint64
		ok      bool
	}{
		{7, 3, 2, false, 10, true},
		{7, 3, 2, true, 11, true},
		{6, 3, 2, true, 9, true},
		{math.MaxUint64, 2, 4, false, math.MaxUint64 / 2, true},
		{math.MaxUint64, 2, 1, false, 0, false},
	}
	for _, tt := range tests {
		got, ok := mulDiv(tt.a, tt.b, tt.c, tt.up)
		if ok != tt.ok || got != tt.want {
			t.Errorf("mulDiv(%d, %d, %d, %v) = (%d, %v), want (%d, %v)", tt.a, tt.b, tt.c, tt.up, got, ok, tt.want, tt.ok)
		}
	}
}

func TestCrosses_Boundary(t *testing.T) {
	rest := &domain.Order{FromAmount: 100, ToAmount: 50}
	exact := &domain.Order{FromAmount: 50, ToAmount: 100}
	short := &domain.Order{FromAmount: 49, ToAmount: 100}
	if !crosses(exact, rest) {
		t.Error("orders at exactly mirrored rates should cross")
	}
	if crosses(short, rest) {
		t.Error("order offering less than the resting ask should not cross")
	}
}

func TestFillAmounts(t *testing.T) {
	rest := &domain.Order{FromAmount: 100, ToAmount: 50, Remaining: 100}

	makerGives, takerGives := fillAmounts(20, rest)
	if makerGives != 40 || takerGives != 20 {
		t.Errorf("fillAmounts(20) = (%d, %d), want (40, 20)", makerGives, takerGives)
	}

	// Capped by the resting order's remaining.
	makerGives, takerGives = fillAmounts(500, rest)
	if makerGives != 100 || takerGives != 50 {
		t.Errorf("fillAmounts(500) = (%d, %d), want (100, 50)", makerGives, takerGives)
	}

	// Too little left to buy a single unit.
	dear := &domain.Order{FromAmount: 1, ToAmount: 3, Remaining: 1}
	if makerGives, _ := fillAmounts(2, dear); makerGives != 0 {
		t.Errorf("expected no fill, got %d", makerGives)
	}

	// Rounding favors the maker.
	odd := &domain.Order{FromAmount: 3, ToAmount: 2, Remaining: 3}
	makerGives, takerGives = fillAmounts(1, odd)
	if makerGives != 1 || takerGives != 1 {
		t.Errorf("fillAmounts(1) = (%d, %d), want (1, 1)", makerGives, takerGives)
	}
}
