package engine

import (
	"math/bits"

	"github.com/efreitasn/tokenswap/internal/domain"
)

// cmpProducts compares a*b with c*d without overflow.
func cmpProducts(a, b, c, d uint64) int {
	hi1, lo1 := bits.Mul64(a, b)
	hi2, lo2 := bits.Mul64(c, d)
	switch {
	case hi1 != hi2:
		if hi1 < hi2 {
			return -1
		}
		return 1
	case lo1 != lo2:
		if lo1 < lo2 {
			return -1
		}
		return 1
	}
	return 0
}

// crosses reports whether an incoming order and a resting order on the
// mirror pair are price-compatible: in.From·rest.From ≥ in.To·rest.To.
func crosses(in, rest *domain.Order) bool {
	return cmpProducts(in.FromAmount, rest.FromAmount, in.ToAmount, rest.ToAmount) >= 0
}

// betterRate reports whether resting order a offers strictly more of its
// From token per unit of its To token than b does.
func betterRate(a, b *domain.Order) bool {
	return cmpProducts(a.FromAmount, b.ToAmount, b.FromAmount, a.ToAmount) > 0
}

// mulDiv returns floor(a*b/c) (or the ceiling when roundUp is set) and
// false if the quotient does not fit in 64 bits.
func mulDiv(a, b, c uint64, roundUp bool) (uint64, bool) {
	hi, lo := bits.Mul64(a, b)
	if hi >= c {
		return 0, false
	}
	q, r := bits.Div64(hi, lo, c)
	if roundUp && r > 0 {
		if q == ^uint64(0) {
			return 0, false
		}
		q++
	}
	return q, true
}

// fillAmounts sizes one match at the resting order's rate. makerGives is
// the amount of the resting order's From token delivered to the taker;
// takerGives is what the taker pays for it, rounded up in the maker's favor.
// takerRemaining is the taker's unfilled From amount.
//
// The maker never trades below its own rate. Rounding can leave a single
// fill slightly under the taker's limit: for crossing orders the taker
// overpays by less than one unit of its From token at its own rate, that is
// takerGives·taker.To < makerGives·taker.From + taker.To. A taker offering
// 9 X at 7 Y per 10 X against a resting 7 Y for 10 X gets 6 Y for 9 X.
func fillAmounts(takerRemaining uint64, rest *domain.Order) (makerGives, takerGives uint64) {
	affordable, ok := mulDiv(takerRemaining, rest.FromAmount, rest.ToAmount, false)
	if !ok || affordable > rest.Remaining {
		affordable = rest.Remaining
	}
	if affordable == 0 {
		return 0, 0
	}
	pay, ok := mulDiv(affordable, rest.ToAmount, rest.FromAmount, true)
	if !ok || pay > takerRemaining {
		// Unreachable for affordable ≤ floor(takerRemaining·From/To).
		return 0, 0
	}
	return affordable, pay
}
