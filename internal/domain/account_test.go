package domain

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"strings"
	"testing"
)

func TestSubaccount_Layout(t *testing.T) {
	sub, err := Subaccount("alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sub[0] != 5 {
		t.Errorf("length byte = %d, want 5", sub[0])
	}
	if string(sub[1:6]) != "alice" {
		t.Errorf("principal bytes = %q, want %q", sub[1:6], "alice")
	}
	for i := 6; i < len(sub); i++ {
		if sub[i] != 0 {
			t.Fatalf("byte %d = %d, want zero padding", i, sub[i])
		}
	}
}

func TestSubaccount_Malformed(t *testing.T) {
	for _, p := range []Principal{"", Principal(strings.Repeat("x", MaxPrincipalLen+1))} {
		_, err := Subaccount(p)
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Errorf("Subaccount(%q): expected ValidationError, got %v", p, err)
		}
	}
}

func TestDepositAddress_Deterministic(t *testing.T) {
	a1, err := DepositAddress("exchange", "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a2, _ := DepositAddress("exchange", "alice")
	if !bytes.Equal(a1, a2) {
		t.Error("same inputs should derive the same address")
	}
	if len(a1) != 32 {
		t.Errorf("address length = %d, want 32", len(a1))
	}

	b, _ := DepositAddress("exchange", "bob")
	if bytes.Equal(a1, b) {
		t.Error("different owners should derive different addresses")
	}
	c, _ := DepositAddress("other-exchange", "alice")
	if bytes.Equal(a1, c) {
		t.Error("different exchanges should derive different addresses")
	}
}

func TestDepositAddress_Checksum(t *testing.T) {
	addr, err := DepositAddress("exchange", "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := crc32.ChecksumIEEE(addr[4:])
	if got := binary.BigEndian.Uint32(addr[:4]); got != want {
		t.Errorf("checksum = %08x, want %08x", got, want)
	}
}

func TestSentinelErrors_AreDistinct(t *testing.T) {
	errs := []error{
		ErrBalanceLow,
		ErrTransferFailure,
		ErrInvalidOrder,
		ErrOrderBookFull,
		ErrNotExistingOrder,
		ErrNotAllowed,
		ErrUnauthenticated,
		ErrTokenNotFound,
		ErrReconciliationNotFound,
		ErrBalanceOverflow,
	}
	for i := 0; i < len(errs); i++ {
		for j := i + 1; j < len(errs); j++ {
			if errors.Is(errs[i], errs[j]) {
				t.Errorf("sentinel errors %d and %d should be distinct", i, j)
			}
		}
	}
}

func TestOrderError_IsInvalidOrder(t *testing.T) {
	var err error = &OrderError{Reason: "from_amount must be > 0"}
	if !errors.Is(err, ErrInvalidOrder) {
		t.Error("OrderError should match ErrInvalidOrder")
	}
	if err.Error() != "invalid_order: from_amount must be > 0" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestOrder_Escrowed(t *testing.T) {
	o := &Order{FromAmount: 100, Remaining: 60, Status: OrderStatusPartiallyFilled}
	if got := o.Escrowed(); got != 60 {
		t.Errorf("Escrowed() = %d, want 60", got)
	}
	o.Status = OrderStatusCancelled
	if got := o.Escrowed(); got != 0 {
		t.Errorf("Escrowed() on cancelled = %d, want 0", got)
	}
}

func TestTokenRegistry(t *testing.T) {
	r := NewTokenRegistry()
	r.Register("tok-b", "BBB")
	r.Register("tok-a", "AAA")

	sym, err := r.Symbol("tok-a")
	if err != nil || sym != "AAA" {
		t.Errorf("Symbol(tok-a) = %q, %v; want AAA, nil", sym, err)
	}
	if _, err := r.Symbol("nope"); !errors.Is(err, ErrTokenNotFound) {
		t.Errorf("expected ErrTokenNotFound, got %v", err)
	}
	tokens := r.Tokens()
	if len(tokens) != 2 || tokens[0] != "tok-a" || tokens[1] != "tok-b" {
		t.Errorf("Tokens() = %v, want [tok-a tok-b]", tokens)
	}
}
