package app

import (
	"context"
	"testing"
	"time"

	"auction-settlement-service/internal/ports/outbound"

	"github.com/shopspring/decimal"
)

func TestRetryPolicy_Next(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 5, Backoff: time.Minute, MaxDelay: 5 * time.Minute}

	cases := []struct {
		attempts int
		delay    time.Duration
		dead     bool
	}{
		{attempts: 1, delay: time.Minute},
		{attempts: 2, delay: 2 * time.Minute},
		{attempts: 3, delay: 4 * time.Minute},
		{attempts: 4, delay: 5 * time.Minute},
		{attempts: 5, dead: true},
		{attempts: 9, dead: true},
	}

	for _, tc := range cases {
		next, dead := p.Next(tc.attempts, testNow)
		if dead != tc.dead {
			t.Fatalf("attempts %d: dead = %v, want %v", tc.attempts, dead, tc.dead)
		}
		if tc.dead {
			if next != nil {
				t.Fatalf("attempts %d: next = %v, want nil", tc.attempts, next)
			}
			continue
		}
		if got := next.Sub(testNow); got != tc.delay {
			t.Fatalf("attempts %d: delay = %v, want %v", tc.attempts, got, tc.delay)
		}
	}
}

func TestRetryPolicy_Defaults(t *testing.T) {
	p := RetryPolicy{}.normalized()
	if p.MaxAttempts != defaultMaxAttempts || p.Backoff != defaultBackoff || p.MaxDelay != defaultMaxDelay {
		t.Fatalf("got %+v", p)
	}
}

func TestOperatorFunded_Balanced(t *testing.T) {
	req := outbound.TransferRequest{Seller: "0.0.1001", Amount: decimal.RequireFromString("12.5")}

	legs, err := OperatorFunded{}.PaymentLegs(context.Background(), req, "0.0.2")
	if err != nil {
		t.Fatalf("PaymentLegs: %v", err)
	}
	if len(legs) != 2 || !balanced(legs) {
		t.Fatalf("legs = %+v, want two balanced legs", legs)
	}
	if legs[1].Account != "0.0.1001" || !legs[1].Amount.Equal(req.Amount) {
		t.Fatalf("seller leg = %+v", legs[1])
	}

	if _, err := (OperatorFunded{}).PaymentLegs(context.Background(), req, ""); err == nil {
		t.Fatal("expected error without operator")
	}
}
