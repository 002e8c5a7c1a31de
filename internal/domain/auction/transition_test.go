package auction

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestTransition(t *testing.T) {
	cases := []struct {
		name    string
		from    Status
		event   Event
		want    Status
		wantErr bool
	}{
		{name: "active end", from: StatusActive, event: EventEnd, want: StatusEnded},
		{name: "active submit", from: StatusActive, event: EventSubmit, want: StatusSettling},
		{name: "active confirm", from: StatusActive, event: EventConfirm, want: StatusSettled},
		{name: "settling confirm", from: StatusSettling, event: EventConfirm, want: StatusSettled},
		{name: "settling abandon", from: StatusSettling, event: EventAbandon, want: StatusActive},
		{name: "settling end", from: StatusSettling, event: EventEnd, wantErr: true},
		{name: "active abandon", from: StatusActive, event: EventAbandon, wantErr: true},
		{name: "ended end", from: StatusEnded, event: EventEnd, wantErr: true},
		{name: "ended confirm", from: StatusEnded, event: EventConfirm, wantErr: true},
		{name: "settled confirm", from: StatusSettled, event: EventConfirm, wantErr: true},
		{name: "settled submit", from: StatusSettled, event: EventSubmit, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Transition(tc.from, tc.event)
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidTransition) {
					t.Fatalf("err = %v, want ErrInvalidTransition", err)
				}
				if got != tc.from {
					t.Fatalf("status = %s, want unchanged %s", got, tc.from)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("status = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestAuctionHelpers(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a := &Auction{Status: StatusActive, EndTime: now}

	if !a.HasEnded(now) {
		t.Fatalf("auction ending exactly now should count as ended")
	}
	if a.HasEnded(now.Add(-time.Second)) {
		t.Fatalf("auction ending in the future should not count as ended")
	}
	if a.HasReserve() {
		t.Fatalf("zero reserve should not count as reserve")
	}
	a.ReservePrice = decimal.NewFromInt(10)
	if !a.HasReserve() {
		t.Fatalf("positive reserve should count as reserve")
	}
	if a.IsTerminal() {
		t.Fatalf("active auction reported terminal")
	}
	a.Status = StatusSettled
	if !a.IsTerminal() {
		t.Fatalf("settled auction not reported terminal")
	}
}
