package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"auction-settlement-service/internal/domain/auction"
	"auction-settlement-service/internal/domain/shared"
	"auction-settlement-service/internal/domain/wallet"
	"auction-settlement-service/internal/ports/outbound"

	"github.com/rs/zerolog"
)

type skewedFunding struct{}

func (skewedFunding) Name() string { return "skewed" }

func (skewedFunding) PaymentLegs(_ context.Context, req outbound.TransferRequest, _ wallet.AccountID) ([]outbound.HbarLeg, error) {
	return []outbound.HbarLeg{{Account: req.Seller, Amount: req.Amount}}, nil
}

// orderingLedger fails the test if a transfer is submitted before its id was stored
type orderingLedger struct {
	*fakeLedger
	t     *testing.T
	store *memStore
	id    func() auction.Auction
}

func (l *orderingLedger) SubmitTransfer(ctx context.Context, prepared outbound.PreparedTransfer) (*outbound.TransferReceipt, error) {
	a := l.id()
	if a.Status != auction.StatusSettling || a.SettlementTxID == nil || *a.SettlementTxID != prepared.TransactionID() {
		l.t.Fatalf("submitted before tx id was persisted: status=%s tx=%v", a.Status, a.SettlementTxID)
	}
	if a.SettlementWinner == nil || a.SettlementSeller == nil || a.SettlementAmount == nil || a.SettlementBidID == nil {
		l.t.Fatalf("submitted before transfer parties were persisted: %+v", a)
	}
	return l.fakeLedger.SubmitTransfer(ctx, prepared)
}

func TestExecute_PersistsBeforeSubmit(t *testing.T) {
	f := newFixture(RetryPolicy{})
	a, _ := f.seed("0.0.1001")
	f.bid(a, "0.0.2002", "150", testNow.Add(-time.Hour))

	ledger := &orderingLedger{fakeLedger: f.ledger, t: t, store: f.store, id: func() auction.Auction { return f.store.auction(a.ID) }}
	executor := NewTransferExecutor(TransferExecutorParams{Ledger: ledger, AuctionRepo: f.store, Logger: zerolog.Nop()})

	loaded, err := f.store.GetByID(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	d := f.service.validator.Validate(context.Background(), loaded)
	exec, err := executor.Execute(context.Background(), loaded, d)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !exec.Persisted || exec.Receipt == nil || exec.Receipt.Status != outbound.TransferConfirmed {
		t.Fatalf("execution = %+v", exec)
	}
	if loaded.Status != auction.StatusSettling {
		t.Fatalf("in-memory status = %s, want SETTLING", loaded.Status)
	}

	stored := f.store.auction(a.ID)
	if *stored.SettlementWinner != "0.0.2002" || *stored.SettlementSeller != "0.0.1001" {
		t.Fatalf("recorded winner/seller = %s/%s", *stored.SettlementWinner, *stored.SettlementSeller)
	}
	if *stored.SettlementBidID != d.Highest.ID || *stored.SettlementBidderID != "0.0.2002" {
		t.Fatalf("recorded bid = %s/%s", *stored.SettlementBidID, *stored.SettlementBidderID)
	}
	if !stored.SettlementAmount.Equal(d.Highest.AmountHbar) {
		t.Fatalf("recorded amount = %s, want %s", stored.SettlementAmount, d.Highest.AmountHbar)
	}

	req := f.ledger.submitted[0]
	if req.TokenID != "0.0.5005" || req.SerialNumber != 7 {
		t.Fatalf("nft = %s/%d", req.TokenID, req.SerialNumber)
	}
	if len(req.PaymentLegs) != 2 || req.PaymentLegs[0].Account != "0.0.2" {
		t.Fatalf("legs = %+v", req.PaymentLegs)
	}
}

func TestExecute_RejectsUnbalancedFunding(t *testing.T) {
	f := newFixture(RetryPolicy{})
	a, _ := f.seed("0.0.1001")
	f.bid(a, "0.0.2002", "150", testNow.Add(-time.Hour))

	executor := NewTransferExecutor(TransferExecutorParams{Ledger: f.ledger, Funding: skewedFunding{}, AuctionRepo: f.store, Logger: zerolog.Nop()})
	d := f.service.validator.Validate(context.Background(), a)

	exec, err := executor.Execute(context.Background(), a, d)
	if err == nil || exec != nil {
		t.Fatalf("got %+v/%v, want error before prepare", exec, err)
	}
	if shared.KindOf(err) != shared.KindLedgerSubmission {
		t.Fatalf("kind = %s", shared.KindOf(err))
	}
	if got := f.store.auction(a.ID); got.Status != auction.StatusActive {
		t.Fatalf("status = %s, want ACTIVE", got.Status)
	}
}

func TestExecute_RefusesNonActiveAuction(t *testing.T) {
	f := newFixture(RetryPolicy{})
	a, _ := f.seed("0.0.1001")
	f.bid(a, "0.0.2002", "150", testNow.Add(-time.Hour))
	d := f.service.validator.Validate(context.Background(), a)
	a.Status = auction.StatusEnded

	exec, err := f.service.executor.Execute(context.Background(), a, d)
	if exec != nil || !errors.Is(err, auction.ErrInvalidTransition) {
		t.Fatalf("got %+v/%v, want ErrInvalidTransition", exec, err)
	}
	if shared.KindOf(err) != shared.KindPreconditionNotMet {
		t.Fatalf("kind = %s, want precondition_not_met", shared.KindOf(err))
	}
	if f.ledger.seq != 0 || f.ledger.submissions() != 0 {
		t.Fatalf("prepared=%d submitted=%d, want nothing sent to the ledger", f.ledger.seq, f.ledger.submissions())
	}
}

func TestExecute_WithoutLedger(t *testing.T) {
	executor := NewTransferExecutor(TransferExecutorParams{Logger: zerolog.Nop()})
	_, err := executor.Execute(context.Background(), &auction.Auction{}, Decision{})
	if !errors.Is(err, shared.ErrLedgerNotConfigured) {
		t.Fatalf("err = %v, want ErrLedgerNotConfigured", err)
	}
}
