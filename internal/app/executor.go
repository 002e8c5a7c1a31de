package app

import (
	"context"
	"fmt"

	"auction-settlement-service/internal/domain/auction"
	"auction-settlement-service/internal/domain/shared"
	"auction-settlement-service/internal/ports/outbound"

	"github.com/rs/zerolog"
)

// Execution reports how far a transfer got
type Execution struct {
	TransactionID string
	// Persisted is true once the transaction id is stored and the auction is SETTLING
	Persisted bool
	Receipt   *outbound.TransferReceipt
}

// TransferExecutor builds, records and submits the single asset-for-payment transaction
type TransferExecutor struct {
	ledger      outbound.Ledger
	funding     outbound.FundingStrategy
	auctionRepo outbound.AuctionRepository
	logger      zerolog.Logger
}

type TransferExecutorParams struct {
	Ledger      outbound.Ledger
	Funding     outbound.FundingStrategy
	AuctionRepo outbound.AuctionRepository
	Logger      zerolog.Logger
}

// NewTransferExecutor creates a new transfer executor
func NewTransferExecutor(params TransferExecutorParams) *TransferExecutor {
	funding := params.Funding
	if funding == nil {
		funding = OperatorFunded{}
	}
	return &TransferExecutor{
		ledger:      params.Ledger,
		funding:     funding,
		auctionRepo: params.AuctionRepo,
		logger:      params.Logger.With().Str("component", "transfer_executor").Logger(),
	}
}

// Execute moves the asset to the winner and the payment to the seller in one transaction.
// The transaction id and the parties it pays are persisted before submission so a crash
// or a lost receipt can be reconciled instead of resubmitted.
// On return with Persisted set, a is SETTLING.
func (e *TransferExecutor) Execute(ctx context.Context, a *auction.Auction, d Decision) (*Execution, error) {
	if e.ledger == nil {
		return nil, shared.Wrap(shared.KindLedgerSubmission, "execute", shared.ErrLedgerNotConfigured)
	}
	next, err := auction.Transition(a.Status, auction.EventSubmit)
	if err != nil {
		return nil, shared.Wrap(shared.KindPreconditionNotMet, "execute", err)
	}

	req := outbound.TransferRequest{
		AuctionID:    a.ID,
		TokenID:      d.Asset.TokenID,
		SerialNumber: d.Asset.SerialNumber,
		Seller:       d.Seller,
		Winner:       d.Winner,
		Amount:       d.Highest.AmountHbar,
		Memo:         fmt.Sprintf("auction %s settlement", a.ID),
	}

	legs, err := e.funding.PaymentLegs(ctx, req, e.ledger.OperatorAccount())
	if err != nil {
		return nil, shared.Wrap(shared.KindLedgerSubmission, "funding", err)
	}
	if !balanced(legs) {
		return nil, shared.Wrap(shared.KindLedgerSubmission, "funding", fmt.Errorf("%s legs do not net to zero", e.funding.Name()))
	}
	req.PaymentLegs = legs

	prepared, err := e.ledger.PrepareTransfer(ctx, req)
	if err != nil {
		e.logger.Error().Err(err).Str("auction_id", a.ID.String()).Msg("Failed to prepare transfer")
		return nil, shared.Wrap(shared.KindLedgerSubmission, "prepare", err)
	}

	exec := &Execution{TransactionID: prepared.TransactionID()}
	logger := e.logger.With().Str("auction_id", a.ID.String()).Str("tx_id", exec.TransactionID).Logger()

	intent := outbound.SettlementIntent{
		TransactionID: exec.TransactionID,
		ValidUntil:    prepared.ValidUntil(),
		BidID:         d.Highest.ID,
		BidderID:      d.Highest.BidderID,
		Winner:        d.Winner,
		Seller:        d.Seller,
		Amount:        d.Highest.AmountHbar,
	}
	if err := e.auctionRepo.MarkSettling(ctx, a.ID, intent); err != nil {
		logger.Error().Err(err).Msg("Failed to persist transaction id, transfer not submitted")
		return exec, shared.Wrap(shared.KindLedgerSubmission, "persist_tx_id", err)
	}
	exec.Persisted = true
	a.Status = next
	a.SettlementTxID = &exec.TransactionID

	logger.Info().
		Str("seller", d.Seller.String()).
		Str("winner", d.Winner.String()).
		Str("amount_hbar", req.Amount.String()).
		Str("funding", e.funding.Name()).
		Msg("Submitting settlement transfer")

	receipt, err := e.ledger.SubmitTransfer(ctx, prepared)
	if err != nil {
		logger.Error().Err(err).Msg("Transfer submission did not return a receipt")
		return exec, shared.Wrap(shared.KindLedgerSubmission, "submit", err)
	}
	exec.Receipt = receipt

	if receipt.Status != outbound.TransferConfirmed {
		logger.Warn().Str("status", string(receipt.Status)).Msg("Transfer did not succeed")
		return exec, shared.Wrap(shared.KindLedgerSubmission, "receipt", shared.ErrTransactionFailed)
	}

	logger.Info().Msg("Transfer confirmed")
	return exec, nil
}
