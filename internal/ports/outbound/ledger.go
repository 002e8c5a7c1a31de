package outbound

import (
	"context"
	"time"

	"auction-settlement-service/internal/domain/wallet"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransferStatus is the reconciled state of a submitted ledger transaction
type TransferStatus string

const (
	TransferConfirmed TransferStatus = "confirmed"
	TransferFailed    TransferStatus = "failed"
	TransferPending   TransferStatus = "pending"
	TransferNotFound  TransferStatus = "not_found"
)

// HbarLeg is one signed amount of the payment side of a transfer.
// Negative amounts debit the account.
type HbarLeg struct {
	Account wallet.AccountID
	Amount  decimal.Decimal
}

// TransferRequest describes the asset-for-payment swap of one auction
type TransferRequest struct {
	AuctionID    uuid.UUID
	TokenID      string
	SerialNumber int64
	Seller       wallet.AccountID
	Winner       wallet.AccountID
	Amount       decimal.Decimal
	PaymentLegs  []HbarLeg
	Memo         string
}

// PreparedTransfer is a frozen, signed transaction whose id is already fixed
type PreparedTransfer interface {
	TransactionID() string
	ValidUntil() time.Time
}

// TransferReceipt is the consensus result of a submitted transfer
type TransferReceipt struct {
	TransactionID string
	Status        TransferStatus
	ConsensusAt   *time.Time
}

// Ledger builds, submits and reconciles atomic transfers
type Ledger interface {
	// OperatorAccount returns the custodial account that signs and pays fees
	OperatorAccount() wallet.AccountID

	// PrepareTransfer freezes and signs the transaction without submitting it
	PrepareTransfer(ctx context.Context, req TransferRequest) (PreparedTransfer, error)

	// SubmitTransfer submits a prepared transfer and blocks until a receipt arrives
	SubmitTransfer(ctx context.Context, prepared PreparedTransfer) (*TransferReceipt, error)

	// TransferStatus reconciles a previously submitted transaction id
	TransferStatus(ctx context.Context, txID string) (TransferStatus, error)
}

// FundingStrategy decides who pays the seller. The payment legs must sum to zero.
type FundingStrategy interface {
	Name() string
	PaymentLegs(ctx context.Context, req TransferRequest, operator wallet.AccountID) ([]HbarLeg, error)
}
