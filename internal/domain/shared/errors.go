package shared

import (
	"errors"
	"fmt"
)

// Domain-specific errors
var (
	// Auction errors
	ErrAuctionNotFound     = errors.New("auction not found")
	ErrAuctionNotActive    = errors.New("auction is not active")
	ErrAuctionNotSettling  = errors.New("auction is not settling")
	ErrAlreadySettled      = errors.New("auction already settled or ended")
	ErrAuctionNotEnded     = errors.New("auction bidding window still open")
	ErrAuctionDeadLettered = errors.New("auction dead-lettered")

	// Bid errors
	ErrNoBidsFound       = errors.New("no bids found")
	ErrBidAmountInvalid  = errors.New("bid amount must be greater than 0")
	ErrAllowanceMissing  = errors.New("custodial allowance not granted")
	ErrSelfBid           = errors.New("winner wallet equals seller wallet")
	ErrReserveNotReached = errors.New("highest bid below reserve price")

	// Asset errors
	ErrAssetNotFound   = errors.New("asset not found")
	ErrAssetNotOnChain = errors.New("asset has no ledger token")

	// Identity errors
	ErrUserNotFound     = errors.New("user not found")
	ErrBusinessNotFound = errors.New("business not found")
	ErrWalletUnresolved = errors.New("wallet could not be resolved")

	// Ledger errors
	ErrLedgerNotConfigured   = errors.New("ledger operator not configured")
	ErrTransactionFailed     = errors.New("ledger transaction failed")
	ErrTransactionNotFound   = errors.New("ledger transaction not found")
	ErrPreparedTransferMixup = errors.New("prepared transfer was built by a different ledger client")
	ErrSettlementIntentGone  = errors.New("settling auction has no recorded transfer parties")

	// Database errors
	ErrDatabaseConnection  = errors.New("database connection failed")
	ErrDatabaseQuery       = errors.New("database query failed")
	ErrDatabaseTransaction = errors.New("database transaction failed")

	// Lock errors
	ErrLockNotHeld = errors.New("leader lock not held")
)

// ErrorKind classifies a settlement failure by how the pipeline must react to it
type ErrorKind string

const (
	// KindDataIntegrity leaves the auction ACTIVE and retries next cycle
	KindDataIntegrity ErrorKind = "data_integrity"
	// KindPreconditionNotMet ends the auction without a transfer
	KindPreconditionNotMet ErrorKind = "precondition_not_met"
	// KindLedgerSubmission leaves the auction for retry or reconciliation
	KindLedgerSubmission ErrorKind = "ledger_submission"
	// KindStorageCommit means the ledger moved but the store did not record it
	KindStorageCommit ErrorKind = "storage_commit"
)

// SettlementError wraps a failure with its kind and the pipeline step that raised it
type SettlementError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *SettlementError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s (%s): %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s (%s)", e.Op, e.Kind)
}

func (e *SettlementError) Unwrap() error {
	return e.Err
}

// Wrap builds a SettlementError. A nil err yields nil.
func Wrap(kind ErrorKind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &SettlementError{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of err, or "" when err is not a SettlementError
func KindOf(err error) ErrorKind {
	var se *SettlementError
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}
