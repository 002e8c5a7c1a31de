package shared

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Outcome is what one pass of the pipeline did to an auction
type Outcome string

const (
	OutcomeSettled      Outcome = "settled"
	OutcomeEnded        Outcome = "ended"
	OutcomeDeferred     Outcome = "deferred"
	OutcomePending      Outcome = "pending"
	OutcomeReverted     Outcome = "reverted"
	OutcomeDeadLettered Outcome = "dead_lettered"
	OutcomeSkipped      Outcome = "skipped"
	OutcomeFailed       Outcome = "failed"
)

// SettlementResult represents the result of processing one auction
type SettlementResult struct {
	AuctionID     uuid.UUID
	Outcome       Outcome
	Status        string
	EndReason     *string
	WinnerID      *string
	FinalPrice    *decimal.Decimal
	TransactionID *string
	Err           error
}

// CycleReport summarises one scan cycle
type CycleReport struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Leader     bool
	Scanned    int
	Recovered  int
	Results    []SettlementResult
}

// Count returns how many results in the report have outcome o
func (r *CycleReport) Count(o Outcome) int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == o {
			n++
		}
	}
	return n
}
