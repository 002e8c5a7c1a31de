package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"auction-settlement-service/internal/domain/auction"
	"auction-settlement-service/internal/domain/shared"
	"auction-settlement-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "auction-settlement-service/internal/app"

// SettlementService runs the settlement pipeline: scan, validate, transfer, commit.
// It implements inbound.SettlementService.
type SettlementService struct {
	scanner     *Scanner
	validator   *Validator
	executor    *TransferExecutor
	committer   *StateCommitter
	auctionRepo outbound.AuctionRepository
	ledger      outbound.Ledger
	broadcaster outbound.Broadcaster
	lock        outbound.LeaderLock
	retry       RetryPolicy
	grace       time.Duration
	now         func() time.Time
	tracer      trace.Tracer
	logger      zerolog.Logger

	mu         sync.RWMutex
	lastReport *shared.CycleReport
}

type SettlementServiceParams struct {
	Scanner     *Scanner
	Validator   *Validator
	Executor    *TransferExecutor
	Committer   *StateCommitter
	AuctionRepo outbound.AuctionRepository
	Ledger      outbound.Ledger
	Broadcaster outbound.Broadcaster
	// Lock is optional; without it every cycle runs
	Lock  outbound.LeaderLock
	Retry RetryPolicy
	// ReconcileGrace is how long past a transaction's validity window an unknown
	// transaction id is still treated as possibly in flight
	ReconcileGrace time.Duration
	Clock          func() time.Time
	Logger         zerolog.Logger
}

// NewSettlementService creates a new settlement service
func NewSettlementService(params SettlementServiceParams) *SettlementService {
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &SettlementService{
		scanner:     params.Scanner,
		validator:   params.Validator,
		executor:    params.Executor,
		committer:   params.Committer,
		auctionRepo: params.AuctionRepo,
		ledger:      params.Ledger,
		broadcaster: params.Broadcaster,
		lock:        params.Lock,
		retry:       params.Retry.normalized(),
		grace:       params.ReconcileGrace,
		now:         clock,
		tracer:      otel.Tracer(tracerName),
		logger:      params.Logger.With().Str("component", "settlement_service").Logger(),
	}
}

// RunCycle scans once and processes every eligible auction sequentially.
// The operator account allows only one in-flight transaction, so there is no fan-out.
func (s *SettlementService) RunCycle(ctx context.Context) (*shared.CycleReport, error) {
	ctx, span := s.tracer.Start(ctx, "settlement.cycle")
	defer span.End()

	report := &shared.CycleReport{StartedAt: s.now(), Leader: true}
	defer func() {
		report.FinishedAt = s.now()
		s.setLastReport(report)
	}()

	leader, err := s.holdLease(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "leader lock")
		report.Leader = false
		return report, fmt.Errorf("acquire leader lock: %w", err)
	}
	if !leader {
		s.logger.Debug().Msg("Another instance holds the settlement lease, skipping cycle")
		report.Leader = false
		return report, nil
	}

	scan, err := s.scanner.Scan(ctx, report.StartedAt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "scan")
		return report, fmt.Errorf("scan auctions: %w", err)
	}
	report.Scanned = len(scan.Expired)
	report.Recovered = len(scan.Settling)

	for _, id := range append(scan.Settling, scan.Expired...) {
		if err := ctx.Err(); err != nil {
			s.logger.Warn().Err(err).Msg("Cycle interrupted")
			return report, err
		}
		// The lease may have lapsed during the previous auction; a lapsed lease
		// ends the cycle before anything else is submitted.
		leader, err := s.holdLease(ctx)
		if err != nil || !leader {
			report.Leader = false
			if err == nil {
				err = shared.ErrLockNotHeld
			}
			s.logger.Warn().Err(err).Int("processed", len(report.Results)).Msg("Settlement lease lost mid-cycle, stopping")
			span.RecordError(err)
			span.SetStatus(codes.Error, "leader lock")
			return report, fmt.Errorf("renew leader lock: %w", err)
		}
		report.Results = append(report.Results, s.SettleAuction(ctx, id))
	}

	span.SetAttributes(
		attribute.Int("settlement.scanned", report.Scanned),
		attribute.Int("settlement.recovered", report.Recovered),
		attribute.Int("settlement.settled", report.Count(shared.OutcomeSettled)),
	)
	s.logger.Info().
		Int("scanned", report.Scanned).
		Int("recovered", report.Recovered).
		Int("settled", report.Count(shared.OutcomeSettled)).
		Int("ended", report.Count(shared.OutcomeEnded)).
		Int("deferred", report.Count(shared.OutcomeDeferred)).
		Int("dead_lettered", report.Count(shared.OutcomeDeadLettered)).
		Msg("Settlement cycle finished")

	return report, nil
}

// holdLease acquires or renews the settlement lease. Without a lock every caller leads.
func (s *SettlementService) holdLease(ctx context.Context) (bool, error) {
	if s.lock == nil {
		return true, nil
	}
	leader, err := s.lock.Acquire(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to acquire leader lock")
		return false, err
	}
	return leader, nil
}

// SettleAuction runs the pipeline for one auction. Failures are contained in the result.
func (s *SettlementService) SettleAuction(ctx context.Context, auctionID uuid.UUID) shared.SettlementResult {
	ctx, span := s.tracer.Start(ctx, "settlement.auction", trace.WithAttributes(attribute.String("auction.id", auctionID.String())))
	defer span.End()

	result := s.settle(ctx, auctionID)
	span.SetAttributes(attribute.String("settlement.outcome", string(result.Outcome)))
	if result.Err != nil {
		span.RecordError(result.Err)
		if result.Outcome == shared.OutcomeFailed {
			span.SetStatus(codes.Error, result.Err.Error())
		}
	}
	return result
}

// LastReport returns the report of the most recent cycle, or nil
func (s *SettlementService) LastReport() *shared.CycleReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastReport
}

func (s *SettlementService) setLastReport(report *shared.CycleReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastReport = report
}

func (s *SettlementService) settle(ctx context.Context, auctionID uuid.UUID) shared.SettlementResult {
	logger := s.logger.With().Str("auction_id", auctionID.String()).Logger()
	result := shared.SettlementResult{AuctionID: auctionID}

	a, err := s.auctionRepo.GetByID(ctx, auctionID)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load auction")
		result.Outcome = shared.OutcomeFailed
		result.Err = err
		return result
	}
	result.Status = string(a.Status)

	now := s.now()
	switch {
	case a.IsSettling():
		return s.reconcile(ctx, a)
	case a.IsTerminal():
		result.Outcome = shared.OutcomeSkipped
		return result
	case a.DeadLetteredAt != nil:
		result.Outcome = shared.OutcomeSkipped
		result.Err = shared.ErrAuctionDeadLettered
		return result
	case !a.HasEnded(now):
		result.Outcome = shared.OutcomeSkipped
		result.Err = shared.ErrAuctionNotEnded
		return result
	}

	d := s.validator.Validate(ctx, a)
	logger.Debug().Str("decision", string(d.Kind)).Msg("Auction validated")

	switch {
	case d.Ends():
		return s.end(ctx, a, d)
	case d.Kind == DecisionDefer:
		logger.Warn().Err(d.Err).Msg("Settlement deferred")
		return s.fail(ctx, a, d.Err)
	}

	exec, err := s.executor.Execute(ctx, a, d)
	if err != nil {
		switch {
		case exec == nil || !exec.Persisted:
			return s.fail(ctx, a, err)
		case exec.Receipt != nil && exec.Receipt.Status == outbound.TransferFailed:
			return s.revert(ctx, a, exec.TransactionID, err)
		default:
			// Submitted but unconfirmed: reconciled from the stored transaction id next cycle.
			result.Outcome = shared.OutcomePending
			result.Status = string(auction.StatusSettling)
			result.TransactionID = &exec.TransactionID
			result.Err = err
			return result
		}
	}

	return s.commit(ctx, a, d, &exec.TransactionID)
}

func (s *SettlementService) end(ctx context.Context, a *auction.Auction, d Decision) shared.SettlementResult {
	result := shared.SettlementResult{AuctionID: a.ID, Status: string(a.Status)}

	// A self-bid still names the winning bidder; the other reasons carry no winner.
	var winnerID *string
	if d.Kind == DecisionEndSelfBid {
		winnerID = d.WinnerID()
	}

	if err := s.committer.End(ctx, a, d.EndReason(), winnerID); err != nil {
		result.Outcome = shared.OutcomeFailed
		result.Err = err
		return result
	}

	reason := string(d.EndReason())
	result.Outcome = shared.OutcomeEnded
	result.Status = string(auction.StatusEnded)
	result.EndReason = &reason
	result.WinnerID = winnerID
	result.Err = d.Err

	data := map[string]interface{}{
		"status": result.Status,
		"reason": reason,
	}
	if winnerID != nil {
		data["winner_id"] = *winnerID
	}
	s.publish(ctx, a.ID, outbound.EventTypeAuctionEnded, data)
	return result
}

func (s *SettlementService) commit(ctx context.Context, a *auction.Auction, d Decision, txID *string) shared.SettlementResult {
	result := shared.SettlementResult{AuctionID: a.ID, Status: string(a.Status), TransactionID: txID}

	if _, err := auction.Transition(a.Status, auction.EventConfirm); err != nil {
		result.Outcome = shared.OutcomeFailed
		result.Err = err
		return result
	}

	identity, err := s.committer.Commit(ctx, a, d, txID, s.now())
	if err != nil {
		if errors.Is(err, shared.ErrAlreadySettled) {
			result.Outcome = shared.OutcomeSkipped
			result.Err = err
			return result
		}
		// The ledger moved; the stored transaction id makes the next cycle retry the commit.
		s.logger.Error().Err(err).Str("auction_id", a.ID.String()).Msg("Transfer confirmed but commit failed")
		result.Outcome = shared.OutcomeFailed
		result.Err = err
		return result
	}

	price := d.Highest.AmountHbar
	winnerID := d.Highest.BidderID
	result.Outcome = shared.OutcomeSettled
	result.Status = string(auction.StatusSettled)
	result.WinnerID = &winnerID
	result.FinalPrice = &price

	data := map[string]interface{}{
		"status":             result.Status,
		"winner_id":          winnerID,
		"winner_business_id": identity.BusinessID.String(),
		"final_price":        price.String(),
	}
	if txID != nil {
		data["transaction_id"] = *txID
	}
	s.publish(ctx, a.ID, outbound.EventTypeAuctionSettled, data)
	return result
}

// reconcile resolves an auction left SETTLING by a lost receipt, a crash or a failed commit
func (s *SettlementService) reconcile(ctx context.Context, a *auction.Auction) shared.SettlementResult {
	result := shared.SettlementResult{AuctionID: a.ID, Status: string(a.Status), TransactionID: a.SettlementTxID}
	logger := s.logger.With().Str("auction_id", a.ID.String()).Logger()

	if a.SettlementTxID == nil || *a.SettlementTxID == "" {
		// SETTLING without an id cannot have submitted anything.
		return s.revert(ctx, a, "", fmt.Errorf("settling auction without transaction id"))
	}
	txID := *a.SettlementTxID

	status, err := s.ledger.TransferStatus(ctx, txID)
	if err != nil {
		logger.Error().Err(err).Str("tx_id", txID).Msg("Failed to query transaction status")
		result.Outcome = shared.OutcomePending
		result.Err = shared.Wrap(shared.KindLedgerSubmission, "reconcile", err)
		return result
	}
	logger.Info().Str("tx_id", txID).Str("ledger_status", string(status)).Msg("Reconciling settling auction")

	switch status {
	case outbound.TransferConfirmed:
		d, err := signedDecision(a)
		if err != nil {
			logger.Error().Err(err).Msg("Transfer confirmed but its recorded parties are missing")
			result.Outcome = shared.OutcomeFailed
			result.Err = shared.Wrap(shared.KindStorageCommit, "reconcile", err)
			return result
		}
		return s.commit(ctx, a, d, &txID)
	case outbound.TransferFailed:
		return s.revert(ctx, a, txID, shared.ErrTransactionFailed)
	case outbound.TransferNotFound:
		if a.SettlementTxExpiry != nil && s.now().After(a.SettlementTxExpiry.Add(s.grace)) {
			return s.revert(ctx, a, txID, fmt.Errorf("transaction %s: %w", txID, shared.ErrTransactionNotFound))
		}
	}

	result.Outcome = shared.OutcomePending
	return result
}

// revert returns a SETTLING auction to ACTIVE and counts the failed attempt
func (s *SettlementService) revert(ctx context.Context, a *auction.Auction, txID string, cause error) shared.SettlementResult {
	result := shared.SettlementResult{AuctionID: a.ID, Status: string(a.Status)}

	next, err := auction.Transition(auction.StatusSettling, auction.EventAbandon)
	if err == nil {
		err = s.auctionRepo.RevertSettling(ctx, a.ID, txID)
	}
	if err != nil {
		s.logger.Error().Err(err).Str("auction_id", a.ID.String()).Msg("Failed to revert settling auction")
		result.Outcome = shared.OutcomeFailed
		result.Err = err
		return result
	}
	a.Status = next
	a.SettlementTxID = nil

	failed := s.fail(ctx, a, shared.Wrap(shared.KindLedgerSubmission, "revert", cause))
	if failed.Outcome == shared.OutcomeDeferred {
		failed.Outcome = shared.OutcomeReverted
	}
	return failed
}

// fail records a non-terminal failure and dead-letters the auction once retries run out
func (s *SettlementService) fail(ctx context.Context, a *auction.Auction, cause error) shared.SettlementResult {
	result := shared.SettlementResult{AuctionID: a.ID, Status: string(a.Status), Err: cause}
	now := s.now()
	attempts := a.SettlementAttempts + 1
	next, dead := s.retry.Next(attempts, now)

	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	failure := outbound.SettlementFailure{
		Attempts:      attempts,
		LastError:     msg,
		NextAttemptAt: next,
		DeadLettered:  dead,
		At:            now,
	}
	if err := s.auctionRepo.RecordFailure(ctx, a.ID, failure); err != nil {
		s.logger.Error().Err(err).Str("auction_id", a.ID.String()).Msg("Failed to record settlement failure")
		result.Outcome = shared.OutcomeFailed
		result.Err = errors.Join(cause, err)
		return result
	}
	a.SettlementAttempts = attempts

	if dead {
		s.logger.Error().
			Err(cause).
			Str("auction_id", a.ID.String()).
			Int("attempts", attempts).
			Msg("Auction dead-lettered after exhausting retries")
		result.Outcome = shared.OutcomeDeadLettered
		s.publish(ctx, a.ID, outbound.EventTypeAuctionDeadLettered, map[string]interface{}{
			"attempts":   attempts,
			"last_error": msg,
		})
		return result
	}

	s.logger.Warn().
		Err(cause).
		Str("auction_id", a.ID.String()).
		Int("attempt", attempts).
		Time("next_attempt_at", *next).
		Msg("Auction left active for retry")
	result.Outcome = shared.OutcomeDeferred
	return result
}

func (s *SettlementService) publish(ctx context.Context, auctionID uuid.UUID, eventType outbound.EventType, data map[string]interface{}) {
	if s.broadcaster == nil {
		return
	}
	event := outbound.Event{
		Type:      eventType,
		AuctionID: auctionID,
		Data:      data,
		Timestamp: s.now().Unix(),
	}
	if err := s.broadcaster.Publish(ctx, auctionID, event); err != nil {
		// Storage is the source of truth; a lost event is only logged.
		s.logger.Error().Err(err).Str("auction_id", auctionID.String()).Str("event_type", string(eventType)).Msg("Failed to broadcast settlement event")
	}
}
