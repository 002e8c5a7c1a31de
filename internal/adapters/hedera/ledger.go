package hedera

import (
	"context"
	"errors"
	"fmt"
	"time"

	"auction-settlement-service/internal/config"
	"auction-settlement-service/internal/domain/shared"
	"auction-settlement-service/internal/domain/wallet"
	"auction-settlement-service/internal/ports/outbound"

	sdk "github.com/hashgraph/hedera-sdk-go/v2"
	"github.com/rs/zerolog"
)

// validDuration is how long a prepared transaction may reach consensus
const validDuration = 120 * time.Second

// Ledger settles auctions on the Hedera network with the custodial operator account
type Ledger struct {
	client         *sdk.Client
	operator       sdk.AccountID
	operatorKey    sdk.PrivateKey
	mirror         *MirrorClient
	receiptTimeout time.Duration
	logger         zerolog.Logger
}

type LedgerParams struct {
	Config config.LedgerConfig
	Logger zerolog.Logger
}

// NewLedger builds the network client and sets the operator. The caller owns Close.
func NewLedger(params LedgerParams) (*Ledger, error) {
	cfg := params.Config
	if !cfg.Enabled() {
		return nil, shared.ErrLedgerNotConfigured
	}

	operator, err := sdk.AccountIDFromString(cfg.OperatorID)
	if err != nil {
		return nil, fmt.Errorf("invalid operator account %q: %w", cfg.OperatorID, err)
	}
	key, err := sdk.PrivateKeyFromString(cfg.OperatorKey)
	if err != nil {
		return nil, fmt.Errorf("invalid operator key: %w", err)
	}

	client, err := sdk.ClientForName(cfg.Network)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", cfg.Network, err)
	}
	client.SetOperator(operator, key)

	mirrorURL := cfg.MirrorURL
	if mirrorURL == "" {
		mirrorURL = defaultMirrorURL(cfg.Network)
	}
	timeout := cfg.ReceiptTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	logger := params.Logger.With().Str("component", "hedera_ledger").Logger()
	logger.Info().
		Str("network", cfg.Network).
		Str("operator", operator.String()).
		Str("mirror", mirrorURL).
		Msg("Ledger client ready")

	return &Ledger{
		client:         client,
		operator:       operator,
		operatorKey:    key,
		mirror:         NewMirrorClient(MirrorClientParams{BaseURL: mirrorURL, Logger: params.Logger}),
		receiptTimeout: timeout,
		logger:         logger,
	}, nil
}

// Close releases the network client
func (l *Ledger) Close() error {
	return l.client.Close()
}

// OperatorAccount returns the custodial account that signs and pays fees
func (l *Ledger) OperatorAccount() wallet.AccountID {
	return wallet.AccountID(l.operator.String())
}

type preparedTransfer struct {
	tx         *sdk.TransferTransaction
	id         sdk.TransactionID
	validUntil time.Time
}

func (p *preparedTransfer) TransactionID() string { return p.id.String() }
func (p *preparedTransfer) ValidUntil() time.Time { return p.validUntil }

// PrepareTransfer builds one transaction carrying the approved NFT leg and the payment
// legs, fixes its id, freezes and signs it
func (l *Ledger) PrepareTransfer(_ context.Context, req outbound.TransferRequest) (outbound.PreparedTransfer, error) {
	tokenID, err := sdk.TokenIDFromString(req.TokenID)
	if err != nil {
		return nil, fmt.Errorf("invalid token id %q: %w", req.TokenID, err)
	}
	seller, err := sdk.AccountIDFromString(req.Seller.String())
	if err != nil {
		return nil, fmt.Errorf("invalid seller account: %w", err)
	}
	winner, err := sdk.AccountIDFromString(req.Winner.String())
	if err != nil {
		return nil, fmt.Errorf("invalid winner account: %w", err)
	}

	txID := sdk.TransactionIDGenerate(l.operator)
	tx := sdk.NewTransferTransaction().
		SetTransactionID(txID).
		SetTransactionValidDuration(validDuration).
		SetTransactionMemo(req.Memo).
		AddApprovedNftTransfer(sdk.NftID{TokenID: tokenID, SerialNumber: req.SerialNumber}, seller, winner, true)

	for _, leg := range req.PaymentLegs {
		account, err := sdk.AccountIDFromString(leg.Account.String())
		if err != nil {
			return nil, fmt.Errorf("invalid payment account: %w", err)
		}
		tinybars, err := toTinybar(leg.Amount)
		if err != nil {
			return nil, err
		}
		tx.AddHbarTransfer(account, sdk.HbarFromTinybar(tinybars))
	}

	frozen, err := tx.FreezeWith(l.client)
	if err != nil {
		return nil, fmt.Errorf("failed to freeze transfer: %w", err)
	}
	frozen.Sign(l.operatorKey)

	validUntil := time.Now().Add(validDuration)
	if txID.ValidStart != nil {
		validUntil = txID.ValidStart.Add(validDuration)
	}

	return &preparedTransfer{tx: frozen, id: txID, validUntil: validUntil}, nil
}

// SubmitTransfer executes a prepared transfer and waits for its receipt
func (l *Ledger) SubmitTransfer(ctx context.Context, prepared outbound.PreparedTransfer) (*outbound.TransferReceipt, error) {
	p, ok := prepared.(*preparedTransfer)
	if !ok {
		return nil, shared.ErrPreparedTransferMixup
	}
	txID := p.TransactionID()
	logger := l.logger.With().Str("tx_id", txID).Logger()

	resp, err := withContext(ctx, l.receiptTimeout, func() (sdk.TransactionResponse, error) {
		return p.tx.Execute(l.client)
	})
	if err != nil {
		var precheck sdk.ErrHederaPreCheckStatus
		if errors.As(err, &precheck) && precheck.Status != sdk.StatusDuplicateTransaction {
			// Rejected before consensus; the id can never succeed.
			logger.Warn().Str("status", precheck.Status.String()).Msg("Transfer rejected at precheck")
			return &outbound.TransferReceipt{TransactionID: txID, Status: outbound.TransferFailed}, nil
		}
		return nil, fmt.Errorf("failed to submit transfer: %w", err)
	}

	receipt, err := withContext(ctx, l.receiptTimeout, func() (sdk.TransactionReceipt, error) {
		return resp.GetReceipt(l.client)
	})
	status, err := receiptStatus(receipt, err)
	if err != nil {
		return nil, fmt.Errorf("failed to get transfer receipt: %w", err)
	}

	logger.Info().Str("status", string(status)).Msg("Transfer receipt received")
	return &outbound.TransferReceipt{TransactionID: txID, Status: status}, nil
}

// TransferStatus reconciles a persisted transaction id: consensus node receipt first,
// mirror node when the receipt has aged out
func (l *Ledger) TransferStatus(ctx context.Context, txID string) (outbound.TransferStatus, error) {
	id, err := sdk.TransactionIdFromString(txID)
	if err != nil {
		return "", fmt.Errorf("invalid transaction id %q: %w", txID, err)
	}

	receipt, err := withContext(ctx, l.receiptTimeout, func() (sdk.TransactionReceipt, error) {
		return sdk.NewTransactionReceiptQuery().SetTransactionID(id).Execute(l.client)
	})
	status, err := receiptStatus(receipt, err)
	if err == nil && status != outbound.TransferNotFound {
		return status, nil
	}
	if err != nil {
		l.logger.Debug().Err(err).Str("tx_id", txID).Msg("Receipt query failed, asking the mirror node")
	}

	return l.mirror.TransferStatus(ctx, txID)
}

// receiptStatus maps an SDK receipt outcome onto a transfer status
func receiptStatus(receipt sdk.TransactionReceipt, err error) (outbound.TransferStatus, error) {
	if err != nil {
		var receiptErr sdk.ErrHederaReceiptStatus
		if errors.As(err, &receiptErr) {
			return statusOf(receiptErr.Status), nil
		}
		var precheck sdk.ErrHederaPreCheckStatus
		if errors.As(err, &precheck) {
			return statusOf(precheck.Status), nil
		}
		return "", err
	}
	return statusOf(receipt.Status), nil
}

func statusOf(status sdk.Status) outbound.TransferStatus {
	switch status {
	case sdk.StatusSuccess:
		return outbound.TransferConfirmed
	case sdk.StatusUnknown, sdk.StatusBusy, sdk.StatusOk:
		return outbound.TransferPending
	case sdk.StatusReceiptNotFound, sdk.StatusRecordNotFound:
		return outbound.TransferNotFound
	default:
		return outbound.TransferFailed
	}
}

// withContext runs a blocking SDK call, giving up when ctx ends or timeout passes.
// The SDK has no context support; an abandoned call finishes in the background.
func withContext[T any](ctx context.Context, timeout time.Duration, fn func() (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn()
		done <- result{value: v, err: err}
	}()

	select {
	case r := <-done:
		return r.value, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
