package hedera

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"auction-settlement-service/internal/ports/outbound"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// mirrorTries bounds attempts per lookup; transport errors and 5xx are retried
const mirrorTries = 3

// MirrorClient looks transactions up on a mirror node REST API. Consensus nodes only keep
// receipts for a few minutes; the mirror node is the durable record.
type MirrorClient struct {
	baseURL string
	http    *http.Client
	logger  zerolog.Logger
}

type MirrorClientParams struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// NewMirrorClient creates a new mirror node client
func NewMirrorClient(params MirrorClientParams) *MirrorClient {
	httpClient := params.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	return &MirrorClient{
		baseURL: strings.TrimRight(params.BaseURL, "/"),
		http:    httpClient,
		logger:  params.Logger.With().Str("component", "mirror_client").Logger(),
	}
}

type mirrorTransactionsResponse struct {
	Transactions []struct {
		TransactionID      string `json:"transaction_id"`
		Result             string `json:"result"`
		ConsensusTimestamp string `json:"consensus_timestamp"`
		Scheduled          bool   `json:"scheduled"`
	} `json:"transactions"`
}

// TransferStatus returns the status the mirror node recorded for txID
func (m *MirrorClient) TransferStatus(ctx context.Context, txID string) (outbound.TransferStatus, error) {
	id, err := mirrorTransactionID(txID)
	if err != nil {
		return "", err
	}

	url := m.baseURL + "/api/v1/transactions/" + id
	body, err := backoff.Retry(ctx, func() (*mirrorTransactionsResponse, error) {
		return m.fetch(ctx, url)
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(mirrorTries))
	if err != nil {
		return "", err
	}
	if body == nil {
		return outbound.TransferNotFound, nil
	}

	// A transaction id can appear more than once (duplicates, scheduled children);
	// one successful non-scheduled entry is enough.
	status := outbound.TransferNotFound
	for _, tx := range body.Transactions {
		if tx.Scheduled {
			continue
		}
		if tx.Result == "SUCCESS" {
			return outbound.TransferConfirmed, nil
		}
		status = outbound.TransferFailed
	}

	m.logger.Debug().Str("tx_id", txID).Str("status", string(status)).Msg("Mirror lookup finished")
	return status, nil
}

// fetch returns nil without error on 404
func (m *MirrorClient) fetch(ctx context.Context, url string) (*mirrorTransactionsResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to build mirror request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := m.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mirror request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, nil
	case resp.StatusCode >= http.StatusInternalServerError, resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("mirror node returned %s", resp.Status)
	case resp.StatusCode != http.StatusOK:
		return nil, backoff.Permanent(fmt.Errorf("mirror node returned %s", resp.Status))
	}

	var body mirrorTransactionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to decode mirror response: %w", err))
	}
	return &body, nil
}
