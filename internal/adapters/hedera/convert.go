package hedera

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

const tinybarsPerHbar = 8

var (
	maxTinybar = decimal.NewFromInt(math.MaxInt64)
	minTinybar = decimal.NewFromInt(math.MinInt64)
)

// toTinybar converts an HBAR amount to tinybars, rejecting sub-tinybar precision
// and amounts a ledger transfer cannot carry
func toTinybar(amount decimal.Decimal) (int64, error) {
	shifted := amount.Shift(tinybarsPerHbar)
	if !shifted.Equal(shifted.Truncate(0)) {
		return 0, fmt.Errorf("amount %s has more than %d decimal places", amount, tinybarsPerHbar)
	}
	if shifted.GreaterThan(maxTinybar) || shifted.LessThan(minTinybar) {
		return 0, fmt.Errorf("amount %s is outside the tinybar range", amount)
	}
	return shifted.IntPart(), nil
}

// mirrorTransactionID rewrites "0.0.2@1700000000.000000001" into the mirror node
// path form "0.0.2-1700000000-000000001"
func mirrorTransactionID(txID string) (string, error) {
	account, validStart, ok := strings.Cut(strings.TrimSpace(txID), "@")
	if !ok || account == "" {
		return "", fmt.Errorf("malformed transaction id %q", txID)
	}
	// drop a trailing "?scheduled" or "/nonce" qualifier
	if i := strings.IndexAny(validStart, "?/"); i != -1 {
		validStart = validStart[:i]
	}
	seconds, nanos, ok := strings.Cut(validStart, ".")
	if !ok {
		return "", fmt.Errorf("malformed transaction id %q", txID)
	}
	if _, err := strconv.ParseInt(seconds, 10, 64); err != nil {
		return "", fmt.Errorf("malformed transaction id %q: %w", txID, err)
	}
	n, err := strconv.ParseInt(nanos, 10, 64)
	if err != nil {
		return "", fmt.Errorf("malformed transaction id %q: %w", txID, err)
	}
	return fmt.Sprintf("%s-%s-%09d", account, seconds, n), nil
}

// defaultMirrorURL returns the public mirror node for a network
func defaultMirrorURL(network string) string {
	switch network {
	case "mainnet":
		return "https://mainnet-public.mirrornode.hedera.com"
	case "previewnet":
		return "https://previewnet.mirrornode.hedera.com"
	default:
		return "https://testnet.mirrornode.hedera.com"
	}
}
