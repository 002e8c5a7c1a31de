package app

import (
	"context"
	"fmt"

	"auction-settlement-service/internal/domain/wallet"
	"auction-settlement-service/internal/ports/outbound"

	"github.com/shopspring/decimal"
)

// OperatorFunded pays the seller out of the custodial operator account.
// Collection of the buyer's funds happens outside this service.
type OperatorFunded struct{}

func (OperatorFunded) Name() string { return "operator_funded" }

func (OperatorFunded) PaymentLegs(_ context.Context, req outbound.TransferRequest, operator wallet.AccountID) ([]outbound.HbarLeg, error) {
	if operator.IsZero() {
		return nil, fmt.Errorf("operator account is required")
	}
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("payment amount must be positive, got %s", req.Amount)
	}
	return []outbound.HbarLeg{
		{Account: operator, Amount: req.Amount.Neg()},
		{Account: req.Seller, Amount: req.Amount},
	}, nil
}

// balanced reports whether the payment legs net to zero
func balanced(legs []outbound.HbarLeg) bool {
	sum := decimal.Zero
	for _, leg := range legs {
		sum = sum.Add(leg.Amount)
	}
	return sum.IsZero()
}
