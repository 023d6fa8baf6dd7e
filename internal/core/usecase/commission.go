package usecase

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// moneyPlaces is the scale of every stored amount and rate.
const moneyPlaces = 2

var (
	hundred = decimal.NewFromInt(100)

	// Exclusive upper bounds set by the storage columns: prices are
	// NUMERIC(10,2), balances and ledger amounts NUMERIC(15,2).
	maxPrice   = decimal.New(1, 8)
	maxBalance = decimal.New(1, 13)
)

// CalculateCommission returns price * rate / 100 rounded to cents, half-up.
// Inputs are non-negative, so decimal.Round (half away from zero) is half-up.
func CalculateCommission(price, rate decimal.Decimal) (decimal.Decimal, error) {
	if !price.IsPositive() || !hasMaxPlaces(price) {
		return decimal.Zero, fmt.Errorf("%w: price %s", ErrInvalidAmount, price)
	}
	if err := validateRate(rate); err != nil {
		return decimal.Zero, err
	}
	return price.Mul(rate).Div(hundred).Round(moneyPlaces), nil
}

// CalculateCommissions computes one commission per rate. Commissions are
// independent: their sum is not capped at the price.
func CalculateCommissions(price decimal.Decimal, rates []decimal.Decimal) ([]decimal.Decimal, error) {
	out := make([]decimal.Decimal, len(rates))
	for i, rate := range rates {
		c, err := CalculateCommission(price, rate)
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}

func validateRate(rate decimal.Decimal) error {
	if rate.IsNegative() || rate.GreaterThan(hundred) || !hasMaxPlaces(rate) {
		return fmt.Errorf("%w: %s", ErrInvalidCommissionRate, rate)
	}
	return nil
}

func hasMaxPlaces(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(moneyPlaces))
}

func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() || !hasMaxPlaces(amount) || amount.GreaterThanOrEqual(maxBalance) {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, amount)
	}
	return nil
}

// checkBalanceLimit rejects a credit that would overflow the balance column.
func checkBalanceLimit(balance, credit decimal.Decimal) error {
	if balance.Add(credit).GreaterThanOrEqual(maxBalance) {
		return fmt.Errorf("%w: balance would exceed %s", ErrInvalidAmount, maxBalance)
	}
	return nil
}
