package utils

import (
	"fmt"
	"math"
)

// Round2 rounds x to 2 decimal places (banking-style simple round).
func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}

// CentsToAmount converts integer minor units to a major-unit amount rounded
// to 2 decimal places, the shape the payment processor expects.
func CentsToAmount(cents int64) float64 {
	return Round2(float64(cents) / 100)
}

// NormalizeChargeCents lifts an amount to the processor's minimum charge.
func NormalizeChargeCents(cents, minCents int64) int64 {
	if cents < minCents {
		return minCents
	}
	return cents
}

// FormatBRL renders minor units as a user-facing BRL amount.
func FormatBRL(cents int64) string {
	return fmt.Sprintf("R$ %.2f", float64(cents)/100)
}
