package services

import "math"

// round2 rounds a currency amount to two decimal places.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Commission computes the platform commission and the merchant payout for one
// order. The merchant owes a fixed currency amount per unit sold, so the
// commission scales with the summed quantity across all lines of the order,
// not with price or distinct products. Pure function, no I/O.
func Commission(commissionPerUnit float64, totalQuantity int, orderTotal float64) (commissionAmount, payout float64) {
	commissionAmount = round2(commissionPerUnit * float64(totalQuantity))
	payout = round2(orderTotal - commissionAmount)
	return commissionAmount, payout
}
