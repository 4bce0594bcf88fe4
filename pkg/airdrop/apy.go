package airdrop

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

const year = 365 * 24 * time.Hour

// APY annualises dropped/averageTotal over the period and returns a percentage rounded to
// four decimals. It returns 0 when the period or the average total is not positive.
func APY(dropped, averageTotal *big.Int, period time.Duration) float64 {
	if period <= 0 || averageTotal == nil || averageTotal.Sign() <= 0 || dropped == nil {
		return 0
	}
	rate := decimal.NewFromBigInt(dropped, 0).Div(decimal.NewFromBigInt(averageTotal, 0))
	periods := decimal.NewFromInt(int64(year)).Div(decimal.NewFromInt(int64(period)))
	return rate.Mul(periods).Mul(decimal.NewFromInt(100)).Round(4).InexactFloat64()
}
