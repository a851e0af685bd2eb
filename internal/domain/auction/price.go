package auction

import (
	"github.com/davidleathers/dutch-auction-exchange/internal/domain/errors"
	"github.com/davidleathers/dutch-auction-exchange/internal/domain/values"
)

// CurrentPrice returns the asking price of a at now:
//
//	price = start - floor((start - end) * elapsed / duration)
//
// with elapsed clamped to [0, duration]. The product is taken before the
// division so the price lands on EndingPrice exactly at the end. It does not
// look at Active; callers decide whether the auction is purchasable.
func CurrentPrice(a *Auction, now uint64) values.Amount {
	if !a.StartingPrice.GreaterThan(a.EndingPrice) {
		return a.StartingPrice
	}
	if a.Duration == 0 {
		return a.EndingPrice
	}

	var elapsed uint64
	if now > a.StartAt {
		elapsed = now - a.StartAt
	}
	if elapsed > a.Duration {
		elapsed = a.Duration
	}

	span, _ := a.StartingPrice.Sub(a.EndingPrice)
	drop, _ := span.MulUint64(elapsed).QuoUint64(a.Duration)
	price, _ := a.StartingPrice.Sub(drop)
	return price
}

// Breakdown is the split of a sale.
type Breakdown struct {
	Price          values.Amount `json:"price"`
	FeePaid        values.Amount `json:"fee_paid"`
	SellerProceeds values.Amount `json:"seller_proceeds"`
	Refund         values.Amount `json:"refund"`
}

// PlatformFee returns floor(price * bps / 10000).
func PlatformFee(price values.Amount, bps uint64) values.Amount {
	fee, _ := price.MulUint64(bps).QuoUint64(BpsDenominator)
	return fee
}

// Split computes the fee, the seller's share and the refund for a payment of
// paid against price. It fails with InsufficientPayment when paid < price.
func Split(price, paid values.Amount, bps uint64) (Breakdown, error) {
	if paid.LessThan(price) {
		return Breakdown{}, errors.InsufficientPayment(price.String(), paid.String())
	}
	if bps > BpsDenominator {
		return Breakdown{}, errors.ErrInvalidFeePercentage
	}

	fee := PlatformFee(price, bps)
	proceeds, _ := price.Sub(fee)
	refund, _ := paid.Sub(price)

	return Breakdown{
		Price:          price,
		FeePaid:        fee,
		SellerProceeds: proceeds,
		Refund:         refund,
	}, nil
}

// ValidateFee checks a platform fee rate against MaxFeeBps.
func ValidateFee(bps uint64) error {
	if bps > MaxFeeBps {
		return errors.ErrInvalidFeePercentage.WithDetails(map[string]interface{}{
			"fee_bps": bps,
			"max":     MaxFeeBps,
		})
	}
	return nil
}
