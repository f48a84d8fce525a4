package integration

import (
	"time"

	"github.com/shopspring/decimal"
)

// PublishedState is the attribute set the label platform currently shows for a SKU
type PublishedState struct {
	Found      bool
	Attributes Record
}

// PriceSignal carries the incoming values the refresh-by-price rule compares
type PriceSignal struct {
	Price      string
	PromoPrice string
	SaleMode   string
}

// InActivePromotion reports whether the published state is inside a running promotion
func (p PublishedState) InActivePromotion(now time.Time) bool {
	if !p.Found {
		return false
	}
	to, ok := p.Attributes[FieldPromoDateTo]
	if !ok {
		return false
	}
	toMs, ok := ValueInt64(to)
	if !ok || toMs <= now.UnixMilli() {
		return false
	}
	return p.Attributes.StringOr(FieldSaleMode, "") != SaleModeNormal
}

// ShouldRefresh decides whether the label must show the change as new.
// A SKU absent upstream always refreshes.
func ShouldRefresh(state PublishedState, signal PriceSignal, now time.Time) bool {
	if !state.Found {
		return true
	}

	if state.InActivePromotion(now) {
		if !isZeroAmount(signal.PromoPrice) && amountsDiffer(signal.PromoPrice, state.Attributes, FieldPromoPrice) {
			return true
		}
		return signal.SaleMode == SaleModeNormal
	}

	if !isZeroAmount(signal.Price) && amountsDiffer(signal.Price, state.Attributes, FieldPrice) {
		return true
	}
	// Promotion files are only applied once their start has passed, so a
	// sale mode arriving here always switches the label to the promo template.
	return signal.SaleMode != SaleModeNormal && signal.SaleMode != SaleModeNoSignal
}

func isZeroAmount(s string) bool {
	if s == "" {
		return true
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return s == "0"
	}
	return d.IsZero()
}

func amountsDiffer(incoming string, published Record, field string) bool {
	v, ok := published[field]
	if !ok {
		return true
	}
	current, ok := ValueString(v)
	if !ok {
		return true
	}
	a, errA := decimal.NewFromString(incoming)
	b, errB := decimal.NewFromString(current)
	if errA != nil || errB != nil {
		return incoming != current
	}
	return !a.Equal(b)
}
