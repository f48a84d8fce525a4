package integration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestShouldRefresh(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	future := float64(now.Add(48 * time.Hour).UnixMilli())
	past := float64(now.Add(-48 * time.Hour).UnixMilli())

	inPromo := PublishedState{Found: true, Attributes: Record{
		"price1": "20.00", "rsrvDec1": "15.00", "saleMode": "01", "promoDateTo": future,
	}}
	normal := PublishedState{Found: true, Attributes: Record{
		"price1": "20.00", "saleMode": "00",
	}}
	expiredPromo := PublishedState{Found: true, Attributes: Record{
		"price1": 20.0, "rsrvDec1": "15.00", "saleMode": "01", "promoDateTo": past,
	}}

	tests := []struct {
		name   string
		state  PublishedState
		signal PriceSignal
		want   bool
	}{
		{"not found always refreshes", PublishedState{}, PriceSignal{Price: "20.00", PromoPrice: "0", SaleMode: "-1"}, true},
		{"not found refreshes with no signal", PublishedState{}, PriceSignal{Price: "0", PromoPrice: "0", SaleMode: "-1"}, true},
		{"promo discount changed", inPromo, PriceSignal{Price: "0", PromoPrice: "14.00", SaleMode: "01"}, true},
		{"promo discount equal numerically", inPromo, PriceSignal{Price: "0", PromoPrice: "15", SaleMode: "01"}, false},
		{"promo discount zero is ignored", inPromo, PriceSignal{Price: "0", PromoPrice: "0", SaleMode: "01"}, false},
		{"promo ending via sale mode", inPromo, PriceSignal{Price: "0", PromoPrice: "0", SaleMode: "00"}, true},
		{"promo price change ignored in promo", inPromo, PriceSignal{Price: "25.00", PromoPrice: "0", SaleMode: "-1"}, false},
		{"normal price changed", normal, PriceSignal{Price: "21.00", PromoPrice: "0", SaleMode: "-1"}, true},
		{"normal price equal", normal, PriceSignal{Price: "20", PromoPrice: "0", SaleMode: "-1"}, false},
		{"normal entering promo", normal, PriceSignal{Price: "0", PromoPrice: "15.00", SaleMode: "01"}, true},
		{"normal sale mode 00 no change", normal, PriceSignal{Price: "0", PromoPrice: "0", SaleMode: "00"}, false},
		{"expired promo treated as normal", expiredPromo, PriceSignal{Price: "20.0", PromoPrice: "0", SaleMode: "-1"}, false},
		{"expired promo price change", expiredPromo, PriceSignal{Price: "19.5", PromoPrice: "0", SaleMode: "-1"}, true},
		{"missing published price refreshes", PublishedState{Found: true, Attributes: Record{}}, PriceSignal{Price: "5", PromoPrice: "0", SaleMode: "-1"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShouldRefresh(tt.state, tt.signal, now))
		})
	}
}

func TestPublishedState_InActivePromotion(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(time.Hour).UnixMilli()

	assert.False(t, PublishedState{}.InActivePromotion(now))
	assert.False(t, PublishedState{Found: true, Attributes: Record{"saleMode": "01"}}.InActivePromotion(now))
	assert.False(t, PublishedState{Found: true, Attributes: Record{"promoDateTo": future, "saleMode": "00"}}.InActivePromotion(now))
	assert.True(t, PublishedState{Found: true, Attributes: Record{"promoDateTo": future, "saleMode": "02"}}.InActivePromotion(now))
	assert.True(t, PublishedState{Found: true, Attributes: Record{"promoDateTo": future}}.InActivePromotion(now))
}
