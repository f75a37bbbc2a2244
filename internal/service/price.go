package service

import (
	"github.com/shopspring/decimal"

	"github.com/utafrali/RelistGo/internal/domain"
)

// purchaseMarkup covers upstream commission and payment fees on the
// unit price.
var purchaseMarkup = decimal.NewFromFloat(1.05)

var (
	hundred = decimal.NewFromInt(100)
	ten     = decimal.NewFromInt(10)
)

// ComputePrice derives the Rakuten sale price in JPY for one SKU from
// its CNY unit price, the parcel weight and the pricing settings. The
// result is a stringified non-negative integer rounded to the nearest
// 10 yen. A missing weight makes landed cost incomputable, so the
// price is "0"; callers log those.
func ComputePrice(unitCNY decimal.Decimal, weightKg float64, size *int, settings domain.PricingSettings) string {
	if weightKg <= 0 {
		return "0"
	}

	fx := decimal.NewFromFloat(settings.ExchangeRate)
	unitCost := unitCNY.Mul(fx).Mul(purchaseMarkup)
	intlShipping := decimal.NewFromFloat(settings.InternationalShippingRate).
		Mul(decimal.NewFromFloat(weightKg)).
		Mul(fx)
	domesticShipping := decimal.NewFromFloat(settings.DomesticShippingCosts.ForSize(size))
	cost := unitCost.Add(intlShipping).Add(domesticShipping)

	denom := hundred.Sub(decimal.NewFromFloat(settings.ProfitMarginPercent + settings.SalesCommissionPercent))
	if denom.LessThanOrEqual(decimal.Zero) {
		denom = decimal.NewFromInt(1)
	}

	price := cost.Mul(hundred).Div(denom).Div(ten).Round(0).Mul(ten)
	if price.IsNegative() {
		return "0"
	}
	return price.String()
}
