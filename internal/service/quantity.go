package service

// QuantizeQuantity maps an upstream stock level onto the quantity the
// shop actually lists. The tiers are the shop's long-standing policy
// table, kept verbatim even though neighbouring tiers collapse to the
// same value: well-stocked SKUs list 100, thin stock lists zero so the
// item shows as sold out rather than overselling.
func QuantizeQuantity(amountOnSale int) int {
	switch {
	case amountOnSale >= 1000:
		return 100
	case amountOnSale >= 500:
		return 100
	case amountOnSale >= 50:
		return 0
	default:
		return 0
	}
}
