package services

// CartLine is one line of the customer's cart with the server-resolved unit
// price at checkout time. Transient input, never persisted.
type CartLine struct {
	ProductID string
	Quantity  int
	UnitPrice float64
}

// MerchantGroup is the subset of a cart belonging to one merchant, together
// with its allocated share of the checkout-level shipping and tax.
type MerchantGroup struct {
	MerchantID string
	Lines      []CartLine
	Shipping   float64
	Tax        float64
}

// Subtotal sums UnitPrice * Quantity over the group's lines.
func (g *MerchantGroup) Subtotal() float64 {
	var sum float64
	for _, line := range g.Lines {
		sum += line.UnitPrice * float64(line.Quantity)
	}
	return round2(sum)
}

// TotalQuantity sums the quantity over the group's lines.
func (g *MerchantGroup) TotalQuantity() int {
	var sum int
	for _, line := range g.Lines {
		sum += line.Quantity
	}
	return sum
}

// SplitCart groups cart lines by owning merchant (resolved via the
// productMerchant map) and apportions the checkout-level shipping fee and tax
// across the groups, weighted by line count. Groups keep the order in which
// their merchant first appears in the cart.
//
// Weighting is by line count, not quantity or value: a group with 2 of 3
// cart lines carries 2/3 of shipping and tax. The rounding remainder lands on
// the last group so the allocations always sum exactly to the submitted
// totals.
func SplitCart(lines []CartLine, productMerchant map[string]string, shippingTotal, taxTotal float64) []MerchantGroup {
	var order []string
	grouped := make(map[string][]CartLine)
	for _, line := range lines {
		merchantID := productMerchant[line.ProductID]
		if _, seen := grouped[merchantID]; !seen {
			order = append(order, merchantID)
		}
		grouped[merchantID] = append(grouped[merchantID], line)
	}

	totalLines := len(lines)
	groups := make([]MerchantGroup, 0, len(order))
	var shippingUsed, taxUsed float64
	for i, merchantID := range order {
		group := MerchantGroup{
			MerchantID: merchantID,
			Lines:      grouped[merchantID],
		}
		if i == len(order)-1 {
			// Last group absorbs the rounding residue.
			group.Shipping = round2(shippingTotal - shippingUsed)
			group.Tax = round2(taxTotal - taxUsed)
		} else {
			weight := float64(len(group.Lines)) / float64(totalLines)
			group.Shipping = round2(shippingTotal * weight)
			group.Tax = round2(taxTotal * weight)
			shippingUsed += group.Shipping
			taxUsed += group.Tax
		}
		groups = append(groups, group)
	}
	return groups
}
