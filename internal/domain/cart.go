package domain

import "github.com/shopspring/decimal"

type Coupon struct {
	Code          string          `json:"code"`
	DiscountType  string          `json:"discountType,omitempty"`
	DiscountValue decimal.Decimal `json:"discountValue"`
}

type CartLine struct {
	ID        string          `json:"id"`
	Product   ProductRef      `json:"product"`
	VariantID string          `json:"variantId,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type Cart struct {
	Items      []CartLine      `json:"items"`
	TotalItems int             `json:"totalItems"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	Discount   decimal.Decimal `json:"discount"`
	Total      decimal.Decimal `json:"total"`
	Coupon     *Coupon         `json:"coupon,omitempty"`
}

// LineID is the composite key of a product and an optional variant.
func LineID(productID, variantID string) string {
	if variantID == "" {
		return productID
	}
	return productID + ":" + variantID
}

func NewCartLine(product ProductRef, variantID string, quantity int) CartLine {
	line := CartLine{
		ID:        LineID(product.ID, variantID),
		Product:   product,
		VariantID: variantID,
		Quantity:  quantity,
		UnitPrice: product.Price,
	}
	line.Recalculate()
	return line
}

func (l *CartLine) Recalculate() {
	l.Subtotal = l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Recalculate rebuilds every derived field from the lines. Totals are never patched
// incrementally.
func (c *Cart) Recalculate() {
	c.TotalItems = 0
	c.Subtotal = decimal.Zero
	for i := range c.Items {
		c.Items[i].Recalculate()
		c.TotalItems += c.Items[i].Quantity
		c.Subtotal = c.Subtotal.Add(c.Items[i].Subtotal)
	}
	c.Total = c.Subtotal.Sub(c.Discount)
}

func (c Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

func (c *Cart) FindLine(lineID string) int {
	for i := range c.Items {
		if c.Items[i].ID == lineID {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy so drafts never alias the committed cart.
func (c Cart) Clone() Cart {
	out := c
	if c.Items != nil {
		out.Items = make([]CartLine, len(c.Items))
		copy(out.Items, c.Items)
	}
	if c.Coupon != nil {
		cp := *c.Coupon
		out.Coupon = &cp
	}
	return out
}

func EmptyCart() Cart {
	return Cart{
		Items:    []CartLine{},
		Subtotal: decimal.Zero,
		Discount: decimal.Zero,
		Total:    decimal.Zero,
	}
}
