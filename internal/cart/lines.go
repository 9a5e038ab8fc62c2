package cart

import (
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/shopspring/decimal"
)

// The functions below never modify their input. Totals are rebuilt from the lines
// after every change.

func addLine(c domain.Cart, ref domain.ProductRef, variantID string, quantity int) domain.Cart {
	out := c.Clone()
	if i := out.FindLine(domain.LineID(ref.ID, variantID)); i >= 0 {
		out.Items[i].Quantity += quantity
	} else {
		out.Items = append(out.Items, domain.NewCartLine(ref, variantID, quantity))
	}
	out.Recalculate()
	return out
}

func setQuantity(c domain.Cart, lineID string, quantity int) (domain.Cart, error) {
	if quantity < 1 {
		return removeLine(c, lineID)
	}
	out := c.Clone()
	i := out.FindLine(lineID)
	if i < 0 {
		return c, ErrLineNotFound
	}
	out.Items[i].Quantity = quantity
	out.Recalculate()
	return out, nil
}

func removeLine(c domain.Cart, lineID string) (domain.Cart, error) {
	i := c.FindLine(lineID)
	if i < 0 {
		return c, ErrLineNotFound
	}
	out := c.Clone()
	out.Items = append(out.Items[:i], out.Items[i+1:]...)
	out.Recalculate()
	return out, nil
}

func dropCoupon(c domain.Cart) domain.Cart {
	out := c.Clone()
	out.Coupon = nil
	out.Discount = decimal.Zero
	out.Recalculate()
	return out
}

// normalize fixes up a cart that came from storage or the wire.
func normalize(c domain.Cart) domain.Cart {
	if c.Items == nil {
		c.Items = []domain.CartLine{}
	}
	if c.Discount.IsNegative() {
		c.Discount = decimal.Zero
	}
	c.Recalculate()
	return c
}
