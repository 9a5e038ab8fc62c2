package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// IsTerminal reports whether the order can no longer change.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

func (s OrderStatus) String() string {
	return string(s)
}

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"
)

type Address struct {
	FullName   string `json:"fullName"`
	Phone      string `json:"phone"`
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state"`
	Country    string `json:"country,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
}

// Complete reports whether every field needed for delivery is set.
func (a Address) Complete() bool {
	return a.FullName != "" && a.Phone != "" && a.Street != "" && a.City != "" && a.State != ""
}

type ShippingMethod struct {
	ID                    string           `json:"id"`
	Name                  string           `json:"name"`
	Description           string           `json:"description,omitempty"`
	Price                 decimal.Decimal  `json:"price"`
	FreeShippingThreshold *decimal.Decimal `json:"freeShippingThreshold,omitempty"`
}

type PaymentMethod struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Description string `json:"description,omitempty"`
}

type OrderItem struct {
	ProductID string          `json:"productId"`
	VariantID string          `json:"variantId,omitempty"`
	Name      string          `json:"name"`
	Image     string          `json:"image,omitempty"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type Order struct {
	ID              string          `json:"id"`
	OrderNumber     string          `json:"orderNumber"`
	Items           []OrderItem     `json:"items"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	ShippingFee     decimal.Decimal `json:"shippingFee"`
	TaxAmount       decimal.Decimal `json:"taxAmount"`
	Discount        decimal.Decimal `json:"discount"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	ShippingAddress Address         `json:"shippingAddress"`
	ShippingMethod  string          `json:"shippingMethod,omitempty"`
	PaymentMethod   string          `json:"paymentMethod,omitempty"`
	PaymentStatus   PaymentStatus   `json:"paymentStatus,omitempty"`
	Status          OrderStatus     `json:"status"`
	CreatedAt       time.Time       `json:"createdAt"`
}

// OrderRequest is what the storefront submits to create an order.
type OrderRequest struct {
	Items           []OrderItem `json:"items"`
	ShippingAddress Address     `json:"shippingAddress"`
	ShippingMethod  string      `json:"shippingMethod"`
	PaymentMethod   string      `json:"paymentMethod"`
	CouponCode      string      `json:"couponCode,omitempty"`
	Notes           string      `json:"notes,omitempty"`
}

// OrderItemsFromCart projects cart lines onto order items.
func OrderItemsFromCart(c Cart) []OrderItem {
	items := make([]OrderItem, 0, len(c.Items))
	for _, l := range c.Items {
		items = append(items, OrderItem{
			ProductID: l.Product.ID,
			VariantID: l.VariantID,
			Name:      l.Product.Name,
			Image:     l.Product.Image,
			Quantity:  l.Quantity,
			Price:     l.UnitPrice,
		})
	}
	return items
}

type PaymentInit struct {
	AuthorizationURL string `json:"authorizationUrl"`
	Reference        string `json:"reference"`
}

type TrackingEvent struct {
	Status    OrderStatus `json:"status"`
	Note      string      `json:"note,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

type OrderTracking struct {
	OrderNumber    string          `json:"orderNumber"`
	Status         OrderStatus     `json:"status"`
	TrackingNumber string          `json:"trackingNumber,omitempty"`
	Carrier        string          `json:"carrier,omitempty"`
	History        []TrackingEvent `json:"history"`
}

type Customer struct {
	User
	OrderCount int             `json:"orderCount"`
	TotalSpent decimal.Decimal `json:"totalSpent"`
	CreatedAt  time.Time       `json:"createdAt"`
}
