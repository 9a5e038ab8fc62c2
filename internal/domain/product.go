package domain

import "github.com/shopspring/decimal"

type Variant struct {
	ID    string           `json:"id"`
	Name  string           `json:"name"`
	Price *decimal.Decimal `json:"price,omitempty"`
	Stock int              `json:"stock"`
}

type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Slug        string          `json:"slug"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Images      []string        `json:"images,omitempty"`
	Category    string          `json:"category,omitempty"`
	Stock       int             `json:"stock"`
	Featured    bool            `json:"featured,omitempty"`
	Variants    []Variant       `json:"variants,omitempty"`
}

type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// ProductRef is the slice of a product a cart line keeps.
type ProductRef struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Image    string          `json:"image,omitempty"`
	Category string          `json:"category,omitempty"`
}

// Ref builds the cart reference for the product. A variant with its own price
// overrides the product price; an unknown variant id falls back to the product.
func (p Product) Ref(variantID string) ProductRef {
	ref := ProductRef{
		ID:       p.ID,
		Name:     p.Name,
		Price:    p.Price,
		Category: p.Category,
	}
	if len(p.Images) > 0 {
		ref.Image = p.Images[0]
	}
	for _, v := range p.Variants {
		if v.ID == variantID && v.Price != nil {
			ref.Price = *v.Price
			break
		}
	}
	return ref
}

type ProductQuery struct {
	Category string
	Search   string
	Sort     string
	Page     int
	Limit    int
}

type Page struct {
	Page  int `json:"page"`
	Pages int `json:"pages"`
	Total int `json:"total"`
}

type ProductList struct {
	Products   []Product `json:"products"`
	Pagination Page      `json:"pagination"`
}
