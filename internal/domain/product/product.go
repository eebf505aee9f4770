package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product is a read-only snapshot of a catalog item. The external catalog
// owns it; nothing in this module mutates the upstream record.
type Product struct {
	ID                 int
	Title              string
	Description        string
	Price              decimal.Decimal
	DiscountPercentage decimal.Decimal
	Rating             float64
	Stock              int
	Brand              string
	Category           string
	Thumbnail          string
	Images             []string

	// Optional attributes. Zero values mean the catalog did not send them.
	Weight               float64
	Dimensions           *Dimensions
	WarrantyInformation  string
	ShippingInformation  string
	AvailabilityStatus   string
	ReturnPolicy         string
	MinimumOrderQuantity int
	Tags                 []string
	SKU                  string
	Reviews              []Review
}

// Dimensions holds the physical size of a product.
type Dimensions struct {
	Width  float64
	Height float64
	Depth  float64
}

// Review is a customer review attached to a product.
type Review struct {
	Rating        int
	Comment       string
	Date          string
	ReviewerName  string
	ReviewerEmail string
}

// Page is one slice of a product listing as returned by the catalog.
type Page struct {
	Products []Product
	Total    int
	Skip     int
	Limit    int
}

// Repository defines read operations against the product catalog.
type Repository interface {
	List(ctx context.Context, limit, skip int) (*Page, error)
	GetByID(ctx context.Context, id int) (*Product, error)
	ListByCategory(ctx context.Context, category string, limit int) (*Page, error)
	Search(ctx context.Context, query string) (*Page, error)
}
