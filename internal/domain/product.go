package domain

import (
	"context"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/go-playground/validator/v10"
)

// validatorInstance is a package-level validator instance.
// Using a single instance is more efficient as it caches struct information.
var validatorInstance = validator.New()

func init() {
	_ = validatorInstance.RegisterValidation("producttype", validateProductType)
	_ = validatorInstance.RegisterValidation("finite", validateFinite)
}

// ProductTypes is the fixed catalog of product types offered on the seller form.
var ProductTypes = []string{
	"Deck",
	"Wheels",
	"Trucks",
	"Bearings",
	"T-shirt",
	"Hoodie",
	"Pants",
	"Sneakers",
	"Cap",
	"Backpack",
	"Other",
}

func validateProductType(fl validator.FieldLevel) bool {
	return slices.Contains(ProductTypes, fl.Field().String())
}

// validateFinite rejects NaN and the infinities, which strconv accepts from
// form input but no store can encode.
func validateFinite(fl validator.FieldLevel) bool {
	f := fl.Field().Float()
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Product is a catalog item. Image holds a displayable data URL when set.
type Product struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Type        string    `json:"type"`
	Quantity    int       `json:"quantity"`
	Description string    `json:"description"`
	Price       float64   `json:"price"`
	Image       *string   `json:"image,omitempty"`
	Published   bool      `json:"published"`
	CreatedAt   time.Time `json:"created_at"`
	SellerID    string    `json:"seller_id"`
}

// NewProduct is the input accepted from the seller form.
type NewProduct struct {
	Name        string  `form:"name" validate:"required,min=3"`
	Type        string  `form:"type" validate:"required,producttype"`
	Quantity    int     `form:"quantity" validate:"gte=0"`
	Description string  `form:"description" validate:"required,min=10"`
	Price       float64 `form:"price" validate:"finite,gte=0"`
	Published   bool    `form:"published"`
}

// Validate runs the tag based checks on the input.
func (p *NewProduct) Validate() error {
	if err := validatorInstance.Struct(p); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidProduct, err)
	}
	return nil
}

// Availability levels returned by Product.Availability.
const (
	AvailabilityOut       = "out"
	AvailabilityLow       = "low"
	AvailabilityAvailable = "available"
)

// lowStockThreshold is the quantity below which stock is reported as low.
const lowStockThreshold = 5

// Availability returns the stock level and its label.
func (p *Product) Availability() (level, label string) {
	switch {
	case p.Quantity <= 0:
		return AvailabilityOut, "Sold out"
	case p.Quantity < lowStockThreshold:
		return AvailabilityLow, fmt.Sprintf("Few left (%d)", p.Quantity)
	default:
		return AvailabilityAvailable, fmt.Sprintf("In stock (%d units)", p.Quantity)
	}
}

// ProductRepository is the contract for the `products` collection.
type ProductRepository interface {
	// Create inserts the product, assigning ID and CreatedAt.
	Create(ctx context.Context, product *Product) (*Product, error)

	// ListPublished returns published products, newest first.
	ListPublished(ctx context.Context) ([]Product, error)

	// FindPublishedByID returns ErrNotFound for unknown or unpublished ids.
	FindPublishedByID(ctx context.Context, id int64) (*Product, error)

	// Sample returns up to limit products regardless of publication, for diagnostics.
	Sample(ctx context.Context, limit int) ([]Product, error)
}
