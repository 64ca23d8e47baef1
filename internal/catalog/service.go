// Package catalog holds the product operations behind the seller, home and
// product detail pages.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nfrund/storefront/internal/domain"
	"github.com/nfrund/storefront/internal/imaging"
)

// Service creates and lists products.
type Service struct {
	repo          domain.ProductRepository
	maxImageBytes int64
	now           func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces time.Now for creation timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a catalog service over repo.
func NewService(repo domain.ProductRepository, maxImageBytes int64, opts ...Option) *Service {
	s := &Service{
		repo:          repo,
		maxImageBytes: maxImageBytes,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates in, inlines the optional image and inserts the product
// for sellerID. Products are unpublished unless in says otherwise.
func (s *Service) Create(ctx context.Context, in domain.NewProduct, sellerID string, img *imaging.Upload) (*domain.Product, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	p := &domain.Product{
		Name:        in.Name,
		Type:        in.Type,
		Quantity:    in.Quantity,
		Description: in.Description,
		Price:       in.Price,
		Published:   in.Published,
		CreatedAt:   s.now().UTC(),
		SellerID:    sellerID,
	}

	if img != nil && len(img.Data) > 0 {
		encoded, err := imaging.Encode(img, s.maxImageBytes)
		if err != nil {
			return nil, err
		}
		p.Image = &encoded
	}

	created, err := s.repo.Create(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	slog.InfoContext(ctx, "Product created", "product_id", created.ID, "seller_id", sellerID, "published", created.Published)
	return displayable(created), nil
}

// ListPublished returns the published products, newest first, with images
// ready for display.
func (s *Service) ListPublished(ctx context.Context) ([]domain.Product, error) {
	products, err := s.repo.ListPublished(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	for i := range products {
		displayable(&products[i])
	}
	return products, nil
}

// Get returns a published product or nil when there is none with that id.
func (s *Service) Get(ctx context.Context, id int64) (*domain.Product, error) {
	p, err := s.repo.FindPublishedByID(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get product %d: %w", id, err)
	}
	return displayable(p), nil
}

// ImageReport describes the stored image of one product.
type ImageReport struct {
	ProductID int64
	Name      string
	imaging.Report
}

// Debug reports on the stored images of up to limit products.
func (s *Service) Debug(ctx context.Context, limit int) ([]ImageReport, error) {
	products, err := s.repo.Sample(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("sample products: %w", err)
	}

	reports := make([]ImageReport, 0, len(products))
	for _, p := range products {
		r := ImageReport{ProductID: p.ID, Name: p.Name, Report: imaging.Inspect(p.Image)}
		slog.DebugContext(ctx, "Product image",
			"product_id", p.ID, "has_image", r.Present, "length", r.Length, "valid_prefix", r.ValidPrefix)
		reports = append(reports, r)
	}
	return reports, nil
}

func displayable(p *domain.Product) *domain.Product {
	if p.Image != nil && *p.Image != "" {
		shown := imaging.Display(*p.Image)
		p.Image = &shown
	}
	return p
}
