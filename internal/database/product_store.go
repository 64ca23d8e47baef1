package database

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/nfrund/storefront/internal/domain"
	"github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/pkg/models"
)

var _ domain.ProductRepository = (*ProductStore)(nil)

type productRecord struct {
	ID          *models.RecordID       `json:"id,omitempty"`
	ProductID   int64                  `json:"product_id"`
	Name        string                 `json:"name"`
	Type        string                 `json:"type"`
	Quantity    int                    `json:"quantity"`
	Description string                 `json:"description"`
	Price       float64                `json:"price"`
	Image       *string                `json:"image,omitempty"`
	Published   bool                   `json:"published"`
	SellerID    string                 `json:"seller_id"`
	CreatedAt   *models.CustomDateTime `json:"created_at,omitempty"`
}

func (r *productRecord) toDomain() domain.Product {
	p := domain.Product{
		ID:          r.ProductID,
		Name:        r.Name,
		Type:        r.Type,
		Quantity:    r.Quantity,
		Description: r.Description,
		Price:       r.Price,
		Image:       r.Image,
		Published:   r.Published,
		SellerID:    r.SellerID,
	}
	if r.CreatedAt != nil {
		p.CreatedAt = r.CreatedAt.Time
	}
	return p
}

const productFields = "product_id, name, type, quantity, description, price, image, published, seller_id, created_at"

// ProductStore implements domain.ProductRepository on the `products` table.
// Numeric ids come from a snowflake node and double as record keys.
type ProductStore struct {
	conn DBConnection
	node *snowflake.Node
}

// NewProductStore creates a product store on a root connection.
func NewProductStore(conn DBConnection, node *snowflake.Node) *ProductStore {
	return &ProductStore{conn: conn, node: node}
}

// Create implements domain.ProductRepository.
func (s *ProductStore) Create(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	ctx, cancel := withTimeout(ctx, s.conn.GetDBExecuteTimeout(), executeTimeoutKey)
	defer cancel()

	p := *product
	p.ID = s.node.Generate().Int64()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	data := map[string]any{
		"product_id":  p.ID,
		"name":        p.Name,
		"type":        p.Type,
		"quantity":    p.Quantity,
		"description": p.Description,
		"price":       p.Price,
		"published":   p.Published,
		"seller_id":   p.SellerID,
		"created_at":  models.CustomDateTime{Time: p.CreatedAt},
	}
	if p.Image != nil {
		data["image"] = *p.Image
	}

	err := s.conn.WithConnection(ctx, func(db *surrealdb.DB) error {
		return Execute(ctx, db, `CREATE type::thing("products", $product_id) CONTENT $data`, map[string]any{
			"product_id": p.ID,
			"data":       data,
		})
	})
	if err != nil {
		return nil, WrapError(err, "create product")
	}
	return &p, nil
}

// ListPublished implements domain.ProductRepository.
func (s *ProductStore) ListPublished(ctx context.Context) ([]domain.Product, error) {
	return s.list(ctx,
		"SELECT "+productFields+" FROM products WHERE published = true ORDER BY created_at DESC, product_id DESC",
		nil)
}

// FindPublishedByID implements domain.ProductRepository.
func (s *ProductStore) FindPublishedByID(ctx context.Context, id int64) (*domain.Product, error) {
	products, err := s.list(ctx,
		"SELECT "+productFields+` FROM type::thing("products", $product_id) WHERE published = true`,
		map[string]any{"product_id": id})
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, domain.ErrNotFound
	}
	return &products[0], nil
}

// Sample implements domain.ProductRepository.
func (s *ProductStore) Sample(ctx context.Context, limit int) ([]domain.Product, error) {
	return s.list(ctx,
		"SELECT "+productFields+" FROM products ORDER BY created_at DESC, product_id DESC LIMIT $limit",
		map[string]any{"limit": limit})
}

func (s *ProductStore) list(ctx context.Context, query string, params map[string]any) ([]domain.Product, error) {
	ctx, cancel := withTimeout(ctx, s.conn.GetDBQueryTimeout(), queryTimeoutKey)
	defer cancel()

	var records []productRecord
	err := s.conn.WithConnection(ctx, func(db *surrealdb.DB) error {
		var err error
		records, err = Query[productRecord](ctx, db, query, params)
		return err
	})
	if err != nil {
		return nil, WrapError(err, "list products")
	}

	out := make([]domain.Product, 0, len(records))
	for i := range records {
		out = append(out, records[i].toDomain())
	}
	return out, nil
}
