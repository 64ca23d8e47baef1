// Package postgres stores profiles and products in PostgreSQL through a
// pgx connection pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nfrund/storefront/internal/domain"
)

// uniqueViolation is the SQLSTATE for duplicate keys.
const uniqueViolation = "23505"

const migrations = `
CREATE TABLE IF NOT EXISTS profiles (
	id         TEXT PRIMARY KEY,
	name       TEXT,
	role       TEXT NOT NULL CHECK (role IN ('user', 'admin')),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS products (
	id          BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	name        TEXT NOT NULL,
	type        TEXT NOT NULL,
	quantity    INTEGER NOT NULL CHECK (quantity >= 0),
	description TEXT NOT NULL,
	price       DOUBLE PRECISION NOT NULL CHECK (price >= 0),
	image       TEXT,
	published   BOOLEAN NOT NULL DEFAULT false,
	seller_id   TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS products_published_created_at ON products (published, created_at DESC);
`

// Connect opens a pool and checks that the server answers.
func Connect(ctx context.Context, dbURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// Migrate creates the tables when they do not exist.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, migrations); err != nil {
		return fmt.Errorf("failed to execute migrations: %w", err)
	}
	slog.InfoContext(ctx, "Postgres migrations applied")
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

var (
	_ domain.ProfileRepository = (*ProfileStore)(nil)
	_ domain.ProductRepository = (*ProductStore)(nil)
)

// ProfileStore implements domain.ProfileRepository on the profiles table.
type ProfileStore struct {
	pool *pgxpool.Pool
}

// NewProfileStore creates a profile store.
func NewProfileStore(pool *pgxpool.Pool) *ProfileStore {
	return &ProfileStore{pool: pool}
}

// FindByID implements domain.ProfileRepository.
func (s *ProfileStore) FindByID(ctx context.Context, id string) (*domain.Profile, error) {
	var (
		p    domain.Profile
		role string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, role, created_at FROM profiles WHERE id = $1`, id,
	).Scan(&p.ID, &p.Name, &role, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	if p.Role, err = domain.ParseRole(role); err != nil {
		return nil, err
	}
	return &p, nil
}

// Create implements domain.ProfileRepository.
func (s *ProfileStore) Create(ctx context.Context, profile *domain.Profile) error {
	if !profile.Role.Valid() {
		return domain.ErrInvalidRole
	}
	createdAt := profile.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO profiles (id, name, role, created_at) VALUES ($1, $2, $3, $4)`,
		profile.ID, profile.Name, profile.Role.String(), createdAt)
	if isUniqueViolation(err) {
		return domain.ErrUserAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}
	return nil
}

// UpdateRole implements domain.ProfileRepository.
func (s *ProfileStore) UpdateRole(ctx context.Context, id string, role domain.Role) error {
	if !role.Valid() {
		return domain.ErrInvalidRole
	}
	tag, err := s.pool.Exec(ctx, `UPDATE profiles SET role = $2 WHERE id = $1`, id, role.String())
	if err != nil {
		return fmt.Errorf("failed to update profile role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ProductStore implements domain.ProductRepository on the products table.
type ProductStore struct {
	pool *pgxpool.Pool
}

// NewProductStore creates a product store.
func NewProductStore(pool *pgxpool.Pool) *ProductStore {
	return &ProductStore{pool: pool}
}

const productColumns = `id, name, type, quantity, description, price, image, published, seller_id, created_at`

func scanProduct(row pgx.Row) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.Name, &p.Type, &p.Quantity, &p.Description, &p.Price,
		&p.Image, &p.Published, &p.SellerID, &p.CreatedAt)
	return p, err
}

// Create implements domain.ProductRepository.
func (s *ProductStore) Create(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	createdAt := product.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO products (name, type, quantity, description, price, image, published, seller_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+productColumns,
		product.Name, product.Type, product.Quantity, product.Description, product.Price,
		product.Image, product.Published, product.SellerID, createdAt)
	p, err := scanProduct(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}
	return &p, nil
}

// ListPublished implements domain.ProductRepository.
func (s *ProductStore) ListPublished(ctx context.Context) ([]domain.Product, error) {
	return s.list(ctx, `SELECT `+productColumns+` FROM products WHERE published ORDER BY created_at DESC, id DESC`)
}

// FindPublishedByID implements domain.ProductRepository.
func (s *ProductStore) FindPublishedByID(ctx context.Context, id int64) (*domain.Product, error) {
	p, err := scanProduct(s.pool.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1 AND published`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return &p, nil
}

// Sample implements domain.ProductRepository.
func (s *ProductStore) Sample(ctx context.Context, limit int) ([]domain.Product, error) {
	return s.list(ctx, `SELECT `+productColumns+` FROM products ORDER BY created_at DESC, id DESC LIMIT $1`, limit)
}

func (s *ProductStore) list(ctx context.Context, query string, args ...any) ([]domain.Product, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	products, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Product, error) {
		return scanProduct(row)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan products: %w", err)
	}
	return products, nil
}
