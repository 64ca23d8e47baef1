package memstore

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/nfrund/storefront/internal/domain"
)

var (
	_ domain.ProfileRepository = (*ProfileStore)(nil)
	_ domain.ProductRepository = (*ProductStore)(nil)
)

// ProfileStore is the `profiles` table in memory.
type ProfileStore struct {
	mu       sync.RWMutex
	profiles map[string]domain.Profile
}

// NewProfileStore creates an empty profile table.
func NewProfileStore() *ProfileStore {
	return &ProfileStore{profiles: make(map[string]domain.Profile)}
}

// FindByID implements domain.ProfileRepository.
func (s *ProfileStore) FindByID(_ context.Context, id string) (*domain.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

// Len returns the number of stored profiles.
func (s *ProfileStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.profiles)
}

// Create implements domain.ProfileRepository.
func (s *ProfileStore) Create(_ context.Context, profile *domain.Profile) error {
	if !profile.Role.Valid() {
		return fmt.Errorf("create profile %s: %w", profile.ID, domain.ErrInvalidRole)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.profiles[profile.ID]; exists {
		return domain.ErrUserAlreadyExists
	}
	p := *profile
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	s.profiles[p.ID] = p
	return nil
}

// UpdateRole implements domain.ProfileRepository.
func (s *ProfileStore) UpdateRole(_ context.Context, id string, role domain.Role) error {
	if !role.Valid() {
		return domain.ErrInvalidRole
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.Role = role
	s.profiles[id] = p
	return nil
}

// ProductStore is the `products` table in memory. IDs come from a
// snowflake node so they increase with creation time.
type ProductStore struct {
	node *snowflake.Node

	mu       sync.RWMutex
	products map[int64]domain.Product
}

// NewProductStore creates an empty product table.
func NewProductStore(node *snowflake.Node) *ProductStore {
	return &ProductStore{
		node:     node,
		products: make(map[int64]domain.Product),
	}
}

// Create implements domain.ProductRepository.
func (s *ProductStore) Create(_ context.Context, product *domain.Product) (*domain.Product, error) {
	p := *product
	p.ID = s.node.Generate().Int64()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	s.products[p.ID] = p
	s.mu.Unlock()
	return &p, nil
}

// ListPublished implements domain.ProductRepository.
func (s *ProductStore) ListPublished(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	out := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if p.Published {
			out = append(out, p)
		}
	}
	s.mu.RUnlock()

	sortNewestFirst(out)
	return out, nil
}

// FindPublishedByID implements domain.ProductRepository.
func (s *ProductStore) FindPublishedByID(_ context.Context, id int64) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok || !p.Published {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

// Sample implements domain.ProductRepository.
func (s *ProductStore) Sample(_ context.Context, limit int) ([]domain.Product, error) {
	s.mu.RLock()
	out := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	s.mu.RUnlock()

	sortNewestFirst(out)
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func sortNewestFirst(products []domain.Product) {
	slices.SortFunc(products, func(a, b domain.Product) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		switch {
		case a.ID > b.ID:
			return -1
		case a.ID < b.ID:
			return 1
		}
		return 0
	})
}
