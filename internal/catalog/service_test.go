package catalog

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/nfrund/storefront/internal/domain"
	"github.com/nfrund/storefront/internal/imaging"
	"github.com/nfrund/storefront/internal/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, now *time.Time) (*Service, *memstore.ProductStore) {
	t.Helper()
	node, err := snowflake.NewNode(7)
	require.NoError(t, err)
	repo := memstore.NewProductStore(node)
	return NewService(repo, imaging.DefaultMaxBytes, WithClock(func() time.Time { return *now })), repo
}

func input(name string, published bool) domain.NewProduct {
	return domain.NewProduct{
		Name:        name,
		Type:        "Deck",
		Quantity:    3,
		Description: "A product used in tests",
		Price:       10,
		Published:   published,
	}
}

func TestService_ListPublishedNewestFirst(t *testing.T) {
	ctx := context.Background()
	t1 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Minute)
	now := t2
	svc, _ := newTestService(t, &now)

	_, err := svc.Create(ctx, input("Product A", false), "seller", nil)
	require.NoError(t, err)
	now = t1
	_, err = svc.Create(ctx, input("Product B", true), "seller", nil)
	require.NoError(t, err)
	now = t2
	_, err = svc.Create(ctx, input("Product C", true), "seller", nil)
	require.NoError(t, err)

	list, err := svc.ListPublished(ctx)
	require.NoError(t, err)
	names := make([]string, 0, len(list))
	for _, p := range list {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"Product C", "Product B"}, names)
}

func TestService_CreateDefaultsToUnpublished(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	svc, _ := newTestService(t, &now)

	p, err := svc.Create(ctx, input("Draft deck", false), "seller-1", nil)
	require.NoError(t, err)
	assert.False(t, p.Published)
	assert.Equal(t, "seller-1", p.SellerID)
	assert.Nil(t, p.Image)

	got, err := svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Nil(t, got, "unpublished products are not visible")
}

func TestService_CreateRejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	svc, _ := newTestService(t, &now)

	in := input("Deck", true)
	in.Quantity = -1
	_, err := svc.Create(ctx, in, "seller", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidProduct)

	_, err = svc.Create(ctx, input("Deck", true), "seller", &imaging.Upload{Filename: "a.txt", Data: []byte("hello")})
	assert.ErrorIs(t, err, domain.ErrInvalidImage)
}

func TestService_ImageRoundTrip(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	svc, _ := newTestService(t, &now)

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 1, 1))))
	upload := &imaging.Upload{Filename: "deck.png", Data: buf.Bytes()}
	want, err := imaging.Encode(upload, imaging.DefaultMaxBytes)
	require.NoError(t, err)

	created, err := svc.Create(ctx, input("Pictured deck", true), "seller", upload)
	require.NoError(t, err)

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.NotNil(t, got.Image)
	assert.Equal(t, want, *got.Image)
}

func TestService_LegacyImagesArePrefixed(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	svc, repo := newTestService(t, &now)

	raw := "iVBORw0KGgo="
	created, err := repo.Create(ctx, &domain.Product{Name: "Old", Published: true, Image: &raw, CreatedAt: now})
	require.NoError(t, err)

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "data:image/jpeg;base64,"+raw, *got.Image)
}

func TestService_GetUnknown(t *testing.T) {
	now := time.Now()
	svc, _ := newTestService(t, &now)
	got, err := svc.Get(context.Background(), 12345)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestService_Debug(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	svc, repo := newTestService(t, &now)

	raw := "AAAA"
	_, err := repo.Create(ctx, &domain.Product{Name: "Legacy", Image: &raw, CreatedAt: now})
	require.NoError(t, err)
	_, err = repo.Create(ctx, &domain.Product{Name: "Bare", CreatedAt: now.Add(-time.Hour)})
	require.NoError(t, err)

	reports, err := svc.Debug(ctx, 5)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, "Legacy", reports[0].Name)
	assert.True(t, reports[0].Present)
	assert.False(t, reports[0].ValidPrefix)
	assert.False(t, reports[1].Present)
}
