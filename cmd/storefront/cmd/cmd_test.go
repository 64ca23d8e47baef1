package cmd

import (
	"bytes"
	"context"
	"testing"

	"github.com/nfrund/storefront/internal/app"
	"github.com/nfrund/storefront/internal/config"
	"github.com/nfrund/storefront/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	t.Cleanup(func() { rootCmd.SetArgs(nil); rootCmd.SetOut(nil) })

	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, "Storefront v"+app.Version+"\n", out.String())
}

func TestSetRole_CreatesMissingProfile(t *testing.T) {
	t.Setenv("AUTH_BACKEND", config.BackendMemory)
	t.Setenv("DATA_BACKEND", config.BackendMemory)
	cfg, err := config.Load()
	require.NoError(t, err)

	a := app.New(cfg)
	t.Cleanup(func() { _ = a.Shutdown(context.Background()) })
	ctx := context.Background()

	require.NoError(t, setRole(ctx, a, "u1", domain.RoleAdmin))
	profiles, err := a.Profiles()
	require.NoError(t, err)
	p, err := profiles.FindByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, p.Role)

	require.NoError(t, setRole(ctx, a, "u1", domain.RoleUser))
	p, err = profiles.FindByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleUser, p.Role)
}

func TestResolveAccount(t *testing.T) {
	t.Setenv("AUTH_BACKEND", config.BackendMemory)
	cfg, err := config.Load()
	require.NoError(t, err)
	a := app.New(cfg)
	t.Cleanup(func() { _ = a.Shutdown(context.Background()) })

	id, err := resolveAccount(context.Background(), a, "plain-id")
	require.NoError(t, err)
	assert.Equal(t, "plain-id", id)

	_, err = resolveAccount(context.Background(), a, "nobody@example.com")
	assert.ErrorContains(t, err, "no account registered")
}
