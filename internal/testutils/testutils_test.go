package testutils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUniqueEmail(t *testing.T) {
	a, b := UniqueEmail("it"), UniqueEmail("it")
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a, "it-"))
	assert.True(t, strings.HasSuffix(a, "@example.com"))
}

func TestProjectRoot(t *testing.T) {
	root, ok := projectRoot()
	require.True(t, ok)
	assert.FileExists(t, root+"/go.mod")
}

func TestConfigForTests_KeepsExplicitEnvironment(t *testing.T) {
	t.Setenv("APP_ADDR", ":9999")
	cfg := ConfigForTests(t)
	assert.Equal(t, ":9999", cfg.GetAppAddr())
}
