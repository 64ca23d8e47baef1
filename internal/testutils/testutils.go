// Package testutils holds helpers shared by integration tests.
package testutils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/nfrund/storefront/internal/config"
	"github.com/nfrund/storefront/internal/logging"
)

// ConfigForTests loads the optional .env.test file at the project root into
// the test's environment and returns the resulting config.
func ConfigForTests(t *testing.T) *config.Config {
	t.Helper()

	if root, ok := projectRoot(); ok {
		env, err := godotenv.Read(filepath.Join(root, ".env.test"))
		if err == nil {
			for key, value := range env {
				if _, set := os.LookupEnv(key); !set {
					t.Setenv(key, value)
				}
			}
		}
	}

	logging.New()

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("invalid test configuration: %v", err)
	}
	return cfg
}

// RequireIntegration skips the test in short mode or when envKey is unset
// after ConfigForTests has run.
func RequireIntegration(t *testing.T, envKey string) *config.Config {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	cfg := ConfigForTests(t)
	if os.Getenv(envKey) == "" {
		t.Skipf("%s not set", envKey)
	}
	return cfg
}

// UniqueEmail returns an address that no earlier test run has used.
func UniqueEmail(prefix string) string {
	return prefix + "-" + strings.ReplaceAll(uuid.NewString()[:13], "-", "") + "@example.com"
}

func projectRoot() (string, bool) {
	path, err := os.Getwd()
	if err != nil {
		return "", false
	}
	for {
		if _, err := os.Stat(filepath.Join(path, "go.mod")); err == nil {
			return path, true
		}
		if path == filepath.Dir(path) {
			return "", false
		}
		path = filepath.Dir(path)
	}
}
