package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("SESSION_SECRET", "session-secret")
	t.Setenv("CSRF_SECRET", "csrf-secret")
	t.Setenv("JWT_SECRET", "jwt-secret")
}

func TestLoadConfigDefaults(t *testing.T) {
	setRequired(t)
	t.Setenv("STORAGE_DRIVER", "memory")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.AppAddr)
	require.Equal(t, "product-images", cfg.ProductImageBucket)
	require.Equal(t, "avatars", cfg.AvatarBucket)
	require.Equal(t, 5*time.Minute, cfg.CatalogCacheTTL)
	require.False(t, cfg.IsProduction())
}

func TestLoadConfigRequiresSecrets(t *testing.T) {
	t.Setenv("SESSION_SECRET", "")
	t.Setenv("CSRF_SECRET", "csrf-secret")
	t.Setenv("JWT_SECRET", "jwt-secret")

	_, err := LoadConfig()
	require.Error(t, err)
}

func TestLoadConfigRejectsUnknownStorageDriver(t *testing.T) {
	setRequired(t)
	t.Setenv("STORAGE_DRIVER", "ftp")

	_, err := LoadConfig()
	require.Error(t, err)
}
