package config_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jgorset/fandjango/internal/config"
)

func TestValidateMutuallyExclusivePathLists(t *testing.T) {
	cfg := config.Config{
		EnabledPaths:  []string{"^canvas/"},
		DisabledPaths: []string{"^health$"},
	}
	err := cfg.Validate()
	require.ErrorIs(t, err, config.ErrConfiguration)
}

func TestValidateRejectsBadPattern(t *testing.T) {
	cfg := config.Config{DisabledPaths: []string{"("}}
	err := cfg.Validate()
	require.ErrorIs(t, err, config.ErrConfiguration)
}

func TestValidateAcceptsSingleList(t *testing.T) {
	require.NoError(t, config.Config{DisabledPaths: []string{"^health$", `^static/`}}.Validate())
	require.NoError(t, config.Config{EnabledPaths: []string{"^canvas/"}}.Validate())
	require.NoError(t, config.Config{}.Validate())
}

func TestLoadDerivesCanvasURLFromNamespace(t *testing.T) {
	t.Setenv("FACEBOOK_APPLICATION_ID", "181259711925270")
	t.Setenv("FACEBOOK_APPLICATION_SECRET", "214e4cb484c28c35f18a70a3d735999b")
	t.Setenv("FACEBOOK_APPLICATION_NAMESPACE", "example")
	t.Setenv("FACEBOOK_CANVAS_URL", "")
	t.Setenv("DATABASE_URL", "postgres://localhost/fandjango")

	cfg, err := config.Load()
	require.NoError(t, err)
	require.Equal(t, "https://apps.facebook.com/example", cfg.CanvasURL)
	require.Equal(t, []byte("214e4cb484c28c35f18a70a3d735999b"), cfg.Secret())
}

func TestLoadRequiresCredentials(t *testing.T) {
	t.Setenv("FACEBOOK_APPLICATION_ID", "")
	t.Setenv("FACEBOOK_APPLICATION_SECRET", "")

	_, err := config.Load()
	require.ErrorIs(t, err, config.ErrConfiguration)
}
