package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetEnvWithDefault(t *testing.T) {
	testCases := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		expected     string
	}{
		{
			name:         "should return env value when set",
			key:          "TEST_KEY",
			defaultValue: "default",
			envValue:     "from_env",
			expected:     "from_env",
		},
		{
			name:         "should return default when env not set",
			key:          "MISSING_KEY",
			defaultValue: "default_value",
			expected:     "default_value",
		},
		{
			name:     "should return empty string default",
			key:      "EMPTY_KEY",
			expected: "",
		},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.envValue)
			assert.Equal(t, tt.expected, GetEnvWithDefault(tt.key, tt.defaultValue))
		})
	}
}

func TestGetEnvAsType(t *testing.T) {
	t.Setenv("TEST_INT", "42")
	t.Setenv("TEST_BAD_INT", "forty-two")
	t.Setenv("TEST_BOOL", "true")
	t.Setenv("TEST_DURATION", "90s")

	assert.Equal(t, 42, GetEnvAsType("TEST_INT", 1))
	assert.Equal(t, 1, GetEnvAsType("TEST_BAD_INT", 1))
	assert.True(t, GetEnvAsType("TEST_BOOL", false))
	assert.Equal(t, 90*time.Second, GetEnvAsType("TEST_DURATION", time.Minute))
	assert.Equal(t, "fallback", GetEnvAsType("TEST_UNSET_STRING", "fallback"))
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

const baseYAML = `
server:
  port: 9000
log:
  level: debug
security:
  jwt_secret: file-secret
storage:
  default_client: default
  clients:
    default:
      provider: minio
      endpoint: http://localhost:9000
      bucket: recipes
  profiles:
    avatar:
      default_folder: avatars/{user_id}
      allowed_file_types: ["image/*"]
      max_file_size_mb: 2
`

func TestLoadConfig(t *testing.T) {
	t.Run("should use defaults when no files exist", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "super_secret_jwt_key")

		cfg, err := LoadConfigFrom(t.TempDir(), "test")
		require.NoError(t, err)

		assert.Equal(t, "test", cfg.Env)
		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, "0.0.0.0", cfg.Server.Host)
		assert.Equal(t, "sqlite", cfg.Database.Driver)
		assert.Equal(t, "database", cfg.Security.TokenStore)
		assert.Equal(t, 30*time.Minute, cfg.Security.AccessTokenTTL)
		assert.Equal(t, 24*time.Hour, cfg.Reconcile.GracePeriod)
		assert.Equal(t, logrus.InfoLevel, cfg.LogLevel())
	})

	t.Run("should layer env file and variables", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "config.yaml", baseYAML)
		writeFile(t, dir, "config.staging.yaml", "log:\n  level: warn\n")
		t.Setenv("JWT_SECRET", "")
		t.Setenv("RECIPES_SECURITY_MAX_LOGIN_ATTEMPTS", "3")
		t.Setenv("APP_PORT", "9100")

		cfg, err := LoadConfigFrom(dir, "staging")
		require.NoError(t, err)

		assert.Equal(t, 9100, cfg.Server.Port)
		assert.Equal(t, logrus.WarnLevel, cfg.LogLevel())
		assert.Equal(t, "file-secret", cfg.Security.JWTSecret)
		assert.Equal(t, 3, cfg.Security.MaxLoginAttempts)
		require.Contains(t, cfg.Storage.Profiles, "avatar")
		assert.Equal(t, int64(2*1024*1024), cfg.Storage.Profiles["avatar"].MaxBytes())
		assert.Equal(t, "recipes", cfg.Storage.Clients["default"].Bucket)
	})

	t.Run("should fail with invalid port", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "super_secret_jwt_key")
		t.Setenv("APP_PORT", "not_a_number")

		cfg, err := LoadConfigFrom(t.TempDir(), "test")
		assert.Error(t, err)
		assert.Nil(t, cfg)
	})

	t.Run("should require a jwt secret", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "")

		_, err := LoadConfigFrom(t.TempDir(), "test")
		assert.ErrorContains(t, err, "jwt_secret")
	})

	t.Run("should reject short secrets in production", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "short")

		_, err := LoadConfigFrom(t.TempDir(), "production")
		assert.ErrorContains(t, err, "32 characters")
	})

	t.Run("should require redis for the redis token store", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "super_secret_jwt_key")
		t.Setenv("RECIPES_SECURITY_TOKEN_STORE", "redis")

		_, err := LoadConfigFrom(t.TempDir(), "test")
		assert.ErrorContains(t, err, "redis.addr")
	})

	t.Run("should reject profiles with unknown clients", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "config.yaml", baseYAML+"    recipe:\n      client: archive\n")

		_, err := LoadConfigFrom(dir, "test")
		assert.ErrorContains(t, err, `unknown client "archive"`)
	})
}

func TestMaskDatabaseURL(t *testing.T) {
	assert.Equal(t, "", maskDatabaseURL(""))
	masked := maskDatabaseURL("postgres://recipes:hunter2@db:5432/recipes")
	assert.NotContains(t, masked, "hunter2")
	assert.Contains(t, masked, "@db:5432/recipes")
}

func BenchmarkGetEnvWithDefault(b *testing.B) {
	os.Setenv("BENCH_KEY", "test_value")
	defer os.Unsetenv("BENCH_KEY")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		GetEnvWithDefault("BENCH_KEY", "default")
	}
}
