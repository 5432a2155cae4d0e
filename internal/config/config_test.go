package config

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPListenAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "tenants", cfg.S3Prefix)
	assert.Equal(t, 30, cfg.S3RetentionDays)
	assert.Equal(t, 587, cfg.SMTPPort)
	assert.Equal(t, 2, cfg.WorkerConcurrency)
}

func TestLoadPaddleKeyDecoding(t *testing.T) {
	pem := "-----BEGIN PUBLIC KEY-----\nabc\n-----END PUBLIC KEY-----"
	t.Setenv("PADDLE_PUBLIC_KEY_BASE64", base64.StdEncoding.EncodeToString([]byte(pem)))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, pem, cfg.PaddlePublicKey)
}

func TestLoadPaddleKeyInvalidBase64(t *testing.T) {
	t.Setenv("PADDLE_PUBLIC_KEY_BASE64", "not base64!!")

	_, err := Load()
	require.Error(t, err)
}

func TestValidateMissingRequired(t *testing.T) {
	cfg := &Config{RedisAddr: "127.0.0.1:6379"}
	err := cfg.Validate("admin-api")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestValidateWorkerNeedsBucket(t *testing.T) {
	cfg := &Config{
		DatabaseURL:       "postgres://localhost/registry",
		RedisAddr:         "127.0.0.1:6379",
		WorkerConcurrency: 1,
	}
	require.NoError(t, cfg.Validate("admin-api"))

	err := cfg.Validate("worker")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "S3_BUCKET")

	cfg.S3Bucket = "backups"
	require.NoError(t, cfg.Validate("worker"))
}
