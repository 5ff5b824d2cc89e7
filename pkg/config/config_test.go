package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
platform_url: https://platform.example.com
platform_token: tok
s3_bucket: backups
jwt_secret_key: secret
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, DefaultAPIHost, cfg.APIHost)
	assert.Equal(t, DefaultAPIPort, cfg.APIPort)
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
	assert.Equal(t, DefaultS3Region, cfg.S3Region)
	assert.Equal(t, DefaultExportPollIntervalMs, cfg.ExportPollIntervalMs)
	assert.Equal(t, DefaultExportPollMaxAttempts, cfg.ExportPollMaxAttempts)
	assert.Equal(t, DefaultIngestPollMaxAttempts, cfg.IngestPollMaxAttempts)
	assert.Equal(t, DefaultSearchCallIntervalMs, cfg.SearchCallIntervalMs)
	assert.False(t, cfg.StrictDigest)
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
platform_url: https://platform.example.com
platform_token: tok
s3_bucket: backups
jwt_secret_key: secret
api_port: 9000
export_poll_max_attempts: 10
strict_digest: true
cors_origins:
  - https://app.example.com
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.APIPort)
	assert.Equal(t, 10, cfg.ExportPollMaxAttempts)
	assert.True(t, cfg.StrictDigest)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.CORSOrigins)
}

func TestValidateRequiredFields(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name: "missing platform url",
			content: `
platform_token: tok
s3_bucket: backups
jwt_secret_key: secret
`,
			wantErr: "platform_url",
		},
		{
			name: "bad platform url scheme",
			content: `
platform_url: ftp://platform.example.com
s3_bucket: backups
jwt_secret_key: secret
`,
			wantErr: "platform_url",
		},
		{
			name: "missing bucket",
			content: `
platform_url: https://platform.example.com
jwt_secret_key: secret
`,
			wantErr: "s3_bucket",
		},
		{
			name: "missing jwt secret",
			content: `
platform_url: https://platform.example.com
s3_bucket: backups
`,
			wantErr: "jwt_secret_key",
		},
		{
			name: "ssl cert without key",
			content: `
platform_url: https://platform.example.com
s3_bucket: backups
jwt_secret_key: secret
ssl_cert: /etc/ssl/cert.pem
`,
			wantErr: "ssl_cert and ssl_key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	assert.Error(t, err)
}
