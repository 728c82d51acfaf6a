package nats

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wpp-platform/customer-service/pkg/logger"
)

func TestConnectOptions(t *testing.T) {
	log := logger.NewNop()

	opts, err := connectOptions(context.Background(), Config{URL: "nats://localhost:4222"}, log)
	require.NoError(t, err)
	base := len(opts)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	opts, err = connectOptions(ctx, Config{Token: "secret"}, log)
	require.NoError(t, err)
	assert.Len(t, opts, base+2)
}

func TestLoadTLSErrors(t *testing.T) {
	_, err := loadTLS(Config{CAFile: filepath.Join(t.TempDir(), "missing.pem")})
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "ca.pem")
	require.NoError(t, os.WriteFile(bad, []byte("not a certificate"), 0o600))
	_, err = loadTLS(Config{CAFile: bad, CertFile: bad, KeyFile: bad})
	assert.ErrorContains(t, err, "no certificates")

	_, err = connectOptions(context.Background(), Config{CAFile: bad, CertFile: bad, KeyFile: bad}, logger.NewNop())
	assert.Error(t, err)
}

func TestConfigMutualTLS(t *testing.T) {
	assert.False(t, Config{CAFile: "ca"}.mutualTLS())
	assert.True(t, Config{CAFile: "ca", CertFile: "crt", KeyFile: "key"}.mutualTLS())
}
