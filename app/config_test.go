package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Base64Encoded(t *testing.T) {

	t.Run("decodes base64 text", func(t *testing.T) {
		var secret Base64Encoded
		require.NoError(t, secret.UnmarshalText([]byte("c2VjcmV0")))
		assert.Equal(t, []byte("secret"), []byte(secret))
	})

	t.Run("rejects invalid base64", func(t *testing.T) {
		var secret Base64Encoded
		assert.Error(t, secret.UnmarshalText([]byte("not base64!!!")))
	})
}

func Test_ConfigValidate(t *testing.T) {

	valid := func() *Config {
		config := &Config{
			Port:     8080,
			Hostname: "0.0.0.0",
		}
		config.Auth.Secret = Base64Encoded("secret")
		config.Auth.TokenExp = time.Hour
		config.SQLite.File = "./campus-chat.db"
		config.SQLite.Migrations = "./migrations"
		return config
	}

	t.Run("accepts a complete config", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("rejects an out-of-range port", func(t *testing.T) {
		config := valid()
		config.Port = 70000
		err := config.Validate()
		require.Error(t, err)
		assert.Contains(t, FormatValidationErrors(err), "port")
	})

	t.Run("rejects a missing secret", func(t *testing.T) {
		config := valid()
		config.Auth.Secret = nil
		assert.Error(t, config.Validate())
	})
}
