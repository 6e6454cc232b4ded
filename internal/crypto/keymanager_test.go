package crypto

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptCredentials(t *testing.T) {
	creds := Credentials{
		APIKey:     "test-api-key",
		APISecret:  "test-api-secret",
		Passphrase: "optional-passphrase",
	}

	t.Run("round trip", func(t *testing.T) {
		blob, err := EncryptCredentials(creds, "hunter2")
		require.NoError(t, err)

		got, err := DecryptCredentials(blob, "hunter2")
		require.NoError(t, err)
		assert.Equal(t, creds, got)
	})

	t.Run("wrong password fails authentication", func(t *testing.T) {
		blob, err := EncryptCredentials(creds, "hunter2")
		require.NoError(t, err)

		_, err = DecryptCredentials(blob, "hunter3")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "decryption failed")
	})

	t.Run("ciphertext never contains the plaintext", func(t *testing.T) {
		blob, err := EncryptCredentials(creds, "hunter2")
		require.NoError(t, err)
		assert.NotContains(t, string(blob), creds.APIKey)
		assert.NotContains(t, string(blob), creds.APISecret)
	})

	t.Run("fresh salt and nonce per encryption", func(t *testing.T) {
		first, err := EncryptCredentials(creds, "hunter2")
		require.NoError(t, err)
		second, err := EncryptCredentials(creds, "hunter2")
		require.NoError(t, err)
		assert.NotEqual(t, string(first), string(second))
	})

	t.Run("empty password rejected", func(t *testing.T) {
		_, err := EncryptCredentials(creds, "")
		require.Error(t, err)
		_, err = DecryptCredentials([]byte("{}"), "")
		require.Error(t, err)
	})

	t.Run("missing key material rejected", func(t *testing.T) {
		_, err := EncryptCredentials(Credentials{APIKey: "only-key"}, "hunter2")
		require.Error(t, err)
	})

	t.Run("unsupported version rejected", func(t *testing.T) {
		blob, err := EncryptCredentials(creds, "hunter2")
		require.NoError(t, err)

		var stored map[string]any
		require.NoError(t, json.Unmarshal(blob, &stored))
		stored["version"] = 99
		tampered, err := json.Marshal(stored)
		require.NoError(t, err)

		_, err = DecryptCredentials(tampered, "hunter2")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported version")
	})
}

func TestLoadCredentials(t *testing.T) {
	t.Run("plaintext pair wins", func(t *testing.T) {
		got, err := LoadCredentials(CredentialSource{APIKey: "k", APISecret: "s"})
		require.NoError(t, err)
		assert.Equal(t, Credentials{APIKey: "k", APISecret: "s"}, got)
	})

	t.Run("encrypted file", func(t *testing.T) {
		creds := Credentials{APIKey: "file-key", APISecret: "file-secret"}
		blob, err := EncryptCredentials(creds, "pw")
		require.NoError(t, err)

		path := filepath.Join(t.TempDir(), "creds.json")
		require.NoError(t, os.WriteFile(path, blob, 0o600))

		got, err := LoadCredentials(CredentialSource{EncryptedPath: path, Password: "pw"})
		require.NoError(t, err)
		assert.Equal(t, creds, got)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadCredentials(CredentialSource{
			EncryptedPath: filepath.Join(t.TempDir(), "absent.json"),
			Password:      "pw",
		})
		require.Error(t, err)
	})

	t.Run("no source configured", func(t *testing.T) {
		_, err := LoadCredentials(CredentialSource{})
		require.Error(t, err)
	})
}
