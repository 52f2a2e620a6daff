package crypto

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	creds := Credentials{Key: "api-key-1", Secret: "api-secret-1"}

	blob, err := EncryptCredentials(creds, "hunter2")
	require.NoError(t, err)

	got, err := DecryptCredentials(blob, "hunter2")
	require.NoError(t, err)
	require.Equal(t, creds, got)
}

func TestDecryptWrongPasswordFails(t *testing.T) {
	blob, err := EncryptCredentials(Credentials{Key: "k", Secret: "s"}, "right")
	require.NoError(t, err)

	_, err = DecryptCredentials(blob, "wrong")
	require.Error(t, err)
}

func TestEncryptRequiresCompleteInput(t *testing.T) {
	_, err := EncryptCredentials(Credentials{Key: "k"}, "pw")
	require.Error(t, err)

	_, err = EncryptCredentials(Credentials{Key: "k", Secret: "s"}, "")
	require.Error(t, err)
}

func TestLoadCredentialsPrefersPlaintext(t *testing.T) {
	got, err := LoadCredentials(CredentialConfig{Key: "k", Secret: "s"})
	require.NoError(t, err)
	require.Equal(t, Credentials{Key: "k", Secret: "s"}, got)
}

func TestLoadCredentialsFromEncryptedFile(t *testing.T) {
	creds := Credentials{Key: "file-key", Secret: "file-secret"}
	blob, err := EncryptCredentials(creds, "pw")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "creds.json")
	require.NoError(t, os.WriteFile(path, blob, 0o600))

	got, err := LoadCredentials(CredentialConfig{EncryptedPath: path, Password: "pw"})
	require.NoError(t, err)
	require.Equal(t, creds, got)
}

func TestLoadCredentialsWithoutSourceFails(t *testing.T) {
	_, err := LoadCredentials(CredentialConfig{})
	require.Error(t, err)
}
