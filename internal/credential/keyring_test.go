package credential_test

import (
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbckr/imapdetect/internal/credential"
)

func newFileStore(t *testing.T) *credential.Store {
	t.Helper()
	store, err := credential.OpenWith(keyring.Config{
		ServiceName:      "imapdetect-test",
		AllowedBackends:  []keyring.BackendType{keyring.FileBackend},
		FileDir:          t.TempDir(),
		FilePasswordFunc: keyring.FixedStringPrompt("test-key"),
	})
	require.NoError(t, err)
	return store
}

func TestStore_SetAndGet(t *testing.T) {
	store := newFileStore(t)

	require.NoError(t, store.SetPassword("user@example.com", "s3cret"))

	got, err := store.Password("user@example.com")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", got)
}

func TestStore_Overwrite(t *testing.T) {
	store := newFileStore(t)

	require.NoError(t, store.SetPassword("user@example.com", "old"))
	require.NoError(t, store.SetPassword("user@example.com", "new"))

	got, err := store.Password("user@example.com")
	require.NoError(t, err)
	assert.Equal(t, "new", got)
}

func TestStore_MissingEntry(t *testing.T) {
	store := newFileStore(t)

	got, err := store.Password("nobody@example.com")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStore_Delete(t *testing.T) {
	store := newFileStore(t)

	require.NoError(t, store.SetPassword("user@example.com", "s3cret"))
	require.NoError(t, store.Delete("user@example.com"))

	got, err := store.Password("user@example.com")
	require.NoError(t, err)
	assert.Empty(t, got)

	assert.NoError(t, store.Delete("user@example.com"), "deleting twice is not an error")
}
