package auth

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"igcrawler/pkg/config"
	"igcrawler/pkg/logger"
)

func clearEnv(t *testing.T) {
	t.Setenv(envUsername, "")
	t.Setenv(envPassword, "")
	t.Setenv(envUserAgent, "")
}

func TestManagerStoreRetrieveDelete(t *testing.T) {
	clearEnv(t)
	store := NewMockStore()
	manager := NewManagerWithStores(logger.NewNopLogger(), store)

	account := &Account{Username: "crawler", Password: "hunter2hunter2", UserAgent: "TestAgent/1.0"}
	require.NoError(t, manager.Store(account))
	assert.False(t, account.LastModified.IsZero())

	retrieved, err := manager.Retrieve("crawler")
	require.NoError(t, err)
	assert.Equal(t, "hunter2hunter2", retrieved.Password)
	assert.Equal(t, "TestAgent/1.0", retrieved.UserAgent)

	accounts, err := manager.List()
	require.NoError(t, err)
	assert.Len(t, accounts, 1)

	require.NoError(t, manager.Delete("crawler"))
	assert.Equal(t, 0, store.Count())

	_, err = manager.Retrieve("crawler")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
	assert.ErrorIs(t, manager.Delete("crawler"), ErrCredentialsNotFound)
}

func TestManagerStoreValidation(t *testing.T) {
	manager := NewManagerWithStores(logger.NewNopLogger(), NewMockStore())

	assert.Error(t, manager.Store(nil))
	assert.Error(t, manager.Store(&Account{Password: "x"}))
	assert.Error(t, manager.Store(&Account{Username: "crawler"}))
}

func TestManagerStoreFallsBack(t *testing.T) {
	broken := NewMockStore()
	broken.StoreError = errors.New("keychain locked")
	working := NewMockStore()
	manager := NewManagerWithStores(logger.NewNopLogger(), broken, working)

	require.NoError(t, manager.Store(&Account{Username: "crawler", Password: "pw"}))
	assert.Equal(t, 0, broken.Count())
	assert.Equal(t, 1, working.Count())

	working.StoreError = errors.New("disk full")
	err := manager.Store(&Account{Username: "other", Password: "pw"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestManagerListMergesStores(t *testing.T) {
	clearEnv(t)
	older := NewMockStore()
	newer := NewMockStore()
	failing := NewMockStore()
	failing.ListError = errors.New("unavailable")

	now := time.Now()
	require.NoError(t, older.Store(&Account{Username: "b", Password: "old", LastModified: now.Add(-time.Hour)}))
	require.NoError(t, newer.Store(&Account{Username: "b", Password: "new", LastModified: now}))
	require.NoError(t, newer.Store(&Account{Username: "a", Password: "pw", LastModified: now}))

	accounts, err := NewManagerWithStores(logger.NewNopLogger(), older, failing, newer).List()
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "a", accounts[0].Username)
	assert.Equal(t, "new", accounts[1].Password)
}

func TestManagerResolve(t *testing.T) {
	clearEnv(t)
	store := NewMockStore()
	require.NoError(t, store.Store(&Account{Username: "alpha", Password: "alpha-pw"}))
	require.NoError(t, store.Store(&Account{Username: "beta", Password: "beta-pw", UserAgent: "Saved/1.0"}))
	manager := NewManagerWithStores(logger.NewNopLogger(), store, NewEnvironmentStore())

	tests := []struct {
		name     string
		cfg      config.InstagramConfig
		wantUser string
		wantPass string
		wantUA   string
	}{
		{"explicit credentials", config.InstagramConfig{Username: "x", Password: "y", UserAgent: "Cfg/1.0"}, "x", "y", "Cfg/1.0"},
		{"named account", config.InstagramConfig{Account: "beta"}, "beta", "beta-pw", "Saved/1.0"},
		{"username only", config.InstagramConfig{Username: "alpha", UserAgent: "Cfg/1.0"}, "alpha", "alpha-pw", "Cfg/1.0"},
		{"first stored", config.InstagramConfig{}, "alpha", "alpha-pw", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			account, err := manager.Resolve(tt.cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.wantUser, account.Username)
			assert.Equal(t, tt.wantPass, account.Password)
			assert.Equal(t, tt.wantUA, account.UserAgent)
		})
	}

	t.Run("environment wins the default", func(t *testing.T) {
		t.Setenv(envUsername, "envuser")
		t.Setenv(envPassword, "envpass")
		account, err := manager.Resolve(config.InstagramConfig{})
		require.NoError(t, err)
		assert.Equal(t, "envuser", account.Username)
	})

	t.Run("unknown account", func(t *testing.T) {
		_, err := manager.Resolve(config.InstagramConfig{Account: "nobody"})
		assert.ErrorIs(t, err, ErrCredentialsNotFound)
	})
}

func TestEncryptedFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds", "credentials.enc")

	store, err := NewEncryptedFileStore(path, "test_passphrase_123")
	require.NoError(t, err)

	account := &Account{Username: "encrypted_user", Password: "s3cret-password"}
	require.NoError(t, store.Store(account))
	require.NoError(t, store.Store(&Account{Username: "second", Password: "another-secret"}))

	retrieved, err := store.Retrieve("encrypted_user")
	require.NoError(t, err)
	assert.Equal(t, "s3cret-password", retrieved.Password)
	assert.True(t, store.Exists("second"))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(content), "s3cret-password")
	assert.NotContains(t, string(content), "encrypted_user")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	accounts, err := store.List()
	require.NoError(t, err)
	assert.Len(t, accounts, 2)

	t.Run("wrong passphrase", func(t *testing.T) {
		other, err := NewEncryptedFileStore(path, "not the passphrase")
		require.NoError(t, err)
		_, err = other.Retrieve("encrypted_user")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("delete last account removes file", func(t *testing.T) {
		require.NoError(t, store.Delete("encrypted_user"))
		require.NoError(t, store.Delete("second"))
		assert.NoFileExists(t, path)
		assert.ErrorIs(t, store.Delete("second"), ErrCredentialsNotFound)
	})

	_, err = NewEncryptedFileStore(path, "")
	assert.Error(t, err)
}

func TestResolvePassphrase(t *testing.T) {
	dir := t.TempDir()

	t.Setenv("IGCRAWLER_PASSPHRASE", "from-env")
	pass, err := resolvePassphrase(dir)
	require.NoError(t, err)
	assert.Equal(t, "from-env", pass)
	assert.NoFileExists(t, filepath.Join(dir, ".passphrase"))

	t.Setenv("IGCRAWLER_PASSPHRASE", "")
	first, err := resolvePassphrase(dir)
	require.NoError(t, err)
	assert.NotEmpty(t, first)
	second, err := resolvePassphrase(dir)
	require.NoError(t, err)
	assert.Equal(t, first, second, "generated passphrase is reused")
}

func TestEnvironmentStore(t *testing.T) {
	clearEnv(t)
	store := NewEnvironmentStore()

	_, err := store.Retrieve("")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)

	t.Setenv(envUsername, "envuser")
	t.Setenv(envPassword, "envpass")
	t.Setenv(envUserAgent, "Env/1.0")

	account, err := store.Retrieve("")
	require.NoError(t, err)
	assert.Equal(t, "envuser", account.Username)
	assert.Equal(t, "envpass", account.Password)
	assert.Equal(t, "Env/1.0", account.UserAgent)

	_, err = store.Retrieve("someone_else")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
	assert.True(t, store.Exists("envuser"))

	assert.ErrorIs(t, store.Store(&Account{}), ErrStoreUnavailable)
	assert.ErrorIs(t, store.Delete("envuser"), ErrStoreUnavailable)
}

func TestKeyringStore(t *testing.T) {
	keyring.MockInit()

	store, err := NewKeyringStore()
	require.NoError(t, err)

	require.NoError(t, store.Store(&Account{Username: "zeta", Password: "pw-z"}))
	require.NoError(t, store.Store(&Account{Username: "alpha", Password: "pw-a"}))

	account, err := store.Retrieve("zeta")
	require.NoError(t, err)
	assert.Equal(t, "pw-z", account.Password)

	accounts, err := store.List()
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "alpha", accounts[0].Username)

	require.NoError(t, store.Delete("alpha"))
	assert.False(t, store.Exists("alpha"))
	assert.ErrorIs(t, store.Delete("alpha"), ErrCredentialsNotFound)

	accounts, err = store.List()
	require.NoError(t, err)
	assert.Len(t, accounts, 1)

	_, err = store.Retrieve("")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestNewManager(t *testing.T) {
	keyring.MockInit()
	clearEnv(t)
	t.Setenv("IGCRAWLER_PASSPHRASE", "manager-test")

	manager, err := NewManager(t.TempDir(), logger.NewNopLogger())
	require.NoError(t, err)

	require.NoError(t, manager.Store(&Account{Username: "crawler", Password: "pw"}))
	account, err := manager.Retrieve("crawler")
	require.NoError(t, err)
	assert.Equal(t, "pw", account.Password)
	require.NoError(t, manager.Delete("crawler"))
}

func TestSanitizeAccount(t *testing.T) {
	account := &Account{Username: "crawler", Password: "a-long-password"}
	sanitized := SanitizeAccount(account)

	assert.Equal(t, "crawler", sanitized.Username)
	assert.Equal(t, "a-...rd", sanitized.Password)
	assert.Equal(t, "********", SanitizeAccount(&Account{Password: "short"}).Password)
	assert.Nil(t, SanitizeAccount(nil))
}
