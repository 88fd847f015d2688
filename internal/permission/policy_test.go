package permission

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stash-bot/datastore"
	st "stash-bot/internal/storagetypes"
)

func TestAddToBlacklist_AdminRejected(t *testing.T) {
	p, err := New([]st.UserID{1}, nil, nil)
	require.NoError(t, err)

	assert.ErrorIs(t, p.AddToBlacklist(1), ErrIsAdmin)
	assert.False(t, p.IsBlacklisted(1))
	assert.Empty(t, p.Blacklisted())
}

func TestBlacklistLifecycle(t *testing.T) {
	p, err := New([]st.UserID{1}, nil, nil)
	require.NoError(t, err)

	require.NoError(t, p.AddToBlacklist(5))
	assert.True(t, p.IsBlacklisted(5))
	assert.ErrorIs(t, p.AddToBlacklist(5), ErrAlreadyBlacklisted)

	require.NoError(t, p.RemoveFromBlacklist(5))
	assert.False(t, p.IsBlacklisted(5))
	assert.ErrorIs(t, p.RemoveFromBlacklist(5), ErrNotBlacklisted)
}

func TestNew_SeedDropsAdmins(t *testing.T) {
	p, err := New([]st.UserID{1}, []st.UserID{1, 4, 2}, nil)
	require.NoError(t, err)

	assert.True(t, p.IsAdmin(1))
	assert.False(t, p.IsBlacklisted(1))
	assert.Equal(t, []st.UserID{2, 4}, p.Blacklisted())
}

func TestBlacklistPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blacklist.json")
	ds, err := datastore.New(path)
	require.NoError(t, err)

	p, err := New(nil, nil, ds)
	require.NoError(t, err)
	require.NoError(t, p.AddToBlacklist(7))
	require.NoError(t, p.AddToBlacklist(8))
	require.NoError(t, p.RemoveFromBlacklist(8))

	ds2, err := datastore.New(path)
	require.NoError(t, err)
	reloaded, err := New(nil, nil, ds2)
	require.NoError(t, err)
	assert.Equal(t, []st.UserID{7}, reloaded.Blacklisted())
}
