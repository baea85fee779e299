package permissions_test

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/quantumauth-io/quantum-auth-gate/internal/mocks"
	"github.com/quantumauth-io/quantum-auth-gate/internal/permissions"
)

func TestCacheSeedsOnce(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)

	seed := permissions.NewGrant("https://dapp.example", "0xabc", "", "", permissions.StateAllowed)
	store.EXPECT().ListAll(gomock.Any()).Return(map[string]permissions.Grant{seed.Key: seed}, nil).Times(1)
	store.EXPECT().Get(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	c, err := permissions.NewCache(ctx, store)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		g, ok, err := c.Get(ctx, "https://dapp.example", "0xABC")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, seed.Key, g.Key)
	}
}

func TestCacheWriteThrough(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)

	store.EXPECT().ListAll(gomock.Any()).Return(nil, nil)
	c, err := permissions.NewCache(ctx, store)
	require.NoError(t, err)

	g := permissions.NewGrant("https://dapp.example", "0xabc", "", "", permissions.StateAllowed)
	store.EXPECT().Put(gomock.Any(), g).Return(nil)
	require.NoError(t, c.Put(ctx, g))

	store.EXPECT().Delete(gomock.Any(), "https://dapp.example", "0xabc").Return(nil)
	require.NoError(t, c.Delete(ctx, "https://dapp.example", "0xabc"))

	_, ok, _ := c.Get(ctx, "https://dapp.example", "0xabc")
	assert.False(t, ok)
}

func TestCacheKeepsStateOnStoreFailure(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)

	store.EXPECT().ListAll(gomock.Any()).Return(nil, nil)
	c, err := permissions.NewCache(ctx, store)
	require.NoError(t, err)

	failure := &permissions.StorageError{Op: "put", Err: errors.New("disk full")}
	store.EXPECT().Put(gomock.Any(), gomock.Any()).Return(failure)

	err = c.Put(ctx, permissions.NewGrant("https://dapp.example", "0xabc", "", "", permissions.StateAllowed))
	require.Error(t, err)
	assert.True(t, permissions.IsStorageError(err))
	assert.Empty(t, c.Snapshot())
}

func TestCacheSnapshotAndForAccount(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)

	a := permissions.NewGrant("https://b.example", "0xabc", "", "", permissions.StateAllowed)
	b := permissions.NewGrant("https://a.example", "0xabc", "", "", permissions.StateAllowed)
	other := permissions.NewGrant("https://a.example", "0xdef", "", "", permissions.StateAllowed)
	store.EXPECT().ListAll(gomock.Any()).Return(map[string]permissions.Grant{a.Key: a, b.Key: b, other.Key: other}, nil)

	c, err := permissions.NewCache(ctx, store)
	require.NoError(t, err)

	snap := c.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, "https://a.example", snap[0].Origin)
	assert.Equal(t, "0xabc", snap[0].AccountAddress)
	assert.Equal(t, "0xdef", snap[1].AccountAddress)

	mine := c.ForAccount("0xABC")
	require.Len(t, mine, 2)
	assert.Equal(t, "https://a.example", mine[0].Origin)
	assert.Equal(t, "https://b.example", mine[1].Origin)
}
