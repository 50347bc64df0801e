package shopee

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"archie-core-shopee-layer/internal/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTokenStore struct {
	mu    sync.Mutex
	saved []string
	err   error
}

func (s *fakeTokenStore) SaveRotatedTokens(_ context.Context, integrationID, accessToken, refreshToken string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, integrationID+":"+accessToken+":"+refreshToken)
	return s.err
}

func newAuth() *domain.AuthContext {
	return domain.NewAuthContext("int-1", "123456", "old-access", "old-refresh", time.Now().Add(time.Hour))
}

func grantingRefresh(calls *int32) RefreshFunc {
	return func(ctx context.Context, refreshToken, shopID string) (*TokenGrant, error) {
		atomic.AddInt32(calls, 1)
		time.Sleep(20 * time.Millisecond)
		return &TokenGrant{
			AccessToken:  "new-access",
			RefreshToken: "new-refresh",
			ExpiresAt:    time.Now().Add(4 * time.Hour),
		}, nil
	}
}

func TestTokenManager_ConcurrentRefreshCollapses(t *testing.T) {
	store := &fakeTokenStore{}
	tm := NewTokenManager(store, nil, zerolog.Nop())
	auth := newAuth()
	_, staleGen := auth.Current()

	var calls int32
	refresh := grantingRefresh(&calls)

	var wg sync.WaitGroup
	errs := make([]error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = tm.Refresh(context.Background(), auth, staleGen, refresh)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	token, gen := auth.Current()
	assert.Equal(t, "new-access", token)
	assert.Equal(t, uint64(1), gen)
	assert.Equal(t, "new-refresh", auth.RefreshToken())
	assert.Equal(t, []string{"int-1:new-access:new-refresh"}, store.saved)
}

func TestTokenManager_StaleGenerationIsNoop(t *testing.T) {
	tm := NewTokenManager(nil, nil, zerolog.Nop())
	auth := newAuth()
	auth.Rotate("rotated", "", time.Now().Add(time.Hour))

	var calls int32
	err := tm.Refresh(context.Background(), auth, 0, grantingRefresh(&calls))
	require.NoError(t, err)
	assert.Equal(t, int32(0), calls)
	assert.Equal(t, "old-refresh", auth.RefreshToken())
}

func TestTokenManager_RefreshFailureInvalidates(t *testing.T) {
	tm := NewTokenManager(nil, nil, zerolog.Nop())
	auth := newAuth()

	err := tm.Refresh(context.Background(), auth, 0, func(ctx context.Context, refreshToken, shopID string) (*TokenGrant, error) {
		return nil, ErrRefreshFailed
	})
	assert.ErrorIs(t, err, domain.ErrAuthAbandoned)
	assert.ErrorIs(t, err, ErrRefreshFailed)
	assert.False(t, auth.IsValid())

	// an invalid context never refreshes again
	var calls int32
	err = tm.Refresh(context.Background(), auth, 0, grantingRefresh(&calls))
	assert.ErrorIs(t, err, domain.ErrAuthAbandoned)
	assert.Equal(t, int32(0), calls)
}

func TestTokenManager_MissingRefreshToken(t *testing.T) {
	tm := NewTokenManager(nil, nil, zerolog.Nop())
	auth := domain.NewAuthContext("int-1", "1", "access", "", time.Time{})

	var calls int32
	err := tm.Refresh(context.Background(), auth, 0, grantingRefresh(&calls))
	assert.ErrorIs(t, err, domain.ErrAuthAbandoned)
	assert.ErrorIs(t, err, ErrMissingRefreshToken)
	assert.Equal(t, int32(0), calls)
	assert.False(t, auth.IsValid())
}

func TestTokenManager_SecondRotationAbandons(t *testing.T) {
	tm := NewTokenManager(nil, nil, zerolog.Nop())
	auth := newAuth()

	var calls int32
	require.NoError(t, tm.Refresh(context.Background(), auth, 0, grantingRefresh(&calls)))

	// the freshly issued token was also rejected
	err := tm.Refresh(context.Background(), auth, 1, grantingRefresh(&calls))
	assert.ErrorIs(t, err, domain.ErrAuthAbandoned)
	assert.Equal(t, int32(1), calls)
	assert.False(t, auth.IsValid())
}

func TestTokenManager_PersistFailureKeepsNewTokens(t *testing.T) {
	store := &fakeTokenStore{err: errors.New("mongo down")}
	tm := NewTokenManager(store, nil, zerolog.Nop())
	auth := newAuth()

	var calls int32
	err := tm.Refresh(context.Background(), auth, 0, grantingRefresh(&calls))
	require.NoError(t, err)

	token, _ := auth.Current()
	assert.Equal(t, "new-access", token)
	assert.True(t, auth.IsValid())
}

func TestTokenManager_CanceledRefreshKeepsContextValid(t *testing.T) {
	tm := NewTokenManager(nil, nil, zerolog.Nop())
	auth := newAuth()

	err := tm.Refresh(context.Background(), auth, 0, func(ctx context.Context, refreshToken, shopID string) (*TokenGrant, error) {
		return nil, context.Canceled
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, auth.IsValid())
}

func TestTokenManager_Prime(t *testing.T) {
	tm := NewTokenManager(nil, nil, zerolog.Nop())

	t.Run("valid token is left alone", func(t *testing.T) {
		var calls int32
		require.NoError(t, tm.Prime(context.Background(), newAuth(), grantingRefresh(&calls)))
		assert.Equal(t, int32(0), calls)
	})

	t.Run("expired token is refreshed", func(t *testing.T) {
		auth := domain.NewAuthContext("int-2", "1", "old", "refresh", time.Now().Add(-time.Minute))
		var calls int32
		require.NoError(t, tm.Prime(context.Background(), auth, grantingRefresh(&calls)))
		assert.Equal(t, int32(1), calls)
		token, _ := auth.Current()
		assert.Equal(t, "new-access", token)
	})

	t.Run("expired token without refresh token is kept", func(t *testing.T) {
		auth := domain.NewAuthContext("int-4", "1", "old", "", time.Now().Add(-time.Minute))
		var calls int32
		require.NoError(t, tm.Prime(context.Background(), auth, grantingRefresh(&calls)))
		assert.Equal(t, int32(0), calls)
		assert.True(t, auth.IsValid())
	})

	t.Run("missing access token is refreshed", func(t *testing.T) {
		auth := domain.NewAuthContext("int-3", "1", "", "refresh", time.Time{})
		var calls int32
		require.NoError(t, tm.Prime(context.Background(), auth, grantingRefresh(&calls)))
		assert.Equal(t, int32(1), calls)
	})
}

func TestTokenManager_PrimeRotationCountsTowardTheRunCap(t *testing.T) {
	tm := NewTokenManager(nil, nil, zerolog.Nop())
	auth := domain.NewAuthContext("int-5", "1", "old", "refresh", time.Now().Add(-time.Minute))
	var calls int32
	refresh := grantingRefresh(&calls)

	require.NoError(t, tm.Prime(context.Background(), auth, refresh))
	_, gen := auth.Current()
	require.Equal(t, uint64(1), gen)

	// the primed token is rejected later in the same run
	err := tm.Refresh(context.Background(), auth, gen, refresh)
	assert.ErrorIs(t, err, domain.ErrAuthAbandoned)
	assert.False(t, auth.IsValid())
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
