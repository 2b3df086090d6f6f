package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdempotencyStore_FirstRequestProceeds(t *testing.T) {
	_, client := newTestRedis(t)
	idem := NewIdempotencyStore(client, time.Minute, testLogger())
	ctx := context.Background()

	cached, err := idem.Begin(ctx, "msg-1")
	require.NoError(t, err)
	assert.Nil(t, cached)
}

func TestIdempotencyStore_InFlightConflict(t *testing.T) {
	_, client := newTestRedis(t)
	idem := NewIdempotencyStore(client, time.Minute, testLogger())
	ctx := context.Background()

	_, err := idem.Begin(ctx, "msg-1")
	require.NoError(t, err)

	_, err = idem.Begin(ctx, "msg-1")
	assert.ErrorIs(t, err, ErrInFlight)
}

func TestIdempotencyStore_Replay(t *testing.T) {
	_, client := newTestRedis(t)
	idem := NewIdempotencyStore(client, time.Minute, testLogger())
	ctx := context.Background()

	_, err := idem.Begin(ctx, "msg-1")
	require.NoError(t, err)

	response := []byte(`{"reply":"ok","status":"success"}`)
	require.NoError(t, idem.Record(ctx, "msg-1", response))

	cached, err := idem.Begin(ctx, "msg-1")
	require.NoError(t, err)
	assert.Equal(t, response, cached, "replay must be byte identical")
}

func TestIdempotencyStore_TTLExpiry(t *testing.T) {
	mr, client := newTestRedis(t)
	idem := NewIdempotencyStore(client, time.Minute, testLogger())
	ctx := context.Background()

	_, err := idem.Begin(ctx, "msg-1")
	require.NoError(t, err)
	require.NoError(t, idem.Record(ctx, "msg-1", []byte("x")))

	mr.FastForward(2 * time.Minute)

	// the window closed, the key is fresh again
	cached, err := idem.Begin(ctx, "msg-1")
	require.NoError(t, err)
	assert.Nil(t, cached)
}

func TestIdempotencyStore_ForgetAllowsRetry(t *testing.T) {
	_, client := newTestRedis(t)
	idem := NewIdempotencyStore(client, time.Minute, testLogger())
	ctx := context.Background()

	_, err := idem.Begin(ctx, "msg-1")
	require.NoError(t, err)

	require.NoError(t, idem.Forget(ctx, "msg-1"))

	cached, err := idem.Begin(ctx, "msg-1")
	require.NoError(t, err)
	assert.Nil(t, cached)
}

func TestIdempotencyStore_KeysAreIndependent(t *testing.T) {
	_, client := newTestRedis(t)
	idem := NewIdempotencyStore(client, time.Minute, testLogger())
	ctx := context.Background()

	_, err := idem.Begin(ctx, "msg-1")
	require.NoError(t, err)

	cached, err := idem.Begin(ctx, "msg-2")
	require.NoError(t, err)
	assert.Nil(t, cached)
}
