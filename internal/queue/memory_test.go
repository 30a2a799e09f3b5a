package queue

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBroker_FetchIsNonBlocking(t *testing.T) {
	b := NewMemoryBroker()

	d, ok, err := b.Fetch(context.Background(), "empty")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, d)
}

func TestMemoryBroker_NackRedelivers(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBroker()
	require.NoError(t, b.Publish(ctx, "t", []byte("first")))
	require.NoError(t, b.Publish(ctx, "t", []byte("second")))

	d, ok, err := b.Fetch(ctx, "t")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "first", string(d.Body()))
	assert.Equal(t, 1, b.Pending("t"))

	require.NoError(t, d.Nack())
	assert.ErrorIs(t, d.Ack(), ErrAlreadyAcknowledged)

	d, ok, err = b.Fetch(ctx, "t")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "first", string(d.Body()))
	require.NoError(t, d.Ack())
	assert.Equal(t, 1, b.Pending("t"))
}

func TestMemoryBroker_Closed(t *testing.T) {
	b := NewMemoryBroker()
	require.NoError(t, b.Close())

	assert.ErrorIs(t, b.Publish(context.Background(), "t", nil), ErrClosed)
	_, _, err := b.Fetch(context.Background(), "t")
	assert.ErrorIs(t, err, ErrClosed)
}
