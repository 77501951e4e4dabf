package broadcast

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestLocal_FanOut(t *testing.T) {
	defer goleak.VerifyNone(t)

	b := NewLocal()
	ctx, cancel := context.WithCancel(context.Background())

	a, err := b.Subscribe(ctx)
	require.NoError(t, err)
	c, err := b.Subscribe(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, b.Subscribers())

	require.NoError(t, b.Publish(ctx, Signal{Kind: KindLotUpdated, LotID: "A-07"}))
	for _, ch := range []<-chan Signal{a, c} {
		select {
		case s := <-ch:
			assert.Equal(t, KindLotUpdated, s.Kind)
			assert.Equal(t, "A-07", s.LotID)
		case <-time.After(time.Second):
			t.Fatal("signal not delivered")
		}
	}

	cancel()
	for _, ch := range []<-chan Signal{a, c} {
		for range ch {
		}
	}
	assert.Equal(t, 0, b.Subscribers())
}

func TestLocal_PublishNeverBlocks(t *testing.T) {
	defer goleak.VerifyNone(t)

	b := NewLocal()
	ctx, cancel := context.WithCancel(context.Background())
	ch, err := b.Subscribe(ctx)
	require.NoError(t, err)

	for i := 0; i < 100; i++ {
		require.NoError(t, b.Publish(ctx, Sync()))
	}
	assert.Len(t, ch, b.buffer)

	cancel()
	for range ch {
	}
}

func TestSignalCodec(t *testing.T) {
	raw, err := encode(Sync())
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"sync"}`, string(raw))

	s, err := decode([]byte(`{"kind":"lot.updated","lotId":"B-12"}`))
	require.NoError(t, err)
	assert.Equal(t, Signal{Kind: KindLotUpdated, LotID: "B-12"}, s)
}
