package broadcast

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedis_PublishSubscribe(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	b := NewRedis(rdb, "", nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := b.Subscribe(ctx)
	require.NoError(t, err)

	require.NoError(t, b.Publish(ctx, Signal{Kind: KindLotUpdated, LotID: "C-03", Origin: "replica-1"}))

	select {
	case s := <-ch:
		assert.Equal(t, Signal{Kind: KindLotUpdated, LotID: "C-03", Origin: "replica-1"}, s)
	case <-time.After(2 * time.Second):
		t.Fatal("signal not relayed")
	}

	cancel()
	for range ch {
	}
}
