package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yashrajoria/shopflow/pkg/broker"
	"github.com/yashrajoria/shopflow/services/common/events"
)

func TestNotificationListener_AcksAndParks(t *testing.T) {
	mem := broker.NewMemory(1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	valid, err := json.Marshal(events.OrderCreated{NewOrder: events.Order{
		ID:         "o1",
		User:       "b@x.com",
		TotalPrice: decimal.NewFromInt(25),
		CreatedAt:  time.Now().UTC(),
	}})
	require.NoError(t, err)

	require.NoError(t, mem.Publish(ctx, broker.QueueProduct, valid))
	require.NoError(t, mem.Publish(ctx, broker.QueueProduct, []byte("not json")))

	listener := NewNotificationListener(mem, nil)
	done := make(chan struct{})
	go func() {
		listener.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return mem.Depth(broker.QueueProduct) == 0 && mem.Depth(broker.DeadLetter(broker.QueueProduct)) == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done

	parked := mem.Messages(broker.DeadLetter(broker.QueueProduct))
	require.Len(t, parked, 1)
	assert.Equal(t, "not json", string(parked[0]))
	// nothing went back to PRODUCT on shutdown
	assert.Equal(t, 0, mem.Depth(broker.QueueProduct))
}
