package broker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/danilovkiri/dk-go-mmsledger/internal/config"
	"github.com/danilovkiri/dk-go-mmsledger/internal/models/modelqueue"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyNotifier struct {
	mu        sync.Mutex
	failures  int
	attempts  map[string]int
	delivered []string
}

func (n *flakyNotifier) Notify(_ context.Context, event modelqueue.LedgerEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.attempts[event.ID]++
	if n.attempts[event.ID] <= n.failures {
		return errors.New("webhook unavailable")
	}
	n.delivered = append(n.delivered, event.ID)
	return nil
}

func (n *flakyNotifier) snapshot() ([]string, map[string]int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	attempts := make(map[string]int, len(n.attempts))
	for k, v := range n.attempts {
		attempts[k] = v
	}
	return append([]string(nil), n.delivered...), attempts
}

func init() {
	RetryDelay = time.Millisecond
}

func TestBroker_DeliversWithRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	log := zerolog.Nop()
	wg := &sync.WaitGroup{}
	notifier := &flakyNotifier{failures: 2, attempts: map[string]int{}}
	b := InitBroker(ctx, notifier, &config.QueueConfig{WorkerNumber: 2, RetryNumber: 3, QueueSize: 8}, &log, wg)
	b.ListenAndProcess()

	b.Publish(modelqueue.LedgerEvent{ID: "a"})
	b.Publish(modelqueue.LedgerEvent{ID: "b"})

	require.Eventually(t, func() bool {
		delivered, _ := notifier.snapshot()
		return len(delivered) == 2
	}, 2*time.Second, 5*time.Millisecond)
	_, attempts := notifier.snapshot()
	assert.Equal(t, 3, attempts["a"])
	assert.Equal(t, 3, attempts["b"])

	cancel()
	wg.Wait()
}

func TestBroker_AbandonsAfterRetryLimit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	log := zerolog.Nop()
	wg := &sync.WaitGroup{}
	notifier := &flakyNotifier{failures: 100, attempts: map[string]int{}}
	b := InitBroker(ctx, notifier, &config.QueueConfig{WorkerNumber: 1, RetryNumber: 2, QueueSize: 8}, &log, wg)
	b.ListenAndProcess()

	b.Publish(modelqueue.LedgerEvent{ID: "lost"})
	b.Publish(modelqueue.LedgerEvent{ID: "next"})

	require.Eventually(t, func() bool {
		_, attempts := notifier.snapshot()
		return attempts["next"] == 3
	}, 2*time.Second, 5*time.Millisecond)
	delivered, attempts := notifier.snapshot()
	assert.Empty(t, delivered)
	assert.Equal(t, 3, attempts["lost"])

	cancel()
	wg.Wait()
}

func TestBroker_PublishDropsWhenFull(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	log := zerolog.Nop()
	b := InitBroker(ctx, &flakyNotifier{attempts: map[string]int{}}, &config.QueueConfig{WorkerNumber: 1, QueueSize: 1}, &log, &sync.WaitGroup{})

	// no workers are listening, so only the first event fits
	b.Publish(modelqueue.LedgerEvent{ID: "kept"})
	b.Publish(modelqueue.LedgerEvent{ID: "dropped"})
	require.Len(t, b.queue, 1)
	assert.Equal(t, "kept", (<-b.queue).ID)

	cancel()
	b.Publish(modelqueue.LedgerEvent{ID: "late"})
	assert.Len(t, b.queue, 0)
}
