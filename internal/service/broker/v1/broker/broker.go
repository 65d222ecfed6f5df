// Package broker delivers committed ledger events to the notification webhook in the background.
package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/danilovkiri/dk-go-mmsledger/internal/config"
	"github.com/danilovkiri/dk-go-mmsledger/internal/models/modelqueue"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// RetryDelay is the pause before the first redelivery; it grows linearly with each retry.
var RetryDelay = time.Second

// Notifier sends one event to its destination.
type Notifier interface {
	Notify(ctx context.Context, event modelqueue.LedgerEvent) error
}

type Broker struct {
	ctx      context.Context
	log      *zerolog.Logger
	cfg      *config.QueueConfig
	notifier Notifier
	queue    chan modelqueue.LedgerEvent
	wg       *sync.WaitGroup
}

type NotifyWorker struct {
	ID       int
	ctx      context.Context
	log      *zerolog.Logger
	retries  int
	notifier Notifier
	queue    chan modelqueue.LedgerEvent
}

func InitBroker(ctx context.Context, notifier Notifier, cfg *config.QueueConfig, log *zerolog.Logger, wg *sync.WaitGroup) *Broker {
	broker := Broker{
		ctx:      ctx,
		log:      log,
		cfg:      cfg,
		notifier: notifier,
		queue:    make(chan modelqueue.LedgerEvent, cfg.QueueSize),
		wg:       wg,
	}
	return &broker
}

// Publish enqueues an event without blocking; a full queue drops it.
func (b *Broker) Publish(event modelqueue.LedgerEvent) {
	if b.ctx.Err() != nil {
		b.log.Warn().Msg(fmt.Sprintf("event %s (%s) dropped, broker is shutting down", event.ID, event.Operation))
		return
	}
	select {
	case b.queue <- event:
	default:
		b.log.Warn().Msg(fmt.Sprintf("event %s (%s) dropped, notification queue is full", event.ID, event.Operation))
	}
}

func (b *Broker) ListenAndProcess() {
	b.wg.Add(1)
	go func() {
		b.log.Info().Msg(fmt.Sprintf("started %d notification workers", b.cfg.WorkerNumber))
		defer b.wg.Done()
		g, _ := errgroup.WithContext(b.ctx)
		for i := 0; i < b.cfg.WorkerNumber; i++ {
			w := &NotifyWorker{ID: i, ctx: b.ctx, log: b.log, retries: b.cfg.RetryNumber, notifier: b.notifier, queue: b.queue}
			g.Go(w.processAsync)
		}
		<-b.ctx.Done()
		err := g.Wait()
		if err != nil {
			b.log.Error().Err(err).Msg("closing errgroup failed")
		}
		b.log.Info().Msg(fmt.Sprintf("stopped notification workers, %d events left undelivered", len(b.queue)))
	}()
}

func (w *NotifyWorker) processAsync() error {
	for {
		select {
		case <-w.ctx.Done():
			return nil
		case event := <-w.queue:
			w.deliver(event)
		}
	}
}

// deliver tries an event until it succeeds, runs out of retries or the broker stops.
func (w *NotifyWorker) deliver(event modelqueue.LedgerEvent) {
	for {
		err := w.notifier.Notify(w.ctx, event)
		if err == nil {
			w.log.Info().Msg(fmt.Sprintf("WID %v, event %s (%s) delivered", w.ID, event.ID, event.Operation))
			return
		}
		if event.RetryCount >= w.retries {
			w.log.Warn().Err(err).Msg(fmt.Sprintf("WID %v, event %s abandoned after %d retries", w.ID, event.ID, event.RetryCount))
			return
		}
		event.RetryCount++
		w.log.Warn().Err(err).Msg(fmt.Sprintf("WID %v, event %s delivery failed, retry %d", w.ID, event.ID, event.RetryCount))
		select {
		case <-w.ctx.Done():
			return
		case <-time.After(RetryDelay * time.Duration(event.RetryCount)):
		}
	}
}
