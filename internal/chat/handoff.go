package chat

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Notification is the copy of a user message delivered to operators.
type Notification struct {
	SessionID string
	Text      string
	Device    *DeviceInfo
	Timestamp time.Time
}

type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

const defaultDispatchTimeout = 15 * time.Second

// Dispatcher runs fire-and-forget tasks detached from the request context.
// Task errors are logged and dropped.
type Dispatcher struct {
	wg      sync.WaitGroup
	timeout time.Duration
	logger  *zap.Logger
}

func NewDispatcher(timeout time.Duration, logger *zap.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = defaultDispatchTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{timeout: timeout, logger: logger}
}

func (d *Dispatcher) Go(name string, task func(ctx context.Context) error) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		if err := task(ctx); err != nil {
			d.logger.Warn("detached task failed", zap.String("task", name), zap.Error(err))
		}
	}()
}

// Wait blocks until every dispatched task has finished or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// HandoffResponder forwards messages to a human operator and answers with
// the oldest unread operator reply, or a placeholder when there is none.
type HandoffResponder struct {
	store      Store
	notifier   Notifier
	dispatcher *Dispatcher
}

func NewHandoffResponder(store Store, notifier Notifier, dispatcher *Dispatcher) *HandoffResponder {
	return &HandoffResponder{
		store:      store,
		notifier:   notifier,
		dispatcher: dispatcher,
	}
}

func (r *HandoffResponder) Respond(ctx context.Context, req Request) (Answer, error) {
	if r.notifier != nil && r.dispatcher != nil {
		notification := Notification{
			SessionID: req.SessionID,
			Text:      req.Text,
			Device:    req.Device,
			Timestamp: req.Timestamp,
		}
		r.dispatcher.Go("notify_operator", func(ctx context.Context) error {
			return r.notifier.Notify(ctx, notification)
		})
	}

	reply, ok, err := r.store.TakeUnreadReply(ctx, req.SessionID)
	if err != nil {
		return Answer{}, err
	}
	if ok {
		return Answer{Text: reply, Confidence: 0.95, OperatorReply: true}, nil
	}
	return Answer{Text: HandoffPlaceholder, Confidence: 0.5}, nil
}
