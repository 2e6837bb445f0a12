package telegram

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Poller harvests operator replies with getUpdates when no webhook is set.
type Poller struct {
	client   *Client
	ingestor *Ingestor
	timeout  time.Duration
	backoff  time.Duration
	logger   *zap.Logger
}

func NewPoller(client *Client, ingestor *Ingestor, logger *zap.Logger) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{
		client:   client,
		ingestor: ingestor,
		timeout:  30 * time.Second,
		backoff:  3 * time.Second,
		logger:   logger,
	}
}

// Run polls until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	var offset int64
	p.logger.Info("telegram poller started")
	for {
		if ctx.Err() != nil {
			p.logger.Info("telegram poller stopped")
			return nil
		}

		updates, next, err := p.client.GetUpdates(ctx, offset, p.timeout)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			if !isPollTimeoutError(err) {
				p.logger.Warn("telegram getUpdates failed", zap.Error(err))
				sleepContext(ctx, p.backoff)
			}
			continue
		}
		offset = next

		for _, update := range updates {
			if err := p.ingestor.HandleUpdate(ctx, update); err != nil {
				p.logger.Warn("telegram update handling failed",
					zap.Int64("update_id", update.UpdateID),
					zap.Error(err),
				)
			}
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
