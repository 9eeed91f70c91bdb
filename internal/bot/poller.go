package bot

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/wbfreight/dispatch/internal/telegram"
)

const (
	pollTimeoutSec = 30
	pollRetryDelay = 3 * time.Second
)

// Poller runs the getUpdates long-poll loop and feeds every update to
// the wizard. Per-update failures are logged and skipped; only context
// cancellation stops the loop.
type Poller struct {
	client *telegram.Client
	bot    *Bot
	logger *slog.Logger
}

func NewPoller(client *telegram.Client, bot *Bot, logger *slog.Logger) *Poller {
	return &Poller{
		client: client,
		bot:    bot,
		logger: logger,
	}
}

func (p *Poller) Run(ctx context.Context) error {
	var offset int64

	for {
		updates, err := p.client.GetUpdates(ctx, offset, pollTimeoutSec)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return ctx.Err()
			}
			p.logger.Error("failed to fetch updates", "error", err)
			select {
			case <-time.After(pollRetryDelay):
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		for _, update := range updates {
			if update.UpdateID >= offset {
				offset = update.UpdateID + 1
			}
			if err := p.bot.HandleUpdate(ctx, update); err != nil {
				p.logger.Error("failed to handle update", "update_id", update.UpdateID, "error", err)
			}
		}
	}
}
