package mailer

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	kit "digestbot/internal/transport"
	logx "digestbot/pkg/logx"
)

// Dispatcher performs the paced, serial delivery of parts to recipients.
//
// Pacing has two layers: a token-bucket limiter capping the global send rate,
// and fixed inter-part / inter-recipient delays matching what the platform
// tolerates for bulk messaging.
type Dispatcher struct {
	adapter kit.Adapter
	limiter *rate.Limiter
	log     logx.Logger

	partDelay      time.Duration
	recipientDelay time.Duration

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewDispatcher(adapter kit.Adapter, cfg Config, log logx.Logger) *Dispatcher {
	cfg = cfg.withDefaults()
	return &Dispatcher{
		adapter:        adapter,
		limiter:        rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
		log:            log,
		partDelay:      cfg.PartDelay,
		recipientDelay: cfg.RecipientDelay,
		sleep:          sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Dispatch sends every part to every recipient, serially. Failures are
// isolated per recipient; the only error Dispatch itself returns is context
// cancellation, with the counts accumulated so far.
func (d *Dispatcher) Dispatch(ctx context.Context, recipients []int64, parts []MessagePart) (Summary, error) {
	sum := Summary{Total: len(recipients), Parts: len(parts)}
	if len(recipients) == 0 || len(parts) == 0 {
		return sum, nil
	}

	for i, userID := range recipients {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		outcome, err := d.deliverAll(ctx, userID, parts)
		if err != nil {
			return sum, err
		}
		switch outcome {
		case OutcomeDelivered:
			sum.Delivered++
		case OutcomeBlocked:
			sum.Blocked++
		case OutcomeFailed:
			sum.Failed++
		}

		if i < len(recipients)-1 {
			if err := d.sleep(ctx, d.recipientDelay); err != nil {
				return sum, err
			}
		}
	}
	return sum, nil
}

// deliverAll sends all parts to one recipient. A non-nil error means the run
// must stop (context is done); everything else is folded into the outcome.
func (d *Dispatcher) deliverAll(ctx context.Context, userID int64, parts []MessagePart) (Outcome, error) {
	to := kit.ChatTarget{ChatID: userID}

	for i, part := range parts {
		if err := d.limiter.Wait(ctx); err != nil {
			return OutcomeFailed, err
		}

		err := d.sendPart(ctx, to, part)
		if err != nil {
			kind, retryAfter := kit.ClassifySend(err)

			// One retry per throttled part, after the mandated pause.
			if kind == kit.SendThrottled {
				d.log.Warn("send throttled",
					logx.Int64("user_id", userID),
					logx.Duration("retry_after", retryAfter))
				if serr := d.sleep(ctx, retryAfter); serr != nil {
					return OutcomeFailed, serr
				}
				err = d.sendPart(ctx, to, part)
				if err != nil {
					kind, _ = kit.ClassifySend(err)
				}
			}

			switch {
			case err == nil:
				// retry succeeded
			case kind == kit.SendBlocked:
				d.log.Debug("recipient unreachable", logx.Int64("user_id", userID))
				return OutcomeBlocked, nil
			default:
				if cerr := ctx.Err(); cerr != nil {
					return OutcomeFailed, cerr
				}
				d.log.Warn("send failed",
					logx.Int64("user_id", userID),
					logx.Int("part", i),
					logx.Err(err))
				return OutcomeFailed, nil
			}
		}

		if i < len(parts)-1 {
			if err := d.sleep(ctx, d.partDelay); err != nil {
				return OutcomeFailed, err
			}
		}
	}
	return OutcomeDelivered, nil
}

func (d *Dispatcher) sendPart(ctx context.Context, to kit.ChatTarget, part MessagePart) error {
	if part.Copy != nil {
		return d.adapter.CopyMessage(ctx, to, *part.Copy)
	}
	_, err := d.adapter.SendText(ctx, to, part.Text, &kit.SendOptions{
		ParseMode:      "HTML",
		DisablePreview: false,
	})
	return err
}
