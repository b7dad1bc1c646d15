package portal

import (
	"context"
	"time"

	apperrors "roster-sync/pkg/errors"
)

const (
	SettleFixed  = "fixed"
	SettleStable = "stable"
)

// SettleConfig: в режиме fixed ждём Period целиком; в stable выходим раньше,
// если число сотрудников не менялось StableWindow, но не позже Period.
type SettleConfig struct {
	Mode         string
	Period       time.Duration
	StableWindow time.Duration
	PollInterval time.Duration
}

func Settle(ctx context.Context, acc *Accumulator, cfg SettleConfig) error {
	if cfg.Period <= 0 {
		return nil
	}
	deadline := time.NewTimer(cfg.Period)
	defer deadline.Stop()

	if cfg.Mode != SettleStable || cfg.StableWindow <= 0 {
		select {
		case <-deadline.C:
			return nil
		case <-ctx.Done():
			return apperrors.NewSessionError(apperrors.StageSettle, context.Cause(ctx))
		}
	}

	poll := cfg.PollInterval
	if poll <= 0 {
		poll = 250 * time.Millisecond
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	lastLen := acc.Len()
	lastChange := time.Now()
	for {
		select {
		case <-deadline.C:
			return nil
		case <-ctx.Done():
			return apperrors.NewSessionError(apperrors.StageSettle, context.Cause(ctx))
		case <-ticker.C:
			n := acc.Len()
			if n != lastLen {
				lastLen = n
				lastChange = time.Now()
				continue
			}
			// Пока не пришёл ни один подходящий ответ, ждём до Period.
			if acc.Payloads() > 0 && time.Since(lastChange) >= cfg.StableWindow {
				return nil
			}
		}
	}
}
