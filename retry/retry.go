// Package retry provides exponential backoff for connection establishment.
// Reconciliation passes never retry; only the session acquisition that
// precedes a pass is allowed to.
package retry

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
)

type Settings struct {
	InitialBackoff time.Duration
	Multiplier     int
	MaxBackoff     time.Duration
	MaxAttempts    int
}

func (s Settings) Verify() error {
	if s.InitialBackoff <= 0 {
		return errors.Newf("initial backoff must be > 0, got %s", s.InitialBackoff)
	}
	if s.Multiplier < 1 {
		return errors.Newf("multiplier must be >= 1, got %d", s.Multiplier)
	}
	if s.MaxBackoff > 0 && s.InitialBackoff > s.MaxBackoff {
		return errors.Newf("initial backoff (%s) must not exceed max backoff (%s)", s.InitialBackoff, s.MaxBackoff)
	}
	if s.MaxAttempts < 1 {
		return errors.Newf("max attempts must be >= 1, got %d", s.MaxAttempts)
	}
	return nil
}

func DefaultSettings() Settings {
	return Settings{
		InitialBackoff: time.Second,
		Multiplier:     2,
		MaxBackoff:     30 * time.Second,
		MaxAttempts:    5,
	}
}

// fatalMarker tags errors that must not be retried.
var fatalMarker = errors.New("fatal")

// Fatal marks err so Do returns it immediately instead of retrying;
// authentication failures are the typical case.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return errors.Mark(err, fatalMarker)
}

// IsFatal reports whether err carries the Fatal mark.
func IsFatal(err error) bool {
	return errors.Is(err, fatalMarker)
}

// Do invokes fn until it succeeds, the attempt budget is exhausted, fn
// returns a Fatal error, or ctx is done. The last error is returned.
func Do(ctx context.Context, settings Settings, fn func(ctx context.Context) error) error {
	if err := settings.Verify(); err != nil {
		return err
	}
	backoff := settings.InitialBackoff
	var lastErr error
	for attempt := 1; ; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if IsFatal(lastErr) {
			return lastErr
		}
		if attempt >= settings.MaxAttempts {
			return errors.Wrapf(lastErr, "failed after %d attempts", attempt)
		}
		select {
		case <-ctx.Done():
			return errors.CombineErrors(ctx.Err(), lastErr)
		case <-time.After(backoff):
		}
		backoff *= time.Duration(settings.Multiplier)
		if settings.MaxBackoff > 0 && backoff > settings.MaxBackoff {
			backoff = settings.MaxBackoff
		}
	}
}
