// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package ai

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// maxBackoff caps the delay between two attempts.
const maxBackoff = 30 * time.Second

// RetryWithBackoff runs op up to maxAttempts times, sleeping baseDelay,
// 2*baseDelay, 4*baseDelay and so on between attempts. Dimension mismatches
// and context errors are returned immediately since repeating the call
// cannot fix them. The last error is returned when every attempt fails.
func RetryWithBackoff(ctx context.Context, op func() error, maxAttempts int, baseDelay time.Duration) error {
	if maxAttempts <= 0 {
		return ErrInvalidMaxAttempts
	}

	delay := baseDelay
	var err error
	for attempt := 1; ; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if err = op(); err == nil {
			if attempt > 1 {
				slog.Debug("embedding call recovered", "attempt", attempt)
			}
			return nil
		}
		if !retryable(err) || attempt == maxAttempts {
			return err
		}
		slog.Debug("embedding call failed, retrying", "attempt", attempt, "maxAttempts", maxAttempts, "delay", delay, "error", err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay = min(delay*2, maxBackoff)
	}
}

func retryable(err error) bool {
	return !errors.Is(err, ErrDimensionMismatch) &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded)
}
