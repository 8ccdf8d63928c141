// Package retry は一時的なストレージ障害に対する有界リトライを提供する。
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/taskwise/internal/model"
)

// Policy はリトライ回数とバックオフの設定を保持する。
type Policy struct {
	MaxAttempts int           // 初回実行を含む最大試行回数
	BaseDelay   time.Duration // 初回リトライまでの待機時間。以降2倍ずつ増加
}

// DefaultPolicy は既定のリトライ設定を返す。
// 3回試行、初回100ms、2倍ずつのバックオフ。
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   100 * time.Millisecond,
	}
}

// Backoff はリトライ回数に応じた待機時間を返す。
// attemptは0始まり（最初のリトライが0）。
func (p Policy) Backoff(attempt int) time.Duration {
	delay := p.BaseDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
	}
	return delay
}

// Do はfnを成功するまで最大MaxAttempts回実行する。
// ドメインエラー（*model.APIError）とコンテキストのキャンセルはリトライしない。
// リトライが尽きた場合は最後のエラーを返す。
func Do(ctx context.Context, policy Policy, fn func(ctx context.Context) error) error {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(policy.Backoff(attempt - 1))
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		// ドメインエラーは一時障害ではないため即座に返す
		var apiErr *model.APIError
		if errors.As(lastErr, &apiErr) {
			return lastErr
		}
		if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
			return lastErr
		}
	}

	return lastErr
}
