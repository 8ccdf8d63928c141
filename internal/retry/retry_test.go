package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/taskwise/internal/model"
)

// testPolicy はテストを高速に保つための待機時間ゼロのポリシー。
func testPolicy(attempts int) Policy {
	return Policy{MaxAttempts: attempts, BaseDelay: time.Millisecond}
}

// 成功時は1回で終了することを検証
func TestDo_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Do(context.Background(), testPolicy(3), func(ctx context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("Do returned error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

// 一時障害はMaxAttempts回までリトライされることを検証
func TestDo_RetriesTransientError(t *testing.T) {
	calls := 0
	transient := errors.New("connection refused")

	err := Do(context.Background(), testPolicy(3), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return transient
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do returned error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

// リトライが尽きた場合は最後のエラーを返すことを検証
func TestDo_ExhaustsAttempts(t *testing.T) {
	calls := 0
	transient := errors.New("connection refused")

	err := Do(context.Background(), testPolicy(2), func(ctx context.Context) error {
		calls++
		return transient
	})
	if !errors.Is(err, transient) {
		t.Fatalf("expected last error, got: %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
}

// ドメインエラー（APIError）はリトライされないことを検証
func TestDo_DomainErrorNotRetried(t *testing.T) {
	calls := 0

	err := Do(context.Background(), testPolicy(3), func(ctx context.Context) error {
		calls++
		return model.NewTaskNotFoundError("task-1")
	})

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got: %v", err)
	}
	if calls != 1 {
		t.Errorf("domain error must not be retried, got %d calls", calls)
	}
}

// コンテキストキャンセルはリトライされないことを検証
func TestDo_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Do(ctx, testPolicy(3), func(ctx context.Context) error {
		calls++
		return errors.New("transient")
	})
	if !errors.Is(err, context.Canceled) && calls != 1 {
		t.Errorf("expected cancellation to stop retries, err=%v calls=%d", err, calls)
	}
}

// バックオフが2倍ずつ増加することを検証
func TestPolicy_Backoff_Doubles(t *testing.T) {
	p := Policy{MaxAttempts: 4, BaseDelay: 100 * time.Millisecond}

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 200 * time.Millisecond},
		{2, 400 * time.Millisecond},
	}
	for _, tc := range cases {
		if got := p.Backoff(tc.attempt); got != tc.want {
			t.Errorf("Backoff(%d) = %v, want %v", tc.attempt, got, tc.want)
		}
	}
}
