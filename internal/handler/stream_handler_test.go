package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/taskwise/internal/middleware"
	"github.com/hitoshi/taskwise/internal/watch"
)

// sseRecorder は書き込みをスレッドセーフに蓄積し、書き込みのたびに通知する。
type sseRecorder struct {
	mu      sync.Mutex
	header  http.Header
	body    strings.Builder
	status  int
	written chan struct{}
}

func newSSERecorder() *sseRecorder {
	return &sseRecorder{
		header:  make(http.Header),
		written: make(chan struct{}, 16),
	}
}

func (r *sseRecorder) Header() http.Header { return r.header }

func (r *sseRecorder) WriteHeader(code int) {
	r.mu.Lock()
	r.status = code
	r.mu.Unlock()
}

func (r *sseRecorder) Write(b []byte) (int, error) {
	r.mu.Lock()
	n, err := r.body.Write(b)
	r.mu.Unlock()
	select {
	case r.written <- struct{}{}:
	default:
	}
	return n, err
}

func (r *sseRecorder) Flush() {}

func (r *sseRecorder) Body() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.body.String()
}

func (r *sseRecorder) waitForEvent(t *testing.T, event string) {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		if strings.Contains(r.Body(), event) {
			return
		}
		select {
		case <-r.written:
		case <-deadline:
			t.Fatalf("event %q did not arrive, body: %q", event, r.Body())
		}
	}
}

// 変更通知がSSEのchangeイベントとして配信されることを検証
func TestStreamHandler_DeliversChangeEvents(t *testing.T) {
	hub := watch.NewHub()
	h := NewStreamHandler(hub)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/stream", nil).WithContext(
		middleware.ContextWithCallerID(ctx, "ext-123"),
	)
	rec := newSSERecorder()

	done := make(chan struct{})
	go func() {
		h.Stream(rec, req)
		close(done)
	}()

	rec.waitForEvent(t, "event: connected")
	hub.Notify("ext-123")
	rec.waitForEvent(t, "event: change")

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler did not stop on context cancel")
	}

	if rec.header.Get("Content-Type") != "text/event-stream" {
		t.Errorf("Content-Type = %q", rec.header.Get("Content-Type"))
	}
}

// 他ユーザーの変更が配信されないことを検証
func TestStreamHandler_OwnerScoped(t *testing.T) {
	hub := watch.NewHub()
	h := NewStreamHandler(hub)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/stream", nil).WithContext(
		middleware.ContextWithCallerID(ctx, "ext-123"),
	)
	rec := newSSERecorder()

	done := make(chan struct{})
	go func() {
		h.Stream(rec, req)
		close(done)
	}()

	rec.waitForEvent(t, "event: connected")
	hub.Notify("other-user")
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-done

	if strings.Contains(rec.Body(), "event: change") {
		t.Error("change event for another owner must not be delivered")
	}
}

// 認証コンテキストなしのリクエストが401になることを検証
func TestStreamHandler_Unauthenticated(t *testing.T) {
	h := NewStreamHandler(watch.NewHub())

	req := httptest.NewRequest(http.MethodGet, "/api/stream", nil)
	rec := httptest.NewRecorder()
	h.Stream(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}
