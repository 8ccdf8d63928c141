package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/taskwise/internal/auth"
	"github.com/hitoshi/taskwise/internal/middleware"
	"github.com/hitoshi/taskwise/internal/model"
	"github.com/hitoshi/taskwise/internal/watch"
)

func newTestRouter(t *testing.T, taskSvc TaskServiceInterface) (http.Handler, func()) {
	t.Helper()

	rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	if taskSvc == nil {
		taskSvc = &mockTaskService{}
	}

	router := NewRouter(&RouterDeps{
		Verifier:          auth.NewTokenVerifier("test-secret", "taskwise"),
		CORSAllowedOrigin: "http://localhost:3000",
		RateLimiter:       rl,
		Logger:            slog.New(slog.NewJSONHandler(io.Discard, nil)),
		TaskService:       taskSvc,
		ProjectService:    &mockProjectService{},
		UserSyncService:   &mockUserSyncService{},
		ChangeSubscriber:  watch.NewHub(),
	})

	return router, rl.Stop
}

func bearerToken(t *testing.T) string {
	t.Helper()
	token, err := auth.IssueForTest("test-secret", "taskwise", "ext-123", time.Hour)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}
	return token
}

// ヘルスチェックが認証なしで応答することを検証
func TestRouter_Health(t *testing.T) {
	router, stop := newTestRouter(t, nil)
	defer stop()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "ok") {
		t.Errorf("body = %q", rec.Body.String())
	}
}

// トークンなしのAPIアクセスが401で弾かれることを検証
func TestRouter_APIRequiresToken(t *testing.T) {
	called := false
	svc := &mockTaskService{
		listFn: func(ctx context.Context, callerID string) ([]model.Task, error) {
			called = true
			return nil, nil
		},
	}
	router, stop := newTestRouter(t, svc)
	defer stop()

	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if called {
		t.Error("service must not be reached without a token")
	}
}

// 有効なトークンでAPIアクセスが通り、subjectが呼び出し元IDになることを検証
func TestRouter_APIWithToken(t *testing.T) {
	var gotCallerID string
	svc := &mockTaskService{
		listFn: func(ctx context.Context, callerID string) ([]model.Task, error) {
			gotCallerID = callerID
			return []model.Task{}, nil
		},
	}
	router, stop := newTestRouter(t, svc)
	defer stop()

	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	req.Header.Set("Authorization", "Bearer "+bearerToken(t))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if gotCallerID != "ext-123" {
		t.Errorf("callerID = %q, want ext-123", gotCallerID)
	}
}

// ダッシュボードルートが静的セグメントとして解決されることを検証
// （/api/tasks/recentが/{id}に飲み込まれない）
func TestRouter_DashboardRoutes(t *testing.T) {
	recentCalled := false
	upcomingCalled := false
	svc := &mockTaskService{
		listRecentFn: func(ctx context.Context, callerID string) ([]model.Task, error) {
			recentCalled = true
			return nil, nil
		},
		listUpcomingFn: func(ctx context.Context, callerID string) ([]model.Task, error) {
			upcomingCalled = true
			return nil, nil
		},
	}
	router, stop := newTestRouter(t, svc)
	defer stop()

	token := bearerToken(t)
	for _, path := range []string{"/api/tasks/recent", "/api/tasks/upcoming"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("%s: status = %d, want 200", path, rec.Code)
		}
	}
	if !recentCalled || !upcomingCalled {
		t.Error("dashboard handlers were not reached")
	}
}

// OPTIONSプリフライトが認証なしで204になることを検証
func TestRouter_CORSPreflight(t *testing.T) {
	router, stop := newTestRouter(t, nil)
	defer stop()

	req := httptest.NewRequest(http.MethodOptions, "/api/tasks", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
}

// ハンドラーのpanicが500に変換されることを検証
func TestRouter_RecoversFromPanic(t *testing.T) {
	svc := &mockTaskService{
		listFn: func(ctx context.Context, callerID string) ([]model.Task, error) {
			panic("boom")
		},
	}
	router, stop := newTestRouter(t, svc)
	defer stop()

	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	req.Header.Set("Authorization", "Bearer "+bearerToken(t))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}
