package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/taskwise/internal/model"
)

type mockVerifier struct {
	verifyFn func(tokenString string) (string, error)
}

func (m *mockVerifier) Verify(tokenString string) (string, error) {
	if m.verifyFn != nil {
		return m.verifyFn(tokenString)
	}
	return "", errors.New("not configured")
}

// 有効なトークンで呼び出し元IDがコンテキストに注入されることを検証
func TestIdentityMiddleware_ValidToken(t *testing.T) {
	verifier := &mockVerifier{
		verifyFn: func(tokenString string) (string, error) {
			if tokenString != "valid-token" {
				t.Errorf("token = %q, want valid-token", tokenString)
			}
			return "ext-123", nil
		},
	}

	var gotCallerID string
	handler := NewIdentityMiddleware(verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		callerID, err := CallerIDFromContext(r.Context())
		if err != nil {
			t.Errorf("CallerIDFromContext returned error: %v", err)
		}
		gotCallerID = callerID
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	req.Header.Set("Authorization", "Bearer valid-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if gotCallerID != "ext-123" {
		t.Errorf("callerID = %q, want ext-123", gotCallerID)
	}
}

// Authorizationヘッダーなしのリクエストが401で弾かれることを検証
func TestIdentityMiddleware_MissingHeader(t *testing.T) {
	handlerCalled := false
	handler := NewIdentityMiddleware(&mockVerifier{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if handlerCalled {
		t.Error("handler must not run without credentials")
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	if body.Code != model.ErrCodeUnauthorized {
		t.Errorf("code = %q, want %s", body.Code, model.ErrCodeUnauthorized)
	}
}

// 検証に失敗したトークンが401で弾かれることを検証
func TestIdentityMiddleware_InvalidToken(t *testing.T) {
	verifier := &mockVerifier{
		verifyFn: func(tokenString string) (string, error) {
			return "", errors.New("invalid token")
		},
	}
	handler := NewIdentityMiddleware(verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not run with an invalid token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	req.Header.Set("Authorization", "Bearer forged")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

// Bearer以外のスキームが401で弾かれることを検証
func TestIdentityMiddleware_NonBearerScheme(t *testing.T) {
	handler := NewIdentityMiddleware(&mockVerifier{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

// コンテキストヘルパーの往復を検証
func TestCallerIDContext_RoundTrip(t *testing.T) {
	ctx := ContextWithCallerID(context.Background(), "ext-123")

	callerID, err := CallerIDFromContext(ctx)
	if err != nil {
		t.Fatalf("CallerIDFromContext returned error: %v", err)
	}
	if callerID != "ext-123" {
		t.Errorf("callerID = %q, want ext-123", callerID)
	}

	if _, err := CallerIDFromContext(context.Background()); err == nil {
		t.Error("expected error for a context without caller ID")
	}
}
