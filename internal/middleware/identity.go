// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/hitoshi/taskwise/internal/model"
)

const bearerPrefix = "Bearer "

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// callerIDContextKey はリクエストコンテキストに呼び出し元IDを格納するためのキー。
var callerIDContextKey = contextKey("caller_id")

// TokenVerifier はトークンの検証に必要なインターフェース。
// auth.TokenVerifierの部分集合として定義する。
type TokenVerifier interface {
	Verify(tokenString string) (string, error)
}

// NewIdentityMiddleware はAuthorizationヘッダーのBearerトークンを検証し、
// subject（呼び出し元ID）をリクエストコンテキストに注入するミドルウェアを返す。
// ヘッダーなし・形式不正・検証失敗はいずれも401 Unauthorizedで弾く。
func NewIdentityMiddleware(verifier TokenVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, bearerPrefix) {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			token := strings.TrimSpace(header[len(bearerPrefix):])
			callerID, err := verifier.Verify(token)
			if err != nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			ctx := context.WithValue(r.Context(), callerIDContextKey, callerID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CallerIDFromContext はリクエストコンテキストから呼び出し元IDを取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func CallerIDFromContext(ctx context.Context) (string, error) {
	callerID, ok := ctx.Value(callerIDContextKey).(string)
	if !ok || callerID == "" {
		return "", fmt.Errorf("caller ID not found in context")
	}
	return callerID, nil
}

// ContextWithCallerID はコンテキストに呼び出し元IDを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithCallerID(ctx context.Context, callerID string) context.Context {
	return context.WithValue(ctx, callerIDContextKey, callerID)
}
