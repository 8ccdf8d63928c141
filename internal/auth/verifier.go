// Package auth は外部IdPが発行した署名付きトークンの検証を提供する。
// アプリケーション自身はトークンを発行せず、検証してsubject（外部ユーザーID）を
// 取り出すだけの片方向の境界になっている。
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken はトークンの検証に失敗した場合のエラー。
// 期限切れ、署名不一致、issuer不一致をすべてまとめて扱う。
var ErrInvalidToken = errors.New("invalid token")

// TokenVerifier はHMAC署名付きJWTを検証し、subjectを取り出す。
type TokenVerifier struct {
	secret []byte
	issuer string
}

// NewTokenVerifier はTokenVerifierの新しいインスタンスを生成する。
// issuerが空の場合はissuerの検証を行わない。
func NewTokenVerifier(secret, issuer string) *TokenVerifier {
	return &TokenVerifier{
		secret: []byte(secret),
		issuer: issuer,
	}
}

// Verify はトークンを検証し、subjectクレーム（外部ユーザーID）を返す。
// 署名方式はHMACのみを許可する（alg混同攻撃の防止）。
func (v *TokenVerifier) Verify(tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}

	if v.issuer != "" && claims.Issuer != v.issuer {
		return "", ErrInvalidToken
	}
	if claims.Subject == "" {
		return "", ErrInvalidToken
	}

	return claims.Subject, nil
}

// IssueForTest はテスト用にHMAC署名付きトークンを発行する。
func IssueForTest(secret, issuer, subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
