// Package usersync は外部IdPの認証情報からのユーザーレコード同期を提供する。
package usersync

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/taskwise/internal/metrics"
	"github.com/hitoshi/taskwise/internal/model"
	"github.com/hitoshi/taskwise/internal/repository"
	"github.com/hitoshi/taskwise/internal/retry"
)

// Input はユーザー同期の入力。IdPが報告するプロフィール情報をそのまま受け取る。
type Input struct {
	ExternalID  string
	Name        string
	Email       string
	Username    string
	LastLoginAt int64 // エポックミリ秒
}

// Service はユーザー同期のサービス層。
// セッション開始のたびに呼び出され、external_idをキーに冪等なアップサートを行う。
type Service struct {
	userRepo    repository.UserRepository
	recorder    metrics.Recorder
	retryPolicy retry.Policy
}

// NewService はServiceの新しいインスタンスを生成する。recorderはnil可。
func NewService(userRepo repository.UserRepository, recorder metrics.Recorder, retryPolicy retry.Policy) *Service {
	return &Service{
		userRepo:    userRepo,
		recorder:    recorder,
		retryPolicy: retryPolicy,
	}
}

// Sync はユーザーレコードを冪等にアップサートし、内部ユーザーIDを返す。
// 既存ユーザーの場合はName/Email/Username/LastLoginAtを上書きして既存IDを返す。
// 何度呼び出しても重複行は生じない（external_idの一意インデックスがキー）。
func (s *Service) Sync(ctx context.Context, in Input) (string, error) {
	if in.ExternalID == "" {
		return "", model.NewUnauthorizedError()
	}

	now := time.Now()
	user := &model.User{
		ID:          uuid.New().String(),
		ExternalID:  in.ExternalID,
		Name:        in.Name,
		Email:       in.Email,
		Username:    in.Username,
		LastLoginAt: in.LastLoginAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	var userID string
	err := retry.Do(ctx, s.retryPolicy, func(ctx context.Context) error {
		id, err := s.userRepo.Upsert(ctx, user)
		if err != nil {
			return err
		}
		userID = id
		return nil
	})
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			return "", err
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
		slog.Error("user sync failed",
			slog.String("external_id", in.ExternalID),
			slog.String("error", err.Error()),
		)
		return "", model.NewStorageFailureError()
	}

	slog.Info("user synced",
		slog.String("user_id", userID),
		slog.String("external_id", in.ExternalID),
	)

	if s.recorder != nil {
		s.recorder.RecordUserSync()
	}

	return userID, nil
}
