// Package project はプロジェクト管理のドメインロジックを提供する。
package project

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/taskwise/internal/metrics"
	"github.com/hitoshi/taskwise/internal/model"
	"github.com/hitoshi/taskwise/internal/repository"
	"github.com/hitoshi/taskwise/internal/retry"
)

// latestLimit はダッシュボードの直近プロジェクトクエリの件数上限。
const latestLimit = 5

// ChangeNotifier は所有者単位の変更通知インターフェース。
type ChangeNotifier interface {
	Notify(ownerID string)
}

// Service はプロジェクト管理のサービス層。
// プロジェクト削除は所属タスクのカスケード削除を含む。
type Service struct {
	projectRepo repository.ProjectRepository
	notifier    ChangeNotifier
	recorder    metrics.Recorder
	retryPolicy retry.Policy
}

// NewService はServiceの新しいインスタンスを生成する。
// notifierとrecorderはnil可（通知・計測を行わない）。
func NewService(
	projectRepo repository.ProjectRepository,
	notifier ChangeNotifier,
	recorder metrics.Recorder,
	retryPolicy retry.Policy,
) *Service {
	return &Service{
		projectRepo: projectRepo,
		notifier:    notifier,
		recorder:    recorder,
		retryPolicy: retryPolicy,
	}
}

// Create はプロジェクトを作成し、新しいプロジェクトのIDを返す。
func (s *Service) Create(ctx context.Context, callerID, name string) (string, error) {
	if callerID == "" {
		return "", model.NewUnauthorizedError()
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return "", model.NewValidationError("プロジェクト名を入力してください")
	}

	project := &model.Project{
		ID:        uuid.New().String(),
		UserID:    callerID,
		Name:      name,
		CreatedAt: time.Now(),
	}

	err := s.withRetry(ctx, "create_project", func(ctx context.Context) error {
		return s.projectRepo.Create(ctx, project)
	})
	if err != nil {
		return "", err
	}

	if s.recorder != nil {
		s.recorder.RecordProjectCreated()
	}
	s.notifyChanged(callerID)

	return project.ID, nil
}

// List は呼び出し元の全プロジェクトを作成日時降順で返す。
func (s *Service) List(ctx context.Context, callerID string) ([]model.Project, error) {
	return s.listProjects(ctx, callerID, "list_projects", func(ctx context.Context) ([]model.Project, error) {
		return s.projectRepo.ListByUser(ctx, callerID)
	})
}

// ListLatest は呼び出し元の直近作成プロジェクトを最大5件返す。
func (s *Service) ListLatest(ctx context.Context, callerID string) ([]model.Project, error) {
	return s.listProjects(ctx, callerID, "latest_projects", func(ctx context.Context) ([]model.Project, error) {
		return s.projectRepo.ListLatestByUser(ctx, callerID, latestLimit)
	})
}

// Delete はプロジェクトと所属タスクを削除する。
// 削除は単一トランザクションで実行され、孤児タスクを残さない。
// 存在しない場合と所有者が異なる場合を区別せずPROJECT_NOT_FOUNDを返す。
func (s *Service) Delete(ctx context.Context, callerID, projectID string) error {
	if callerID == "" {
		return model.NewUnauthorizedError()
	}

	var project *model.Project
	err := s.withRetry(ctx, "find_project", func(ctx context.Context) error {
		p, err := s.projectRepo.FindByID(ctx, projectID)
		if err != nil {
			return err
		}
		project = p
		return nil
	})
	if err != nil {
		return err
	}
	if project == nil || project.UserID != callerID {
		return model.NewProjectNotFoundError(projectID)
	}

	var cascaded int64
	err = s.withRetry(ctx, "delete_project", func(ctx context.Context) error {
		n, err := s.projectRepo.DeleteWithTasks(ctx, projectID)
		if err != nil {
			return err
		}
		cascaded = n
		return nil
	})
	if err != nil {
		return err
	}

	slog.Info("project deleted",
		slog.String("project_id", projectID),
		slog.Int64("cascaded_tasks", cascaded),
	)

	if s.recorder != nil {
		s.recorder.RecordProjectDeleted(cascaded)
	}
	s.notifyChanged(callerID)

	return nil
}

// listProjects は認証確認・リトライ・レイテンシ計測を共通化したクエリ実行ヘルパー。
func (s *Service) listProjects(ctx context.Context, callerID, operation string, query func(ctx context.Context) ([]model.Project, error)) ([]model.Project, error) {
	if callerID == "" {
		return nil, model.NewUnauthorizedError()
	}

	start := time.Now()
	var projects []model.Project
	err := s.withRetry(ctx, operation, func(ctx context.Context) error {
		result, err := query(ctx)
		if err != nil {
			return err
		}
		projects = result
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.recorder != nil {
		s.recorder.RecordQueryLatency(operation, time.Since(start))
	}

	return projects, nil
}

// withRetry は一時障害に対する有界リトライを実行する。
// リトライが尽きた場合は詳細をログに記録し、STORAGE_FAILUREとして返す。
func (s *Service) withRetry(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	err := retry.Do(ctx, s.retryPolicy, fn)
	if err == nil {
		return nil
	}

	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	slog.Error("storage operation failed",
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
	return model.NewStorageFailureError()
}

// notifyChanged は所有者の購読者に変更を通知する。
func (s *Service) notifyChanged(ownerID string) {
	if s.notifier != nil {
		s.notifier.Notify(ownerID)
	}
}
