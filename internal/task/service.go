// Package task はタスク管理のドメインロジックを提供する。
package task

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

// dashboardLimit はダッシュボードの直近/期限間近クエリの件数上限。
const dashboardLimit = 5

// ChangeNotifier は所有者単位の変更通知インターフェース。
// 書き込み成功時に呼び出され、ライブクエリの再実行を促す。
type ChangeNotifier interface {
	Notify(ownerID string)
}

// Service はタスク管理のサービス層。
// すべての操作は呼び出し元の認証情報（所有者ID）を明示的に受け取り、
// 所有権の検証をストレージアクセスの前後で行う。
type Service struct {
	taskRepo    repository.TaskRepository
	projectRepo repository.ProjectRepository
	notifier    ChangeNotifier
	recorder    metrics.Recorder
	retryPolicy retry.Policy
}

// NewService はServiceの新しいインスタンスを生成する。
// notifierとrecorderはnil可（通知・計測を行わない）。
func NewService(
	taskRepo repository.TaskRepository,
	projectRepo repository.ProjectRepository,
	notifier ChangeNotifier,
	recorder metrics.Recorder,
	retryPolicy retry.Policy,
) *Service {
	return &Service{
		taskRepo:    taskRepo,
		projectRepo: projectRepo,
		notifier:    notifier,
		recorder:    recorder,
		retryPolicy: retryPolicy,
	}
}

// CreateInput はタスク作成の入力。
// Priorityが未指定の場合はmodel.DefaultPriorityを適用する。
type CreateInput struct {
	Name      string
	Priority  *int
	DueDate   *time.Time
	Tags      []string
	ProjectID *string
}

// Create はタスクを作成し、新しいタスクのIDを返す。
// ProjectIDが指定された場合、参照先プロジェクトは呼び出し元の所有で
// なければならない（他ユーザーのプロジェクトは「存在しない」扱い）。
func (s *Service) Create(ctx context.Context, callerID string, in CreateInput) (string, error) {
	if callerID == "" {
		return "", model.NewUnauthorizedError()
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		return "", model.NewValidationError("タスク名を入力してください")
	}

	priority := model.DefaultPriority
	if in.Priority != nil {
		if !model.ValidPriority(*in.Priority) {
			return "", model.NewValidationError("優先度は1〜5の範囲で指定してください")
		}
		priority = *in.Priority
	}

	if in.ProjectID != nil {
		project, err := s.findProject(ctx, *in.ProjectID)
		if err != nil {
			return "", err
		}
		if project == nil || project.UserID != callerID {
			return "", model.NewProjectNotFoundError(*in.ProjectID)
		}
	}

	task := &model.Task{
		ID:        uuid.New().String(),
		UserID:    callerID,
		Name:      name,
		Completed: false,
		Priority:  priority,
		DueDate:   in.DueDate,
		Tags:      dedupeTags(in.Tags),
		ProjectID: in.ProjectID,
		CreatedAt: time.Now(),
	}

	err := s.withRetry(ctx, "create_task", func(ctx context.Context) error {
		return s.taskRepo.Create(ctx, task)
	})
	if err != nil {
		return "", err
	}

	if s.recorder != nil {
		s.recorder.RecordTaskCreated()
	}
	s.notifyChanged(callerID)

	return task.ID, nil
}

// Update はpatchに含まれるフィールドのみを更新する部分更新を行う。
// 存在しないタスク、および他ユーザーのタスクはいずれもTASK_NOT_FOUNDになる。
func (s *Service) Update(ctx context.Context, callerID, taskID string, patch model.TaskPatch) error {
	if callerID == "" {
		return model.NewUnauthorizedError()
	}

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return model.NewValidationError("タスク名を入力してください")
		}
		patch.Name = &name
	}
	if patch.Priority != nil && !model.ValidPriority(*patch.Priority) {
		return model.NewValidationError("優先度は1〜5の範囲で指定してください")
	}
	if patch.Tags != nil {
		tags := dedupeTags(*patch.Tags)
		patch.Tags = &tags
	}

	if _, err := s.findOwnedTask(ctx, callerID, taskID); err != nil {
		return err
	}

	err := s.withRetry(ctx, "update_task", func(ctx context.Context) error {
		return s.taskRepo.Update(ctx, taskID, patch)
	})
	if err != nil {
		return err
	}

	if s.recorder != nil {
		s.recorder.RecordTaskUpdated()
	}
	s.notifyChanged(callerID)

	return nil
}

// Delete はタスクを削除する。not-foundの扱いはUpdateと同じ。
func (s *Service) Delete(ctx context.Context, callerID, taskID string) error {
	if callerID == "" {
		return model.NewUnauthorizedError()
	}

	if _, err := s.findOwnedTask(ctx, callerID, taskID); err != nil {
		return err
	}

	err := s.withRetry(ctx, "delete_task", func(ctx context.Context) error {
		return s.taskRepo.DeleteByID(ctx, taskID)
	})
	if err != nil {
		return err
	}

	if s.recorder != nil {
		s.recorder.RecordTaskDeleted()
	}
	s.notifyChanged(callerID)

	return nil
}

// List は呼び出し元の全タスクを作成日時降順で返す。
func (s *Service) List(ctx context.Context, callerID string) ([]model.Task, error) {
	return s.listTasks(ctx, callerID, "list_tasks", func(ctx context.Context) ([]model.Task, error) {
		return s.taskRepo.ListByUser(ctx, callerID)
	})
}

// ListRecent は呼び出し元の直近作成タスクを最大5件、作成日時降順で返す。
func (s *Service) ListRecent(ctx context.Context, callerID string) ([]model.Task, error) {
	return s.listTasks(ctx, callerID, "recent_tasks", func(ctx context.Context) ([]model.Task, error) {
		return s.taskRepo.ListRecentByUser(ctx, callerID, dashboardLimit)
	})
}

// ListUpcoming は呼び出し元のタスクを（期限昇順、優先度昇順）で最大5件返す。
// 期限なしタスクは末尾に並ぶ（リポジトリのNULLS LASTポリシー）。
func (s *Service) ListUpcoming(ctx context.Context, callerID string) ([]model.Task, error) {
	return s.listTasks(ctx, callerID, "upcoming_tasks", func(ctx context.Context) ([]model.Task, error) {
		return s.taskRepo.ListUpcomingByUser(ctx, callerID, dashboardLimit)
	})
}

// listTasks は認証確認・リトライ・レイテンシ計測を共通化したクエリ実行ヘルパー。
func (s *Service) listTasks(ctx context.Context, callerID, operation string, query func(ctx context.Context) ([]model.Task, error)) ([]model.Task, error) {
	if callerID == "" {
		return nil, model.NewUnauthorizedError()
	}

	start := time.Now()
	var tasks []model.Task
	err := s.withRetry(ctx, operation, func(ctx context.Context) error {
		result, err := query(ctx)
		if err != nil {
			return err
		}
		tasks = result
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.recorder != nil {
		s.recorder.RecordQueryLatency(operation, time.Since(start))
	}

	return tasks, nil
}

// findOwnedTask は呼び出し元が所有するタスクを取得する。
// 存在しない場合と所有者が異なる場合を区別せずTASK_NOT_FOUNDを返す。
func (s *Service) findOwnedTask(ctx context.Context, callerID, taskID string) (*model.Task, error) {
	var task *model.Task
	err := s.withRetry(ctx, "find_task", func(ctx context.Context) error {
		t, err := s.taskRepo.FindByID(ctx, taskID)
		if err != nil {
			return err
		}
		task = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	if task == nil || task.UserID != callerID {
		return nil, model.NewTaskNotFoundError(taskID)
	}

	return task, nil
}

// findProject はプロジェクトを取得する。見つからない場合はnilを返す。
func (s *Service) findProject(ctx context.Context, projectID string) (*model.Project, error) {
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
		return nil, err
	}
	return project, nil
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

// dedupeTags は空白を除去し、空要素と重複を取り除いたタグ集合を返す。
// 最初の出現順を保持する。
func dedupeTags(tags []string) []string {
	result := []string{}
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		result = append(result, tag)
	}
	return result
}
