package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/taskwise/internal/middleware"
	"github.com/hitoshi/taskwise/internal/model"
	"github.com/hitoshi/taskwise/internal/task"
)

// TaskServiceInterface はタスクハンドラーが必要とするサービスインターフェース。
type TaskServiceInterface interface {
	// Create はタスクを作成し、新しいタスクのIDを返す。
	Create(ctx context.Context, callerID string, in task.CreateInput) (string, error)
	// Update はpatchに含まれるフィールドのみを更新する。
	Update(ctx context.Context, callerID, taskID string, patch model.TaskPatch) error
	// Delete はタスクを削除する。
	Delete(ctx context.Context, callerID, taskID string) error
	// List は呼び出し元の全タスクを作成日時降順で返す。
	List(ctx context.Context, callerID string) ([]model.Task, error)
	// ListRecent は直近作成タスクを最大5件返す。
	ListRecent(ctx context.Context, callerID string) ([]model.Task, error)
	// ListUpcoming は期限・優先度順のタスクを最大5件返す。
	ListUpcoming(ctx context.Context, callerID string) ([]model.Task, error)
}

// TaskHandler はタスク管理のHTTPハンドラー。
type TaskHandler struct {
	service TaskServiceInterface
}

// NewTaskHandler はTaskHandlerを生成する。
func NewTaskHandler(service TaskServiceInterface) *TaskHandler {
	return &TaskHandler{
		service: service,
	}
}

// createTaskRequest はタスク作成リクエストのボディ。
type createTaskRequest struct {
	Name      string     `json:"name"`
	Priority  *int       `json:"priority,omitempty"`
	DueDate   *time.Time `json:"due_date,omitempty"`
	Tags      []string   `json:"tags,omitempty"`
	ProjectID *string    `json:"project_id,omitempty"`
}

// updateTaskRequest はタスク部分更新リクエストのボディ。
// 省略されたフィールドは変更されない。
type updateTaskRequest struct {
	Name      *string    `json:"name,omitempty"`
	Completed *bool      `json:"completed,omitempty"`
	Priority  *int       `json:"priority,omitempty"`
	Tags      *[]string  `json:"tags,omitempty"`
	DueDate   *time.Time `json:"due_date,omitempty"`
}

// taskResponse はタスク情報のAPIレスポンス。
type taskResponse struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Name      string     `json:"name"`
	Completed bool       `json:"completed"`
	Priority  int        `json:"priority"`
	DueDate   *time.Time `json:"due_date,omitempty"`
	Tags      []string   `json:"tags"`
	ProjectID *string    `json:"project_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// createdResponse は作成系エンドポイントの共通レスポンス。
type createdResponse struct {
	ID string `json:"id"`
}

// toTaskResponse はドメインモデルをAPIレスポンスに変換する。
func toTaskResponse(t model.Task) taskResponse {
	tags := t.Tags
	if tags == nil {
		tags = []string{}
	}
	return taskResponse{
		ID:        t.ID,
		UserID:    t.UserID,
		Name:      t.Name,
		Completed: t.Completed,
		Priority:  t.Priority,
		DueDate:   t.DueDate,
		Tags:      tags,
		ProjectID: t.ProjectID,
		CreatedAt: t.CreatedAt,
	}
}

// toTaskResponses はタスクのスライスをAPIレスポンスに変換する。
// 空の結果はnullではなく空配列として返す。
func toTaskResponses(tasks []model.Task) []taskResponse {
	out := make([]taskResponse, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, toTaskResponse(t))
	}
	return out
}

// CreateTask はタスク作成を処理する。
// POST /api/tasks
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	callerID, err := middleware.CallerIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, newInvalidRequestError())
		return
	}

	id, err := h.service.Create(r.Context(), callerID, task.CreateInput{
		Name:      req.Name,
		Priority:  req.Priority,
		DueDate:   req.DueDate,
		Tags:      req.Tags,
		ProjectID: req.ProjectID,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(createdResponse{ID: id})
}

// UpdateTask はタスクの部分更新を処理する。
// PATCH /api/tasks/:id
func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	callerID, err := middleware.CallerIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	taskID := chi.URLParam(r, "id")

	var req updateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, newInvalidRequestError())
		return
	}

	patch := model.TaskPatch{
		Name:      req.Name,
		Completed: req.Completed,
		Priority:  req.Priority,
		Tags:      req.Tags,
		DueDate:   req.DueDate,
	}
	if err := h.service.Update(r.Context(), callerID, taskID, patch); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DeleteTask はタスク削除を処理する。
// DELETE /api/tasks/:id
func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	callerID, err := middleware.CallerIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	taskID := chi.URLParam(r, "id")

	if err := h.service.Delete(r.Context(), callerID, taskID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListTasks は呼び出し元の全タスクを取得する。
// GET /api/tasks
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	h.listWith(w, r, func(ctx context.Context, callerID string) ([]model.Task, error) {
		return h.service.List(ctx, callerID)
	})
}

// ListRecentTasks はダッシュボードの直近作成タスクを取得する。
// GET /api/tasks/recent
func (h *TaskHandler) ListRecentTasks(w http.ResponseWriter, r *http.Request) {
	h.listWith(w, r, func(ctx context.Context, callerID string) ([]model.Task, error) {
		return h.service.ListRecent(ctx, callerID)
	})
}

// ListUpcomingTasks はダッシュボードの期限間近タスクを取得する。
// GET /api/tasks/upcoming
func (h *TaskHandler) ListUpcomingTasks(w http.ResponseWriter, r *http.Request) {
	h.listWith(w, r, func(ctx context.Context, callerID string) ([]model.Task, error) {
		return h.service.ListUpcoming(ctx, callerID)
	})
}

// listWith は一覧系エンドポイントの共通処理。
func (h *TaskHandler) listWith(w http.ResponseWriter, r *http.Request, query func(ctx context.Context, callerID string) ([]model.Task, error)) {
	callerID, err := middleware.CallerIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	tasks, err := query(r.Context(), callerID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toTaskResponses(tasks))
}

// newInvalidRequestError はリクエストボディの解析失敗エラーを生成する。
func newInvalidRequestError() *model.APIError {
	return &model.APIError{
		Code:     "INVALID_REQUEST",
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}

// writeAPIErrorResponse は統一エラーフォーマットでレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		statusCode := mapAPIErrorToHTTPStatus(apiErr)
		writeAPIErrorResponse(w, statusCode, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case model.ErrCodeTaskNotFound, model.ErrCodeProjectNotFound:
		return http.StatusNotFound
	case model.ErrCodeValidation:
		return http.StatusBadRequest
	case model.ErrCodeStorageFailure:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
