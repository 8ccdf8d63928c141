package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/taskwise/internal/middleware"
	"github.com/hitoshi/taskwise/internal/model"
)

// ProjectServiceInterface はプロジェクトハンドラーが必要とするサービスインターフェース。
type ProjectServiceInterface interface {
	// Create はプロジェクトを作成し、新しいプロジェクトのIDを返す。
	Create(ctx context.Context, callerID, name string) (string, error)
	// Delete はプロジェクトと所属タスクを削除する。
	Delete(ctx context.Context, callerID, projectID string) error
	// List は呼び出し元の全プロジェクトを作成日時降順で返す。
	List(ctx context.Context, callerID string) ([]model.Project, error)
	// ListLatest は直近作成プロジェクトを最大5件返す。
	ListLatest(ctx context.Context, callerID string) ([]model.Project, error)
}

// ProjectHandler はプロジェクト管理のHTTPハンドラー。
type ProjectHandler struct {
	service ProjectServiceInterface
}

// NewProjectHandler はProjectHandlerを生成する。
func NewProjectHandler(service ProjectServiceInterface) *ProjectHandler {
	return &ProjectHandler{
		service: service,
	}
}

// createProjectRequest はプロジェクト作成リクエストのボディ。
type createProjectRequest struct {
	Name string `json:"name"`
}

// projectResponse はプロジェクト情報のAPIレスポンス。
type projectResponse struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// toProjectResponses はプロジェクトのスライスをAPIレスポンスに変換する。
// 空の結果はnullではなく空配列として返す。
func toProjectResponses(projects []model.Project) []projectResponse {
	out := make([]projectResponse, 0, len(projects))
	for _, p := range projects {
		out = append(out, projectResponse{
			ID:        p.ID,
			UserID:    p.UserID,
			Name:      p.Name,
			CreatedAt: p.CreatedAt,
		})
	}
	return out
}

// CreateProject はプロジェクト作成を処理する。
// POST /api/projects
func (h *ProjectHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	callerID, err := middleware.CallerIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req createProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, newInvalidRequestError())
		return
	}

	id, err := h.service.Create(r.Context(), callerID, req.Name)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(createdResponse{ID: id})
}

// DeleteProject はプロジェクトと所属タスクの削除を処理する。
// DELETE /api/projects/:id
func (h *ProjectHandler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	callerID, err := middleware.CallerIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	projectID := chi.URLParam(r, "id")

	if err := h.service.Delete(r.Context(), callerID, projectID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListProjects は呼び出し元の全プロジェクトを取得する。
// GET /api/projects
func (h *ProjectHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	h.listWith(w, r, func(ctx context.Context, callerID string) ([]model.Project, error) {
		return h.service.List(ctx, callerID)
	})
}

// ListLatestProjects はダッシュボードの直近作成プロジェクトを取得する。
// GET /api/projects/latest
func (h *ProjectHandler) ListLatestProjects(w http.ResponseWriter, r *http.Request) {
	h.listWith(w, r, func(ctx context.Context, callerID string) ([]model.Project, error) {
		return h.service.ListLatest(ctx, callerID)
	})
}

// listWith は一覧系エンドポイントの共通処理。
func (h *ProjectHandler) listWith(w http.ResponseWriter, r *http.Request, query func(ctx context.Context, callerID string) ([]model.Project, error)) {
	callerID, err := middleware.CallerIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	projects, err := query(r.Context(), callerID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toProjectResponses(projects))
}
