package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/taskwise/internal/middleware"
	"github.com/hitoshi/taskwise/internal/model"
	"github.com/hitoshi/taskwise/internal/usersync"
)

// UserSyncServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserSyncServiceInterface interface {
	// Sync はユーザーレコードを冪等にアップサートし、内部ユーザーIDを返す。
	Sync(ctx context.Context, in usersync.Input) (string, error)
}

// UserHandler はユーザー同期のHTTPハンドラー。
type UserHandler struct {
	service UserSyncServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserSyncServiceInterface) *UserHandler {
	return &UserHandler{
		service: service,
	}
}

// syncUserRequest はユーザー同期リクエストのボディ。
// external_idはボディではなく検証済みトークンのsubjectから取る。
type syncUserRequest struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Username    string `json:"username"`
	LastLoginAt int64  `json:"last_login_at"` // エポックミリ秒
}

// syncUserResponse はユーザー同期のAPIレスポンス。
type syncUserResponse struct {
	UserID string `json:"user_id"`
}

// SyncUser はユーザーレコードの同期を処理する。
// セッション開始のたびに呼ばれ、何度呼んでも同じユーザーに収束する。
// POST /api/users/sync
func (h *UserHandler) SyncUser(w http.ResponseWriter, r *http.Request) {
	callerID, err := middleware.CallerIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req syncUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, newInvalidRequestError())
		return
	}

	userID, err := h.service.Sync(r.Context(), usersync.Input{
		ExternalID:  callerID,
		Name:        req.Name,
		Email:       req.Email,
		Username:    req.Username,
		LastLoginAt: req.LastLoginAt,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(syncUserResponse{UserID: userID})
}
