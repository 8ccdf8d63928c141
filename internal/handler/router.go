package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/taskwise/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Verifier          middleware.TokenVerifier
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger
	StatusObserver    middleware.StatusObserver

	// サービス
	TaskService     TaskServiceInterface
	ProjectService  ProjectServiceInterface
	UserSyncService UserSyncServiceInterface

	// ライブクエリ
	ChangeSubscriber ChangeSubscriber

	// 運用エンドポイント
	MetricsHandler http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	CORSMiddleware → RecoveryMiddleware → LoggingMiddleware → IdentityMiddleware → RateLimitMiddleware(GeneralMiddleware)
//
// 運用ルート（/health, /metrics）は認証チェーンの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	// 全ルートに効くミドルウェア
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.StatusObserver))

	taskHandler := NewTaskHandler(deps.TaskService)
	projectHandler := NewProjectHandler(deps.ProjectService)
	userHandler := NewUserHandler(deps.UserSyncService)
	streamHandler := NewStreamHandler(deps.ChangeSubscriber)

	// --- 認証不要のルート ---

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Identity → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewIdentityMiddleware(deps.Verifier))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// タスク管理
		r.Route("/api/tasks", func(r chi.Router) {
			r.Get("/", taskHandler.ListTasks)
			r.Post("/", taskHandler.CreateTask)

			// ダッシュボードクエリ
			r.Get("/recent", taskHandler.ListRecentTasks)
			r.Get("/upcoming", taskHandler.ListUpcomingTasks)

			r.Route("/{id}", func(r chi.Router) {
				r.Patch("/", taskHandler.UpdateTask)
				r.Delete("/", taskHandler.DeleteTask)
			})
		})

		// プロジェクト管理
		r.Route("/api/projects", func(r chi.Router) {
			r.Get("/", projectHandler.ListProjects)
			r.Post("/", projectHandler.CreateProject)
			r.Get("/latest", projectHandler.ListLatestProjects)

			r.Route("/{id}", func(r chi.Router) {
				r.Delete("/", projectHandler.DeleteProject)
			})
		})

		// ユーザー同期（同期専用レート制限を追加）
		r.With(deps.RateLimiter.SyncMiddleware()).Post("/api/users/sync", userHandler.SyncUser)

		// ライブクエリ用SSEストリーム
		r.Get("/api/stream", streamHandler.Stream)
	})

	return r
}
