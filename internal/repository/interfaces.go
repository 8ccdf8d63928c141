// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/taskwise/internal/model"
)

// TaskRepository はタスクデータの永続化インターフェース。
// 所有者スコープのクエリはすべてuser_idの等価条件で絞り込む。
type TaskRepository interface {
	// FindByID は指定IDのタスクを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Task, error)

	// Create はタスクを作成する。
	Create(ctx context.Context, task *model.Task) error

	// Update はpatchに含まれるフィールドのみを更新する部分更新を行う。
	// nilのフィールドは変更しない。patchが空の場合は何もしない。
	Update(ctx context.Context, id string, patch model.TaskPatch) error

	// DeleteByID は指定IDのタスクを削除する。
	DeleteByID(ctx context.Context, id string) error

	// ListByUser はユーザーの全タスクを作成日時降順（同時刻はid降順）で返す。
	ListByUser(ctx context.Context, userID string) ([]model.Task, error)

	// ListRecentByUser はユーザーの直近作成タスクを作成日時降順で最大limit件返す。
	ListRecentByUser(ctx context.Context, userID string, limit int) ([]model.Task, error)

	// ListUpcomingByUser はユーザーのタスクを（期限昇順、優先度昇順）の複合順序で
	// 最大limit件返す。期限なしタスクは末尾に並ぶ（NULLS LAST）。
	ListUpcomingByUser(ctx context.Context, userID string, limit int) ([]model.Task, error)
}

// ProjectRepository はプロジェクトデータの永続化インターフェース。
type ProjectRepository interface {
	// FindByID は指定IDのプロジェクトを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Project, error)

	// Create はプロジェクトを作成する。
	Create(ctx context.Context, project *model.Project) error

	// ListByUser はユーザーの全プロジェクトを作成日時降順で返す。
	ListByUser(ctx context.Context, userID string) ([]model.Project, error)

	// ListLatestByUser はユーザーの直近作成プロジェクトを最大limit件返す。
	ListLatestByUser(ctx context.Context, userID string, limit int) ([]model.Project, error)

	// DeleteWithTasks はプロジェクトと所属タスクを同一トランザクションで削除する。
	// 削除された所属タスク数を返す。孤児タスクを残さない。
	DeleteWithTasks(ctx context.Context, projectID string) (int64, error)
}

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByExternalID は外部IdPのsubjectでユーザーを検索する。見つからない場合はnilを返す。
	FindByExternalID(ctx context.Context, externalID string) (*model.User, error)

	// Upsert はexternal_idをキーにユーザーを冪等にUPSERTする。
	// 既存レコードがある場合はName/Email/Username/LastLoginAtを上書きし、
	// 既存の内部IDを返す。新規の場合はuser.IDで挿入してそのIDを返す。
	Upsert(ctx context.Context, user *model.User) (string, error)
}
