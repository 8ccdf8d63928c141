package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/taskwise/internal/model"
)

// プロジェクト一覧の並び順。同時刻の作成はidで安定化する。
const projectOrderByCreation = "ORDER BY created_at DESC, id DESC"

// PostgresProjectRepo はPostgreSQLを使用したプロジェクトリポジトリ。
type PostgresProjectRepo struct {
	db *sql.DB
}

// NewPostgresProjectRepo はPostgresProjectRepoを生成する。
func NewPostgresProjectRepo(db *sql.DB) *PostgresProjectRepo {
	return &PostgresProjectRepo{db: db}
}

// FindByID は指定IDのプロジェクトを取得する。見つからない場合はnilを返す。
func (r *PostgresProjectRepo) FindByID(ctx context.Context, id string) (*model.Project, error) {
	project := &model.Project{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, created_at FROM projects WHERE id = $1`,
		id,
	).Scan(&project.ID, &project.UserID, &project.Name, &project.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find project by ID: %w", err)
	}

	return project, nil
}

// Create はプロジェクトを作成する。
func (r *PostgresProjectRepo) Create(ctx context.Context, project *model.Project) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO projects (id, user_id, name, created_at)
		 VALUES ($1, $2, $3, $4)`,
		project.ID, project.UserID, project.Name, project.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert project: %w", err)
	}

	return nil
}

// ListByUser はユーザーの全プロジェクトを作成日時降順で返す。
func (r *PostgresProjectRepo) ListByUser(ctx context.Context, userID string) ([]model.Project, error) {
	return r.listProjects(ctx,
		`SELECT id, user_id, name, created_at FROM projects WHERE user_id = $1 `+projectOrderByCreation,
		userID,
	)
}

// ListLatestByUser はユーザーの直近作成プロジェクトを最大limit件返す。
func (r *PostgresProjectRepo) ListLatestByUser(ctx context.Context, userID string, limit int) ([]model.Project, error) {
	return r.listProjects(ctx,
		`SELECT id, user_id, name, created_at FROM projects WHERE user_id = $1 `+projectOrderByCreation+` LIMIT $2`,
		userID, limit,
	)
}

// DeleteWithTasks はプロジェクトと所属タスクを同一トランザクションで削除する。
// 所属タスク→プロジェクトの順に削除し、途中失敗時はロールバックする。
// 削除された所属タスク数を返す。
func (r *PostgresProjectRepo) DeleteWithTasks(ctx context.Context, projectID string) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// 所属タスクを削除
	result, err := tx.ExecContext(ctx,
		`DELETE FROM tasks WHERE project_id = $1`,
		projectID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete project tasks: %w", err)
	}
	tasksDeleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	// プロジェクト本体を削除
	result, err = tx.ExecContext(ctx,
		`DELETE FROM projects WHERE id = $1`,
		projectID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete project: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return 0, fmt.Errorf("project not found: %s", projectID)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return tasksDeleted, nil
}

// listProjects はクエリを実行してプロジェクトのスライスに変換する。
func (r *PostgresProjectRepo) listProjects(ctx context.Context, query string, args ...any) ([]model.Project, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}
	defer rows.Close()

	projects := []model.Project{}
	for rows.Next() {
		project := model.Project{}
		if err := rows.Scan(&project.ID, &project.UserID, &project.Name, &project.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, project)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate projects: %w", err)
	}

	return projects, nil
}

// compile-time interface check
var _ ProjectRepository = (*PostgresProjectRepo)(nil)
