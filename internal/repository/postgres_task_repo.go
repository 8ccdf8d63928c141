package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/hitoshi/taskwise/internal/model"
)

// タスク一覧の並び順。同時刻の作成はidで安定化する。
const taskOrderByCreation = "ORDER BY created_at DESC, id DESC"

// ダッシュボード「期限が近い順」の複合順序。期限なしは末尾、同期限は優先度昇順。
const taskOrderByUpcoming = "ORDER BY due_date ASC NULLS LAST, priority ASC, created_at ASC, id ASC"

const taskColumns = "id, user_id, name, completed, priority, due_date, tags, project_id, created_at"

// PostgresTaskRepo はPostgreSQLを使用したタスクリポジトリ。
type PostgresTaskRepo struct {
	db *sql.DB
}

// NewPostgresTaskRepo はPostgresTaskRepoを生成する。
func NewPostgresTaskRepo(db *sql.DB) *PostgresTaskRepo {
	return &PostgresTaskRepo{db: db}
}

// FindByID は指定IDのタスクを取得する。見つからない場合はnilを返す。
func (r *PostgresTaskRepo) FindByID(ctx context.Context, id string) (*model.Task, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = $1`,
		id,
	)

	task, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find task by ID: %w", err)
	}

	return task, nil
}

// Create はタスクを作成する。
func (r *PostgresTaskRepo) Create(ctx context.Context, task *model.Task) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tasks (id, user_id, name, completed, priority, due_date, tags, project_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		task.ID, task.UserID, task.Name, task.Completed, task.Priority,
		task.DueDate, pq.Array(task.Tags), task.ProjectID, task.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert task: %w", err)
	}

	return nil
}

// Update はpatchに含まれるフィールドのみを更新する。
// SET句はpatchの存在フィールドから動的に構築する。patchが空の場合は何もしない。
func (r *PostgresTaskRepo) Update(ctx context.Context, id string, patch model.TaskPatch) error {
	if patch.IsEmpty() {
		return nil
	}

	query, args := buildTaskUpdate(id, patch)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("task not found: %s", id)
	}

	return nil
}

// buildTaskUpdate はpatchの存在フィールドからUPDATE文とバインド引数を構築する。
// nilのフィールドはSET句に含めない（未指定 ≠ 空に戻す）。
func buildTaskUpdate(id string, patch model.TaskPatch) (string, []any) {
	var sets []string
	var args []any
	arg := 1

	appendSet := func(column string, value any) {
		sets = append(sets, fmt.Sprintf("%s = $%d", column, arg))
		args = append(args, value)
		arg++
	}

	if patch.Name != nil {
		appendSet("name", *patch.Name)
	}
	if patch.Completed != nil {
		appendSet("completed", *patch.Completed)
	}
	if patch.Priority != nil {
		appendSet("priority", *patch.Priority)
	}
	if patch.Tags != nil {
		appendSet("tags", pq.Array(*patch.Tags))
	}
	if patch.DueDate != nil {
		appendSet("due_date", *patch.DueDate)
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE tasks SET %s WHERE id = $%d", strings.Join(sets, ", "), arg)

	return query, args
}

// DeleteByID は指定IDのタスクを削除する。
func (r *PostgresTaskRepo) DeleteByID(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM tasks WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("task not found: %s", id)
	}

	return nil
}

// ListByUser はユーザーの全タスクを作成日時降順で返す。
func (r *PostgresTaskRepo) ListByUser(ctx context.Context, userID string) ([]model.Task, error) {
	return r.listTasks(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE user_id = $1 `+taskOrderByCreation,
		userID,
	)
}

// ListRecentByUser はユーザーの直近作成タスクを最大limit件返す。
func (r *PostgresTaskRepo) ListRecentByUser(ctx context.Context, userID string, limit int) ([]model.Task, error) {
	return r.listTasks(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE user_id = $1 `+taskOrderByCreation+` LIMIT $2`,
		userID, limit,
	)
}

// ListUpcomingByUser はユーザーのタスクを複合順序（期限昇順、優先度昇順）で最大limit件返す。
// 期限なしタスクはNULLS LASTにより末尾に並ぶ。
func (r *PostgresTaskRepo) ListUpcomingByUser(ctx context.Context, userID string, limit int) ([]model.Task, error) {
	return r.listTasks(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE user_id = $1 `+taskOrderByUpcoming+` LIMIT $2`,
		userID, limit,
	)
}

// listTasks はクエリを実行してタスクのスライスに変換する。
func (r *PostgresTaskRepo) listTasks(ctx context.Context, query string, args ...any) ([]model.Task, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	tasks := []model.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, *task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tasks: %w", err)
	}

	return tasks, nil
}

// rowScanner は*sql.Rowと*sql.Rowsの共通スキャンインターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

// scanTask は1行をmodel.Taskに変換する。
func scanTask(row rowScanner) (*model.Task, error) {
	task := &model.Task{}
	var dueDate sql.NullTime
	var projectID sql.NullString

	err := row.Scan(
		&task.ID, &task.UserID, &task.Name, &task.Completed, &task.Priority,
		&dueDate, pq.Array(&task.Tags), &projectID, &task.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if dueDate.Valid {
		t := dueDate.Time
		task.DueDate = &t
	}
	if projectID.Valid {
		p := projectID.String
		task.ProjectID = &p
	}

	return task, nil
}

// compile-time interface check
var _ TaskRepository = (*PostgresTaskRepo)(nil)
