package repository

import (
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/taskwise/internal/model"
)

// PostgresTaskRepoはTaskRepositoryインターフェースを満たすことを検証
func TestPostgresTaskRepo_ImplementsInterface(t *testing.T) {
	var _ TaskRepository = (*PostgresTaskRepo)(nil)
}

// NewPostgresTaskRepoが正しく初期化されることを検証
func TestNewPostgresTaskRepo_Initializes(t *testing.T) {
	repo := NewPostgresTaskRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

// 作成日時順の並び順句: 降順かつidによる安定化タイブレークを含むこと
func TestTaskOrderByCreation_DescWithIDTiebreak(t *testing.T) {
	if !strings.Contains(taskOrderByCreation, "created_at DESC") {
		t.Errorf("creation order must sort by created_at DESC, got: %s", taskOrderByCreation)
	}
	if !strings.Contains(taskOrderByCreation, "id DESC") {
		t.Errorf("creation order must break ties by id DESC, got: %s", taskOrderByCreation)
	}
}

// 期限順の並び順句: 期限昇順、優先度タイブレーク、期限なしは末尾（NULLS LAST）であること
// 期限なしタスクの並び位置は実装が明示的に規定する（仕様上のNULL順序ポリシー）
func TestTaskOrderByUpcoming_NullsLastPolicy(t *testing.T) {
	if !strings.Contains(taskOrderByUpcoming, "due_date ASC NULLS LAST") {
		t.Errorf("upcoming order must sort by due_date ASC NULLS LAST, got: %s", taskOrderByUpcoming)
	}
	if !strings.Contains(taskOrderByUpcoming, "priority ASC") {
		t.Errorf("upcoming order must break ties by priority ASC, got: %s", taskOrderByUpcoming)
	}

	// 優先度のタイブレークは期限の後に評価されること
	duePos := strings.Index(taskOrderByUpcoming, "due_date")
	prioPos := strings.Index(taskOrderByUpcoming, "priority")
	if duePos > prioPos {
		t.Errorf("due_date must be the primary sort key, got: %s", taskOrderByUpcoming)
	}
}

// buildTaskUpdateが指定フィールドのみをSET句に含めることを検証
func TestBuildTaskUpdate_OnlyNamedFields(t *testing.T) {
	name := "買い物"
	completed := true

	query, args := buildTaskUpdate("task-1", model.TaskPatch{
		Name:      &name,
		Completed: &completed,
	})

	if !strings.Contains(query, "name = $1") {
		t.Errorf("query should set name, got: %s", query)
	}
	if !strings.Contains(query, "completed = $2") {
		t.Errorf("query should set completed, got: %s", query)
	}
	for _, column := range []string{"priority", "tags", "due_date"} {
		if strings.Contains(query, column) {
			t.Errorf("query should not touch %s, got: %s", column, query)
		}
	}
	if !strings.Contains(query, "WHERE id = $3") {
		t.Errorf("id must be the last bind argument, got: %s", query)
	}

	// バインド引数: name, completed, id の順
	if len(args) != 3 {
		t.Fatalf("expected 3 args, got %d", len(args))
	}
	if args[0] != name || args[1] != completed || args[2] != "task-1" {
		t.Errorf("unexpected args: %v", args)
	}
}

// buildTaskUpdateが全フィールド指定時に全カラムをSET句に含めることを検証
func TestBuildTaskUpdate_AllFields(t *testing.T) {
	name := "task"
	completed := false
	priority := 5
	tags := []string{"a", "b"}
	due := time.Now()

	query, args := buildTaskUpdate("task-2", model.TaskPatch{
		Name:      &name,
		Completed: &completed,
		Priority:  &priority,
		Tags:      &tags,
		DueDate:   &due,
	})

	for _, column := range []string{"name", "completed", "priority", "tags", "due_date"} {
		if !strings.Contains(query, column+" = $") {
			t.Errorf("query should set %s, got: %s", column, query)
		}
	}
	if len(args) != 6 {
		t.Fatalf("expected 6 args (5 fields + id), got %d", len(args))
	}
}
