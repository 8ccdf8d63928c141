// Package viewstate はタスク/プロジェクト一覧の編集用クライアント状態を管理する。
// 各コントローラーはサービス層へコマンドを発行し、変更通知を受けて
// 最新のクエリ結果を保持する。描画層はスナップショットを読むだけでよい。
package viewstate

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hitoshi/taskwise/internal/model"
	"github.com/hitoshi/taskwise/internal/task"
)

// TaskCommander はタスクコントローラーが依存するサービス操作。
type TaskCommander interface {
	Create(ctx context.Context, callerID string, in task.CreateInput) (string, error)
	Update(ctx context.Context, callerID, taskID string, patch model.TaskPatch) error
	Delete(ctx context.Context, callerID, taskID string) error
	List(ctx context.Context, callerID string) ([]model.Task, error)
}

// ChangeSource は所有者単位の変更通知の購読インターフェース。
type ChangeSource interface {
	Subscribe(ownerID string) (<-chan struct{}, func())
}

// TaskListController はタスク一覧ビューの状態機械。
// 同時に編集モードになれる行は最大1つで、別の行の編集開始は
// 進行中の編集を保存せずに破棄する。
type TaskListController struct {
	mu       sync.Mutex
	callerID string
	svc      TaskCommander
	source   ChangeSource

	tasks []model.Task

	// インライン編集状態
	editingTaskID string
	draftName     string
	draftPriority int
	draftTags     []string
	tagInput      string
	draftDueDate  *time.Time

	// 追加ダイアログ状態
	dialogOpen      bool
	dialogProjectID *string
}

// NewTaskListController はTaskListControllerの新しいインスタンスを生成する。
// sourceはnil可（変更通知を購読しない）。
func NewTaskListController(callerID string, svc TaskCommander, source ChangeSource) *TaskListController {
	return &TaskListController{
		callerID:  callerID,
		svc:       svc,
		source:    source,
		draftTags: []string{},
	}
}

// Refresh は最新のタスク一覧を取得してスナップショットを差し替える。
func (c *TaskListController) Refresh(ctx context.Context) error {
	tasks, err := c.svc.List(ctx, c.callerID)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.tasks = tasks
	c.mu.Unlock()
	return nil
}

// Run は変更通知を購読し、通知のたびに一覧を再取得する。
// ctxのキャンセルで停止する。sourceが未設定の場合は初回取得のみ行う。
func (c *TaskListController) Run(ctx context.Context) {
	if err := c.Refresh(ctx); err != nil {
		slog.Error("initial task refresh failed", slog.String("error", err.Error()))
	}
	if c.source == nil {
		return
	}

	ch, cancel := c.source.Subscribe(c.callerID)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ch:
			if err := c.Refresh(ctx); err != nil {
				slog.Error("task refresh failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Tasks は最後に観測したタスク一覧のコピーを返す。
func (c *TaskListController) Tasks() []model.Task {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]model.Task, len(c.tasks))
	copy(out, c.tasks)
	return out
}

// StartEdit はタスクを編集モードにし、現在のフィールド値をドラフトに写す。
// 別のタスクが編集中だった場合、そのドラフトは保存されずに破棄される。
// スナップショットに存在しないIDの場合はfalseを返し、状態は変わらない。
func (c *TaskListController) StartEdit(taskID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	target := c.findTask(taskID)
	if target == nil {
		return false
	}

	c.editingTaskID = target.ID
	c.draftName = target.Name
	c.draftPriority = target.Priority
	c.draftTags = append([]string{}, target.Tags...)
	c.tagInput = ""
	if target.DueDate != nil {
		due := *target.DueDate
		c.draftDueDate = &due
	} else {
		c.draftDueDate = nil
	}
	return true
}

// CancelEdit はコマンドを発行せずにドラフトを破棄して編集モードを抜ける。
func (c *TaskListController) CancelEdit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearEditLocked()
}

// CommitEdit はドラフトを検証して更新コマンドを発行する。
// 名前と優先度は常に送り、タグと期限は編集前の値から変わった場合のみ送る。
// 検証エラーとコマンド失敗のいずれも編集状態を保持し、成功時のみ抜ける。
func (c *TaskListController) CommitEdit(ctx context.Context) error {
	c.mu.Lock()
	if c.editingTaskID == "" {
		c.mu.Unlock()
		return nil
	}

	name := strings.TrimSpace(c.draftName)
	if name == "" {
		c.mu.Unlock()
		return model.NewValidationError("タスク名を入力してください")
	}

	original := c.findTask(c.editingTaskID)
	taskID := c.editingTaskID
	priority := c.draftPriority
	patch := model.TaskPatch{
		Name:     &name,
		Priority: &priority,
	}
	if original == nil || !tagsEqual(c.draftTags, original.Tags) {
		tags := append([]string{}, c.draftTags...)
		patch.Tags = &tags
	}
	if c.draftDueDate != nil && (original == nil || !dueDateEqual(c.draftDueDate, original.DueDate)) {
		due := *c.draftDueDate
		patch.DueDate = &due
	}
	c.mu.Unlock()

	if err := c.svc.Update(ctx, c.callerID, taskID, patch); err != nil {
		return err
	}

	c.mu.Lock()
	if c.editingTaskID == taskID {
		c.clearEditLocked()
	}
	c.mu.Unlock()
	return nil
}

// ToggleCompleted は完了状態の反転を即時に発行する。
// 編集モードの状態機械を経由せず、ドラフトにも影響しない。
func (c *TaskListController) ToggleCompleted(ctx context.Context, taskID string) error {
	c.mu.Lock()
	target := c.findTask(taskID)
	if target == nil {
		c.mu.Unlock()
		return model.NewTaskNotFoundError(taskID)
	}
	completed := !target.Completed
	c.mu.Unlock()

	return c.svc.Update(ctx, c.callerID, taskID, model.TaskPatch{Completed: &completed})
}

// Delete はタスクの削除コマンドを発行する。
// 削除対象が編集中だった場合はドラフトも破棄する。
func (c *TaskListController) Delete(ctx context.Context, taskID string) error {
	if err := c.svc.Delete(ctx, c.callerID, taskID); err != nil {
		return err
	}

	c.mu.Lock()
	if c.editingTaskID == taskID {
		c.clearEditLocked()
	}
	c.mu.Unlock()
	return nil
}

// SetDraftName は編集中のタスク名ドラフトを置き換える。
func (c *TaskListController) SetDraftName(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draftName = name
}

// SetDraftPriority は編集中の優先度ドラフトを置き換える。
func (c *TaskListController) SetDraftPriority(priority int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draftPriority = priority
}

// SetDraftDueDate は編集中の期限ドラフトを置き換える。
func (c *TaskListController) SetDraftDueDate(due *time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draftDueDate = due
}

// SetTagInput はタグ入力欄の内容を置き換える。
func (c *TaskListController) SetTagInput(input string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tagInput = input
}

// CommitTag はタグ入力欄の内容をドラフトのタグ集合に追加して入力欄を空にする。
// 空白のみの入力、および既にドラフトに含まれるタグは追加しない。
func (c *TaskListController) CommitTag() {
	c.mu.Lock()
	defer c.mu.Unlock()

	tag := strings.TrimSpace(c.tagInput)
	if tag == "" {
		return
	}
	for _, existing := range c.draftTags {
		if existing == tag {
			c.tagInput = ""
			return
		}
	}
	c.draftTags = append(c.draftTags, tag)
	c.tagInput = ""
}

// RemoveTag はドラフトのタグ集合から完全一致するタグを取り除く。
func (c *TaskListController) RemoveTag(tag string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	filtered := c.draftTags[:0]
	for _, existing := range c.draftTags {
		if existing != tag {
			filtered = append(filtered, existing)
		}
	}
	c.draftTags = filtered
}

// OpenAddDialog は追加ダイアログを既定値で開く。
// projectIDを渡すと、作成されるタスクはそのプロジェクトに関連付けられる。
func (c *TaskListController) OpenAddDialog(projectID *string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.dialogOpen = true
	c.dialogProjectID = projectID
	c.editingTaskID = ""
	c.draftName = ""
	c.draftPriority = model.DefaultPriority
	c.draftTags = []string{}
	c.tagInput = ""
	c.draftDueDate = nil
}

// CloseAddDialog はドラフトを破棄してダイアログを閉じる。
func (c *TaskListController) CloseAddDialog() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dialogOpen = false
	c.clearEditLocked()
}

// ConfirmAdd はダイアログのドラフトを検証して作成コマンドを発行する。
// 検証エラーとコマンド失敗はダイアログとドラフトを保持し、成功時のみ閉じる。
func (c *TaskListController) ConfirmAdd(ctx context.Context) error {
	c.mu.Lock()
	if !c.dialogOpen {
		c.mu.Unlock()
		return nil
	}

	name := strings.TrimSpace(c.draftName)
	if name == "" {
		c.mu.Unlock()
		return model.NewValidationError("タスク名を入力してください")
	}

	priority := c.draftPriority
	in := task.CreateInput{
		Name:      name,
		Priority:  &priority,
		Tags:      append([]string{}, c.draftTags...),
		ProjectID: c.dialogProjectID,
	}
	if c.draftDueDate != nil {
		due := *c.draftDueDate
		in.DueDate = &due
	}
	c.mu.Unlock()

	if _, err := c.svc.Create(ctx, c.callerID, in); err != nil {
		return err
	}

	c.mu.Lock()
	c.dialogOpen = false
	c.dialogProjectID = nil
	c.clearEditLocked()
	c.mu.Unlock()
	return nil
}

// EditingTaskID は編集中のタスクIDを返す。編集中でなければ空文字列。
func (c *TaskListController) EditingTaskID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.editingTaskID
}

// DialogOpen は追加ダイアログが開いているかを返す。
func (c *TaskListController) DialogOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dialogOpen
}

// Draft は現在のドラフト値のスナップショットを返す。
func (c *TaskListController) Draft() (name string, priority int, tags []string, dueDate *time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	tags = append([]string{}, c.draftTags...)
	if c.draftDueDate != nil {
		due := *c.draftDueDate
		dueDate = &due
	}
	return c.draftName, c.draftPriority, tags, dueDate
}

// TagInput はタグ入力欄の現在の内容を返す。
func (c *TaskListController) TagInput() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tagInput
}

// findTask はスナップショットからタスクを探す。呼び出し側でロックを取ること。
func (c *TaskListController) findTask(taskID string) *model.Task {
	for i := range c.tasks {
		if c.tasks[i].ID == taskID {
			return &c.tasks[i]
		}
	}
	return nil
}

// clearEditLocked は編集状態とドラフトを初期化する。呼び出し側でロックを取ること。
func (c *TaskListController) clearEditLocked() {
	c.editingTaskID = ""
	c.draftName = ""
	c.draftPriority = 0
	c.draftTags = []string{}
	c.tagInput = ""
	c.draftDueDate = nil
}

// tagsEqual は順序込みでタグ集合が一致するかを返す。
func tagsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// dueDateEqual はnil同士を等しいとみなす期限の比較。
func dueDateEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
