package viewstate

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/hitoshi/taskwise/internal/model"
)

// ProjectCommander はプロジェクトコントローラーが依存するサービス操作。
type ProjectCommander interface {
	Create(ctx context.Context, callerID, name string) (string, error)
	Delete(ctx context.Context, callerID, projectID string) error
	List(ctx context.Context, callerID string) ([]model.Project, error)
}

// ProjectListController はプロジェクト一覧ビューの状態機械。
// タスク側と同じく、ダイアログのドラフトは成功時のみ破棄される。
type ProjectListController struct {
	mu       sync.Mutex
	callerID string
	svc      ProjectCommander
	source   ChangeSource

	projects []model.Project

	dialogOpen bool
	draftName  string
}

// NewProjectListController はProjectListControllerの新しいインスタンスを生成する。
// sourceはnil可（変更通知を購読しない）。
func NewProjectListController(callerID string, svc ProjectCommander, source ChangeSource) *ProjectListController {
	return &ProjectListController{
		callerID: callerID,
		svc:      svc,
		source:   source,
	}
}

// Refresh は最新のプロジェクト一覧を取得してスナップショットを差し替える。
func (c *ProjectListController) Refresh(ctx context.Context) error {
	projects, err := c.svc.List(ctx, c.callerID)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.projects = projects
	c.mu.Unlock()
	return nil
}

// Run は変更通知を購読し、通知のたびに一覧を再取得する。
func (c *ProjectListController) Run(ctx context.Context) {
	if err := c.Refresh(ctx); err != nil {
		slog.Error("initial project refresh failed", slog.String("error", err.Error()))
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
				slog.Error("project refresh failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Projects は最後に観測したプロジェクト一覧のコピーを返す。
func (c *ProjectListController) Projects() []model.Project {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]model.Project, len(c.projects))
	copy(out, c.projects)
	return out
}

// OpenAddDialog は追加ダイアログを空のドラフトで開く。
func (c *ProjectListController) OpenAddDialog() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dialogOpen = true
	c.draftName = ""
}

// CloseAddDialog はドラフトを破棄してダイアログを閉じる。
func (c *ProjectListController) CloseAddDialog() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dialogOpen = false
	c.draftName = ""
}

// SetDraftName はプロジェクト名ドラフトを置き換える。
func (c *ProjectListController) SetDraftName(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draftName = name
}

// ConfirmAdd はドラフトを検証して作成コマンドを発行する。
// 検証エラーとコマンド失敗はダイアログとドラフトを保持し、成功時のみ閉じる。
func (c *ProjectListController) ConfirmAdd(ctx context.Context) error {
	c.mu.Lock()
	if !c.dialogOpen {
		c.mu.Unlock()
		return nil
	}

	name := strings.TrimSpace(c.draftName)
	if name == "" {
		c.mu.Unlock()
		return model.NewValidationError("プロジェクト名を入力してください")
	}
	c.mu.Unlock()

	if _, err := c.svc.Create(ctx, c.callerID, name); err != nil {
		return err
	}

	c.mu.Lock()
	c.dialogOpen = false
	c.draftName = ""
	c.mu.Unlock()
	return nil
}

// Delete はプロジェクトの削除コマンドを発行する。所属タスクも一緒に消える。
func (c *ProjectListController) Delete(ctx context.Context, projectID string) error {
	return c.svc.Delete(ctx, c.callerID, projectID)
}

// DialogOpen は追加ダイアログが開いているかを返す。
func (c *ProjectListController) DialogOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dialogOpen
}

// DraftName は現在のプロジェクト名ドラフトを返す。
func (c *ProjectListController) DraftName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draftName
}
