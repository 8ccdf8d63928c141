// Package model はドメインモデルを定義する。
package model

import "time"

// 優先度は1〜5の5段階。未指定時はDefaultPriorityを適用する。
const (
	PriorityLow      = 1
	PriorityMedium   = 2
	PriorityHigh     = 3
	PriorityUrgent   = 4
	PriorityCritical = 5

	// DefaultPriority はタスク作成時に優先度が省略された場合の既定値。
	DefaultPriority = PriorityHigh
)

// Task はユーザーが所有するタスクを表す。
// 所有者の判定はUserID（外部IdPのsubject）とのみ突き合わせる。
type Task struct {
	ID        string
	UserID    string
	Name      string
	Completed bool
	Priority  int
	DueDate   *time.Time // nilは期限なし
	Tags      []string   // 重複なし。挿入順を保持するがセマンティクス上は集合
	ProjectID *string    // nilはプロジェクト未所属
	CreatedAt time.Time
}

// TaskPatch は部分更新で変更するフィールドを表す。
// nilのフィールドは変更されない（未指定 ≠ 空に戻す）。
// DueDateを期限なしに戻す手段は提供しない。未指定は常に「変更なし」を意味する。
type TaskPatch struct {
	Name      *string
	Completed *bool
	Priority  *int
	Tags      *[]string
	DueDate   *time.Time
}

// IsEmpty は全フィールドが未指定かどうかを返す。
func (p TaskPatch) IsEmpty() bool {
	return p.Name == nil && p.Completed == nil && p.Priority == nil &&
		p.Tags == nil && p.DueDate == nil
}

// ValidPriority は優先度が1〜5の範囲内かどうかを返す。
func ValidPriority(priority int) bool {
	return priority >= PriorityLow && priority <= PriorityCritical
}
