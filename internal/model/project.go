// Package model はドメインモデルを定義する。
package model

import "time"

// Project はユーザーが所有するプロジェクトを表す。
// プロジェクトは所有者本人にのみ見える。
type Project struct {
	ID        string
	UserID    string
	Name      string
	CreatedAt time.Time
}
