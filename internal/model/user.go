// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// ExternalIDは外部IdPが発行する安定したsubjectで、1ユーザーにつき1件。
// レコードは初回サインイン時の同期で作成され、以降の同期で
// Name/Email/Username/LastLoginAtが上書きされる。削除は行わない。
type User struct {
	ID          string
	ExternalID  string
	Name        string
	Email       string
	Username    string
	LastLoginAt int64 // エポックミリ秒。IdPの報告値をそのまま保持する
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
