package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/taskwise/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// FindByExternalID は外部IdPのsubjectでユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByExternalID(ctx context.Context, externalID string) (*model.User, error) {
	user := &model.User{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, external_id, name, email, username, last_login_at, created_at, updated_at
		 FROM users WHERE external_id = $1`,
		externalID,
	).Scan(&user.ID, &user.ExternalID, &user.Name, &user.Email, &user.Username,
		&user.LastLoginAt, &user.CreatedAt, &user.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by external ID: %w", err)
	}

	return user, nil
}

// Upsert はexternal_idをキーにユーザーを冪等にUPSERTする。
// 1文のINSERT ... ON CONFLICTで実行するため、同時実行でも重複行は生じない。
// 既存レコードがある場合は可変フィールドのみ上書きし、既存の内部IDを返す。
func (r *PostgresUserRepo) Upsert(ctx context.Context, user *model.User) (string, error) {
	var id string
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO users (id, external_id, name, email, username, last_login_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (external_id) DO UPDATE SET
		   name = EXCLUDED.name,
		   email = EXCLUDED.email,
		   username = EXCLUDED.username,
		   last_login_at = EXCLUDED.last_login_at,
		   updated_at = EXCLUDED.updated_at
		 RETURNING id`,
		user.ID, user.ExternalID, user.Name, user.Email, user.Username,
		user.LastLoginAt, user.CreatedAt, user.UpdatedAt,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to upsert user: %w", err)
	}

	return id, nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
